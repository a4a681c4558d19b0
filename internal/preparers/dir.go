package preparers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/entity"
)

// locationTypeFile is the managed-by location type of descriptors read from disk
const locationTypeFile = "file"

// DirectoryPreparer serves documentation that lives next to the entity
// descriptor. Nothing is copied; the resolved directory is returned as is.
type DirectoryPreparer struct {
	logger *slog.Logger
	getwd  func() (string, error)
}

var _ Preparer = (*DirectoryPreparer)(nil)

// NewDirectoryPreparer creates a directory preparer
func NewDirectoryPreparer(_ *config.Config, logger *slog.Logger) (*DirectoryPreparer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryPreparer{
		logger: logger,
		getwd:  os.Getwd,
	}, nil
}

// Prepare resolves the dir: target of the entity
func (p *DirectoryPreparer) Prepare(ctx context.Context, e *entity.Entity, _ PrepareOptions) (*PrepareResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := entity.ParseReferenceAnnotation(entity.TechDocsRefAnnotation, e)
	if err != nil {
		return nil, err
	}

	resolved, err := p.resolve(e, ref.Target)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to access documentation directory %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documentation path %s is not a directory", resolved)
	}

	p.logger.Debug("Prepared directory",
		"entity", e.Ref(),
		"target", ref.Target,
		"path", resolved,
	)

	return &PrepareResult{Path: resolved}, nil
}

// resolve makes target absolute. Relative targets are anchored at the
// directory holding the entity descriptor.
func (p *DirectoryPreparer) resolve(e *entity.Entity, target string) (string, error) {
	target = filepath.FromSlash(target)
	if filepath.IsAbs(target) {
		return filepath.Clean(target), nil
	}

	base, err := p.baseDir(e)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, target), nil
}

// baseDir returns the directory of the entity's managed-by file location,
// or the working directory when the entity has none
func (p *DirectoryPreparer) baseDir(e *entity.Entity) (string, error) {
	if _, ok := e.Annotation(entity.ManagedByLocationAnnotation); !ok {
		wd, err := p.getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}

	location, err := entity.ParseReferenceAnnotation(entity.ManagedByLocationAnnotation, e)
	if err != nil {
		return "", err
	}
	if location.Type != locationTypeFile {
		return "", fmt.Errorf("unable to resolve dir location for entity %s managed by %s location",
			e.Ref(), location.Type)
	}

	return filepath.Dir(filepath.FromSlash(location.Target)), nil
}
