package preparers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/entity"
	"github.com/stacklok/techdocs-preparer/internal/reader"
)

// URLPreparer downloads documentation with a URL reader
type URLPreparer struct {
	reader reader.URLReader
	logger *slog.Logger
}

var _ Preparer = (*URLPreparer)(nil)

// NewURLPreparer creates a URL preparer. A reader is required.
func NewURLPreparer(_ *config.Config, urlReader reader.URLReader, logger *slog.Logger) (*URLPreparer, error) {
	if urlReader == nil {
		return nil, fmt.Errorf("url preparer requires a URL reader")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &URLPreparer{
		reader: urlReader,
		logger: logger,
	}, nil
}

// Prepare reads the tree behind the url: target and writes it into opts.OutputDir
func (p *URLPreparer) Prepare(ctx context.Context, e *entity.Entity, opts PrepareOptions) (*PrepareResult, error) {
	ref, err := entity.ParseReferenceAnnotation(entity.TechDocsRefAnnotation, e)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	tree, err := p.reader.ReadTree(ctx, ref.Target, reader.ReadTreeOptions{Etag: opts.Etag})
	if err != nil {
		if errors.Is(err, ErrNotModified) {
			p.logger.Debug("Content unchanged", "target", ref.Target, "etag", opts.Etag)
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", ref.Target, err)
	}

	outputDir, discard, err := outputDirectory(opts.OutputDir, "techdocs-url-")
	if err != nil {
		return nil, err
	}

	dir, err := tree.Dir(ctx, outputDir)
	if err != nil {
		discard()
		return nil, fmt.Errorf("failed to write %s: %w", ref.Target, err)
	}

	p.logger.Info("Prepared URL",
		"entity", e.Ref(),
		"target", ref.Target,
		"files", len(tree.Files),
		"etag", tree.Etag,
		"duration", time.Since(startTime).String(),
	)

	return &PrepareResult{
		Path: dir,
		Etag: tree.Etag,
	}, nil
}
