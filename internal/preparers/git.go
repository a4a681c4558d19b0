package preparers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/entity"
	"github.com/stacklok/techdocs-preparer/internal/git"
	"github.com/stacklok/techdocs-preparer/internal/gitref"
)

// CommonGitPreparer clones documentation from git hosting providers.
// One instance serves every git based protocol.
type CommonGitPreparer struct {
	client      git.Client
	credentials gitCredentials
	logger      *slog.Logger
}

var _ Preparer = (*CommonGitPreparer)(nil)

// NewCommonGitPreparer creates a git preparer backed by go-git. Clones of
// hosts listed in cfg.Integrations authenticate with the configured token.
func NewCommonGitPreparer(cfg *config.Config, logger *slog.Logger) (*CommonGitPreparer, error) {
	p := newCommonGitPreparer(git.NewDefaultGitClient(), logger)
	if cfg != nil {
		p.credentials = newGitCredentials(cfg.Integrations)
	}
	return p, nil
}

func newCommonGitPreparer(client git.Client, logger *slog.Logger) *CommonGitPreparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommonGitPreparer{
		client: client,
		logger: logger,
	}
}

// Prepare clones the repository named by the entity and exports the
// referenced directory into opts.OutputDir. The result etag is the commit SHA.
func (p *CommonGitPreparer) Prepare(ctx context.Context, e *entity.Entity, opts PrepareOptions) (*PrepareResult, error) {
	ref, err := entity.ParseReferenceAnnotation(entity.TechDocsRefAnnotation, e)
	if err != nil {
		return nil, err
	}

	location, err := gitref.Parse(ref.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid %s location: %w", ref.Type, err)
	}

	startTime := time.Now()
	p.logger.Info("Cloning repository",
		"entity", e.Ref(),
		"protocol", ref.Type,
		"target", location.CloneURL,
		"branch", location.Branch,
		"tag", location.Tag,
		"commit", location.Commit,
	)

	auth, err := p.credentials.auth(location.CloneURL)
	if err != nil {
		return nil, err
	}

	repoInfo, err := p.client.Clone(ctx, &git.CloneConfig{
		URL:    location.CloneURL,
		Branch: location.Branch,
		Tag:    location.Tag,
		Commit: location.Commit,
		Auth:   auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", location.CloneURL, err)
	}
	defer func() {
		if cleanupErr := p.client.Cleanup(ctx, repoInfo); cleanupErr != nil {
			p.logger.Warn("Failed to clean up repository", "target", location.CloneURL, "error", cleanupErr)
		}
	}()

	commit, err := p.client.HeadCommit(repoInfo)
	if err != nil {
		return nil, err
	}

	if opts.Etag != "" && opts.Etag == commit {
		p.logger.Debug("Repository unchanged", "target", location.CloneURL, "commit", commit)
		return nil, ErrNotModified
	}

	outputDir, discard, err := outputDirectory(opts.OutputDir, "techdocs-git-")
	if err != nil {
		return nil, err
	}

	count, err := p.client.ExportDirectory(repoInfo, location.Path, outputDir)
	if err != nil {
		discard()
		return nil, err
	}

	p.logger.Info("Prepared repository",
		"entity", e.Ref(),
		"protocol", ref.Type,
		"target", repoInfo.RemoteURL,
		"branch", repoInfo.Branch,
		"path", location.Path,
		"commit", commit,
		"files", count,
		"duration", time.Since(startTime).String(),
	)

	return &PrepareResult{
		Path: outputDir,
		Etag: commit,
	}, nil
}

// outputDirectory returns dir, or a new temporary directory when dir is
// empty. discard removes the directory again if it was created here.
func outputDirectory(dir string, pattern string) (string, func(), error) {
	if dir != "" {
		return dir, func() {}, nil
	}
	tmp, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	return tmp, func() { _ = os.RemoveAll(tmp) }, nil
}
