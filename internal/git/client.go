package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// DefaultMaxFiles is the maximum number of files a clone may create
	DefaultMaxFiles = 10 * 1000

	// DefaultTotalFileSize is the maximum number of bytes a clone may write (100MB)
	DefaultTotalFileSize = 100 * 1024 * 1024
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client defines the interface for Git operations
type Client interface {
	// Clone clones a repository with the given configuration
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// ExportDirectory writes the files below dir at HEAD into destDir and
	// returns the number of files written
	ExportDirectory(repoInfo *RepositoryInfo, dir string, destDir string) (int, error)

	// HeadCommit returns the SHA of the checked out commit
	HeadCommit(repoInfo *RepositoryInfo) (string, error)

	// Cleanup releases the in-memory repository
	Cleanup(ctx context.Context, repoInfo *RepositoryInfo) error
}

// defaultGitClient implements Client using go-git
type defaultGitClient struct {
	maxFiles      int64
	totalFileSize int64
}

// NewDefaultGitClient creates a new defaultGitClient
func NewDefaultGitClient() Client {
	return &defaultGitClient{
		maxFiles:      DefaultMaxFiles,
		totalFileSize: DefaultTotalFileSize,
	}
}

// Clone clones a repository with the given configuration
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("clone URL cannot be empty")
	}

	repoInfo, err := c.clone(ctx, config, false)
	if err != nil && config.Branch != "" && config.Commit == "" && isReferenceNotFound(err) {
		// Provider tree URLs do not say whether a ref is a branch or a tag
		slog.Debug("Branch not found, retrying as tag", "repository", config.URL, "ref", config.Branch)
		repoInfo, err = c.clone(ctx, config, true)
	}
	if err != nil {
		return nil, err
	}

	// If specific commit is requested, checkout that commit
	if config.Commit != "" {
		workTree, err := repoInfo.Repository.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}

		hash := plumbing.NewHash(config.Commit)
		err = workTree.Checkout(&git.CheckoutOptions{
			Hash: hash,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to checkout commit %s: %w", config.Commit, err)
		}
	}

	// Update repository info with current state
	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		return nil, fmt.Errorf("failed to update repository info: %w", err)
	}

	return repoInfo, nil
}

// clone performs a single clone attempt into fresh in-memory filesystems
func (c *defaultGitClient) clone(ctx context.Context, config *CloneConfig, branchAsTag bool) (*RepositoryInfo, error) {
	cloneOptions := &git.CloneOptions{
		URL: config.URL,
	}

	// Configure authentication if provided
	if config.Auth != nil && config.Auth.Username != "" {
		cloneOptions.Auth = &githttp.BasicAuth{
			Username: config.Auth.Username,
			Password: config.Auth.Password,
		}
		slog.Debug("Using Git HTTP Basic authentication", "username", config.Auth.Username)
	}

	// Set reference if specified (but not for commit-based clones)
	if config.Commit == "" {
		cloneOptions.Depth = 1
		switch {
		case config.Branch != "" && branchAsTag:
			cloneOptions.ReferenceName = plumbing.NewTagReferenceName(config.Branch)
			cloneOptions.SingleBranch = true
		case config.Branch != "":
			cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(config.Branch)
			cloneOptions.SingleBranch = true
		case config.Tag != "":
			cloneOptions.ReferenceName = plumbing.NewTagReferenceName(config.Tag)
			cloneOptions.SingleBranch = true
		}
	}
	// For commit-based clones, we need the full repository to ensure the commit is available

	// go-git wants separate filesystems for the storer and the checked out files
	workFs := c.newLimitedFs()
	storerFs := c.newLimitedFs()
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFs, storerCache)

	repo, err := git.CloneContext(ctx, storer, workFs, cloneOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	return &RepositoryInfo{
		Repository:       repo,
		RemoteURL:        config.URL,
		storerFilesystem: storerFs,
		objectCache:      storerCache,
	}, nil
}

func (c *defaultGitClient) newLimitedFs() billy.Filesystem {
	return &LimitedFs{
		Fs:            memfs.New(),
		MaxFiles:      c.maxFiles,
		TotalFileSize: c.totalFileSize,
	}
}

// isReferenceNotFound reports whether a clone failed because the requested ref does not exist
func isReferenceNotFound(err error) bool {
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true
	}
	var noMatch git.NoMatchingRefSpecError
	return errors.As(err, &noMatch)
}

// headTree returns the tree of the HEAD commit
func headTree(repoInfo *RepositoryInfo) (*object.Tree, error) {
	if repoInfo == nil || repoInfo.Repository == nil {
		return nil, fmt.Errorf("repository is nil")
	}

	// Get the HEAD reference
	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	// Get the commit object
	commit, err := repoInfo.Repository.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}

	// Get the tree
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	return tree, nil
}

// ExportDirectory writes the files below dir at HEAD into destDir
func (*defaultGitClient) ExportDirectory(repoInfo *RepositoryInfo, dir string, destDir string) (int, error) {
	tree, err := headTree(repoInfo)
	if err != nil {
		return 0, err
	}

	dir = cleanTreePath(dir)
	if dir != "" {
		tree, err = tree.Tree(dir)
		if err != nil {
			return 0, fmt.Errorf("failed to get directory %s: %w", dir, err)
		}
	}

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	count := 0
	err = tree.Files().ForEach(func(f *object.File) error {
		if f.Mode == filemode.Symlink || f.Mode == filemode.Submodule {
			// Links are not materialized
			return nil
		}
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return fmt.Errorf("refusing to write file outside output directory: %s", f.Name)
		}
		if err := writeBlob(f, filepath.Join(destDir, filepath.FromSlash(f.Name))); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to export directory %s: %w", dir, err)
	}

	return count, nil
}

// writeBlob copies a git blob to a file on disk
func writeBlob(f *object.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	reader, err := f.Reader()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	//nolint:gosec // Target is validated to stay inside the output directory
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, reader); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

// cleanTreePath normalizes a repository path for tree lookups
func cleanTreePath(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return ""
	}
	return p[1:]
}

// HeadCommit returns the SHA of the checked out commit
func (*defaultGitClient) HeadCommit(repoInfo *RepositoryInfo) (string, error) {
	if repoInfo == nil || repoInfo.Repository == nil {
		return "", fmt.Errorf("repository is nil")
	}
	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	return ref.Hash().String(), nil
}

// Cleanup releases the in-memory repository
func (*defaultGitClient) Cleanup(_ context.Context, repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	// 1. Clear object cache explicitly
	if repoInfo.objectCache != nil {
		slog.Debug("Clearing object cache")
		repoInfo.objectCache.Clear()
	}

	// 2. Clear worktree filesystem
	worktree, err := repoInfo.Repository.Worktree()
	if err == nil && worktree.Filesystem != nil {
		slog.Debug("Clearing worktree filesystem")
		_ = util.RemoveAll(worktree.Filesystem, "/")
	}

	// 3. Clear storer filesystem (memfs)
	if repoInfo.storerFilesystem != nil {
		slog.Debug("Clearing storer filesystem")
		_ = util.RemoveAll(repoInfo.storerFilesystem, "/")
	}

	// 4. Nil out all references
	repoInfo.objectCache = nil
	repoInfo.storerFilesystem = nil
	repoInfo.Repository = nil

	runtime.GC()
	return nil
}

// updateRepositoryInfo updates the repository info with current state
func (*defaultGitClient) updateRepositoryInfo(repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	// Get current branch name
	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	if ref.Name().IsBranch() {
		repoInfo.Branch = ref.Name().Short()
	}

	return nil
}
