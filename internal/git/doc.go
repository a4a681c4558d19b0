// Package git provides Git repository operations for the version control preparer.
//
// This package implements a thin wrapper around the go-git library so that
// documentation sources can be fetched directly from Git repositories.
// It supports cloning repositories with optional HTTP basic credentials,
// checking out specific branches/tags/commits and exporting a directory of
// the checked out tree to local disk.
//
// # Client Interface
//
// The Client interface defines the core Git operations:
//   - Clone: Clone repositories to an in-memory filesystem
//   - ExportDirectory: Write a directory of the HEAD tree to disk
//   - HeadCommit: Report the checked out commit
//   - Cleanup: Release in-memory repository resources
//
// # Example Usage
//
//	client := git.NewDefaultGitClient()
//	repoInfo, err := client.Clone(ctx, &git.CloneConfig{
//	    URL:    "https://github.com/example/service.git",
//	    Branch: "main",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Cleanup(ctx, repoInfo)
//
//	n, err := client.ExportDirectory(repoInfo, "docs", "/tmp/techdocs")
//
// # Implementation Details
//
//   - In-memory filesystems (go-billy memfs) for all Git operations
//   - LimitedFs wrapper to enforce size constraints (10k files, 100MB total)
//   - Shallow clones (depth=1) for branch/tag checkouts
//   - Full clones only when specific commits are requested
//   - A branch that does not exist is retried as a tag of the same name
//   - Explicit memory cleanup via Cleanup() with GC hints
package git
