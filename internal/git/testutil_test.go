package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// testRepo is a repository on local disk that tests clone from
type testRepo struct {
	dir      string
	repo     *git.Repository
	worktree *git.Worktree
}

// newTestRepo initializes an empty repository in a temporary directory
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err, "failed to init repository")

	worktree, err := repo.Worktree()
	require.NoError(t, err, "failed to get worktree")

	return &testRepo{dir: dir, repo: repo, worktree: worktree}
}

// commit writes the given files and commits them, returning the commit hash
func (r *testRepo) commit(t *testing.T, message string, files map[string]string) plumbing.Hash {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(r.dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err := r.worktree.Add(name)
		require.NoError(t, err, "failed to add %s", name)
	}

	hash, err := r.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err, "failed to commit")
	return hash
}

// branch creates and checks out a new branch
func (r *testRepo) branch(t *testing.T, name string) {
	t.Helper()

	err := r.worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	require.NoError(t, err, "failed to create branch %s", name)
}

// checkout switches to an existing branch
func (r *testRepo) checkout(t *testing.T, name string) {
	t.Helper()

	err := r.worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	})
	require.NoError(t, err, "failed to checkout branch %s", name)
}

// tag creates a lightweight tag at the given commit
func (r *testRepo) tag(t *testing.T, name string, hash plumbing.Hash) {
	t.Helper()

	_, err := r.repo.CreateTag(name, hash, nil)
	require.NoError(t, err, "failed to create tag %s", name)
}

// headBranch returns the short name of the branch HEAD points at
func (r *testRepo) headBranch(t *testing.T) string {
	t.Helper()

	ref, err := r.repo.Head()
	require.NoError(t, err)
	return ref.Name().Short()
}
