package preparers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/git"
	"github.com/stacklok/techdocs-preparer/internal/git/mocks"
)

const testCommit = "0123456789abcdef0123456789abcdef01234567"

func TestCommonGitPreparer_Prepare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ref       string
		wantClone *git.CloneConfig
		wantPath  string
	}{
		{
			name: "github tree url",
			ref:  "github:https://github.com/org/repo/tree/main/docs",
			wantClone: &git.CloneConfig{
				URL:    "https://github.com/org/repo",
				Branch: "main",
			},
			wantPath: "docs",
		},
		{
			name: "gitlab commit url",
			ref:  "gitlab:https://gitlab.com/group/sub/repo/-/tree/" + testCommit + "/site",
			wantClone: &git.CloneConfig{
				URL:    "https://gitlab.com/group/sub/repo",
				Commit: testCommit,
			},
			wantPath: "site",
		},
		{
			name: "azure tag url",
			ref:  "azure/api:https://dev.azure.com/org/project/_git/repo?path=/docs&version=GTv1.0.0",
			wantClone: &git.CloneConfig{
				URL: "https://dev.azure.com/org/project/_git/repo",
				Tag: "v1.0.0",
			},
			wantPath: "docs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			repoInfo := &git.RepositoryInfo{}
			outputDir := t.TempDir()

			gomock.InOrder(
				client.EXPECT().Clone(gomock.Any(), tt.wantClone).Return(repoInfo, nil),
				client.EXPECT().HeadCommit(repoInfo).Return(testCommit, nil),
				client.EXPECT().ExportDirectory(repoInfo, tt.wantPath, outputDir).Return(3, nil),
				client.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(nil),
			)

			preparer := newCommonGitPreparer(client, discardLogger())
			result, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
				"backstage.io/techdocs-ref": tt.ref,
			}), PrepareOptions{OutputDir: outputDir})
			require.NoError(t, err)
			assert.Equal(t, outputDir, result.Path)
			assert.Equal(t, testCommit, result.Etag)
		})
	}
}

func TestCommonGitPreparer_NotModified(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	repoInfo := &git.RepositoryInfo{}

	client.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(repoInfo, nil)
	client.EXPECT().HeadCommit(repoInfo).Return(testCommit, nil)
	client.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(nil)

	preparer := newCommonGitPreparer(client, discardLogger())
	result, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
		"backstage.io/techdocs-ref": "github:https://github.com/org/repo",
	}), PrepareOptions{Etag: testCommit})
	assert.ErrorIs(t, err, ErrNotModified)
	assert.Nil(t, result)
}

func TestCommonGitPreparer_TempOutputDir(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	repoInfo := &git.RepositoryInfo{}

	var exported string
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(repoInfo, nil)
	client.EXPECT().HeadCommit(repoInfo).Return(testCommit, nil)
	client.EXPECT().ExportDirectory(repoInfo, "", gomock.Any()).
		DoAndReturn(func(_ *git.RepositoryInfo, _ string, destDir string) (int, error) {
			exported = destDir
			return 1, nil
		})
	client.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(errors.New("already released"))

	preparer := newCommonGitPreparer(client, discardLogger())
	result, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
		"backstage.io/techdocs-ref": "github:https://github.com/org/repo",
	}), PrepareOptions{Etag: "stale"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(result.Path) })

	assert.Equal(t, exported, result.Path)
	info, err := os.Stat(result.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCommonGitPreparer_Errors(t *testing.T) {
	t.Parallel()

	cloneErr := errors.New("authentication required")

	tests := []struct {
		name    string
		ref     string
		setup   func(client *mocks.MockClient)
		wantErr string
		wantIs  error
	}{
		{
			name:    "unsupported url scheme",
			ref:     "github:git@github.com:org/repo.git",
			setup:   func(_ *mocks.MockClient) {},
			wantErr: "invalid github location",
		},
		{
			name: "clone failure",
			ref:  "github:https://github.com/org/private",
			setup: func(client *mocks.MockClient) {
				client.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(nil, cloneErr)
			},
			wantErr: "failed to clone https://github.com/org/private",
			wantIs:  cloneErr,
		},
		{
			name: "export failure still cleans up",
			ref:  "gitlab:https://gitlab.com/group/repo/-/tree/main/missing",
			setup: func(client *mocks.MockClient) {
				repoInfo := &git.RepositoryInfo{}
				client.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(repoInfo, nil)
				client.EXPECT().HeadCommit(repoInfo).Return(testCommit, nil)
				client.EXPECT().ExportDirectory(repoInfo, "missing", gomock.Any()).
					Return(0, errors.New("failed to get directory missing"))
				client.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(nil)
			},
			wantErr: "failed to get directory missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			tt.setup(client)

			preparer := newCommonGitPreparer(client, discardLogger())
			_, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
				"backstage.io/techdocs-ref": tt.ref,
			}), PrepareOptions{OutputDir: t.TempDir()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestCommonGitPreparer_AuthenticatedClone(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	repoInfo := &git.RepositoryInfo{}

	client.EXPECT().Clone(gomock.Any(), &git.CloneConfig{
		URL:    "https://gitlab.com/group/repo",
		Branch: "main",
		Auth:   &git.AuthConfig{Username: gitLabTokenUsername, Password: "glpat-secret"},
	}).Return(repoInfo, nil)
	client.EXPECT().HeadCommit(repoInfo).Return(testCommit, nil)
	client.EXPECT().ExportDirectory(repoInfo, "docs", gomock.Any()).Return(1, nil)
	client.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(nil)

	preparer := newCommonGitPreparer(client, discardLogger())
	preparer.credentials = newGitCredentials(config.IntegrationsConfig{
		GitLab: []config.IntegrationConfig{{Host: "gitlab.com", TokenFile: writeToken(t, "glpat-secret\n")}},
	})

	_, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
		"backstage.io/techdocs-ref": "gitlab:https://gitlab.com/group/repo/-/tree/main/docs",
	}), PrepareOptions{OutputDir: t.TempDir()})
	require.NoError(t, err)
}

func TestCommonGitPreparer_MissingTokenSkipsClone(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	preparer := newCommonGitPreparer(client, discardLogger())
	preparer.credentials = newGitCredentials(config.IntegrationsConfig{
		GitHub: []config.IntegrationConfig{{Host: "github.com", TokenFile: filepath.Join(t.TempDir(), "missing")}},
	})

	_, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
		"backstage.io/techdocs-ref": "github:https://github.com/org/repo",
	}), PrepareOptions{OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read token for github.com")
}

func TestCommonGitPreparer_ExportFailureRemovesTempDir(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	repoInfo := &git.RepositoryInfo{}

	var exported string
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(repoInfo, nil)
	client.EXPECT().HeadCommit(repoInfo).Return(testCommit, nil)
	client.EXPECT().ExportDirectory(repoInfo, "missing", gomock.Any()).
		DoAndReturn(func(_ *git.RepositoryInfo, _ string, destDir string) (int, error) {
			exported = destDir
			return 0, errors.New("failed to get directory missing")
		})
	client.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(nil)

	preparer := newCommonGitPreparer(client, discardLogger())
	_, err := preparer.Prepare(t.Context(), newTestEntity(map[string]string{
		"backstage.io/techdocs-ref": "github:https://github.com/org/repo/tree/main/missing",
	}), PrepareOptions{})
	require.Error(t, err)
	require.NotEmpty(t, exported)
	assert.NoDirExists(t, exported)
}

func TestOutputDirectory(t *testing.T) {
	t.Parallel()

	given := t.TempDir()
	dir, discard, err := outputDirectory(given, "techdocs-test-")
	require.NoError(t, err)
	assert.Equal(t, given, dir)
	discard()
	assert.DirExists(t, given, "caller provided directories are never removed")

	dir, discard, err = outputDirectory("", "techdocs-test-")
	require.NoError(t, err)
	assert.DirExists(t, dir)
	discard()
	assert.NoDirExists(t, dir)
}
