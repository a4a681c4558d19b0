package preparers_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/preparers"
	readermocks "github.com/stacklok/techdocs-preparer/internal/reader/mocks"
)

func TestFromConfig_DefaultRegistry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	registry, err := preparers.FromConfig(t.Context(), config.NewDefaultConfig(), preparers.Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Reader: readermocks.NewMockURLReader(ctrl),
	})
	require.NoError(t, err)

	refs := map[preparers.RemoteProtocol]string{
		preparers.ProtocolDir:    "dir:./docs",
		preparers.ProtocolGitHub: "github:https://github.com/org/repo/tree/main/docs",
		preparers.ProtocolGitLab: "gitlab:https://gitlab.com/group/repo/-/tree/main/docs",
		preparers.ProtocolAzure:  "azure/api:https://dev.azure.com/org/project/_git/repo?path=/docs",
		preparers.ProtocolURL:    "url:https://example.com/docs.tar.gz",
	}

	resolved := make(map[preparers.RemoteProtocol]preparers.Preparer, len(refs))
	for protocol, ref := range refs {
		preparer, err := registry.Get(entityWithRef(ref))
		require.NoError(t, err, "protocol %s", protocol)
		require.NotNil(t, preparer)
		resolved[protocol] = preparer
	}

	git := resolved[preparers.ProtocolGitHub]
	assert.Same(t, git, resolved[preparers.ProtocolGitLab])
	assert.Same(t, git, resolved[preparers.ProtocolAzure])
	assert.IsType(t, &preparers.CommonGitPreparer{}, git)

	assert.IsType(t, &preparers.DirectoryPreparer{}, resolved[preparers.ProtocolDir])
	assert.IsType(t, &preparers.URLPreparer{}, resolved[preparers.ProtocolURL])
	assert.NotSame(t, resolved[preparers.ProtocolDir], resolved[preparers.ProtocolURL])
	assert.NotSame(t, git, resolved[preparers.ProtocolDir])
	assert.NotSame(t, git, resolved[preparers.ProtocolURL])

	assert.Equal(t, []preparers.RemoteProtocol{"azure/api", "dir", "github", "gitlab", "url"}, registry.Protocols())

	_, err = registry.Get(entityWithRef("ftp:ftp.example.com/docs"))
	var notRegistered *preparers.NotRegisteredError
	require.ErrorAs(t, err, &notRegistered)
	assert.Equal(t, preparers.RemoteProtocol("ftp"), notRegistered.Protocol)
}

func TestFromConfig_Dependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.Config
		deps    func(ctrl *gomock.Controller) preparers.Dependencies
		wantErr string
	}{
		{
			name: "nil logger and nil config",
			deps: func(ctrl *gomock.Controller) preparers.Dependencies {
				return preparers.Dependencies{Reader: readermocks.NewMockURLReader(ctrl)}
			},
		},
		{
			name: "missing reader fails url preparer construction",
			cfg:  config.NewDefaultConfig(),
			deps: func(_ *gomock.Controller) preparers.Dependencies {
				return preparers.Dependencies{}
			},
			wantErr: "url preparer requires a URL reader",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			registry, err := preparers.FromConfig(t.Context(), tt.cfg, tt.deps(ctrl))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Nil(t, registry)
				return
			}
			require.NoError(t, err)
			assert.Len(t, registry.Protocols(), 5)
		})
	}
}
