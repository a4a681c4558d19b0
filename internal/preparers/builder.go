package preparers

import (
	"context"
	"log/slog"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/reader"
)

// Dependencies are the collaborators shared by the default preparers
type Dependencies struct {
	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// Reader is required by the URL preparer
	Reader reader.URLReader
}

// FromConfig builds a registry holding the default preparers:
//
//	dir                       directory preparer
//	github, gitlab, azure/api one shared git preparer
//	url                       URL preparer
//
// cfg is handed to every constructor unchanged; the git preparer reads its
// integrations for clone credentials. Constructor errors are returned as is.
func FromConfig(_ context.Context, cfg *config.Config, deps Dependencies) (*Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry()

	dirPreparer, err := NewDirectoryPreparer(cfg, logger)
	if err != nil {
		return nil, err
	}
	registry.Register(ProtocolDir, dirPreparer)

	gitPreparer, err := NewCommonGitPreparer(cfg, logger)
	if err != nil {
		return nil, err
	}
	for _, protocol := range []RemoteProtocol{ProtocolGitHub, ProtocolGitLab, ProtocolAzure} {
		registry.Register(protocol, gitPreparer)
	}

	urlPreparer, err := NewURLPreparer(cfg, deps.Reader, logger)
	if err != nil {
		return nil, err
	}
	registry.Register(ProtocolURL, urlPreparer)

	logger.Debug("Preparers registered", "protocols", registry.Protocols())

	return registry, nil
}
