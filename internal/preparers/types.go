package preparers

import (
	"context"

	"github.com/stacklok/techdocs-preparer/internal/entity"
	"github.com/stacklok/techdocs-preparer/internal/reader"
)

// RemoteProtocol identifies a class of documentation source locations
type RemoteProtocol string

const (
	// ProtocolDir is a directory relative to the entity descriptor
	ProtocolDir RemoteProtocol = "dir"

	// ProtocolGitHub is a GitHub repository URL
	ProtocolGitHub RemoteProtocol = "github"

	// ProtocolGitLab is a GitLab repository URL
	ProtocolGitLab RemoteProtocol = "gitlab"

	// ProtocolAzure is an Azure DevOps repository URL
	ProtocolAzure RemoteProtocol = "azure/api"

	// ProtocolURL is any URL understood by the URL reader
	ProtocolURL RemoteProtocol = "url"
)

// ErrNotModified is returned by Prepare when the content still matches the
// etag given in PrepareOptions
var ErrNotModified = reader.ErrNotModified

//go:generate mockgen -destination=mocks/mock_preparer.go -package=mocks -source=types.go Preparer

// Preparer materializes the documentation source of an entity
type Preparer interface {
	// Prepare fetches the content referenced by the entity's techdocs-ref
	// annotation and returns where it was placed
	Prepare(ctx context.Context, e *entity.Entity, opts PrepareOptions) (*PrepareResult, error)
}

// PrepareOptions tunes a single Prepare call
type PrepareOptions struct {
	// OutputDir is where remote content is written. A temporary directory is
	// created when empty. Preparers for local content may ignore it.
	OutputDir string

	// Etag from a previous Prepare of the same entity
	Etag string
}

// PrepareResult describes materialized content
type PrepareResult struct {
	// Path is the local directory holding the content
	Path string `json:"path"`

	// Etag identifies the prepared version, empty when the preparer cannot tell
	Etag string `json:"etag,omitempty"`
}
