package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotModified is returned when the caller's etag still matches the remote content
var ErrNotModified = errors.New("not modified")

// ErrResponseTooLarge is returned when a response exceeds MaxResponseSize
var ErrResponseTooLarge = errors.New("response exceeds maximum allowed size")

//go:generate mockgen -destination=mocks/mock_reader.go -package=mocks -source=types.go URLReader

// URLReader reads remote content addressed by URL
type URLReader interface {
	// Read returns the raw content behind url
	Read(ctx context.Context, url string) ([]byte, error)

	// ReadTree returns the tree of files behind url. Archives are unpacked,
	// any other content becomes a single file tree.
	ReadTree(ctx context.Context, url string, opts ReadTreeOptions) (*ReadTreeResponse, error)
}

// ReadTreeOptions tunes a ReadTree call
type ReadTreeOptions struct {
	// Etag of a previous read. When the content is unchanged ReadTree
	// returns ErrNotModified.
	Etag string
}

// File is a single file of a tree
type File struct {
	// Path is slash separated and relative to the tree root
	Path    string
	Content []byte
}

// ReadTreeResponse is the result of a ReadTree call
type ReadTreeResponse struct {
	Files []File

	// Etag identifies this version of the tree
	Etag string
}

// Dir writes the tree below targetDir and returns targetDir
func (r *ReadTreeResponse) Dir(ctx context.Context, targetDir string) (string, error) {
	if targetDir == "" {
		return "", fmt.Errorf("target directory cannot be empty")
	}

	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create target directory: %w", err)
	}

	for _, f := range r.Files {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		rel := filepath.FromSlash(f.Path)
		if !filepath.IsLocal(rel) {
			return "", fmt.Errorf("refusing to write file outside target directory: %s", f.Path)
		}

		target := filepath.Join(targetDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(target, f.Content, 0600); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}

	return targetDir, nil
}

// HTTPError represents an unexpected HTTP response
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}
