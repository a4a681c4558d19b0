package reader

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts per request
	DefaultMaxRetries = 3

	// MaxResponseSize is the maximum allowed response size (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "techdocs-preparer/1.0"

	// defaultFileName names the single file of a tree read from a URL without a path
	defaultFileName = "index.html"
)

// Option configures the HTTP reader
type Option func(*httpReader)

// WithTimeout sets the per-request timeout. Zero keeps the default.
func WithTimeout(timeout time.Duration) Option {
	return func(r *httpReader) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

// WithMaxRetries sets the maximum number of attempts per request. Zero keeps the default.
func WithMaxRetries(maxRetries uint) Option {
	return func(r *httpReader) {
		if maxRetries > 0 {
			r.maxRetries = maxRetries
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(r *httpReader) {
		if client != nil {
			r.client = client
		}
	}
}

// WithBackOff replaces the retry back-off policy
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(r *httpReader) {
		if newBackOff != nil {
			r.newBackOff = newBackOff
		}
	}
}

// httpReader is the default URLReader implementation
type httpReader struct {
	client     *http.Client
	maxRetries uint
	newBackOff func() backoff.BackOff
}

var _ URLReader = (*httpReader)(nil)

// NewHTTPReader creates a URLReader that fetches content over HTTP(S)
func NewHTTPReader(opts ...Option) URLReader {
	r := &httpReader{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// response is a successful fetch
type response struct {
	body        []byte
	etag        string
	contentType string
}

// Read returns the raw content behind rawURL
func (r *httpReader) Read(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := parseURL(rawURL); err != nil {
		return nil, err
	}

	resp, err := r.fetch(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// ReadTree returns the tree of files behind rawURL
func (r *httpReader) ReadTree(ctx context.Context, rawURL string, opts ReadTreeOptions) (*ReadTreeResponse, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := r.fetch(ctx, u.String(), opts.Etag)
	if err != nil {
		return nil, err
	}

	etag := resp.etag
	if etag == "" {
		// Servers without ETag support get a content hash instead
		etag = fmt.Sprintf("%x", sha256.Sum256(resp.body))
		if opts.Etag != "" && opts.Etag == etag {
			return nil, ErrNotModified
		}
	}

	var files []File
	switch format := detectArchive(u.Path, resp.contentType); format {
	case archiveNone:
		files = []File{{Path: fileNameFromPath(u.Path), Content: resp.body}}
	default:
		files, err = extractArchive(format, resp.body)
		if err != nil {
			return nil, fmt.Errorf("failed to extract archive from %s: %w", rawURL, err)
		}
	}

	slog.Debug("Read tree", "url", rawURL, "files", len(files), "etag", etag)

	return &ReadTreeResponse{
		Files: files,
		Etag:  etag,
	}, nil
}

// fetch performs a GET with retries
func (r *httpReader) fetch(ctx context.Context, rawURL string, etag string) (*response, error) {
	operation := func() (*response, error) {
		resp, err := r.get(ctx, rawURL, etag)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("Retrying request", "url", rawURL, "error", err, "wait", wait.String())
	}

	startTime := time.Now()
	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxRetries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if !errors.Is(err, ErrNotModified) {
			slog.Debug("Request failed", "url", rawURL, "error", err, "duration", time.Since(startTime).String())
		}
		return nil, err
	}

	slog.Debug("Request completed",
		"url", rawURL,
		"duration", time.Since(startTime).String(),
		"response_size_bytes", len(resp.body))

	return resp, nil
}

// get performs a single HTTP GET request
func (r *httpReader) get(ctx context.Context, rawURL string, etag string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("User-Agent", UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	// Execute request
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}

	// Check status code
	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, rawURL, resp.Status)
	}

	// Check Content-Length header if available
	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d bytes (%.2f MB)",
			ErrResponseTooLarge, resp.ContentLength, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	// Use LimitReader to prevent reading more than MaxResponseSize
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1) // +1 to detect if limit exceeded
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Check if we hit the limit (read more than MaxResponseSize)
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w: limit is %d bytes (%.2f MB)",
			ErrResponseTooLarge, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	return &response{
		body:        body,
		etag:        resp.Header.Get("ETag"),
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

// isRetryable reports whether a failed request may succeed when repeated
func isRetryable(err error) bool {
	if errors.Is(err, ErrNotModified) || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// Size limit violations will not go away
	return !errors.Is(err, ErrResponseTooLarge)
}

// parseURL validates that rawURL is an absolute http(s) URL
func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", rawURL)
	}
	return u, nil
}

// fileNameFromPath names the single file of a non-archive tree
func fileNameFromPath(p string) string {
	name := path.Base(p)
	if name == "/" || name == "." || name == "" {
		return defaultFileName
	}
	return name
}
