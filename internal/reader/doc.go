// Package reader provides the URL reading capability handed to the url
// preparer.
//
// The default implementation fetches over HTTP(S) and:
//   - sends If-None-Match for a previously seen etag and maps 304 to ErrNotModified
//   - retries transport errors, 429 and 5xx responses with exponential backoff
//   - caps response bodies at MaxResponseSize
//   - unpacks .tar.gz/.tgz, .tar and .zip archives into a file tree, dropping
//     a single shared top-level directory
//
// Content that is not an archive is returned as a tree holding one file
// named after the last segment of the URL path.
package reader
