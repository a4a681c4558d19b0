package reader

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const (
	// MaxTreeFiles is the maximum number of files extracted from an archive
	MaxTreeFiles = 10 * 1000

	// MaxTreeSize is the maximum number of bytes extracted from an archive (100MB)
	MaxTreeSize = 100 * 1024 * 1024
)

type archiveFormat int

const (
	archiveNone archiveFormat = iota
	archiveTarGz
	archiveTar
	archiveZip
)

// detectArchive picks the archive format from the URL path, then the content type
func detectArchive(urlPath string, contentType string) archiveFormat {
	lower := strings.ToLower(urlPath)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return archiveTarGz
	case strings.HasSuffix(lower, ".tar"):
		return archiveTar
	case strings.HasSuffix(lower, ".zip"):
		return archiveZip
	}

	mediaType, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	switch strings.TrimSpace(mediaType) {
	case "application/gzip", "application/x-gzip", "application/x-tar+gzip":
		return archiveTarGz
	case "application/x-tar":
		return archiveTar
	case "application/zip", "application/x-zip-compressed":
		return archiveZip
	}

	return archiveNone
}

// extractArchive unpacks data into a flat list of files
func extractArchive(format archiveFormat, data []byte) ([]File, error) {
	var (
		files []File
		err   error
	)

	switch format {
	case archiveTarGz:
		gz, gzErr := gzip.NewReader(bytes.NewReader(data))
		if gzErr != nil {
			return nil, fmt.Errorf("invalid gzip stream: %w", gzErr)
		}
		defer func() {
			_ = gz.Close()
		}()
		files, err = extractTar(gz)
	case archiveTar:
		files, err = extractTar(bytes.NewReader(data))
	case archiveZip:
		files, err = extractZip(data)
	default:
		return nil, fmt.Errorf("unsupported archive format")
	}
	if err != nil {
		return nil, err
	}

	return stripCommonRoot(files), nil
}

// treeLimits tracks how much an extraction has produced so far
type treeLimits struct {
	files int
	bytes int64
}

func (l *treeLimits) add(size int64) error {
	l.files++
	l.bytes += size
	if l.files > MaxTreeFiles {
		return fmt.Errorf("archive contains more than %d files", MaxTreeFiles)
	}
	if l.bytes > MaxTreeSize {
		return fmt.Errorf("archive expands to more than %d bytes", MaxTreeSize)
	}
	return nil
}

func extractTar(r io.Reader) ([]File, error) {
	var (
		files  []File
		limits treeLimits
	)

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid tar archive: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		name, ok := cleanEntryName(header.Name)
		if !ok {
			return nil, fmt.Errorf("archive entry escapes the tree root: %s", header.Name)
		}

		if err := limits.add(header.Size); err != nil {
			return nil, err
		}

		content, err := io.ReadAll(io.LimitReader(tr, header.Size))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		files = append(files, File{Path: name, Content: content})
	}
}

func extractZip(data []byte) ([]File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip archive: %w", err)
	}

	var (
		files  []File
		limits treeLimits
	)

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || !entry.Mode().IsRegular() {
			continue
		}

		name, ok := cleanEntryName(entry.Name)
		if !ok {
			return nil, fmt.Errorf("archive entry escapes the tree root: %s", entry.Name)
		}

		// #nosec G115 -- uncompressed sizes above int64 max are rejected by the limit
		if err := limits.add(int64(entry.UncompressedSize64)); err != nil {
			return nil, err
		}

		content, err := readZipEntry(entry)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Path: name, Content: content})
	}

	return files, nil
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	content, err := io.ReadAll(io.LimitReader(rc, MaxTreeSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry.Name, err)
	}
	return content, nil
}

// cleanEntryName normalizes an archive entry name and rejects names leaving the root
func cleanEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// stripCommonRoot drops a top-level directory shared by every file, as
// produced by provider archive downloads such as repo-main/...
func stripCommonRoot(files []File) []File {
	if len(files) == 0 {
		return files
	}

	root, _, found := strings.Cut(files[0].Path, "/")
	if !found {
		return files
	}
	prefix := root + "/"
	for _, f := range files[1:] {
		if !strings.HasPrefix(f.Path, prefix) {
			return files
		}
	}

	stripped := make([]File, len(files))
	for i, f := range files {
		stripped[i] = File{Path: strings.TrimPrefix(f.Path, prefix), Content: f.Content}
	}
	return stripped
}
