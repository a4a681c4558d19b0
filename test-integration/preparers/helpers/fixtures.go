// Package helpers provides fixtures for the preparer integration tests.
package helpers

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/onsi/gomega"

	"github.com/stacklok/techdocs-preparer/internal/entity"
)

// NewEntity returns a component entity whose documentation lives at ref
func NewEntity(name string, ref string) *entity.Entity {
	return &entity.Entity{
		APIVersion: "backstage.io/v1alpha1",
		Kind:       "Component",
		Metadata: entity.Metadata{
			Name: name,
			Annotations: map[string]string{
				entity.TechDocsRefAnnotation: ref,
			},
		},
	}
}

// WriteDocsTree writes files below dir, creating parent directories
func WriteDocsTree(dir string, files map[string]string) {
	for name, content := range files {
		target := filepath.Join(dir, filepath.FromSlash(name))
		gomega.Expect(os.MkdirAll(filepath.Dir(target), 0750)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(target, []byte(content), 0600)).To(gomega.Succeed())
	}
}

// ReadDocsTree returns every regular file below dir keyed by slash separated path
func ReadDocsTree(dir string) map[string]string {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		//nolint:gosec // Test fixture paths come from a temporary directory
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return files
}

// DocsServer serves a documentation tree as a tar.gz archive with an ETag
type DocsServer struct {
	*httptest.Server

	archive  atomic.Pointer[[]byte]
	requests atomic.Int32
}

// NewDocsServer starts a server publishing files under root/ in docs.tar.gz
func NewDocsServer(root string, files map[string]string) *DocsServer {
	s := &DocsServer{}
	s.Publish(root, files)
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Publish replaces the served archive
func (s *DocsServer) Publish(root string, files map[string]string) {
	archive := buildTarGz(root, files)
	s.archive.Store(&archive)
}

// ArchiveURL is the URL of the served archive
func (s *DocsServer) ArchiveURL() string {
	return s.URL + "/docs.tar.gz"
}

// Requests is the number of requests served so far
func (s *DocsServer) Requests() int32 {
	return s.requests.Load()
}

func (s *DocsServer) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	if r.URL.Path != "/docs.tar.gz" {
		http.NotFound(w, r)
		return
	}

	archive := *s.archive.Load()
	etag := fmt.Sprintf(`"%x"`, sha256.Sum256(archive))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/gzip")
	_, _ = w.Write(archive)
}

func buildTarGz(root string, files map[string]string) []byte {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		content := files[name]
		gomega.Expect(tw.WriteHeader(&tar.Header{
			Name:     root + "/" + name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		})).To(gomega.Succeed())
		_, err := tw.Write([]byte(content))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	}
	gomega.Expect(tw.Close()).To(gomega.Succeed())
	gomega.Expect(gz.Close()).To(gomega.Succeed())
	return buf.Bytes()
}
