package integration

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/techdocs-preparer/internal/entity"
	"github.com/stacklok/techdocs-preparer/internal/preparers"
	"github.com/stacklok/techdocs-preparer/test-integration/preparers/helpers"
)

var _ = Describe("Default registry", Label("registry"), func() {
	var registry *preparers.Registry

	BeforeEach(func() {
		registry = newDefaultRegistry()
	})

	It("should serve every default protocol", func() {
		Expect(registry.Protocols()).To(Equal([]preparers.RemoteProtocol{
			preparers.ProtocolAzure,
			preparers.ProtocolDir,
			preparers.ProtocolGitHub,
			preparers.ProtocolGitLab,
			preparers.ProtocolURL,
		}))
	})

	It("should share one git preparer across git protocols", func() {
		github, err := registry.Lookup(preparers.ProtocolGitHub)
		Expect(err).NotTo(HaveOccurred())
		gitlab, err := registry.Lookup(preparers.ProtocolGitLab)
		Expect(err).NotTo(HaveOccurred())
		azure, err := registry.Lookup(preparers.ProtocolAzure)
		Expect(err).NotTo(HaveOccurred())

		Expect(gitlab).To(BeIdenticalTo(github))
		Expect(azure).To(BeIdenticalTo(github))
	})

	It("should reject protocols without a preparer", func() {
		_, err := registry.Get(helpers.NewEntity("legacy", "ftp:ftp.example.com/docs"))
		Expect(err).To(MatchError(preparers.ErrNotRegistered))

		var notRegistered *preparers.NotRegisteredError
		Expect(err).To(BeAssignableToTypeOf(notRegistered))
		Expect(err.(*preparers.NotRegisteredError).Protocol).To(Equal(preparers.RemoteProtocol("ftp")))
	})

	It("should surface entities without a usable annotation", func() {
		_, err := registry.Get(helpers.NewEntity("broken", "no-separator"))
		Expect(err).To(MatchError(entity.ErrUnrecognizedProtocol))
	})
})

var _ = Describe("Directory preparer", Label("dir"), func() {
	var (
		tempDir  string
		registry *preparers.Registry
	)

	BeforeEach(func() {
		tempDir = createTempDir("dir-preparer-")
		registry = newDefaultRegistry()

		helpers.WriteDocsTree(tempDir, map[string]string{
			"catalog-info.yaml":    "kind: Component",
			"mkdocs.yml":           "site_name: payments",
			"docs/index.md":        "# Payments",
			"docs/guides/setup.md": "# Setup",
		})
	})

	AfterEach(func() {
		cleanupTempDir(tempDir)
	})

	It("should resolve the directory next to the entity descriptor", func() {
		e := helpers.NewEntity("payments", "dir:.")
		e.Metadata.Annotations[entity.ManagedByLocationAnnotation] = "file:" + filepath.Join(tempDir, "catalog-info.yaml")

		preparer, err := registry.Get(e)
		Expect(err).NotTo(HaveOccurred())

		result, err := preparer.Prepare(ctx, e, preparers.PrepareOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Path).To(Equal(tempDir))
		Expect(helpers.ReadDocsTree(result.Path)).To(HaveKeyWithValue("docs/guides/setup.md", "# Setup"))
	})

	It("should refuse descriptors read from a URL", func() {
		e := helpers.NewEntity("payments", "dir:./docs")
		e.Metadata.Annotations[entity.ManagedByLocationAnnotation] = "url:https://example.com/catalog-info.yaml"

		preparer, err := registry.Get(e)
		Expect(err).NotTo(HaveOccurred())

		_, err = preparer.Prepare(ctx, e, preparers.PrepareOptions{})
		Expect(err).To(MatchError(ContainSubstring("managed by url location")))
	})
})

var _ = Describe("URL preparer", Label("url"), func() {
	var (
		outputDir string
		server    *helpers.DocsServer
		registry  *preparers.Registry
		files     map[string]string
	)

	BeforeEach(func() {
		outputDir = createTempDir("url-preparer-")
		registry = newDefaultRegistry()

		files = map[string]string{
			"mkdocs.yml":    "site_name: payments",
			"docs/index.md": "# Payments",
		}
		server = helpers.NewDocsServer("payments-main", files)
	})

	AfterEach(func() {
		server.Close()
		cleanupTempDir(outputDir)
	})

	It("should download and unpack the archive", func() {
		e := helpers.NewEntity("payments", "url:"+server.ArchiveURL())

		preparer, err := registry.Get(e)
		Expect(err).NotTo(HaveOccurred())

		result, err := preparer.Prepare(ctx, e, preparers.PrepareOptions{OutputDir: outputDir})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Path).To(Equal(outputDir))
		Expect(result.Etag).NotTo(BeEmpty())
		Expect(helpers.ReadDocsTree(outputDir)).To(Equal(files))
	})

	It("should report unchanged content for a matching etag", func() {
		e := helpers.NewEntity("payments", "url:"+server.ArchiveURL())
		preparer, err := registry.Get(e)
		Expect(err).NotTo(HaveOccurred())

		first, err := preparer.Prepare(ctx, e, preparers.PrepareOptions{OutputDir: outputDir})
		Expect(err).NotTo(HaveOccurred())

		By("preparing again with the returned etag")
		secondDir := filepath.Join(outputDir, "second")
		_, err = preparer.Prepare(ctx, e, preparers.PrepareOptions{OutputDir: secondDir, Etag: first.Etag})
		Expect(err).To(MatchError(preparers.ErrNotModified))
		_, statErr := os.Stat(secondDir)
		Expect(os.IsNotExist(statErr)).To(BeTrue())

		By("publishing new content")
		server.Publish("payments-main", map[string]string{
			"mkdocs.yml":    "site_name: payments",
			"docs/index.md": "# Payments v2",
		})
		third, err := preparer.Prepare(ctx, e, preparers.PrepareOptions{OutputDir: secondDir, Etag: first.Etag})
		Expect(err).NotTo(HaveOccurred())
		Expect(third.Etag).NotTo(Equal(first.Etag))
		Expect(helpers.ReadDocsTree(secondDir)).To(HaveKeyWithValue("docs/index.md", "# Payments v2"))
		Expect(server.Requests()).To(BeNumerically("==", 3))
	})

	It("should fail for missing documents without retrying", func() {
		e := helpers.NewEntity("payments", "url:"+server.URL+"/missing.tar.gz")
		preparer, err := registry.Get(e)
		Expect(err).NotTo(HaveOccurred())

		_, err = preparer.Prepare(ctx, e, preparers.PrepareOptions{OutputDir: outputDir})
		Expect(err).To(MatchError(ContainSubstring("HTTP 404")))
		Expect(server.Requests()).To(BeNumerically("==", 1))
	})
})
