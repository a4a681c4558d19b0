// Package gitref parses the browser URLs of git hosting providers into the
// pieces needed to clone a repository and locate a directory inside it.
//
// Supported shapes:
//
//	https://github.com/{owner}/{repo}/tree/{ref}/{path}
//	https://gitlab.com/{group}/{subgroup}/{repo}/-/tree/{ref}/{path}
//	https://dev.azure.com/{org}/{project}/_git/{repo}?path=/{path}&version=GB{ref}
//	https://git.example.com/any/repo.git
package gitref

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	// ProviderGitHub identifies github style URLs
	ProviderGitHub = "github"

	// ProviderGitLab identifies gitlab style URLs
	ProviderGitLab = "gitlab"

	// ProviderAzure identifies Azure DevOps style URLs
	ProviderAzure = "azure"

	// ProviderGeneric identifies plain clone URLs
	ProviderGeneric = "generic"
)

var commitSHAPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Location is a parsed git hosting URL
type Location struct {
	// Provider is one of the Provider constants
	Provider string

	// CloneURL is the URL to hand to git
	CloneURL string

	// Branch is the branch name, when the URL names one
	Branch string

	// Tag is the tag name, when the URL names one explicitly
	Tag string

	// Commit is the full commit SHA, when the URL names one
	Commit string

	// Path is the slash separated directory inside the repository, without a leading slash
	Path string
}

// Parse parses a provider browser URL
func Parse(rawURL string) (*Location, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("git URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid git URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported git URL scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("git URL %q has no host", rawURL)
	}

	segments := splitPath(u.Path)

	switch {
	case indexOf(segments, "_git") >= 0:
		return parseAzure(u, segments)
	case indexOf(segments, "-") >= 0:
		return parseGitLab(u, segments)
	case isGitHubHost(u.Host) || hasGitHubTreeMarker(segments):
		return parseGitHub(u, segments)
	case strings.Contains(u.Host, "gitlab"):
		return parseGitLab(u, segments)
	default:
		return &Location{
			Provider: ProviderGeneric,
			CloneURL: baseURL(u, segments),
		}, nil
	}
}

// parseGitHub handles /{owner}/{repo}[/(tree|blob)/{ref}/{path...}]
func parseGitHub(u *url.URL, segments []string) (*Location, error) {
	if len(segments) < 2 {
		return nil, fmt.Errorf("github URL %q must name an owner and a repository", u.String())
	}

	loc := &Location{
		Provider: ProviderGitHub,
		CloneURL: baseURL(u, segments[:2]),
	}

	rest := segments[2:]
	if len(rest) == 0 {
		return loc, nil
	}
	if rest[0] != "tree" && rest[0] != "blob" {
		return nil, fmt.Errorf("github URL %q must use /tree/ or /blob/ to reference a path", u.String())
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("github URL %q is missing a ref after /%s/", u.String(), rest[0])
	}

	loc.setRef(rest[1])
	loc.Path = path.Join(rest[2:]...)
	return loc, nil
}

// parseGitLab handles /{group...}/{repo}[/-/(tree|blob)/{ref}/{path...}]
func parseGitLab(u *url.URL, segments []string) (*Location, error) {
	marker := indexOf(segments, "-")
	repoSegments := segments
	if marker >= 0 {
		repoSegments = segments[:marker]
	}
	if len(repoSegments) < 2 {
		return nil, fmt.Errorf("gitlab URL %q must name a group and a repository", u.String())
	}

	loc := &Location{
		Provider: ProviderGitLab,
		CloneURL: baseURL(u, repoSegments),
	}

	if marker < 0 {
		return loc, nil
	}

	rest := segments[marker+1:]
	if len(rest) < 2 || (rest[0] != "tree" && rest[0] != "blob") {
		return nil, fmt.Errorf("gitlab URL %q must use /-/tree/{ref} to reference a path", u.String())
	}

	loc.setRef(rest[1])
	loc.Path = path.Join(rest[2:]...)
	return loc, nil
}

// parseAzure handles /{org}/{project}/_git/{repo}?path=...&version=G{B,T,C}...
func parseAzure(u *url.URL, segments []string) (*Location, error) {
	marker := indexOf(segments, "_git")
	if marker < 1 || marker+1 >= len(segments) {
		return nil, fmt.Errorf("azure URL %q must have the form {org}/{project}/_git/{repo}", u.String())
	}

	loc := &Location{
		Provider: ProviderAzure,
		CloneURL: baseURL(u, segments[:marker+2]),
		Path:     strings.Trim(path.Clean("/"+u.Query().Get("path")), "/"),
	}

	version := u.Query().Get("version")
	if version == "" {
		return loc, nil
	}
	if len(version) < 3 {
		return nil, fmt.Errorf("azure URL %q has an invalid version %q", u.String(), version)
	}

	value := version[2:]
	switch version[:2] {
	case "GB":
		loc.Branch = value
	case "GT":
		loc.Tag = value
	case "GC":
		loc.Commit = value
	default:
		return nil, fmt.Errorf("azure URL %q has an unsupported version type %q", u.String(), version[:2])
	}

	return loc, nil
}

// setRef stores a ref that may be either a branch, a tag, or a commit
func (l *Location) setRef(ref string) {
	if commitSHAPattern.MatchString(ref) {
		l.Commit = ref
		return
	}
	l.Branch = ref
}

// splitPath splits a URL path into its non-empty segments
func splitPath(p string) []string {
	var segments []string
	for _, segment := range strings.Split(p, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// baseURL rebuilds a clone URL from the scheme, host and the given path segments
func baseURL(u *url.URL, segments []string) string {
	clone := url.URL{
		Scheme: u.Scheme,
		User:   u.User,
		Host:   u.Host,
		Path:   "/" + strings.Join(segments, "/"),
	}
	return clone.String()
}

func indexOf(segments []string, value string) int {
	for i, segment := range segments {
		if segment == value {
			return i
		}
	}
	return -1
}

func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	return host == "github.com" || strings.HasPrefix(host, "github.")
}

func hasGitHubTreeMarker(segments []string) bool {
	return len(segments) >= 4 && (segments[2] == "tree" || segments[2] == "blob")
}
