package preparers

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/git"
)

// Usernames providers expect alongside an access token over HTTP basic auth
const (
	gitHubTokenUsername = "x-access-token"
	gitLabTokenUsername = "oauth2"
	azureTokenUsername  = "pat"
)

// gitCredential is the token source configured for one host
type gitCredential struct {
	username  string
	tokenFile string
}

// gitCredentials maps lower case host names to their credential
type gitCredentials map[string]gitCredential

// newGitCredentials collects the integrations that carry a token file.
// Integrations without one clone anonymously.
func newGitCredentials(integrations config.IntegrationsConfig) gitCredentials {
	credentials := make(gitCredentials)
	add := func(username string, entries []config.IntegrationConfig) {
		for _, integration := range entries {
			if integration.TokenFile == "" {
				continue
			}
			credentials[strings.ToLower(integration.Host)] = gitCredential{
				username:  username,
				tokenFile: integration.TokenFile,
			}
		}
	}
	add(gitHubTokenUsername, integrations.GitHub)
	add(gitLabTokenUsername, integrations.GitLab)
	add(azureTokenUsername, integrations.Azure)
	return credentials
}

// auth returns the clone credentials for cloneURL, or nil when its host has
// no token configured. The token file is read on every call so rotated
// tokens are picked up.
func (c gitCredentials) auth(cloneURL string) (*git.AuthConfig, error) {
	if len(c) == 0 {
		return nil, nil
	}

	u, err := url.Parse(cloneURL)
	if err != nil {
		return nil, fmt.Errorf("invalid clone URL %s: %w", cloneURL, err)
	}

	host := strings.ToLower(u.Hostname())
	credential, ok := c[host]
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(credential.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token for %s: %w", host, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, fmt.Errorf("token file for %s is empty", host)
	}

	return &git.AuthConfig{
		Username: credential.username,
		Password: token,
	}, nil
}
