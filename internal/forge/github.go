package forge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitHubClient implements Client for GitHub.
type GitHubClient struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

// NewGitHubClient creates a new GitHub client. apiURL defaults to the
// public API when empty; token may be empty for anonymous access to
// public repositories.
func NewGitHubClient(apiURL, token string) *GitHubClient {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		token:      token,
	}
}

// RepoExists checks repository accessibility via the REST API.
func (c *GitHubClient) RepoExists(ctx context.Context, nwo NWO) (bool, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.apiURL, nwo.Owner, nwo.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build repo request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("query repo %s: %w", nwo, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		// GitHub answers 404 for both missing and unauthorized.
		return false, nil
	default:
		return false, fmt.Errorf("query repo %s: unexpected status %s", nwo, resp.Status)
	}
}

// Credentials returns token auth for cloning, or nil when no token is
// configured.
func (c *GitHubClient) Credentials() transport.AuthMethod {
	if c.token == "" {
		return nil
	}
	// GitHub accepts the token as the basic-auth password.
	return &githttp.BasicAuth{Username: "token", Password: c.token}
}
