// Package github provides the upstream API client, token validation and
// diff-statistics resolution.
package github

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub API with per-tenant token clients and bounded
// call timeouts.
type Client struct {
	baseURL         string
	compareTimeout  time.Duration
	validateTimeout time.Duration
}

// NewClient creates a new GitHub API client.
func NewClient(compareTimeout, validateTimeout time.Duration) *Client {
	return &Client{
		compareTimeout:  compareTimeout,
		validateTimeout: validateTimeout,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// clientFor builds an API client authenticated with the given token. An
// empty token yields an unauthenticated client with lower rate limits.
func (c *Client) clientFor(ctx context.Context, token string) (*gh.Client, error) {
	var client *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = gh.NewClient(nil)
	}
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// ValidateToken checks a token against the identity endpoint and returns
// the authenticated login.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.validateTimeout)
	defer cancel()

	client, err := c.clientFor(ctx, token)
	if err != nil {
		return "", err
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to validate token: %w", err)
	}
	return user.GetLogin(), nil
}

// FileDelta holds per-file change statistics from the compare API.
type FileDelta struct {
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status"`
}

// Compare fetches exact per-file statistics between two revisions. The
// second return value is the HTTP status of the upstream response, 0 when
// the call never completed.
func (c *Client) Compare(ctx context.Context, token, owner, repo, before, after string) (map[string]FileDelta, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.compareTimeout)
	defer cancel()

	client, err := c.clientFor(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	comp, resp, err := client.Repositories.CompareCommits(ctx, owner, repo, before, after, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, status, err
	}

	// A file renamed-and-modified still arrives with a single status; each
	// file is counted exactly once under it.
	files := make(map[string]FileDelta, len(comp.Files))
	for _, f := range comp.Files {
		files[f.GetFilename()] = FileDelta{
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Status:    f.GetStatus(),
		}
	}
	return files, resp.StatusCode, nil
}
