// Package github implements the REST fetchers for repository metadata.
// Every lookup is independently cacheable; callers decide how to combine
// them and how to react to individual failures.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/infrastructure/cache"
	"github.com/doeshing/gitscope/internal/ports"
)

// ErrNotFound marks a 404 from the upstream API.
var ErrNotFound = errors.New("github: not found")

// Client talks to the GitHub REST API. The response cache is shared across
// WithToken copies; cache keys carry no credentials.
type Client struct {
	apiBase string
	token   string
	httpc   *http.Client
	cache   *cache.Memory
	log     ports.Logger
}

// NewClient builds a client from settings. The token is read from the
// configured environment variable and may be empty for public repositories.
func NewClient(cfg domain.GitHubSettings, log ports.Logger) *Client {
	return &Client{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		token:   os.Getenv(cfg.TokenEnvVar),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		cache:   cache.NewMemory(time.Duration(cfg.CacheTTLSeconds) * time.Second),
		log:     log,
	}
}

// WithToken implements ports.RepoFetcher.
func (c *Client) WithToken(token string) ports.RepoFetcher {
	if token == "" {
		return c
	}
	clone := *c
	clone.token = token
	return &clone
}

func cacheKey(item domain.DataType, key domain.RepoKey) string {
	return string(item) + ":" + key.String()
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("github: %s %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type repoWire struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	OpenIssues    int    `json:"open_issues_count"`
	CreatedAt     string `json:"created_at"`
	PushedAt      string `json:"pushed_at"`
}

// RepoInfo implements ports.RepoFetcher.
func (c *Client) RepoInfo(ctx context.Context, key domain.RepoKey) (*domain.RepoInfo, error) {
	ck := cacheKey(domain.DataRepoInfo, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.(*domain.RepoInfo), nil
	}

	var wire repoWire
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name, &wire); err != nil {
		return nil, err
	}
	info := &domain.RepoInfo{
		FullName:      wire.FullName,
		Description:   wire.Description,
		DefaultBranch: wire.DefaultBranch,
		Language:      wire.Language,
		Stars:         wire.Stars,
		Forks:         wire.Forks,
		OpenIssues:    wire.OpenIssues,
		CreatedAt:     wire.CreatedAt,
		PushedAt:      wire.PushedAt,
	}
	c.cache.Set(ck, info)
	return info, nil
}

// Contributors implements ports.RepoFetcher.
func (c *Client) Contributors(ctx context.Context, key domain.RepoKey) ([]domain.Contributor, error) {
	ck := cacheKey(domain.DataContributors, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.([]domain.Contributor), nil
	}

	var wire []struct {
		Login         string `json:"login"`
		AvatarURL     string `json:"avatar_url"`
		Contributions int    `json:"contributions"`
	}
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contributors?per_page=50", &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Contributor, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Contributor{Login: w.Login, AvatarURL: w.AvatarURL, Contributions: w.Contributions})
	}
	c.cache.Set(ck, out)
	return out, nil
}

// Branches implements ports.RepoFetcher.
func (c *Client) Branches(ctx context.Context, key domain.RepoKey) ([]domain.Branch, error) {
	ck := cacheKey(domain.DataBranches, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.([]domain.Branch), nil
	}

	var wire []struct {
		Name   string `json:"name"`
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/branches?per_page=20", &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Branch, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Branch{Name: w.Name, CommitSHA: w.Commit.SHA})
	}
	c.cache.Set(ck, out)
	return out, nil
}

// Commits implements ports.RepoFetcher. The result is a human-readable
// digest of recent commits, not raw API objects.
func (c *Client) Commits(ctx context.Context, key domain.RepoKey) (string, error) {
	ck := cacheKey(domain.DataCommits, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.(string), nil
	}

	var wire []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name  string `json:"name"`
				Email string `json:"email"`
				Date  string `json:"date"`
			} `json:"author"`
		} `json:"commit"`
	}
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/commits?per_page=50", &wire); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== Recent Commits for %s ===\n\n", key.String())
	for _, w := range wire {
		subject := w.Commit.Message
		if i := strings.IndexByte(subject, '\n'); i >= 0 {
			subject = subject[:i]
		}
		sha := w.SHA
		if len(sha) > 8 {
			sha = sha[:8]
		}
		fmt.Fprintf(&b, "%s\n   SHA: %s\n   Author: %s (%s)\n   Date: %s\n\n",
			subject, sha, w.Commit.Author.Name, w.Commit.Author.Email, w.Commit.Author.Date)
	}
	digest := b.String()
	c.cache.Set(ck, digest)
	return digest, nil
}

// Stats implements ports.RepoFetcher. Total commits are approximated by the
// sum of contributions over the top contributors, which is what the listing
// endpoint can deliver without walking full history.
func (c *Client) Stats(ctx context.Context, key domain.RepoKey) (*domain.RepoStats, error) {
	ck := cacheKey(domain.DataStats, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.(*domain.RepoStats), nil
	}

	info, err := c.RepoInfo(ctx, key)
	if err != nil {
		return nil, err
	}

	var contribs []struct {
		Contributions int `json:"contributions"`
	}
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contributors?per_page=100", &contribs); err != nil {
		return nil, err
	}
	totalCommits := 0
	for _, w := range contribs {
		totalCommits += w.Contributions
	}

	stats := &domain.RepoStats{
		Stars:        info.Stars,
		TotalIssues:  info.OpenIssues,
		TotalCommits: totalCommits,
		AgeInYears:   ageInYears(info.CreatedAt, time.Now()),
	}
	c.cache.Set(ck, stats)
	return stats, nil
}

// ageInYears returns the repository age rounded to one decimal place.
func ageInYears(createdAt string, now time.Time) float64 {
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return 0
	}
	years := now.Sub(created).Hours() / (365.25 * 24)
	return float64(int(years*10+0.5)) / 10
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var _ ports.RepoFetcher = (*Client)(nil)
