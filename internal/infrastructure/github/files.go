package github

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/doeshing/gitscope/internal/domain"
)

// keyFileCandidates is the probe list for well-known repository files,
// grouped by what they tell a reader about the project.
var keyFileCandidates = []domain.KeyFile{
	{Name: "package.json", Type: "package"},
	{Name: "Cargo.toml", Type: "package"},
	{Name: "go.mod", Type: "package"},
	{Name: "setup.py", Type: "package"},
	{Name: "requirements.txt", Type: "package"},
	{Name: "pyproject.toml", Type: "package"},
	{Name: "pom.xml", Type: "package"},
	{Name: "build.gradle", Type: "package"},
	{Name: "build.gradle.kts", Type: "package"},
	{Name: "composer.json", Type: "package"},
	{Name: "Gemfile", Type: "package"},
	{Name: "pubspec.yaml", Type: "package"},

	{Name: "README.md", Type: "docs"},
	{Name: "readme.md", Type: "docs"},
	{Name: "README.txt", Type: "docs"},
	{Name: "README.rst", Type: "docs"},
	{Name: "ARCHITECTURE.md", Type: "docs"},
	{Name: "CONTRIBUTING.md", Type: "docs"},
	{Name: "ROADMAP.md", Type: "docs"},
	{Name: "API.md", Type: "docs"},

	{Name: ".env.example", Type: "config"},

	{Name: "prisma/schema.prisma", Type: "data"},
	{Name: "schema.prisma", Type: "data"},
	{Name: "schema.sql", Type: "data"},

	{Name: "Dockerfile", Type: "build"},
	{Name: "docker-compose.yml", Type: "build"},
	{Name: "docker-compose.yaml", Type: "build"},
	{Name: "Makefile", Type: "build"},
	{Name: "justfile", Type: "build"},
	{Name: "CMakeLists.txt", Type: "build"},

	{Name: "LICENSE", Type: "other"},
	{Name: "LICENSE.md", Type: "other"},
	{Name: "CODEOWNERS", Type: "other"},
	{Name: ".github/CODEOWNERS", Type: "other"},
}

type contentWire struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
}

// KeyFiles implements ports.RepoFetcher. Candidates are probed concurrently;
// a missing file is not an error, it is simply absent from the result.
func (c *Client) KeyFiles(ctx context.Context, key domain.RepoKey) ([]domain.KeyFile, error) {
	ck := cacheKey(domain.DataFiles, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.([]domain.KeyFile), nil
	}

	found := make([]*domain.KeyFile, len(keyFileCandidates))
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i, candidate := range keyFileCandidates {
		wg.Add(1)
		go func(i int, candidate domain.KeyFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var wire contentWire
			err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contents/"+escapePath(candidate.Name), &wire)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					c.log.Debug("key file probe failed", map[string]interface{}{
						"repo": key.String(), "file": candidate.Name, "error": err.Error(),
					})
				}
				return
			}
			found[i] = &domain.KeyFile{Name: candidate.Name, Path: candidate.Name, Type: candidate.Type}
		}(i, candidate)
	}
	wg.Wait()

	out := make([]domain.KeyFile, 0, len(found))
	for _, f := range found {
		if f != nil {
			out = append(out, *f)
		}
	}
	c.cache.Set(ck, out)
	return out, nil
}

// FileContent implements ports.RepoFetcher. Directories and non-file entries
// yield ErrNotFound rather than partial results.
func (c *Client) FileContent(ctx context.Context, key domain.RepoKey, path string) (*domain.FileContent, error) {
	var wire contentWire
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contents/"+escapePath(path), &wire); err != nil {
		return nil, err
	}
	if wire.Type != "file" {
		return nil, ErrNotFound
	}

	content := wire.Content
	if wire.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(wire.Content, "\n", ""))
		if err != nil {
			return nil, err
		}
		content = string(decoded)
	}
	return &domain.FileContent{
		Name:     wire.Name,
		Path:     wire.Path,
		Content:  content,
		Encoding: wire.Encoding,
		Size:     wire.Size,
	}, nil
}
