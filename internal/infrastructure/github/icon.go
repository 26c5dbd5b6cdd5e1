package github

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/doeshing/gitscope/internal/domain"
)

var iconSubdirs = []string{"public", "assets", "static", "images", "img"}

var resolutionPattern = regexp.MustCompile(`(\d+)x\d+`)

// Icon implements ports.RepoFetcher. It scans the repository root and the
// usual asset directories for logo-ish files, prefers the highest apparent
// resolution, and returns the winner as a data URI. Empty string means no
// icon was found; that is not an error.
func (c *Client) Icon(ctx context.Context, key domain.RepoKey) (string, error) {
	ck := cacheKey(domain.DataIcon, key)
	if v, ok := c.cache.Get(ck); ok {
		return v.(string), nil
	}

	var root []contentWire
	if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contents/", &root); err != nil {
		return "", err
	}

	var candidates []contentWire
	for _, item := range root {
		if item.Type == "file" && looksLikeIcon(item.Name) {
			candidates = append(candidates, item)
		}
	}
	for _, subdir := range iconSubdirs {
		if !hasDir(root, subdir) {
			continue
		}
		var items []contentWire
		if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contents/"+subdir, &items); err != nil {
			continue
		}
		for _, item := range items {
			if item.Type == "file" && looksLikeIcon(item.Name) {
				candidates = append(candidates, item)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return iconResolution(candidates[i].Name) > iconResolution(candidates[j].Name)
	})

	for _, candidate := range candidates {
		var wire contentWire
		if err := c.get(ctx, "/repos/"+key.Owner+"/"+key.Name+"/contents/"+escapePath(candidate.Path), &wire); err != nil {
			continue
		}
		if wire.Content == "" {
			continue
		}
		icon := "data:image/png;base64," + strings.ReplaceAll(wire.Content, "\n", "")
		c.cache.Set(ck, icon)
		return icon, nil
	}
	c.cache.Set(ck, "")
	return "", nil
}

func hasDir(items []contentWire, name string) bool {
	for _, item := range items {
		if item.Type == "dir" && item.Name == name {
			return true
		}
	}
	return false
}

func looksLikeIcon(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "favicon") ||
		strings.Contains(n, "logo") ||
		strings.Contains(n, "icon")
}

// iconResolution guesses pixel size from the file name so bigger art wins.
func iconResolution(name string) int {
	n := strings.ToLower(name)
	if m := resolutionPattern.FindStringSubmatch(n); m != nil {
		if px, err := strconv.Atoi(m[1]); err == nil {
			return px
		}
	}
	switch {
	case strings.Contains(n, "512"):
		return 512
	case strings.Contains(n, "256"):
		return 256
	case strings.Contains(n, "192"), strings.Contains(n, "android-chrome"):
		return 192
	case strings.Contains(n, "180"), strings.Contains(n, "apple-touch"):
		return 180
	case n == "favicon.ico":
		return 64
	case strings.Contains(n, "logo"):
		return 100
	}
	return 50
}
