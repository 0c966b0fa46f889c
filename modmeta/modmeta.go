// Package modmeta describes the mod being localized: title, portal slug,
// author and versions. The metadata is handed to the translation service as
// context so it can look up the mod's established terminology.
package modmeta

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Spec holds the metadata of one mod. Only Title is mandatory; the other
// fields sharpen the context prompt when known.
type Spec struct {
	Title           string
	Slug            string
	Author          string
	ModVersion      string
	FactorioVersion string
}

// PortalBase is the mod portal root used for slug probing.
const PortalBase = "https://mods.factorio.com"

// versionSuffixRe matches a "_1.2.3" style version suffix on a directory name.
var versionSuffixRe = regexp.MustCompile(`^(.*)_(\d+(?:\.\d+)+)$`)

// StripVersionSuffix removes a trailing "_<version>" from an unpacked mod
// directory name: "AsteroidBelt_1.2.10" → "AsteroidBelt".
func StripVersionSuffix(name string) string {
	if m := versionSuffixRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// Resolver probes the mod portal to find the slug for a mod directory name.
type Resolver struct {
	// BaseURL defaults to PortalBase; override for tests.
	BaseURL string
	// Client defaults to a client with a short timeout.
	Client *http.Client
}

func (r *Resolver) baseURL() string {
	if r.BaseURL != "" {
		return r.BaseURL
	}
	return PortalBase
}

func (r *Resolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: 6 * time.Second}
}

// ResolveSlug tries to find the portal slug for an unpacked mod directory
// name: the version suffix is stripped and the base name is probed as-is and
// with '_'/'-' swapped. Returns "" when nothing matches — translation then
// proceeds without a slug, this is best effort only.
func (r *Resolver) ResolveSlug(ctx context.Context, modName string) string {
	base := StripVersionSuffix(modName)

	candidates := []string{base}
	if alt := strings.ReplaceAll(base, "_", "-"); alt != base {
		candidates = append(candidates, alt)
	}
	if alt := strings.ReplaceAll(base, "-", "_"); alt != base {
		candidates = append(candidates, alt)
	}

	seen := make(map[string]bool)
	for _, slug := range candidates {
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		if r.urlExists(ctx, r.baseURL()+"/mod/"+slug) {
			return slug
		}
	}
	return ""
}

func (r *Resolver) urlExists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := r.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
