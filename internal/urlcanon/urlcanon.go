// Package urlcanon canonicalizes URLs to the single comparable form
// the registry, manifest, and scheduler all key on.
package urlcanon

import (
	"fmt"
	"net/url"
	"strings"
)

// URL lowercases the scheme and host, strips a default port, strips
// any fragment, and collapses duplicate path slashes. It is the only
// place in the pipeline allowed to construct the canonical key for a
// source.
func URL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if port := u.Port(); port != "" {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = u.Hostname()
		}
	}

	for strings.Contains(u.Path, "//") {
		u.Path = strings.ReplaceAll(u.Path, "//", "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// Domain extracts the scheduling domain key from a canonical URL:
// lowercase host, "www." stripped, port stripped.
func Domain(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
