package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(rawURL string) string {
	u, err := url.Parse(rawURL)
	slug := rawURL
	if err == nil {
		slug = u.Hostname() + u.Path
	}
	slug = strings.ToLower(slug)
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "source"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}

// contentHash is the SHA-256 of a page's UTF-8 body bytes — the
// identity of a stored document throughout the pipeline.
func contentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// persistedArtifact is one page written under evidence/parsed.
type persistedArtifact struct {
	Checksum string
	Path     string
	Rendered bool
}

// persistPage writes one page's markdown rendering to
// evidence/parsed/<YYYY>/<slug>-<first12-of-checksum>/page-NNN.md and
// an index.md alongside it, then records a manifest entry.
func (c *Crawler) persistPage(ctx context.Context, sourceURL string, page *fetchedPage, pageNumber int, rendered bool, now time.Time) (*persistedArtifact, error) {
	checksum := contentHash(page.Body)
	dir := fmt.Sprintf("evidence/parsed/%04d/%s-%s", now.Year(), slugify(sourceURL), checksum[:12])
	pagePath := fmt.Sprintf("%s/page-%03d.md", dir, pageNumber)
	indexPath := fmt.Sprintf("%s/index.md", dir)

	pageContent := renderPageMarkdown(sourceURL, checksum, pageNumber, page)
	indexContent := renderIndexMarkdown(sourceURL, checksum, page.Title, now)

	writes := []store.FileWrite{
		{Path: pagePath, Data: []byte(pageContent)},
		{Path: indexPath, Data: []byte(indexContent)},
	}
	if err := c.backend.PutBatch(ctx, writes, fmt.Sprintf("crawler: acquire %s", sourceURL)); err != nil {
		return nil, fmt.Errorf("persist artifact for %s: %w", sourceURL, err)
	}

	entry := types.ManifestEntry{
		Checksum:     checksum,
		Source:       sourceURL,
		Parser:       "html",
		ArtifactPath: pagePath,
		ProcessedAt:  now,
		Status:       types.ManifestStatusCompleted,
	}
	if page.Text == "" {
		entry.Status = types.ManifestStatusEmpty
	}
	entry.Metadata.Rendered = rendered
	if err := c.manifest.Put(ctx, entry); err != nil {
		return nil, err
	}

	return &persistedArtifact{Checksum: checksum, Path: pagePath, Rendered: rendered}, nil
}

func renderPageMarkdown(sourceURL, checksum string, pageNumber int, page *fetchedPage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "---\nsource: %q\nchecksum: %q\npage_number: %d\npage_total: 1\nwarnings: []\n---\n\n", sourceURL, checksum, pageNumber)
	if page.Title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", page.Title)
	}
	sb.WriteString(page.Text)
	sb.WriteString("\n")
	return sb.String()
}

func renderIndexMarkdown(sourceURL, checksum, title string, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "---\nsource: %q\nchecksum: %q\nacquired_at: %q\n---\n\n", sourceURL, checksum, now.Format(time.RFC3339))
	if title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", title)
	}
	sb.WriteString("## Table of Contents\n\n- [page-001](page-001.md)\n")
	return sb.String()
}
