// Package monitor implements the tiered change-detection monitor
// (component E): conditional GET, then ETag, then Last-Modified, then
// a full content hash — stopping at the first conclusive tier.
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/types"
)

// Status is the conclusion of one change-detection check.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusChanged   Status = "changed"
	StatusError     Status = "error"
)

// DetectionMethod records which tier of the cascade was conclusive.
type DetectionMethod string

const (
	MethodConditionalGet DetectionMethod = "conditional_get"
	MethodETag           DetectionMethod = "etag"
	MethodLastModified   DetectionMethod = "last_modified"
	MethodContentHash    DetectionMethod = "content_hash"
)

// CheckResult is the monitor's output for one source.
type CheckResult struct {
	Status          Status
	DetectionMethod DetectionMethod
	ETag            string
	LastModified    string
	ContentHash     string
	ErrorMessage    string
}

// Monitor probes sources over HTTP. It performs no retries itself —
// retry policy lives in the scheduler via check_failures and backoff.
type Monitor struct {
	client *http.Client
}

// New builds a Monitor with a 30s-by-default client; timeout governs
// both the conditional HEAD and the fallback full-body fetch.
func New(timeout time.Duration) *Monitor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Monitor{client: &http.Client{Timeout: timeout}}
}

// Check runs the cascade for entry against entry.URL, which must
// already be canonical. Tiers 1-3 are answered from a HEAD response —
// no body is ever transferred for them; only tier 4 issues a GET.
func (m *Monitor) Check(ctx context.Context, entry *types.SourceEntry) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, entry.URL, nil)
	if err != nil {
		return errorResult(MethodConditionalGet, err)
	}
	if entry.LastETag != "" {
		req.Header.Set("If-None-Match", entry.LastETag)
	}
	if entry.LastModifiedHeader != "" {
		req.Header.Set("If-Modified-Since", entry.LastModifiedHeader)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return errorResult(MethodConditionalGet, err)
	}
	resp.Body.Close()

	// Tier 1: conditional HEAD conclusive.
	if resp.StatusCode == http.StatusNotModified {
		return CheckResult{
			Status:          StatusUnchanged,
			DetectionMethod: MethodConditionalGet,
			ETag:            entry.LastETag,
			LastModified:    entry.LastModifiedHeader,
		}
	}
	// A server that rejects HEAD falls through to tier 4 below rather
	// than erroring outright.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
		return errorResult(MethodConditionalGet, fmt.Errorf("http %d", resp.StatusCode))
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")

	// Tier 2: ETag comparison, straight off the HEAD response.
	if etag != "" {
		if entry.LastETag != "" && etag == entry.LastETag {
			return CheckResult{Status: StatusUnchanged, DetectionMethod: MethodETag, ETag: etag, LastModified: lastModified}
		}
		if entry.LastETag != "" {
			return CheckResult{Status: StatusChanged, DetectionMethod: MethodETag, ETag: etag, LastModified: lastModified}
		}
	}

	// Tier 3: Last-Modified comparison, also off the HEAD response.
	if lastModified != "" && entry.LastModifiedHeader != "" {
		newer, err := isNewer(lastModified, entry.LastModifiedHeader)
		if err == nil {
			if newer {
				return CheckResult{Status: StatusChanged, DetectionMethod: MethodLastModified, ETag: etag, LastModified: lastModified}
			}
			return CheckResult{Status: StatusUnchanged, DetectionMethod: MethodLastModified, ETag: etag, LastModified: lastModified}
		}
	}

	// Tier 4: neither header was conclusive (first check, or a server
	// that omits both) — only now is a full GET, and the body it
	// carries, justified.
	return m.checkContentHash(ctx, entry, etag, lastModified)
}

func (m *Monitor) checkContentHash(ctx context.Context, entry *types.SourceEntry, etag, lastModified string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return errorResult(MethodContentHash, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return errorResult(MethodContentHash, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return errorResult(MethodContentHash, fmt.Errorf("http %d", resp.StatusCode))
	}
	if etag == "" {
		etag = resp.Header.Get("ETag")
	}
	if lastModified == "" {
		lastModified = resp.Header.Get("Last-Modified")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(MethodContentHash, err)
	}
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	if entry.LastContentHash != "" && hash == entry.LastContentHash {
		return CheckResult{Status: StatusUnchanged, DetectionMethod: MethodContentHash, ETag: etag, LastModified: lastModified, ContentHash: hash}
	}
	return CheckResult{Status: StatusChanged, DetectionMethod: MethodContentHash, ETag: etag, LastModified: lastModified, ContentHash: hash}
}

func isNewer(candidate, baseline string) (bool, error) {
	c, err := http.ParseTime(candidate)
	if err != nil {
		return false, err
	}
	b, err := http.ParseTime(baseline)
	if err != nil {
		return false, err
	}
	return c.After(b), nil
}

func errorResult(method DetectionMethod, err error) CheckResult {
	return CheckResult{Status: StatusError, DetectionMethod: method, ErrorMessage: err.Error()}
}
