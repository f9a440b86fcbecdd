package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches and caches robots.txt per origin, the way a
// polite crawler is expected to: one fetch per host per run, reused
// across every URL on that host.
type RobotsChecker struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsChecker builds a checker using client for robots.txt
// fetches.
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

func (r *RobotsChecker) dataFor(ctx context.Context, rawURL string) (*robotstxt.RobotsData, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	origin := u.Scheme + "://" + u.Host

	r.mu.Lock()
	if data, ok := r.cache[origin]; ok {
		r.mu.Unlock()
		return data, nil
	}
	r.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	var data *robotstxt.RobotsData
	if err != nil {
		// Unreachable robots.txt is treated as "allow all" — a
		// transient failure here should not block the whole crawl.
		data, _ = robotstxt.FromStatusAndString(http.StatusOK, "")
	} else {
		defer resp.Body.Close()
		data, err = robotstxt.FromResponse(resp)
		if err != nil {
			data, _ = robotstxt.FromStatusAndString(http.StatusOK, "")
		}
	}

	r.mu.Lock()
	r.cache[origin] = data
	r.mu.Unlock()
	return data, nil
}

// Allowed reports whether userAgent may fetch rawURL, and the
// Crawl-delay directive if one applies (zero if none).
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	data, err := r.dataFor(ctx, rawURL)
	if err != nil {
		return true, 0, err
	}
	group := data.FindGroup(r.userAgent)
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, 0, err
	}
	allowed := group.Test(u.Path)
	delay := time.Duration(group.CrawlDelay)
	return allowed, delay, nil
}
