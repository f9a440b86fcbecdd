package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/crawlstate"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/scheduler"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func longText(n int) string {
	return strings.Repeat("word ", n)
}

func newTestCrawler(t *testing.T, backend store.Backend) *Crawler {
	t.Helper()
	cw := New(Config{
		HTTPClient: http.DefaultClient,
		Backend:    backend,
		Manifest:   manifest.New(backend),
		CrawlStates: crawlstate.New(backend),
		Politeness: scheduler.Politeness{CrawlerDelaySeconds: 0},
		Sleep:      func(ctx context.Context, d time.Duration) {},
	})
	t.Cleanup(cw.Close)
	return cw
}

func TestCrawler_AcquireSinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nAllow: /\n"))
		default:
			fmt.Fprintf(w, "<html><head><title>Test Page</title></head><body><p>%s</p></body></html>", longText(40))
		}
	}))
	defer server.Close()

	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	cw := newTestCrawler(t, backend)

	source := &types.SourceEntry{URL: server.URL + "/"}
	result, err := cw.AcquireSinglePage(context.Background(), source)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.PagesAcquired)
	require.NotEmpty(t, result.ContentHash)
	require.Equal(t, result.ContentHash, source.LastContentHash)
	require.Equal(t, 1, source.TotalPagesAcquired)

	data, ok, err := backend.Get(context.Background(), result.ContentPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(data), "Test Page")
}

func TestCrawler_AcquireCrawlFollowsInScopeLinks(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nAllow: /\n"))
		case "/":
			fmt.Fprintf(w, `<html><head><title>Home</title></head><body><p>%s</p><a href="%s/child">child</a></body></html>`, longText(40), server.URL)
		case "/child":
			fmt.Fprintf(w, "<html><head><title>Child</title></head><body><p>%s</p></body></html>", longText(40))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	cw := newTestCrawler(t, backend)

	source := &types.SourceEntry{
		URL:           server.URL + "/",
		CrawlScope:    types.ScopeHost,
		CrawlMaxPages: 5,
	}
	result, err := cw.AcquireCrawl(context.Background(), source)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, result.PagesAcquired)
	require.False(t, result.Paused)
	require.NotEmpty(t, result.ContentHash)
	require.Equal(t, 2, source.TotalPagesAcquired)
	require.NotNil(t, source.LastCrawlCompleted)
}

func TestCrawler_RobotsDisallowBlocksSinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /\n"))
		default:
			fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", longText(40))
		}
	}))
	defer server.Close()

	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	cw := newTestCrawler(t, backend)

	source := &types.SourceEntry{URL: server.URL + "/"}
	result, err := cw.AcquireSinglePage(context.Background(), source)
	require.Error(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.SkippedCount)
}
