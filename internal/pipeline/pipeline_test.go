package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/crawler"
	"github.com/terrencegiggy/content-pipeline/internal/crawlstate"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/registry"
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

func TestRunner_AcquireDryRunSkipsWrites(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	reg := registry.New(backend)

	require.NoError(t, reg.Put(context.Background(), types.SourceEntry{
		URL: "https://example.com/pending", Status: types.SourceStatusActive,
	}))

	runner := &Runner{
		Registry: reg,
		DryRun:   true,
	}

	result, err := runner.Run(context.Background(), ModeAcquire, nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.SourcesCrawled)
	require.Equal(t, 0, result.PagesAcquired)
	require.Empty(t, result.Errors)
}

func TestRunner_AcquireRunsPendingInitialSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nAllow: /\n"))
		default:
			fmt.Fprintf(w, "<html><head><title>Page</title></head><body><p>%s</p></body></html>", longText(40))
		}
	}))
	defer server.Close()

	backend, err := store.NewLocal(t.TempDir())
	require.NoError(t, err)
	reg := registry.New(backend)
	mani := manifest.New(backend)

	require.NoError(t, reg.Put(context.Background(), types.SourceEntry{
		URL: server.URL + "/", Status: types.SourceStatusActive,
	}))

	cw := crawler.New(crawler.Config{
		HTTPClient:  http.DefaultClient,
		Backend:     backend,
		Manifest:    mani,
		CrawlStates: crawlstate.New(backend),
		Politeness:  scheduler.Politeness{},
		Sleep:       func(ctx context.Context, d time.Duration) {},
	})
	defer cw.Close()

	runner := &Runner{
		Registry: reg,
		Crawler:  cw,
	}

	result, err := runner.Run(context.Background(), ModeAcquire, nil)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, result.SourcesCrawled)
	require.Equal(t, 1, result.PagesAcquired)

	entry, ok, err := reg.Get(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, entry.LastContentHash)
}

func TestRunner_UnknownModeErrors(t *testing.T) {
	runner := &Runner{}
	_, err := runner.Run(context.Background(), Mode("bogus"), nil)
	require.Error(t, err)
}
