package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"golang.org/x/net/html"
)

// Renderer executes a page's scripts in a headless browser and
// returns the post-load DOM as HTML. Used as the rendering fallback
// when static extraction yields too little text or the page shows
// single-page-application indicators.
type Renderer struct {
	controlURL string
	launcher   *launcher.Launcher
}

// NewRenderer launches (or locates) a headless Chrome instance the
// way a browser-automation session manager does: resolve a binary via
// launcher.New(), then hand its control URL to rod.New(). The browser
// process is launched lazily, on first Render call, so a pipeline run
// that never needs the fallback never pays Chrome's startup cost.
func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) ensureControlURL() (string, error) {
	if r.controlURL != "" {
		return r.controlURL, nil
	}
	l := launcher.New().Headless(true)
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch headless browser: %w", err)
	}
	r.launcher = l
	r.controlURL = u
	return u, nil
}

// Render navigates to rawURL, waits for the page to settle, and
// returns the rendered HTML along with the extracted text and links,
// recomputed from the post-render DOM.
func (r *Renderer) Render(ctx context.Context, rawURL string) (*fetchedPage, error) {
	controlURL, err := r.ensureControlURL()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(rod.PageInfo{URL: rawURL})
	if err != nil {
		page, err = browser.Page(rod.PageInfo{})
		if err != nil {
			return nil, fmt.Errorf("open page for %s: %w", rawURL, err)
		}
		if err := page.Navigate(rawURL); err != nil {
			return nil, fmt.Errorf("navigate to %s: %w", rawURL, err)
		}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load for %s: %w", rawURL, err)
	}

	renderedHTML, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html for %s: %w", rawURL, err)
	}

	return parseRenderedHTML(rawURL, renderedHTML)
}

// Close releases the underlying browser process, if one was started.
func (r *Renderer) Close() {
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	r.controlURL = ""
}

func parseRenderedHTML(rawURL, renderedHTML string) (*fetchedPage, error) {
	doc, err := html.Parse(strings.NewReader(renderedHTML))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html for %s: %w", rawURL, err)
	}
	return &fetchedPage{
		URL:   rawURL,
		Body:  []byte(renderedHTML),
		Title: extractTitle(doc),
		Text:  extractText(doc),
		Links: extractLinks(doc, rawURL),
	}, nil
}
