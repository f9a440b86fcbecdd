package crawler

import (
	"net/url"
	"strings"

	"github.com/terrencegiggy/content-pipeline/internal/types"
)

// CustomScopeFilter is the caller-supplied predicate for
// CrawlScope=custom. The spec declares this opaque; the default is
// permissive (admit everything) until a caller installs one.
type CustomScopeFilter func(link, sourceURL string) bool

// InScope decides whether link belongs to the same crawl as
// sourceURL under scope.
func InScope(link, sourceURL string, scope types.CrawlScope, custom CustomScopeFilter) bool {
	switch scope {
	case types.ScopePage:
		return false
	case types.ScopePathPrefix:
		return pathPrefixMatch(link, sourceURL)
	case types.ScopeHost:
		return hostMatch(link, sourceURL)
	case types.ScopeCustom:
		if custom == nil {
			return true
		}
		return custom(link, sourceURL)
	default:
		return false
	}
}

func pathPrefixMatch(link, sourceURL string) bool {
	l, err := url.Parse(link)
	if err != nil {
		return false
	}
	s, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}
	if l.Host != s.Host {
		return false
	}
	return strings.HasPrefix(l.Path, s.Path)
}

func hostMatch(link, sourceURL string) bool {
	l, err := url.Parse(link)
	if err != nil {
		return false
	}
	s, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}
	return l.Host == s.Host
}
