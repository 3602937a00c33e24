// Package swcache is the client-side response cache that sits in front of the
// journal server: per-request strategies, versioned caches, an offline page
// and a local caching proxy.
package swcache

import (
	"net/http"
	"net/url"
	"strings"
)

// Strategy decides how a request is served.
type Strategy int

const (
	// Bypass sends the request straight to the network.
	Bypass Strategy = iota
	// NetworkFirst tries the network and falls back to the cached copy.
	NetworkFirst
	// CacheFirst serves the cached copy and only fetches on a miss.
	CacheFirst
	// StaleWhileRevalidate serves the cached copy and refreshes it in the background.
	StaleWhileRevalidate
)

func (s Strategy) String() string {
	switch s {
	case Bypass:
		return "bypass"
	case NetworkFirst:
		return "network-first"
	case CacheFirst:
		return "cache-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "unknown"
	}
}

// SelectStrategy picks the strategy for req. Only GET requests to origin are
// cached; API reads are network-first, page navigations are
// stale-while-revalidate and every other asset is cache-first.
func SelectStrategy(req *http.Request, origin *url.URL) Strategy {
	if req.Method != http.MethodGet {
		return Bypass
	}
	if !sameOrigin(req.URL, origin) {
		return Bypass
	}
	if strings.Contains(req.Header.Get("Cache-Control"), "no-store") {
		return Bypass
	}
	switch {
	case isAPIPath(req.URL.Path):
		return NetworkFirst
	case isNavigation(req):
		return StaleWhileRevalidate
	default:
		return CacheFirst
	}
}

func isAPIPath(p string) bool {
	return p == "/reflections" || p == "/add_reflection" || strings.HasPrefix(p, "/reflection/")
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	if strings.Contains(req.Header.Get("Accept"), "text/html") {
		return true
	}
	p := req.URL.Path
	return p == "" || p == "/" || strings.HasSuffix(p, ".html")
}

// sameOrigin treats a request without a host as local to origin.
func sameOrigin(u, origin *url.URL) bool {
	if origin == nil || u.Host == "" {
		return true
	}
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}
