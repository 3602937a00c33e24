package swcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	jobmetrics "github.com/learnjournal/journal/internal/jobs"
	"github.com/learnjournal/journal/internal/platform/httpx"
)

const (
	// OfflinePath is the page served for navigations that fail with nothing cached.
	OfflinePath = "/offline.html"
	// OfflineHeader marks responses that are the offline fallback page.
	OfflineHeader = "X-Journal-Offline"
	// SourceHeader tells callers a response came from the cache.
	SourceHeader = "X-Journal-Cache"

	revalidateTimeout = 30 * time.Second
)

// DefaultAssets is the app shell precached on install.
var DefaultAssets = []string{
	"/",
	"/index.html",
	"/journal.html",
	"/about.html",
	"/projects.html",
	"/canvas.html",
	OfflinePath,
	"/manifest.json",
	"/static/css/style.css",
	"/static/js/app.js",
}

// Options configures a Layer.
type Options struct {
	Origin  *url.URL
	Version string
	Next    http.RoundTripper
	Store   Store
	Logger  *slog.Logger
	Metrics *Metrics
	Jobs    *jobmetrics.Metrics
}

// Layer is an http.RoundTripper serving requests to one origin through
// versioned caches.
type Layer struct {
	origin  *url.URL
	version string
	next    http.RoundTripper
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	jobs    *jobmetrics.Metrics

	group singleflight.Group
	wg    sync.WaitGroup
}

// New constructs a Layer.
func New(opts Options) (*Layer, error) {
	if opts.Origin == nil || opts.Origin.Host == "" {
		return nil, errors.New("swcache: origin required")
	}
	if opts.Version == "" {
		return nil, errors.New("swcache: version required")
	}
	if opts.Next == nil {
		opts.Next = http.DefaultTransport
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Layer{
		origin:  opts.Origin,
		version: opts.Version,
		next:    opts.Next,
		store:   opts.Store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		jobs:    opts.Jobs,
	}, nil
}

// StaticCache is the name of the current app shell cache.
func (l *Layer) StaticCache() string { return "journal-static-" + l.version }

// APICache is the name of the current API response cache.
func (l *Layer) APICache() string { return "journal-api-" + l.version }

// Wait blocks until background revalidations finish.
func (l *Layer) Wait() { l.wg.Wait() }

func cacheKey(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}

// RoundTrip implements http.RoundTripper.
func (l *Layer) RoundTrip(req *http.Request) (*http.Response, error) {
	strategy := SelectStrategy(req, l.origin)
	switch strategy {
	case NetworkFirst:
		return l.networkFirst(req)
	case CacheFirst:
		return l.cacheFirst(req)
	case StaleWhileRevalidate:
		return l.staleWhileRevalidate(req)
	default:
		l.metrics.observe(Bypass, "network")
		return l.next.RoundTrip(req)
	}
}

func (l *Layer) networkFirst(req *http.Request) (*http.Response, error) {
	cache := l.APICache()
	resp, err := l.fetch(req, cache)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		l.metrics.observe(NetworkFirst, "network")
		return resp, nil
	}
	if cached, ok := l.lookup(req, cache); ok {
		discard(resp)
		l.logger.Debug("serving cached response", slog.String("url", req.URL.String()), slog.Any("error", err))
		l.metrics.observe(NetworkFirst, "fallback")
		return cached, nil
	}
	l.metrics.observe(NetworkFirst, "error")
	return resp, err
}

func (l *Layer) cacheFirst(req *http.Request) (*http.Response, error) {
	cache := l.StaticCache()
	if cached, ok := l.lookup(req, cache); ok {
		l.metrics.observe(CacheFirst, "hit")
		return cached, nil
	}
	resp, err := l.fetch(req, cache)
	if err != nil {
		l.metrics.observe(CacheFirst, "error")
		return nil, err
	}
	l.metrics.observe(CacheFirst, "miss")
	return resp, nil
}

func (l *Layer) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	cache := l.StaticCache()
	if cached, ok := l.lookup(req, cache); ok {
		l.revalidate(req, cache)
		l.metrics.observe(StaleWhileRevalidate, "hit")
		return cached, nil
	}
	resp, err := l.fetch(req, cache)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		l.metrics.observe(StaleWhileRevalidate, "miss")
		return resp, nil
	}
	if isNavigation(req) {
		if page, ok := l.offlinePage(req); ok {
			discard(resp)
			l.metrics.observe(StaleWhileRevalidate, "offline")
			return page, nil
		}
	}
	l.metrics.observe(StaleWhileRevalidate, "error")
	return resp, err
}

func noStore(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Cache-Control")), "no-store")
}

// fetch performs req on the network and stores 2xx answers in cache.
func (l *Layer) fetch(req *http.Request, cache string) (*http.Response, error) {
	resp, err := l.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || noStore(resp.Header) {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("swcache: read %s: %w", req.URL, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	l.put(req.Context(), cache, cacheKey(req), Snapshot{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	})
	return resp, nil
}

func (l *Layer) put(ctx context.Context, cache, key string, snap Snapshot) {
	if err := l.store.Put(ctx, cache, key, snap); err != nil {
		l.metrics.writeFailed()
		l.logger.Warn("cache write failed", slog.String("cache", cache), slog.String("key", key), slog.Any("error", err))
	}
}

func (l *Layer) lookup(req *http.Request, cache string) (*http.Response, bool) {
	snap, ok, err := l.store.Get(req.Context(), cache, cacheKey(req))
	if err != nil {
		l.logger.Warn("cache read failed", slog.String("cache", cache), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	resp := snap.Response(req)
	resp.Header.Set(SourceHeader, "hit")
	return resp, true
}

func (l *Layer) offlinePage(req *http.Request) (*http.Response, bool) {
	u := *l.origin
	u.Path = OfflinePath
	u.RawQuery = ""
	snap, ok, err := l.store.Get(req.Context(), l.StaticCache(), http.MethodGet+" "+u.String())
	if err != nil || !ok {
		return nil, false
	}
	snap.Status = http.StatusOK
	resp := snap.Response(req)
	resp.Header.Set(OfflineHeader, "1")
	resp.Header.Set(SourceHeader, "offline")
	return resp, true
}

// revalidate refreshes key in the background. Concurrent refreshes of the
// same key share one network call.
func (l *Layer) revalidate(req *http.Request, cache string) {
	key := cacheKey(req)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), revalidateTimeout)
	bg := req.Clone(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		_, err, _ := l.group.Do(key, func() (interface{}, error) {
			tracker := l.jobs.Track("cache_revalidate")
			resp, err := l.fetch(bg, cache)
			if err == nil {
				discard(resp)
			}
			return nil, tracker.End(err)
		})
		if err != nil {
			l.logger.Debug("background revalidation failed", slog.String("key", key), slog.Any("error", err))
		}
	}()
}

// Install precaches assets in the static cache. It fails if any asset
// cannot be fetched with a 2xx answer.
func (l *Layer) Install(ctx context.Context, assets []string) error {
	hasOffline := false
	for _, asset := range assets {
		if asset == OfflinePath {
			hasOffline = true
		}
	}
	if !hasOffline {
		assets = append(append([]string{}, assets...), OfflinePath)
	}
	for _, asset := range assets {
		ref, err := url.Parse(asset)
		if err != nil {
			return fmt.Errorf("swcache: install %s: %w", asset, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.origin.ResolveReference(ref).String(), nil)
		if err != nil {
			return fmt.Errorf("swcache: install %s: %w", asset, err)
		}
		resp, err := l.fetch(req, l.StaticCache())
		if err != nil {
			return fmt.Errorf("swcache: install %s: %w", asset, err)
		}
		discard(resp)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("swcache: install %s: status %d", asset, resp.StatusCode)
		}
	}
	l.logger.Info("cache installed", slog.String("cache", l.StaticCache()), slog.Int("assets", len(assets)))
	return nil
}

// Activate deletes every cache that does not belong to the current version
// and returns the names it removed.
func (l *Layer) Activate(ctx context.Context) ([]string, error) {
	names, err := l.store.Caches(ctx)
	if err != nil {
		return nil, fmt.Errorf("swcache: activate: %w", err)
	}
	var removed []string
	for _, name := range names {
		if name == l.StaticCache() || name == l.APICache() {
			continue
		}
		if err := l.store.DeleteCache(ctx, name); err != nil {
			return removed, fmt.Errorf("swcache: activate: delete %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	if len(removed) > 0 {
		l.logger.Info("old caches removed", slog.Any("caches", removed))
	}
	return removed, nil
}

// Handler returns a reverse proxy to target that serves every request
// through the layer.
func (l *Layer) Handler(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = l
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		l.logger.Warn("proxy request failed", slog.String("url", r.URL.String()), slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, "Journal server unreachable")
	}
	return proxy
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
