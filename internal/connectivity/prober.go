package connectivity

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Prober answers whether the journal server is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }

// HTTPProber probes the server health endpoint.
type HTTPProber struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewHTTPProber probes base's /healthz with the given timeout. It uses its
// own client so probes never go through the response cache.
func NewHTTPProber(base *url.URL, timeout time.Duration) *HTTPProber {
	u := *base
	u.Path = "/healthz"
	u.RawQuery = ""
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}, url: u.String(), timeout: timeout}
}

// Probe reports whether /healthz answered 2xx.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
