// Package remote is the HTTP client for the journal entry store API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/learnjournal/journal/internal/entries"
	"github.com/learnjournal/journal/internal/platform/httpx"
)

// APIError is a non-2xx answer from the store.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: status %d", e.Status)
	}
	return fmt.Sprintf("remote: status %d: %s", e.Status, e.Message)
}

// IsTransient reports whether a failed call may succeed when retried later:
// transport failures, timeouts, throttling and server errors. Other 4xx
// answers are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError ||
			apiErr.Status == http.StatusRequestTimeout ||
			apiErr.Status == http.StatusTooManyRequests
	}
	return true
}

// IsNotFound reports whether the store answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the entry store.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient constructs a client for the store at baseURL. The http client's
// transport decides caching; pass one wrapping the offline cache layer.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, http: httpClient}, nil
}

// BaseURL returns the store origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// List fetches every committed entry.
func (c *Client) List(ctx context.Context) ([]entries.Entry, error) {
	var out entries.ListResponse
	if err := c.do(ctx, http.MethodGet, "/reflections", nil, &out); err != nil {
		return nil, err
	}
	if out.Reflections == nil {
		out.Reflections = []entries.Entry{}
	}
	return out.Reflections, nil
}

// IdempotencyKeyHeader carries the local id of a pending entry on create, so
// the store answers a retried create with the record it already committed.
const IdempotencyKeyHeader = "Idempotency-Key"

// Create sends a new entry and returns the committed record and the new total.
// A local id on e is sent as the idempotency key and never as the entry id.
func (c *Client) Create(ctx context.Context, e entries.Entry) (entries.Entry, int, error) {
	var out entries.CreateResponse
	header := http.Header{}
	if entries.IsLocalID(e.ID) {
		header.Set(IdempotencyKeyHeader, e.ID)
	}
	if err := c.send(ctx, http.MethodPost, "/add_reflection", header, e.ForCreate(), &out); err != nil {
		return entries.Entry{}, 0, err
	}
	return out.Reflection, out.TotalReflections, nil
}

// Update sends a partial update.
func (c *Client) Update(ctx context.Context, id string, patch entries.Patch) (entries.Entry, error) {
	var out entries.UpdateResponse
	if err := c.do(ctx, http.MethodPut, "/reflection/"+url.PathEscape(id), patch, &out); err != nil {
		return entries.Entry{}, err
	}
	return out.Reflection, nil
}

// Delete removes an entry and returns the remaining total.
func (c *Client) Delete(ctx context.Context, id string) (int, error) {
	var out entries.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/reflection/"+url.PathEscape(id), nil, &out); err != nil {
		return 0, err
	}
	return out.TotalReflections, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, nil, in, out)
}

func (c *Client) send(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	for name, values := range header {
		req.Header[name] = values
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope httpx.ErrorBody
		if json.Unmarshal(payload, &envelope) == nil {
			apiErr.Message = envelope.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}
