package swcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Snapshot is a stored response.
type Snapshot struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// Response rebuilds an *http.Response for req from the snapshot.
func (s Snapshot) Response(req *http.Request) *http.Response {
	header := s.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.Status, http.StatusText(s.Status)),
		StatusCode:    s.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}

// Store keeps snapshots in named caches.
type Store interface {
	Get(ctx context.Context, cache, key string) (Snapshot, bool, error)
	Put(ctx context.Context, cache, key string, snap Snapshot) error
	Caches(ctx context.Context) ([]string, error)
	DeleteCache(ctx context.Context, cache string) error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]map[string]Snapshot
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{caches: map[string]map[string]Snapshot{}}
}

func (m *MemoryStore) Get(_ context.Context, cache, key string) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.caches[cache][key]
	if !ok {
		return Snapshot{}, false, nil
	}
	return cloneSnapshot(snap), true, nil
}

func (m *MemoryStore) Put(_ context.Context, cache, key string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.caches[cache]
	if !ok {
		entries = map[string]Snapshot{}
		m.caches[cache] = entries
	}
	entries[key] = cloneSnapshot(snap)
	return nil
}

func (m *MemoryStore) Caches(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) DeleteCache(_ context.Context, cache string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, cache)
	return nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Header = s.Header.Clone()
	s.Body = bytes.Clone(s.Body)
	return s
}
