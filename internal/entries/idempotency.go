package entries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// DefaultIdempotencyTTL is how long a create key is remembered. It comfortably
// exceeds the client's retry window, including entries parked and resent by hand.
const DefaultIdempotencyTTL = 30 * 24 * time.Hour

// ErrIdempotencyKey is returned for an empty or oversized key.
var ErrIdempotencyKey = errors.New("entries: invalid idempotency key")

const maxIdempotencyKey = 128

type idempotencyRecord struct {
	Entry     Entry     `json:"entry"`
	CreatedAt time.Time `json:"createdAt"`
}

// IdempotencyStore remembers which entry a create key produced, so a retried
// create returns the stored entry instead of writing a second one. Keys live
// in a JSON file next to the entries file and survive restarts.
type IdempotencyStore struct {
	fs     afero.Fs
	path   string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewIdempotencyStore constructs a key store persisted at path on fs.
func NewIdempotencyStore(fs afero.Fs, path string, ttl time.Duration, logger *slog.Logger) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyStore{fs: fs, path: path, ttl: ttl, logger: logger, now: time.Now}
}

// KeysPath is the key file used alongside an entries file.
func KeysPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".keys.json"
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > maxIdempotencyKey {
		return ErrIdempotencyKey
	}
	return nil
}

// Lookup returns the entry created under key, if it is still remembered.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	if s == nil {
		return Entry{}, false, nil
	}
	if err := checkKey(key); err != nil {
		return Entry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.load()[key]
	if !ok || s.now().Sub(rec.CreatedAt) > s.ttl {
		return Entry{}, false, nil
	}
	return rec.Entry, true, nil
}

// Record stores the entry created under key and drops expired keys.
func (s *IdempotencyStore) Record(ctx context.Context, key string, entry Entry) error {
	if s == nil {
		return nil
	}
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	s.prune(records)
	records[key] = idempotencyRecord{Entry: entry, CreatedAt: s.now().UTC()}
	return s.save(records)
}

// Cleanup removes keys older than the store's TTL and returns how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	removed := s.prune(records)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(records)
}

func (s *IdempotencyStore) prune(records map[string]idempotencyRecord) int {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for key, rec := range records {
		if rec.CreatedAt.Before(cutoff) {
			delete(records, key)
			removed++
		}
	}
	return removed
}

// load treats a missing or unreadable key file as empty; at worst a retried
// create is stored twice.
func (s *IdempotencyStore) load() map[string]idempotencyRecord {
	records := map[string]idempotencyRecord{}
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records
	}
	if err != nil {
		s.logger.Error("read idempotency keys", slog.String("path", s.path), slog.Any("error", err))
		return records
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("idempotency key file is corrupt, starting empty", slog.String("path", s.path), slog.Any("error", err))
		return map[string]idempotencyRecord{}
	}
	return records
}

func (s *IdempotencyStore) save(records map[string]idempotencyRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("entries: encode idempotency keys: %w: %w", ErrStorage, err)
	}
	return writeAtomic(s.fs, s.path, raw)
}
