package entries

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service implements the entry store operations on top of a Repository.
type Service struct {
	repo      Repository
	validator *Validator
	keys      *IdempotencyStore
	now       func() time.Time

	// createMu serialises keyed creates so two retries of one key cannot
	// both miss the lookup.
	createMu sync.Mutex
}

// NewService constructs the store service.
func NewService(repo Repository, validator *Validator) *Service {
	if validator == nil {
		validator = NewValidator()
	}
	return &Service{repo: repo, validator: validator, now: time.Now}
}

// WithIdempotency makes keyed creates replay the stored entry instead of
// adding a duplicate.
func (s *Service) WithIdempotency(keys *IdempotencyStore) *Service {
	s.keys = keys
	return s
}

// List returns every committed entry in storage order.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.repo.List(ctx)
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	if strings.TrimSpace(id) == "" {
		return Entry{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Create validates the entry, assigns its id and timestamp and stores it.
// Any id supplied by the caller is discarded.
func (s *Service) Create(ctx context.Context, in Entry) (Entry, int, error) {
	in.Technologies = in.Technologies.Normalize()
	if err := s.validator.Entry(in); err != nil {
		return Entry{}, 0, err
	}
	entry := in.ForCreate()
	entry.ID = uuid.NewString()
	entry.Timestamp = Stamp(s.now())
	total, err := s.repo.Create(ctx, entry)
	if err != nil {
		return Entry{}, 0, err
	}
	return entry, total, nil
}

// CreateIdempotent is Create guarded by key. When key already produced an
// entry that entry is returned with replayed set and nothing is written. An
// empty key, or a service without a key store, behaves like Create.
func (s *Service) CreateIdempotent(ctx context.Context, key string, in Entry) (Entry, int, bool, error) {
	if key == "" || s.keys == nil {
		created, total, err := s.Create(ctx, in)
		return created, total, false, err
	}
	if err := checkKey(key); err != nil {
		return Entry{}, 0, false, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	prior, ok, err := s.keys.Lookup(ctx, key)
	if err != nil {
		return Entry{}, 0, false, err
	}
	if ok {
		list, err := s.repo.List(ctx)
		if err != nil {
			return Entry{}, 0, false, err
		}
		return prior, len(list), true, nil
	}

	created, total, err := s.Create(ctx, in)
	if err != nil {
		return Entry{}, 0, false, err
	}
	if err := s.keys.Record(ctx, key, created); err != nil {
		return Entry{}, 0, false, err
	}
	return created, total, false, nil
}

// Update applies a partial update, keeping id and timestamp and stamping
// updatedAt. A missing id is reported before the patch is validated.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Entry, error) {
	return s.repo.Update(ctx, id, func(current Entry) (Entry, error) {
		if err := s.validator.Patch(patch); err != nil {
			return Entry{}, err
		}
		updated := patch.Apply(current)
		if updated.Timestamp == "" {
			updated.Timestamp = Stamp(s.now())
		}
		updated.UpdatedAt = Stamp(s.now())
		updated.Pending = false
		return updated, nil
	})
}

// Delete removes an entry and returns the remaining count.
// Keys of a deleted entry are kept, so a late retry of its create does not
// bring it back.
func (s *Service) Delete(ctx context.Context, id string) (int, error) {
	return s.repo.Delete(ctx, id)
}
