// Package pending holds journal entries created while offline until the
// store confirms them.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/learnjournal/journal/internal/entries"
	"github.com/learnjournal/journal/internal/platform/kv"
)

// QueueKey is the fixed key the queue is persisted under.
const QueueKey = "journal.pendingQueue"

// Item is a queued entry plus its delivery bookkeeping. It serialises as the
// journal entry fields followed by the sync fields.
type Item struct {
	entries.Entry
	QueuedAt      time.Time `json:"queuedAt,omitzero"`
	Attempts      int       `json:"syncAttempts,omitempty"`
	NextAttemptAt time.Time `json:"nextAttemptAt,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
	Parked        bool      `json:"parked,omitempty"`
}

// NewItem prepares an entry for the queue: it gets a local id, unless it
// already carries one, and the pending flag.
func NewItem(e entries.Entry, now time.Time) Item {
	if !entries.IsLocalID(e.ID) {
		e.ID = entries.NewLocalID()
	}
	e.Pending = true
	if e.Timestamp == "" {
		e.Timestamp = entries.Stamp(now)
	}
	return Item{Entry: e, QueuedAt: now}
}

// syncFields are the Item fields stored next to the entry fields.
type syncFields struct {
	QueuedAt      time.Time `json:"queuedAt,omitzero"`
	Attempts      int       `json:"syncAttempts,omitempty"`
	NextAttemptAt time.Time `json:"nextAttemptAt,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
	Parked        bool      `json:"parked,omitempty"`
}

// UnmarshalJSON decodes both halves of the flat object; without it the
// promoted Entry decoder would drop the sync fields.
func (it *Item) UnmarshalJSON(data []byte) error {
	var entry entries.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return err
	}
	var sf syncFields
	if err := json.Unmarshal(data, &sf); err != nil {
		return err
	}
	*it = Item{
		Entry:         entry,
		QueuedAt:      sf.QueuedAt,
		Attempts:      sf.Attempts,
		NextAttemptAt: sf.NextAttemptAt,
		LastError:     sf.LastError,
		Parked:        sf.Parked,
	}
	return nil
}

// Due reports whether the item may be attempted at now.
func (it Item) Due(now time.Time) bool {
	return !it.Parked && !now.Before(it.NextAttemptAt)
}

// Queue is the durable list of pending items. Reads and writes never fail
// the caller: storage problems are logged and the queue falls back to an
// in-memory copy for the rest of the session. A canceled context is not a
// storage problem; the call gives up and the store is left alone.
type Queue struct {
	store  kv.Store
	logger *slog.Logger

	mu       sync.Mutex
	degraded bool
	memory   []Item
	// last is the queue as of the most recent successful read or write.
	last []Item
}

// NewQueue constructs a queue over store.
func NewQueue(store kv.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{store: store, logger: logger}
}

// Load returns the queued items in insertion order. When ctx is done before
// the store answers, it returns the last items it saw.
func (q *Queue) Load(ctx context.Context) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.load(ctx)
	if err != nil {
		return cloneItems(q.last)
	}
	return items
}

// Save replaces the persisted queue with items.
func (q *Queue) Save(ctx context.Context, items []Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.save(ctx, items)
}

// Append adds item to the end of the queue.
func (q *Queue) Append(ctx context.Context, item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.load(ctx)
	if err != nil {
		return
	}
	q.save(ctx, append(items, item))
}

// Update applies fn to the current queue and saves the result in one step,
// so items appended by other callers meanwhile are not lost. fn is not called
// when ctx is done before the queue could be read.
func (q *Queue) Update(ctx context.Context, fn func([]Item) []Item) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.load(ctx)
	if err != nil {
		return cloneItems(q.last)
	}
	items = fn(items)
	q.save(ctx, items)
	return cloneItems(items)
}

// Len returns the number of queued items.
func (q *Queue) Len(ctx context.Context) int {
	return len(q.Load(ctx))
}

// Degraded reports whether the queue lost its durable store this session.
func (q *Queue) Degraded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.degraded
}

// canceled reports whether err comes from ctx rather than from the store.
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// load reads the queue. The only error it returns is a canceled context.
func (q *Queue) load(ctx context.Context) ([]Item, error) {
	if q.degraded {
		return cloneItems(q.memory), nil
	}
	raw, err := q.store.Get(ctx, QueueKey)
	if errors.Is(err, kv.ErrNotFound) {
		q.last = []Item{}
		return []Item{}, nil
	}
	if err != nil {
		if canceled(ctx, err) {
			return nil, err
		}
		q.logger.Error("pending queue unavailable, keeping it in memory", slog.Any("error", err))
		q.degrade(q.last)
		return cloneItems(q.memory), nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		q.logger.Warn("pending queue is corrupt, starting empty", slog.Any("error", err))
		return []Item{}, nil
	}
	if items == nil {
		items = []Item{}
	}
	q.last = cloneItems(items)
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []Item) {
	if items == nil {
		items = []Item{}
	}
	if q.degraded {
		q.memory = cloneItems(items)
		return
	}
	raw, err := json.Marshal(items)
	if err == nil {
		err = q.store.Set(ctx, QueueKey, raw)
	}
	if err == nil {
		q.last = cloneItems(items)
		return
	}
	if canceled(ctx, err) {
		q.logger.Warn("pending queue write abandoned", slog.Any("error", err))
		return
	}
	q.logger.Error("persist pending queue, keeping it in memory", slog.Any("error", err))
	q.degrade(items)
}

// degrade switches to the in-memory copy, seeded with items so entries the
// store held stay visible.
func (q *Queue) degrade(items []Item) {
	q.degraded = true
	q.memory = cloneItems(items)
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
