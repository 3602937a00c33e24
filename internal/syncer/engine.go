// Package syncer moves journal entries between the local pending queue and the
// remote store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/learnjournal/journal/internal/entries"
	jobmetrics "github.com/learnjournal/journal/internal/jobs"
	"github.com/learnjournal/journal/internal/notify"
	"github.com/learnjournal/journal/internal/pending"
	"github.com/learnjournal/journal/internal/remote"
)

var (
	// ErrOffline is returned for edits and deletes attempted without connectivity.
	ErrOffline = errors.New("syncer: edits and deletes need a connection")
	// ErrPendingEntry is returned for edits and deletes of entries not yet synced.
	ErrPendingEntry = errors.New("syncer: entry is still waiting to sync")
)

// Remote is the entry store as seen from the client.
type Remote interface {
	List(ctx context.Context) ([]entries.Entry, error)
	Create(ctx context.Context, e entries.Entry) (entries.Entry, int, error)
	Update(ctx context.Context, id string, patch entries.Patch) (entries.Entry, error)
	Delete(ctx context.Context, id string) (int, error)
}

// Connectivity reports the last known network state.
type Connectivity interface {
	Online() bool
}

// Observer is told when a pending entry has been committed by the store so the
// rendered placeholder can be swapped for the server record.
type Observer interface {
	EntryCommitted(localID string, committed entries.Entry)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(localID string, committed entries.Entry)

// EntryCommitted calls f.
func (f ObserverFunc) EntryCommitted(localID string, committed entries.Entry) {
	f(localID, committed)
}

// Deps groups the collaborators of an Engine.
type Deps struct {
	Queue     *pending.Queue
	Remote    Remote
	Validator *entries.Validator
	Notifier  notify.Notifier
	Metrics   *jobmetrics.Metrics
	Logger    *slog.Logger
}

// Result summarises one drain.
type Result struct {
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Remaining int  `json:"remaining"`
	Parked    int  `json:"parked"`
	Skipped   bool `json:"skipped,omitempty"`
}

// DrainOptions tunes a single drain.
type DrainOptions struct {
	// Force ignores backoff and retries parked entries.
	Force bool
}

// Engine submits entries and drains the pending queue.
type Engine struct {
	queue     *pending.Queue
	remote    Remote
	validator *entries.Validator
	notifier  notify.Notifier
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
	policy    Policy
	now       func() time.Time

	mu       sync.RWMutex
	conn     Connectivity
	observer Observer

	draining atomic.Bool
}

// NewEngine wires an engine. Until SetConnectivity is called the engine
// assumes it is online.
func NewEngine(deps Deps, policy Policy) *Engine {
	if deps.Validator == nil {
		deps.Validator = entries.NewValidator()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{
		queue:     deps.Queue,
		remote:    deps.Remote,
		validator: deps.Validator,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		policy:    policy.normalized(),
		now:       time.Now,
	}
}

// SetConnectivity installs the source used to pick the write path.
func (e *Engine) SetConnectivity(c Connectivity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conn = c
}

// SetObserver installs the commit observer.
func (e *Engine) SetObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

func (e *Engine) online() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conn == nil || e.conn.Online()
}

func (e *Engine) committed(localID string, entry entries.Entry) {
	e.mu.RLock()
	observer := e.observer
	e.mu.RUnlock()
	if observer != nil {
		observer.EntryCommitted(localID, entry)
	}
}

// Pending returns the number of queued entries.
func (e *Engine) Pending(ctx context.Context) int {
	return e.queue.Len(ctx)
}

// Queued returns the queued entries with their delivery state.
func (e *Engine) Queued(ctx context.Context) []pending.Item {
	return e.queue.Load(ctx)
}

// Submit validates and records a new entry. Online it is written through to
// the store; offline, or when the store is unreachable, it is queued and the
// pending record is returned.
func (e *Engine) Submit(ctx context.Context, in entries.Entry) (entries.Record, error) {
	in.Technologies = in.Technologies.Normalize()
	if err := e.validator.Entry(in); err != nil {
		return entries.Record{}, err
	}

	// The local id is fixed before the first attempt so a retry of a create
	// whose response was lost carries the same idempotency key.
	if !entries.IsLocalID(in.ID) {
		in.ID = entries.NewLocalID()
	}

	if e.online() {
		created, _, err := e.remote.Create(ctx, in)
		if err == nil {
			return entries.CommittedRecord(created), nil
		}
		if !remote.IsTransient(err) || ctx.Err() != nil {
			return entries.Record{}, fmt.Errorf("syncer: submit: %w", err)
		}
		e.logger.Warn("create failed, queueing entry", slog.Any("error", err))
	}

	item := pending.NewItem(in, e.now())
	store := context.WithoutCancel(ctx)
	e.queue.Append(store, item)
	e.metrics.SetPending(e.queue.Len(store))
	e.notifier.Notify(notify.Notice{Kind: notify.KindInfo, Message: "Saved offline. It will sync when you are back online."})
	return entries.PendingRecord(item.Entry), nil
}

// Update edits a committed entry. It never queues.
func (e *Engine) Update(ctx context.Context, id string, patch entries.Patch) (entries.Entry, error) {
	if entries.IsLocalID(id) {
		return entries.Entry{}, ErrPendingEntry
	}
	if err := e.validator.Patch(patch); err != nil {
		return entries.Entry{}, err
	}
	if !e.online() {
		return entries.Entry{}, ErrOffline
	}
	updated, err := e.remote.Update(ctx, id, patch)
	if err != nil {
		return entries.Entry{}, fmt.Errorf("syncer: update: %w", err)
	}
	return updated, nil
}

// Delete removes a committed entry. It never queues.
func (e *Engine) Delete(ctx context.Context, id string) (int, error) {
	if entries.IsLocalID(id) {
		return 0, ErrPendingEntry
	}
	if !e.online() {
		return 0, ErrOffline
	}
	total, err := e.remote.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("syncer: delete: %w", err)
	}
	return total, nil
}

// View returns committed and pending entries as one list, newest first. When
// the committed list cannot be fetched the pending rows are still returned
// along with the error.
func (e *Engine) View(ctx context.Context) ([]entries.Record, error) {
	items := e.queue.Load(ctx)
	queued := make([]entries.Entry, 0, len(items))
	for _, it := range items {
		queued = append(queued, it.Entry)
	}
	committed, err := e.remote.List(ctx)
	if err != nil {
		return entries.Merge(nil, queued), fmt.Errorf("syncer: list: %w", err)
	}
	return entries.Merge(committed, queued), nil
}

// Drain delivers queued entries in insertion order.
func (e *Engine) Drain(ctx context.Context) Result {
	return e.DrainWith(ctx, DrainOptions{})
}

// DrainWith is Drain with options. Only one drain runs at a time; a call made
// while another is in progress returns at once with Skipped set.
func (e *Engine) DrainWith(ctx context.Context, opts DrainOptions) Result {
	if !e.draining.CompareAndSwap(false, true) {
		return Result{Skipped: true}
	}
	defer e.draining.Store(false)

	items := e.queue.Load(ctx)
	if len(items) == 0 {
		return Result{}
	}

	// Queue bookkeeping for a request that already reached the store must
	// land even when ctx is canceled right after.
	store := context.WithoutCancel(ctx)

	tracker := e.metrics.Track("sync_drain")
	var res Result
	now := e.now()
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if !opts.Force && !it.Due(now) {
			continue
		}
		// The local id travels as the idempotency key, never as the entry id.
		committed, _, err := e.remote.Create(ctx, it.Entry)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failed := e.recordFailure(it, err, now)
			e.replace(store, failed)
			res.Failed++
			continue
		}
		e.remove(store, it.ID)
		res.Succeeded++
		committed.Pending = false
		e.committed(it.ID, committed)
	}

	res.Remaining, res.Parked = e.countRemaining(store, items)
	e.metrics.AddEntries("synced", res.Succeeded)
	e.metrics.AddEntries("failed", res.Failed)
	e.metrics.SetPending(e.queue.Len(store))

	var drainErr error
	if res.Failed > 0 {
		drainErr = fmt.Errorf("%d entries failed", res.Failed)
	}
	_ = tracker.End(drainErr)

	e.logger.Info("pending queue drained",
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("remaining", res.Remaining),
		slog.Int("parked", res.Parked),
	)
	e.notifier.Notify(summary(res))
	return res
}

func summary(res Result) notify.Notice {
	if res.Remaining == 0 {
		return notify.Notice{Kind: notify.KindSuccess, Message: "All entries synced"}
	}
	return notify.Notice{
		Kind:    notify.KindWarning,
		Message: fmt.Sprintf("%d synced, %d still pending", res.Succeeded, res.Remaining),
	}
}

func (e *Engine) recordFailure(it pending.Item, err error, now time.Time) pending.Item {
	it.Attempts++
	it.LastError = err.Error()
	switch {
	case !remote.IsTransient(err):
		it.Parked = true
		it.NextAttemptAt = time.Time{}
		e.logger.Warn("store rejected pending entry, parking it", slog.String("id", it.ID), slog.Any("error", err))
	case it.Attempts >= e.policy.MaxAttempts:
		it.Parked = true
		it.NextAttemptAt = time.Time{}
		e.logger.Warn("pending entry exhausted its retries, parking it", slog.String("id", it.ID), slog.Int("attempts", it.Attempts))
	default:
		it.Parked = false
		it.NextAttemptAt = now.Add(e.policy.Backoff(it.Attempts))
		e.logger.Info("pending entry will be retried", slog.String("id", it.ID), slog.Time("next_attempt_at", it.NextAttemptAt), slog.Any("error", err))
	}
	if it.Parked {
		e.metrics.AddEntries("parked", 1)
	}
	return it
}

func (e *Engine) remove(ctx context.Context, id string) {
	e.queue.Update(ctx, func(items []pending.Item) []pending.Item {
		out := make([]pending.Item, 0, len(items))
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})
}

func (e *Engine) replace(ctx context.Context, updated pending.Item) {
	e.queue.Update(ctx, func(items []pending.Item) []pending.Item {
		for i := range items {
			if items[i].ID == updated.ID {
				items[i] = updated
			}
		}
		return items
	})
}

// countRemaining counts how many of the drained snapshot are still queued.
func (e *Engine) countRemaining(ctx context.Context, snapshot []pending.Item) (remaining, parked int) {
	ids := make(map[string]struct{}, len(snapshot))
	for _, it := range snapshot {
		ids[it.ID] = struct{}{}
	}
	for _, it := range e.queue.Load(ctx) {
		if _, ok := ids[it.ID]; !ok {
			continue
		}
		remaining++
		if it.Parked {
			parked++
		}
	}
	return remaining, parked
}
