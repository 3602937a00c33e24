// Package connectivity tracks whether the journal server is reachable and
// starts a queue drain when it comes back.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/learnjournal/journal/internal/notify"
	"github.com/learnjournal/journal/internal/syncer"
)

const (
	// MessageOnline is shown once per offline to online transition.
	MessageOnline = "Back online"
	// MessageOffline is shown once per online to offline transition.
	MessageOffline = "You are offline. New entries will be saved locally."
)

// Drainer is the part of the sync engine the monitor drives.
type Drainer interface {
	Drain(ctx context.Context) syncer.Result
	Pending(ctx context.Context) int
}

// Options tunes a Monitor.
type Options struct {
	Interval time.Duration
	Debounce time.Duration
}

// Status is a point-in-time report.
type Status struct {
	Online  bool           `json:"online"`
	Pending int            `json:"pending"`
	Drained *syncer.Result `json:"drained,omitempty"`
}

// Monitor turns connectivity observations into notices and drains.
type Monitor struct {
	drainer  Drainer
	prober   Prober
	notifier notify.Notifier
	logger   *slog.Logger
	interval time.Duration
	debounce time.Duration

	mu       sync.Mutex
	observed bool
	online   bool
	timer    *time.Timer
	closed   bool
	drains   sync.WaitGroup
}

// NewMonitor constructs a monitor. Until the first observation it reports
// online.
func NewMonitor(drainer Drainer, prober Prober, notifier notify.Notifier, logger *slog.Logger, opts Options) *Monitor {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	return &Monitor{
		drainer:  drainer,
		prober:   prober,
		notifier: notifier,
		logger:   logger,
		interval: opts.Interval,
		debounce: opts.Debounce,
		online:   true,
	}
}

// Online returns the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Observe records a connectivity reading. The first reading only sets the
// state; later changes notify once and, when coming back online with queued
// entries, schedule a drain after the debounce delay.
func (m *Monitor) Observe(ctx context.Context, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if !m.observed {
		m.observed = true
		m.online = online
		return
	}
	if m.online == online {
		return
	}
	m.online = online

	if !online {
		m.cancelDrainLocked()
		m.logger.Info("connectivity lost")
		m.notifier.Notify(notify.Notice{Kind: notify.KindWarning, Message: MessageOffline})
		return
	}
	m.logger.Info("connectivity restored")
	m.notifier.Notify(notify.Notice{Kind: notify.KindSuccess, Message: MessageOnline})
	if m.drainer.Pending(ctx) > 0 {
		m.scheduleDrainLocked(ctx)
	}
}

func (m *Monitor) scheduleDrainLocked(ctx context.Context) {
	m.cancelDrainLocked()
	m.drains.Add(1)
	m.timer = time.AfterFunc(m.debounce, func() {
		defer m.drains.Done()
		if ctx.Err() != nil || !m.Online() {
			return
		}
		m.drainer.Drain(ctx)
	})
}

func (m *Monitor) cancelDrainLocked() {
	if m.timer != nil && m.timer.Stop() {
		m.drains.Done()
	}
	m.timer = nil
}

// Check probes now and reports status without changing the monitor state.
// When the server is reachable and entries are queued it drains them.
func (m *Monitor) Check(ctx context.Context) Status {
	status := Status{
		Online:  m.prober.Probe(ctx),
		Pending: m.drainer.Pending(ctx),
	}
	if status.Online && status.Pending > 0 {
		res := m.drainer.Drain(ctx)
		status.Drained = &res
	}
	return status
}

// Run probes at the configured interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Observe(ctx, m.prober.Probe(ctx))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Observe(ctx, m.prober.Probe(ctx))
		}
	}
}

// Close cancels a scheduled drain and waits for a running one.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.cancelDrainLocked()
	m.mu.Unlock()
	m.drains.Wait()
}
