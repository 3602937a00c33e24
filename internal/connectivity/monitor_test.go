package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnjournal/journal/internal/notify"
	"github.com/learnjournal/journal/internal/syncer"
)

type fakeDrainer struct {
	pending atomic.Int64
	calls   atomic.Int64
}

func (f *fakeDrainer) Drain(ctx context.Context) syncer.Result {
	f.calls.Add(1)
	n := int(f.pending.Swap(0))
	return syncer.Result{Succeeded: n}
}

func (f *fakeDrainer) Pending(ctx context.Context) int {
	return int(f.pending.Load())
}

func newMonitor(t *testing.T, drainer *fakeDrainer, prober Prober) (*Monitor, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	if prober == nil {
		prober = ProberFunc(func(context.Context) bool { return true })
	}
	m := NewMonitor(drainer, prober, rec, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Interval: 5 * time.Millisecond,
		Debounce: 10 * time.Millisecond,
	})
	t.Cleanup(m.Close)
	return m, rec
}

func TestFirstObservationIsSilent(t *testing.T) {
	drainer := &fakeDrainer{}
	drainer.pending.Store(3)
	m, rec := newMonitor(t, drainer, nil)

	m.Observe(context.Background(), true)

	assert.True(t, m.Online())
	assert.Empty(t, rec.Notices())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(0), drainer.calls.Load())
}

func TestEachTransitionNotifiesOnce(t *testing.T) {
	m, rec := newMonitor(t, &fakeDrainer{}, nil)
	ctx := context.Background()

	for _, online := range []bool{true, true, false, false, true, true, true} {
		m.Observe(ctx, online)
	}
	assert.Equal(t, 1, rec.Count(MessageOnline))
	assert.Equal(t, 1, rec.Count(MessageOffline))

	m.Observe(ctx, false)
	m.Observe(ctx, true)
	assert.Equal(t, 2, rec.Count(MessageOnline))
	assert.Equal(t, 2, rec.Count(MessageOffline))
}

func TestBackOnlineDrainsAfterDebounce(t *testing.T) {
	drainer := &fakeDrainer{}
	m, _ := newMonitor(t, drainer, nil)
	ctx := context.Background()

	m.Observe(ctx, false)
	drainer.pending.Store(2)
	m.Observe(ctx, true)

	require.Eventually(t, func() bool { return drainer.calls.Load() == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, drainer.Pending(ctx))
}

func TestFlappingCoalescesIntoOneDrain(t *testing.T) {
	drainer := &fakeDrainer{}
	drainer.pending.Store(1)
	m, _ := newMonitor(t, drainer, nil)
	ctx := context.Background()

	m.Observe(ctx, false)
	m.Observe(ctx, true)
	m.Observe(ctx, false)
	m.Observe(ctx, true)

	require.Eventually(t, func() bool { return drainer.calls.Load() == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(1), drainer.calls.Load())
}

func TestNoDrainWhenQueueEmpty(t *testing.T) {
	drainer := &fakeDrainer{}
	m, rec := newMonitor(t, drainer, nil)
	ctx := context.Background()

	m.Observe(ctx, false)
	m.Observe(ctx, true)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int64(0), drainer.calls.Load())
	assert.Equal(t, 1, rec.Count(MessageOnline))
}

func TestCheckDoesNotChangeState(t *testing.T) {
	drainer := &fakeDrainer{}
	drainer.pending.Store(2)
	m, rec := newMonitor(t, drainer, nil)
	ctx := context.Background()

	status := m.Check(ctx)
	assert.True(t, status.Online)
	assert.Equal(t, 2, status.Pending)
	require.NotNil(t, status.Drained)
	assert.Equal(t, 2, status.Drained.Succeeded)

	// the next observation is still the silent first one
	m.Observe(ctx, true)
	assert.Empty(t, rec.Notices())
}

func TestCheckOfflineSkipsDrain(t *testing.T) {
	drainer := &fakeDrainer{}
	drainer.pending.Store(1)
	m, _ := newMonitor(t, drainer, ProberFunc(func(context.Context) bool { return false }))

	status := m.Check(context.Background())
	assert.False(t, status.Online)
	assert.Nil(t, status.Drained)
	assert.Equal(t, int64(0), drainer.calls.Load())
}

func TestRunFeedsProbeResults(t *testing.T) {
	var mu sync.Mutex
	readings := []bool{true, false, true}
	prober := ProberFunc(func(context.Context) bool {
		mu.Lock()
		defer mu.Unlock()
		if len(readings) == 0 {
			return true
		}
		next := readings[0]
		readings = readings[1:]
		return next
	})
	m, rec := newMonitor(t, &fakeDrainer{}, prober)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.Count(MessageOnline) == 1 }, time.Second, 2*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, rec.Count(MessageOffline))
}

func TestHTTPProber(t *testing.T) {
	var cacheControl atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl.Store(r.Header.Get("Cache-Control"))
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	base, err := url.Parse(srv.URL + "/ignored?x=1")
	require.NoError(t, err)

	prober := NewHTTPProber(base, time.Second)
	assert.True(t, prober.Probe(context.Background()))
	assert.Equal(t, "no-store", cacheControl.Load())

	srv.Close()
	assert.False(t, prober.Probe(context.Background()))
}
