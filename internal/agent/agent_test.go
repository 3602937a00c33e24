package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnjournal/journal/internal/app"
	"github.com/learnjournal/journal/internal/connectivity"
	"github.com/learnjournal/journal/internal/entries"
	entrieshttp "github.com/learnjournal/journal/internal/entries/http"
	"github.com/learnjournal/journal/internal/notify"
	"github.com/learnjournal/journal/internal/view"
)

// network simulates losing the connection to the journal server.
type network struct {
	online atomic.Bool
}

func (n *network) RoundTrip(req *http.Request) (*http.Response, error) {
	if !n.online.Load() {
		return nil, errors.New("network is down")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (n *network) Probe(context.Context) bool { return n.online.Load() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func journalServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := quietLogger()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	repo := entries.NewFileRepository(afero.NewMemMapFs(), "/reflections.json", logger)
	srv := httptest.NewServer(app.NewRouter(app.RouterParams{
		Logger:    logger,
		Config:    &app.Config{CacheVersion: "v1"},
		Templates: templates,
		Entries:   entrieshttp.NewHandler(logger, entries.NewService(repo, entries.NewValidator())),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(serverURL string) *app.Config {
	return &app.Config{
		ServerURL:       serverURL,
		CacheBackend:    app.CacheBackendMemory,
		CacheVersion:    "v1",
		HTTPTimeout:     5 * time.Second,
		ProbeInterval:   10 * time.Millisecond,
		SyncMaxAttempts: 5,
		SyncBackoffBase: time.Millisecond,
		SyncBackoffMax:  time.Millisecond,
		AppReadTimeout:  5 * time.Second,
	}
}

type fixture struct {
	agent   *Agent
	net     *network
	notices *notify.Recorder
	server  *httptest.Server
	cfg     *app.Config
}

func newFixture(t *testing.T, tweak func(*app.Config)) *fixture {
	t.Helper()
	srv := journalServer(t)
	cfg := testConfig(srv.URL)
	if tweak != nil {
		tweak(cfg)
	}
	n := &network{}
	n.online.Store(true)
	notices := &notify.Recorder{}
	a, err := New(context.Background(), cfg, quietLogger(), Options{
		Notifier:  notices,
		Transport: n,
		Prober:    connectivity.ProberFunc(n.Probe),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &fixture{agent: a, net: n, notices: notices, server: srv, cfg: cfg}
}

func entry(name string) entries.Entry {
	return entries.Entry{
		WeekOfJournal:   3,
		JournalName:     name,
		JournalDate:     "2025-02-18",
		TaskName:        "Agent wiring",
		TaskDescription: "Entries written while the server is away are replayed when it returns",
		Technologies:    entries.Technologies{"Go"},
	}
}

func TestOfflineEntryIsDrainedWhenServerReturns(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.net.online.Store(false)
	assert.False(t, f.agent.Probe(ctx))

	rec, err := f.agent.Engine.Submit(ctx, entry("Offline"))
	require.NoError(t, err)
	assert.Equal(t, entries.StatePending, rec.State)
	assert.Equal(t, 1, f.agent.Engine.Pending(ctx))

	f.net.online.Store(true)
	assert.True(t, f.agent.Probe(ctx))

	require.Eventually(t, func() bool {
		return f.agent.Engine.Pending(ctx) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.notices.Count(connectivity.MessageOnline))
	assert.Equal(t, 1, f.notices.Count("All entries synced"))

	list, err := f.agent.Remote.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Offline", list[0].JournalName)
	assert.False(t, entries.IsLocalID(list[0].ID))
}

func TestViewServesCachedEntriesWhileOffline(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.agent.Engine.Submit(ctx, entry("Online"))
	require.NoError(t, err)
	rows, err := f.agent.Engine.View(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	f.net.online.Store(false)
	f.agent.Probe(ctx)

	_, err = f.agent.Engine.Submit(ctx, entry("Queued"))
	require.NoError(t, err)

	rows, err = f.agent.Engine.View(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	states := map[string]entries.State{}
	for _, r := range rows {
		states[r.Entry.JournalName] = r.State
	}
	assert.Equal(t, entries.StateCommitted, states["Online"])
	assert.Equal(t, entries.StatePending, states["Queued"])
}

func TestPrepareInstallsAppShell(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.agent.Prepare(ctx))

	f.net.online.Store(false)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/journal.html", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	resp, err := f.agent.Cache.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRedisCacheBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, func(cfg *app.Config) {
		cfg.CacheBackend = app.CacheBackendRedis
		cfg.RedisAddr = mr.Addr()
	})
	ctx := context.Background()

	_, err := f.agent.Remote.List(ctx)
	require.NoError(t, err)
	f.agent.Cache.Wait()

	members, err := mr.SMembers("journal:caches")
	require.NoError(t, err)
	assert.Contains(t, members, "journal-api-v1")
}

func TestQueueSurvivesRestartWithStatePath(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "journal.db")
	f := newFixture(t, func(cfg *app.Config) { cfg.StatePath = statePath })
	ctx := context.Background()

	f.net.online.Store(false)
	f.agent.Probe(ctx)
	_, err := f.agent.Engine.Submit(ctx, entry("Durable"))
	require.NoError(t, err)
	require.NoError(t, f.agent.Close())

	reopened, err := New(ctx, f.cfg, quietLogger(), Options{Transport: f.net, Prober: connectivity.ProberFunc(f.net.Probe)})
	require.NoError(t, err)
	defer reopened.Close()
	queued := reopened.Engine.Queued(ctx)
	require.Len(t, queued, 1)
	assert.Equal(t, "Durable", queued[0].JournalName)
}

func TestServeListenerProxiesUntilCanceled(t *testing.T) {
	f := newFixture(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.agent.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("proxy did not stop")
	}
}
