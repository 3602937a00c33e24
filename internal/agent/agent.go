// Package agent wires the client side of the journal: the pending queue,
// the sync engine, the response cache and the connectivity monitor.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/learnjournal/journal/internal/app"
	"github.com/learnjournal/journal/internal/connectivity"
	"github.com/learnjournal/journal/internal/entries"
	jobmetrics "github.com/learnjournal/journal/internal/jobs"
	"github.com/learnjournal/journal/internal/notify"
	"github.com/learnjournal/journal/internal/observability"
	"github.com/learnjournal/journal/internal/pending"
	"github.com/learnjournal/journal/internal/platform/cache"
	"github.com/learnjournal/journal/internal/platform/kv"
	"github.com/learnjournal/journal/internal/prefs"
	"github.com/learnjournal/journal/internal/remote"
	"github.com/learnjournal/journal/internal/swcache"
	"github.com/learnjournal/journal/internal/syncer"
)

const (
	redisKeyPrefix = "journal"
	probeTimeout   = 2 * time.Second
	shutdownWait   = 5 * time.Second
)

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	Notifier notify.Notifier
	// Transport is the network below the cache layer.
	Transport http.RoundTripper
	// Store replaces the configured key-value store.
	Store kv.Store
	// Prober replaces the HTTP health probe.
	Prober connectivity.Prober
}

// Agent owns every client-side component for one process.
type Agent struct {
	Config  *app.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Store   kv.Store
	Queue   *pending.Queue
	Themes  *prefs.Themes
	Cache   *swcache.Layer
	Remote  *remote.Client
	Engine  *syncer.Engine
	Monitor *connectivity.Monitor

	prober connectivity.Prober
	redis  *redis.Client
}

// New builds an Agent from cfg.
func New(ctx context.Context, cfg *app.Config, logger *slog.Logger, opts Options) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("agent: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	a := &Agent{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	store, err := openStore(ctx, cfg, opts.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Queue = pending.NewQueue(store, logger)
	a.Themes = prefs.NewThemes(store)

	jobs := jobmetrics.NewMetrics(a.Metrics.Registerer())
	layer, err := swcache.New(swcache.Options{
		Origin:  cfg.ServerBase(),
		Version: cfg.CacheVersion,
		Next:    opts.Transport,
		Store:   a.cacheStore(ctx),
		Logger:  logger,
		Metrics: swcache.NewMetrics(a.Metrics.Registerer()),
		Jobs:    jobs,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("agent: cache layer: %w", err)
	}
	a.Cache = layer

	client, err := remote.NewClient(cfg.ServerURL, &http.Client{Transport: layer, Timeout: cfg.HTTPTimeout})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("agent: remote client: %w", err)
	}
	a.Remote = client

	a.Engine = syncer.NewEngine(syncer.Deps{
		Queue:     a.Queue,
		Remote:    client,
		Validator: entries.NewValidator(),
		Notifier:  opts.Notifier,
		Metrics:   jobs,
		Logger:    logger,
	}, syncer.Policy{
		MaxAttempts: cfg.SyncMaxAttempts,
		BackoffBase: cfg.SyncBackoffBase,
		BackoffMax:  cfg.SyncBackoffMax,
	})
	a.Engine.SetObserver(syncer.ObserverFunc(func(localID string, committed entries.Entry) {
		logger.Info("pending entry committed", slog.String("local_id", localID), slog.String("id", committed.ID))
	}))

	a.prober = opts.Prober
	if a.prober == nil {
		a.prober = connectivity.NewHTTPProber(cfg.ServerBase(), probeTimeout)
	}
	a.Monitor = connectivity.NewMonitor(a.Engine, a.prober, opts.Notifier, logger, connectivity.Options{
		Interval: cfg.ProbeInterval,
		Debounce: cfg.SyncDebounce,
	})
	a.Engine.SetConnectivity(a.Monitor)

	return a, nil
}

func openStore(ctx context.Context, cfg *app.Config, override kv.Store) (kv.Store, error) {
	if override != nil {
		return override, nil
	}
	if cfg.StatePath == "" {
		return kv.NewMemory(), nil
	}
	store, err := kv.OpenSQLite(ctx, cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("agent: open state: %w", err)
	}
	return store, nil
}

// cacheStore picks the response cache backend. An unreachable Redis falls
// back to memory; the cache only speeds up and backs up reads.
func (a *Agent) cacheStore(ctx context.Context) swcache.Store {
	if a.Config.CacheBackend != app.CacheBackendRedis {
		return swcache.NewMemoryStore()
	}
	client, err := cache.New(ctx, a.Config.RedisAddr)
	if err != nil {
		a.Logger.Warn("redis cache unavailable, using memory", slog.Any("error", err))
		return swcache.NewMemoryStore()
	}
	a.redis = client
	return swcache.NewRedisStore(client, redisKeyPrefix)
}

// Probe checks the server once and records the result, so the engine picks
// the right write path for a one-shot command.
func (a *Agent) Probe(ctx context.Context) bool {
	online := a.prober.Probe(ctx)
	a.Monitor.Observe(ctx, online)
	return online
}

// Prepare drops caches from older versions and, when the server is
// reachable, precaches the app shell.
func (a *Agent) Prepare(ctx context.Context) error {
	if _, err := a.Cache.Activate(ctx); err != nil {
		return err
	}
	if !a.Monitor.Online() {
		return nil
	}
	if err := a.Cache.Install(ctx, swcache.DefaultAssets); err != nil {
		a.Logger.Warn("precache app shell", slog.Any("error", err))
	}
	return nil
}

// Watch follows connectivity until ctx is done, draining the queue whenever
// the server comes back.
func (a *Agent) Watch(ctx context.Context) error {
	return a.Monitor.Run(ctx)
}

// Serve runs the caching reverse proxy on addr next to the connectivity
// monitor until ctx is done.
func (a *Agent) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("agent: listen %s: %w", addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (a *Agent) ServeListener(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Cache.Handler(a.Config.ServerBase()),
		ReadHeaderTimeout: a.Config.AppReadTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("starting cache proxy", slog.String("addr", ln.Addr().String()), slog.String("target", a.Config.ServerURL))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("agent: proxy: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.Monitor.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close stops background work and releases the stores.
func (a *Agent) Close() error {
	if a.Monitor != nil {
		a.Monitor.Close()
	}
	if a.Cache != nil {
		a.Cache.Wait()
	}
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
