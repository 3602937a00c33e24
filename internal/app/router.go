package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	entrieshttp "github.com/learnjournal/journal/internal/entries/http"
	"github.com/learnjournal/journal/internal/observability"
	"github.com/learnjournal/journal/internal/platform/httpx"
	"github.com/learnjournal/journal/internal/view"
	"github.com/learnjournal/journal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Templates *view.Engine
	Entries   *entrieshttp.Handler
	Metrics   *observability.Metrics
}

// NewRouter constructs the chi.Router with journal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	writeLimit := 0
	version := ""
	if params.Config != nil {
		writeLimit = params.Config.WriteRateLimit
		version = params.Config.CacheVersion
	}
	params.Entries.MountRoutes(r, writeLimit)

	for _, page := range view.Pages {
		r.Get(page.Path, pageHandler(params, page, version))
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
		return r
	}

	r.Get("/manifest.json", staticFile(staticFS, "manifest.json", "application/manifest+json", "public, max-age=3600"))
	r.Get("/offline.html", staticFile(staticFS, "offline.html", "text/html; charset=utf-8", "public, max-age=3600"))
	r.Get("/sw.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Service-Worker-Allowed", "/")
		staticFile(staticFS, "js/sw.js", "application/javascript", "no-cache")(w, r)
	})

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	r.Handle("/static/*", staticCacheHandler(fileServer))

	return r
}

func pageHandler(params RouterParams, page view.Page, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := view.TemplateData{
			Title:       page.Title,
			CurrentPath: page.Path,
			Version:     version,
		}
		if err := params.Templates.Render(w, page.Template, data); err != nil {
			params.Logger.Error("render page", slog.String("page", page.Path), slog.Any("error", err))
			httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		}
	}
}

func staticFile(fsys fs.FS, name, contentType, cacheControl string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			httpx.Fail(w, http.StatusNotFound, "Resource not found")
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", cacheControl)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in the browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
