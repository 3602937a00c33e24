package entrieshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/learnjournal/journal/internal/platform/httpx"
)

const writeRateWindow = time.Minute

// MountRoutes registers the entry store endpoints. Writes share a per-IP
// limit of writesPerMinute; a non-positive value disables the limit.
func (h *Handler) MountRoutes(r chi.Router, writesPerMinute int) {
	if h == nil {
		return
	}
	r.Get("/reflections", h.handleList)
	r.Group(func(gr chi.Router) {
		if writesPerMinute > 0 {
			gr.Use(httprate.Limit(writesPerMinute, writeRateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Fail(w, http.StatusTooManyRequests, "Too many requests")
				}),
			))
		}
		gr.Post("/add_reflection", h.handleCreate)
		gr.Put("/reflection/{id}", h.handleUpdate)
		gr.Delete("/reflection/{id}", h.handleDelete)
	})
}
