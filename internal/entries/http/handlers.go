package entrieshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnjournal/journal/internal/entries"
	"github.com/learnjournal/journal/internal/platform/httpx"
)

const (
	// IdempotencyKeyHeader names the create key sent by clients that retry.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader marks a create answered from an earlier request.
	IdempotentReplayHeader = "Idempotent-Replayed"
)

// Service is the entry store behaviour the handlers depend on.
type Service interface {
	List(ctx context.Context) ([]entries.Entry, error)
	CreateIdempotent(ctx context.Context, key string, in entries.Entry) (entries.Entry, int, bool, error)
	Update(ctx context.Context, id string, patch entries.Patch) (entries.Entry, error)
	Delete(ctx context.Context, id string) (int, error)
}

// Handler exposes the entry store over HTTP.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list reflections", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries.ListResponse{Success: true, Reflections: list, Count: len(list)})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in entries.Entry
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	key := r.Header.Get(IdempotencyKeyHeader)
	created, total, replayed, err := h.service.CreateIdempotent(r.Context(), key, in)
	if err != nil {
		h.logFailure("create reflection", err)
		httpx.RespondError(w, err)
		return
	}
	if replayed {
		w.Header().Set(IdempotentReplayHeader, "true")
		h.logger.Info("reflection create replayed", slog.String("id", created.ID), slog.String("key", key))
	} else {
		h.logger.Info("reflection added", slog.String("id", created.ID), slog.Int("total", total))
	}
	httpx.JSON(w, http.StatusCreated, entries.CreateResponse{
		Success:          true,
		Message:          "Reflection added successfully",
		Reflection:       created,
		TotalReflections: total,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch entries.Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.logFailure("update reflection", err, slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries.UpdateResponse{
		Success:    true,
		Message:    "Reflection updated successfully",
		Reflection: updated,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	total, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.logFailure("delete reflection", err, slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries.DeleteResponse{
		Success:          true,
		Message:          "Reflection deleted successfully",
		TotalReflections: total,
	})
}

func (h *Handler) logFailure(op string, err error, attrs ...any) {
	attrs = append(attrs, slog.Any("error", err))
	if errors.Is(err, entries.ErrValidation) || errors.Is(err, entries.ErrNotFound) {
		h.logger.Info(op+" rejected", attrs...)
		return
	}
	h.logger.Error(op, attrs...)
}
