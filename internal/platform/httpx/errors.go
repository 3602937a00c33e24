package httpx

import (
	"errors"
	"net/http"

	"github.com/learnjournal/journal/internal/entries"
)

// RespondError maps domain errors to the journal error envelope.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entries.ErrNotFound):
		Fail(w, http.StatusNotFound, "Reflection not found")
	case errors.Is(err, entries.ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entries.ErrStorage):
		Fail(w, http.StatusInternalServerError, "Failed to save reflection")
	default:
		Fail(w, http.StatusInternalServerError, "Internal server error")
	}
}
