// Package service holds the HTTP handlers and the response helpers they
// share. Handlers translate requests into store calls and store errors into
// statuses; they hold no business rules of their own.
package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pulsesocial/pulse-server/store"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps a store failure onto the status the API promises for it.
// Anything that is not a known kind is an internal error: logged with its
// cause, reported to the client without it.
func WriteError(logger *zap.Logger, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, store.ErrInvalidParent),
		errors.Is(err, store.ErrWeakCredential):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicateEmail),
		errors.Is(err, store.ErrSelfFollow):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidCredential):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		logger.Error("internal error", zap.Error(err))
		WriteJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}
