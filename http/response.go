package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/filegate"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the error response matching err's kind. When the client
// has already gone away nothing is written: there is nobody left to read it.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		slog.Info("request cancelled by client", "method", r.Method, "path", r.URL.Path, "error", err)
		return
	}

	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, filegate.ErrNotFound):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "Object not found")

	case errors.Is(err, filegate.ErrAlreadyExists):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusConflict, "already_exists", "Object already exists")

	case errors.Is(err, filegate.ErrSizeLimitExceeded), errors.As(err, &maxErr):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusRequestEntityTooLarge, "size_limit_exceeded", "File too large")

	case errors.Is(err, filegate.ErrInvalidInput):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, filegate.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		slog.Error("object store unavailable", "error", err)
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "Object store unavailable")

	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
