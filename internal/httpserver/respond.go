package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"homehub/internal/domain"
)

// errorResponse is the envelope every failure shares: a summary message
// plus itemized error strings, so clients can render either.
type errorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Data    []any    `json:"data"`
	Errors  []string `json:"errors"`
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a domain error to its HTTP status and envelope. Data
// may carry context for the failure, e.g. the existing conversation on a
// duplicate-channel conflict.
func writeError(w http.ResponseWriter, err error, data ...any) {
	status := http.StatusInternalServerError
	message := "internal server error"
	var details []string

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		message = "validation failed"
		details = []string{err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "authentication required"
		details = []string{err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		message = "you do not have access to this resource"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "resource not found"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		message = "resource already exists"
	}

	if details == nil {
		details = []string{}
	}
	if data == nil {
		data = []any{}
	}
	writeJSON(w, status, errorResponse{
		Status:  "error",
		Message: message,
		Data:    data,
		Errors:  details,
	})
}

// writeValidationError reports a request-shape problem found before any
// service call.
func writeValidationError(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Status:  "error",
		Message: "validation failed",
		Data:    []any{},
		Errors:  []string{detail},
	})
}
