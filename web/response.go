// ABOUTME: JSON response helpers for the HTTP API
// ABOUTME: Maps calendar and storage errors to status codes and a {error:{code,message}} body
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/harperreed/studypilot/db"
	"github.com/harperreed/studypilot/logger"
	"github.com/harperreed/studypilot/sync"
)

// errInvalidInput marks request validation failures.
var errInvalidInput = errors.New("invalid input")

// ErrorResponse is the error half of every failed response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error ErrorResponse `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return nil
}

// errorStatus returns the HTTP status, error code, and client-facing message for err.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, errInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, sync.ErrInvalidInterval):
		return http.StatusBadRequest, "INVALID_INTERVAL", "end must be after start"
	case errors.Is(err, db.ErrStateNotFound):
		return http.StatusBadRequest, "INVALID_STATE", "OAuth state is unknown or expired; start the connection again"
	case errors.Is(err, db.ErrInvalidAssignment), errors.Is(err, db.ErrInvalidSubtask):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, sync.ErrNotConnected):
		return http.StatusUnauthorized, "NOT_CONNECTED", "Google Calendar is not connected; connect it and try again"
	case errors.Is(err, sync.ErrRefreshFailed):
		return http.StatusUnauthorized, "RECONNECT_REQUIRED", "Google Calendar access expired; reconnect it and try again"
	case errors.Is(err, sync.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED", "Google Calendar refused access to this calendar"
	case errors.Is(err, sync.ErrNotFound), errors.Is(err, db.ErrAssignmentNotFound), errors.Is(err, db.ErrSubtaskNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, sync.ErrSlotConflict):
		return http.StatusConflict, "SLOT_CONFLICT", "the requested time conflicts with an existing event; pick another time"
	case errors.Is(err, sync.ErrRateLimited):
		return http.StatusServiceUnavailable, "RATE_LIMITED", "Google Calendar is rate limiting requests; try again shortly"
	case errors.Is(err, sync.ErrTransient):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Google Calendar is temporarily unavailable; try again shortly"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// writeError writes the mapped error response, logging internal errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, errorEnvelope{Error: ErrorResponse{Code: code, Message: message}})
}
