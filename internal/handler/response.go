package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "validation_error", "message": "missing required fields: theme"}
//
// This makes it easy for the frontend to parse errors — it always knows
// what fields to expect, regardless of whether it's a 400, a 403, or a 502
// from a failed webhook call.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/postforge/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
// Details is only populated for upstream failures, where a short diagnostic
// ("webhook returned 500") helps the caller without exposing internals.
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`           // Human-readable description
	Details string `json:"details,omitempty"` // Optional safe diagnostic
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code MUST be set before the body is written. Once
// Encode calls w.Write() the headers are sent, and later changes are
// silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent at this point — we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// This is where domain errors (from the service layer) get translated to HTTP.
// The service layer returns apperror.ErrValidation, apperror.ErrUpstream, etc.
// This function maps those to 400, 502, etc. The service layer should not
// know about HTTP status codes — different consumers might use different
// protocols.
//
// errors.Is() walks the entire error chain (via Unwrap()), so a service
// error wrapped with fmt.Errorf("publishing post: %w", ...) still matches
// its sentinel.
func writeError(w http.ResponseWriter, err error) {
	// Try to extract our AppError for the human-readable message
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadGateway // 502
			errorType = "upstream_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	// Unknown error — return a generic 500.
	// NEVER expose raw error text to the client: it might contain SQL,
	// file paths, or upstream tokens.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
