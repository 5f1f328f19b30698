package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gitbridge/gitbridge/internal/credential"
	"github.com/gitbridge/gitbridge/internal/executor"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeRaw emits an already-encoded JSON payload.
func writeRaw(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeUpstreamError maps executor failures onto proxy-appropriate statuses.
// Client mistakes pass through with the remote status; everything that means
// "the bridge could not complete the call" becomes a gateway error.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var ce *executor.ClientError
	var ae *executor.AuthError
	var ee *executor.ExhaustedError

	switch {
	case errors.As(err, &ce):
		writeError(w, ce.Status, "remote service rejected the request")
	case errors.As(err, &ae):
		writeError(w, http.StatusBadGateway, "remote service rejected our credentials")
	case errors.Is(err, credential.ErrNotFound):
		writeError(w, http.StatusServiceUnavailable, "no credential configured for remote service")
	case errors.Is(err, credential.ErrInvalid):
		writeError(w, http.StatusBadGateway, "configured credential failed validation")
	case errors.Is(err, executor.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "remote service did not respond in time")
	case errors.As(err, &ee):
		writeError(w, http.StatusBadGateway, "remote service unavailable after retries")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
