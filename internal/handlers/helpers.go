package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/afikmenashe/campus-alert/internal/coordinator"
)

// requireMethod validates that the request method matches the expected method.
// Returns true if valid, false otherwise (and writes error response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeJSON decodes the request body into v. Numbers are kept as json.Number
// so numeric student ids survive untouched. An empty body is accepted when
// allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes the value as JSON with appropriate headers.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// requireQueryParam extracts a query parameter and validates it's not empty.
func requireQueryParam(w http.ResponseWriter, r *http.Request, paramName string) (string, bool) {
	value := r.URL.Query().Get(paramName)
	if value == "" {
		http.Error(w, paramName+" query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// parseLimit reads the limit query parameter. Missing or invalid values yield 0,
// which the coordinator replaces with its default.
func parseLimit(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// handleCoordinatorError maps coordinator errors onto HTTP status codes.
func handleCoordinatorError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, coordinator.ErrInvalidScope), errors.Is(err, coordinator.ErrEmptyMessage):
		slog.Warn("Rejected request", "op", op, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, coordinator.ErrNotFound):
		slog.Warn("Emergency not found", "op", op, "error", err)
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("Request failed", "op", op, "error", err)
		http.Error(w, "Failed to "+op+": "+err.Error(), http.StatusInternalServerError)
	}
}
