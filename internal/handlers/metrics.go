package handlers

import (
	"net/http"
)

// GetServiceMetrics returns the in-process metrics snapshot.
// GET /api/metrics
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.collector == nil {
		http.Error(w, "Metrics are not enabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.collector.GetSnapshot())
}
