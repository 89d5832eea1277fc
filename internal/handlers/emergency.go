package handlers

import (
	"net/http"
	"strings"

	"github.com/afikmenashe/campus-alert/internal/targeting"
)

// TriggerRequest represents a request to trigger an emergency.
// SelectedStudents are the ids already confirmed safe; they may be strings or numbers.
type TriggerRequest struct {
	EmergencyType    string `json:"emergency_type"`
	EmergencyMessage string `json:"emergency_message"`
	Branch           string `json:"branch"`
	Section          string `json:"section"`
	SelectedStudents []any  `json:"selected_students"`
}

// StatusUpdateRequest represents a follow-up message for an emergency.
type StatusUpdateRequest struct {
	EmergencyID   string `json:"emergency_id"`
	UpdateMessage string `json:"update_message"`
}

// ResolveRequest names the emergency to resolve. An empty id resolves the
// most recent active emergency.
type ResolveRequest struct {
	EmergencyID string `json:"emergency_id"`
}

// ResolveResponse is returned by a successful resolve.
type ResolveResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Emergency any    `json:"emergency"`
}

// TriggerEmergency declares an emergency and notifies every targeted guardian.
// POST /api/emergency/trigger
func (h *Handlers) TriggerEmergency(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req TriggerRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	kind := strings.TrimSpace(req.EmergencyType)
	if kind == "" {
		kind = string(targeting.KindAll)
	}
	rule, err := targeting.ParseScope(kind, req.Branch, req.Section)
	if err != nil {
		handleCoordinatorError(w, err, "trigger emergency")
		return
	}

	summary, err := h.coord.Trigger(r.Context(), rule, req.EmergencyMessage, targeting.NewSafeList(req.SelectedStudents...))
	if err != nil {
		handleCoordinatorError(w, err, "trigger emergency")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetEmergencyStatus returns the current emergency status view.
// GET /api/emergency/status
func (h *Handlers) GetEmergencyStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.coord.CurrentStatus())
}

// GetEmergencyHistory returns every emergency in trigger order.
// GET /api/emergency/history
func (h *Handlers) GetEmergencyHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.coord.History())
}

// SendStatusUpdate appends an update to an emergency and broadcasts it.
// POST /api/emergency/update
func (h *Handlers) SendStatusUpdate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req StatusUpdateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.EmergencyID) == "" || strings.TrimSpace(req.UpdateMessage) == "" {
		http.Error(w, "emergency_id and update_message are required", http.StatusBadRequest)
		return
	}

	update, err := h.coord.StatusUpdate(r.Context(), req.EmergencyID, req.UpdateMessage)
	if err != nil {
		handleCoordinatorError(w, err, "send status update")
		return
	}

	writeJSON(w, http.StatusOK, update)
}

// ResolveEmergency resolves the named emergency, or the latest active one.
// POST /api/emergency/resolve
func (h *Handlers) ResolveEmergency(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ResolveRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	rec, err := h.coord.Resolve(r.Context(), req.EmergencyID)
	if err != nil {
		handleCoordinatorError(w, err, "resolve emergency")
		return
	}

	writeJSON(w, http.StatusOK, ResolveResponse{
		Status:    "emergency_resolved",
		Message:   "Emergency status cleared",
		Emergency: rec,
	})
}
