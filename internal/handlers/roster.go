package handlers

import (
	"net/http"
)

// ListRecentNotifications returns the tail of the notification log.
// GET /api/notifications/recent?limit=
func (h *Handlers) ListRecentNotifications(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.coord.RecentNotifications(parseLimit(r)))
}

// ListBranches returns the roster's branches.
// GET /api/branches
func (h *Handlers) ListBranches(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.coord.BranchesAvailable())
}

// ListSections returns the sections of a branch, or of every branch.
// GET /api/sections?branch=
func (h *Handlers) ListSections(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.coord.SectionsAvailable(r.URL.Query().Get("branch")))
}

// ListStudents returns the students of a branch, optionally narrowed to a section.
// GET /api/students?branch=&section=
func (h *Handlers) ListStudents(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	branch, ok := requireQueryParam(w, r, "branch")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.coord.RecipientsFor(branch, r.URL.Query().Get("section")))
}
