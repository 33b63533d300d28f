package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusResponse wraps the per-tenant connection states.
type statusResponse struct {
	Tenants []tenantStatusView `json:"tenants"`
}

// tenantStatusView is the wire form of one tenant's connection state.
type tenantStatusView struct {
	TenantID string `json:"tenant_id"`
	State    string `json:"state"`
	Since    string `json:"since,omitempty"`
}

// newTenantStatusView formats a status record; the zero Since time is
// omitted rather than rendered as the epoch.
func newTenantStatusView(tenantID, state string, since time.Time) tenantStatusView {
	view := tenantStatusView{TenantID: tenantID, State: state}
	if !since.IsZero() {
		view.Since = since.UTC().Format(time.RFC3339)
	}
	return view
}

// handleStatus returns the connection state of every attached tenant.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := s.status.Status()

	views := make([]tenantStatusView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, newTenantStatusView(st.TenantID, string(st.State), st.Since))
	}
	writeJSON(w, http.StatusOK, statusResponse{Tenants: views})
}

// handleTenantStatus returns the connection state of a single tenant.
func (s *Server) handleTenantStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	for _, st := range s.status.Status() {
		if st.TenantID == tenantID {
			writeJSON(w, http.StatusOK, newTenantStatusView(st.TenantID, string(st.State), st.Since))
			return
		}
	}
	writeNotFound(w, "tenant not attached")
}
