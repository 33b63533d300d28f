package api

import (
	"net/http"
	"strconv"

	"github.com/honobridge/core/internal/audit"
)

// handleListAudit returns audit trail entries matching the query
// filters. Requires the admin role.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok || !claims.Role.CanReadAudit() {
		writeForbidden(w, "audit access requires the admin role")
		return
	}
	if s.audit == nil {
		writeNotFound(w, "audit trail not enabled")
		return
	}

	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entity_type"),
		TenantID:   r.URL.Query().Get("tenant_id"),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
