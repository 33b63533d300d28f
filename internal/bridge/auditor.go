package bridge

import (
	"context"

	"github.com/honobridge/core/internal/audit"
)

// auditSource identifies bridge-originated audit entries.
const auditSource = "bridge"

// auditRecorder adapts the audit repository to the bridge's optional
// Auditor surface. Recording failures are logged, never propagated: the
// audit trail is diagnostic, not transactional.
type auditRecorder struct {
	repo   audit.Repository
	logger Logger
}

// NewAuditor wraps an audit repository for use by the bridge core.
func NewAuditor(repo audit.Repository, logger Logger) Auditor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &auditRecorder{repo: repo, logger: logger}
}

func (a *auditRecorder) Record(ctx context.Context, action, entityType, entityID, tenantID string, details map[string]any) {
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		TenantID:   tenantID,
		Source:     auditSource,
		Details:    details,
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Warn("audit record dropped", "action", action, "tenant_id", tenantID, "error", err)
	}
}
