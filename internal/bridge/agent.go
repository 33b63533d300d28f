package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/tenant"
)

// AgentRegistry resolves the bridge's own agent identity per tenant.
//
// The agent is the managed object representing this bridge instance in
// the backend registry; it acts as hierarchy parent for every bridged
// device and as the addressee for operations. Find-or-create is
// idempotent and the resolved id is cached per tenant.
type AgentRegistry struct {
	backend    Backend
	name       string
	externalID string

	mu  sync.Mutex
	ids map[string]string // tenant id -> agent managed object id
}

// NewAgentRegistry creates an agent registry.
//
// Parameters:
//   - backend: Tenant-scoped backend surface
//   - name: Display name for the agent managed object
//   - externalID: Identity value registered under the serial namespace
func NewAgentRegistry(backend Backend, name, externalID string) *AgentRegistry {
	return &AgentRegistry{
		backend:    backend,
		name:       name,
		externalID: externalID,
		ids:        make(map[string]string),
	}
}

// EnsureAgent returns the agent managed object id for the tenant bound
// to the context, creating the agent on first use.
func (a *AgentRegistry) EnsureAgent(ctx context.Context) (string, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	if id, ok := a.ids[tenantID]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	id, err := a.findOrCreate(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.ids[tenantID] = id
	a.mu.Unlock()
	return id, nil
}

// findOrCreate looks up the agent by external identity and creates it if
// absent.
func (a *AgentRegistry) findOrCreate(ctx context.Context) (string, error) {
	ext, err := a.backend.GetExternalID(ctx, c8y.ExternalIDType, a.externalID)
	if err == nil {
		if ext.ManagedObject == nil || ext.ManagedObject.ID == "" {
			return "", fmt.Errorf("agent identity %s resolves to no managed object", a.externalID)
		}
		return ext.ManagedObject.ID, nil
	}
	if !errors.Is(err, c8y.ErrNotFound) {
		return "", fmt.Errorf("resolving agent identity: %w", err)
	}

	created, err := a.backend.CreateManagedObject(ctx, c8y.ManagedObject{
		Name:     a.name,
		Type:     c8y.AgentType,
		IsDevice: &c8y.Marker{},
		IsAgent:  &c8y.Marker{},
	})
	if err != nil {
		return "", fmt.Errorf("creating agent: %w", err)
	}

	if err := a.backend.CreateExternalID(ctx, created.ID, c8y.ExternalIDType, a.externalID); err != nil {
		return "", fmt.Errorf("registering agent identity: %w", err)
	}
	return created.ID, nil
}
