package bridge

import (
	"context"

	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/tenant"
)

// backendAdapter implements Backend over the multi-tenant c8y client,
// resolving the acting tenant from the context on every call.
type backendAdapter struct {
	client *c8y.Client
}

// NewBackend wraps the backend client in the tenant-scoped Backend
// surface used by the bridge core.
func NewBackend(client *c8y.Client) Backend {
	return &backendAdapter{client: client}
}

func (b *backendAdapter) TenantOptions(ctx context.Context, category string) (map[string]string, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return b.client.GetTenantOptions(ctx, tenantID, category)
}

func (b *backendAdapter) GetExternalID(ctx context.Context, idType, value string) (c8y.ExternalID, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return c8y.ExternalID{}, err
	}
	return b.client.GetExternalID(ctx, tenantID, idType, value)
}

func (b *backendAdapter) CreateExternalID(ctx context.Context, moID, idType, value string) error {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return err
	}
	return b.client.CreateExternalID(ctx, tenantID, moID, idType, value)
}

func (b *backendAdapter) ListExternalIDs(ctx context.Context, moID string) ([]c8y.ExternalID, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return b.client.ListExternalIDs(ctx, tenantID, moID)
}

func (b *backendAdapter) CreateManagedObject(ctx context.Context, mo c8y.ManagedObject) (c8y.ManagedObject, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return c8y.ManagedObject{}, err
	}
	return b.client.CreateManagedObject(ctx, tenantID, mo)
}

func (b *backendAdapter) UpdateManagedObject(ctx context.Context, id string, mo c8y.ManagedObject) (c8y.ManagedObject, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return c8y.ManagedObject{}, err
	}
	return b.client.UpdateManagedObject(ctx, tenantID, id, mo)
}

func (b *backendAdapter) HasChildDevice(ctx context.Context, parentID, childID string) (bool, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return false, err
	}
	return b.client.HasChildDevice(ctx, tenantID, parentID, childID)
}

func (b *backendAdapter) AddChildDevice(ctx context.Context, parentID, childID string) error {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return err
	}
	return b.client.AddChildDevice(ctx, tenantID, parentID, childID)
}

func (b *backendAdapter) CreateEvent(ctx context.Context, event c8y.Event) (c8y.Event, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return c8y.Event{}, err
	}
	return b.client.CreateEvent(ctx, tenantID, event)
}

func (b *backendAdapter) ListOperations(ctx context.Context, agentID string, status c8y.OperationStatus) ([]c8y.Operation, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return b.client.ListOperations(ctx, tenantID, agentID, status)
}

func (b *backendAdapter) UpdateOperationStatus(ctx context.Context, id string, status c8y.OperationStatus, failureReason string) error {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return err
	}
	return b.client.UpdateOperationStatus(ctx, tenantID, id, status, failureReason)
}
