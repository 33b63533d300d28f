package tenant

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTenant indicates no tenant is bound to the context.
var ErrNoTenant = errors.New("tenant: no tenant in context")

// contextKey is unexported to prevent collisions with other packages.
type contextKey struct{}

// WithContext binds a tenant id to the context.
func WithContext(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext extracts the tenant id bound to the context.
//
// Returns:
//   - string: The bound tenant id
//   - bool: false when no tenant is bound
func FromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(contextKey{}).(string)
	return tenantID, ok
}

// MustFromContext extracts the tenant id or returns ErrNoTenant.
func MustFromContext(ctx context.Context) (string, error) {
	tenantID, ok := FromContext(ctx)
	if !ok || tenantID == "" {
		return "", ErrNoTenant
	}
	return tenantID, nil
}

// Executor runs callbacks with a tenant bound to the context.
//
// Broker callbacks arrive on transport goroutines with no tenant scope
// attached; the executor re-enters the tenant before any backend call so
// downstream code can resolve the scope uniformly.
type Executor struct {
	// known validates tenant ids before execution; nil accepts all.
	known func(tenantID string) bool
}

// NewExecutor creates an executor.
//
// Parameters:
//   - known: Optional validator for tenant ids; nil accepts any tenant
func NewExecutor(known func(tenantID string) bool) *Executor {
	return &Executor{known: known}
}

// Run executes fn with tenantID bound to the derived context.
//
// Parameters:
//   - ctx: Parent context; cancellation propagates into fn
//   - tenantID: The tenant to bind
//   - fn: The unit of work to execute in tenant scope
//
// Returns:
//   - error: ErrNoTenant for an empty or unknown tenant, otherwise fn's error
func (e *Executor) Run(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	if tenantID == "" {
		return ErrNoTenant
	}
	if e.known != nil && !e.known(tenantID) {
		return fmt.Errorf("%w: unknown tenant %s", ErrNoTenant, tenantID)
	}
	return fn(WithContext(ctx, tenantID))
}
