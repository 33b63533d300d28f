package bridge

import "errors"

// Sentinel errors for the bridge core.
var (
	// ErrNotAttached indicates the tenant has no connection entry.
	ErrNotAttached = errors.New("bridge: tenant not attached")

	// ErrAlreadyAttached indicates the tenant is already managed.
	ErrAlreadyAttached = errors.New("bridge: tenant already attached")

	// ErrNoConnection indicates no live broker connection exists for the
	// tenant.
	ErrNoConnection = errors.New("bridge: no broker connection")

	// ErrShuttingDown indicates the manager is stopping.
	ErrShuttingDown = errors.New("bridge: shutting down")
)

// Operation failure reasons written to the backend. Free text, but fixed
// so operators can match on them.
const (
	reasonMissingCommand = "operation has no hono_Command fragment"
	reasonNoConnection   = "no upstream connection for tenant"
	reasonNoIdentity     = "target device has no upstream identity"
)
