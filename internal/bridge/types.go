package bridge

import (
	"context"
	"time"

	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/hono"
)

// Intervals governing the two retry loops.
const (
	// ReconnectInterval is the fixed wait before retrying a failed
	// connect or a lost connection.
	ReconnectInterval = 5000 * time.Millisecond

	// ConfigRetryInterval is the fixed wait between credential
	// resolution attempts while the tenant's configuration is incomplete.
	// Unbounded retries: completing the configuration is an out-of-band
	// operator action.
	ConfigRetryInterval = 60000 * time.Millisecond
)

// State is the lifecycle state of one tenant connection.
type State string

// Tenant connection states. There is no terminal state: the bridge
// retries for as long as the tenant is attached.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Credentials are the resolved upstream connection parameters for one
// tenant. Immutable once a connect attempt starts; re-resolved on every
// reconnect so credential rotation takes effect without a restart.
type Credentials struct {
	TenantID string
	Host     string
	Port     int
	Username string
	Password string
}

// Broker dials tenant connections to the upstream broker.
//
// Implemented over the hono client in production; faked in tests.
type Broker interface {
	// Dial opens one tenant connection. onDisconnect fires at most once
	// when an established connection is lost.
	Dial(creds Credentials, onDisconnect func(err error)) (BrokerConn, error)
}

// BrokerConn is one tenant's live broker connection.
type BrokerConn interface {
	CreateTelemetryConsumer(handler hono.MessageHandler, onDetach hono.DetachHandler) error
	CreateEventConsumer(handler hono.MessageHandler, onDetach hono.DetachHandler) error
	SendOneWayCommand(cmd hono.Command, done func(err error)) error
	SendCommand(cmd hono.Command, done func(response []byte, err error)) error
	Close() error
}

// Backend is the downstream registry/store surface used by the bridge.
//
// Every method resolves the acting tenant from the context; calls made
// outside an executor-bound tenant scope fail with tenant.ErrNoTenant.
// This forces all downstream writes through the tenant executor even
// when triggered from broker I/O callbacks.
type Backend interface {
	TenantOptions(ctx context.Context, category string) (map[string]string, error)

	GetExternalID(ctx context.Context, idType, value string) (c8y.ExternalID, error)
	CreateExternalID(ctx context.Context, moID, idType, value string) error
	ListExternalIDs(ctx context.Context, moID string) ([]c8y.ExternalID, error)

	CreateManagedObject(ctx context.Context, mo c8y.ManagedObject) (c8y.ManagedObject, error)
	UpdateManagedObject(ctx context.Context, id string, mo c8y.ManagedObject) (c8y.ManagedObject, error)
	HasChildDevice(ctx context.Context, parentID, childID string) (bool, error)
	AddChildDevice(ctx context.Context, parentID, childID string) error

	CreateEvent(ctx context.Context, event c8y.Event) (c8y.Event, error)

	ListOperations(ctx context.Context, agentID string, status c8y.OperationStatus) ([]c8y.Operation, error)
	UpdateOperationStatus(ctx context.Context, id string, status c8y.OperationStatus, failureReason string) error
}

// Logger defines the logging interface used across the bridge core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Auditor records bridge activity to the audit trail. Optional; a nil
// auditor disables recording.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, tenantID string, details map[string]any)
}

// Mirror receives best-effort copies of bridge activity for local
// time-series storage. Optional; a nil mirror disables it.
type Mirror interface {
	WriteTelemetry(tenantID, deviceID string, fields map[string]any)
	WriteConnectionState(tenantID, state string)
	WriteOperationResult(tenantID, deviceID, command string, success bool, duration time.Duration)
}
