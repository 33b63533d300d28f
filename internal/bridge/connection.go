package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/honobridge/core/internal/audit"
	"github.com/honobridge/core/internal/hono"
)

// tenantConn is the per-tenant connection record. Owned exclusively by
// the Manager; all access goes through the Manager's mutex.
type tenantConn struct {
	tenantID string
	state    State
	conn     BrokerConn

	// retryTimer is the single pending retry for this tenant. Cancelled
	// before any new retry is scheduled, so at most one exists at any
	// instant even when disconnect and detach fire concurrently.
	retryTimer Timer

	// since records the last state transition.
	since time.Time
}

// TenantStatus is a read-only snapshot of one tenant connection.
type TenantStatus struct {
	TenantID string    `json:"tenant_id"`
	State    State     `json:"state"`
	Since    time.Time `json:"since"`
}

// Manager owns the per-tenant upstream connection state machine.
//
// Every trigger that can start a connection attempt (initial attach,
// disconnect callback, consumer detach, retry timer) funnels into the
// single attemptConnect entry point, which makes the cancel-prior-timer
// discipline enforceable in one place.
//
// Thread Safety: All methods are safe for concurrent use.
type Manager struct {
	broker   Broker
	resolver *Resolver
	inbound  *Inbound
	clock    Clock
	logger   Logger
	auditor  Auditor
	mirror   Mirror

	// onConnected fires exactly once per successful connect, after both
	// consumers are established. Used to trigger the pending-operation
	// sweep.
	onConnected func(ctx context.Context, tenantID string)

	mu      sync.Mutex
	tenants map[string]*tenantConn
	baseCtx context.Context //nolint:containedctx // retry timers outlive their triggering call
	closed  bool
}

// ManagerDeps carries the Manager's dependencies.
type ManagerDeps struct {
	Broker   Broker
	Resolver *Resolver
	Inbound  *Inbound
	Clock    Clock   // nil selects the wall clock
	Logger   Logger  // nil disables logging
	Auditor  Auditor // optional
	Mirror   Mirror  // optional
}

// NewManager creates a connection manager.
func NewManager(deps ManagerDeps) (*Manager, error) {
	if deps.Broker == nil || deps.Resolver == nil || deps.Inbound == nil {
		return nil, errors.New("bridge: broker, resolver and inbound handler are required")
	}
	if deps.Clock == nil {
		deps.Clock = NewClock()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	return &Manager{
		broker:   deps.Broker,
		resolver: deps.Resolver,
		inbound:  deps.Inbound,
		clock:    deps.Clock,
		logger:   deps.Logger,
		auditor:  deps.Auditor,
		mirror:   deps.Mirror,
		tenants:  make(map[string]*tenantConn),
		baseCtx:  context.Background(),
	}, nil
}

// SetOnConnected registers the hook fired once per successful connect.
// Must be called before the first Attach.
func (m *Manager) SetOnConnected(hook func(ctx context.Context, tenantID string)) {
	m.onConnected = hook
}

// Attach registers a tenant and starts its first connection attempt.
//
// The attempt runs synchronously; a failed attempt leaves the tenant in
// Connecting with a retry scheduled, which is not an Attach error.
func (m *Manager) Attach(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: empty tenant id", ErrNotAttached)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if _, exists := m.tenants[tenantID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, tenantID)
	}
	m.tenants[tenantID] = &tenantConn{
		tenantID: tenantID,
		state:    StateDisconnected,
		since:    time.Now(),
	}
	m.baseCtx = ctx
	m.mu.Unlock()

	m.attemptConnect(ctx, tenantID)
	return nil
}

// Detach stops retries, closes the connection and forgets the tenant.
func (m *Manager) Detach(tenantID string) error {
	m.mu.Lock()
	tc, ok := m.tenants[tenantID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, tenantID)
	}
	delete(m.tenants, tenantID)
	if tc.retryTimer != nil {
		tc.retryTimer.Stop()
	}
	conn := tc.conn
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Warn("closing broker connection", "tenant_id", tenantID, "error", err)
		}
	}

	m.record(audit.ActionDetached, tenantID, nil)
	m.logger.Info("tenant detached", "tenant_id", tenantID)
	return nil
}

// Close detaches all tenants and refuses further attaches.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.tenants))
	for id := range m.tenants {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Detach(id); err != nil && !errors.Is(err, ErrNotAttached) {
			m.logger.Warn("detaching tenant on shutdown", "tenant_id", id, "error", err)
		}
	}
	return nil
}

// Conn returns the live broker connection for a tenant, if connected.
func (m *Manager) Conn(tenantID string) (BrokerConn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tc, ok := m.tenants[tenantID]
	if !ok || tc.state != StateConnected || tc.conn == nil {
		return nil, false
	}
	return tc.conn, true
}

// Status returns a snapshot of every attached tenant's connection state.
func (m *Manager) Status() []TenantStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TenantStatus, 0, len(m.tenants))
	for _, tc := range m.tenants {
		out = append(out, TenantStatus{TenantID: tc.tenantID, State: tc.state, Since: tc.since})
	}
	return out
}

// HandleDisconnect is the connection-lost trigger. Cause is logged, not
// distinguished: the recovery path is the same for every trigger.
func (m *Manager) HandleDisconnect(tenantID string, cause error) {
	m.handleDisconnect(tenantID, nil, cause)
}

// handleDisconnect drops a lost connection and schedules the reconnect.
// Triggers from the broker callback carry the connection they fired for
// (nil when unknown); a trigger whose connection has already been
// superseded by a newer one is discarded so it cannot tear down the
// live connection.
func (m *Manager) handleDisconnect(tenantID string, origin BrokerConn, cause error) {
	if origin != nil {
		m.mu.Lock()
		tc, ok := m.tenants[tenantID]
		superseded := ok && tc.conn != nil && tc.conn != origin
		m.mu.Unlock()
		if superseded {
			m.logger.Debug("ignoring disconnect from superseded connection",
				"tenant_id", tenantID, "error", cause)
			return
		}
	}

	m.logger.Warn("broker connection lost", "tenant_id", tenantID, "error", cause)
	m.record(audit.ActionDisconnected, tenantID, map[string]any{"cause": fmt.Sprint(cause)})
	m.setMirrorState(tenantID, string(StateConnecting))
	m.scheduleRetry(tenantID, ReconnectInterval)
}

// HandleDetach is the consumer-detach trigger.
func (m *Manager) HandleDetach(tenantID string) {
	m.logger.Warn("broker consumer detached", "tenant_id", tenantID)
	m.record(audit.ActionDetached, tenantID, nil)
	m.setMirrorState(tenantID, string(StateConnecting))
	m.scheduleRetry(tenantID, ReconnectInterval)
}

// attemptConnect is the single entry point for every connection trigger.
//
// It re-resolves credentials, dials, and establishes the telemetry
// consumer followed by the event consumer. Any failure in that chain
// schedules a retry and leaves the tenant in Connecting.
func (m *Manager) attemptConnect(ctx context.Context, tenantID string) {
	m.mu.Lock()
	tc, ok := m.tenants[tenantID]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}
	if tc.state == StateConnected {
		m.mu.Unlock()
		return
	}
	if tc.retryTimer != nil {
		tc.retryTimer.Stop()
		tc.retryTimer = nil
	}
	tc.state = StateConnecting
	tc.since = time.Now()
	m.mu.Unlock()

	// Credentials are re-resolved on every attempt so rotation takes
	// effect without a restart.
	creds, err := m.resolver.Resolve(ctx, tenantID)
	if err != nil {
		var incomplete *IncompleteError
		if errors.As(err, &incomplete) {
			for _, field := range incomplete.Missing {
				m.logger.Warn("tenant credential field not configured",
					"tenant_id", tenantID, "field", field, "category", OptionCategory)
			}
			m.record(audit.ActionConfigIncomplete, tenantID, map[string]any{"missing": incomplete.Missing})
			m.scheduleRetry(tenantID, ConfigRetryInterval)
			return
		}
		m.logger.Error("credential resolution failed", "tenant_id", tenantID, "error", err)
		m.scheduleRetry(tenantID, ReconnectInterval)
		return
	}

	// The disconnect callback tags itself with the connection it belongs
	// to, so a late callback from a superseded connection is recognised.
	// The holder is needed because the callback is registered before
	// Dial returns the connection.
	var (
		dialedMu sync.Mutex
		dialed   BrokerConn
	)
	conn, err := m.broker.Dial(creds, func(cause error) {
		dialedMu.Lock()
		origin := dialed
		dialedMu.Unlock()
		m.handleDisconnect(tenantID, origin, cause)
	})
	if err != nil {
		m.logger.Error("broker connect failed",
			"tenant_id", tenantID, "host", creds.Host, "port", creds.Port, "error", err)
		m.scheduleRetry(tenantID, ReconnectInterval)
		return
	}
	dialedMu.Lock()
	dialed = conn
	dialedMu.Unlock()

	// Telemetry first; the event consumer is only attempted once the
	// telemetry consumer is up. With the MQTT transport a consumer
	// detach surfaces as connection loss; HandleDetach stays wired for
	// transports that report it separately.
	onDetach := func() { m.HandleDetach(tenantID) }
	if err := conn.CreateTelemetryConsumer(m.messageHandler(tenantID), onDetach); err != nil {
		m.logger.Error("telemetry consumer failed", "tenant_id", tenantID, "error", err)
		m.closeQuietly(conn, tenantID)
		m.scheduleRetry(tenantID, ReconnectInterval)
		return
	}
	if err := conn.CreateEventConsumer(m.messageHandler(tenantID), onDetach); err != nil {
		m.logger.Error("event consumer failed", "tenant_id", tenantID, "error", err)
		m.closeQuietly(conn, tenantID)
		m.scheduleRetry(tenantID, ReconnectInterval)
		return
	}

	m.mu.Lock()
	tc, ok = m.tenants[tenantID]
	if !ok || m.closed {
		m.mu.Unlock()
		m.closeQuietly(conn, tenantID)
		return
	}
	tc.conn = conn
	tc.state = StateConnected
	tc.since = time.Now()
	m.mu.Unlock()

	m.logger.Info("tenant connected", "tenant_id", tenantID, "host", creds.Host)
	m.record(audit.ActionConnected, tenantID, map[string]any{"host": creds.Host})
	m.setMirrorState(tenantID, string(StateConnected))

	if m.onConnected != nil {
		m.onConnected(ctx, tenantID)
	}
}

// scheduleRetry arms the tenant's retry timer, cancelling any prior one.
// Cancel-then-set happens under the mutex so concurrent disconnect and
// detach triggers can never leave two timers armed. A connection still
// held by the record is closed, not just dropped.
func (m *Manager) scheduleRetry(tenantID string, interval time.Duration) {
	m.mu.Lock()
	tc, ok := m.tenants[tenantID]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}

	if tc.retryTimer != nil {
		tc.retryTimer.Stop()
	}
	displaced := tc.conn
	tc.state = StateConnecting
	tc.conn = nil
	tc.retryTimer = m.clock.AfterFunc(interval, func() {
		m.mu.Lock()
		if current, ok := m.tenants[tenantID]; ok {
			current.retryTimer = nil
		}
		ctx := m.baseCtx
		m.mu.Unlock()
		m.attemptConnect(ctx, tenantID)
	})
	m.mu.Unlock()

	if displaced != nil {
		m.closeQuietly(displaced, tenantID)
	}

	m.logger.Info("reconnect scheduled", "tenant_id", tenantID, "interval", interval)
	m.record(audit.ActionRetryScheduled, tenantID, map[string]any{"interval_ms": interval.Milliseconds()})
}

// messageHandler adapts the inbound pipeline to the broker consumer
// callback. Processing errors are logged and the message is dropped.
func (m *Manager) messageHandler(tenantID string) hono.MessageHandler {
	return func(msg hono.Message) {
		m.mu.Lock()
		ctx := m.baseCtx
		m.mu.Unlock()

		if err := m.inbound.HandleMessage(ctx, msg); err != nil {
			m.logger.Error("inbound message dropped",
				"tenant_id", tenantID, "device_id", msg.DeviceID, "kind", msg.Kind, "error", err)
		}
	}
}

// closeQuietly closes a half-established connection.
func (m *Manager) closeQuietly(conn BrokerConn, tenantID string) {
	if err := conn.Close(); err != nil {
		m.logger.Warn("closing broker connection", "tenant_id", tenantID, "error", err)
	}
}

// record writes an audit entry if an auditor is configured.
func (m *Manager) record(action, tenantID string, details map[string]any) {
	if m.auditor == nil {
		return
	}
	m.auditor.Record(context.Background(), action, audit.EntityTenant, tenantID, tenantID, details)
}

// setMirrorState forwards a state transition to the telemetry mirror.
func (m *Manager) setMirrorState(tenantID, state string) {
	if m.mirror == nil {
		return
	}
	m.mirror.WriteConnectionState(tenantID, state)
}
