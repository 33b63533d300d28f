package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/tenant"
)

// Listener consumes live operation notifications for one tenant.
type Listener interface {
	Start(ctx context.Context) error
	Stop()
}

// ListenerFactory builds the operation notification listener for a
// tenant. Optional: a nil factory leaves the bridge on sweep-only
// operation pickup.
type ListenerFactory func(tenantID string, handler func(op c8y.Operation)) (Listener, error)

// Bootstrapper runs the tenant-attach sequence.
//
// Ordering is load-bearing: credentials must be complete before anything
// else, the agent identity must exist before operations can reference
// it, the live listener is registered before connect so no racing
// notification is missed, and the pending sweep runs only after a
// successful connect (via the manager's onConnected hook) so it sees a
// consistent agent identity.
type Bootstrapper struct {
	resolver   *Resolver
	executor   *tenant.Executor
	agents     *AgentRegistry
	manager    *Manager
	dispatcher *Dispatcher
	listeners  ListenerFactory
	clock      Clock
	logger     Logger

	mu     sync.Mutex
	active map[string]Listener
}

// BootstrapperDeps carries the Bootstrapper's dependencies.
type BootstrapperDeps struct {
	Resolver   *Resolver
	Executor   *tenant.Executor
	Agents     *AgentRegistry
	Manager    *Manager
	Dispatcher *Dispatcher
	Listeners  ListenerFactory // optional
	Clock      Clock           // nil selects the wall clock
	Logger     Logger          // nil disables logging
}

// NewBootstrapper creates the tenant-attach orchestrator and wires the
// manager's connect hook to the dispatcher's pending sweep.
func NewBootstrapper(deps BootstrapperDeps) (*Bootstrapper, error) {
	if deps.Resolver == nil || deps.Executor == nil || deps.Agents == nil ||
		deps.Manager == nil || deps.Dispatcher == nil {
		return nil, errors.New("bridge: resolver, executor, agents, manager and dispatcher are required")
	}
	if deps.Clock == nil {
		deps.Clock = NewClock()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	b := &Bootstrapper{
		resolver:   deps.Resolver,
		executor:   deps.Executor,
		agents:     deps.Agents,
		manager:    deps.Manager,
		dispatcher: deps.Dispatcher,
		listeners:  deps.Listeners,
		clock:      deps.Clock,
		logger:     deps.Logger,
		active:     make(map[string]Listener),
	}

	deps.Manager.SetOnConnected(func(ctx context.Context, tenantID string) {
		if err := b.dispatcher.Sweep(ctx, tenantID); err != nil {
			b.logger.Error("pending operation sweep failed", "tenant_id", tenantID, "error", err)
		}
	})

	return b, nil
}

// AttachTenant runs the full attach sequence for one tenant.
//
// Blocks until the tenant's credentials are complete (polling at
// ConfigRetryInterval) or ctx is cancelled. Any later failure aborts the
// bootstrap for this attach event; it is not restarted automatically.
func (b *Bootstrapper) AttachTenant(ctx context.Context, tenantID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bridge: tenant attach panicked: %v", r)
			b.logger.Error("tenant attach aborted", "tenant_id", tenantID, "panic", r)
		}
	}()

	creds, err := b.resolver.Await(ctx, tenantID, b.clock)
	if err != nil {
		return fmt.Errorf("awaiting credentials for %s: %w", tenantID, err)
	}
	b.logger.Info("tenant credentials complete",
		"tenant_id", tenantID, "host", creds.Host, "port", creds.Port)

	err = b.executor.Run(ctx, tenantID, func(ctx context.Context) error {
		agentID, err := b.agents.EnsureAgent(ctx)
		if err != nil {
			return err
		}
		b.logger.Info("agent resolved", "tenant_id", tenantID, "agent_id", agentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolving agent for %s: %w", tenantID, err)
	}

	if err := b.startListener(ctx, tenantID); err != nil {
		return fmt.Errorf("starting operation listener for %s: %w", tenantID, err)
	}

	if err := b.manager.Attach(ctx, tenantID); err != nil {
		b.stopListener(tenantID)
		return fmt.Errorf("attaching %s: %w", tenantID, err)
	}
	return nil
}

// DetachTenant stops the listener and tears down the connection.
func (b *Bootstrapper) DetachTenant(tenantID string) error {
	b.stopListener(tenantID)
	return b.manager.Detach(tenantID)
}

// Close detaches every tenant.
func (b *Bootstrapper) Close() error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.active))
	for id := range b.active {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.stopListener(id)
	}
	return b.manager.Close()
}

// startListener registers and starts the live operation listener.
func (b *Bootstrapper) startListener(ctx context.Context, tenantID string) error {
	if b.listeners == nil {
		return nil
	}

	listener, err := b.listeners(tenantID, func(op c8y.Operation) {
		b.dispatcher.HandleNotification(ctx, tenantID, op)
	})
	if err != nil {
		return err
	}
	if err := listener.Start(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.active[tenantID] = listener
	b.mu.Unlock()
	return nil
}

// stopListener stops and forgets the tenant's listener, if any.
func (b *Bootstrapper) stopListener(tenantID string) {
	b.mu.Lock()
	listener := b.active[tenantID]
	delete(b.active, tenantID)
	b.mu.Unlock()

	if listener != nil {
		listener.Stop()
	}
}
