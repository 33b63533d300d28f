package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/honobridge/core/internal/audit"
	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/hono"
	"github.com/honobridge/core/internal/tenant"
)

// ConnProvider looks up the live broker connection for a tenant.
// Implemented by the Manager.
type ConnProvider interface {
	Conn(tenantID string) (BrokerConn, bool)
}

// Dispatcher converts pending backend operations into upstream commands
// and reconciles their eventual outcome back into the operation status.
//
// Two entry points feed the same processing function: the pending sweep
// after a successful connect, and the live notification push. Only
// PENDING operations are dispatched; frames echoing this dispatcher's
// own status writes are ignored. Failed dispatches are terminal;
// re-issuing is the backend operator's job.
type Dispatcher struct {
	backend  Backend
	executor *tenant.Executor
	agents   *AgentRegistry
	conns    ConnProvider
	logger   Logger
	auditor  Auditor
	mirror   Mirror
}

// DispatcherDeps carries the Dispatcher's dependencies.
type DispatcherDeps struct {
	Backend  Backend
	Executor *tenant.Executor
	Agents   *AgentRegistry
	Conns    ConnProvider
	Logger   Logger  // nil disables logging
	Auditor  Auditor // optional
	Mirror   Mirror  // optional
}

// NewDispatcher creates an operation dispatcher.
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Backend == nil || deps.Executor == nil || deps.Agents == nil || deps.Conns == nil {
		return nil, errors.New("bridge: backend, executor, agent registry and connection provider are required")
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Dispatcher{
		backend:  deps.Backend,
		executor: deps.Executor,
		agents:   deps.Agents,
		conns:    deps.Conns,
		logger:   deps.Logger,
		auditor:  deps.Auditor,
		mirror:   deps.Mirror,
	}, nil
}

// Sweep processes every operation still pending for this bridge's agent.
//
// Run once after each successful connect so operations created while
// the tenant was disconnected are not lost.
func (d *Dispatcher) Sweep(ctx context.Context, tenantID string) error {
	return d.executor.Run(ctx, tenantID, func(ctx context.Context) error {
		agentID, err := d.agents.EnsureAgent(ctx)
		if err != nil {
			return fmt.Errorf("resolving agent for sweep: %w", err)
		}

		pending, err := d.backend.ListOperations(ctx, agentID, c8y.StatusPending)
		if err != nil {
			return fmt.Errorf("listing pending operations: %w", err)
		}

		d.logger.Info("pending operation sweep", "tenant_id", tenantID, "count", len(pending))
		for _, op := range pending {
			d.process(ctx, tenantID, op)
		}
		return nil
	})
}

// HandleNotification processes one operation pushed over the live
// notification stream. Invoked from the stream's I/O goroutine, so the
// work re-enters the tenant scope first.
func (d *Dispatcher) HandleNotification(ctx context.Context, tenantID string, op c8y.Operation) {
	err := d.executor.Run(ctx, tenantID, func(ctx context.Context) error {
		d.process(ctx, tenantID, op)
		return nil
	})
	if err != nil {
		d.logger.Error("operation notification dropped",
			"tenant_id", tenantID, "operation_id", op.ID, "error", err)
	}
}

// process marks the operation executing, validates it, and dispatches
// the command. Must run inside tenant scope.
//
// The notification stream delivers updates as well as creates, so the
// EXECUTING, SUCCESSFUL and FAILED writes this dispatcher makes come
// back as frames. Dispatching those would re-send the command and
// re-write a terminal status, which echoes again: only PENDING
// operations are actionable.
func (d *Dispatcher) process(ctx context.Context, tenantID string, op c8y.Operation) {
	if op.Status != c8y.StatusPending {
		d.logger.Debug("ignoring non-pending operation",
			"tenant_id", tenantID, "operation_id", op.ID, "status", string(op.Status))
		return
	}

	if err := d.backend.UpdateOperationStatus(ctx, op.ID, c8y.StatusExecuting, ""); err != nil {
		d.logger.Error("marking operation executing",
			"tenant_id", tenantID, "operation_id", op.ID, "error", err)
		return
	}

	// Missing command is a local validation failure: fail immediately,
	// no delivery attempt.
	if op.Command == "" {
		d.fail(ctx, tenantID, op, reasonMissingCommand, time.Now())
		return
	}

	conn, ok := d.conns.Conn(tenantID)
	if !ok {
		d.fail(ctx, tenantID, op, reasonNoConnection, time.Now())
		return
	}

	upstreamID, err := d.upstreamDeviceID(ctx, op.DeviceID)
	if err != nil {
		d.logger.Error("resolving operation target",
			"tenant_id", tenantID, "operation_id", op.ID, "error", err)
		d.fail(ctx, tenantID, op, reasonNoIdentity, time.Now())
		return
	}

	cmd := hono.Command{
		DeviceID:    upstreamID,
		Name:        op.Command,
		ContentType: op.ContentType,
		Data:        []byte(op.Data),
		Headers:     op.Headers,
	}

	started := time.Now()
	if op.IsOneWay() {
		err = conn.SendOneWayCommand(cmd, func(sendErr error) {
			d.complete(ctx, tenantID, op, sendErr, started)
		})
	} else {
		err = conn.SendCommand(cmd, func(response []byte, sendErr error) {
			if sendErr == nil {
				d.logger.Debug("command response received",
					"tenant_id", tenantID, "operation_id", op.ID, "bytes", len(response))
			}
			d.complete(ctx, tenantID, op, sendErr, started)
		})
	}
	if err != nil {
		// Rejected before any delivery was attempted.
		d.fail(ctx, tenantID, op, err.Error(), started)
	}
}

// complete reconciles a command outcome into the operation status. Fired
// from broker goroutines, so it re-enters the tenant scope.
func (d *Dispatcher) complete(ctx context.Context, tenantID string, op c8y.Operation, sendErr error, started time.Time) {
	err := d.executor.Run(ctx, tenantID, func(ctx context.Context) error {
		if sendErr != nil {
			d.fail(ctx, tenantID, op, sendErr.Error(), started)
			return nil
		}

		if err := d.backend.UpdateOperationStatus(ctx, op.ID, c8y.StatusSuccessful, ""); err != nil {
			return fmt.Errorf("marking operation successful: %w", err)
		}

		d.logger.Info("operation successful",
			"tenant_id", tenantID, "operation_id", op.ID, "command", op.Command)
		d.record(ctx, audit.ActionOperationDone, tenantID, op, "")
		d.mirrorResult(tenantID, op, true, started)
		return nil
	})
	if err != nil {
		d.logger.Error("reconciling operation outcome",
			"tenant_id", tenantID, "operation_id", op.ID, "error", err)
	}
}

// fail transitions an operation to FAILED with a reason. Must run inside
// tenant scope.
func (d *Dispatcher) fail(ctx context.Context, tenantID string, op c8y.Operation, reason string, started time.Time) {
	if err := d.backend.UpdateOperationStatus(ctx, op.ID, c8y.StatusFailed, reason); err != nil {
		d.logger.Error("marking operation failed",
			"tenant_id", tenantID, "operation_id", op.ID, "reason", reason, "error", err)
		return
	}

	d.logger.Warn("operation failed",
		"tenant_id", tenantID, "operation_id", op.ID, "command", op.Command, "reason", reason)
	d.record(ctx, audit.ActionOperationFailed, tenantID, op, reason)
	d.mirrorResult(tenantID, op, false, started)
}

// upstreamDeviceID resolves a backend managed object to its broker-side
// device id via the serial identity namespace.
func (d *Dispatcher) upstreamDeviceID(ctx context.Context, moID string) (string, error) {
	if moID == "" {
		return "", errors.New("operation has no target device")
	}

	ids, err := d.backend.ListExternalIDs(ctx, moID)
	if err != nil {
		return "", fmt.Errorf("listing identities for %s: %w", moID, err)
	}
	for _, ext := range ids {
		if ext.Type == c8y.ExternalIDType && ext.ExternalID != "" {
			return ext.ExternalID, nil
		}
	}
	return "", fmt.Errorf("managed object %s has no %s identity", moID, c8y.ExternalIDType)
}

// record writes an audit entry if an auditor is configured.
func (d *Dispatcher) record(ctx context.Context, action, tenantID string, op c8y.Operation, reason string) {
	if d.auditor == nil {
		return
	}
	var details map[string]any
	if reason != "" {
		details = map[string]any{"reason": reason}
	}
	d.auditor.Record(ctx, action, audit.EntityOperation, op.ID, tenantID, details)
}

// mirrorResult forwards the outcome to the telemetry mirror.
func (d *Dispatcher) mirrorResult(tenantID string, op c8y.Operation, success bool, started time.Time) {
	if d.mirror == nil {
		return
	}
	d.mirror.WriteOperationResult(tenantID, op.DeviceID, op.Command, success, time.Since(started))
}
