package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/hono"
	"github.com/honobridge/core/internal/tenant"
)

// Inbound is the per-message pipeline from broker to backend.
//
// For every message it idempotently upserts the device record, repairs
// the device's hierarchy edge to the bridge agent, and persists the
// message as a typed event. Each step is an independent network call;
// partial completion is not rolled back and is corrected on the next
// message.
type Inbound struct {
	backend  Backend
	executor *tenant.Executor
	agents   *AgentRegistry
	logger   Logger
	mirror   Mirror
}

// InboundDeps carries the Inbound pipeline's dependencies.
type InboundDeps struct {
	Backend  Backend
	Executor *tenant.Executor
	Agents   *AgentRegistry
	Logger   Logger // nil disables logging
	Mirror   Mirror // optional
}

// NewInbound creates the inbound pipeline.
func NewInbound(deps InboundDeps) (*Inbound, error) {
	if deps.Backend == nil || deps.Executor == nil || deps.Agents == nil {
		return nil, errors.New("bridge: backend, executor and agent registry are required")
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Inbound{
		backend:  deps.Backend,
		executor: deps.Executor,
		agents:   deps.Agents,
		logger:   deps.Logger,
		mirror:   deps.Mirror,
	}, nil
}

// HandleMessage processes one inbound message.
//
// Invoked from broker I/O goroutines; the work re-enters the tenant
// scope through the executor before touching the backend. A failure in
// any step drops the message: delivery is at-most-once-effort and the
// broker's acknowledgement semantics are unaffected.
func (i *Inbound) HandleMessage(ctx context.Context, msg hono.Message) error {
	if msg.DeviceID == "" {
		return errors.New("message has no device id")
	}

	return i.executor.Run(ctx, msg.TenantID, func(ctx context.Context) error {
		deviceID, err := i.upsertDevice(ctx, msg.DeviceID)
		if err != nil {
			return fmt.Errorf("upserting device %s: %w", msg.DeviceID, err)
		}

		if err := i.repairHierarchy(ctx, deviceID); err != nil {
			return fmt.Errorf("repairing hierarchy for %s: %w", msg.DeviceID, err)
		}

		if err := i.persistEvent(ctx, deviceID, msg); err != nil {
			return fmt.Errorf("persisting %s event for %s: %w", msg.Kind, msg.DeviceID, err)
		}

		i.mirrorTelemetry(msg)
		return nil
	})
}

// upsertDevice materialises the device record for an upstream device id.
//
// Re-processing the same id never creates a duplicate: the external
// identity is looked up first, and only an absent identity triggers
// creation. An existing device only has its last-update timestamp
// touched.
func (i *Inbound) upsertDevice(ctx context.Context, externalID string) (string, error) {
	now := timestamp()

	ext, err := i.backend.GetExternalID(ctx, c8y.ExternalIDType, externalID)
	if err == nil {
		if ext.ManagedObject == nil || ext.ManagedObject.ID == "" {
			return "", fmt.Errorf("identity %s resolves to no managed object", externalID)
		}
		_, err = i.backend.UpdateManagedObject(ctx, ext.ManagedObject.ID,
			c8y.ManagedObject{LastHonoUpdate: now})
		if err != nil {
			return "", fmt.Errorf("touching device: %w", err)
		}
		return ext.ManagedObject.ID, nil
	}
	if !errors.Is(err, c8y.ErrNotFound) {
		return "", fmt.Errorf("resolving identity: %w", err)
	}

	created, err := i.backend.CreateManagedObject(ctx, c8y.ManagedObject{
		Name:           externalID,
		Type:           c8y.DeviceType,
		IsDevice:       &c8y.Marker{},
		LastHonoUpdate: now,
	})
	if err != nil {
		return "", fmt.Errorf("creating device: %w", err)
	}

	if err := i.backend.CreateExternalID(ctx, created.ID, c8y.ExternalIDType, externalID); err != nil {
		return "", fmt.Errorf("registering identity: %w", err)
	}

	i.logger.Info("device registered", "device_id", externalID, "managed_object_id", created.ID)
	return created.ID, nil
}

// repairHierarchy ensures the device has an edge to the bridge agent.
//
// Checked on every message, not cached: the hierarchy can be mutated
// externally between messages.
func (i *Inbound) repairHierarchy(ctx context.Context, deviceID string) error {
	agentID, err := i.agents.EnsureAgent(ctx)
	if err != nil {
		return fmt.Errorf("resolving agent: %w", err)
	}

	linked, err := i.backend.HasChildDevice(ctx, agentID, deviceID)
	if err != nil {
		return fmt.Errorf("checking hierarchy: %w", err)
	}
	if linked {
		return nil
	}

	if err := i.backend.AddChildDevice(ctx, agentID, deviceID); err != nil {
		return fmt.Errorf("assigning device to agent: %w", err)
	}
	i.logger.Info("device assigned to agent", "managed_object_id", deviceID, "agent_id", agentID)
	return nil
}

// persistEvent records the message as a typed event, timestamped at
// processing time. The structured payload is carried verbatim when the
// message is JSON; otherwise the raw text is wrapped.
func (i *Inbound) persistEvent(ctx context.Context, deviceID string, msg hono.Message) error {
	eventType := c8y.EventTypeTelemetry
	text := "Telemetry message received"
	if msg.Kind == hono.KindEvent {
		eventType = c8y.EventTypeEvent
		text = "Event message received"
	}

	content, ok := msg.Structured()
	if !ok {
		content = map[string]any{"text": msg.Text()}
	}

	_, err := i.backend.CreateEvent(ctx, c8y.Event{
		Type:        eventType,
		Time:        timestamp(),
		Text:        text,
		Source:      c8y.Source{ID: deviceID},
		HonoContent: content,
	})
	return err
}

// mirrorTelemetry forwards structured telemetry to the local mirror.
func (i *Inbound) mirrorTelemetry(msg hono.Message) {
	if i.mirror == nil || msg.Kind != hono.KindTelemetry {
		return
	}
	if fields, ok := msg.Structured(); ok {
		i.mirror.WriteTelemetry(msg.TenantID, msg.DeviceID, fields)
	}
}

// timestamp returns the current processing time in RFC 3339 UTC.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
