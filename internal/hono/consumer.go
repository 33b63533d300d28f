package hono

import (
	"fmt"
)

// MessageHandler processes one inbound message. It is invoked from the
// transport's receive goroutine and should hand off long-running work.
type MessageHandler func(msg Message)

// DetachHandler is notified when the broker administratively closes a
// consumer link while the underlying connection stays up. With the MQTT
// transport this does not occur (link loss collapses into connection
// loss), but alternative transports report it, and the reconnect path
// treats both signals identically.
type DetachHandler func()

// CreateTelemetryConsumer subscribes to the tenant's telemetry address.
//
// Each received message is parsed into a Message and passed to handler.
// Messages on malformed topics are dropped.
//
// Parameters:
//   - handler: Invoked for each telemetry message
//   - onDetach: Invoked if the broker closes the consumer link; may be nil
//
// Returns:
//   - error: If the subscription cannot be established
func (c *Client) CreateTelemetryConsumer(handler MessageHandler, onDetach DetachHandler) error {
	return c.createConsumer(KindTelemetry, handler, onDetach)
}

// CreateEventConsumer subscribes to the tenant's event address.
//
// Parameters:
//   - handler: Invoked for each event message
//   - onDetach: Invoked if the broker closes the consumer link; may be nil
//
// Returns:
//   - error: If the subscription cannot be established
func (c *Client) CreateEventConsumer(handler MessageHandler, onDetach DetachHandler) error {
	return c.createConsumer(KindEvent, handler, onDetach)
}

func (c *Client) createConsumer(kind string, handler MessageHandler, onDetach DetachHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrConsumerFailed)
	}

	topic := fmt.Sprintf("%s/%s/#", kind, c.tenantID)
	err := c.transport.Subscribe(topic, c.qos, func(topic string, payload []byte) error {
		msgKind, tenant, device, ok := parseTopic(topic)
		if !ok || msgKind != kind {
			c.logger.Warn("dropping message on malformed topic", "topic", topic)
			return nil
		}

		handler(Message{
			Kind:        msgKind,
			TenantID:    tenant,
			DeviceID:    device,
			ContentType: sniffContentType(payload),
			Payload:     payload,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s consumer for tenant %s: %w", ErrConsumerFailed, kind, c.tenantID, err)
	}

	// MQTT has no per-subscription detach signal: a lost subscription
	// always surfaces through the connection-lost callback registered at
	// Connect, so there is nothing to wire the handler to here. It is
	// accepted so callers stay transport-agnostic; see DetachHandler.
	_ = onDetach

	c.logger.Info("consumer established", "kind", kind, "tenant", c.tenantID)
	return nil
}
