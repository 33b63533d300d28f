package hono

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// defaultCommandTimeout bounds how long a request/response command waits
// for the device to answer.
const defaultCommandTimeout = 10 * time.Second

// rejectedStatusThreshold is the lowest device response status treated as
// a rejection, mirroring HTTP semantics.
const rejectedStatusThreshold = 300

// commandEnvelope is the wire shape for commands published to a device.
// Headers and content type ride alongside the raw data because the
// transport has no native application properties.
type commandEnvelope struct {
	ContentType string         `json:"contentType,omitempty"`
	Headers     map[string]any `json:"headers,omitempty"`
	Data        string         `json:"data,omitempty"`
}

// Command describes one command to deliver to a device.
type Command struct {
	DeviceID    string
	Name        string
	ContentType string
	Data        []byte
	Headers     map[string]any
}

// SendOneWayCommand delivers a command without waiting for a device
// response. The completion callback fires once the broker has accepted
// the publication, or immediately with an error if delivery fails.
//
// Parameters:
//   - cmd: The command to deliver
//   - done: Invoked exactly once with the delivery outcome; may be nil
//
// Returns:
//   - error: If the command is invalid before any delivery is attempted
func (c *Client) SendOneWayCommand(cmd Command, done func(err error)) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}

	payload, err := encodeEnvelope(cmd)
	if err != nil {
		return err
	}

	// Empty request-id segment marks the command as one-way.
	topic := fmt.Sprintf("command/%s/%s//%s", c.tenantID, cmd.DeviceID, cmd.Name)

	go func() {
		pubErr := c.transport.Publish(topic, payload, c.qos, false)
		if pubErr != nil {
			pubErr = fmt.Errorf("%w: %w", ErrCommandFailed, pubErr)
		}
		if done != nil {
			done(pubErr)
		}
	}()

	return nil
}

// SendCommand delivers a command and waits asynchronously for the device
// response. The completion callback fires exactly once: with the response
// payload on success, or with an error on rejection, timeout, delivery
// failure or client shutdown.
//
// Parameters:
//   - cmd: The command to deliver
//   - done: Invoked exactly once with the response or an error
//
// Returns:
//   - error: If the command is invalid or the response subscription
//     cannot be established; done is not invoked in that case
func (c *Client) SendCommand(cmd Command, done func(response []byte, err error)) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	if done == nil {
		return fmt.Errorf("%w: completion callback is required", ErrCommandFailed)
	}

	payload, err := encodeEnvelope(cmd)
	if err != nil {
		return err
	}

	if err := c.ensureResponseSubscription(); err != nil {
		return err
	}

	reqID := uuid.NewString()
	pending := &pendingCommand{done: done}
	pending.timer = time.AfterFunc(defaultCommandTimeout, func() {
		c.removePending(reqID)
		pending.complete(nil, fmt.Errorf("%w: request %s", ErrCommandTimeout, reqID))
	})

	c.pendingMu.Lock()
	c.pending[reqID] = pending
	c.pendingMu.Unlock()

	topic := fmt.Sprintf("command/%s/%s/req/%s/%s", c.tenantID, cmd.DeviceID, reqID, cmd.Name)

	go func() {
		if pubErr := c.transport.Publish(topic, payload, c.qos, false); pubErr != nil {
			c.removePending(reqID)
			pending.complete(nil, fmt.Errorf("%w: %w", ErrCommandFailed, pubErr))
		}
	}()

	return nil
}

// ensureResponseSubscription lazily subscribes to the tenant's command
// response address. Established once per client.
func (c *Client) ensureResponseSubscription() error {
	c.respMu.Lock()
	defer c.respMu.Unlock()

	if c.responseSubscribed {
		return nil
	}

	topic := fmt.Sprintf("command/%s/+/res/#", c.tenantID)
	if err := c.transport.Subscribe(topic, c.qos, c.handleResponse); err != nil {
		return fmt.Errorf("%w: response subscription: %w", ErrCommandFailed, err)
	}

	c.responseSubscribed = true
	return nil
}

// handleResponse routes a device response to the matching in-flight
// command. Responses without a matching request id (late arrivals after
// timeout) are dropped.
//
// Response topics have the form command/<tenant>/<device>/res/<req-id>/<status>.
func (c *Client) handleResponse(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 6 || parts[3] != "res" {
		c.logger.Warn("dropping malformed command response", "topic", topic)
		return nil
	}

	reqID := parts[4]
	status, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		c.logger.Warn("dropping command response with bad status", "topic", topic)
		return nil
	}

	pending := c.removePending(reqID)
	if pending == nil {
		c.logger.Debug("late command response dropped", "request_id", reqID)
		return nil
	}

	if status >= rejectedStatusThreshold {
		pending.complete(nil, fmt.Errorf("%w: status %d", ErrCommandRejected, status))
		return nil
	}

	pending.complete(payload, nil)
	return nil
}

// removePending detaches an in-flight command from the pending map.
// Returns nil if the request id is unknown.
func (c *Client) removePending(reqID string) *pendingCommand {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	p := c.pending[reqID]
	delete(c.pending, reqID)
	return p
}

func validateCommand(cmd Command) error {
	if cmd.DeviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrCommandFailed)
	}
	if cmd.Name == "" {
		return fmt.Errorf("%w: command name is required", ErrCommandFailed)
	}
	if strings.ContainsAny(cmd.Name, "/#+") {
		return fmt.Errorf("%w: command name %q contains reserved characters", ErrCommandFailed, cmd.Name)
	}
	return nil
}

func encodeEnvelope(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(commandEnvelope{
		ContentType: cmd.ContentType,
		Headers:     cmd.Headers,
		Data:        string(cmd.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding envelope: %w", ErrCommandFailed, err)
	}
	return payload, nil
}
