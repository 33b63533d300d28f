package hono

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/honobridge/core/internal/infrastructure/mqtt"
)

// clientIDSuffixLen is the number of random characters appended to the
// client id so concurrent bridge instances never collide on the broker.
const clientIDSuffixLen = 8

// Transport is the broker transport used by the client.
// Satisfied by *mqtt.Client; faked in tests.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetOnDisconnect(callback func(err error))
	IsConnected() bool
	Close() error
}

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ConnectConfig carries the parameters for one tenant connection to the
// broker's messaging endpoint. Host, port and credentials come from the
// resolved tenant configuration; the rest from the mqtt config section.
type ConnectConfig struct {
	TenantID       string
	Host           string
	Port           int
	Username       string
	Password       string
	TLS            bool
	ClientIDPrefix string
	QoS            int
}

// Client is one tenant's application client for the upstream broker.
//
// It layers Hono messaging semantics over the raw transport: telemetry and
// event consumers, one-way commands, and request/response commands with
// correlation ids.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	transport Transport
	tenantID  string
	qos       byte
	logger    Logger

	// pending request/response commands keyed by correlation id.
	pending   map[string]*pendingCommand
	pendingMu sync.Mutex

	// responseSubscribed is set once the shared response topic
	// subscription has been established.
	responseSubscribed bool
	respMu             sync.Mutex

	closeOnce sync.Once
}

// Connect dials the broker messaging endpoint for one tenant.
//
// A random suffix is appended to the client id so that reconnect attempts
// and concurrent instances never steal each other's broker session. The
// disconnect callback is invoked at most once per connection when the
// broker link is lost.
//
// Parameters:
//   - cfg: Connection parameters with resolved credentials
//   - onDisconnect: Invoked when the established connection is lost
//
// Returns:
//   - *Client: Connected client ready for consumer creation
//   - error: If the connection attempt fails
func Connect(cfg ConnectConfig, onDisconnect func(err error)) (*Client, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrConnectFailed)
	}

	clientID := fmt.Sprintf("%s-%s-%s",
		cfg.ClientIDPrefix, cfg.TenantID, uuid.NewString()[:clientIDSuffixLen])

	transport, err := mqtt.Connect(mqtt.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		ClientID: clientID,
		TLS:      cfg.TLS,
		QoS:      cfg.QoS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	c := newClient(transport, cfg.TenantID, byte(cfg.QoS)) //nolint:gosec // QoS validated by config to 0..2
	transport.SetOnDisconnect(onDisconnect)
	return c, nil
}

// newClient wires a Client over an existing transport.
// Split from Connect so tests can inject a fake transport.
func newClient(transport Transport, tenantID string, qos byte) *Client {
	return &Client{
		transport: transport,
		tenantID:  tenantID,
		qos:       qos,
		logger:    noopLogger{},
		pending:   make(map[string]*pendingCommand),
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// TenantID returns the tenant this client is connected as.
func (c *Client) TenantID() string {
	return c.tenantID
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

// Close tears down the broker connection and fails all in-flight
// request/response commands.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.failAllPending(ErrClientClosed)
		err = c.transport.Close()
	})
	return err
}

// failAllPending completes every in-flight command with the given error.
func (c *Client) failAllPending(cause error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingCommand)
	c.pendingMu.Unlock()

	for _, p := range pending {
		p.complete(nil, cause)
	}
}

// pendingCommand tracks one in-flight request/response command.
type pendingCommand struct {
	done  func(response []byte, err error)
	timer *time.Timer
	once  sync.Once
}

// complete invokes the completion callback exactly once and stops the
// timeout timer.
func (p *pendingCommand) complete(response []byte, err error) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done(response, err)
	})
}
