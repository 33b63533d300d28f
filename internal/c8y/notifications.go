package c8y

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Notification listener tuning.
const (
	// listenerRetryInterval is the wait between reconnect attempts for a
	// dropped notification stream. The live stream is an optimisation on
	// top of the periodic pending sweep, so a slow reconnect only delays
	// operations by at most one sweep interval.
	listenerRetryInterval = 5 * time.Second

	// listenerReadLimit bounds the size of one notification frame.
	listenerReadLimit = 1 << 20

	// operationsSubscription is the name shared by the subscription and
	// the tokens issued against it.
	operationsSubscription = "operations"
)

// OperationHandler receives operations pushed over the notification
// stream.
type OperationHandler func(op Operation)

// notificationSubscriptionRequest is the body for subscription creation.
type notificationSubscriptionRequest struct {
	Context            string             `json:"context"`
	Subscription       string             `json:"subscription"`
	SubscriptionFilter subscriptionFilter `json:"subscriptionFilter"`
}

// subscriptionFilter narrows a subscription to specific backend APIs.
type subscriptionFilter struct {
	APIs []string `json:"apis"`
}

// notificationTokenRequest is the body for token issuance.
type notificationTokenRequest struct {
	Subscriber       string `json:"subscriber"`
	Subscription     string `json:"subscription"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

// notificationTokenResponse carries the issued stream token.
type notificationTokenResponse struct {
	Token string `json:"token"`
}

// operationNotification is one frame on the stream.
type operationNotification struct {
	Operation Operation `json:"data"`
}

// OperationListener consumes the backend's live operation notification
// stream for one tenant and forwards created operations to a handler.
//
// The listener reconnects on stream loss with a fixed interval and stops
// when its context is cancelled. It complements the periodic pending
// sweep; neither depends on the other.
type OperationListener struct {
	client     *Client
	tenantID   string
	subscriber string
	handler    OperationHandler
	logger     Logger

	cancel context.CancelFunc
	done   chan struct{}

	// subscribed is set once the operations subscription is known to
	// exist, so reconnects skip the create.
	subscribed bool
	mu         sync.Mutex
}

// NewOperationListener creates a listener for one tenant's operation
// notifications.
//
// Parameters:
//   - client: Backend client with credentials registered for tenantID
//   - tenantID: The tenant to listen for
//   - subscriber: Stable subscriber name, reused across reconnects
//   - handler: Invoked for each pushed operation
func NewOperationListener(client *Client, tenantID, subscriber string, handler OperationHandler) (*OperationListener, error) {
	if client == nil || handler == nil {
		return nil, fmt.Errorf("%w: client and handler are required", ErrInvalidInput)
	}
	if tenantID == "" || subscriber == "" {
		return nil, fmt.Errorf("%w: tenant id and subscriber are required", ErrInvalidInput)
	}

	return &OperationListener{
		client:     client,
		tenantID:   tenantID,
		subscriber: subscriber,
		handler:    handler,
		logger:     client.logger,
	}, nil
}

// Start begins consuming the stream in a background goroutine.
//
// Returns an error only if the listener is already running; connection
// failures are retried internally.
func (l *OperationListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return fmt.Errorf("%w: listener already started", ErrInvalidInput)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx)
	return nil
}

// Stop cancels the stream and waits for the read loop to exit.
func (l *OperationListener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run is the reconnect loop.
func (l *OperationListener) run(ctx context.Context) {
	defer close(l.done)

	for {
		if err := l.consumeStream(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("operation notification stream lost",
				"tenant_id", l.tenantID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenerRetryInterval):
		}
	}
}

// consumeStream ensures the subscription, obtains a token, dials the
// stream and reads frames until the connection drops or the context
// ends.
func (l *OperationListener) consumeStream(ctx context.Context) error {
	if err := l.ensureSubscription(ctx); err != nil {
		return err
	}

	token, err := l.fetchToken(ctx)
	if err != nil {
		return err
	}

	wsURL := websocketURL(l.client.baseURL) + "/notification2/consumer/?token=" + token
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: dialing notification stream: %w", ErrRequestFailed, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake response body
	}
	defer conn.Close() //nolint:errcheck // read-side close

	conn.SetReadLimit(listenerReadLimit)

	// Unblock the blocking read when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck // forced close on shutdown
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ErrListenerClosed
			}
			return fmt.Errorf("%w: reading notification stream: %w", ErrRequestFailed, err)
		}

		var note operationNotification
		if err := json.Unmarshal(frame, &note); err != nil {
			l.logger.Warn("dropping malformed notification frame",
				"tenant_id", l.tenantID, "error", err)
			continue
		}
		if note.Operation.ID == "" {
			continue
		}

		l.handler(note.Operation)
	}
}

// ensureSubscription creates the tenant-scoped operations subscription
// the stream tokens refer to. A conflict means a previous run (or
// another bridge instance) already created it, which is just as good.
func (l *OperationListener) ensureSubscription(ctx context.Context) error {
	l.mu.Lock()
	done := l.subscribed
	l.mu.Unlock()
	if done {
		return nil
	}

	body := notificationSubscriptionRequest{
		Context:            "tenant",
		Subscription:       operationsSubscription,
		SubscriptionFilter: subscriptionFilter{APIs: []string{"operations"}},
	}
	err := l.client.doJSON(ctx, l.tenantID, http.MethodPost, "/notification2/subscriptions", body, nil)
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("ensuring operations subscription: %w", err)
	}

	l.mu.Lock()
	l.subscribed = true
	l.mu.Unlock()
	return nil
}

// fetchToken requests a stream token scoped to the tenant's operation
// subscription.
func (l *OperationListener) fetchToken(ctx context.Context) (string, error) {
	body := notificationTokenRequest{
		Subscriber:       l.subscriber,
		Subscription:     operationsSubscription,
		ExpiresInMinutes: 60,
	}

	var out notificationTokenResponse
	err := l.client.doJSON(ctx, l.tenantID, http.MethodPost, "/notification2/token", body, &out)
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty notification token", ErrRequestFailed)
	}
	return out.Token, nil
}

// websocketURL rewrites an http(s) base URL to the ws(s) scheme.
func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
