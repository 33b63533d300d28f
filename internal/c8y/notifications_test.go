package c8y

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewOperationListenerValidation(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	handler := func(Operation) {}

	tests := []struct {
		name string
		build func() (*OperationListener, error)
	}{
		{name: "nil client", build: func() (*OperationListener, error) {
			return NewOperationListener(nil, testTenant, "honobridge", handler)
		}},
		{name: "nil handler", build: func() (*OperationListener, error) {
			return NewOperationListener(client, testTenant, "honobridge", nil)
		}},
		{name: "empty tenant", build: func() (*OperationListener, error) {
			return NewOperationListener(client, "", "honobridge", handler)
		}},
		{name: "empty subscriber", build: func() (*OperationListener, error) {
			return NewOperationListener(client, testTenant, "", handler)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// notificationBackend is an httptest handler speaking the subscription,
// token and stream endpoints. subscriptionStatus scripts the create
// response.
func notificationBackend(t *testing.T, subscriptionStatus int, gotSub *notificationSubscriptionRequest) http.Handler {
	t.Helper()

	var upgrader websocket.Upgrader
	subscribed := make(chan struct{}, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/notification2/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(gotSub); err != nil {
			t.Errorf("decoding subscription request: %v", err)
		}
		w.WriteHeader(subscriptionStatus)
		subscribed <- struct{}{}
	})
	mux.HandleFunc("/notification2/token", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-subscribed:
		default:
			t.Error("token requested before the subscription was ensured")
		}
		json.NewEncoder(w).Encode(notificationTokenResponse{Token: "tok-1"}) //nolint:errcheck // test handler
	})
	mux.HandleFunc("/notification2/consumer/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "tok-1" {
			t.Errorf("stream token = %q, want tok-1", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck // test handler

		frame, _ := json.Marshal(operationNotification{
			Operation: Operation{ID: "op-1", DeviceID: "2001", Status: StatusPending, Command: "restart"},
		})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
		// Hold the stream open until the listener hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return mux
}

func TestListenerEnsuresSubscriptionBeforeToken(t *testing.T) {
	var gotSub notificationSubscriptionRequest
	client, _ := newTestClient(t, notificationBackend(t, http.StatusCreated, &gotSub))

	received := make(chan Operation, 1)
	listener, err := NewOperationListener(client, testTenant, "honobridge", func(op Operation) {
		received <- op
	})
	if err != nil {
		t.Fatalf("NewOperationListener() error = %v", err)
	}
	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer listener.Stop()

	select {
	case op := <-received:
		if op.ID != "op-1" || op.Command != "restart" {
			t.Errorf("operation = %+v, want op-1 restart", op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no operation received from the stream")
	}

	if gotSub.Context != "tenant" || gotSub.Subscription != operationsSubscription {
		t.Errorf("subscription request = %+v, want tenant-context %s subscription",
			gotSub, operationsSubscription)
	}
	if len(gotSub.SubscriptionFilter.APIs) != 1 || gotSub.SubscriptionFilter.APIs[0] != "operations" {
		t.Errorf("subscription filter = %+v, want operations API only", gotSub.SubscriptionFilter)
	}
}

func TestListenerToleratesExistingSubscription(t *testing.T) {
	// A conflict on create means a previous run already subscribed; the
	// stream must still come up.
	var gotSub notificationSubscriptionRequest
	client, _ := newTestClient(t, notificationBackend(t, http.StatusConflict, &gotSub))

	received := make(chan Operation, 1)
	listener, err := NewOperationListener(client, testTenant, "honobridge", func(op Operation) {
		received <- op
	})
	if err != nil {
		t.Fatalf("NewOperationListener() error = %v", err)
	}
	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer listener.Stop()

	select {
	case op := <-received:
		if op.ID != "op-1" {
			t.Errorf("operation id = %q, want op-1", op.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no operation received after subscription conflict")
	}
}

func TestListenerStartTwice(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	listener, err := NewOperationListener(client, testTenant, "honobridge", func(Operation) {})
	if err != nil {
		t.Fatalf("NewOperationListener() error = %v", err)
	}

	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer listener.Stop()

	if err := listener.Start(context.Background()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("second Start() error = %v, want ErrInvalidInput", err)
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "https://backend.example.com", want: "wss://backend.example.com"},
		{base: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tt := range tests {
		if got := websocketURL(tt.base); got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
