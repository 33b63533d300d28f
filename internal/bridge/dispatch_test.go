package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/honobridge/core/internal/c8y"
)

// seedDevice registers a device record with its upstream identity and
// returns the managed object id.
func seedDevice(t *testing.T, rig *testRig, deviceID string) string {
	t.Helper()
	rig.backend.mu.Lock()
	defer rig.backend.mu.Unlock()
	rig.backend.nextID++
	moID := "mo-dev"
	rig.backend.objects[moID] = c8y.ManagedObject{ID: moID, Name: deviceID, Type: c8y.DeviceType}
	rig.backend.identities[c8y.ExternalIDType+"/"+deviceID] = moID
	return moID
}

// seedOperation registers a pending operation and returns it.
func seedOperation(rig *testRig, op c8y.Operation) c8y.Operation {
	rig.backend.mu.Lock()
	defer rig.backend.mu.Unlock()
	if op.ID == "" {
		op.ID = "op-1"
	}
	if op.Status == "" {
		op.Status = c8y.StatusPending
	}
	stored := op
	rig.backend.operations[op.ID] = &stored
	return op
}

func TestMissingCommandFailsWithoutSend(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.attach(t)
	moID := seedDevice(t, rig, "dev-42")
	op := seedOperation(rig, c8y.Operation{DeviceID: moID})

	rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

	statuses := rig.backend.statusLog[op.ID]
	want := []c8y.OperationStatus{c8y.StatusExecuting, c8y.StatusFailed}
	if len(statuses) != len(want) || statuses[0] != want[0] || statuses[1] != want[1] {
		t.Errorf("status transitions = %v, want %v", statuses, want)
	}
	if rig.backend.reasons[op.ID] == "" {
		t.Error("failed operation carries no reason")
	}
	if conn.sendCount() != 0 {
		t.Errorf("sends = %d, want 0 for invalid operation", conn.sendCount())
	}
}

func TestOneWaySuccessMapsToSuccessful(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.attach(t)
	moID := seedDevice(t, rig, "dev-42")
	op := seedOperation(rig, c8y.Operation{
		DeviceID:    moID,
		Command:     "restart",
		Data:        `{"delay": 5}`,
		ContentType: "application/json",
	})

	rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

	if len(conn.oneWaySends) != 1 {
		t.Fatalf("one-way sends = %d, want 1", len(conn.oneWaySends))
	}
	sent := conn.oneWaySends[0]
	if sent.DeviceID != "dev-42" {
		t.Errorf("command device = %q, want upstream id dev-42", sent.DeviceID)
	}
	if sent.Name != "restart" || string(sent.Data) != `{"delay": 5}` {
		t.Errorf("command = %+v, want restart with payload", sent)
	}

	if got := rig.backend.operations[op.ID].Status; got != c8y.StatusSuccessful {
		t.Errorf("final status = %q, want SUCCESSFUL", got)
	}
}

func TestOneWaySendFailureMapsToFailed(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.attach(t)
	conn.sendErr = errors.New("publish timeout")
	moID := seedDevice(t, rig, "dev-42")
	op := seedOperation(rig, c8y.Operation{DeviceID: moID, Command: "restart"})

	rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

	if got := rig.backend.operations[op.ID].Status; got != c8y.StatusFailed {
		t.Errorf("final status = %q, want FAILED", got)
	}
	if rig.backend.reasons[op.ID] != "publish timeout" {
		t.Errorf("failure reason = %q, want the send error text", rig.backend.reasons[op.ID])
	}
}

func TestRequestResponseCompletionMapping(t *testing.T) {
	oneWay := false

	t.Run("success", func(t *testing.T) {
		rig := newTestRig(t)
		conn := rig.attach(t)
		conn.response = []byte(`{"ok": true}`)
		moID := seedDevice(t, rig, "dev-42")
		op := seedOperation(rig, c8y.Operation{DeviceID: moID, Command: "getConfig", OneWay: &oneWay})

		rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

		if len(conn.reqSends) != 1 {
			t.Fatalf("request/response sends = %d, want 1", len(conn.reqSends))
		}
		if len(conn.oneWaySends) != 0 {
			t.Error("oneWay=false operation used the one-way path")
		}
		if got := rig.backend.operations[op.ID].Status; got != c8y.StatusSuccessful {
			t.Errorf("final status = %q, want SUCCESSFUL", got)
		}
	})

	t.Run("failure", func(t *testing.T) {
		rig := newTestRig(t)
		conn := rig.attach(t)
		conn.sendErr = errors.New("device rejected command")
		moID := seedDevice(t, rig, "dev-42")
		op := seedOperation(rig, c8y.Operation{DeviceID: moID, Command: "getConfig", OneWay: &oneWay})

		rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

		if got := rig.backend.operations[op.ID].Status; got != c8y.StatusFailed {
			t.Errorf("final status = %q, want FAILED", got)
		}
		if rig.backend.reasons[op.ID] != "device rejected command" {
			t.Errorf("failure reason = %q, want the send error text", rig.backend.reasons[op.ID])
		}
	})
}

func TestSweepProcessesAllPending(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.attach(t)
	moID := seedDevice(t, rig, "dev-42")
	seedOperation(rig, c8y.Operation{ID: "op-1", DeviceID: moID, Command: "restart"})
	seedOperation(rig, c8y.Operation{ID: "op-2", DeviceID: moID, Command: "ping"})

	if err := rig.dispatcher.Sweep(context.Background(), testTenant); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if len(conn.oneWaySends) != 2 {
		t.Errorf("sends = %d, want 2", len(conn.oneWaySends))
	}
	for _, id := range []string{"op-1", "op-2"} {
		if got := rig.backend.operations[id].Status; got != c8y.StatusSuccessful {
			t.Errorf("%s status = %q, want SUCCESSFUL", id, got)
		}
	}
}

func TestDispatchWithoutConnectionFails(t *testing.T) {
	rig := newTestRig(t)
	moID := seedDevice(t, rig, "dev-42")
	op := seedOperation(rig, c8y.Operation{DeviceID: moID, Command: "restart"})

	rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

	if got := rig.backend.operations[op.ID].Status; got != c8y.StatusFailed {
		t.Errorf("final status = %q, want FAILED without a connection", got)
	}
	if rig.backend.reasons[op.ID] != reasonNoConnection {
		t.Errorf("failure reason = %q, want %q", rig.backend.reasons[op.ID], reasonNoConnection)
	}
}

func TestDispatchUnknownTargetIdentityFails(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.attach(t)
	op := seedOperation(rig, c8y.Operation{DeviceID: "mo-unknown", Command: "restart"})

	rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

	if got := rig.backend.operations[op.ID].Status; got != c8y.StatusFailed {
		t.Errorf("final status = %q, want FAILED", got)
	}
	if conn.sendCount() != 0 {
		t.Errorf("sends = %d, want 0 for unresolvable target", conn.sendCount())
	}
}

func TestNonPendingNotificationNotDispatched(t *testing.T) {
	// The stream echoes the dispatcher's own status updates back as
	// frames; re-dispatching them would loop the send forever.
	statuses := []c8y.OperationStatus{c8y.StatusExecuting, c8y.StatusSuccessful, c8y.StatusFailed}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			rig := newTestRig(t)
			conn := rig.attach(t)
			moID := seedDevice(t, rig, "dev-42")
			op := seedOperation(rig, c8y.Operation{DeviceID: moID, Command: "restart", Status: status})

			rig.dispatcher.HandleNotification(context.Background(), testTenant, op)

			if conn.sendCount() != 0 {
				t.Errorf("sends = %d, want 0 for %s frame", conn.sendCount(), status)
			}
			if transitions := rig.backend.statusLog[op.ID]; len(transitions) != 0 {
				t.Errorf("status transitions = %v, want none for %s frame", transitions, status)
			}
			if got := rig.backend.operations[op.ID].Status; got != status {
				t.Errorf("status = %q, want unchanged %q", got, status)
			}
		})
	}
}
