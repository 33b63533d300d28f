package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/hono"
	"github.com/honobridge/core/internal/tenant"
)

// fakeBackend is an in-memory downstream backend. Every method checks
// that the call arrives inside a tenant scope.
type fakeBackend struct {
	mu sync.Mutex

	options     map[string]string
	optionsErr  error
	optionCalls int

	nextID     int
	objects    map[string]c8y.ManagedObject
	updates    map[string]int
	creates    int
	identities map[string]string // idType/value -> managed object id
	children   map[string]map[string]bool
	events     []c8y.Event
	eventsErr  error
	operations map[string]*c8y.Operation
	statusLog  map[string][]c8y.OperationStatus
	reasons    map[string]string

	updateOpErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		options:    map[string]string{},
		objects:    map[string]c8y.ManagedObject{},
		updates:    map[string]int{},
		identities: map[string]string{},
		children:   map[string]map[string]bool{},
		operations: map[string]*c8y.Operation{},
		statusLog:  map[string][]c8y.OperationStatus{},
		reasons:    map[string]string{},
	}
}

// completeOptions is a full credential set for tests.
func completeOptions() map[string]string {
	return map[string]string{
		"tenantid":             "hono-t100",
		"host":                 "broker.local",
		"username":             "bridge",
		"credentials.password": "secret",
		"port":                 "8883",
	}
}

func (f *fakeBackend) requireTenant(ctx context.Context) error {
	_, err := tenant.MustFromContext(ctx)
	return err
}

func (f *fakeBackend) TenantOptions(ctx context.Context, _ string) (map[string]string, error) {
	if err := f.requireTenant(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionCalls++
	if f.optionsErr != nil {
		return nil, f.optionsErr
	}
	out := make(map[string]string, len(f.options))
	for k, v := range f.options {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) GetExternalID(ctx context.Context, idType, value string) (c8y.ExternalID, error) {
	if err := f.requireTenant(ctx); err != nil {
		return c8y.ExternalID{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	moID, ok := f.identities[idType+"/"+value]
	if !ok {
		return c8y.ExternalID{}, c8y.ErrNotFound
	}
	return c8y.ExternalID{
		ExternalID:    value,
		Type:          idType,
		ManagedObject: &c8y.Source{ID: moID},
	}, nil
}

func (f *fakeBackend) CreateExternalID(ctx context.Context, moID, idType, value string) error {
	if err := f.requireTenant(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[idType+"/"+value] = moID
	return nil
}

func (f *fakeBackend) ListExternalIDs(ctx context.Context, moID string) ([]c8y.ExternalID, error) {
	if err := f.requireTenant(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []c8y.ExternalID
	for key, id := range f.identities {
		if id != moID {
			continue
		}
		for i := 0; i < len(key); i++ {
			if key[i] == '/' {
				out = append(out, c8y.ExternalID{
					Type:          key[:i],
					ExternalID:    key[i+1:],
					ManagedObject: &c8y.Source{ID: moID},
				})
				break
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateManagedObject(ctx context.Context, mo c8y.ManagedObject) (c8y.ManagedObject, error) {
	if err := f.requireTenant(ctx); err != nil {
		return c8y.ManagedObject{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.creates++
	mo.ID = fmt.Sprintf("mo-%d", f.nextID)
	f.objects[mo.ID] = mo
	return mo, nil
}

func (f *fakeBackend) UpdateManagedObject(ctx context.Context, id string, mo c8y.ManagedObject) (c8y.ManagedObject, error) {
	if err := f.requireTenant(ctx); err != nil {
		return c8y.ManagedObject{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.objects[id]
	if !ok {
		return c8y.ManagedObject{}, c8y.ErrNotFound
	}
	if mo.LastHonoUpdate != "" {
		existing.LastHonoUpdate = mo.LastHonoUpdate
	}
	f.objects[id] = existing
	f.updates[id]++
	return existing, nil
}

func (f *fakeBackend) HasChildDevice(ctx context.Context, parentID, childID string) (bool, error) {
	if err := f.requireTenant(ctx); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.children[parentID][childID], nil
}

func (f *fakeBackend) AddChildDevice(ctx context.Context, parentID, childID string) error {
	if err := f.requireTenant(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.children[parentID] == nil {
		f.children[parentID] = map[string]bool{}
	}
	f.children[parentID][childID] = true
	return nil
}

func (f *fakeBackend) CreateEvent(ctx context.Context, event c8y.Event) (c8y.Event, error) {
	if err := f.requireTenant(ctx); err != nil {
		return c8y.Event{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventsErr != nil {
		return c8y.Event{}, f.eventsErr
	}
	event.ID = fmt.Sprintf("evt-%d", len(f.events)+1)
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeBackend) ListOperations(ctx context.Context, _ string, status c8y.OperationStatus) ([]c8y.Operation, error) {
	if err := f.requireTenant(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []c8y.Operation
	for _, op := range f.operations {
		if op.Status == status {
			out = append(out, *op)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpdateOperationStatus(ctx context.Context, id string, status c8y.OperationStatus, reason string) error {
	if err := f.requireTenant(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateOpErr != nil {
		return f.updateOpErr
	}
	op, ok := f.operations[id]
	if !ok {
		return c8y.ErrNotFound
	}
	op.Status = status
	f.statusLog[id] = append(f.statusLog[id], status)
	if reason != "" {
		f.reasons[id] = reason
	}
	return nil
}

// childCount returns the number of edges under a parent.
func (f *fakeBackend) childCount(parentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.children[parentID])
}

// fakeConn is a scripted broker connection.
type fakeConn struct {
	mu sync.Mutex

	telemetryErr     error
	eventErr         error
	telemetryHandler hono.MessageHandler
	eventHandler     hono.MessageHandler

	// sendErr is passed to the completion callback; sendSyncErr is
	// returned from the send call itself.
	sendErr     error
	sendSyncErr error
	oneWaySends []hono.Command
	reqSends    []hono.Command
	response    []byte

	closed bool
}

func (c *fakeConn) CreateTelemetryConsumer(handler hono.MessageHandler, _ hono.DetachHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.telemetryErr != nil {
		return c.telemetryErr
	}
	c.telemetryHandler = handler
	return nil
}

func (c *fakeConn) CreateEventConsumer(handler hono.MessageHandler, _ hono.DetachHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventErr != nil {
		return c.eventErr
	}
	c.eventHandler = handler
	return nil
}

func (c *fakeConn) SendOneWayCommand(cmd hono.Command, done func(err error)) error {
	c.mu.Lock()
	if c.sendSyncErr != nil {
		c.mu.Unlock()
		return c.sendSyncErr
	}
	c.oneWaySends = append(c.oneWaySends, cmd)
	sendErr := c.sendErr
	c.mu.Unlock()
	done(sendErr)
	return nil
}

func (c *fakeConn) SendCommand(cmd hono.Command, done func(response []byte, err error)) error {
	c.mu.Lock()
	if c.sendSyncErr != nil {
		c.mu.Unlock()
		return c.sendSyncErr
	}
	c.reqSends = append(c.reqSends, cmd)
	sendErr := c.sendErr
	response := c.response
	c.mu.Unlock()
	done(response, sendErr)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.oneWaySends) + len(c.reqSends)
}

// fakeBroker hands out scripted connections and records each dial's
// disconnect callback, index-aligned with conns.
type fakeBroker struct {
	mu      sync.Mutex
	dialErr error
	dials   int
	next    *fakeConn
	conns   []*fakeConn
	onDown  []func(err error)
}

func (b *fakeBroker) Dial(_ Credentials, onDisconnect func(err error)) (BrokerConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	conn := b.next
	if conn == nil {
		conn = &fakeConn{}
	}
	b.next = nil
	b.conns = append(b.conns, conn)
	b.onDown = append(b.onDown, onDisconnect)
	return conn, nil
}

// disconnect fires the i-th connection's disconnect callback.
func (b *fakeBroker) disconnect(i int, cause error) {
	b.mu.Lock()
	cb := b.onDown[i]
	b.mu.Unlock()
	cb(cause)
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// fakeTimer is a manually fired timer.
type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock records timers and waits for manual firing.
type fakeClock struct {
	mu      sync.Mutex
	timers  []*fakeTimer
	waiters []chan time.Time
	waits   []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, ch)
	c.waits = append(c.waits, d)
	return ch
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// armedTimers returns the timers that are neither stopped nor fired.
func (c *fakeClock) armedTimers() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs one armed timer's function.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	if t.stopped || t.fired {
		c.mu.Unlock()
		return
	}
	t.fired = true
	f := t.f
	c.mu.Unlock()
	f()
}

// waiterCount returns how many After channels are outstanding.
func (c *fakeClock) waiterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// release unblocks the i-th After call.
func (c *fakeClock) release(i int) {
	c.mu.Lock()
	ch := c.waiters[i]
	c.mu.Unlock()
	ch <- time.Now()
}
