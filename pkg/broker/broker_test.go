package broker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vns-go/vns/internal/mockhal"
	"github.com/vns-go/vns/pkg/access"
	"github.com/vns-go/vns/pkg/client"
	"github.com/vns-go/vns/pkg/hal"
	"github.com/vns-go/vns/pkg/value"
)

type fakeRealHal struct {
	mu        sync.Mutex
	configs   []value.Config
	values    map[int32]value.Value
	setCalled bool
}

func newFakeRealHal(configs []value.Config) *fakeRealHal {
	return &fakeRealHal{configs: configs, values: make(map[int32]value.Value)}
}

func (h *fakeRealHal) Init(eventCb func(value.Value), errorCb func(code, prop, operation int32)) error {
	return nil
}
func (h *fakeRealHal) Release()                          {}
func (h *fakeRealHal) ListProperties() []value.Config    { return h.configs }
func (h *fakeRealHal) ReleaseMemoryFromGet(v *value.Value) {}

func (h *fakeRealHal) Get(v *value.Value) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if stored, ok := h.values[v.Prop]; ok {
		*v = stored
	}
	return nil
}

func (h *fakeRealHal) Set(v *value.Value) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setCalled = true
	h.values[v.Prop] = *v
	return nil
}

func (h *fakeRealHal) Subscribe(prop int32, rate float64, zones int32) error   { return nil }
func (h *fakeRealHal) Unsubscribe(prop int32) error                           { return nil }

type recordingListener struct {
	mu           sync.Mutex
	events       []value.Value
	restarts     []bool
	setCallbacks []value.Value
	notify       chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{notify: make(chan struct{}, 16)}
}

func (l *recordingListener) OnEvents(batch []value.Value) {
	l.mu.Lock()
	l.events = append(l.events, batch...)
	l.mu.Unlock()
	l.notify <- struct{}{}
}

func (l *recordingListener) OnHalError(code, prop, operation int32) {}

func (l *recordingListener) OnHalRestart(mocking bool) {
	l.mu.Lock()
	l.restarts = append(l.restarts, mocking)
	l.mu.Unlock()
	l.notify <- struct{}{}
}

func (l *recordingListener) OnPropertySet(v value.Value) {
	l.mu.Lock()
	l.setCallbacks = append(l.setCallbacks, v)
	l.mu.Unlock()
}

func (l *recordingListener) waitForEvent(t *testing.T) {
	t.Helper()
	select {
	case <-l.notify:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for listener callback")
	}
}

func openPolicy(t *testing.T) *access.Controller {
	t.Helper()
	acl, err := access.ParsePolicy([]byte("defaultRead: true\ndefaultWrite: true\n"))
	require.NoError(t, err)
	return acl
}

func newTestBroker(t *testing.T, real hal.RealHAL, internal []value.Config) (*Broker, func()) {
	t.Helper()
	b := New(real, internal, openPolicy(t), Config{DispatchInterval: 5 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	stop := func() {
		cancel()
		<-done
	}
	return b, stop
}

func TestInternalPropertySetDeliversEventWithoutCallingHal(t *testing.T) {
	real := newFakeRealHal(nil)
	internal := []value.Config{{
		Prop:       0x9000,
		ValueType:  value.Int32,
		Access:     value.ReadWrite,
		ChangeMode: value.OnSet,
	}}
	b, stop := newTestBroker(t, real, internal)
	defer stop()

	listener := newRecordingListener()
	require.NoError(t, b.Subscribe("A", 1, 100, listener, 0x9000, 0, 0, client.FlagHalEvent))

	require.NoError(t, b.Set(100, value.NewValue(0x9000, 0, value.Int32, 0, int32(42))))

	listener.waitForEvent(t)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.Len(t, listener.events, 1)
	got, ok := listener.events[0].Int32Val()
	require.True(t, ok)
	require.Equal(t, int32(42), got)
	require.False(t, real.setCalled, "internal property set must never reach the real HAL")

	var v value.Value
	v.Prop = 0x9000
	require.NoError(t, b.Get(100, &v))
	readBack, _ := v.Int32Val()
	require.Equal(t, int32(42), readBack)
}

func TestMockSwitchInvalidatesSubscriptionsAndNotifiesRestartMonitors(t *testing.T) {
	realConfigs := []value.Config{{
		Prop:       0x300,
		ValueType:  value.Float,
		Access:     value.ReadWrite,
		ChangeMode: value.Continuous,
		MaxSampleRate: 10,
	}}
	real := newFakeRealHal(realConfigs)
	b, stop := newTestBroker(t, real, nil)
	defer stop()

	listener := newRecordingListener()
	require.NoError(t, b.Subscribe("A", 1, 100, listener, 0x300, 5, 0, client.FlagHalEvent))
	b.StartHalRestartMonitoring("A", 1, 100, listener)

	mock := mockhal.New(realConfigs)
	b.StartMocking(mock)

	listener.waitForEvent(t)

	listener.mu.Lock()
	restarts := append([]bool(nil), listener.restarts...)
	listener.mu.Unlock()
	require.Equal(t, []bool{true}, restarts)

	rec, ok := b.registry.Get(client.Handle("A"))
	require.True(t, ok)
	require.Empty(t, rec.Subscriptions())

	_, ok = b.subs.Aggregate(0x300)
	require.False(t, ok, "aggregate for 0x300 must be gone after mock swap")
}

func TestDumpReportsMockingStateAndSubscribers(t *testing.T) {
	realConfigs := []value.Config{{
		Prop:       0x500,
		ValueType:  value.Float,
		Access:     value.ReadWrite,
		ChangeMode: value.Continuous,
		MaxSampleRate: 10,
	}}
	real := newFakeRealHal(realConfigs)
	b, stop := newTestBroker(t, real, nil)
	defer stop()

	listener := newRecordingListener()
	require.NoError(t, b.Subscribe("A", 42, 100, listener, 0x500, 5, 0, client.FlagHalEvent))

	var sb strings.Builder
	b.Dump(&sb)

	out := sb.String()
	require.Contains(t, out, "mocking: false")
	require.Contains(t, out, "property 0x500")
	require.Contains(t, out, "pid=42")
}

func TestSetFanOutNotifiesSetCallSubscribersOnSuccessfulSet(t *testing.T) {
	realConfigs := []value.Config{{
		Prop:       0x600,
		ValueType:  value.Int32,
		Access:     value.ReadWrite,
		ChangeMode: value.OnChange,
	}}
	real := newFakeRealHal(realConfigs)
	b, stop := newTestBroker(t, real, nil)
	defer stop()

	listener := newRecordingListener()
	require.NoError(t, b.Subscribe("A", 1, 100, listener, 0x600, 0, 0, client.FlagSetCall))

	require.NoError(t, b.Set(100, value.NewValue(0x600, 0, value.Int32, 0, int32(7))))

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.Len(t, listener.setCallbacks, 1)
	got, _ := listener.setCallbacks[0].Int32Val()
	require.Equal(t, int32(7), got)
}
