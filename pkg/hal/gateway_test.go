package hal

import (
	"testing"
	"time"

	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
)

type fakeRealHal struct {
	getErrs       []error
	setCalls      int
	subscribeCalls int
	eventCb       func(value.Value)
	errorCb       func(code, prop, op int32)
}

func (h *fakeRealHal) Init(eventCb func(value.Value), errorCb func(code, prop, op int32)) error {
	h.eventCb = eventCb
	h.errorCb = errorCb
	return nil
}
func (h *fakeRealHal) Release()                       {}
func (h *fakeRealHal) ListProperties() []value.Config { return nil }
func (h *fakeRealHal) Get(v *value.Value) error {
	if len(h.getErrs) == 0 {
		return nil
	}
	err := h.getErrs[0]
	h.getErrs = h.getErrs[1:]
	return err
}
func (h *fakeRealHal) Set(v *value.Value) error { h.setCalls++; return nil }
func (h *fakeRealHal) Subscribe(prop int32, rate float64, zones int32) error {
	h.subscribeCalls++
	return nil
}
func (h *fakeRealHal) Unsubscribe(prop int32) error       { return nil }
func (h *fakeRealHal) ReleaseMemoryFromGet(v *value.Value) {}

type fakeMockHal struct {
	handle   string
	rejected bool
}

func (m *fakeMockHal) Handle() any                     { return m.handle }
func (m *fakeMockHal) OnListProperties() []value.Config { return nil }
func (m *fakeMockHal) OnPropertyGet(v *value.Value) error {
	if m.rejected {
		return vnserr.ErrMockRejected
	}
	return nil
}
func (m *fakeMockHal) OnPropertySet(v value.Value) error { return nil }
func (m *fakeMockHal) OnPropertySubscribe(prop int32, rate float64, zones int32) error {
	return nil
}
func (m *fakeMockHal) OnPropertyUnsubscribe(prop int32) error { return nil }

type recordingSink struct {
	events []value.Value
}

func (s *recordingSink) HandleEvent(v value.Value) { s.events = append(s.events, v) }

func TestGetRetriesOnNotReadyThenSucceeds(t *testing.T) {
	real := &fakeRealHal{getErrs: []error{vnserr.ErrNotReady, vnserr.ErrNotReady, nil}}
	g := New(real, Config{Wait: time.Millisecond, MaxRetries: 5}, &recordingSink{}, nil, nil)

	v := value.NewValue(0x100, 0, value.Float, 0, nil)
	if err := g.Get(&v); err != nil {
		t.Fatalf("Get() = %v, want nil after retries succeed", err)
	}
}

func TestGetSurfacesNotReadyAfterRetryBudget(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = vnserr.ErrNotReady
	}
	real := &fakeRealHal{getErrs: errs}
	g := New(real, Config{Wait: time.Millisecond, MaxRetries: 3}, &recordingSink{}, nil, nil)

	v := value.NewValue(0x100, 0, value.Float, 0, nil)
	if err := g.Get(&v); err != vnserr.ErrNotReady {
		t.Fatalf("Get() = %v, want ErrNotReady", err)
	}
}

func TestRealHalEventsDroppedWhileMocking(t *testing.T) {
	real := &fakeRealHal{}
	sink := &recordingSink{}
	g := New(real, Config{}, sink, nil, nil)

	mock := &fakeMockHal{handle: "mock-1"}
	g.StartMocking(mock)

	real.eventCb(value.NewValue(0x100, 0, value.Float, 0, float32(1.0)))

	if len(sink.events) != 0 {
		t.Fatalf("expected real-HAL event to be dropped while mocking, got %d events", len(sink.events))
	}
	count, _ := g.DroppedWhileMocking()
	if count != 1 {
		t.Fatalf("DroppedWhileMocking() count = %d, want 1", count)
	}
}

func TestStopMockingRestoresRealHalRouting(t *testing.T) {
	real := &fakeRealHal{}
	sink := &recordingSink{}
	var swaps []bool
	g := New(real, Config{}, sink, nil, func(mocking bool) { swaps = append(swaps, mocking) })

	mock := &fakeMockHal{handle: "mock-1"}
	g.StartMocking(mock)
	if !g.Mocking() {
		t.Fatal("expected Mocking() true after StartMocking")
	}

	g.StopMocking(mock)
	if g.Mocking() {
		t.Fatal("expected Mocking() false after StopMocking")
	}
	if len(swaps) != 2 || swaps[0] != true || swaps[1] != false {
		t.Fatalf("swaps = %v, want [true false]", swaps)
	}
}

func TestStopMockingIgnoresMismatchedMock(t *testing.T) {
	real := &fakeRealHal{}
	g := New(real, Config{}, &recordingSink{}, nil, nil)

	mockA := &fakeMockHal{handle: "a"}
	mockB := &fakeMockHal{handle: "b"}
	g.StartMocking(mockA)
	g.StopMocking(mockB)

	if !g.Mocking() {
		t.Fatal("expected mocking to remain active after a mismatched StopMocking call")
	}
}

func TestNotifyMockDeathAutoStopsMocking(t *testing.T) {
	real := &fakeRealHal{}
	var swaps []bool
	g := New(real, Config{}, &recordingSink{}, nil, func(mocking bool) { swaps = append(swaps, mocking) })

	mock := &fakeMockHal{handle: "mock-1"}
	g.StartMocking(mock)
	g.NotifyMockDeath("mock-1")

	if g.Mocking() {
		t.Fatal("expected mock death to auto-stop mocking")
	}
	if len(swaps) != 2 || swaps[1] != false {
		t.Fatalf("swaps = %v, want second entry false", swaps)
	}
}
