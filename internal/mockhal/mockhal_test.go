package mockhal

import (
	"testing"

	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
)

func TestSetValueThenGetRoundTrips(t *testing.T) {
	m := New([]value.Config{{Prop: 0x100, ValueType: value.Float}})
	m.SetValue(value.NewValue(0x100, 0, value.Float, 0, float32(3.5)))

	v := value.NewValue(0x100, 0, value.Float, 0, nil)
	if err := m.OnPropertyGet(&v); err != nil {
		t.Fatalf("OnPropertyGet: %v", err)
	}
	got, ok := v.FloatVal()
	if !ok || got != 3.5 {
		t.Fatalf("FloatVal() = (%v, %v), want (3.5, true)", got, ok)
	}
}

func TestRejectGetReturnsMockRejected(t *testing.T) {
	m := New(nil)
	m.RejectGet(0x100, true)

	v := value.NewValue(0x100, 0, value.Float, 0, nil)
	if err := m.OnPropertyGet(&v); err != vnserr.ErrMockRejected {
		t.Fatalf("OnPropertyGet() = %v, want ErrMockRejected", err)
	}
}

func TestHandleIsStableAcrossCalls(t *testing.T) {
	m := New(nil)
	if m.Handle() != m.Handle() {
		t.Fatal("expected Handle() to be stable across calls")
	}
}
