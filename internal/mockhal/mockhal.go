// Package mockhal is the reference mock HAL used by tests and by
// cmd/vnsctl's mock subcommand. It implements pkg/hal.MockHAL over a
// fixed, caller-supplied property list and an in-memory value store,
// mirroring the shape of the real driver contract closely enough that
// swapping one for the other is transparent to the broker.
package mockhal

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
)

// MockHAL is an in-memory test double for the vehicle HAL.
type MockHAL struct {
	mu sync.Mutex

	handle  uuid.UUID
	configs []value.Config
	values  map[int32]value.Value

	rejectGet       map[int32]bool
	rejectSet       map[int32]bool
	rejectSubscribe map[int32]bool
}

// New creates a MockHAL reporting configs as its property list. It
// starts with no stored values; use SetValue to seed them.
func New(configs []value.Config) *MockHAL {
	m := &MockHAL{
		handle:          uuid.New(),
		configs:         configs,
		values:          make(map[int32]value.Value),
		rejectGet:       make(map[int32]bool),
		rejectSet:       make(map[int32]bool),
		rejectSubscribe: make(map[int32]bool),
	}
	return m
}

// Handle identifies this mock instance for death-watch purposes.
func (m *MockHAL) Handle() any { return m.handle }

// SetValue seeds or overwrites the stored value returned by OnPropertyGet.
func (m *MockHAL) SetValue(v value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[v.Prop] = v
}

// RejectGet configures the mock to fail OnPropertyGet for prop, testing
// MockRejected propagation.
func (m *MockHAL) RejectGet(prop int32, reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectGet[prop] = reject
}

// RejectSet configures the mock to fail OnPropertySet for prop.
func (m *MockHAL) RejectSet(prop int32, reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectSet[prop] = reject
}

// RejectSubscribe configures the mock to fail OnPropertySubscribe for prop.
func (m *MockHAL) RejectSubscribe(prop int32, reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectSubscribe[prop] = reject
}

// OnListProperties returns the configured property list.
func (m *MockHAL) OnListProperties() []value.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]value.Config, len(m.configs))
	copy(out, m.configs)
	return out
}

// OnPropertyGet copies the stored value for v.Prop into v. If nothing
// has been stored yet, v is left unchanged and nil is returned.
func (m *MockHAL) OnPropertyGet(v *value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejectGet[v.Prop] {
		return vnserr.ErrMockRejected
	}
	if stored, ok := m.values[v.Prop]; ok {
		*v = stored.Clone()
		return nil
	}
	return nil
}

// OnPropertySet stores v as the property's current value.
func (m *MockHAL) OnPropertySet(v value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejectSet[v.Prop] {
		return vnserr.ErrMockRejected
	}
	m.values[v.Prop] = v.Clone()
	return nil
}

// OnPropertySubscribe records acceptance of an aggregate subscription.
func (m *MockHAL) OnPropertySubscribe(prop int32, rate float64, zones int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejectSubscribe[prop] {
		return vnserr.ErrMockRejected
	}
	return nil
}

// OnPropertyUnsubscribe always succeeds; the mock keeps no per-property
// subscription state of its own.
func (m *MockHAL) OnPropertyUnsubscribe(prop int32) error {
	return nil
}
