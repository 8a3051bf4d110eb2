// Package property holds the static and mock-supplied lists of property
// configurations and answers capability queries against them.
//
// Registry keys property configs by id in a map behind a mutex rather
// than scanning a flat list per lookup, the way other per-id registries
// in this codebase key their state.
package property

import (
	"sync"

	"github.com/vns-go/vns/pkg/value"
)

// Registry holds the real, internal, and (while mocking) mock property
// lists and answers O(1) capability queries against whichever list is
// currently active.
type Registry struct {
	mu sync.RWMutex

	real     map[int32]value.Config
	internal map[int32]value.Config
	mock     map[int32]value.Config
	mocking  bool
}

// New creates a Registry seeded with the real HAL's property list and
// the compiled-in internal property list. Both are immutable for the
// registry's configuration lifetime; mock replaces real only while
// mocking is active.
func New(real, internal []value.Config) *Registry {
	r := &Registry{
		real:     make(map[int32]value.Config, len(real)),
		internal: make(map[int32]value.Config, len(internal)),
	}
	for _, c := range real {
		r.real[c.Prop] = c
	}
	for _, c := range internal {
		r.internal[c.Prop] = c
	}
	return r
}

// SetMockList installs the property list a mock HAL reports and begins
// routing capability queries through it instead of the real list.
func (r *Registry) SetMockList(configs []value.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mock = make(map[int32]value.Config, len(configs))
	for _, c := range configs {
		r.mock[c.Prop] = c
	}
	r.mocking = true
}

// ClearMockList restores the real HAL's property list as active.
func (r *Registry) ClearMockList() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mock = nil
	r.mocking = false
}

// activeLocked returns whichever of real/mock is currently in effect.
// Callers must hold r.mu.
func (r *Registry) activeLocked() map[int32]value.Config {
	if r.mocking {
		return r.mock
	}
	return r.real
}

// Find looks up a single property's config across the active list and
// the internal list. The internal list is always consulted regardless
// of mocking state, matching the source's treatment of internal
// properties as orthogonal to the HAL's property space.
func (r *Registry) Find(prop int32) (value.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.activeLocked()[prop]; ok {
		return c, true
	}
	c, ok := r.internal[prop]
	return c, ok
}

// List returns the active property list when prop is 0, or a singleton
// slice containing just that property's config. An unknown non-zero
// prop returns an empty slice.
func (r *Registry) List(prop int32) []value.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if prop == 0 {
		active := r.activeLocked()
		out := make([]value.Config, 0, len(active)+len(r.internal))
		for _, c := range active {
			out = append(out, c)
		}
		for _, c := range r.internal {
			out = append(out, c)
		}
		return out
	}

	if c, ok := r.activeLocked()[prop]; ok {
		return []value.Config{c}
	}
	if c, ok := r.internal[prop]; ok {
		return []value.Config{c}
	}
	return nil
}

// IsInternal reports whether prop belongs to the compiled-in internal list.
func (r *Registry) IsInternal(prop int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.internal[prop]
	return ok
}

// IsGettable reports whether prop is known and readable.
func (r *Registry) IsGettable(prop int32) bool {
	c, ok := r.Find(prop)
	return ok && c.Access&value.Read != 0
}

// IsSettable reports whether prop is known, writable, and vt matches
// its configured value type.
func (r *Registry) IsSettable(prop int32, vt value.ValueType) bool {
	c, ok := r.Find(prop)
	return ok && c.Access&value.Write != 0 && c.ValueType == vt
}

// IsSubscribable reports whether prop is known, readable, and its
// change mode admits subscriptions (anything but Static or Poll).
func (r *Registry) IsSubscribable(prop int32) bool {
	c, ok := r.Find(prop)
	if !ok || c.Access&value.Read == 0 {
		return false
	}
	return c.ChangeMode != value.Static && c.ChangeMode != value.Poll
}

// IsZoned reports whether prop's configured value type is a zoned variant.
func (r *Registry) IsZoned(prop int32) bool {
	c, ok := r.Find(prop)
	return ok && c.IsZoned()
}
