package client

import (
	"sync"

	"github.com/vns-go/vns/pkg/value"
)

// Flags are per (client, property) subscription flags.
type Flags uint8

const (
	// FlagHalEvent marks a subscriber that wants pushed HAL values.
	FlagHalEvent Flags = 1 << iota
	// FlagSetCall marks a subscriber that wants notification of
	// successful set() calls on the property. Only valid for
	// WRITE-capable properties.
	FlagSetCall
)

// SubscriptionInfo is a single client's subscription to a single property.
type SubscriptionInfo struct {
	SampleRate float64
	Zones      int32
	Flags      Flags
}

// Record tracks one connected client: identity, its listener, its
// per-property subscriptions, and its monitor flags. Records are owned
// by the Registry and keyed by Handle; per-property subscriber sets
// elsewhere hold only the Handle, never the *Record, so removal from
// the registry is the single point of truth for a client's lifetime.
type Record struct {
	mu sync.Mutex

	Handle Handle
	PID    int32
	UID    int32

	Listener Listener

	subscriptions map[int32]SubscriptionInfo

	monitorsErrors      bool
	monitorsHalRestart  bool

	pending []value.Value
}

func newRecord(handle Handle, pid, uid int32, listener Listener) *Record {
	return &Record{
		Handle:        handle,
		PID:           pid,
		UID:           uid,
		Listener:      listener,
		subscriptions: make(map[int32]SubscriptionInfo),
	}
}

// AddSubscription upserts the SubscriptionInfo for prop, replacing any
// prior record for the same property rather than accumulating duplicates.
func (r *Record) AddSubscription(prop int32, info SubscriptionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[prop] = info
}

// RemoveSubscription deletes prop's subscription and reports whether
// the record is still active (has any subscription or monitor on).
func (r *Record) RemoveSubscription(prop int32) (stillActive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscriptions, prop)
	return r.isActiveLocked()
}

// Subscription returns the client's subscription for prop, if any.
func (r *Record) Subscription(prop int32) (SubscriptionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.subscriptions[prop]
	return info, ok
}

// Subscriptions returns a snapshot of all of the client's property ids
// with an active subscription.
func (r *Record) Subscriptions() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	props := make([]int32, 0, len(r.subscriptions))
	for p := range r.subscriptions {
		props = append(props, p)
	}
	return props
}

// SetMonitorError flips the client's error-monitoring flag and reports
// whether the record is still active.
func (r *Record) SetMonitorError(on bool) (stillActive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitorsErrors = on
	return r.isActiveLocked()
}

// SetMonitorRestart flips the client's HAL-restart-monitoring flag and
// reports whether the record is still active.
func (r *Record) SetMonitorRestart(on bool) (stillActive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitorsHalRestart = on
	return r.isActiveLocked()
}

// MonitorsErrors reports whether the client wants HAL error notifications.
func (r *Record) MonitorsErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.monitorsErrors
}

// MonitorsHalRestart reports whether the client wants HAL restart notifications.
func (r *Record) MonitorsHalRestart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.monitorsHalRestart
}

// ClearSubscriptions empties the client's subscription map, used during
// the mock swap invalidation protocol.
func (r *Record) ClearSubscriptions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions = make(map[int32]SubscriptionInfo)
}

// IsActive reports whether the client has any subscription or monitor on.
func (r *Record) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isActiveLocked()
}

func (r *Record) isActiveLocked() bool {
	return len(r.subscriptions) > 0 || r.monitorsErrors || r.monitorsHalRestart
}

// EnqueueEvent appends v to the client's pending batch.
func (r *Record) EnqueueEvent(v value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, v)
}

// FlushEvents returns and clears the client's pending batch. An empty
// batch returns nil so callers can skip the OnEvents call entirely.
func (r *Record) FlushEvents() []value.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil
	return batch
}
