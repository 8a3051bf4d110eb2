// Package client tracks connected listeners: their identity, liveness,
// per-property subscription records, and monitor flags (C4 of the
// broker). The map-of-records-behind-a-mutex shape and the
// install-callback-on-first-use pattern follow
// pkg/transport.Server.conns (connsMu sync.RWMutex, map[*ServerConn]struct{})
// in the retrieved pack, generalized from raw connections to subscribing
// clients and from OnDisconnect to an explicit death watch.
package client

import "sync"

// Registry owns every connected client's Record, keyed by Handle.
// Per-property subscriber sets elsewhere in the broker never hold
// Records themselves, only Handles, so Registry is the single owner of
// client lifetime.
type Registry struct {
	mu      sync.RWMutex
	records map[Handle]*Record
	deaths  *deathWatch
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[Handle]*Record),
		deaths:  newDeathWatch(),
	}
}

// GetOrCreate returns the existing record for handle, or creates one
// and installs a death watch that invokes onDeath(handle) the first
// time NotifyDeath(handle) is called. onDeath is invoked outside any
// registry lock.
func (r *Registry) GetOrCreate(handle Handle, pid, uid int32, listener Listener, onDeath func(Handle)) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[handle]; ok {
		return rec
	}

	rec := newRecord(handle, pid, uid, listener)
	r.records[handle] = rec
	r.deaths.watch(handle, func() { onDeath(handle) })
	return rec
}

// Get returns the record for handle, if present.
func (r *Registry) Get(handle Handle) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[handle]
	return rec, ok
}

// Remove drops handle's record and uninstalls its death watch. Safe to
// call whether or not NotifyDeath already fired for handle.
func (r *Registry) Remove(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, handle)
	r.deaths.unwatch(handle)
}

// NotifyDeath reports that the transport has declared handle dead. It
// runs the registered onDeath callback, if any, outside the registry
// lock, and reports whether a callback was present.
func (r *Registry) NotifyDeath(handle Handle) bool {
	return r.deaths.notify(handle)
}

// Active reports whether handle currently has a live record.
func (r *Registry) Active(handle Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[handle]
	return ok
}

// Snapshot returns every currently registered record. Used for the
// mock-swap invalidation pass, restart notification, and global error
// fan-out.
func (r *Registry) Snapshot() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
