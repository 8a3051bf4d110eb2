package client

import "sync"

// deathWatch tracks a callback to run when a handle is declared dead.
// It generalizes the connection-lifecycle notification the transport
// layer performs on disconnect (pkg/transport.ServerConfig.OnDisconnect
// in the retrieved pack) to an arbitrary comparable handle. The client
// Registry uses one instance to watch client handles; pkg/hal watches
// the mock HAL's handle with its own separate mockWatch type.
type deathWatch struct {
	mu     sync.Mutex
	onDeath map[any]func()
}

func newDeathWatch() *deathWatch {
	return &deathWatch{onDeath: make(map[any]func())}
}

// watch installs fn to run the first time notify(handle) is called.
// A later watch for the same handle replaces the previous callback.
func (d *deathWatch) watch(handle any, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDeath[handle] = fn
}

// unwatch removes any callback registered for handle without running it.
func (d *deathWatch) unwatch(handle any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.onDeath, handle)
}

// notify runs and removes the callback registered for handle, if any.
// It reports whether a callback was present.
func (d *deathWatch) notify(handle any) bool {
	d.mu.Lock()
	fn, ok := d.onDeath[handle]
	delete(d.onDeath, handle)
	d.mu.Unlock()

	if ok {
		fn()
	}
	return ok
}
