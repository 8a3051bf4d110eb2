// Package cache implements the write-through store for internal
// properties: ids in the reserved internal range that are never
// round-tripped to the HAL. The map-behind-RWMutex shape follows
// pkg/zone.Manager in the retrieved pack, generalized from string zone
// ids to int32 property ids and from zone membership records to
// value.Value copies.
package cache

import (
	"sync"

	"github.com/vns-go/vns/pkg/value"
)

// Cache is a write-through in-memory store for internal property values.
// Entries live for the process lifetime and are cleared only on Close.
type Cache struct {
	mu     sync.RWMutex
	values map[int32]value.Value
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{values: make(map[int32]value.Value)}
}

// Write replaces (or inserts) the stored value for v.Prop, taking
// ownership of a private copy of v.
func (c *Cache) Write(v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[v.Prop] = v.Clone()
}

// Read returns a copy of the cached value for prop, or false if no
// value has ever been written for it.
func (c *Cache) Read(prop int32) (value.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[prop]
	if !ok {
		return value.Value{}, false
	}
	return v.Clone(), true
}

// Close clears all cached entries. Intended for process shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[int32]value.Value)
}
