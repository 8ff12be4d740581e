package state

import (
	"log"
	"sort"
	"sync"
)

// EventType discriminates cache change notifications.
type EventType string

const (
	EventUpsert EventType = "upsert"
	EventRemove EventType = "remove"
)

// Event describes a single cache mutation. For removals only ID is set.
type Event struct {
	Type  EventType
	ID    string
	Shape Shape
}

// ShapeCache is the client's local mirror of all shapes, keyed by id. Local
// optimistic mutations are applied immediately for responsiveness; remote
// snapshots arriving later fully replace the entry (last writer wins, no
// field-level merge).
//
// Subscribers are notified synchronously on the mutating goroutine, after
// the cache lock is released, so they may read back from the cache.
type ShapeCache struct {
	mu          sync.RWMutex
	shapes      map[string]Shape
	unconfirmed map[string]bool
	nextZ       int
	subs        []func(Event)
}

// NewShapeCache creates an empty cache.
func NewShapeCache() *ShapeCache {
	return &ShapeCache{
		shapes:      make(map[string]Shape),
		unconfirmed: make(map[string]bool),
	}
}

// Subscribe registers a change consumer. Subscribers must not mutate the
// cache from inside the callback.
func (c *ShapeCache) Subscribe(fn func(Event)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Upsert inserts or fully replaces a shape by id. Extents are normalized so
// an inverted drag never persists negative width/height.
func (c *ShapeCache) Upsert(s Shape) {
	s = s.Normalized()
	c.mu.Lock()
	c.shapes[s.ID] = s
	if s.ZIndex >= c.nextZ {
		c.nextZ = s.ZIndex + 1
	}
	subs := c.subs
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Type: EventUpsert, ID: s.ID, Shape: s})
	}
}

// ApplyRemote merges a snapshot received from the remote store. Snapshots
// for unknown ids are creations; the entry is unconditionally replaced and
// any unconfirmed-write flag is cleared, since the store has now spoken.
func (c *ShapeCache) ApplyRemote(s Shape) {
	c.mu.Lock()
	delete(c.unconfirmed, s.ID)
	c.mu.Unlock()
	c.Upsert(s)
}

// Remove deletes a shape. Removing an unknown id is a no-op and notifies
// nobody.
func (c *ShapeCache) Remove(id string) {
	c.mu.Lock()
	if _, ok := c.shapes[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.shapes, id)
	delete(c.unconfirmed, id)
	subs := c.subs
	c.mu.Unlock()

	log.Printf("[CACHE] Shape removed: %s", id)
	for _, fn := range subs {
		fn(Event{Type: EventRemove, ID: id})
	}
}

// Get returns the shape with the given id.
func (c *ShapeCache) Get(id string) (Shape, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shapes[id]
	return s, ok
}

// GetByName returns the shape with the given human-readable name.
func (c *ShapeCache) GetByName(name string) (Shape, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.shapes {
		if s.Name == name {
			return s, true
		}
	}
	return Shape{}, false
}

// All returns every shape ordered by ZIndex. The order is stable between
// mutations; only ZIndex is meaningful for paint order.
func (c *ShapeCache) All() []Shape {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]Shape, 0, len(c.shapes))
	for _, s := range c.shapes {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ZIndex != all[j].ZIndex {
			return all[i].ZIndex < all[j].ZIndex
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// Len returns the number of cached shapes.
func (c *ShapeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shapes)
}

// NextZIndex hands out the next paint-order key, monotonically increasing
// across creations seen by this client.
func (c *ShapeCache) NextZIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	z := c.nextZ
	c.nextZ++
	return z
}

// MarkUnconfirmed flags a shape whose optimistic write could not be sent to
// the remote store. The flag clears on the next ApplyRemote for the id.
func (c *ShapeCache) MarkUnconfirmed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.shapes[id]; ok {
		c.unconfirmed[id] = true
	}
}

// IsUnconfirmed reports whether the shape carries an unreconciled optimistic
// write.
func (c *ShapeCache) IsUnconfirmed(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unconfirmed[id]
}
