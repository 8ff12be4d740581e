// Package cursor streams ephemeral pointer positions between clients.
// Cursors are advisory: last value wins, nothing is persisted, and no lock
// semantics apply. A reordered late arrival briefly showing a stale position
// is accepted.
package cursor

import (
	"log"
	"sync"
	"time"
)

// Cursor is one user's pointer broadcast.
type Cursor struct {
	UserID string  `json:"userId"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Publisher sends a cursor to the remote peers. Implemented by the gateway.
type Publisher interface {
	PublishCursor(Cursor) error
}

// Broadcaster throttles the local cursor outbound and keeps the newest
// cursor per remote user inbound.
type Broadcaster struct {
	publisher Publisher
	interval  time.Duration
	now       func() time.Time

	userID string
	name   string
	color  string

	mu       sync.Mutex
	lastSent time.Time
	pending  *Cursor
	timer    *time.Timer
	remote   map[string]Cursor

	// OnUpdate fires for every applied remote cursor, on the applying
	// goroutine.
	OnUpdate func(Cursor)
}

// NewBroadcaster creates a broadcaster publishing as the given identity.
func NewBroadcaster(publisher Publisher, interval time.Duration, userID, name, color string) *Broadcaster {
	return &Broadcaster{
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
		userID:    userID,
		name:      name,
		color:     color,
		remote:    make(map[string]Cursor),
	}
}

// SetNow injects a clock for tests.
func (b *Broadcaster) SetNow(now func() time.Time) { b.now = now }

// Publish records the local pointer position and sends it at most once per
// interval. Positions arriving faster replace the pending value, so the
// newest one wins when the interval elapses.
func (b *Broadcaster) Publish(x, y float64) {
	c := Cursor{UserID: b.userID, Name: b.name, Color: b.color, X: x, Y: y}

	b.mu.Lock()
	if b.now().Sub(b.lastSent) >= b.interval {
		b.lastSent = b.now()
		b.pending = nil
		b.mu.Unlock()
		b.send(c)
		return
	}
	b.pending = &c
	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.flush)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) flush() {
	b.mu.Lock()
	b.timer = nil
	c := b.pending
	b.pending = nil
	if c != nil {
		b.lastSent = b.now()
	}
	b.mu.Unlock()
	if c != nil {
		b.send(*c)
	}
}

// Apply stores a cursor received from a remote peer, replacing any previous
// entry for that user. The local user's own echo is ignored.
func (b *Broadcaster) Apply(c Cursor) {
	if c.UserID == b.userID {
		return
	}
	b.mu.Lock()
	b.remote[c.UserID] = c
	b.mu.Unlock()
	if b.OnUpdate != nil {
		b.OnUpdate(c)
	}
}

// Forget drops a user's cursor, typically when presence reports them gone.
func (b *Broadcaster) Forget(userID string) {
	b.mu.Lock()
	delete(b.remote, userID)
	b.mu.Unlock()
}

// All returns the newest known cursor for every remote user.
func (b *Broadcaster) All() []Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Cursor, 0, len(b.remote))
	for _, c := range b.remote {
		out = append(out, c)
	}
	return out
}

func (b *Broadcaster) send(c Cursor) {
	if err := b.publisher.PublishCursor(c); err != nil {
		// Cursors are advisory; a dropped frame needs no recovery.
		log.Printf("[CURSOR] Failed to publish cursor: %v", err)
	}
}
