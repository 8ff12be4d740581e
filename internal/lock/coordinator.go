// Package lock implements the advisory, optimistic per-shape ownership
// protocol. The backing store offers only last-write-wins field replacement
// with change notification, so this is not a hard mutex: an acquisition is
// granted immediately and may be retroactively invalidated when a remote
// snapshot shows another owner won the race. Well-behaved clients honor the
// claim; the store never enforces it.
package lock

import (
	"log"
	"sync"
	"time"

	"LiveCanvas/internal/state"
)

// Writer sends a shape to the remote store. Implemented by the gateway.
type Writer interface {
	PutShape(state.Shape) error
}

// Result reports the outcome of an acquisition attempt. On denial Owner
// names the current holder.
type Result struct {
	Granted bool
	Owner   string
}

// Coordinator acquires, renews, and releases advisory shape locks against
// the local cache and the remote store. It never owns shape data; it only
// reads and writes the LockedBy/LockedAt fields.
type Coordinator struct {
	cache  *state.ShapeCache
	writer Writer

	staleAfter     time.Duration
	renewOnAcquire bool
	now            func() time.Time

	mu     sync.Mutex
	intent map[string]string // shapeID -> userID this client believes it holds

	// OnLockLost fires when a remote snapshot retroactively invalidates a
	// grant: the shape must be treated as locked by the reported owner and
	// any local manipulation state relinquished.
	OnLockLost func(shapeID, owner string)
}

// NewCoordinator wires a coordinator over the given cache and store writer.
// staleAfter bounds how long an unrenewed claim survives its owner.
func NewCoordinator(cache *state.ShapeCache, writer Writer, staleAfter time.Duration, renewOnAcquire bool) *Coordinator {
	return &Coordinator{
		cache:          cache,
		writer:         writer,
		staleAfter:     staleAfter,
		renewOnAcquire: renewOnAcquire,
		now:            time.Now,
		intent:         make(map[string]string),
	}
}

// SetNow injects a clock for tests.
func (c *Coordinator) SetNow(now func() time.Time) { c.now = now }

// Acquire attempts to claim the shape for userID. The grant is optimistic:
// it is returned before the remote store confirms, and a later snapshot may
// invalidate it via OnLockLost. A shape locked by another user is denied
// unless that claim has gone stale, in which case it is force-acquired.
// Re-acquiring a shape already held by userID is idempotent and does not
// bump LockedAt unless the coordinator was configured to renew.
func (c *Coordinator) Acquire(shapeID, userID string) Result {
	s, ok := c.cache.Get(shapeID)
	if !ok {
		return Result{Granted: false}
	}

	if s.LockedBy == userID {
		c.noteIntent(shapeID, userID)
		if !c.renewOnAcquire {
			return Result{Granted: true, Owner: userID}
		}
		return c.claim(s, userID)
	}

	if s.LockedBy != "" && !c.isStale(s) {
		return Result{Granted: false, Owner: s.LockedBy}
	}
	if s.LockedBy != "" {
		log.Printf("[LOCK] Stale claim on %s by %s abandoned, force-acquiring for %s", shapeID, s.LockedBy, userID)
	}
	return c.claim(s, userID)
}

// Release clears the claim on the shape if and only if userID currently
// holds it. Releasing a lock owned by someone else, or not locked at all,
// is a no-op; this defends against stale release calls after a lost race.
func (c *Coordinator) Release(shapeID, userID string) {
	c.dropIntent(shapeID, userID)

	s, ok := c.cache.Get(shapeID)
	if !ok || s.LockedBy != userID {
		return
	}
	s.LockedBy = ""
	s.LockedAt = time.Time{}
	c.cache.Upsert(s)
	if err := c.writer.PutShape(s); err != nil {
		log.Printf("[LOCK] Failed to publish release of %s: %v", shapeID, err)
		c.cache.MarkUnconfirmed(shapeID)
	}
}

// Renew bumps LockedAt on a claim userID still holds, keeping a long
// manipulation from crossing the staleness threshold.
func (c *Coordinator) Renew(shapeID, userID string) {
	s, ok := c.cache.Get(shapeID)
	if !ok || s.LockedBy != userID {
		return
	}
	c.claim(s, userID)
}

// IsLockedByOther reports whether the shape carries a live claim by a user
// other than userID. A stale claim does not count.
func (c *Coordinator) IsLockedByOther(shapeID, userID string) bool {
	s, ok := c.cache.Get(shapeID)
	if !ok {
		return false
	}
	return s.LockedBy != "" && s.LockedBy != userID && !c.isStale(s)
}

// Reconcile inspects a remote snapshot for lock consequences. It must be
// called after the snapshot was applied to the cache. Two cases matter:
//
//   - Lost race: this client believed it held the shape but the store says
//     another user does. The local intent is dropped and OnLockLost fires.
//   - Stale grant: the store confirms a claim by userID that was already
//     released locally. The confirmation is not re-applied; a fresh release
//     is written so peers do not see a ghost claim.
func (c *Coordinator) Reconcile(s state.Shape, userID string) {
	c.mu.Lock()
	holder, intended := c.intent[s.ID]
	c.mu.Unlock()

	if intended && holder == userID && s.LockedBy != "" && s.LockedBy != userID {
		c.dropIntent(s.ID, userID)
		log.Printf("[LOCK] Lost acquisition race on %s to %s", s.ID, s.LockedBy)
		if c.OnLockLost != nil {
			c.OnLockLost(s.ID, s.LockedBy)
		}
		return
	}

	if !intended && s.LockedBy == userID {
		// Delayed confirmation of a claim we no longer want.
		cleared := s
		cleared.LockedBy = ""
		cleared.LockedAt = time.Time{}
		c.cache.Upsert(cleared)
		if err := c.writer.PutShape(cleared); err != nil {
			log.Printf("[LOCK] Failed to clear stale grant on %s: %v", s.ID, err)
			c.cache.MarkUnconfirmed(s.ID)
		}
	}
}

func (c *Coordinator) claim(s state.Shape, userID string) Result {
	s.LockedBy = userID
	s.LockedAt = c.now()
	c.cache.Upsert(s)
	c.noteIntent(s.ID, userID)
	if err := c.writer.PutShape(s); err != nil {
		log.Printf("[LOCK] Failed to publish claim on %s: %v", s.ID, err)
		c.cache.MarkUnconfirmed(s.ID)
	}
	return Result{Granted: true, Owner: userID}
}

func (c *Coordinator) isStale(s state.Shape) bool {
	if s.LockedAt.IsZero() {
		return true
	}
	return c.now().Sub(s.LockedAt) > c.staleAfter
}

func (c *Coordinator) noteIntent(shapeID, userID string) {
	c.mu.Lock()
	c.intent[shapeID] = userID
	c.mu.Unlock()
}

func (c *Coordinator) dropIntent(shapeID, userID string) {
	c.mu.Lock()
	if c.intent[shapeID] == userID {
		delete(c.intent, shapeID)
	}
	c.mu.Unlock()
}
