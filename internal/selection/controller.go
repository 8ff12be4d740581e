// Package selection tracks which shapes the local user has selected or is
// manipulating. The state machine is client-local and never replicated;
// other clients learn about it only through the lock claims it triggers.
package selection

import (
	"log"

	"LiveCanvas/internal/geom"
	"LiveCanvas/internal/lock"
	"LiveCanvas/internal/state"
)

// State names the controller's position in the selection state machine.
type State string

const (
	// Idle means no shape is selected.
	Idle State = "idle"
	// Selected means one or more shapes are selected and not being moved.
	Selected State = "selected"
	// Manipulating means a drag, resize, or rotate gesture is in progress
	// on the current selection.
	Manipulating State = "manipulating"
)

// Controller is the per-client selection state machine. Every transition
// into Selected goes through the lock coordinator; a shape locked by another
// user short-circuits the attempt and leaves the state unchanged.
type Controller struct {
	cache  *state.ShapeCache
	locks  *lock.Coordinator
	userID string

	current  State
	selected []string // ordered
}

// NewController creates an Idle controller for the given user.
func NewController(cache *state.ShapeCache, locks *lock.Coordinator, userID string) *Controller {
	return &Controller{
		cache:   cache,
		locks:   locks,
		userID:  userID,
		current: Idle,
	}
}

// State returns the current machine state.
func (c *Controller) State() State { return c.current }

// SelectedIDs returns the ordered set of selected shape ids.
func (c *Controller) SelectedIDs() []string {
	out := make([]string, len(c.selected))
	copy(out, c.selected)
	return out
}

// IsSelected reports whether the shape is in the current selection.
func (c *Controller) IsSelected(shapeID string) bool {
	for _, id := range c.selected {
		if id == shapeID {
			return true
		}
	}
	return false
}

// Select handles pointer-down over a shape with the select tool active: the
// previous selection is released and the new shape claimed. Selecting a
// shape locked by another user, or losing the acquisition, leaves the
// previous selection intact and reports false. Selecting an already-selected
// shape is a no-op.
func (c *Controller) Select(shapeID string) bool {
	if c.current == Manipulating {
		return false
	}
	if len(c.selected) == 1 && c.selected[0] == shapeID {
		return true
	}
	if c.locks.IsLockedByOther(shapeID, c.userID) {
		log.Printf("[SELECT] %s is locked by another user, ignoring", shapeID)
		return false
	}
	if _, ok := c.cache.Get(shapeID); !ok {
		return false
	}

	// Claim the new shape before letting go of the old ones, so a denial
	// leaves the previous selection and its locks untouched.
	if !c.locks.Acquire(shapeID, c.userID).Granted {
		return false
	}
	c.releaseAll()
	c.selected = []string{shapeID}
	c.current = Selected
	return true
}

// AddToSelection extends the selection (shift-click) without dropping the
// shapes already held. The same lock gating applies.
func (c *Controller) AddToSelection(shapeID string) bool {
	if c.current == Manipulating || c.IsSelected(shapeID) {
		return c.IsSelected(shapeID)
	}
	if c.locks.IsLockedByOther(shapeID, c.userID) {
		return false
	}
	if _, ok := c.cache.Get(shapeID); !ok {
		return false
	}
	if !c.locks.Acquire(shapeID, c.userID).Granted {
		return false
	}
	c.selected = append(c.selected, shapeID)
	c.current = Selected
	return true
}

// Clear handles pointer-down over empty canvas: all locks are released and
// the machine returns to Idle. During a manipulation Clear is ignored; the
// gesture must end first.
func (c *Controller) Clear() {
	if c.current == Manipulating {
		return
	}
	c.releaseAll()
	c.selected = nil
	c.current = Idle
}

// BeginManipulation enters Manipulating at gesture start. The locks taken at
// selection time are reused; no new acquisition happens here.
func (c *Controller) BeginManipulation() bool {
	if c.current != Selected || len(c.selected) == 0 {
		return false
	}
	c.current = Manipulating
	return true
}

// EndManipulation returns to Selected at gesture end. The caller commits
// final geometry separately.
func (c *Controller) EndManipulation() {
	if c.current == Manipulating {
		c.current = Selected
	}
}

// TakeForDeletion empties the selection and returns the ids that were
// selected, in order, for the caller to delete. Locks on the doomed shapes
// are released first so a failed delete never strands a claim.
func (c *Controller) TakeForDeletion() []string {
	if c.current == Idle {
		return nil
	}
	ids := c.SelectedIDs()
	c.releaseAll()
	c.selected = nil
	c.current = Idle
	return ids
}

// Bounds returns the bounding box of the current selection. Rotated shapes
// contribute their rotated corner extrema, not their axis-aligned box. The
// second return is false when nothing is selected.
func (c *Controller) Bounds() (geom.Rect, bool) {
	if len(c.selected) == 0 {
		return geom.Rect{}, false
	}
	rects := make([]geom.Rect, 0, len(c.selected))
	for _, id := range c.selected {
		if s, ok := c.cache.Get(id); ok {
			rects = append(rects, s.RotatedBounds())
		}
	}
	if len(rects) == 0 {
		return geom.Rect{}, false
	}
	return geom.Union(rects), true
}

// HandleLockLost relinquishes a shape whose acquisition was retroactively
// invalidated by a remote snapshot. If it was the only selected shape the
// machine falls back to Idle, aborting any in-progress manipulation.
func (c *Controller) HandleLockLost(shapeID string) {
	if !c.IsSelected(shapeID) {
		return
	}
	kept := c.selected[:0]
	for _, id := range c.selected {
		if id != shapeID {
			kept = append(kept, id)
		}
	}
	c.selected = kept
	if len(c.selected) == 0 {
		c.current = Idle
	} else if c.current == Manipulating {
		c.current = Selected
	}
	log.Printf("[SELECT] Relinquished %s after losing its lock", shapeID)
}

// HandleRemoved drops a shape deleted by a remote peer from the selection.
func (c *Controller) HandleRemoved(shapeID string) {
	c.HandleLockLost(shapeID)
}

func (c *Controller) releaseAll() {
	for _, id := range c.selected {
		c.locks.Release(id, c.userID)
	}
}
