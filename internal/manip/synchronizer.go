// Package manip streams in-progress shape transforms to the remote store
// without flooding it. Every input sample hits the local cache for immediate
// visual feedback; outbound writes are coalesced to the newest geometry per
// shape per throttle interval, and the final value at gesture end is always
// sent exactly.
package manip

import (
	"log"
	"sync"
	"time"

	"LiveCanvas/internal/geom"
	"LiveCanvas/internal/state"
)

// Writer sends a shape to the remote store. Implemented by the gateway.
type Writer interface {
	PutShape(state.Shape) error
}

// Synchronizer throttles in-flight transform updates and owns the transient
// state of a shape being drawn. One instance per client.
type Synchronizer struct {
	cache    *state.ShapeCache
	writer   Writer
	interval time.Duration
	minSize  float64
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	pending  map[string]state.Shape
	timer    *time.Timer

	draft       *state.Shape
	draftAnchor geom.Point
}

// NewSynchronizer creates a synchronizer with the given throttle interval
// and minimum committed-shape size.
func NewSynchronizer(cache *state.ShapeCache, writer Writer, interval time.Duration, minSize float64) *Synchronizer {
	return &Synchronizer{
		cache:    cache,
		writer:   writer,
		interval: interval,
		minSize:  minSize,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
		pending:  make(map[string]state.Shape),
	}
}

// SetNow injects a clock for tests.
func (sy *Synchronizer) SetNow(now func() time.Time) { sy.now = now }

// Update applies one input sample. The cache is written on every call; the
// remote store sees at most one write per shape per interval, carrying
// whatever geometry is newest when the interval elapses.
func (sy *Synchronizer) Update(s state.Shape) {
	sy.cache.Upsert(s)

	sy.mu.Lock()
	if last, ok := sy.lastSent[s.ID]; !ok || sy.now().Sub(last) >= sy.interval {
		sy.lastSent[s.ID] = sy.now()
		delete(sy.pending, s.ID)
		sy.mu.Unlock()
		sy.send(s)
		return
	}
	sy.pending[s.ID] = s
	if sy.timer == nil {
		sy.timer = time.AfterFunc(sy.interval, sy.flush)
	}
	sy.mu.Unlock()
}

// Commit writes the authoritative final geometry at gesture end, regardless
// of throttling state, so the committed value matches the last local value
// exactly. Any coalesced intermediate for the shape is discarded.
func (sy *Synchronizer) Commit(s state.Shape) {
	s = s.Normalized()
	sy.cache.Upsert(s)

	sy.mu.Lock()
	delete(sy.pending, s.ID)
	sy.lastSent[s.ID] = sy.now()
	sy.mu.Unlock()

	sy.send(s)
}

// Flush sends every coalesced update immediately. Called by the throttle
// timer; exported for shutdown paths.
func (sy *Synchronizer) Flush() { sy.flush() }

func (sy *Synchronizer) flush() {
	sy.mu.Lock()
	sy.timer = nil
	if len(sy.pending) == 0 {
		sy.mu.Unlock()
		return
	}
	batch := make([]state.Shape, 0, len(sy.pending))
	now := sy.now()
	for id, s := range sy.pending {
		batch = append(batch, s)
		sy.lastSent[id] = now
		delete(sy.pending, id)
	}
	sy.mu.Unlock()

	for _, s := range batch {
		sy.send(s)
	}
}

// BeginCreate starts a click-drag creation. The draft lives only in the
// local cache until FinishCreate; peers never see it.
func (sy *Synchronizer) BeginCreate(typ state.ShapeType, origin geom.Point, userID string) state.Shape {
	s := state.NewShape(typ, userID)
	s.X, s.Y = origin.X, origin.Y
	switch typ {
	case state.ShapeCircle:
		s.Radius = 0
	case state.ShapeLine:
		s.X2, s.Y2 = origin.X, origin.Y
	default:
		s.Width, s.Height = 0, 0
	}
	s.ZIndex = sy.cache.NextZIndex()
	sy.draft = &s
	sy.draftAnchor = origin
	sy.cache.Upsert(s)
	return s
}

// UpdateCreate stretches the draft to follow the pointer. A no-op when no
// creation is in progress.
func (sy *Synchronizer) UpdateCreate(p geom.Point) {
	if sy.draft == nil {
		return
	}
	resized := sy.draft.ResizeTo(p)
	sy.draft = &resized
	sy.cache.Upsert(resized)
}

// FinishCreate ends the creation drag. Drafts below the minimum size are
// discarded silently as accidental clicks; anything larger is normalized,
// committed locally, and persisted. Reports whether a shape was committed.
func (sy *Synchronizer) FinishCreate() (state.Shape, bool) {
	if sy.draft == nil {
		return state.Shape{}, false
	}
	draft := *sy.draft
	sy.draft = nil

	if !draft.MeetsMinSize(sy.minSize) {
		sy.cache.Remove(draft.ID)
		return state.Shape{}, false
	}
	draft = draft.Normalized()
	sy.cache.Upsert(draft)
	sy.send(draft)
	return draft, true
}

// CreationInProgress reports whether a draft shape exists.
func (sy *Synchronizer) CreationInProgress() bool { return sy.draft != nil }

func (sy *Synchronizer) send(s state.Shape) {
	if err := sy.writer.PutShape(s); err != nil {
		log.Printf("[SYNC] Failed to publish %s: %v", s.ID, err)
		sy.cache.MarkUnconfirmed(s.ID)
	}
}
