// Package board wires the cache, lock coordinator, selection controller,
// manipulation synchronizer, and cursor broadcaster into the editor a
// rendering surface drives. All shape mutations, lock decisions, and
// selection transitions serialize through one mutex, so within a client
// there are no races by construction; concurrency exists only across
// clients, mediated by the remote store's notification stream.
package board

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"LiveCanvas/internal/command"
	"LiveCanvas/internal/cursor"
	"LiveCanvas/internal/geom"
	"LiveCanvas/internal/lock"
	"LiveCanvas/internal/manip"
	"LiveCanvas/internal/selection"
	"LiveCanvas/internal/session"
	"LiveCanvas/internal/state"
)

// Gateway is the slice of the remote store the editor writes to. Reads
// arrive through the Handle* methods instead.
type Gateway interface {
	PutShape(state.Shape) error
	DeleteShape(id string) error
	PublishCursor(cursor.Cursor) error
}

// Options carries the tunables the editor needs.
type Options struct {
	StaleAfter     time.Duration
	RenewOnAcquire bool
	SyncThrottle   time.Duration
	CursorThrottle time.Duration
	MinShapeSize   float64
}

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureDrag
	gestureResize
	gestureRotate
)

type gesture struct {
	kind       gestureKind
	lastPoint  geom.Point
	startAngle float64
	// rotation at gesture start, per shape
	startRotation map[string]float64
	// live resize geometry, possibly with inverted extents. The cache only
	// holds normalized shapes, so reading it back mid-gesture would move
	// the anchor once the pointer crosses it.
	resize *state.Shape
}

// Editor is one user's view of the shared canvas.
type Editor struct {
	mu sync.Mutex

	user    session.User
	cache   *state.ShapeCache
	locks   *lock.Coordinator
	sel     *selection.Controller
	syncer  *manip.Synchronizer
	cursors *cursor.Broadcaster
	gw      Gateway

	gesture gesture
	users   map[string]session.User
}

// New assembles an editor for the given identity over the gateway.
func New(user session.User, gw Gateway, opts Options) *Editor {
	cache := state.NewShapeCache()
	locks := lock.NewCoordinator(cache, gw, opts.StaleAfter, opts.RenewOnAcquire)
	sel := selection.NewController(cache, locks, user.UserID)
	locks.OnLockLost = func(shapeID, owner string) {
		// Runs under the editor mutex; every path into Reconcile holds it.
		sel.HandleLockLost(shapeID)
	}
	e := &Editor{
		user:    user,
		cache:   cache,
		locks:   locks,
		sel:     sel,
		syncer:  manip.NewSynchronizer(cache, gw, opts.SyncThrottle, opts.MinShapeSize),
		cursors: cursor.NewBroadcaster(gw, opts.CursorThrottle, user.UserID, user.DisplayName, user.Color),
		gw:      gw,
		users:   map[string]session.User{user.UserID: user},
	}
	return e
}

// Cache exposes the shape mirror for the rendering collaborator. Renderers
// read and subscribe; they never mutate.
func (e *Editor) Cache() *state.ShapeCache { return e.cache }

// Cursors exposes the remote cursor registry for rendering.
func (e *Editor) Cursors() *cursor.Broadcaster { return e.cursors }

// Locks exposes the coordinator, e.g. for periodic renewal during long
// gestures.
func (e *Editor) Locks() *lock.Coordinator { return e.locks }

// Selection exposes read access to the selection state.
func (e *Editor) SelectionState() selection.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.State()
}

// SelectedIDs returns the current selection.
func (e *Editor) SelectedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.SelectedIDs()
}

// SelectionBounds returns the rotated-aware bounding box of the selection.
func (e *Editor) SelectionBounds() (geom.Rect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Bounds()
}

// Users returns everyone known to be in the session.
func (e *Editor) Users() []session.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]session.User, 0, len(e.users))
	for _, u := range e.users {
		out = append(out, u)
	}
	return out
}

// ShapeAt returns the topmost shape under the point, by paint order.
func (e *Editor) ShapeAt(p geom.Point) (state.Shape, bool) {
	all := e.cache.All()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].HitTest(p) {
			return all[i], true
		}
	}
	return state.Shape{}, false
}

// --- pointer interface: creation ---

// StartCreate begins a click-drag creation of the given shape type.
func (e *Editor) StartCreate(typ state.ShapeType, p geom.Point) {
	if !typ.Valid() {
		log.Printf("[BOARD] Ignoring creation of unknown type %q", typ)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncer.BeginCreate(typ, p, e.user.UserID)
}

// UpdateCreate stretches the in-progress draft to the pointer.
func (e *Editor) UpdateCreate(p geom.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncer.UpdateCreate(p)
}

// FinishCreate commits the draft if it meets the minimum size, selecting
// the new shape on success. Sub-threshold drags vanish silently.
func (e *Editor) FinishCreate() (state.Shape, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.syncer.FinishCreate()
	if !ok {
		return state.Shape{}, false
	}
	e.sel.Select(s.ID)
	return s, true
}

// --- pointer interface: selection ---

// SelectAt handles pointer-down with the select tool: the topmost shape
// under the pointer is selected (claiming its lock), or the selection is
// cleared over empty canvas.
func (e *Editor) SelectAt(p geom.Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.ShapeAt(p); ok {
		return e.sel.Select(s.ID)
	}
	e.sel.Clear()
	return false
}

// AddSelectAt extends the selection (shift-click).
func (e *Editor) AddSelectAt(p geom.Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.ShapeAt(p); ok {
		return e.sel.AddToSelection(s.ID)
	}
	return false
}

// ClearSelection releases all held locks and returns to Idle.
func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Clear()
}

// DeleteSelection removes every selected shape locally and remotely, then
// goes Idle. Triggered by the delete key.
func (e *Editor) DeleteSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.sel.TakeForDeletion() {
		e.deleteShape(id)
	}
}

// --- pointer interface: gestures ---

// DragStart begins moving the selection.
func (e *Editor) DragStart(p geom.Point) bool {
	return e.beginGesture(gestureDrag, p)
}

// DragMove translates every selected shape by the pointer delta.
func (e *Editor) DragMove(p geom.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture.kind != gestureDrag {
		return
	}
	dx, dy := p.X-e.gesture.lastPoint.X, p.Y-e.gesture.lastPoint.Y
	e.gesture.lastPoint = p
	for _, id := range e.sel.SelectedIDs() {
		if s, ok := e.cache.Get(id); ok {
			e.syncer.Update(s.Translate(dx, dy))
		}
	}
}

// DragEnd commits final positions.
func (e *Editor) DragEnd() { e.endGesture() }

// ResizeStart begins resizing the primary selected shape.
func (e *Editor) ResizeStart(p geom.Point) bool {
	return e.beginGesture(gestureResize, p)
}

// ResizeMove stretches the primary selected shape toward the pointer. The
// anchor is the extent origin captured at gesture start, not whatever the
// normalized cache entry currently holds.
func (e *Editor) ResizeMove(p geom.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture.kind != gestureResize || e.gesture.resize == nil {
		return
	}
	if !e.sel.IsSelected(e.gesture.resize.ID) {
		return
	}
	next := e.gesture.resize.ResizeTo(p)
	*e.gesture.resize = next
	e.syncer.Update(next)
}

// ResizeEnd commits the final extents, normalized.
func (e *Editor) ResizeEnd() { e.endGesture() }

// RotateStart begins rotating the selection around its bounds center.
func (e *Editor) RotateStart(p geom.Point) bool {
	return e.beginGesture(gestureRotate, p)
}

// RotateMove applies the angular delta since gesture start.
func (e *Editor) RotateMove(p geom.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture.kind != gestureRotate {
		return
	}
	box, ok := e.sel.Bounds()
	if !ok {
		return
	}
	c := box.Center()
	delta := angleDeg(c, p) - e.gesture.startAngle
	for _, id := range e.sel.SelectedIDs() {
		if s, ok := e.cache.Get(id); ok {
			s.Rotation = math.Mod(e.gesture.startRotation[id]+delta, 360)
			e.syncer.Update(s)
		}
	}
}

// RotateEnd commits final rotations.
func (e *Editor) RotateEnd() { e.endGesture() }

// PointerMove publishes the local cursor. Lock-free and independent of any
// shape mutation.
func (e *Editor) PointerMove(p geom.Point) {
	e.cursors.Publish(p.X, p.Y)
}

func (e *Editor) beginGesture(kind gestureKind, p geom.Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	// The lock from selection is reused; no new acquisition here.
	if !e.sel.BeginManipulation() {
		return false
	}
	g := gesture{kind: kind, lastPoint: p, startRotation: make(map[string]float64)}
	if kind == gestureResize {
		if ids := e.sel.SelectedIDs(); len(ids) > 0 {
			if s, ok := e.cache.Get(ids[0]); ok {
				g.resize = &s
			}
		}
	}
	if kind == gestureRotate {
		if box, ok := e.sel.Bounds(); ok {
			g.startAngle = angleDeg(box.Center(), p)
		}
		for _, id := range e.sel.SelectedIDs() {
			if s, ok := e.cache.Get(id); ok {
				g.startRotation[id] = s.Rotation
			}
		}
	}
	e.gesture = g
	return true
}

func (e *Editor) endGesture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture.kind == gestureNone {
		return
	}
	e.gesture = gesture{}
	for _, id := range e.sel.SelectedIDs() {
		if s, ok := e.cache.Get(id); ok {
			e.syncer.Commit(s)
		}
	}
	e.sel.EndManipulation()
}

// --- command interface ---

// ApplyCommand executes a validated external command. Invalid commands and
// commands whose target cannot be resolved are dropped whole; nothing is
// partially applied. Targets locked by another user are skipped.
func (e *Editor) ApplyCommand(cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cmd.Action {
	case command.ActionCreateShape:
		s := *cmd.Shape
		if s.ID == "" {
			s.ID = state.NewShapeID()
		}
		if s.Name == "" {
			s.Name = state.NewShapeName(s.Type)
		}
		if s.Opacity == 0 {
			s.Opacity = 1
		}
		s.CreatedBy = e.user.UserID
		s.ZIndex = e.cache.NextZIndex()
		s = s.Normalized()
		e.cache.Upsert(s)
		e.putShape(s)
		return nil

	case command.ActionUpdateShape:
		targets := e.resolveUnlocked(cmd)
		if len(targets) == 0 {
			return fmt.Errorf("updateShape: no target")
		}
		updated := make([]state.Shape, 0, len(targets))
		for _, s := range targets {
			next, err := command.ApplyUpdates(s, cmd.Updates)
			if err != nil {
				return err // nothing applied
			}
			updated = append(updated, next)
		}
		for _, s := range updated {
			e.cache.Upsert(s)
			e.putShape(s)
		}
		return nil

	case command.ActionDeleteShape:
		targets := e.resolveUnlocked(cmd)
		if len(targets) == 0 {
			return fmt.Errorf("deleteShape: no target")
		}
		for _, s := range targets {
			e.sel.HandleRemoved(s.ID)
			e.deleteShape(s.ID)
		}
		return nil
	}
	return nil
}

func (e *Editor) resolveUnlocked(cmd command.Command) []state.Shape {
	targets := cmd.ResolveTargets(e.cache, e.sel.SelectedIDs())
	out := targets[:0]
	for _, s := range targets {
		if e.locks.IsLockedByOther(s.ID, e.user.UserID) {
			log.Printf("[BOARD] Skipping %s: locked by %s", s.ID, s.LockedBy)
			continue
		}
		out = append(out, s)
	}
	return out
}

// --- remote notification handlers, wired to the gateway ---

// HandleRemoteShape reconciles an inbound snapshot: the store's value
// replaces the cached one, and lock consequences are applied (lost races,
// stale grants).
func (e *Editor) HandleRemoteShape(s state.Shape) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.ApplyRemote(s)
	e.locks.Reconcile(s, e.user.UserID)
}

// HandleRemoteDelete removes a shape deleted elsewhere.
func (e *Editor) HandleRemoteDelete(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.HandleRemoved(id)
	e.cache.Remove(id)
}

// HandleRemoteCursor stores a peer's cursor.
func (e *Editor) HandleRemoteCursor(c cursor.Cursor) {
	e.cursors.Apply(c)
}

// HandleInit replays the full document on join.
func (e *Editor) HandleInit(shapes []state.Shape, users []session.User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range shapes {
		e.cache.ApplyRemote(s)
	}
	for _, u := range users {
		e.users[u.UserID] = u
	}
	log.Printf("[BOARD] Initialized with %d shapes, %d users", len(shapes), len(users))
}

// HandlePresence tracks who is online and drops stale cursors.
func (e *Editor) HandlePresence(u session.User, online bool) {
	e.mu.Lock()
	u.Online = online
	if online {
		e.users[u.UserID] = u
	} else {
		delete(e.users, u.UserID)
	}
	e.mu.Unlock()
	if !online {
		e.cursors.Forget(u.UserID)
	}
}

func (e *Editor) putShape(s state.Shape) {
	if err := e.gw.PutShape(s); err != nil {
		log.Printf("[BOARD] Failed to publish %s: %v", s.ID, err)
		e.cache.MarkUnconfirmed(s.ID)
	}
}

func (e *Editor) deleteShape(id string) {
	e.cache.Remove(id)
	if err := e.gw.DeleteShape(id); err != nil {
		log.Printf("[BOARD] Failed to publish delete of %s: %v", id, err)
	}
}

func angleDeg(center, p geom.Point) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X) * 180 / math.Pi
}
