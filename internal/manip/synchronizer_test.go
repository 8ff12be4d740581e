package manip

import (
	"sync"
	"testing"
	"time"

	"LiveCanvas/internal/geom"
	"LiveCanvas/internal/state"
)

type recordingWriter struct {
	mu   sync.Mutex
	puts []state.Shape
}

func (w *recordingWriter) PutShape(s state.Shape) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.puts = append(w.puts, s)
	return nil
}

func (w *recordingWriter) snapshot() []state.Shape {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]state.Shape, len(w.puts))
	copy(out, w.puts)
	return out
}

func newFixture() (*Synchronizer, *state.ShapeCache, *recordingWriter, *time.Time) {
	cache := state.NewShapeCache()
	writer := &recordingWriter{}
	sy := NewSynchronizer(cache, writer, 40*time.Millisecond, 5)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sy.SetNow(func() time.Time { return now })
	return sy, cache, writer, &now
}

func TestUpdateThrottlesOutboundWrites(t *testing.T) {
	sy, cache, writer, now := newFixture()

	s := state.NewShape(state.ShapeRectangle, "user-a")
	s.ID = "rect-1"
	s.X, s.Y = 100, 100
	cache.Upsert(s)

	// A burst of samples inside one interval: cache sees all, wire sees one.
	for i := 1; i <= 10; i++ {
		s.X, s.Y = 100+float64(i), 100+float64(i)
		sy.Update(s)
		*now = now.Add(2 * time.Millisecond)
	}

	cached, _ := cache.Get("rect-1")
	if cached.X != 110 || cached.Y != 110 {
		t.Errorf("cache not at the newest sample: (%v,%v)", cached.X, cached.Y)
	}
	if got := len(writer.snapshot()); got != 1 {
		t.Errorf("wire writes = %d, want 1 inside a single interval", got)
	}

	// Next interval: one more sample goes straight out.
	*now = now.Add(40 * time.Millisecond)
	s.X = 120
	sy.Update(s)
	if got := len(writer.snapshot()); got != 2 {
		t.Errorf("wire writes = %d, want 2 after interval elapsed", got)
	}
}

func TestCommitSendsExactFinalValue(t *testing.T) {
	sy, cache, writer, now := newFixture()

	s := state.NewShape(state.ShapeRectangle, "user-a")
	s.ID = "rect-1"
	s.X, s.Y = 100, 100
	cache.Upsert(s)
	sy.Update(s)

	// Intermediate samples land in the cache strictly past the origin.
	for i := 1; i <= 5; i++ {
		s.X, s.Y = 100+float64(i*10), 100+float64(i*16)
		sy.Update(s)
		*now = now.Add(time.Millisecond)
		cached, _ := cache.Get("rect-1")
		if cached.X <= 100 || cached.Y <= 100 {
			t.Fatalf("intermediate cache state reverted: (%v,%v)", cached.X, cached.Y)
		}
	}

	s.X, s.Y = 150, 180
	sy.Commit(s)

	puts := writer.snapshot()
	final := puts[len(puts)-1]
	if final.X != 150 || final.Y != 180 {
		t.Fatalf("committed value = (%v,%v), want exactly (150,180)", final.X, final.Y)
	}
	cached, _ := cache.Get("rect-1")
	if cached.X != 150 || cached.Y != 180 {
		t.Errorf("cache reverted after commit: (%v,%v)", cached.X, cached.Y)
	}

	// A later flush must not resurrect a coalesced intermediate.
	sy.Flush()
	puts = writer.snapshot()
	last := puts[len(puts)-1]
	if last.X != 150 || last.Y != 180 {
		t.Errorf("flush after commit re-sent stale geometry: (%v,%v)", last.X, last.Y)
	}
}

func TestCommitNormalizesInvertedDrag(t *testing.T) {
	sy, _, writer, _ := newFixture()

	s := state.NewShape(state.ShapeRectangle, "user-a")
	s.ID = "rect-1"
	s.X, s.Y, s.Width, s.Height = 100, 100, -60, -30
	sy.Commit(s)

	puts := writer.snapshot()
	final := puts[len(puts)-1]
	if final.Width < 0 || final.Height < 0 {
		t.Errorf("committed shape has negative extents: %+v", final)
	}
}

func TestSubThresholdCreationIsDiscarded(t *testing.T) {
	sy, cache, writer, _ := newFixture()

	sy.BeginCreate(state.ShapeRectangle, geom.Point{X: 10, Y: 10}, "user-a")
	sy.UpdateCreate(geom.Point{X: 13, Y: 12}) // 3x2 drag, below min size 5

	if _, committed := sy.FinishCreate(); committed {
		t.Fatal("sub-threshold drag must not commit a shape")
	}
	if cache.Len() != 0 {
		t.Errorf("draft left in cache: %d shapes", cache.Len())
	}
	if len(writer.snapshot()) != 0 {
		t.Error("sub-threshold drag must not reach the store")
	}
}

func TestCreationCommitsAboveThreshold(t *testing.T) {
	sy, cache, writer, _ := newFixture()

	draft := sy.BeginCreate(state.ShapeRectangle, geom.Point{X: 10, Y: 10}, "user-a")
	if !sy.CreationInProgress() {
		t.Fatal("expected a draft after BeginCreate")
	}
	// Draft is visible locally but never sent while in progress.
	if _, ok := cache.Get(draft.ID); !ok {
		t.Fatal("draft should live in the local cache for feedback")
	}
	if len(writer.snapshot()) != 0 {
		t.Fatal("draft leaked to the store before release")
	}

	sy.UpdateCreate(geom.Point{X: 90, Y: 70})
	got, committed := sy.FinishCreate()
	if !committed {
		t.Fatal("80x60 drag should commit")
	}
	if got.Width != 80 || got.Height != 60 {
		t.Errorf("committed extents = %vx%v, want 80x60", got.Width, got.Height)
	}
	puts := writer.snapshot()
	if len(puts) != 1 || puts[0].ID != draft.ID {
		t.Errorf("expected exactly the committed shape on the wire, got %d writes", len(puts))
	}
}

func TestCreationDragUpwardsNormalizes(t *testing.T) {
	sy, _, _, _ := newFixture()

	sy.BeginCreate(state.ShapeRectangle, geom.Point{X: 100, Y: 100}, "user-a")
	sy.UpdateCreate(geom.Point{X: 40, Y: 60}) // drag up-left
	got, committed := sy.FinishCreate()
	if !committed {
		t.Fatal("60x40 drag should commit")
	}
	if got.X != 40 || got.Y != 60 || got.Width != 60 || got.Height != 40 {
		t.Errorf("normalized draft = %+v", got)
	}
}
