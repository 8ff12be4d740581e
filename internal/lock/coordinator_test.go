package lock

import (
	"errors"
	"testing"
	"time"

	"LiveCanvas/internal/state"
)

type fakeWriter struct {
	puts []state.Shape
	err  error
}

func (w *fakeWriter) PutShape(s state.Shape) error {
	w.puts = append(w.puts, s)
	return w.err
}

func newTestCoordinator(t *testing.T, staleAfter time.Duration, renew bool) (*Coordinator, *state.ShapeCache, *fakeWriter, state.Shape) {
	t.Helper()
	cache := state.NewShapeCache()
	writer := &fakeWriter{}
	coord := NewCoordinator(cache, writer, staleAfter, renew)

	s := state.NewShape(state.ShapeRectangle, "user-a")
	s.ID = "rect-1"
	cache.Upsert(s)
	return coord, cache, writer, s
}

func TestAcquireGrantsUnlockedShape(t *testing.T) {
	coord, cache, writer, s := newTestCoordinator(t, 30*time.Second, false)

	res := coord.Acquire(s.ID, "user-a")
	if !res.Granted {
		t.Fatal("acquisition of unlocked shape should be granted")
	}
	got, _ := cache.Get(s.ID)
	if got.LockedBy != "user-a" {
		t.Errorf("LockedBy = %q, want user-a", got.LockedBy)
	}
	if got.LockedAt.IsZero() {
		t.Error("LockedAt not set")
	}
	if len(writer.puts) != 1 {
		t.Errorf("claim not written through: %d puts", len(writer.puts))
	}
}

func TestAcquireDeniedWhileHeldByOther(t *testing.T) {
	coord, cache, _, s := newTestCoordinator(t, 30*time.Second, false)

	if res := coord.Acquire(s.ID, "user-a"); !res.Granted {
		t.Fatal("setup: user-a acquisition failed")
	}
	res := coord.Acquire(s.ID, "user-b")
	if res.Granted {
		t.Fatal("user-b acquisition should be denied while user-a holds the lock")
	}
	if res.Owner != "user-a" {
		t.Errorf("denial should name the owner, got %q", res.Owner)
	}
	got, _ := cache.Get(s.ID)
	if got.LockedBy != "user-a" {
		t.Errorf("LockedBy = %q, want user-a untouched", got.LockedBy)
	}
}

func TestReacquireByOwnerIsIdempotent(t *testing.T) {
	coord, cache, _, s := newTestCoordinator(t, 30*time.Second, false)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	coord.SetNow(func() time.Time { return now })

	coord.Acquire(s.ID, "user-a")
	first, _ := cache.Get(s.ID)

	now = base.Add(5 * time.Second)
	res := coord.Acquire(s.ID, "user-a")
	if !res.Granted {
		t.Fatal("re-acquisition by the owner must be granted")
	}
	second, _ := cache.Get(s.ID)
	if !second.LockedAt.Equal(first.LockedAt) {
		t.Errorf("LockedAt changed on re-acquire without renew: %v -> %v", first.LockedAt, second.LockedAt)
	}
}

func TestReacquireRenewsWhenConfigured(t *testing.T) {
	coord, cache, _, s := newTestCoordinator(t, 30*time.Second, true)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	coord.SetNow(func() time.Time { return now })

	coord.Acquire(s.ID, "user-a")
	now = base.Add(5 * time.Second)
	coord.Acquire(s.ID, "user-a")

	got, _ := cache.Get(s.ID)
	if !got.LockedAt.Equal(now) {
		t.Errorf("LockedAt = %v, want renewed to %v", got.LockedAt, now)
	}
}

func TestStaleClaimIsForceAcquired(t *testing.T) {
	coord, cache, _, s := newTestCoordinator(t, 30*time.Second, false)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	coord.SetNow(func() time.Time { return now })

	coord.Acquire(s.ID, "user-a")

	// user-a disconnects without releasing; the claim goes stale.
	now = base.Add(31 * time.Second)
	res := coord.Acquire(s.ID, "user-b")
	if !res.Granted {
		t.Fatal("stale claim should be force-acquirable")
	}
	got, _ := cache.Get(s.ID)
	if got.LockedBy != "user-b" {
		t.Errorf("LockedBy = %q, want user-b", got.LockedBy)
	}
}

func TestReleaseByNonOwnerIsNoOp(t *testing.T) {
	coord, cache, writer, s := newTestCoordinator(t, 30*time.Second, false)

	coord.Acquire(s.ID, "user-a")
	before, _ := cache.Get(s.ID)
	putsBefore := len(writer.puts)

	coord.Release(s.ID, "user-b")

	after, _ := cache.Get(s.ID)
	if after.LockedBy != before.LockedBy || !after.LockedAt.Equal(before.LockedAt) {
		t.Errorf("release by non-owner changed state: %+v -> %+v", before, after)
	}
	if len(writer.puts) != putsBefore {
		t.Error("release by non-owner should not write to the store")
	}
}

func TestReleaseClearsClaim(t *testing.T) {
	coord, cache, _, s := newTestCoordinator(t, 30*time.Second, false)

	coord.Acquire(s.ID, "user-a")
	coord.Release(s.ID, "user-a")

	got, _ := cache.Get(s.ID)
	if got.LockedBy != "" || !got.LockedAt.IsZero() {
		t.Errorf("claim not cleared: %+v", got)
	}
}

func TestIsLockedByOther(t *testing.T) {
	coord, _, _, s := newTestCoordinator(t, 30*time.Second, false)

	coord.Acquire(s.ID, "user-a")
	if !coord.IsLockedByOther(s.ID, "user-b") {
		t.Error("shape held by user-a should read as locked for user-b")
	}
	if coord.IsLockedByOther(s.ID, "user-a") {
		t.Error("shape should not read as locked for its own holder")
	}
	if coord.IsLockedByOther("no-such-shape", "user-b") {
		t.Error("unknown shapes are not locked")
	}
}

func TestReconcileLostRaceFiresCallback(t *testing.T) {
	coord, cache, _, s := newTestCoordinator(t, 30*time.Second, false)

	var lostID, lostOwner string
	coord.OnLockLost = func(id, owner string) { lostID, lostOwner = id, owner }

	coord.Acquire(s.ID, "user-a")

	// A snapshot arrives showing user-b won the race.
	remote, _ := cache.Get(s.ID)
	remote.LockedBy = "user-b"
	remote.LockedAt = time.Now()
	cache.ApplyRemote(remote)
	coord.Reconcile(remote, "user-a")

	if lostID != s.ID || lostOwner != "user-b" {
		t.Errorf("OnLockLost = (%q,%q), want (%q,user-b)", lostID, lostOwner, s.ID)
	}
}

func TestReconcileDropsStaleGrantAfterRelease(t *testing.T) {
	coord, cache, writer, s := newTestCoordinator(t, 30*time.Second, false)

	coord.Acquire(s.ID, "user-a")
	coord.Release(s.ID, "user-a")

	// The store's confirmation of the original claim arrives late.
	stale, _ := cache.Get(s.ID)
	stale.LockedBy = "user-a"
	stale.LockedAt = time.Now()
	cache.ApplyRemote(stale)
	coord.Reconcile(stale, "user-a")

	got, _ := cache.Get(s.ID)
	if got.LockedBy != "" {
		t.Errorf("stale grant re-applied: LockedBy = %q", got.LockedBy)
	}
	last := writer.puts[len(writer.puts)-1]
	if last.LockedBy != "" {
		t.Error("a fresh release should have been written to the store")
	}
}

func TestAcquireUnknownShapeDenied(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, 30*time.Second, false)
	if res := coord.Acquire("no-such-shape", "user-a"); res.Granted {
		t.Error("acquisition of an unknown shape must be denied")
	}
}

func TestAcquireWriteFailureStillGrantsButFlags(t *testing.T) {
	cache := state.NewShapeCache()
	writer := &fakeWriter{err: errors.New("connection lost")}
	coord := NewCoordinator(cache, writer, 30*time.Second, false)

	s := state.NewShape(state.ShapeCircle, "user-a")
	cache.Upsert(s)

	res := coord.Acquire(s.ID, "user-a")
	if !res.Granted {
		t.Fatal("optimistic grant should survive a gateway failure")
	}
	if !cache.IsUnconfirmed(s.ID) {
		t.Error("failed write should flag the shape unconfirmed")
	}
}
