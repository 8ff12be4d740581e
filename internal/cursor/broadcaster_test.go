package cursor

import (
	"sync"
	"testing"
	"time"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []Cursor
}

func (p *recordingPublisher) PublishCursor(c Cursor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, c)
	return nil
}

func (p *recordingPublisher) snapshot() []Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Cursor, len(p.sent))
	copy(out, p.sent)
	return out
}

func newFixture() (*Broadcaster, *recordingPublisher, *time.Time) {
	pub := &recordingPublisher{}
	b := NewBroadcaster(pub, 80*time.Millisecond, "user-a", "Alice", "#ff0000")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.SetNow(func() time.Time { return now })
	return b, pub, &now
}

func TestPublishThrottles(t *testing.T) {
	b, pub, now := newFixture()

	*now = now.Add(time.Second) // move past the zero lastSent
	for i := 0; i < 20; i++ {
		b.Publish(float64(i), float64(i))
		*now = now.Add(time.Millisecond)
	}
	if got := len(pub.snapshot()); got != 1 {
		t.Errorf("sent %d cursors inside one interval, want 1", got)
	}

	*now = now.Add(80 * time.Millisecond)
	b.Publish(99, 99)
	sent := pub.snapshot()
	if len(sent) != 2 {
		t.Fatalf("sent %d cursors, want 2 after interval elapsed", len(sent))
	}
	last := sent[len(sent)-1]
	if last.X != 99 || last.UserID != "user-a" || last.Name != "Alice" {
		t.Errorf("unexpected cursor on the wire: %+v", last)
	}
}

func TestApplyKeepsNewestPerUser(t *testing.T) {
	b, _, _ := newFixture()

	b.Apply(Cursor{UserID: "user-b", X: 1, Y: 1})
	b.Apply(Cursor{UserID: "user-b", X: 2, Y: 2})
	b.Apply(Cursor{UserID: "user-c", X: 9, Y: 9})

	all := b.All()
	if len(all) != 2 {
		t.Fatalf("got %d cursors, want one per user", len(all))
	}
	for _, c := range all {
		if c.UserID == "user-b" && c.X != 2 {
			t.Errorf("user-b cursor not replaced: %+v", c)
		}
	}
}

func TestApplyIgnoresOwnEcho(t *testing.T) {
	b, _, _ := newFixture()
	b.Apply(Cursor{UserID: "user-a", X: 5, Y: 5})
	if len(b.All()) != 0 {
		t.Error("own cursor echo should not be stored")
	}
}

func TestForget(t *testing.T) {
	b, _, _ := newFixture()
	b.Apply(Cursor{UserID: "user-b", X: 1, Y: 1})
	b.Forget("user-b")
	if len(b.All()) != 0 {
		t.Error("forgotten cursor still present")
	}
}

func TestOnUpdateFires(t *testing.T) {
	b, _, _ := newFixture()
	var got []Cursor
	b.OnUpdate = func(c Cursor) { got = append(got, c) }
	b.Apply(Cursor{UserID: "user-b", X: 3, Y: 4})
	if len(got) != 1 || got[0].X != 3 {
		t.Errorf("OnUpdate = %+v", got)
	}
}
