package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// clock is a controllable time source for the registry.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestRegistry() (*Registry, *clock) {
	c := &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	r := New()
	r.now = c.now
	return r, c
}

func TestJoin_TwoActorsSameSession(t *testing.T) {
	r, c := newTestRegistry()

	first := r.Join("a1", "evt1", "alice")
	if len(first.Roster) != 1 {
		t.Fatalf("expected roster of 1 after first join, got %d", len(first.Roster))
	}
	c.advance(time.Second)
	second := r.Join("b1", "evt1", "bob")

	if len(second.Roster) != 2 {
		t.Fatalf("expected roster of 2, got %d", len(second.Roster))
	}
	if second.Roster[0].Name != "alice" || second.Roster[1].Name != "bob" {
		t.Errorf("roster not in join order: %+v", second.Roster)
	}
	for _, m := range second.Roster {
		if m.Status != model.ActorActive {
			t.Errorf("member %s status = %s, want active", m.ActorID, m.Status)
		}
	}
	if second.Vacated != nil {
		t.Errorf("unexpected vacated session %+v", second.Vacated)
	}
}

func TestJoinThenLeave_EmptiesRoster(t *testing.T) {
	r, _ := newTestRegistry()
	r.Join("a1", "evt1", "alice")

	d, ok := r.Leave("a1")
	if !ok {
		t.Fatal("expected Leave to report a departure")
	}
	if d.SessionID != "evt1" || d.Name != "alice" || d.ActorID != "a1" {
		t.Errorf("unexpected departure %+v", d)
	}
	if got := r.Roster("evt1"); len(got) != 0 {
		t.Errorf("expected empty roster, got %+v", got)
	}
	m, ok := r.Member("a1")
	if !ok || m.Status != model.ActorInactive {
		t.Errorf("expected inactive record to remain, got %+v ok=%v", m, ok)
	}
}

func TestLeave_Idempotent(t *testing.T) {
	r, _ := newTestRegistry()
	r.Join("a1", "evt1", "alice")

	if _, ok := r.Leave("a1"); !ok {
		t.Fatal("first leave should succeed")
	}
	if _, ok := r.Leave("a1"); ok {
		t.Error("second leave should be a no-op")
	}
	if _, ok := r.Leave("never-joined"); ok {
		t.Error("leave of unknown actor should be a no-op")
	}
}

func TestJoin_SwitchSessionVacatesPrevious(t *testing.T) {
	r, _ := newTestRegistry()
	r.Join("a1", "A", "alice")
	r.Join("b1", "A", "bob")

	res := r.Join("a1", "B", "alice")

	if res.Vacated == nil || res.Vacated.SessionID != "A" {
		t.Fatalf("expected vacated session A, got %+v", res.Vacated)
	}
	rosterA := r.Roster("A")
	if len(rosterA) != 1 || rosterA[0].ActorID != "b1" {
		t.Errorf("roster A = %+v, want only b1", rosterA)
	}
	if len(res.Roster) != 1 || res.Roster[0].ActorID != "a1" {
		t.Errorf("roster B = %+v, want only a1", res.Roster)
	}
	if s, _ := r.SessionOf("a1"); s != "B" {
		t.Errorf("SessionOf(a1) = %q, want B", s)
	}
}

func TestJoin_SameSessionTwiceKeepsSingleEntry(t *testing.T) {
	r, _ := newTestRegistry()
	r.Join("a1", "evt1", "alice")
	res := r.Join("a1", "evt1", "alice2")

	if len(res.Roster) != 1 {
		t.Fatalf("expected 1 member, got %d", len(res.Roster))
	}
	if res.Roster[0].Name != "alice2" {
		t.Errorf("name not updated: %q", res.Roster[0].Name)
	}
	if res.Vacated != nil {
		t.Error("rejoining the same session must not vacate it")
	}
}

func TestJoin_AfterLeaveReactivates(t *testing.T) {
	r, _ := newTestRegistry()
	r.Join("a1", "evt1", "alice")
	r.Leave("a1")

	res := r.Join("a1", "evt1", "alice")
	if len(res.Roster) != 1 || res.Roster[0].Status != model.ActorActive {
		t.Errorf("expected alice active again, got %+v", res.Roster)
	}
}

func TestUpdateLocation(t *testing.T) {
	r, c := newTestRegistry()
	r.Join("a1", "evt1", "alice")
	c.advance(time.Minute)

	at := c.now()
	name, ok := r.UpdateLocation("a1", "evt1", model.Location{Lat: 1, Lng: 2}, at)
	if !ok || name != "alice" {
		t.Fatalf("UpdateLocation = (%q, %v)", name, ok)
	}
	loc, locAt, ok := r.LastLocation("a1")
	if !ok || loc.Lat != 1 || loc.Lng != 2 || !locAt.Equal(at) {
		t.Errorf("LastLocation = %+v at %v ok=%v", loc, locAt, ok)
	}
	m, _ := r.Member("a1")
	if !m.LastSeen.Equal(at) {
		t.Errorf("lastSeen = %v, want %v", m.LastSeen, at)
	}
}

func TestUpdateLocation_UnknownActorDropped(t *testing.T) {
	r, _ := newTestRegistry()
	if _, ok := r.UpdateLocation("ghost", "evt1", model.Location{}, time.Now()); ok {
		t.Error("expected update from unknown actor to be dropped")
	}
	r.Join("a1", "evt1", "alice")
	r.Leave("a1")
	if _, ok := r.UpdateLocation("a1", "evt1", model.Location{}, time.Now()); ok {
		t.Error("expected update from departed actor to be dropped")
	}
	if _, _, ok := r.LastLocation("ghost"); ok {
		t.Error("ghost should have no location")
	}
}

func TestUpdateLocation_WrongSessionUntouched(t *testing.T) {
	r, c := newTestRegistry()
	r.Join("a1", "evt1", "alice")
	joinedAt := c.now()
	c.advance(time.Minute)

	if _, ok := r.UpdateLocation("a1", "evt2", model.Location{Lat: 5, Lng: 5}, c.now()); ok {
		t.Fatal("expected update for another session to be dropped")
	}
	if _, _, ok := r.LastLocation("a1"); ok {
		t.Error("dropped update must not set a location")
	}
	m, _ := r.Member("a1")
	if !m.LastSeen.Equal(joinedAt) {
		t.Errorf("lastSeen = %v, want %v (unchanged)", m.LastSeen, joinedAt)
	}
}

func TestIsMemberAndSessions(t *testing.T) {
	r, _ := newTestRegistry()
	r.Join("a1", "evt1", "alice")
	r.Join("b1", "evt2", "bob")

	if !r.IsMember("a1", "evt1") || r.IsMember("a1", "evt2") {
		t.Error("IsMember returned wrong result")
	}
	if got := fmt.Sprint(r.Sessions()); got != "[evt1 evt2]" {
		t.Errorf("Sessions() = %s", got)
	}
	r.Leave("b1")
	if got := fmt.Sprint(r.Sessions()); got != "[evt1]" {
		t.Errorf("Sessions() after leave = %s", got)
	}
}

func TestRoster_UnknownSessionIsEmpty(t *testing.T) {
	r, _ := newTestRegistry()
	if got := r.Roster("none"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil roster, got %#v", got)
	}
}

func TestSweep_RemovesIdleMembers(t *testing.T) {
	r, c := newTestRegistry()
	r.Join("idle", "evt1", "ida")
	c.advance(10 * time.Minute)
	r.Join("busy", "evt1", "bea")
	c.advance(6 * time.Minute)

	var removed []Departure
	r.sweep(&ReaperConfig{
		IdleThreshold: 15 * time.Minute,
		EvictAfter:    30 * time.Minute,
		OnIdle:        func(d Departure) { removed = append(removed, d) },
	})

	if len(removed) != 1 || removed[0].ActorID != "idle" || removed[0].SessionID != "evt1" {
		t.Fatalf("expected idle to be removed, got %+v", removed)
	}
	roster := r.Roster("evt1")
	if len(roster) != 1 || roster[0].ActorID != "busy" {
		t.Errorf("roster after sweep = %+v", roster)
	}
}

func TestSweep_EvictsInactiveRecords(t *testing.T) {
	r, c := newTestRegistry()
	r.Join("a1", "evt1", "alice")
	r.Leave("a1")
	c.advance(31 * time.Minute)

	r.sweep(&ReaperConfig{IdleThreshold: 15 * time.Minute, EvictAfter: 30 * time.Minute})

	if _, ok := r.Member("a1"); ok {
		t.Error("expected inactive record to be evicted")
	}
}

func TestStartReaper_StopsCleanly(t *testing.T) {
	r := New()
	r.StartReaper(&ReaperConfig{SweepInterval: 20 * time.Millisecond})
	time.Sleep(60 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2 seconds")
	}
	// A second Stop is harmless.
	r.Stop()
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("actor-%d", i)
			for j := 0; j < 50; j++ {
				r.Join(id, fmt.Sprintf("evt%d", j%3), id)
				r.UpdateLocation(id, fmt.Sprintf("evt%d", j%3), model.Location{Lat: float64(j)}, time.Now())
				_ = r.Roster("evt0")
			}
			r.Leave(id)
		}(i)
	}
	wg.Wait()

	if got := r.Sessions(); len(got) != 0 {
		t.Errorf("expected no sessions left, got %v", got)
	}
}
