package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/fence"
	"github.com/alfredjeanlab/tracknow/internal/model"
)

type broadcast struct {
	session string
	event   string
	data    any
	exclude []string
}

type fakeRoom struct {
	mu    sync.Mutex
	calls []broadcast
	err   error
}

func (r *fakeRoom) ToRoom(sessionID, event string, data any, exclude ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcast{sessionID, event, data, exclude})
	if r.err != nil {
		return 0, r.err
	}
	return 2, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func testDispatcher(pub events.Publisher, room Broadcaster) *Dispatcher {
	d := NewDispatcher(pub, room, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return d
}

func stage() *model.Fence {
	return &model.Fence{ID: "gf-stage", SessionID: "evt1", Name: "Stage", Radius: 100, Active: true}
}

func TestDispatch_BuildsAlertAndBroadcastsToWholeRoom(t *testing.T) {
	pub := &fakePublisher{}
	room := &fakeRoom{}
	d := testDispatcher(pub, room)

	rule := model.Rule{Condition: model.ConditionEnter, Action: model.ActionAlert, Message: "entered zone"}
	got := d.Dispatch(context.Background(), rule, "alice", "evt1", stage())

	want := model.Alert{
		Type:      model.ActionAlert,
		Message:   "entered zone",
		ActorID:   "alice",
		SessionID: "evt1",
		FenceID:   "gf-stage",
		FenceName: "Stage",
		Timestamp: 1700000000000,
	}
	if got != want {
		t.Fatalf("alert = %+v, want %+v", got, want)
	}

	if len(room.calls) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(room.calls))
	}
	c := room.calls[0]
	if c.session != "evt1" || c.event != Event {
		t.Fatalf("broadcast to %s/%s", c.session, c.event)
	}
	if len(c.exclude) != 0 {
		t.Fatalf("alert broadcast must include the originator, excluded %v", c.exclude)
	}
	if c.data.(model.Alert) != want {
		t.Fatalf("broadcast payload = %+v", c.data)
	}

	if len(pub.topics) != 1 || pub.topics[0] != events.TopicGeofenceAlert {
		t.Fatalf("published topics = %v", pub.topics)
	}
}

func TestDispatch_BusFailureStillBroadcasts(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bus unavailable")}
	room := &fakeRoom{}
	d := testDispatcher(pub, room)

	d.Dispatch(context.Background(), model.Rule{Action: model.ActionNotify, Message: "m"}, "alice", "evt1", stage())

	if len(pub.topics) != 1 {
		t.Fatalf("publish attempts = %d, want 1", len(pub.topics))
	}
	if len(room.calls) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(room.calls))
	}
}

func TestDispatch_BroadcastErrorIsNotFatal(t *testing.T) {
	room := &fakeRoom{err: errors.New("encode")}
	d := testDispatcher(nil, room)

	a := d.Dispatch(context.Background(), model.Rule{Action: model.ActionLog, Message: "m"}, "alice", "evt1", stage())
	if a.Type != model.ActionLog {
		t.Fatalf("alert type = %s", a.Type)
	}
}

func TestDispatchAll_OneBroadcastPerTrigger(t *testing.T) {
	room := &fakeRoom{}
	d := testDispatcher(&fakePublisher{}, room)

	f := stage()
	triggers := []fence.Trigger{
		{Fence: f, Rule: model.Rule{Condition: model.ConditionEnter, Action: model.ActionAlert, Message: "one"}},
		{Fence: f, Rule: model.Rule{Condition: model.ConditionInside, Action: model.ActionNotify, Message: "two"}},
	}
	alerts := d.DispatchAll(context.Background(), triggers, "alice", "evt1")
	if len(alerts) != 2 || len(room.calls) != 2 {
		t.Fatalf("alerts=%d broadcasts=%d, want 2 and 2", len(alerts), len(room.calls))
	}
	if alerts[0].Message != "one" || alerts[1].Message != "two" {
		t.Fatalf("order not preserved: %+v", alerts)
	}
	if d.DispatchAll(context.Background(), nil, "alice", "evt1") != nil {
		t.Fatal("no triggers should yield nil")
	}
}

func TestDispatch_WithAsyncPublisherDoesNotWaitOnBus(t *testing.T) {
	block := make(chan struct{})
	slow := &blockingPublisher{block: block}
	async := events.NewAsyncPublisher(slow, 4, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() {
		close(block)
		async.Close()
	}()

	room := &fakeRoom{}
	d := testDispatcher(async, room)

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), model.Rule{Action: model.ActionAlert, Message: "m"}, "alice", "evt1", stage())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the bus")
	}
	if len(room.calls) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(room.calls))
	}
}

type blockingPublisher struct{ block chan struct{} }

func (p *blockingPublisher) Publish(ctx context.Context, _ string, _ any) error {
	select {
	case <-p.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *blockingPublisher) Close() error { return nil }
