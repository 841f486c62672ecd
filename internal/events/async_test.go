package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
	block  chan struct{}
	closed bool
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, _ any) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingPublisher) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAsyncPublisher_DeliversInOrder(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewAsyncPublisher(rec, 8, time.Second, quietLogger())

	want := []string{TopicVolunteerEvent, TopicLocationUpdate, TopicGeofenceAlert}
	for _, topic := range want {
		if err := pub.Publish(context.Background(), topic, nil); err != nil {
			t.Fatalf("Publish(%s): %v", topic, err)
		}
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := rec.published()
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if !rec.closed {
		t.Error("expected underlying publisher to be closed")
	}
}

func TestAsyncPublisher_FailureIsSwallowed(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("bus down")}
	pub := NewAsyncPublisher(rec, 8, time.Second, quietLogger())

	for i := 0; i < 3; i++ {
		if err := pub.Publish(context.Background(), TopicGeofenceAlert, nil); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}
	pub.Close()

	if got := pub.Failed(); got != 3 {
		t.Errorf("Failed() = %d, want 3", got)
	}
}

func TestAsyncPublisher_DropsWhenFull(t *testing.T) {
	rec := &recordingPublisher{block: make(chan struct{})}
	pub := NewAsyncPublisher(rec, 1, 5*time.Second, quietLogger())

	// One event is held by the drain goroutine, one sits in the queue; the
	// rest overflow. Publish must return immediately each time.
	start := time.Now()
	for i := 0; i < 10; i++ {
		pub.Publish(context.Background(), TopicLocationUpdate, i) //nolint:errcheck
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Publish blocked for %v", elapsed)
	}
	if got := pub.Dropped(); got < 8 {
		t.Errorf("Dropped() = %d, want at least 8", got)
	}

	close(rec.block)
	pub.Close()
}

func TestAsyncPublisher_PublishAfterClose(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewAsyncPublisher(rec, 4, time.Second, quietLogger())
	pub.Close()

	if err := pub.Publish(context.Background(), TopicChatMessage, nil); err != nil {
		t.Fatalf("Publish after close returned error: %v", err)
	}
	if got := pub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestAsyncPublisher_TimeoutBoundsSlowBus(t *testing.T) {
	rec := &recordingPublisher{block: make(chan struct{})}
	pub := NewAsyncPublisher(rec, 4, 20*time.Millisecond, quietLogger())

	pub.Publish(context.Background(), TopicGeofenceAlert, nil) //nolint:errcheck
	pub.Close()

	if got := pub.Failed(); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
}
