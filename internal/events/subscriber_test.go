package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// busPair connects a publisher and a subscriber to a fresh embedded server.
func busPair(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func recvMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
	}
	return Message{}
}

func TestNATSSubscriber_ReceivesPublishedEvent(t *testing.T) {
	pub, sub := busPair(t)

	ch, cancel, err := sub.Subscribe(TopicChatMessage)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	sent := ChatMessage{EventID: "evt1", SenderID: "a1", Message: "hello", Timestamp: 1700000000000}
	if err := pub.Publish(context.Background(), TopicChatMessage, sent); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	msg := recvMessage(t, ch)
	if msg.Topic != TopicChatMessage {
		t.Errorf("topic = %q, want %q", msg.Topic, TopicChatMessage)
	}
	var got ChatMessage
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decoding %s: %v", msg.Data, err)
	}
	if got != sent {
		t.Errorf("got %+v, want %+v", got, sent)
	}
}

func TestNATSSubscriber_SubjectFilter(t *testing.T) {
	pub, sub := busPair(t)

	ch, cancel, err := sub.Subscribe(TopicGeofenceAlert)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	_ = pub.Publish(ctx, TopicLocationUpdate, LocationUpdate{VolunteerID: "a1", EventID: "evt1"})
	_ = pub.Publish(ctx, TopicGeofenceAlert, GeofenceAlert{Type: model.ActionAlert, ActorID: "a1", FenceID: "gf-1"})

	msg := recvMessage(t, ch)
	if msg.Topic != TopicGeofenceAlert {
		t.Fatalf("received %q on an alert-only subscription", msg.Topic)
	}
}

func TestNATSSubscriber_WildcardSeesEveryTopic(t *testing.T) {
	pub, sub := busPair(t)

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	topics := []string{TopicGeofenceAlert, TopicLocationUpdate, TopicChatMessage, TopicVolunteerEvent, TopicFenceChanged}
	for _, topic := range topics {
		if err := pub.Publish(context.Background(), topic, map[string]string{"topic": topic}); err != nil {
			t.Fatalf("publishing to %s: %v", topic, err)
		}
	}

	// One connection publishes in order, so delivery order matches.
	for _, want := range topics {
		if msg := recvMessage(t, ch); msg.Topic != want {
			t.Errorf("got topic %q, want %q", msg.Topic, want)
		}
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	pub, sub := busPair(t)

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.Publish(context.Background(), TopicLocationUpdate, LocationUpdate{VolunteerID: "a1"})
		}
	}()

	cancel()
	cancel() // idempotent
	<-done

	// Whatever was buffered drains, then the channel reports closed.
	for range ch {
	}
}

func TestNATSSubscriber_DropsWhenFull(t *testing.T) {
	pub, sub := busPair(t)

	ch, cancel, err := sub.Subscribe(TopicLocationUpdate)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	for range 200 {
		if err := pub.Publish(context.Background(), TopicLocationUpdate, LocationUpdate{VolunteerID: "a1"}); err != nil {
			t.Fatalf("publishing: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(ch) < cap(ch) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected a full buffer of %d, got %d", cap(ch), len(ch))
	}

	// The NATS client is not blocked: a later subscription still works.
	other, cancelOther, err := sub.Subscribe(TopicChatMessage)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancelOther()
	_ = pub.Publish(context.Background(), TopicChatMessage, ChatMessage{Message: "still flowing"})
	recvMessage(t, other)
}
