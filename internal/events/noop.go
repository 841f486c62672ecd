package events

import "context"

// NoopPublisher discards every event. Used when TRACKNOW_NATS_URL is unset.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
