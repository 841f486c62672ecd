// Package events is the message-bus side channel. Everything published here
// is best-effort: the real-time fan-out never waits on, or fails because of,
// the bus.
package events

import (
	"context"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// Topic constants. Subjects are NATS-style and dot separated.
const (
	TopicGeofenceAlert  = "tracknow.geofence.alerts"
	TopicLocationUpdate = "tracknow.location.updates"
	TopicChatMessage    = "tracknow.chat.messages"
	TopicVolunteerEvent = "tracknow.volunteer.events"
	TopicFenceChanged   = "tracknow.fence.changed"
	TopicAll            = "tracknow.>"
)

// Volunteer event actions.
const (
	ActionJoin  = "JOIN"
	ActionLeave = "LEAVE"
)

// GeofenceAlert is published for every triggered rule.
type GeofenceAlert = model.Alert

// LocationUpdate mirrors an accepted location sample.
type LocationUpdate struct {
	VolunteerID string         `json:"volunteerId"`
	EventID     string         `json:"eventId"`
	Location    model.Location `json:"location"`
	Timestamp   int64          `json:"timestamp"`
}

// ChatMessage mirrors a delivered chat message.
type ChatMessage struct {
	EventID   string `json:"eventId"`
	SenderID  string `json:"senderId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// VolunteerEvent records a join or leave.
type VolunteerEvent struct {
	EventID     string `json:"eventId"`
	VolunteerID string `json:"volunteerId"`
	Action      string `json:"action"` // JOIN or LEAVE
	Timestamp   int64  `json:"timestamp"`
}

// FenceChanged is published after a fence create, update, or delete.
type FenceChanged struct {
	FenceID   string       `json:"fenceId"`
	SessionID string       `json:"sessionId"`
	Op        string       `json:"op"` // created, updated, deleted
	Fence     *model.Fence `json:"fence,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
