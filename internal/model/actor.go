package model

import "time"

// ActorStatus is the lifecycle state of a session participant.
type ActorStatus string

const (
	ActorActive   ActorStatus = "active"
	ActorInactive ActorStatus = "inactive"
)

// String returns the string representation of the status.
func (s ActorStatus) String() string {
	return string(s)
}

// Member is the roster view of an actor, as sent in roster snapshots.
type Member struct {
	ActorID  string      `json:"actorId"`
	Name     string      `json:"name"`
	Status   ActorStatus `json:"status"`
	LastSeen time.Time   `json:"lastSeen"`
}
