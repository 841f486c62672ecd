package model

import "time"

// Condition is the containment condition a Rule reacts to.
type Condition string

const (
	ConditionEnter   Condition = "ENTER"
	ConditionExit    Condition = "EXIT"
	ConditionInside  Condition = "INSIDE"
	ConditionOutside Condition = "OUTSIDE"
)

// String returns the string representation of the condition.
func (c Condition) String() string {
	return string(c)
}

// IsValid checks whether the condition is a known value.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionEnter, ConditionExit, ConditionInside, ConditionOutside:
		return true
	}
	return false
}

// Action is what happens when a Rule triggers. It becomes the alert type.
type Action string

const (
	ActionAlert  Action = "ALERT"
	ActionNotify Action = "NOTIFY"
	ActionLog    Action = "LOG"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionAlert, ActionNotify, ActionLog:
		return true
	}
	return false
}

// FenceType classifies a fence. Only inclusion zones exist today.
type FenceType string

const FenceTypeInclusion FenceType = "INCLUSION"

// Rule is a (condition, action, message) triple owned by exactly one Fence.
type Rule struct {
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
	Message   string    `json:"message"`
}

// Fence is a circular geofence bound to one session.
//
// Radius is expressed in the same units as the coordinates when evaluated;
// see fence.Contains for the planar approximation.
type Fence struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Type      FenceType `json:"type"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Radius    float64   `json:"radius"`
	Rules     []Rule    `json:"rules"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Center returns the fence center as a Location.
func (f *Fence) Center() Location {
	return Location{Lat: f.Lat, Lng: f.Lng}
}

// Clone returns a deep copy so cached fences can be handed out without
// sharing the rules slice.
func (f *Fence) Clone() *Fence {
	if f == nil {
		return nil
	}
	c := *f
	if f.Rules != nil {
		c.Rules = make([]Rule, len(f.Rules))
		copy(c.Rules, f.Rules)
	}
	return &c
}
