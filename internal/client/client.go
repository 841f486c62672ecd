// Package client talks to a tracknow server: a REST client for fences,
// rosters and location history, a websocket dialer for the real-time
// channel, and a gRPC health probe.
package client

import (
	"context"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// Client is the interface the tracknow CLI commands use to reach the server.
// HTTPClient implements it.
type Client interface {
	// Fence CRUD
	CreateFence(ctx context.Context, req *FenceRequest) (*model.Fence, error)
	GetFence(ctx context.Context, id string) (*model.Fence, error)
	UpdateFence(ctx context.Context, id string, req *FenceRequest) (*model.Fence, error)
	DeleteFence(ctx context.Context, id string) error
	ListSessionFences(ctx context.Context, sessionID string) ([]*model.Fence, error)

	// Sessions
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	GetRoster(ctx context.Context, sessionID string) (*Roster, error)
	ListLocations(ctx context.Context, req *ListLocationsRequest) ([]*model.LocationSample, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// FenceRequest is the body of a fence create or update. On update, nil
// fields keep their stored value.
type FenceRequest struct {
	SessionID *string          `json:"sessionId,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Type      *model.FenceType `json:"type,omitempty"`
	Lat       *float64         `json:"lat,omitempty"`
	Lng       *float64         `json:"lng,omitempty"`
	Radius    *float64         `json:"radius,omitempty"`
	Rules     *[]model.Rule    `json:"rules,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

// SessionSummary is one entry of GET /v1/sessions.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Members   int    `json:"members"`
	Fences    int    `json:"fences"`
}

// Roster is the live membership of one session.
type Roster struct {
	SessionID string         `json:"sessionId"`
	Members   []model.Member `json:"members"`
}

// ListLocationsRequest holds parameters for listing location history.
type ListLocationsRequest struct {
	SessionID string
	ActorID   string // optional filter
	Limit     int    // 0 = server default
}
