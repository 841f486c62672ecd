package store

import (
	"context"
	"database/sql"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// ErrNotFound is returned when a fence does not exist. It is sql.ErrNoRows so
// callers can match either.
var ErrNotFound = sql.ErrNoRows

// Store defines the persistence interface for fences and location history.
type Store interface {
	// Fence CRUD
	CreateFence(ctx context.Context, fence *model.Fence) error
	GetFence(ctx context.Context, id string) (*model.Fence, error)
	UpdateFence(ctx context.Context, fence *model.Fence) error
	DeleteFence(ctx context.Context, id string) error
	ListActiveFences(ctx context.Context) ([]*model.Fence, error)
	ListFencesBySession(ctx context.Context, sessionID string) ([]*model.Fence, error)

	// Location history
	RecordLocation(ctx context.Context, sample *model.LocationSample) error
	ListLocations(ctx context.Context, sessionID, actorID string, limit int) ([]*model.LocationSample, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
