package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/idgen"
	"github.com/alfredjeanlab/tracknow/internal/model"
	"github.com/alfredjeanlab/tracknow/internal/store"
)

// Fence change operations carried by events.FenceChanged.
const (
	opCreated = "created"
	opUpdated = "updated"
	opDeleted = "deleted"
)

// fenceInput is the body of POST /v1/fences and PUT /v1/fences/{id}. On
// update, nil fields keep their stored value.
type fenceInput struct {
	SessionID *string          `json:"sessionId"`
	Name      *string          `json:"name"`
	Type      *model.FenceType `json:"type"`
	Lat       *float64         `json:"lat"`
	Lng       *float64         `json:"lng"`
	Radius    *float64         `json:"radius"`
	Rules     *[]model.Rule    `json:"rules"`
	Active    *bool            `json:"active"`
}

func (in fenceInput) apply(f *model.Fence) {
	if in.SessionID != nil {
		f.SessionID = *in.SessionID
	}
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.Type != nil {
		f.Type = *in.Type
	}
	if in.Lat != nil {
		f.Lat = *in.Lat
	}
	if in.Lng != nil {
		f.Lng = *in.Lng
	}
	if in.Radius != nil {
		f.Radius = *in.Radius
	}
	if in.Rules != nil {
		f.Rules = *in.Rules
	}
	if in.Active != nil {
		f.Active = *in.Active
	}
}

// requireCenter rejects a create body that omits the center or radius. Zero
// is a valid coordinate, so this checks presence, not value.
func (in fenceInput) requireCenter() error {
	var missing []string
	if in.Lat == nil {
		missing = append(missing, "lat")
	}
	if in.Lng == nil {
		missing = append(missing, "lng")
	}
	if in.Radius == nil {
		missing = append(missing, "radius")
	}
	if len(missing) > 0 {
		return inputError("missing required field(s): " + strings.Join(missing, ", "))
	}
	return nil
}

// createFence validates and persists a new fence, then adds it to the cache.
// Returns inputError for validation failures.
func (s *Server) createFence(ctx context.Context, in fenceInput) (*model.Fence, error) {
	ctx, span := s.tracer.Start(ctx, "server.createFence")
	defer span.End()

	if err := in.requireCenter(); err != nil {
		return nil, err
	}
	f := &model.Fence{Type: model.FenceTypeInclusion, Active: true, Rules: []model.Rule{}}
	in.apply(f)
	if err := model.ValidateFence(f); err != nil {
		return nil, inputError(err.Error())
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate fence id: %w", err)
	}
	f.ID = id
	span.SetAttributes(attribute.String("fence.id", f.ID), attribute.String("session.id", f.SessionID))

	unlock := s.fenceLocks.Lock(f.ID)
	defer unlock()
	if err := s.store.CreateFence(ctx, f); err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	s.syncCache(f)
	s.publish(ctx, events.TopicFenceChanged, events.FenceChanged{FenceID: f.ID, SessionID: f.SessionID, Op: opCreated, Fence: f})
	s.logger.Info("server: fence created", "fence", f.ID, "session", f.SessionID)
	return f, nil
}

// updateFence merges in onto the stored fence inside a transaction, then
// refreshes the cache. Unknown IDs return store.ErrNotFound.
func (s *Server) updateFence(ctx context.Context, id string, in fenceInput) (*model.Fence, error) {
	ctx, span := s.tracer.Start(ctx, "server.updateFence", trace.WithAttributes(attribute.String("fence.id", id)))
	defer span.End()

	// Held until the cache reflects this commit, so cache applies for one
	// fence happen in commit order.
	unlock := s.fenceLocks.Lock(id)
	defer unlock()

	var updated *model.Fence
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		f, err := tx.GetFence(ctx, id)
		if err != nil {
			return err
		}
		in.apply(f)
		if err := model.ValidateFence(f); err != nil {
			return inputError(err.Error())
		}
		if err := tx.UpdateFence(ctx, f); err != nil {
			return err
		}
		updated = f
		return nil
	})
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) || errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update fence %s: %w", id, err)
	}

	s.syncCache(updated)
	s.publish(ctx, events.TopicFenceChanged, events.FenceChanged{FenceID: id, SessionID: updated.SessionID, Op: opUpdated, Fence: updated})
	s.logger.Info("server: fence updated", "fence", id, "session", updated.SessionID, "active", updated.Active)
	return updated, nil
}

// deleteFence removes the fence from the store, then from the cache.
func (s *Server) deleteFence(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "server.deleteFence", trace.WithAttributes(attribute.String("fence.id", id)))
	defer span.End()

	unlock := s.fenceLocks.Lock(id)
	defer unlock()

	cached, _ := s.fences.Get(id)
	if err := s.store.DeleteFence(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete fence %s: %w", id, err)
	}
	s.fences.Remove(id)

	ev := events.FenceChanged{FenceID: id, Op: opDeleted}
	if cached != nil {
		ev.SessionID = cached.SessionID
	}
	s.publish(ctx, events.TopicFenceChanged, ev)
	s.logger.Info("server: fence deleted", "fence", id)
	return nil
}

// syncCache mirrors a persisted fence into the cache. A stored fence that
// the cache refuses (non-positive radius) is logged and evicted.
func (s *Server) syncCache(f *model.Fence) {
	if err := s.fences.Upsert(f); err != nil {
		s.logger.Warn("server: fence not cached", "fence", f.ID, "radius", f.Radius, "error", err)
	}
}

// sessionFences returns the active fences for a session from the cache.
func (s *Server) sessionFences(sessionID string) []*model.Fence {
	return s.fences.Fences(sessionID)
}
