// Package fence holds the in-memory cache of active geofences and the rule
// evaluator that runs against it on every location update.
//
// The cache mirrors the fences the store marks active. It is filled once at
// startup by Load and then kept consistent by the CRUD path, which calls
// Upsert or Remove only after the store write has succeeded.
package fence

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// ErrInvalidRadius is returned by Upsert for fences whose radius is not
// strictly positive. Such fences are never cached.
var ErrInvalidRadius = errors.New("fence radius must be greater than 0")

// Source supplies the active fences used to populate the cache.
type Source interface {
	ListActiveFences(ctx context.Context) ([]*model.Fence, error)
}

// Cache maps fence ID to fence definition for every active fence, with a
// per-session index that preserves insertion order.
type Cache struct {
	mu        sync.RWMutex
	fences    map[string]*model.Fence
	bySession map[string][]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		fences:    make(map[string]*model.Fence),
		bySession: make(map[string][]string),
	}
}

// Load replaces the cache contents with the active fences from src.
// A failure leaves the cache untouched and must abort startup.
func (c *Cache) Load(ctx context.Context, src Source) error {
	fences, err := src.ListActiveFences(ctx)
	if err != nil {
		return fmt.Errorf("load active fences: %w", err)
	}

	fresh := make(map[string]*model.Fence, len(fences))
	index := make(map[string][]string)
	for _, f := range fences {
		if !f.Active {
			continue
		}
		if !(f.Radius > 0) {
			slog.Warn("fence: skipping stored fence with invalid radius", "fence", f.ID, "radius", f.Radius)
			continue
		}
		if _, dup := fresh[f.ID]; !dup {
			index[f.SessionID] = append(index[f.SessionID], f.ID)
		}
		fresh[f.ID] = f.Clone()
	}

	c.mu.Lock()
	c.fences = fresh
	c.bySession = index
	c.mu.Unlock()

	slog.Info("fence: loaded active geofences", "count", len(fresh))
	return nil
}

// Upsert inserts or replaces the entry for f. A fence whose active flag is
// false is evicted instead.
func (c *Cache) Upsert(f *model.Fence) error {
	if f == nil {
		return nil
	}
	if !f.Active {
		c.Remove(f.ID)
		return nil
	}
	if !(f.Radius > 0) {
		c.Remove(f.ID)
		return ErrInvalidRadius
	}

	cp := f.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.fences[f.ID]; ok && prev.SessionID != f.SessionID {
		c.unindexLocked(prev.SessionID, f.ID)
		c.bySession[f.SessionID] = append(c.bySession[f.SessionID], f.ID)
	} else if !ok {
		c.bySession[f.SessionID] = append(c.bySession[f.SessionID], f.ID)
	}
	c.fences[f.ID] = cp
	return nil
}

// Remove evicts the fence with the given ID. Unknown IDs are ignored.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.fences[id]
	if !ok {
		return
	}
	delete(c.fences, id)
	c.unindexLocked(prev.SessionID, id)
}

func (c *Cache) unindexLocked(sessionID, id string) {
	ids := slices.DeleteFunc(c.bySession[sessionID], func(v string) bool { return v == id })
	if len(ids) == 0 {
		delete(c.bySession, sessionID)
		return
	}
	c.bySession[sessionID] = ids
}

// Get returns a copy of the cached fence, or false if it is not active.
func (c *Cache) Get(id string) (*model.Fence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fences[id]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// ListBySession returns the active fences of a session in insertion order.
// The sequence is lazy and restartable: every range takes a fresh snapshot,
// and no lock is held while the caller consumes it.
func (c *Cache) ListBySession(sessionID string) iter.Seq[*model.Fence] {
	return func(yield func(*model.Fence) bool) {
		for _, f := range c.snapshot(sessionID) {
			if !yield(f) {
				return
			}
		}
	}
}

// Fences collects ListBySession into a slice. The result is never nil.
func (c *Cache) Fences(sessionID string) []*model.Fence {
	out := slices.Collect(c.ListBySession(sessionID))
	if out == nil {
		out = []*model.Fence{}
	}
	return out
}

func (c *Cache) snapshot(sessionID string) []*model.Fence {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.bySession[sessionID]
	out := make([]*model.Fence, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.fences[id].Clone())
	}
	return out
}

// All returns a copy of every cached fence, grouped by session and in
// insertion order within each session.
func (c *Cache) All() []*model.Fence {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sessions := make([]string, 0, len(c.bySession))
	for s := range c.bySession {
		sessions = append(sessions, s)
	}
	slices.Sort(sessions)

	out := make([]*model.Fence, 0, len(c.fences))
	for _, s := range sessions {
		for _, id := range c.bySession[s] {
			out = append(out, c.fences[id].Clone())
		}
	}
	return out
}

// Len returns the number of cached fences.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fences)
}
