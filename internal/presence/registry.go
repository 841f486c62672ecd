// Package presence tracks which actors belong to which session.
//
// The Registry is the live, in-memory projection of session membership.
// An actor is a member of at most one session at a time: joining another
// session vacates the previous one. Leaving marks the actor inactive and
// drops it from the roster; the inactive record is kept so a late rejoin
// reuses it, and is evicted by the reaper after EvictAfter.
//
// The Registry never performs I/O. Callers receive the outcome of each
// mutation (roster snapshot, departure) and do the fan-out themselves.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// Departure describes an actor that was removed from a session roster.
type Departure struct {
	ActorID   string
	Name      string
	SessionID string
	At        time.Time
}

// JoinResult is returned by Join.
type JoinResult struct {
	// Roster is the target session's roster after the join, including the joiner.
	Roster []model.Member
	// Vacated is set when the actor was implicitly removed from another session.
	Vacated *Departure
}

// ReaperConfig configures the background idle-member reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a member may go without a location update or
	// join before being removed from its session. Default: 15 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long an inactive actor record is kept before it is
	// dropped from memory. Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each member removed for being idle.
	// Called outside the lock; safe to broadcast from.
	OnIdle func(Departure)
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	actors   map[string]*actorState
	sessions map[string]map[string]struct{}
	now      func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type actorState struct {
	name       string
	sessionID  string // empty when not a member of any session
	status     model.ActorStatus
	joinedAt   time.Time
	lastSeen   time.Time
	location   *model.Location
	locationAt time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		actors:   make(map[string]*actorState),
		sessions: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// Join makes actorID an active member of sessionID under the given name.
func (r *Registry) Join(actorID, sessionID, name string) JoinResult {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var res JoinResult

	state, ok := r.actors[actorID]
	if !ok {
		state = &actorState{}
		r.actors[actorID] = state
	}

	if state.sessionID != "" && state.sessionID != sessionID {
		res.Vacated = &Departure{
			ActorID:   actorID,
			Name:      state.name,
			SessionID: state.sessionID,
			At:        now,
		}
		r.removeMemberLocked(state.sessionID, actorID)
		slog.Info("presence: actor switched session", "actor", actorID, "from", state.sessionID, "to", sessionID)
	}

	if state.sessionID != sessionID {
		state.joinedAt = now
	}
	state.name = name
	state.sessionID = sessionID
	state.status = model.ActorActive
	state.lastSeen = now

	members, ok := r.sessions[sessionID]
	if !ok {
		members = make(map[string]struct{})
		r.sessions[sessionID] = members
	}
	members[actorID] = struct{}{}

	res.Roster = r.rosterLocked(sessionID)
	return res
}

// UpdateLocation records a location for an actor that is currently a member
// of sessionID and returns its name. It reports false, leaving the actor
// untouched, if the actor is not in sessionID; the update must be dropped.
func (r *Registry) UpdateLocation(actorID, sessionID string, loc model.Location, at time.Time) (name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, found := r.actors[actorID]
	if !found || state.sessionID == "" || state.sessionID != sessionID {
		return "", false
	}
	l := loc
	state.location = &l
	state.locationAt = at
	state.lastSeen = r.now()
	return state.name, true
}

// Leave removes actorID from its session and marks it inactive. It reports
// false if the actor was not a member of any session; calling it again has
// no further effect.
func (r *Registry) Leave(actorID string) (Departure, bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(actorID, now)
}

func (r *Registry) leaveLocked(actorID string, now time.Time) (Departure, bool) {
	state, ok := r.actors[actorID]
	if !ok || state.sessionID == "" {
		return Departure{}, false
	}

	d := Departure{
		ActorID:   actorID,
		Name:      state.name,
		SessionID: state.sessionID,
		At:        now,
	}
	r.removeMemberLocked(state.sessionID, actorID)
	state.sessionID = ""
	state.status = model.ActorInactive
	state.lastSeen = now
	return d, true
}

func (r *Registry) removeMemberLocked(sessionID, actorID string) {
	members := r.sessions[sessionID]
	delete(members, actorID)
	if len(members) == 0 {
		delete(r.sessions, sessionID)
	}
}

// Roster returns the members of a session ordered by join time.
// The result is never nil.
func (r *Registry) Roster(sessionID string) []model.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked(sessionID)
}

func (r *Registry) rosterLocked(sessionID string) []model.Member {
	members := r.sessions[sessionID]

	type entry struct {
		member   model.Member
		joinedAt time.Time
	}
	entries := make([]entry, 0, len(members))
	for id := range members {
		s := r.actors[id]
		entries = append(entries, entry{
			member: model.Member{
				ActorID:  id,
				Name:     s.name,
				Status:   s.status,
				LastSeen: s.lastSeen,
			},
			joinedAt: s.joinedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].joinedAt.Equal(entries[j].joinedAt) {
			return entries[i].member.ActorID < entries[j].member.ActorID
		}
		return entries[i].joinedAt.Before(entries[j].joinedAt)
	})

	out := make([]model.Member, len(entries))
	for i, e := range entries {
		out[i] = e.member
	}
	return out
}

// SessionOf returns the session the actor currently belongs to.
func (r *Registry) SessionOf(actorID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.actors[actorID]
	if !ok || s.sessionID == "" {
		return "", false
	}
	return s.sessionID, true
}

// IsMember reports whether actorID is currently in sessionID.
func (r *Registry) IsMember(actorID, sessionID string) bool {
	got, ok := r.SessionOf(actorID)
	return ok && got == sessionID
}

// Member returns the roster view of one actor, active or not.
func (r *Registry) Member(actorID string) (model.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.actors[actorID]
	if !ok {
		return model.Member{}, false
	}
	return model.Member{ActorID: actorID, Name: s.name, Status: s.status, LastSeen: s.lastSeen}, true
}

// LastLocation returns the actor's last reported location, if any.
func (r *Registry) LastLocation(actorID string) (model.Location, time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.actors[actorID]
	if !ok || s.location == nil {
		return model.Location{}, time.Time{}, false
	}
	return *s.location, s.locationAt, true
}

// Sessions returns the IDs of sessions with at least one member, sorted.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// StartReaper launches a background goroutine that periodically removes
// idle members. Call Stop() to shut it down.
func (r *Registry) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 15 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	r.reaperStop = make(chan struct{})
	r.reaperDone = make(chan struct{})

	go r.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (r *Registry) Stop() {
	if r.reaperStop != nil {
		close(r.reaperStop)
		<-r.reaperDone
		r.reaperStop = nil
		r.reaperDone = nil
	}
}

func (r *Registry) reapLoop(cfg *ReaperConfig) {
	defer close(r.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.reaperStop:
			return
		case <-ticker.C:
			r.sweep(cfg)
		}
	}
}

func (r *Registry) sweep(cfg *ReaperConfig) {
	now := r.now()
	var idle []Departure

	r.mu.Lock()
	for id, state := range r.actors {
		if state.sessionID == "" {
			if now.Sub(state.lastSeen) > cfg.EvictAfter {
				delete(r.actors, id)
			}
			continue
		}
		if now.Sub(state.lastSeen) > cfg.IdleThreshold {
			if d, ok := r.leaveLocked(id, now); ok {
				idle = append(idle, d)
			}
		}
	}
	r.mu.Unlock()

	for _, d := range idle {
		slog.Info("presence: reaper removed idle member",
			"actor", d.ActorID,
			"session", d.SessionID,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(d)
		}
	}
}
