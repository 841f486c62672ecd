package server

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/fence"
	"github.com/alfredjeanlab/tracknow/internal/hub"
	"github.com/alfredjeanlab/tracknow/internal/model"
	"github.com/alfredjeanlab/tracknow/internal/presence"
)

// Connect attaches a transport for a new actor. The actor is not in any
// session until it sends join.
func (s *Server) Connect(actorID string, conn hub.Conn) {
	s.hub.Register(actorID, conn)
	s.logger.Debug("server: actor connected", "actor", actorID)
}

// Disconnect is the transport-close path: the actor leaves its session (if
// any) and its transport is detached. Safe to call more than once.
func (s *Server) Disconnect(actorID string) {
	s.depart(context.Background(), actorID)
	s.hub.Unregister(actorID)
	s.logger.Debug("server: actor disconnected", "actor", actorID)
}

// HandleFrame decodes and applies one client frame. Malformed frames are
// logged and dropped; nothing is reported back to the client.
func (s *Server) HandleFrame(ctx context.Context, actorID string, raw []byte) {
	msg, err := decodeFrame(raw)
	if err != nil {
		s.logger.Debug("server: dropping malformed frame", "actor", actorID, "error", err)
		return
	}
	switch m := msg.(type) {
	case joinMessage:
		s.join(ctx, actorID, m)
	case leaveMessage:
		s.leave(ctx, actorID, m)
	case locationMessage:
		s.updateLocation(ctx, actorID, m)
	case chatMessage:
		s.chat(ctx, actorID, m)
	}
}

func (s *Server) join(ctx context.Context, actorID string, m joinMessage) {
	unlock := s.actorLocks.Lock(actorID)
	res := s.Presence.Join(actorID, m.SessionID, m.ActorName)
	s.hub.Join(m.SessionID, actorID)
	unlock()

	if v := res.Vacated; v != nil {
		s.announceDeparture(ctx, *v)
	}

	if _, err := s.hub.ToActor(actorID, eventRosterSnapshot, res.Roster); err != nil {
		s.logger.Error("server: roster snapshot failed", "actor", actorID, "error", err)
	}
	if _, err := s.hub.ToRoom(m.SessionID, eventMemberJoined, memberJoinedPayload{ActorID: actorID, Name: m.ActorName}, actorID); err != nil {
		s.logger.Error("server: memberJoined broadcast failed", "session", m.SessionID, "error", err)
	}

	s.publish(ctx, events.TopicVolunteerEvent, events.VolunteerEvent{
		EventID:     m.SessionID,
		VolunteerID: actorID,
		Action:      events.ActionJoin,
		Timestamp:   s.now().UnixMilli(),
	})
	s.logger.Info("server: actor joined", "actor", actorID, "session", m.SessionID, "members", len(res.Roster))
}

// leave only applies to the session the actor is actually in.
func (s *Server) leave(ctx context.Context, actorID string, m leaveMessage) {
	if !s.Presence.IsMember(actorID, m.SessionID) {
		return
	}
	s.depart(ctx, actorID)
}

// depart removes the actor from its current session and tells the rest of
// the room. No-op for actors that are not members anywhere.
func (s *Server) depart(ctx context.Context, actorID string) {
	unlock := s.actorLocks.Lock(actorID)
	d, ok := s.Presence.Leave(actorID)
	if ok {
		s.hub.Leave(d.SessionID, actorID)
	}
	unlock()
	if ok {
		s.announceDeparture(ctx, d)
	}
}

// handleIdle is the reaper callback. The registry has already removed the
// member; the transport stays attached so the actor can rejoin. An actor
// that rejoined the same session before the callback ran keeps its room.
func (s *Server) handleIdle(d presence.Departure) {
	unlock := s.actorLocks.Lock(d.ActorID)
	rejoined := s.Presence.IsMember(d.ActorID, d.SessionID)
	if !rejoined {
		s.hub.Leave(d.SessionID, d.ActorID)
	}
	unlock()
	if rejoined {
		s.logger.Debug("server: idle departure superseded by rejoin", "actor", d.ActorID, "session", d.SessionID)
		return
	}
	s.announceDeparture(context.Background(), d)
}

func (s *Server) announceDeparture(ctx context.Context, d presence.Departure) {
	ts := d.At.UnixMilli()
	if _, err := s.hub.ToRoom(d.SessionID, eventMemberLeft, memberLeftPayload{ActorID: d.ActorID, Name: d.Name, Timestamp: ts}); err != nil {
		s.logger.Error("server: memberLeft broadcast failed", "session", d.SessionID, "error", err)
	}
	s.publish(ctx, events.TopicVolunteerEvent, events.VolunteerEvent{
		EventID:     d.SessionID,
		VolunteerID: d.ActorID,
		Action:      events.ActionLeave,
		Timestamp:   ts,
	})
	s.logger.Info("server: actor left", "actor", d.ActorID, "session", d.SessionID)
}

// updateLocation runs the location pipeline: registry, peer broadcast,
// evaluation and alerts, then best-effort history and bus publish.
// Updates from non-members or for a session the actor is not in are dropped.
func (s *Server) updateLocation(ctx context.Context, actorID string, m locationMessage) {
	now := s.now()
	loc := *m.Location

	sessionID := m.SessionID
	name, ok := s.Presence.UpdateLocation(actorID, sessionID, loc, now)
	if !ok {
		s.logger.Debug("server: dropping location update from non-member", "actor", actorID, "session", m.SessionID)
		return
	}

	if _, err := s.hub.ToRoom(sessionID, eventLocationUpdate, locationPayload{ActorID: actorID, Location: loc, Name: name}, actorID); err != nil {
		s.logger.Error("server: locationUpdate broadcast failed", "session", sessionID, "error", err)
	}

	ctx, span := s.tracer.Start(ctx, "server.updateLocation", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	triggers := fence.Evaluate(loc, s.fences.ListBySession(sessionID))
	span.SetAttributes(attribute.Int("fence.triggers", len(triggers)))
	s.alerts.DispatchAll(ctx, triggers, actorID, sessionID)
	span.End()

	s.recordLocation(&model.LocationSample{
		ActorID:   actorID,
		SessionID: sessionID,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Timestamp: now,
	})
	s.publish(ctx, events.TopicLocationUpdate, events.LocationUpdate{
		VolunteerID: actorID,
		EventID:     sessionID,
		Location:    loc,
		Timestamp:   now.UnixMilli(),
	})
}

// recordLocation writes a history sample in the background. When too many
// writes are already in flight (a slow database) the sample is dropped.
func (s *Server) recordLocation(sample *model.LocationSample) {
	if !s.history.TryAcquire(1) {
		s.logger.Warn("server: location history backlog, dropping sample", "actor", sample.ActorID, "session", sample.SessionID)
		return
	}
	go func() {
		defer s.history.Release(1)
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := s.store.RecordLocation(ctx, sample); err != nil {
			s.logger.Warn("server: failed to record location", "actor", sample.ActorID, "session", sample.SessionID, "error", err)
		}
	}()
}

// chat is delivered to the whole room, sender included, but only when the
// sender is a member of the session it names.
func (s *Server) chat(ctx context.Context, actorID string, m chatMessage) {
	member, ok := s.Presence.Member(actorID)
	if !ok || !s.Presence.IsMember(actorID, m.SessionID) {
		s.logger.Debug("server: dropping chat from non-member", "actor", actorID, "session", m.SessionID)
		return
	}
	ts := s.now().UnixMilli()
	if _, err := s.hub.ToRoom(m.SessionID, eventChatMessage, chatPayload{
		ActorID:   actorID,
		Name:      member.Name,
		Message:   m.Message,
		Timestamp: ts,
	}); err != nil {
		s.logger.Error("server: chat broadcast failed", "session", m.SessionID, "error", err)
	}
	s.publish(ctx, events.TopicChatMessage, events.ChatMessage{
		EventID:   m.SessionID,
		SenderID:  actorID,
		Message:   m.Message,
		Timestamp: ts,
	})
}
