// Package hub delivers real-time events to the members of a session room.
//
// Every member owns a bounded FIFO queue drained by its own goroutine, so
// frames reach a member in the order they were enqueued and a slow or dead
// transport only ever delays itself. Delivery is at-most-once: a full queue
// or a failed send drops the frame for that member alone.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is the transport half of a member. Send must honor ctx.
type Conn interface {
	Send(ctx context.Context, frame []byte) error
}

// Envelope is the wire form of every outbound frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Options configure a Hub. Zero values pick the defaults.
type Options struct {
	QueueSize       int           // per-member outbound queue depth (default 64)
	DeliveryTimeout time.Duration // bound on a single Conn.Send (default 5s)
	Logger          *slog.Logger
}

// Hub tracks rooms and members and fans frames out to them.
type Hub struct {
	mu      sync.RWMutex
	members map[string]*member             // actorID -> member
	rooms   map[string]map[string]struct{} // sessionID -> actorIDs

	stream *stream

	queueSize int
	timeout   time.Duration
	logger    *slog.Logger

	dropped atomic.Int64
	failed  atomic.Int64
}

// New creates an empty hub.
func New(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		members:   make(map[string]*member),
		rooms:     make(map[string]map[string]struct{}),
		stream:    newStream(),
		queueSize: opts.QueueSize,
		timeout:   opts.DeliveryTimeout,
		logger:    opts.Logger,
	}
}

// Register attaches a transport for actorID and starts its delivery
// goroutine. Registering an ID twice replaces the old transport.
func (h *Hub) Register(actorID string, conn Conn) {
	m := newMember(actorID, conn, h.queueSize)

	h.mu.Lock()
	old := h.members[actorID]
	h.members[actorID] = m
	if old != nil {
		m.room = old.room
	}
	h.mu.Unlock()

	if old != nil {
		old.close()
	}
	go m.run(h.timeout, h.onSendError)
}

// Unregister removes the member from its room and stops delivery. Frames
// already queued are discarded.
func (h *Hub) Unregister(actorID string) {
	h.mu.Lock()
	m, ok := h.members[actorID]
	if ok {
		delete(h.members, actorID)
		h.removeFromRoomLocked(actorID, m.room)
	}
	h.mu.Unlock()

	if ok {
		m.close()
	}
}

// Join moves a registered member into sessionID's room, leaving any
// previous room. It reports false if actorID is not registered.
func (h *Hub) Join(sessionID, actorID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[actorID]
	if !ok {
		return false
	}
	if m.room == sessionID {
		return true
	}
	h.removeFromRoomLocked(actorID, m.room)
	room := h.rooms[sessionID]
	if room == nil {
		room = make(map[string]struct{})
		h.rooms[sessionID] = room
	}
	room[actorID] = struct{}{}
	m.room = sessionID
	return true
}

// Leave takes the member out of sessionID's room. It is a no-op when the
// member is elsewhere or unknown.
func (h *Hub) Leave(sessionID, actorID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[actorID]
	if !ok || m.room != sessionID {
		return
	}
	h.removeFromRoomLocked(actorID, sessionID)
	m.room = ""
}

func (h *Hub) removeFromRoomLocked(actorID, sessionID string) {
	if sessionID == "" {
		return
	}
	room := h.rooms[sessionID]
	delete(room, actorID)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// Members returns the actor IDs in sessionID's room, sorted.
func (h *Hub) Members(sessionID string) []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.rooms[sessionID]))
	for id := range h.rooms[sessionID] {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// ToRoom delivers event to every member of sessionID's room except the
// IDs in exclude, and records it for stream watchers. It returns the
// number of members the frame was queued for.
func (h *Hub) ToRoom(sessionID, event string, data any, exclude ...string) (int, error) {
	frame, err := encode(event, data)
	if err != nil {
		return 0, err
	}

	h.stream.append(sessionID, event, frame)

	h.mu.RLock()
	targets := make([]*member, 0, len(h.rooms[sessionID]))
	for id := range h.rooms[sessionID] {
		if slices.Contains(exclude, id) {
			continue
		}
		if m := h.members[id]; m != nil {
			targets = append(targets, m)
		}
	}
	h.mu.RUnlock()

	queued := 0
	for _, m := range targets {
		if h.enqueue(m, event, frame) {
			queued++
		}
	}
	return queued, nil
}

// ToActor delivers event to a single member regardless of room.
func (h *Hub) ToActor(actorID, event string, data any) (bool, error) {
	frame, err := encode(event, data)
	if err != nil {
		return false, err
	}
	h.mu.RLock()
	m := h.members[actorID]
	h.mu.RUnlock()
	if m == nil {
		return false, nil
	}
	return h.enqueue(m, event, frame), nil
}

func (h *Hub) enqueue(m *member, event string, frame []byte) bool {
	if m.offer(frame) {
		return true
	}
	h.dropped.Add(1)
	h.logger.Debug("hub: dropping frame for slow member", "actor", m.id, "event", event)
	return false
}

func (h *Hub) onSendError(actorID string, err error) {
	h.failed.Add(1)
	h.logger.Debug("hub: delivery failed", "actor", actorID, "error", err)
}

// Dropped is the number of frames discarded because a member queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Failed is the number of frames whose Conn.Send returned an error.
func (h *Hub) Failed() int64 { return h.failed.Load() }

// Close stops every member goroutine.
func (h *Hub) Close() {
	h.mu.Lock()
	members := h.members
	h.members = make(map[string]*member)
	h.rooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, m := range members {
		m.close()
	}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
