package hub

import (
	"sync"
	"sync/atomic"
)

// streamRingSize is the number of recent frames kept in memory for
// Last-Event-ID replay.
const streamRingSize = 1000

// StreamEvent is one frame recorded for stream watchers.
type StreamEvent struct {
	ID        uint64 // monotonically increasing across all sessions
	SessionID string
	Event     string
	Data      []byte // full JSON envelope
}

// Watcher receives every frame sent to one session's room.
type Watcher struct {
	sessionID string
	C         chan *StreamEvent
}

// stream keeps a ring buffer of recent room frames and fans them out to
// watchers, e.g. SSE dashboards.
type stream struct {
	mu       sync.RWMutex
	watchers map[*Watcher]struct{}
	nextID   atomic.Uint64

	ringMu  sync.RWMutex
	ring    [streamRingSize]StreamEvent
	ringPos int
	ringLen int
}

func newStream() *stream {
	return &stream{watchers: make(map[*Watcher]struct{})}
}

func (s *stream) append(sessionID, event string, frame []byte) {
	// The ID is assigned under ringMu so ring order matches ID order.
	s.ringMu.Lock()
	evt := &StreamEvent{
		ID:        s.nextID.Add(1),
		SessionID: sessionID,
		Event:     event,
		Data:      frame,
	}
	s.ring[s.ringPos] = *evt
	s.ringPos = (s.ringPos + 1) % streamRingSize
	if s.ringLen < streamRingSize {
		s.ringLen++
	}
	s.ringMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for w := range s.watchers {
		if w.sessionID != sessionID {
			continue
		}
		select {
		case w.C <- evt:
		default:
			// Slow watcher; it can recover with Last-Event-ID.
		}
	}
}

// Watch registers a watcher for sessionID. Call Unwatch when done.
func (h *Hub) Watch(sessionID string) *Watcher {
	w := &Watcher{sessionID: sessionID, C: make(chan *StreamEvent, 64)}
	h.stream.mu.Lock()
	h.stream.watchers[w] = struct{}{}
	h.stream.mu.Unlock()
	return w
}

// Unwatch removes a watcher.
func (h *Hub) Unwatch(w *Watcher) {
	h.stream.mu.Lock()
	delete(h.stream.watchers, w)
	h.stream.mu.Unlock()
}

// Since returns buffered frames for sessionID with ID > lastID, oldest
// first. Frames that have fallen out of the ring are gone.
func (h *Hub) Since(sessionID string, lastID uint64) []*StreamEvent {
	s := h.stream
	s.ringMu.RLock()
	defer s.ringMu.RUnlock()

	var result []*StreamEvent
	start := s.ringPos - s.ringLen
	if start < 0 {
		start += streamRingSize
	}
	for i := range s.ringLen {
		evt := s.ring[(start+i)%streamRingSize]
		if evt.ID > lastID && evt.SessionID == sessionID {
			result = append(result, &evt)
		}
	}
	return result
}
