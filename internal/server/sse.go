package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/tracknow/internal/hub"
)

// sseKeepaliveInterval is how often keepalive comments are sent to
// prevent connection timeouts.
const sseKeepaliveInterval = 15 * time.Second

// handleSessionStream handles GET /v1/sessions/{id}/stream (SSE endpoint).
// Every frame broadcast to the session room is forwarded, and a
// Last-Event-ID header replays buffered frames.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	// Ensure response supports flushing (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sessionID := r.PathValue("id")
	watcher := s.hub.Watch(sessionID)
	defer s.hub.Unwatch(watcher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Replayed frames may also arrive on the watcher; skip anything already sent.
	var lastSent uint64
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseUint(lastIDStr, 10, 64); err == nil {
			lastSent = lastID
			for _, evt := range s.hub.Since(sessionID, lastID) {
				writeSSEEvent(w, evt)
				lastSent = evt.ID
			}
			flusher.Flush()
		}
	}

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-watcher.C:
			if evt.ID <= lastSent {
				continue
			}
			writeSSEEvent(w, evt)
			lastSent = evt.ID
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the writer.
func writeSSEEvent(w http.ResponseWriter, evt *hub.StreamEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Event)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
