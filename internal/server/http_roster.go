package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// maxLocationLimit caps GET /v1/sessions/{id}/locations?limit=.
const maxLocationLimit = 1000

// handleRoster handles GET /v1/sessions/{id}/roster.
// Returns the live roster from the session registry.
func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"members":   s.Presence.Roster(sessionID),
	})
}

// handleListSessions handles GET /v1/sessions: every session that currently
// has members, with its member count.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	type sessionEntry struct {
		SessionID string `json:"sessionId"`
		Members   int    `json:"members"`
		Fences    int    `json:"fences"`
	}
	ids := s.Presence.Sessions()
	out := make([]sessionEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, sessionEntry{
			SessionID: id,
			Members:   len(s.Presence.Roster(id)),
			Fences:    len(s.fences.Fences(id)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListLocations handles GET /v1/sessions/{id}/locations.
// Optional query params: actor (filter), limit (default 100, max 1000).
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = min(n, maxLocationLimit)
	}

	samples, err := s.store.ListLocations(r.Context(), sessionID, q.Get("actor"), limit)
	if err != nil {
		s.logger.Error("server: list locations failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if samples == nil {
		samples = []*model.LocationSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}
