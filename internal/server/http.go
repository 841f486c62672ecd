package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header. The websocket endpoint
// accepts the token as a ?token= query parameter as well, since browsers
// cannot set headers on the upgrade request.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/fences", s.handleCreateFence)
	mux.HandleFunc("GET /v1/fences/{id}", s.handleGetFence)
	mux.HandleFunc("PUT /v1/fences/{id}", s.handleUpdateFence)
	mux.HandleFunc("DELETE /v1/fences/{id}", s.handleDeleteFence)
	mux.HandleFunc("GET /v1/sessions/{id}/fences", s.handleListSessionFences)
	mux.HandleFunc("GET /v1/sessions/{id}/roster", s.handleRoster)
	mux.HandleFunc("GET /v1/sessions/{id}/locations", s.handleListLocations)
	mux.HandleFunc("GET /v1/sessions/{id}/stream", s.handleSessionStream)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RecoveryMiddleware(s.logger, LoggingMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
