package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/tracknow/internal/store"
)

// handleCreateFence handles POST /v1/fences.
func (s *Server) handleCreateFence(w http.ResponseWriter, r *http.Request) {
	var in fenceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	f, err := s.createFence(r.Context(), in)
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
		} else {
			s.logger.Error("server: create fence failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create geofence")
		}
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

// handleGetFence handles GET /v1/fences/{id}. It reads the store, so
// inactive fences are returned too.
func (s *Server) handleGetFence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := s.store.GetFence(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "geofence not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get geofence")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleUpdateFence handles PUT /v1/fences/{id}.
func (s *Server) handleUpdateFence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in fenceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	f, err := s.updateFence(r.Context(), id, in)
	if err != nil {
		var ie inputError
		switch {
		case errors.As(err, &ie):
			writeError(w, http.StatusBadRequest, ie.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "geofence not found")
		default:
			s.logger.Error("server: update fence failed", "fence", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update geofence")
		}
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// handleDeleteFence handles DELETE /v1/fences/{id}.
func (s *Server) handleDeleteFence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.deleteFence(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "geofence not found")
			return
		}
		s.logger.Error("server: delete fence failed", "fence", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete geofence")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "geofence deleted"})
}

// handleListSessionFences handles GET /v1/sessions/{id}/fences.
// Served from the cache: only active fences are returned.
func (s *Server) handleListSessionFences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionFences(r.PathValue("id")))
}
