package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Both /devices/{id}/state and /device_states/{id} route here; the
// parameter is the device id either way.

func (s *Server) handleCreateState(w http.ResponseWriter, r *http.Request) {
	var state telemetry.DeviceState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	created, err := s.services.States.Create(r.Context(), state.DeviceID, state.Values, state.LastUpdate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	state, err := s.services.States.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handlePutState merges the body's values into the device state, creating
// it when absent.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var state telemetry.DeviceState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	updated, err := s.services.States.Update(r.Context(), id, state.Values)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.services.States.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
