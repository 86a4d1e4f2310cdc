package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// timestampParam reads an optional RFC 3339 ?timestamp. Absent means now.
func timestampParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("timestamp")
	if raw == "" {
		return time.Time{}, true
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		writeBadRequest(w, "timestamp must be RFC 3339")
		return time.Time{}, false
	}
	return at, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading body: "+err.Error())
		return nil, false
	}
	return body, true
}

// handleIngestEvent validates a raw body against the device's event schema.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	at, ok := timestampParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	event, err := s.services.Events.Ingest(r.Context(),
		chi.URLParam(r, "physicalID"), chi.URLParam(r, "name"), body, at)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// handleRecordEvent stores an already-decoded event. Peer hubs use it.
func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var event telemetry.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if event.PhysicalID == "" || event.Name == "" {
		writeBadRequest(w, "device_physical_id and name are required")
		return
	}

	stored, err := s.services.Events.Record(r.Context(), event)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.services.Events.List(r.Context(), chi.URLParam(r, "physicalID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleSubmitAction validates a raw body against the device's action
// schema and queues or forwards it.
func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	at, ok := timestampParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	action, err := s.services.Actions.Submit(r.Context(),
		chi.URLParam(r, "physicalID"), chi.URLParam(r, "name"), body, at)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func writeActions(w http.ResponseWriter, actions []telemetry.Action) {
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": actions,
		"count":   len(actions),
	})
}

// handlePullActions drains the pending actions of a device by physical id.
func (s *Server) handlePullActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.services.Actions.Pull(r.Context(), chi.URLParam(r, "physicalID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeActions(w, actions)
}

// handlePullDeviceActions drains the pending actions of a device by id.
func (s *Server) handlePullDeviceActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	actions, err := s.services.Actions.PullForDevice(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeActions(w, actions)
}
