package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/service"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// pathUUID parses a uuid URL parameter, writing 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// handleListDevices lists the devices of the owner given by ?user_id.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		writeBadRequest(w, "user_id query parameter is required")
		return
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		writeBadRequest(w, "user_id must be a UUID")
		return
	}

	devices, err := s.services.Devices.ListByOwner(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleCreateDevice registers a device. The id may be supplied, which is
// how a peer hub mirrors a device it created.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var device telemetry.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	created, err := s.services.Devices.Create(r.Context(), &device)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	device, err := s.services.Devices.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleGetDeviceByPhysicalID(w http.ResponseWriter, r *http.Request) {
	device, err := s.services.Devices.GetByPhysicalID(r.Context(), chi.URLParam(r, "physicalID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// updateDeviceRequest is the PUT body. Omitted capability maps are kept.
type updateDeviceRequest struct {
	PhysicalID string                 `json:"physical_id"`
	Name       string                 `json:"name"`
	Events     telemetry.Capabilities `json:"events"`
	Actions    telemetry.Capabilities `json:"actions"`
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	device, err := s.services.Devices.Update(r.Context(), id, service.DeviceUpdate{
		PhysicalID: req.PhysicalID,
		Name:       req.Name,
		Events:     req.Events,
		Actions:    req.Actions,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.services.Devices.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
