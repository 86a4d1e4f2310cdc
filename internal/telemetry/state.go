package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// DeviceState is the latest known value of every field a device has reported.
type DeviceState struct {
	DeviceID   uuid.UUID `json:"device_id"`
	LastUpdate time.Time `json:"last_update"`
	Values     Payload   `json:"values"`
}

// NewDeviceState returns a state holding a copy of values.
func NewDeviceState(deviceID uuid.UUID, values Payload, at time.Time) *DeviceState {
	v := values.Clone()
	if v == nil {
		v = Payload{}
	}
	return &DeviceState{DeviceID: deviceID, LastUpdate: at, Values: v}
}

// Merge overwrites the supplied keys, keeps every other key and sets
// LastUpdate to at. An empty values map still refreshes LastUpdate.
func (s *DeviceState) Merge(values Payload, at time.Time) {
	if s.Values == nil {
		s.Values = make(Payload, len(values))
	}
	for k, v := range values {
		s.Values[k] = v
	}
	s.LastUpdate = at
}

// Clone returns a deep copy of the state.
func (s *DeviceState) Clone() *DeviceState {
	if s == nil {
		return nil
	}
	out := *s
	out.Values = s.Values.Clone()
	return &out
}
