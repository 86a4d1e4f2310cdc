package telemetry

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Device is a registered physical device and the capabilities it declares.
//
// ID is generated by the hub; PhysicalID is the identity used by field
// protocols (MQTT topics, serial lines) and must be unique across devices.
type Device struct {
	ID         uuid.UUID    `json:"id"`
	PhysicalID string       `json:"physical_id"`
	UserID     uuid.UUID    `json:"user_id"`
	Name       string       `json:"name"`
	Events     Capabilities `json:"events"`
	Actions    Capabilities `json:"actions"`
}

// NewDevice returns a device with a freshly generated ID.
func NewDevice(physicalID string, userID uuid.UUID, name string, events, actions Capabilities) *Device {
	if events == nil {
		events = Capabilities{}
	}
	if actions == nil {
		actions = Capabilities{}
	}
	return &Device{
		ID:         uuid.New(),
		PhysicalID: physicalID,
		UserID:     userID,
		Name:       name,
		Events:     events,
		Actions:    actions,
	}
}

// Capability looks up a named event or action.
func (d *Device) Capability(kind Kind, name string) (Capability, bool) {
	set := d.Events
	if kind == KindAction {
		set = d.Actions
	}
	c, ok := set[name]
	return c, ok
}

// Validate checks identity fields and every declared capability.
func (d *Device) Validate() error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.PhysicalID) == "" {
		return fmt.Errorf("%w: physical_id is required", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	for name, c := range d.Events {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: event %q: %w", ErrInvalidDevice, name, err)
		}
	}
	for name, c := range d.Actions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: action %q: %w", ErrInvalidDevice, name, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	out := *d
	out.Events = d.Events.Clone()
	out.Actions = d.Actions.Clone()
	return &out
}
