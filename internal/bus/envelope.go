package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// ErrMalformed is returned when a message cannot be decoded.
var ErrMalformed = errors.New("bus: malformed message")

// ActionType is the operation an envelope carries.
type ActionType string

// Envelope operations.
const (
	Create ActionType = "Create"
	Update ActionType = "Update"
	Delete ActionType = "Delete"
)

// Envelope wraps every bus message.
type Envelope struct {
	ActionType ActionType      `json:"action_type"`
	Payload    json.RawMessage `json:"payload"`
}

// TimeLayout is the timestamp format on the wire.
const TimeLayout = time.RFC3339Nano

// DevicePayload is a device create or update.
type DevicePayload struct {
	ID         string `json:"id"`
	PhysicalID string `json:"physical_id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Events     string `json:"events"`
	Actions    string `json:"actions"`
}

// DeletePayload names the entity to delete.
type DeletePayload struct {
	ID string `json:"id"`
}

// EventPayload is an event create.
type EventPayload struct {
	PhysicalID string `json:"device_physical_id"`
	Name       string `json:"device_event_name"`
	Timestamp  string `json:"timestamp"`
	Data       string `json:"event_data"`
}

// ActionPayload is an action create. DeviceID holds the physical id.
type ActionPayload struct {
	DeviceID  string `json:"device_id"`
	Name      string `json:"device_action_name"`
	Timestamp string `json:"timestamp"`
	Data      string `json:"action_data"`
}

// StatePayload is a device state create or update.
type StatePayload struct {
	DeviceID   string                     `json:"device_id"`
	LastUpdate string                     `json:"last_update"`
	Values     map[string]telemetry.Value `json:"values"`
}

// StateDeletePayload names the state to delete.
type StateDeletePayload struct {
	DeviceID string `json:"device_id"`
}

// Marshal wraps payload in an envelope.
func Marshal(action ActionType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", action, err)
	}
	return json.Marshal(Envelope{ActionType: action, Payload: raw})
}

// Unmarshal decodes an envelope and checks its action type.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	switch env.ActionType {
	case Create, Update, Delete:
	default:
		return Envelope{}, fmt.Errorf("%w: unknown action_type %q", ErrMalformed, env.ActionType)
	}
	if len(env.Payload) == 0 {
		return Envelope{}, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	return env, nil
}

// Decode unmarshals the envelope payload into dst.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrMalformed, e.ActionType, err)
	}
	return nil
}

// FromDevice builds the wire form of a device.
func FromDevice(d *telemetry.Device) (DevicePayload, error) {
	events, err := json.Marshal(nonNil(d.Events))
	if err != nil {
		return DevicePayload{}, fmt.Errorf("encoding events: %w", err)
	}
	actions, err := json.Marshal(nonNil(d.Actions))
	if err != nil {
		return DevicePayload{}, fmt.Errorf("encoding actions: %w", err)
	}
	return DevicePayload{
		ID:         d.ID.String(),
		PhysicalID: d.PhysicalID,
		UserID:     d.UserID.String(),
		Name:       d.Name,
		Events:     string(events),
		Actions:    string(actions),
	}, nil
}

func nonNil(c telemetry.Capabilities) telemetry.Capabilities {
	if c == nil {
		return telemetry.Capabilities{}
	}
	return c
}

// Device converts the wire form back to a device.
func (p DevicePayload) Device() (*telemetry.Device, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: device id: %w", ErrMalformed, err)
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id: %w", ErrMalformed, err)
	}
	events, err := decodeCapabilities(p.Events)
	if err != nil {
		return nil, fmt.Errorf("%w: events: %w", ErrMalformed, err)
	}
	actions, err := decodeCapabilities(p.Actions)
	if err != nil {
		return nil, fmt.Errorf("%w: actions: %w", ErrMalformed, err)
	}
	return &telemetry.Device{
		ID:         id,
		PhysicalID: p.PhysicalID,
		UserID:     userID,
		Name:       p.Name,
		Events:     events,
		Actions:    actions,
	}, nil
}

func decodeCapabilities(s string) (telemetry.Capabilities, error) {
	caps := telemetry.Capabilities{}
	if s == "" {
		return caps, nil
	}
	if err := json.Unmarshal([]byte(s), &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// FromEvent builds the wire form of an event.
func FromEvent(e telemetry.Event) (EventPayload, error) {
	data, err := telemetry.FormatJSON.Encode(e.Payload)
	if err != nil {
		return EventPayload{}, err
	}
	return EventPayload{
		PhysicalID: e.PhysicalID,
		Name:       e.Name,
		Timestamp:  e.Timestamp.UTC().Format(TimeLayout),
		Data:       string(data),
	}, nil
}

// Time parses the event timestamp. An empty timestamp yields the zero time.
func (p EventPayload) Time() (time.Time, error) {
	return parseTime(p.Timestamp)
}

// FromAction builds the wire form of an action.
func FromAction(a telemetry.Action) (ActionPayload, error) {
	data, err := telemetry.FormatJSON.Encode(a.Payload)
	if err != nil {
		return ActionPayload{}, err
	}
	return ActionPayload{
		DeviceID:  a.PhysicalID,
		Name:      a.Name,
		Timestamp: a.Timestamp.UTC().Format(TimeLayout),
		Data:      string(data),
	}, nil
}

// Action decodes the wire form into an action with a fresh id.
func (p ActionPayload) Action() (telemetry.Action, error) {
	at, err := parseTime(p.Timestamp)
	if err != nil {
		return telemetry.Action{}, err
	}
	payload, err := telemetry.FormatJSON.DecodePayload([]byte(p.Data))
	if err != nil {
		return telemetry.Action{}, fmt.Errorf("%w: action_data: %w", ErrMalformed, err)
	}
	return telemetry.Action{
		ID:         uuid.New(),
		PhysicalID: p.DeviceID,
		Name:       p.Name,
		Timestamp:  at,
		Payload:    payload,
	}, nil
}

// FromState builds the wire form of a device state.
func FromState(s *telemetry.DeviceState) StatePayload {
	values := make(map[string]telemetry.Value, len(s.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	return StatePayload{
		DeviceID:   s.DeviceID.String(),
		LastUpdate: s.LastUpdate.UTC().Format(TimeLayout),
		Values:     values,
	}
}

// State converts the wire form back to a device state.
func (p StatePayload) State() (*telemetry.DeviceState, error) {
	id, err := uuid.Parse(p.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: device id: %w", ErrMalformed, err)
	}
	at, err := parseTime(p.LastUpdate)
	if err != nil {
		return nil, err
	}
	return telemetry.NewDeviceState(id, telemetry.Payload(p.Values), at), nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
	}
	return t, nil
}
