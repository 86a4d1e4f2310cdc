package bus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(Delete, DeletePayload{ID: "abc"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("envelope is not JSON: %v", err)
	}
	if raw["action_type"] != "Delete" {
		t.Errorf("action_type = %v, want Delete", raw["action_type"])
	}

	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	var p DeletePayload
	if err := env.Decode(&p); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.ID != "abc" {
		t.Errorf("ID = %q, want abc", p.ID)
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"unknown action", `{"action_type":"Upsert","payload":{}}`},
		{"lower case action", `{"action_type":"create","payload":{}}`},
		{"missing payload", `{"action_type":"Create"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Unmarshal() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDevicePayload(t *testing.T) {
	device := telemetry.NewDevice("thermo-01", uuid.New(), "Thermostat",
		telemetry.Capabilities{"reading": telemetry.NewCapability(map[string]telemetry.ValueType{
			"temperature": telemetry.TypeNumber,
		})},
		nil,
	)

	p, err := FromDevice(device)
	if err != nil {
		t.Fatalf("FromDevice() error = %v", err)
	}
	if p.Actions != "{}" {
		t.Errorf("Actions = %q, want {}", p.Actions)
	}

	var events map[string]map[string]any
	if err := json.Unmarshal([]byte(p.Events), &events); err != nil {
		t.Fatalf("events string is not JSON: %v", err)
	}
	if events["reading"]["format"] != "json" {
		t.Errorf("events = %v, want reading with json format", events)
	}

	back, err := p.Device()
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if back.ID != device.ID || back.UserID != device.UserID || back.PhysicalID != "thermo-01" {
		t.Errorf("Device() = %+v, want identity of %+v", back, device)
	}
	if back.Events["reading"].Schema["temperature"] != telemetry.TypeNumber {
		t.Errorf("Events = %+v", back.Events)
	}
}

func TestDevicePayload_Invalid(t *testing.T) {
	valid := DevicePayload{ID: uuid.NewString(), UserID: uuid.NewString(), Events: "{}", Actions: "{}"}

	tests := []struct {
		name   string
		modify func(*DevicePayload)
	}{
		{"bad id", func(p *DevicePayload) { p.ID = "nope" }},
		{"bad user", func(p *DevicePayload) { p.UserID = "" }},
		{"bad events", func(p *DevicePayload) { p.Events = "[" }},
		{"unknown format", func(p *DevicePayload) { p.Actions = `{"a":{"format":"xml","payload":{}}}` }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.modify(&p)
			if _, err := p.Device(); !errors.Is(err, ErrMalformed) {
				t.Errorf("Device() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEventPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := telemetry.Event{
		ID:         uuid.New(),
		PhysicalID: "thermo-01",
		Name:       "reading",
		Timestamp:  at,
		Payload:    telemetry.Payload{"temperature": telemetry.NumberValue(21)},
	}

	p, err := FromEvent(e)
	if err != nil {
		t.Fatalf("FromEvent() error = %v", err)
	}
	if p.Data != `{"temperature":21}` {
		t.Errorf("Data = %q", p.Data)
	}
	if p.Timestamp != "2026-03-01T09:00:00Z" {
		t.Errorf("Timestamp = %q", p.Timestamp)
	}
	got, err := p.Time()
	if err != nil || !got.Equal(at) {
		t.Errorf("Time() = %v, %v; want %v", got, err, at)
	}
}

func TestActionPayload(t *testing.T) {
	a := telemetry.Action{
		ID:         uuid.New(),
		PhysicalID: "thermo-01",
		Name:       "set",
		Timestamp:  time.Date(2026, 3, 1, 9, 0, 0, 500, time.UTC),
		Payload:    telemetry.Payload{"target": telemetry.NumberValue(19), "mode": telemetry.StringValue("eco")},
	}

	p, err := FromAction(a)
	if err != nil {
		t.Fatalf("FromAction() error = %v", err)
	}
	if p.DeviceID != "thermo-01" {
		t.Errorf("DeviceID = %q, want physical id", p.DeviceID)
	}

	back, err := p.Action()
	if err != nil {
		t.Fatalf("Action() error = %v", err)
	}
	if !back.Timestamp.Equal(a.Timestamp) || back.Name != "set" || !back.Payload.Equal(a.Payload) {
		t.Errorf("Action() = %+v, want %+v", back, a)
	}

	p.Data = "[1]"
	if _, err := p.Action(); !errors.Is(err, ErrMalformed) {
		t.Errorf("Action() with bad data error = %v, want ErrMalformed", err)
	}
}

func TestStatePayload(t *testing.T) {
	state := telemetry.NewDeviceState(uuid.New(),
		telemetry.Payload{"on": telemetry.BoolValue(true)},
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	data, err := Marshal(Update, FromState(state))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	var p StatePayload
	if err := env.Decode(&p); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	back, err := p.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if back.DeviceID != state.DeviceID || !back.Values.Equal(state.Values) || !back.LastUpdate.Equal(state.LastUpdate) {
		t.Errorf("State() = %+v, want %+v", back, state)
	}
}

func TestStatePayload_RejectsNonScalar(t *testing.T) {
	env, err := Unmarshal([]byte(`{"action_type":"Create","payload":{"device_id":"` +
		uuid.NewString() + `","last_update":"","values":{"a":[1]}}}`))
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	var p StatePayload
	if err := env.Decode(&p); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decode() error = %v, want ErrMalformed", err)
	}
}
