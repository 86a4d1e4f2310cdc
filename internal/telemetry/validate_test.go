package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testDevice() *Device {
	return NewDevice("sensor-1", uuid.New(), "Kitchen sensor",
		Capabilities{"temp": NewCapability(map[string]ValueType{"value": TypeNumber})},
		Capabilities{"set": NewCapability(map[string]ValueType{"on": TypeBoolean})},
	)
}

func TestValidateEvent(t *testing.T) {
	d := testDevice()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		event      string
		raw        string
		wantReason error
		wantMsg    string
	}{
		{name: "valid", event: "temp", raw: `{"value":42}`},
		{name: "extra fields", event: "temp", raw: `{"value":42,"unit":"c"}`},
		{name: "unknown capability", event: "humidity", raw: `{"value":42}`, wantReason: ErrCapabilityNotFound, wantMsg: "capability not found for device"},
		{name: "missing field", event: "temp", raw: `{}`, wantReason: ErrFieldNotFound, wantMsg: "field not found in payload"},
		{name: "wrong type", event: "temp", raw: `{"value":"hot"}`, wantReason: ErrInvalidFieldValue, wantMsg: "invalid value for field, number expected"},
		{name: "boolean for number", event: "temp", raw: `{"value":true}`, wantReason: ErrInvalidFieldValue, wantMsg: "invalid value for field, number expected"},
		{name: "negative number", event: "temp", raw: `{"value":-1}`, wantReason: ErrUnsupportedValue},
		{name: "bad json", event: "temp", raw: `{`, wantReason: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ValidateEvent(d, tt.event, []byte(tt.raw), at)
			if tt.wantReason != nil {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error = %v, want ErrValidation", err)
				}
				if !errors.Is(err, tt.wantReason) {
					t.Errorf("error = %v, want %v", err, tt.wantReason)
				}
				if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateEvent() error = %v", err)
			}
			if ev.ID == uuid.Nil {
				t.Error("event ID not generated")
			}
			if ev.PhysicalID != "sensor-1" || ev.Name != tt.event {
				t.Errorf("event = %s/%s, want sensor-1/%s", ev.PhysicalID, ev.Name, tt.event)
			}
			if !ev.Timestamp.Equal(at) {
				t.Errorf("Timestamp = %v, want %v", ev.Timestamp, at)
			}
			if n, ok := ev.Payload["value"].Number(); !ok || n != 42 {
				t.Errorf("Payload[value] = %v, want 42", ev.Payload["value"])
			}
		})
	}
}

func TestValidateEvent_CarriesExtraFields(t *testing.T) {
	ev, err := ValidateEvent(testDevice(), "temp", []byte(`{"value":1,"unit":"c"}`), time.Time{})
	if err != nil {
		t.Fatalf("ValidateEvent() error = %v", err)
	}
	if s, _ := ev.Payload["unit"].Str(); s != "c" {
		t.Errorf("Payload[unit] = %v, want c", ev.Payload["unit"])
	}
	if ev.Timestamp.IsZero() {
		t.Error("zero timestamp should be replaced with now")
	}
}

func TestValidateAction_UsesActionSchema(t *testing.T) {
	d := testDevice()

	if _, err := ValidateAction(d, "set", []byte(`{"on":true}`), time.Now()); err != nil {
		t.Errorf("ValidateAction(set) error = %v", err)
	}
	// "temp" is an event, not an action.
	if _, err := ValidateAction(d, "temp", []byte(`{"value":1}`), time.Now()); !errors.Is(err, ErrCapabilityNotFound) {
		t.Errorf("ValidateAction(temp) error = %v, want %v", err, ErrCapabilityNotFound)
	}
	if _, err := ValidateAction(d, "set", []byte(`{"on":1}`), time.Now()); !errors.Is(err, ErrInvalidFieldValue) {
		t.Errorf("ValidateAction(number for boolean) error = %v, want %v", err, ErrInvalidFieldValue)
	}
}

func TestRecord_SameRecordIgnoresPayload(t *testing.T) {
	at := time.Now()
	a := Event{ID: uuid.New(), Name: "temp", Timestamp: at, Payload: Payload{"value": NumberValue(1)}}
	b := a
	b.Payload = Payload{"value": NumberValue(2)}

	if !a.SameRecord(b) {
		t.Error("records differing only in payload should be the same record")
	}
	b.Name = "other"
	if a.SameRecord(b) {
		t.Error("records with different names should differ")
	}
}

func TestDevice_Validate(t *testing.T) {
	d := testDevice()
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := d.Clone()
	bad.PhysicalID = " "
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("Validate() error = %v, want %v", err, ErrInvalidDevice)
	}

	bad = d.Clone()
	bad.Events["temp"] = Capability{Format: FormatJSON, Schema: map[string]ValueType{"value": "float"}}
	if err := bad.Validate(); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Validate() error = %v, want %v", err, ErrUnknownType)
	}
	if _, ok := d.Events["temp"].Schema["value"]; !ok || d.Events["temp"].Schema["value"] != TypeNumber {
		t.Error("Clone() shared the schema map with the original")
	}
}
