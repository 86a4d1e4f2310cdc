package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validate checks raw bytes against the named capability of a device and
// builds a record with a fresh ID.
//
// A zero at is replaced with the current UTC time. Every rejection
// satisfies errors.Is(err, ErrValidation).
func Validate(kind Kind, device *Device, name string, raw []byte, at time.Time) (Record, error) {
	if device == nil {
		return Record{}, reject(ErrCapabilityNotFound, "", ErrCapabilityNotFound.Error())
	}

	capability, ok := device.Capability(kind, name)
	if !ok {
		return Record{}, reject(ErrCapabilityNotFound, "",
			fmt.Sprintf("%s: %s %q", ErrCapabilityNotFound, kind, name))
	}

	fields, err := capability.Format.Decode(raw)
	if err != nil {
		return Record{}, reject(ErrUnsupportedFormat, "", err.Error())
	}

	payload := make(Payload, len(fields))
	for field, v := range fields {
		value, err := FromJSON(v)
		if err != nil {
			return Record{}, reject(ErrUnsupportedValue, field,
				fmt.Sprintf("field %q: %s", field, err))
		}
		payload[field] = value
	}

	for _, field := range capability.Fields() {
		want := capability.Schema[field]
		value, ok := payload[field]
		if !ok {
			return Record{}, reject(ErrFieldNotFound, field,
				fmt.Sprintf("%s: %q", ErrFieldNotFound, field))
		}
		if value.Type() != want {
			return Record{}, reject(ErrInvalidFieldValue, field,
				fmt.Sprintf("%s, %s expected: %q", ErrInvalidFieldValue, want, field))
		}
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}

	return Record{
		ID:         uuid.New(),
		PhysicalID: device.PhysicalID,
		Name:       name,
		Timestamp:  at,
		Payload:    payload,
	}, nil
}

// ValidateEvent validates raw bytes against one of the device's events.
func ValidateEvent(device *Device, name string, raw []byte, at time.Time) (Event, error) {
	r, err := Validate(KindEvent, device, name, raw, at)
	return Event(r), err
}

// ValidateAction validates raw bytes against one of the device's actions.
func ValidateAction(device *Device, name string, raw []byte, at time.Time) (Action, error) {
	r, err := Validate(KindAction, device, name, raw, at)
	return Action(r), err
}

func reject(reason error, field, message string) *RejectError {
	return &RejectError{Reason: reason, Field: field, Message: message}
}
