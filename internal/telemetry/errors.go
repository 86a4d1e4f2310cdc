package telemetry

import "errors"

// Value model and codec errors.
var (
	// ErrUnknownType is returned when a type name is not string, number or boolean.
	ErrUnknownType = errors.New("telemetry: unknown value type")

	// ErrInvalidNumber is returned when text is not an unsigned 64-bit decimal.
	ErrInvalidNumber = errors.New("telemetry: invalid number")

	// ErrInvalidBoolean is returned when text is not one of true/false/1/0.
	ErrInvalidBoolean = errors.New("telemetry: invalid boolean")

	// ErrUnsupportedValue is returned when a decoded value is not a scalar
	// that fits the value model (arrays, objects, null, negative or
	// fractional numbers).
	ErrUnsupportedValue = errors.New("telemetry: unsupported value")

	// ErrUnsupportedFormat is returned when a payload cannot be decoded or
	// encoded by its declared format, or the format itself is unknown.
	ErrUnsupportedFormat = errors.New("telemetry: unsupported format")

	// ErrInvalidDevice is returned when a device fails structural checks.
	ErrInvalidDevice = errors.New("telemetry: invalid device")
)

// Validation rejections. All of them also match ErrValidation.
var (
	ErrValidation = errors.New("telemetry: validation failed")

	ErrCapabilityNotFound = errors.New("capability not found for device")
	ErrFieldNotFound      = errors.New("field not found in payload")
	ErrInvalidFieldValue  = errors.New("invalid value for field")
)

// RejectError describes why a payload was rejected by the validation pipeline.
//
// Reason is one of the validation sentinels or ErrUnsupportedFormat; Field is
// set when the rejection concerns a single payload field.
type RejectError struct {
	Reason  error
	Field   string
	Message string
}

func (e *RejectError) Error() string {
	return e.Message
}

func (e *RejectError) Unwrap() error {
	return e.Reason
}

// Is reports whether target is ErrValidation; other sentinels match via Unwrap.
func (e *RejectError) Is(target error) bool {
	return target == ErrValidation
}
