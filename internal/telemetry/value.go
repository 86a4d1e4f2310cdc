package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the declared scalar type of a payload field.
type ValueType string

// Supported value types.
const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
)

// ParseValueType converts a type name to a ValueType, ignoring case.
//
// Returns ErrUnknownType for anything other than string, number or boolean.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return TypeString, nil
	case "number":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// String returns the canonical lower-case type name.
func (t ValueType) String() string {
	return string(t)
}

// UnmarshalText lets schemas decode type names case-insensitively.
func (t *ValueType) UnmarshalText(text []byte) error {
	parsed, err := ParseValueType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value is a validated scalar: a string, an unsigned 64-bit number or a boolean.
//
// The zero Value is an empty string.
type Value struct {
	typ ValueType
	str string
	num uint64
	b   bool
}

// StringValue returns a string Value.
func StringValue(s string) Value {
	return Value{typ: TypeString, str: s}
}

// NumberValue returns a number Value.
func NumberValue(n uint64) Value {
	return Value{typ: TypeNumber, num: n}
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value {
	return Value{typ: TypeBoolean, b: b}
}

// Type returns the variant of the value.
func (v Value) Type() ValueType {
	if v.typ == "" {
		return TypeString
	}
	return v.typ
}

// Str returns the string content and whether the value is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.Type() == TypeString
}

// Number returns the numeric content and whether the value is a number.
func (v Value) Number() (uint64, bool) {
	return v.num, v.typ == TypeNumber
}

// Bool returns the boolean content and whether the value is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.typ == TypeBoolean
}

// Native returns the value as a Go string, uint64 or bool.
func (v Value) Native() any {
	switch v.typ {
	case TypeNumber:
		return v.num
	case TypeBoolean:
		return v.b
	default:
		return v.str
	}
}

// String renders the value as text, the same text ParseValue accepts.
func (v Value) String() string {
	switch v.typ {
	case TypeNumber:
		return strconv.FormatUint(v.num, 10)
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Equal reports whether both values have the same type and content.
func (v Value) Equal(other Value) bool {
	return v.Type() == other.Type() && v.Native() == other.Native()
}

// MarshalJSON encodes the value as its native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes a JSON scalar. Numbers must be non-negative integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}

	parsed, err := FromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue parses raw text against a declared type.
//
// Rules:
//   - string accepts any text
//   - number requires an unsigned 64-bit decimal (ErrInvalidNumber otherwise)
//   - boolean accepts true/1 and false/0, ignoring case (ErrInvalidBoolean otherwise)
func ParseValue(t ValueType, raw string) (Value, error) {
	switch t {
	case TypeString:
		return StringValue(raw), nil
	case TypeNumber:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
		return NumberValue(n), nil
	case TypeBoolean:
		b, ok := parseBool(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidBoolean, raw)
		}
		return BoolValue(b), nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
}

// InferValue builds a Value from text without a declared type.
//
// It tries an unsigned integer first, then a boolean, and falls back to a
// string. Only schema-free ingestion paths (raw serial lines) use it.
func InferValue(raw string) Value {
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return NumberValue(n)
	}
	if b, ok := parseBool(raw); ok {
		return BoolValue(b)
	}
	return StringValue(raw)
}

func parseBool(raw string) (value bool, ok bool) {
	switch strings.ToLower(raw) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// FromJSON converts a generically decoded JSON value into a Value.
//
// Strings and booleans map directly. Numbers must be non-negative integers
// that fit in 64 bits. Arrays, objects and null return ErrUnsupportedValue.
func FromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case json.Number:
		n, err := strconv.ParseUint(x.String(), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %s is not a non-negative integer", ErrUnsupportedValue, x)
		}
		return NumberValue(n), nil
	case float64:
		if x < 0 || x != math.Trunc(x) || x >= math.MaxUint64 {
			return Value{}, fmt.Errorf("%w: number %v is not a non-negative integer", ErrUnsupportedValue, x)
		}
		return NumberValue(uint64(x)), nil
	case nil:
		return Value{}, fmt.Errorf("%w: null", ErrUnsupportedValue)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// Payload maps field names to validated values.
type Payload map[string]Value

// Clone returns a copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Equal reports whether both payloads hold the same fields and values.
func (p Payload) Equal(other Payload) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		o, ok := other[k]
		if !ok || !o.Equal(v) {
			return false
		}
	}
	return true
}
