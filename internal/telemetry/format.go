package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format identifies the wire encoding of a capability payload.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
)

// Codec decodes raw payload bytes into generic field values and encodes
// validated payloads back to bytes.
type Codec interface {
	// Decode parses raw bytes into field → generic value. The generic values
	// are converted to Value by the validation pipeline.
	Decode(raw []byte) (map[string]any, error)

	// Encode serialises a validated payload.
	Encode(p Payload) ([]byte, error)
}

// codecs is the closed set of formats the hub understands.
var codecs = map[Format]Codec{
	FormatJSON: jsonCodec{},
}

// ParseFormat converts a format name to a Format, ignoring case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := codecs[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// UnmarshalText decodes a format name case-insensitively.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Codec returns the codec registered for the format.
func (f Format) Codec() (Codec, error) {
	c, ok := codecs[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
	return c, nil
}

// Decode parses raw bytes with the format's codec.
func (f Format) Decode(raw []byte) (map[string]any, error) {
	c, err := f.Codec()
	if err != nil {
		return nil, err
	}
	return c.Decode(raw)
}

// DecodePayload decodes raw bytes and converts every field to a Value.
// It is the schema-free counterpart of Validate, used when re-reading
// payloads that were encoded by the hub itself.
func (f Format) DecodePayload(raw []byte) (Payload, error) {
	fields, err := f.Decode(raw)
	if err != nil {
		return nil, err
	}
	out := make(Payload, len(fields))
	for name, v := range fields {
		value, err := FromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrUnsupportedFormat, name, err)
		}
		out[name] = value
	}
	return out, nil
}

// Encode serialises a payload with the format's codec.
func (f Format) Encode(p Payload) ([]byte, error) {
	c, err := f.Codec()
	if err != nil {
		return nil, err
	}
	return c.Encode(p)
}

// jsonCodec reads and writes flat JSON objects.
type jsonCodec struct{}

func (jsonCodec) Decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrUnsupportedFormat)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrUnsupportedFormat)
	}
	return fields, nil
}

func (jsonCodec) Encode(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return data, nil
}
