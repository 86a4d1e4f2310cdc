package telemetry

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %q, %v, want json, nil", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseFormat(xml) error = %v, want %v", err, ErrUnsupportedFormat)
	}
}

func TestJSONCodec_Decode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "flat object", raw: `{"value":42,"unit":"c"}`},
		{name: "empty object", raw: `{}`},
		{name: "not json", raw: `value=42`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "trailing data", raw: `{} {}`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormatJSON.Decode([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("Decode(%q) error = %v, want %v", tt.raw, err, ErrUnsupportedFormat)
				}
				return
			}
			if err != nil {
				t.Errorf("Decode(%q) error = %v", tt.raw, err)
			}
		})
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	payloads := []Payload{
		{},
		{"value": NumberValue(1<<64 - 1)},
		{"name": StringValue("kitchen"), "on": BoolValue(true), "level": NumberValue(0)},
	}

	for _, p := range payloads {
		raw, err := FormatJSON.Encode(p)
		if err != nil {
			t.Fatalf("Encode(%v) error = %v", p, err)
		}
		got, err := FormatJSON.DecodePayload(raw)
		if err != nil {
			t.Fatalf("DecodePayload(%s) error = %v", raw, err)
		}
		if !got.Equal(p) {
			t.Errorf("round trip = %v, want %v", got, p)
		}
	}
}
