package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseValueType(t *testing.T) {
	tests := []struct {
		input   string
		want    ValueType
		wantErr error
	}{
		{input: "string", want: TypeString},
		{input: "NUMBER", want: TypeNumber},
		{input: "Boolean", want: TypeBoolean},
		{input: "float", wantErr: ErrUnknownType},
		{input: "", wantErr: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseValueType(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseValueType(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValueType(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseValueType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     ValueType
		raw     string
		want    Value
		wantErr error
	}{
		{name: "string", typ: TypeString, raw: "hello", want: StringValue("hello")},
		{name: "number", typ: TypeNumber, raw: "42", want: NumberValue(42)},
		{name: "number max", typ: TypeNumber, raw: "18446744073709551615", want: NumberValue(1<<64 - 1)},
		{name: "number negative", typ: TypeNumber, raw: "-1", wantErr: ErrInvalidNumber},
		{name: "number text", typ: TypeNumber, raw: "abc", wantErr: ErrInvalidNumber},
		{name: "bool true", typ: TypeBoolean, raw: "TRUE", want: BoolValue(true)},
		{name: "bool one", typ: TypeBoolean, raw: "1", want: BoolValue(true)},
		{name: "bool zero", typ: TypeBoolean, raw: "0", want: BoolValue(false)},
		{name: "bool yes", typ: TypeBoolean, raw: "yes", wantErr: ErrInvalidBoolean},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.typ, tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseValue(%s, %q) error = %v, want %v", tt.typ, tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValue(%s, %q) error = %v", tt.typ, tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseValue(%s, %q) = %v, want %v", tt.typ, tt.raw, got, tt.want)
			}
		})
	}
}

func TestInferValue(t *testing.T) {
	tests := []struct {
		raw  string
		want Value
	}{
		{raw: "17", want: NumberValue(17)},
		{raw: "true", want: BoolValue(true)},
		{raw: "1", want: NumberValue(1)},
		{raw: "-3", want: StringValue("-3")},
		{raw: "on", want: StringValue("on")},
	}

	for _, tt := range tests {
		if got := InferValue(tt.raw); !got.Equal(tt.want) {
			t.Errorf("InferValue(%q) = %v (%s), want %v (%s)", tt.raw, got, got.Type(), tt.want, tt.want.Type())
		}
	}
}

func TestFromJSON_Rejects(t *testing.T) {
	inputs := []any{
		nil,
		[]any{1},
		map[string]any{"a": 1},
		json.Number("-1"),
		json.Number("1.5"),
		-2.0,
		3.25,
	}

	for _, in := range inputs {
		if _, err := FromJSON(in); !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("FromJSON(%#v) error = %v, want %v", in, err, ErrUnsupportedValue)
		}
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	p := Payload{
		"s": StringValue("x"),
		"n": NumberValue(7),
		"b": BoolValue(false),
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"b":false,"n":7,"s":"x"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Payload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("Unmarshal() = %v, want %v", back, p)
	}
}

func TestValue_ZeroIsEmptyString(t *testing.T) {
	var v Value
	if v.Type() != TypeString {
		t.Errorf("zero Value type = %s, want string", v.Type())
	}
	if !v.Equal(StringValue("")) {
		t.Error("zero Value should equal StringValue(\"\")")
	}
}
