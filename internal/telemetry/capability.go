package telemetry

import (
	"fmt"
	"sort"
)

// Kind distinguishes the two capability families a device declares.
type Kind int

// Capability kinds.
const (
	KindEvent Kind = iota
	KindAction
)

// String returns "event" or "action".
func (k Kind) String() string {
	if k == KindAction {
		return "action"
	}
	return "event"
}

// Capability describes one named event or action: its wire format and the
// minimum set of typed fields its payload must carry.
//
// The JSON form matches the bus and storage representation:
//
//	{"format": "json", "payload": {"value": "number"}}
type Capability struct {
	Format Format               `json:"format"`
	Schema map[string]ValueType `json:"payload"`
}

// NewCapability returns a JSON capability with the given schema.
func NewCapability(schema map[string]ValueType) Capability {
	return Capability{Format: FormatJSON, Schema: schema}
}

// Clone returns a deep copy of the capability.
func (c Capability) Clone() Capability {
	out := Capability{Format: c.Format}
	if c.Schema != nil {
		out.Schema = make(map[string]ValueType, len(c.Schema))
		for k, v := range c.Schema {
			out.Schema[k] = v
		}
	}
	return out
}

// Fields returns the schema field names in sorted order.
func (c Capability) Fields() []string {
	names := make([]string, 0, len(c.Schema))
	for name := range c.Schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the format is known and every field has a known type.
func (c Capability) Validate() error {
	if _, err := c.Format.Codec(); err != nil {
		return err
	}
	for _, name := range c.Fields() {
		if name == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidDevice)
		}
		if _, err := ParseValueType(string(c.Schema[name])); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// Capabilities maps capability names to descriptors.
type Capabilities map[string]Capability

// Clone returns a deep copy of the map.
func (cs Capabilities) Clone() Capabilities {
	if cs == nil {
		return nil
	}
	out := make(Capabilities, len(cs))
	for name, c := range cs {
		out[name] = c.Clone()
	}
	return out
}
