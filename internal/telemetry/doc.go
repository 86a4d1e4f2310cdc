// Package telemetry holds the domain model of the hub: devices and the
// capabilities they declare, the scalar value model, payload codecs and the
// validation pipeline that turns raw bytes into typed event and action records.
//
// # Capabilities
//
// A device declares named events (things it emits) and actions (things it
// accepts). Each capability pairs a wire Format with a schema mapping field
// names to a ValueType:
//
//	"temp": {"format": "json", "payload": {"value": "number"}}
//
// # Validation
//
// Validate runs the same algorithm for events and actions:
//
//  1. Look up the capability by name on the device
//  2. Decode the raw bytes with the capability's format
//  3. Check every schema field is present with the declared type
//  4. Carry any extra fields through unchanged
//  5. Stamp the record with a fresh id and timestamp
//
// Every rejection wraps ErrValidation so callers can classify it with
// errors.Is without inspecting the message.
//
// # Thread Safety
//
// Types in this package are plain values. Device and DeviceState are not
// safe for concurrent mutation; use Clone to hand copies across goroutines.
package telemetry
