// Package bus defines the message-bus wire format shared by the bus writer
// backends and the bus consumer.
//
// Every message is an envelope:
//
//	{"action_type": "Create", "payload": {...}}
//
// Device capability maps travel as JSON strings and event and action
// payloads as their encoded bytes in a string field, so the envelope
// itself stays flat.
package bus
