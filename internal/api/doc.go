// Package api implements the HTTP REST API and WebSocket stream of the
// telemetry hub.
//
// It provides:
//   - device registration, lookup, update and deletion
//   - device state reads and writes
//   - event and action ingestion with raw bodies validated against the
//     device's declared schema
//   - action pulls that drain the pending queue of a device
//   - a WebSocket hub broadcasting stored events and state changes
//
// The device, device_states and events routes are also what a peer hub's
// HTTP backend calls, so their request and response bodies are the plain
// JSON forms of the telemetry types. Lists are wrapped with a count:
//
//	{"devices": [...], "count": 2}
//
// Errors are always an Error body with the HTTP status repeated in it.
package api
