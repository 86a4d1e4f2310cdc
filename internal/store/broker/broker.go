// Package broker implements the write capabilities by publishing envelopes
// to the message bus.
//
// Writes are fire-and-forget: a nil error means the transport accepted the
// message, not that any consumer applied it. Nothing here can read, so
// these writers are always paired with another backend's getters.
package broker

import (
	"context"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/bus"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Writer publishes entity changes on the configured topics.
type Writer struct {
	transport bus.Transport
	topics    mqtt.Topics
}

// New returns a Writer sending through transport.
func New(transport bus.Transport, topics mqtt.Topics) *Writer {
	return &Writer{transport: transport, topics: topics}
}

func (w *Writer) publish(ctx context.Context, topic string, action bus.ActionType, payload any) error {
	if err := ctx.Err(); err != nil {
		return store.Internal(err)
	}
	data, err := bus.Marshal(action, payload)
	if err != nil {
		return store.Internal(err)
	}
	if err := w.transport.Send(topic, data); err != nil {
		return store.Internalf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Devices returns the device write capabilities.
func (w *Writer) Devices() *DeviceWriter { return &DeviceWriter{w: w} }

// States returns the device state write capabilities.
func (w *Writer) States() *StateWriter { return &StateWriter{w: w} }

// Events returns the event create capability.
func (w *Writer) Events() *EventWriter { return &EventWriter{w: w} }

// Actions returns the action create capability.
func (w *Writer) Actions() *ActionWriter { return &ActionWriter{w: w} }

// DeviceWriter publishes device changes.
type DeviceWriter struct{ w *Writer }

func (d *DeviceWriter) send(ctx context.Context, action bus.ActionType, device *telemetry.Device) error {
	payload, err := bus.FromDevice(device)
	if err != nil {
		return store.Internal(err)
	}
	return d.w.publish(ctx, d.w.topics.Devices(), action, payload)
}

// Create publishes a Create envelope.
func (d *DeviceWriter) Create(ctx context.Context, device *telemetry.Device) error {
	return d.send(ctx, bus.Create, device)
}

// Update publishes an Update envelope.
func (d *DeviceWriter) Update(ctx context.Context, device *telemetry.Device) error {
	return d.send(ctx, bus.Update, device)
}

// DeleteByID publishes a Delete envelope.
func (d *DeviceWriter) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return d.w.publish(ctx, d.w.topics.Devices(), bus.Delete, bus.DeletePayload{ID: id.String()})
}

// StateWriter publishes device state changes.
type StateWriter struct{ w *Writer }

// Create publishes a Create envelope.
func (s *StateWriter) Create(ctx context.Context, state *telemetry.DeviceState) error {
	return s.w.publish(ctx, s.w.topics.DeviceStates(), bus.Create, bus.FromState(state))
}

// Update publishes an Update envelope.
func (s *StateWriter) Update(ctx context.Context, state *telemetry.DeviceState) error {
	return s.w.publish(ctx, s.w.topics.DeviceStates(), bus.Update, bus.FromState(state))
}

// DeleteByID publishes a Delete envelope.
func (s *StateWriter) DeleteByID(ctx context.Context, deviceID uuid.UUID) error {
	return s.w.publish(ctx, s.w.topics.DeviceStates(), bus.Delete,
		bus.StateDeletePayload{DeviceID: deviceID.String()})
}

// EventWriter publishes events.
type EventWriter struct{ w *Writer }

// Create publishes a Create envelope on the event topic.
func (e *EventWriter) Create(ctx context.Context, event telemetry.Event) error {
	payload, err := bus.FromEvent(event)
	if err != nil {
		return store.Internal(err)
	}
	return e.w.publish(ctx, e.w.topics.Events(), bus.Create, payload)
}

// ActionWriter publishes actions on the per-device action topic.
type ActionWriter struct{ w *Writer }

// Create publishes a Create envelope on {action_topic}/{physical_id}.
func (a *ActionWriter) Create(ctx context.Context, action telemetry.Action) error {
	payload, err := bus.FromAction(action)
	if err != nil {
		return store.Internal(err)
	}
	return a.w.publish(ctx, a.w.topics.Action(action.PhysicalID), bus.Create, payload)
}

var (
	_ store.Creator[*telemetry.Device]      = (*DeviceWriter)(nil)
	_ store.Updater[*telemetry.Device]      = (*DeviceWriter)(nil)
	_ store.Deleter[uuid.UUID]              = (*DeviceWriter)(nil)
	_ store.Creator[*telemetry.DeviceState] = (*StateWriter)(nil)
	_ store.Updater[*telemetry.DeviceState] = (*StateWriter)(nil)
	_ store.Deleter[uuid.UUID]              = (*StateWriter)(nil)
	_ store.Creator[telemetry.Event]        = (*EventWriter)(nil)
	_ store.Creator[telemetry.Action]       = (*ActionWriter)(nil)
)
