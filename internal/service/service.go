package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Logger is the logging interface used by the services.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventObserver is notified after an event has been stored.
type EventObserver interface {
	EventRecorded(ctx context.Context, device *telemetry.Device, event telemetry.Event)
}

// StateObserver is notified after a device state has been written.
type StateObserver interface {
	StateChanged(ctx context.Context, state *telemetry.DeviceState)
}

// Backends is the full storage composition the services run on.
type Backends struct {
	Devices store.DeviceBackends
	States  store.StateBackends
	Events  store.EventBackends
	Actions store.ActionBackends
}

// Validate reports every empty capability slot.
func (b Backends) Validate() error {
	return errors.Join(
		b.Devices.Validate(),
		b.States.Validate(),
		b.Events.Validate(),
		b.Actions.Validate(),
	)
}

// Services groups the four entity services.
type Services struct {
	Devices *DeviceService
	States  *StateService
	Events  *EventService
	Actions *ActionService
}

// New builds the services. Every capability slot must be filled.
func New(b Backends) (*Services, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("composing services: %w", err)
	}
	states := NewStateService(b.States)
	return &Services{
		Devices: NewDeviceService(b.Devices),
		States:  states,
		Events:  NewEventService(b.Devices.Get, b.Events, states),
		Actions: NewActionService(b.Devices.Get, b.Actions),
	}, nil
}

// SetLogger sets the logger on every service.
func (s *Services) SetLogger(logger Logger) {
	s.Devices.SetLogger(logger)
	s.States.SetLogger(logger)
	s.Events.SetLogger(logger)
	s.Actions.SetLogger(logger)
}
