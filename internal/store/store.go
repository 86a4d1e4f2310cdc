package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Creator persists new entities.
// Returns ErrConflict if an entity with the same identity exists.
type Creator[T any] interface {
	Create(ctx context.Context, entity T) error
}

// Updater replaces stored entities.
// Returns ErrNotFound if the entity does not exist.
type Updater[T any] interface {
	Update(ctx context.Context, entity T) error
}

// Deleter removes entities by key.
// Returns ErrNotFound if the entity does not exist.
type Deleter[K any] interface {
	DeleteByID(ctx context.Context, id K) error
}

// DeviceGetter reads devices. Absent devices are returned as nil, nil.
type DeviceGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*telemetry.Device, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]*telemetry.Device, error)
	GetByPhysicalID(ctx context.Context, physicalID string) (*telemetry.Device, error)
}

// StateGetter reads device states. An absent state is returned as nil, nil.
type StateGetter interface {
	GetByDeviceID(ctx context.Context, deviceID uuid.UUID) (*telemetry.DeviceState, error)
}

// EventGetter lists the events recorded for a device.
type EventGetter interface {
	ListByDevice(ctx context.Context, physicalID string) ([]telemetry.Event, error)
}

// ActionGetter lists the actions addressed to a device.
//
// The pending bridge implements this by draining its queue, so calling it
// twice returns each action at most once.
type ActionGetter interface {
	ListByDevice(ctx context.Context, physicalID string) ([]telemetry.Action, error)
}

// DeviceBackends composes one backend per device capability.
type DeviceBackends struct {
	Create Creator[*telemetry.Device]
	Get    DeviceGetter
	Update Updater[*telemetry.Device]
	Delete Deleter[uuid.UUID]
}

// StateBackends composes one backend per device state capability.
type StateBackends struct {
	Create Creator[*telemetry.DeviceState]
	Get    StateGetter
	Update Updater[*telemetry.DeviceState]
	Delete Deleter[uuid.UUID]
}

// EventBackends composes the event capabilities.
type EventBackends struct {
	Create Creator[telemetry.Event]
	Get    EventGetter
}

// ActionBackends composes the action capabilities.
type ActionBackends struct {
	Create Creator[telemetry.Action]
	Get    ActionGetter
}

// Validate reports the first nil capability.
func (b DeviceBackends) Validate() error {
	switch {
	case b.Create == nil:
		return errMissing("device", "create")
	case b.Get == nil:
		return errMissing("device", "get")
	case b.Update == nil:
		return errMissing("device", "update")
	case b.Delete == nil:
		return errMissing("device", "delete")
	}
	return nil
}

// Validate reports the first nil capability.
func (b StateBackends) Validate() error {
	switch {
	case b.Create == nil:
		return errMissing("state", "create")
	case b.Get == nil:
		return errMissing("state", "get")
	case b.Update == nil:
		return errMissing("state", "update")
	case b.Delete == nil:
		return errMissing("state", "delete")
	}
	return nil
}

// Validate reports the first nil capability.
func (b EventBackends) Validate() error {
	switch {
	case b.Create == nil:
		return errMissing("event", "create")
	case b.Get == nil:
		return errMissing("event", "get")
	}
	return nil
}

// Validate reports the first nil capability.
func (b ActionBackends) Validate() error {
	switch {
	case b.Create == nil:
		return errMissing("action", "create")
	case b.Get == nil:
		return errMissing("action", "get")
	}
	return nil
}

func errMissing(entity, capability string) error {
	return fmt.Errorf("%w: %s %s", ErrNotConfigured, entity, capability)
}
