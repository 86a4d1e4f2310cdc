package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// ActionService validates actions for devices and hands them to the action
// backend, which forwards or queues them.
type ActionService struct {
	devices  store.DeviceGetter
	backends store.ActionBackends
	logger   Logger
}

// NewActionService returns a service over the given backends.
func NewActionService(devices store.DeviceGetter, b store.ActionBackends) *ActionService {
	return &ActionService{devices: devices, backends: b, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (s *ActionService) SetLogger(logger Logger) {
	s.logger = logger
}

// Submit validates raw against the device's action schema and creates the
// action. A zero at means now.
func (s *ActionService) Submit(ctx context.Context, physicalID, name string, raw []byte, at time.Time) (telemetry.Action, error) {
	d, err := s.devices.GetByPhysicalID(ctx, physicalID)
	if err != nil {
		return telemetry.Action{}, translate(opRead, err)
	}
	if d == nil {
		return telemetry.Action{}, notFound("device with physical id " + physicalID)
	}

	action, err := telemetry.ValidateAction(d, name, raw, at)
	if err != nil {
		return telemetry.Action{}, invalidInput(err)
	}

	if err := s.backends.Create.Create(ctx, action); err != nil {
		return telemetry.Action{}, translate(opCreate, err)
	}

	s.logger.Debug("action submitted", "physical_id", physicalID, "action", name, "action_id", action.ID)
	return action, nil
}

// Deliver hands an already validated action, received from another hub,
// to the action backend.
func (s *ActionService) Deliver(ctx context.Context, action telemetry.Action) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if err := s.backends.Create.Create(ctx, action); err != nil {
		return translate(opCreate, err)
	}
	return nil
}

// Pull returns the actions addressed to a device. With the pending bridge
// as backend this drains the queue. The result is never nil.
func (s *ActionService) Pull(ctx context.Context, physicalID string) ([]telemetry.Action, error) {
	actions, err := s.backends.Get.ListByDevice(ctx, physicalID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if actions == nil {
		actions = []telemetry.Action{}
	}
	return actions, nil
}

// PullForDevice resolves a device by its internal id and pulls its actions.
func (s *ActionService) PullForDevice(ctx context.Context, id uuid.UUID) ([]telemetry.Action, error) {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if d == nil {
		return nil, notFound("device " + id.String())
	}
	return s.Pull(ctx, d.PhysicalID)
}
