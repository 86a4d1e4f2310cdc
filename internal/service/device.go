package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// DeviceUpdate replaces a device's mutable fields.
//
// Name and PhysicalID are always replaced. Events and Actions replace the
// whole map when non-nil and are left untouched when nil.
type DeviceUpdate struct {
	PhysicalID string
	Name       string
	Events     telemetry.Capabilities
	Actions    telemetry.Capabilities
}

// DeviceService manages device registrations.
type DeviceService struct {
	backends store.DeviceBackends
	logger   Logger
}

// NewDeviceService returns a service over the given backends.
func NewDeviceService(b store.DeviceBackends) *DeviceService {
	return &DeviceService{backends: b, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (s *DeviceService) SetLogger(logger Logger) {
	s.logger = logger
}

// Create registers a device. A nil ID is replaced with a fresh one; the
// caller's device is not modified.
func (s *DeviceService) Create(ctx context.Context, device *telemetry.Device) (*telemetry.Device, error) {
	d := device.Clone()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Events == nil {
		d.Events = telemetry.Capabilities{}
	}
	if d.Actions == nil {
		d.Actions = telemetry.Capabilities{}
	}
	if err := d.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	if err := s.backends.Create.Create(ctx, d); err != nil {
		return nil, translate(opCreate, err)
	}

	s.logger.Info("device created", "device_id", d.ID, "physical_id", d.PhysicalID)
	return d, nil
}

// Get returns a device by id.
func (s *DeviceService) Get(ctx context.Context, id uuid.UUID) (*telemetry.Device, error) {
	d, err := s.backends.Get.GetByID(ctx, id)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if d == nil {
		return nil, notFound("device " + id.String())
	}
	return d, nil
}

// GetByPhysicalID returns a device by the id it reports itself with.
func (s *DeviceService) GetByPhysicalID(ctx context.Context, physicalID string) (*telemetry.Device, error) {
	d, err := s.backends.Get.GetByPhysicalID(ctx, physicalID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if d == nil {
		return nil, notFound("device with physical id " + physicalID)
	}
	return d, nil
}

// ListByOwner returns every device owned by userID. The result is never nil.
func (s *DeviceService) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*telemetry.Device, error) {
	devices, err := s.backends.Get.ListByOwner(ctx, userID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if devices == nil {
		devices = []*telemetry.Device{}
	}
	return devices, nil
}

// Update applies upd to the stored device and writes it back.
func (s *DeviceService) Update(ctx context.Context, id uuid.UUID, upd DeviceUpdate) (*telemetry.Device, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := current.Clone()
	d.PhysicalID = upd.PhysicalID
	d.Name = upd.Name
	if upd.Events != nil {
		d.Events = upd.Events.Clone()
	}
	if upd.Actions != nil {
		d.Actions = upd.Actions.Clone()
	}
	if err := d.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	if err := s.backends.Update.Update(ctx, d); err != nil {
		return nil, translate(opUpdate, err)
	}

	s.logger.Info("device updated", "device_id", d.ID)
	return d, nil
}

// Delete removes a device.
func (s *DeviceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.backends.Delete.DeleteByID(ctx, id); err != nil {
		return translate(opDelete, err)
	}
	s.logger.Info("device deleted", "device_id", id)
	return nil
}
