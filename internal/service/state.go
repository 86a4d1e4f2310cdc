package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// StateService manages the latest known values of each device.
type StateService struct {
	backends store.StateBackends
	logger   Logger
	now      func() time.Time

	observers   []StateObserver
	observersMu sync.RWMutex
}

// NewStateService returns a service over the given backends.
func NewStateService(b store.StateBackends) *StateService {
	return &StateService{
		backends: b,
		logger:   noopLogger{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger.
func (s *StateService) SetLogger(logger Logger) {
	s.logger = logger
}

// AddObserver registers o for every successful state write.
func (s *StateService) AddObserver(o StateObserver) {
	s.observersMu.Lock()
	s.observers = append(s.observers, o)
	s.observersMu.Unlock()
}

func (s *StateService) notify(ctx context.Context, state *telemetry.DeviceState) {
	s.observersMu.RLock()
	defer s.observersMu.RUnlock()
	for _, o := range s.observers {
		o.StateChanged(ctx, state.Clone())
	}
}

// Create stores a new state. A zero at means now.
func (s *StateService) Create(ctx context.Context, deviceID uuid.UUID, values telemetry.Payload, at time.Time) (*telemetry.DeviceState, error) {
	if at.IsZero() {
		at = s.now()
	}
	state := telemetry.NewDeviceState(deviceID, values, at)
	if err := s.backends.Create.Create(ctx, state); err != nil {
		return nil, translate(opCreate, err)
	}
	s.notify(ctx, state)
	return state, nil
}

// Get returns the state of a device.
func (s *StateService) Get(ctx context.Context, deviceID uuid.UUID) (*telemetry.DeviceState, error) {
	state, err := s.backends.Get.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if state == nil {
		return nil, notFound("state of device " + deviceID.String())
	}
	return state, nil
}

// Update merges values into the stored state and sets LastUpdate to the
// current time. Keys not in values are kept.
//
// An absent state is created instead. When a concurrent writer creates it
// first, the values are merged into that state.
func (s *StateService) Update(ctx context.Context, deviceID uuid.UUID, values telemetry.Payload) (*telemetry.DeviceState, error) {
	now := s.now()

	current, err := s.backends.Get.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if current == nil {
		state := telemetry.NewDeviceState(deviceID, values, now)
		err := s.backends.Create.Create(ctx, state)
		if err == nil {
			s.notify(ctx, state)
			return state, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, translate(opCreate, err)
		}

		s.logger.Debug("state created concurrently, merging", "device_id", deviceID)
		if current, err = s.backends.Get.GetByDeviceID(ctx, deviceID); err != nil {
			return nil, translate(opRead, err)
		}
		if current == nil {
			return nil, internal("state of device "+deviceID.String()+" conflicted on create but is absent", nil)
		}
	}

	current.Merge(values, now)
	if err := s.backends.Update.Update(ctx, current); err != nil {
		return nil, translate(opUpdate, err)
	}
	s.notify(ctx, current)
	return current, nil
}

// Delete removes the state of a device.
func (s *StateService) Delete(ctx context.Context, deviceID uuid.UUID) error {
	if err := s.backends.Delete.DeleteByID(ctx, deviceID); err != nil {
		return translate(opDelete, err)
	}
	return nil
}
