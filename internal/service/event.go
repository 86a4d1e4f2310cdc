package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// EventService ingests device events and projects them into device state.
type EventService struct {
	devices  store.DeviceGetter
	backends store.EventBackends
	states   *StateService
	logger   Logger

	observers   []EventObserver
	observersMu sync.RWMutex
}

// NewEventService returns a service that resolves devices through devices
// and projects payloads through states.
func NewEventService(devices store.DeviceGetter, b store.EventBackends, states *StateService) *EventService {
	return &EventService{devices: devices, backends: b, states: states, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (s *EventService) SetLogger(logger Logger) {
	s.logger = logger
}

// AddObserver registers o for every stored event.
func (s *EventService) AddObserver(o EventObserver) {
	s.observersMu.Lock()
	s.observers = append(s.observers, o)
	s.observersMu.Unlock()
}

func (s *EventService) device(ctx context.Context, physicalID string) (*telemetry.Device, error) {
	d, err := s.devices.GetByPhysicalID(ctx, physicalID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if d == nil {
		return nil, notFound("device with physical id " + physicalID)
	}
	return d, nil
}

// Ingest validates raw against the device's event schema, stores the event
// and projects its payload into the device state.
//
// A zero at means now. When the projection fails the event is already
// stored and the returned error is Internal.
func (s *EventService) Ingest(ctx context.Context, physicalID, name string, raw []byte, at time.Time) (telemetry.Event, error) {
	d, err := s.device(ctx, physicalID)
	if err != nil {
		return telemetry.Event{}, err
	}

	event, err := telemetry.ValidateEvent(d, name, raw, at)
	if err != nil {
		s.logger.Debug("event rejected", "physical_id", physicalID, "event", name, "error", err)
		return telemetry.Event{}, invalidInput(err)
	}

	return event, s.record(ctx, d, event)
}

// Record stores an event that has no declared schema, such as a raw
// serial reading, and projects it into the device state.
func (s *EventService) Record(ctx context.Context, event telemetry.Event) (telemetry.Event, error) {
	d, err := s.device(ctx, event.PhysicalID)
	if err != nil {
		return telemetry.Event{}, err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Payload == nil {
		event.Payload = telemetry.Payload{}
	}
	return event, s.record(ctx, d, event)
}

// record is two separate writes: the event, then the state projection.
func (s *EventService) record(ctx context.Context, d *telemetry.Device, event telemetry.Event) error {
	if err := s.backends.Create.Create(ctx, event); err != nil {
		return translate(opCreate, err)
	}
	s.notify(ctx, d, event)

	if _, err := s.states.Update(ctx, d.ID, event.Payload); err != nil {
		s.logger.Error("state projection failed after event was stored",
			"device_id", d.ID, "event_id", event.ID, "error", err)
		return internal("event stored but state projection failed: "+Detail(err), err)
	}
	return nil
}

func (s *EventService) notify(ctx context.Context, d *telemetry.Device, event telemetry.Event) {
	s.observersMu.RLock()
	defer s.observersMu.RUnlock()
	for _, o := range s.observers {
		o.EventRecorded(ctx, d, event.Clone())
	}
}

// List returns the events of a device. The result is never nil.
func (s *EventService) List(ctx context.Context, physicalID string) ([]telemetry.Event, error) {
	events, err := s.backends.Get.ListByDevice(ctx, physicalID)
	if err != nil {
		return nil, translate(opRead, err)
	}
	if events == nil {
		events = []telemetry.Event{}
	}
	return events, nil
}
