// Package memory provides map-backed implementations of every store
// capability. Each store guards its map with one RWMutex held only for the
// duration of a single read or write, and hands out clones so callers never
// share state with the store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// DeviceStore keeps devices in memory.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*telemetry.Device
}

// NewDeviceStore returns an empty device store.
func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: make(map[uuid.UUID]*telemetry.Device)}
}

// Create stores a device. Returns store.ErrConflict on a duplicate ID or physical ID.
func (s *DeviceStore) Create(_ context.Context, d *telemetry.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range s.devices {
		if existing.PhysicalID == d.PhysicalID {
			return store.ErrConflict
		}
	}
	s.devices[d.ID] = d.Clone()
	return nil
}

// GetByID returns the device or nil.
func (s *DeviceStore) GetByID(_ context.Context, id uuid.UUID) (*telemetry.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.devices[id].Clone(), nil
}

// ListByOwner returns every device owned by userID.
func (s *DeviceStore) ListByOwner(_ context.Context, userID uuid.UUID) ([]*telemetry.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*telemetry.Device
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// GetByPhysicalID returns the device with the given physical ID or nil.
func (s *DeviceStore) GetByPhysicalID(_ context.Context, physicalID string) (*telemetry.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.PhysicalID == physicalID {
			return d.Clone(), nil
		}
	}
	return nil, nil
}

// Update replaces a stored device. Returns store.ErrNotFound if absent.
func (s *DeviceStore) Update(_ context.Context, d *telemetry.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.devices {
		if id != d.ID && existing.PhysicalID == d.PhysicalID {
			return store.ErrConflict
		}
	}
	s.devices[d.ID] = d.Clone()
	return nil
}

// DeleteByID removes a device. Returns store.ErrNotFound if absent.
func (s *DeviceStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.devices, id)
	return nil
}

// StateStore keeps device states in memory, keyed by device ID.
type StateStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID]*telemetry.DeviceState
}

// NewStateStore returns an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[uuid.UUID]*telemetry.DeviceState)}
}

// Create stores a state. Returns store.ErrConflict if one exists for the device.
func (s *StateStore) Create(_ context.Context, st *telemetry.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[st.DeviceID]; ok {
		return store.ErrConflict
	}
	s.states[st.DeviceID] = st.Clone()
	return nil
}

// GetByDeviceID returns the state or nil.
func (s *StateStore) GetByDeviceID(_ context.Context, deviceID uuid.UUID) (*telemetry.DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.states[deviceID].Clone(), nil
}

// Update replaces a stored state. Returns store.ErrNotFound if absent.
func (s *StateStore) Update(_ context.Context, st *telemetry.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[st.DeviceID]; !ok {
		return store.ErrNotFound
	}
	s.states[st.DeviceID] = st.Clone()
	return nil
}

// DeleteByID removes a state. Returns store.ErrNotFound if absent.
func (s *StateStore) DeleteByID(_ context.Context, deviceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[deviceID]; !ok {
		return store.ErrNotFound
	}
	delete(s.states, deviceID)
	return nil
}

// recordLog is an append-only list of records per device physical ID.
type recordLog struct {
	mu       sync.RWMutex
	ids      map[uuid.UUID]struct{}
	byDevice map[string][]telemetry.Record
}

func newRecordLog() recordLog {
	return recordLog{
		ids:      make(map[uuid.UUID]struct{}),
		byDevice: make(map[string][]telemetry.Record),
	}
}

func (l *recordLog) append(r telemetry.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ids[r.ID]; ok {
		return store.ErrConflict
	}
	l.ids[r.ID] = struct{}{}
	l.byDevice[r.PhysicalID] = append(l.byDevice[r.PhysicalID], r.Clone())
	return nil
}

func (l *recordLog) list(physicalID string) []telemetry.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.byDevice[physicalID]
	out := make([]telemetry.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// EventStore keeps events in memory in arrival order.
type EventStore struct {
	log recordLog
}

// NewEventStore returns an empty event store.
func NewEventStore() *EventStore {
	return &EventStore{log: newRecordLog()}
}

// Create appends an event. Returns store.ErrConflict on a duplicate ID.
func (s *EventStore) Create(_ context.Context, e telemetry.Event) error {
	return s.log.append(telemetry.Record(e))
}

// ListByDevice returns the events of a device in arrival order.
func (s *EventStore) ListByDevice(_ context.Context, physicalID string) ([]telemetry.Event, error) {
	records := s.log.list(physicalID)
	out := make([]telemetry.Event, len(records))
	for i, r := range records {
		out[i] = telemetry.Event(r)
	}
	return out, nil
}

// ActionStore keeps actions in memory in arrival order. Unlike the pending
// bridge it never drains.
type ActionStore struct {
	log recordLog
}

// NewActionStore returns an empty action store.
func NewActionStore() *ActionStore {
	return &ActionStore{log: newRecordLog()}
}

// Create appends an action. Returns store.ErrConflict on a duplicate ID.
func (s *ActionStore) Create(_ context.Context, a telemetry.Action) error {
	return s.log.append(telemetry.Record(a))
}

// ListByDevice returns the actions of a device in arrival order.
func (s *ActionStore) ListByDevice(_ context.Context, physicalID string) ([]telemetry.Action, error) {
	records := s.log.list(physicalID)
	out := make([]telemetry.Action, len(records))
	for i, r := range records {
		out[i] = telemetry.Action(r)
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ store.Creator[*telemetry.Device]      = (*DeviceStore)(nil)
	_ store.DeviceGetter                    = (*DeviceStore)(nil)
	_ store.Updater[*telemetry.Device]      = (*DeviceStore)(nil)
	_ store.Deleter[uuid.UUID]              = (*DeviceStore)(nil)
	_ store.Creator[*telemetry.DeviceState] = (*StateStore)(nil)
	_ store.StateGetter                     = (*StateStore)(nil)
	_ store.Updater[*telemetry.DeviceState] = (*StateStore)(nil)
	_ store.Deleter[uuid.UUID]              = (*StateStore)(nil)
	_ store.Creator[telemetry.Event]        = (*EventStore)(nil)
	_ store.EventGetter                     = (*EventStore)(nil)
	_ store.Creator[telemetry.Action]       = (*ActionStore)(nil)
	_ store.ActionGetter                    = (*ActionStore)(nil)
)

// Devices returns a DeviceBackends served entirely by s.
func Devices(s *DeviceStore) store.DeviceBackends {
	return store.DeviceBackends{Create: s, Get: s, Update: s, Delete: s}
}

// States returns a StateBackends served entirely by s.
func States(s *StateStore) store.StateBackends {
	return store.StateBackends{Create: s, Get: s, Update: s, Delete: s}
}
