package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

func newDevice(physicalID string, owner uuid.UUID) *telemetry.Device {
	return telemetry.NewDevice(physicalID, owner, "dev "+physicalID,
		telemetry.Capabilities{"temp": telemetry.NewCapability(map[string]telemetry.ValueType{"value": telemetry.TypeNumber})},
		nil,
	)
}

func TestDeviceStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewDeviceStore()
	owner := uuid.New()
	d := newDevice("p1", owner)

	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, d); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want %v", err, store.ErrConflict)
	}
	if err := s.Create(ctx, newDevice("p1", owner)); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate physical id) error = %v, want %v", err, store.ErrConflict)
	}

	got, err := s.GetByPhysicalID(ctx, "p1")
	if err != nil || got == nil || got.ID != d.ID {
		t.Fatalf("GetByPhysicalID() = %v, %v, want device %s", got, err, d.ID)
	}

	// Mutating the returned copy must not affect the store.
	got.Name = "changed"
	again, _ := s.GetByID(ctx, d.ID)
	if again.Name != d.Name {
		t.Errorf("store shares memory with callers: Name = %q", again.Name)
	}

	list, _ := s.ListByOwner(ctx, owner)
	if len(list) != 1 {
		t.Errorf("ListByOwner() len = %d, want 1", len(list))
	}

	d.Name = "renamed"
	if err := s.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := s.Update(ctx, newDevice("p2", owner)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(absent) error = %v, want %v", err, store.ErrNotFound)
	}

	if err := s.DeleteByID(ctx, d.ID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if err := s.DeleteByID(ctx, d.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteByID(absent) error = %v, want %v", err, store.ErrNotFound)
	}
	if got, err := s.GetByID(ctx, d.ID); got != nil || err != nil {
		t.Errorf("GetByID(deleted) = %v, %v, want nil, nil", got, err)
	}
}

func TestStateStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore()
	id := uuid.New()

	if got, err := s.GetByDeviceID(ctx, id); got != nil || err != nil {
		t.Errorf("GetByDeviceID(absent) = %v, %v, want nil, nil", got, err)
	}
	if err := s.Update(ctx, telemetry.NewDeviceState(id, nil, time.Now())); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(absent) error = %v, want %v", err, store.ErrNotFound)
	}

	st := telemetry.NewDeviceState(id, telemetry.Payload{"a": telemetry.NumberValue(1)}, time.Now())
	if err := s.Create(ctx, st); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, st); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want %v", err, store.ErrConflict)
	}
	if err := s.DeleteByID(ctx, id); err != nil {
		t.Errorf("DeleteByID() error = %v", err)
	}
}

func TestEventStore_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		e := telemetry.Event{ID: uuid.New(), PhysicalID: "p1", Name: "temp", Timestamp: time.Now()}
		ids = append(ids, e.ID)
		if err := s.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := s.Create(ctx, telemetry.Event{ID: ids[0], PhysicalID: "p1"}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want %v", err, store.ErrConflict)
	}

	got, _ := s.ListByDevice(ctx, "p1")
	if len(got) != 3 {
		t.Fatalf("ListByDevice() len = %d, want 3", len(got))
	}
	for i, e := range got {
		if e.ID != ids[i] {
			t.Errorf("event[%d] = %s, want %s", i, e.ID, ids[i])
		}
	}
	if other, _ := s.ListByDevice(ctx, "p2"); len(other) != 0 {
		t.Errorf("ListByDevice(p2) len = %d, want 0", len(other))
	}
}

func TestActionStore_DoesNotDrain(t *testing.T) {
	ctx := context.Background()
	s := NewActionStore()
	_ = s.Create(ctx, telemetry.Action{ID: uuid.New(), PhysicalID: "p1", Name: "set"})

	for i := 0; i < 2; i++ {
		got, _ := s.ListByDevice(ctx, "p1")
		if len(got) != 1 {
			t.Errorf("ListByDevice() call %d len = %d, want 1", i, len(got))
		}
	}
}
