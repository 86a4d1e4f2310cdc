package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
	"github.com/nerrad567/gray-logic-telemetry/migrations"
)

// setupTestDB opens an in-memory database with the embedded schema applied.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	steps, err := migrations.Load(migrations.SQLiteDir)
	if err != nil {
		t.Fatalf("failed to load schema: %v", err)
	}
	if err := db.Migrate(context.Background(), steps); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return db
}

func testDevice(physicalID string, owner uuid.UUID) *telemetry.Device {
	return telemetry.NewDevice(physicalID, owner, "Sensor "+physicalID,
		telemetry.Capabilities{"temp": telemetry.NewCapability(map[string]telemetry.ValueType{"value": telemetry.TypeNumber})},
		telemetry.Capabilities{"set": telemetry.NewCapability(map[string]telemetry.ValueType{"on": telemetry.TypeBoolean})},
	)
}

func TestDeviceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(setupTestDB(t))
	owner := uuid.New()
	d := testDevice("p1", owner)

	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, d); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want %v", err, store.ErrConflict)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.PhysicalID != "p1" || got.UserID != owner {
		t.Errorf("GetByID() = %+v, want physical id p1 owned by %s", got, owner)
	}
	if got.Events["temp"].Schema["value"] != telemetry.TypeNumber {
		t.Errorf("events not round-tripped: %+v", got.Events)
	}
	if got.Actions["set"].Format != telemetry.FormatJSON {
		t.Errorf("actions not round-tripped: %+v", got.Actions)
	}

	byPID, err := repo.GetByPhysicalID(ctx, "p1")
	if err != nil || byPID == nil || byPID.ID != d.ID {
		t.Errorf("GetByPhysicalID() = %v, %v", byPID, err)
	}
	if absent, err := repo.GetByPhysicalID(ctx, "nope"); absent != nil || err != nil {
		t.Errorf("GetByPhysicalID(absent) = %v, %v, want nil, nil", absent, err)
	}

	list, err := repo.ListByOwner(ctx, owner)
	if err != nil || len(list) != 1 {
		t.Errorf("ListByOwner() = %d devices, %v, want 1", len(list), err)
	}

	d.Name = "Renamed"
	d.Events = telemetry.Capabilities{}
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, d.ID)
	if got.Name != "Renamed" || len(got.Events) != 0 {
		t.Errorf("Update() not applied: %+v", got)
	}
	if err := repo.Update(ctx, testDevice("p2", owner)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(absent) error = %v, want %v", err, store.ErrNotFound)
	}

	if err := repo.DeleteByID(ctx, d.ID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if err := repo.DeleteByID(ctx, d.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteByID(absent) error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestDeviceRepository_PhysicalIDUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(setupTestDB(t))

	if err := repo.Create(ctx, testDevice("p1", uuid.New())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testDevice("p1", uuid.New())); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(same physical id) error = %v, want %v", err, store.ErrConflict)
	}
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepository(setupTestDB(t))
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)

	if got, err := repo.GetByDeviceID(ctx, id); got != nil || err != nil {
		t.Errorf("GetByDeviceID(absent) = %v, %v, want nil, nil", got, err)
	}

	s := telemetry.NewDeviceState(id, telemetry.Payload{"value": telemetry.NumberValue(42)}, at)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, s); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want %v", err, store.ErrConflict)
	}

	got, err := repo.GetByDeviceID(ctx, id)
	if err != nil {
		t.Fatalf("GetByDeviceID() error = %v", err)
	}
	if !got.LastUpdate.Equal(at) {
		t.Errorf("LastUpdate = %v, want %v", got.LastUpdate, at)
	}
	if !got.Values.Equal(s.Values) {
		t.Errorf("Values = %v, want %v", got.Values, s.Values)
	}

	s.Merge(telemetry.Payload{"on": telemetry.BoolValue(true)}, at.Add(time.Second))
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.GetByDeviceID(ctx, id)
	if len(got.Values) != 2 {
		t.Errorf("Values after update = %v, want 2 fields", got.Values)
	}

	if err := repo.DeleteByID(ctx, id); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if err := repo.Update(ctx, s); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(absent) error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(setupTestDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Insert out of order; listing is by timestamp.
	second := telemetry.Event{ID: uuid.New(), PhysicalID: "p1", Name: "temp", Timestamp: base.Add(500 * time.Millisecond),
		Payload: telemetry.Payload{"value": telemetry.NumberValue(2)}}
	first := telemetry.Event{ID: uuid.New(), PhysicalID: "p1", Name: "temp", Timestamp: base,
		Payload: telemetry.Payload{"value": telemetry.NumberValue(1), "unit": telemetry.StringValue("c")}}

	for _, e := range []telemetry.Event{second, first} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := repo.Create(ctx, first); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want %v", err, store.ErrConflict)
	}

	got, err := repo.ListByDevice(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByDevice() len = %d, want 2", len(got))
	}
	if !got[0].SameRecord(first) || !got[1].SameRecord(second) {
		t.Errorf("ListByDevice() order = %s, %s", got[0].ID, got[1].ID)
	}
	if !got[0].Payload.Equal(first.Payload) {
		t.Errorf("Payload = %v, want %v", got[0].Payload, first.Payload)
	}
}

func TestActionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewActionRepository(setupTestDB(t))

	a := telemetry.Action{ID: uuid.New(), PhysicalID: "p1", Name: "set", Timestamp: time.Now(),
		Payload: telemetry.Payload{"on": telemetry.BoolValue(true)}}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.ListByDevice(ctx, "p1")
	if err != nil || len(got) != 1 || !got[0].SameRecord(a) {
		t.Errorf("ListByDevice() = %v, %v, want the created action", got, err)
	}
}
