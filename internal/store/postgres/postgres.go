// Package postgres implements the store capabilities on PostgreSQL using
// pgx. It mirrors the sqlite store against the schema in migrations/postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	pg "github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/postgres"
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Querier is the subset of *pgxpool.Pool the repositories need.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func writeError(op string, err error) error {
	if pg.IsUniqueViolation(err) {
		return store.ErrConflict
	}
	return store.Internal(fmt.Errorf("%s: %w", op, err))
}

func checkAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeviceRepository stores devices.
type DeviceRepository struct {
	db Querier
}

// NewDeviceRepository returns a device repository on db.
func NewDeviceRepository(db Querier) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `id, physical_id, user_id, name, events, actions`

// Create inserts a device.
func (r *DeviceRepository) Create(ctx context.Context, d *telemetry.Device) error {
	events, actions, err := marshalCapabilities(d)
	if err != nil {
		return store.Internal(err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.PhysicalID, d.UserID, d.Name, events, actions,
	)
	if err != nil {
		return writeError("inserting device", err)
	}
	return nil
}

// GetByID returns the device or nil.
func (r *DeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*telemetry.Device, error) {
	return r.getOne(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
}

// GetByPhysicalID returns the device with the physical ID or nil.
func (r *DeviceRepository) GetByPhysicalID(ctx context.Context, physicalID string) (*telemetry.Device, error) {
	return r.getOne(ctx, `SELECT `+deviceColumns+` FROM devices WHERE physical_id = $1`, physicalID)
}

func (r *DeviceRepository) getOne(ctx context.Context, query string, arg any) (*telemetry.Device, error) {
	d, err := scanDevice(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying device: %w", err))
	}
	return d, nil
}

// ListByOwner returns the devices owned by userID, ordered by name.
func (r *DeviceRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*telemetry.Device, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying devices: %w", err))
	}
	defer rows.Close()

	var devices []*telemetry.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, store.Internal(fmt.Errorf("scanning device: %w", err))
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal(fmt.Errorf("iterating devices: %w", err))
	}
	return devices, nil
}

// Update replaces every column of an existing device.
func (r *DeviceRepository) Update(ctx context.Context, d *telemetry.Device) error {
	events, actions, err := marshalCapabilities(d)
	if err != nil {
		return store.Internal(err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE devices SET physical_id = $1, user_id = $2, name = $3, events = $4, actions = $5 WHERE id = $6`,
		d.PhysicalID, d.UserID, d.Name, events, actions, d.ID,
	)
	if err != nil {
		return writeError("updating device", err)
	}
	return checkAffected(tag)
}

// DeleteByID removes a device.
func (r *DeviceRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return store.Internal(fmt.Errorf("deleting device: %w", err))
	}
	return checkAffected(tag)
}

func marshalCapabilities(d *telemetry.Device) (events, actions []byte, err error) {
	if d.Events == nil {
		events = []byte("{}")
	} else if events, err = json.Marshal(d.Events); err != nil {
		return nil, nil, fmt.Errorf("marshalling events: %w", err)
	}
	if d.Actions == nil {
		actions = []byte("{}")
	} else if actions, err = json.Marshal(d.Actions); err != nil {
		return nil, nil, fmt.Errorf("marshalling actions: %w", err)
	}
	return events, actions, nil
}

func scanDevice(row pgx.Row) (*telemetry.Device, error) {
	var d telemetry.Device
	var events, actions []byte

	if err := row.Scan(&d.ID, &d.PhysicalID, &d.UserID, &d.Name, &events, &actions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(events, &d.Events); err != nil {
		return nil, fmt.Errorf("unmarshalling events: %w", err)
	}
	if err := json.Unmarshal(actions, &d.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}
	return &d, nil
}

// StateRepository stores device states.
type StateRepository struct {
	db Querier
}

// NewStateRepository returns a state repository on db.
func NewStateRepository(db Querier) *StateRepository {
	return &StateRepository{db: db}
}

// Create inserts a state.
func (r *StateRepository) Create(ctx context.Context, s *telemetry.DeviceState) error {
	values, err := marshalValues(s.Values)
	if err != nil {
		return store.Internal(err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO device_states (device_id, last_update, "values") VALUES ($1, $2, $3)`,
		s.DeviceID, s.LastUpdate.UTC(), values,
	)
	if err != nil {
		return writeError("inserting device state", err)
	}
	return nil
}

// GetByDeviceID returns the state or nil.
func (r *StateRepository) GetByDeviceID(ctx context.Context, deviceID uuid.UUID) (*telemetry.DeviceState, error) {
	s := &telemetry.DeviceState{DeviceID: deviceID}
	var values []byte

	err := r.db.QueryRow(ctx,
		`SELECT last_update, "values" FROM device_states WHERE device_id = $1`, deviceID,
	).Scan(&s.LastUpdate, &values)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying device state: %w", err))
	}
	if err := json.Unmarshal(values, &s.Values); err != nil {
		return nil, store.Internal(fmt.Errorf("unmarshalling values: %w", err))
	}
	return s, nil
}

// Update replaces the stored state.
func (r *StateRepository) Update(ctx context.Context, s *telemetry.DeviceState) error {
	values, err := marshalValues(s.Values)
	if err != nil {
		return store.Internal(err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE device_states SET last_update = $1, "values" = $2 WHERE device_id = $3`,
		s.LastUpdate.UTC(), values, s.DeviceID,
	)
	if err != nil {
		return store.Internal(fmt.Errorf("updating device state: %w", err))
	}
	return checkAffected(tag)
}

// DeleteByID removes the state of a device.
func (r *StateRepository) DeleteByID(ctx context.Context, deviceID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM device_states WHERE device_id = $1`, deviceID)
	if err != nil {
		return store.Internal(fmt.Errorf("deleting device state: %w", err))
	}
	return checkAffected(tag)
}

func marshalValues(p telemetry.Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshalling values: %w", err)
	}
	return data, nil
}

// recordTable reads and writes one of the two record tables.
type recordTable struct {
	db         Querier
	table      string
	nameColumn string
}

func (t recordTable) insert(ctx context.Context, r telemetry.Record) error {
	payload, err := telemetry.FormatJSON.Encode(r.Payload)
	if err != nil {
		return store.Internal(err)
	}

	_, err = t.db.Exec(ctx,
		`INSERT INTO `+t.table+` (id, device_physical_id, `+t.nameColumn+`, timestamp, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.PhysicalID, r.Name, r.Timestamp.UTC(), string(payload),
	)
	if err != nil {
		return writeError("inserting into "+t.table, err)
	}
	return nil
}

func (t recordTable) listByDevice(ctx context.Context, physicalID string) ([]telemetry.Record, error) {
	rows, err := t.db.Query(ctx,
		`SELECT id, `+t.nameColumn+`, timestamp, payload FROM `+t.table+`
		WHERE device_physical_id = $1 ORDER BY timestamp`, physicalID)
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying %s: %w", t.table, err))
	}
	defer rows.Close()

	var records []telemetry.Record
	for rows.Next() {
		var payload string
		r := telemetry.Record{PhysicalID: physicalID}
		if err := rows.Scan(&r.ID, &r.Name, &r.Timestamp, &payload); err != nil {
			return nil, store.Internal(fmt.Errorf("scanning %s: %w", t.table, err))
		}
		if r.Payload, err = telemetry.FormatJSON.DecodePayload([]byte(payload)); err != nil {
			return nil, store.Internal(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal(fmt.Errorf("iterating %s: %w", t.table, err))
	}
	return records, nil
}

// EventRepository stores events.
type EventRepository struct {
	t recordTable
}

// NewEventRepository returns an event repository on db.
func NewEventRepository(db Querier) *EventRepository {
	return &EventRepository{t: recordTable{db: db, table: "events", nameColumn: "event_name"}}
}

// Create inserts an event.
func (r *EventRepository) Create(ctx context.Context, e telemetry.Event) error {
	return r.t.insert(ctx, telemetry.Record(e))
}

// ListByDevice returns the events of a device, oldest first.
func (r *EventRepository) ListByDevice(ctx context.Context, physicalID string) ([]telemetry.Event, error) {
	records, err := r.t.listByDevice(ctx, physicalID)
	if err != nil {
		return nil, err
	}
	out := make([]telemetry.Event, len(records))
	for i, rec := range records {
		out[i] = telemetry.Event(rec)
	}
	return out, nil
}

// ActionRepository stores actions.
type ActionRepository struct {
	t recordTable
}

// NewActionRepository returns an action repository on db.
func NewActionRepository(db Querier) *ActionRepository {
	return &ActionRepository{t: recordTable{db: db, table: "actions", nameColumn: "action_name"}}
}

// Create inserts an action.
func (r *ActionRepository) Create(ctx context.Context, a telemetry.Action) error {
	return r.t.insert(ctx, telemetry.Record(a))
}

// ListByDevice returns the actions of a device, oldest first.
func (r *ActionRepository) ListByDevice(ctx context.Context, physicalID string) ([]telemetry.Action, error) {
	records, err := r.t.listByDevice(ctx, physicalID)
	if err != nil {
		return nil, err
	}
	out := make([]telemetry.Action, len(records))
	for i, rec := range records {
		out[i] = telemetry.Action(rec)
	}
	return out, nil
}

var (
	_ store.DeviceGetter                    = (*DeviceRepository)(nil)
	_ store.Updater[*telemetry.Device]      = (*DeviceRepository)(nil)
	_ store.StateGetter                     = (*StateRepository)(nil)
	_ store.Updater[*telemetry.DeviceState] = (*StateRepository)(nil)
	_ store.EventGetter                     = (*EventRepository)(nil)
	_ store.ActionGetter                    = (*ActionRepository)(nil)
)
