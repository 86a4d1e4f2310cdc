// Package sqlite implements the store capabilities on SQLite.
//
// All repositories share the schema in migrations/sqlite. Identifiers are
// stored as text, timestamps as RFC3339 text in UTC, capability maps and
// state values as JSON and event/action payloads in their encoded form.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// DBTX is the subset of *sql.DB the repositories need.
// *database.DB satisfies it through embedding.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// writeError maps a failed write to the store taxonomy.
func writeError(op string, err error) error {
	if isUniqueConstraintError(err) {
		return store.ErrConflict
	}
	return store.Internal(fmt.Errorf("%s: %w", op, err))
}

// checkAffected turns a zero-row update or delete into store.ErrNotFound.
func checkAffected(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return store.Internal(fmt.Errorf("%s: rows affected: %w", op, err))
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeviceRepository stores devices.
type DeviceRepository struct {
	db DBTX
}

// NewDeviceRepository returns a device repository on db.
func NewDeviceRepository(db DBTX) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `id, physical_id, user_id, name, events, actions`

// Create inserts a device.
func (r *DeviceRepository) Create(ctx context.Context, d *telemetry.Device) error {
	events, actions, err := marshalCapabilities(d)
	if err != nil {
		return store.Internal(err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.PhysicalID, d.UserID.String(), d.Name, events, actions,
	)
	if err != nil {
		return writeError("inserting device", err)
	}
	return nil
}

// GetByID returns the device or nil.
func (r *DeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*telemetry.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id.String())
	return scanOptionalDevice(row)
}

// GetByPhysicalID returns the device with the physical ID or nil.
func (r *DeviceRepository) GetByPhysicalID(ctx context.Context, physicalID string) (*telemetry.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE physical_id = ?`, physicalID)
	return scanOptionalDevice(row)
}

// ListByOwner returns the devices owned by userID, ordered by name.
func (r *DeviceRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*telemetry.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = ? ORDER BY name`, userID.String())
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying devices: %w", err))
	}
	defer rows.Close()

	var devices []*telemetry.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, store.Internal(err)
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

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET physical_id = ?, user_id = ?, name = ?, events = ?, actions = ? WHERE id = ?`,
		d.PhysicalID, d.UserID.String(), d.Name, events, actions, d.ID.String(),
	)
	if err != nil {
		return writeError("updating device", err)
	}
	return checkAffected("updating device", result)
}

// DeleteByID removes a device.
func (r *DeviceRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id.String())
	if err != nil {
		return store.Internal(fmt.Errorf("deleting device: %w", err))
	}
	return checkAffected("deleting device", result)
}

func marshalCapabilities(d *telemetry.Device) (events, actions string, err error) {
	e, err := json.Marshal(nonNil(d.Events))
	if err != nil {
		return "", "", fmt.Errorf("marshalling events: %w", err)
	}
	a, err := json.Marshal(nonNil(d.Actions))
	if err != nil {
		return "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(e), string(a), nil
}

func nonNil(c telemetry.Capabilities) telemetry.Capabilities {
	if c == nil {
		return telemetry.Capabilities{}
	}
	return c
}

func scanOptionalDevice(row *sql.Row) (*telemetry.Device, error) {
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Internal(err)
	}
	return d, nil
}

func scanDevice(scanner rowScanner) (*telemetry.Device, error) {
	var d telemetry.Device
	var id, userID, events, actions string

	if err := scanner.Scan(&id, &d.PhysicalID, &userID, &d.Name, &events, &actions); err != nil {
		return nil, err
	}

	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing device id: %w", err)
	}
	if d.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	if err := json.Unmarshal([]byte(events), &d.Events); err != nil {
		return nil, fmt.Errorf("unmarshalling events: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &d.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}
	return &d, nil
}

// StateRepository stores device states.
type StateRepository struct {
	db DBTX
}

// NewStateRepository returns a state repository on db.
func NewStateRepository(db DBTX) *StateRepository {
	return &StateRepository{db: db}
}

// Create inserts a state.
func (r *StateRepository) Create(ctx context.Context, s *telemetry.DeviceState) error {
	values, err := json.Marshal(nonNilPayload(s.Values))
	if err != nil {
		return store.Internal(fmt.Errorf("marshalling values: %w", err))
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO device_states (device_id, last_update, "values") VALUES (?, ?, ?)`,
		s.DeviceID.String(), s.LastUpdate.UTC().Format(timeLayout), string(values),
	)
	if err != nil {
		return writeError("inserting device state", err)
	}
	return nil
}

// GetByDeviceID returns the state or nil.
func (r *StateRepository) GetByDeviceID(ctx context.Context, deviceID uuid.UUID) (*telemetry.DeviceState, error) {
	var lastUpdate, values string
	err := r.db.QueryRowContext(ctx,
		`SELECT last_update, "values" FROM device_states WHERE device_id = ?`, deviceID.String(),
	).Scan(&lastUpdate, &values)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying device state: %w", err))
	}

	s := &telemetry.DeviceState{DeviceID: deviceID}
	if s.LastUpdate, err = time.Parse(timeLayout, lastUpdate); err != nil {
		return nil, store.Internal(fmt.Errorf("parsing last_update: %w", err))
	}
	if err := json.Unmarshal([]byte(values), &s.Values); err != nil {
		return nil, store.Internal(fmt.Errorf("unmarshalling values: %w", err))
	}
	return s, nil
}

// Update replaces the stored state.
func (r *StateRepository) Update(ctx context.Context, s *telemetry.DeviceState) error {
	values, err := json.Marshal(nonNilPayload(s.Values))
	if err != nil {
		return store.Internal(fmt.Errorf("marshalling values: %w", err))
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE device_states SET last_update = ?, "values" = ? WHERE device_id = ?`,
		s.LastUpdate.UTC().Format(timeLayout), string(values), s.DeviceID.String(),
	)
	if err != nil {
		return store.Internal(fmt.Errorf("updating device state: %w", err))
	}
	return checkAffected("updating device state", result)
}

// DeleteByID removes the state of a device.
func (r *StateRepository) DeleteByID(ctx context.Context, deviceID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM device_states WHERE device_id = ?`, deviceID.String())
	if err != nil {
		return store.Internal(fmt.Errorf("deleting device state: %w", err))
	}
	return checkAffected("deleting device state", result)
}

func nonNilPayload(p telemetry.Payload) telemetry.Payload {
	if p == nil {
		return telemetry.Payload{}
	}
	return p
}

// recordTable reads and writes one of the two record tables.
type recordTable struct {
	db         DBTX
	table      string
	nameColumn string
}

func (t recordTable) insert(ctx context.Context, r telemetry.Record) error {
	payload, err := telemetry.FormatJSON.Encode(r.Payload)
	if err != nil {
		return store.Internal(err)
	}

	_, err = t.db.ExecContext(ctx,
		`INSERT INTO `+t.table+` (id, device_physical_id, `+t.nameColumn+`, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.PhysicalID, r.Name, r.Timestamp.UTC().Format(timeLayout), string(payload),
	)
	if err != nil {
		return writeError("inserting into "+t.table, err)
	}
	return nil
}

func (t recordTable) listByDevice(ctx context.Context, physicalID string) ([]telemetry.Record, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, `+t.nameColumn+`, timestamp, payload FROM `+t.table+`
		WHERE device_physical_id = ? ORDER BY timestamp, rowid`, physicalID)
	if err != nil {
		return nil, store.Internal(fmt.Errorf("querying %s: %w", t.table, err))
	}
	defer rows.Close()

	var records []telemetry.Record
	for rows.Next() {
		var id, ts, payload string
		r := telemetry.Record{PhysicalID: physicalID}
		if err := rows.Scan(&id, &r.Name, &ts, &payload); err != nil {
			return nil, store.Internal(fmt.Errorf("scanning %s: %w", t.table, err))
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, store.Internal(fmt.Errorf("parsing id: %w", err))
		}
		if r.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, store.Internal(fmt.Errorf("parsing timestamp: %w", err))
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
func NewEventRepository(db DBTX) *EventRepository {
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
func NewActionRepository(db DBTX) *ActionRepository {
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
	_ store.Deleter[uuid.UUID]              = (*DeviceRepository)(nil)
	_ store.StateGetter                     = (*StateRepository)(nil)
	_ store.Creator[*telemetry.DeviceState] = (*StateRepository)(nil)
	_ store.EventGetter                     = (*EventRepository)(nil)
	_ store.ActionGetter                    = (*ActionRepository)(nil)
)
