package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Record is a single validated event or action emitted by or sent to a device.
//
// Events and actions share the same shape; Event and Action are distinct
// named types so storage capabilities cannot mix them up.
type Record struct {
	ID         uuid.UUID `json:"id"`
	PhysicalID string    `json:"device_physical_id"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    Payload   `json:"payload"`
}

// Event is a record a device reported.
type Event Record

// Action is a record addressed to a device.
type Action Record

// RecordKey identifies a record for equality purposes. The payload is not
// part of the identity.
type RecordKey struct {
	ID        uuid.UUID
	Name      string
	Timestamp int64
}

// Key returns the identity of the record.
func (r Record) Key() RecordKey {
	return RecordKey{ID: r.ID, Name: r.Name, Timestamp: r.Timestamp.UnixNano()}
}

// SameRecord reports whether both records share id, name and timestamp.
func (r Record) SameRecord(other Record) bool {
	return r.Key() == other.Key()
}

// Clone returns a copy with its own payload map.
func (r Record) Clone() Record {
	r.Payload = r.Payload.Clone()
	return r
}

// Key returns the identity of the event.
func (e Event) Key() RecordKey { return Record(e).Key() }

// SameRecord reports whether both events share id, name and timestamp.
func (e Event) SameRecord(other Event) bool { return Record(e).SameRecord(Record(other)) }

// Clone returns a copy with its own payload map.
func (e Event) Clone() Event { return Event(Record(e).Clone()) }

// Key returns the identity of the action.
func (a Action) Key() RecordKey { return Record(a).Key() }

// SameRecord reports whether both actions share id, name and timestamp.
func (a Action) SameRecord(other Action) bool { return Record(a).SameRecord(Record(other)) }

// Clone returns a copy with its own payload map.
func (a Action) Clone() Action { return Action(Record(a).Clone()) }
