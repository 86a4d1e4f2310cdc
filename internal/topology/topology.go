// Package topology decides which backend serves each storage capability
// and assembles the service.Backends from live connections.
//
// A Plan names a backend kind per entity and capability. Plans come from a
// preset, optionally overridden slot by slot in configuration:
//
//	topology:
//	  preset: bus_peer
//	  events:
//	    get: sqlite
package topology

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

// Kind names a backend.
type Kind string

// Backend kinds.
const (
	Memory   Kind = "memory"
	SQLite   Kind = "sqlite"
	Postgres Kind = "postgres"
	Bus      Kind = "bus"
	Peer     Kind = "peer"
	Pending  Kind = "pending"
)

// ErrInvalidPlan is returned for unknown presets, unknown kinds and kinds
// that cannot serve the slot they are assigned to.
var ErrInvalidPlan = errors.New("topology: invalid plan")

// Entity assigns a backend to each CRUD capability.
type Entity struct {
	Create Kind
	Get    Kind
	Update Kind
	Delete Kind
}

func uniform(k Kind) Entity { return Entity{Create: k, Get: k, Update: k, Delete: k} }

// Record assigns a backend to each record capability.
type Record struct {
	Create Kind
	Get    Kind
}

// Plan is a complete assignment.
type Plan struct {
	Devices Entity
	States  Entity
	Events  Record
	Actions Record
}

// Preset names.
const (
	PresetInMemory     = "in_memory"
	PresetSQLite       = "sqlite"
	PresetFullPostgres = "full_postgres"
	PresetBusPostgres  = "bus_postgres"
	PresetBusPeer      = "bus_peer"
)

var presets = map[string]Plan{
	PresetInMemory: {
		Devices: uniform(Memory),
		States:  uniform(Memory),
		Events:  Record{Create: Memory, Get: Memory},
		Actions: Record{Create: Pending, Get: Pending},
	},
	PresetSQLite: {
		Devices: uniform(SQLite),
		States:  uniform(SQLite),
		Events:  Record{Create: SQLite, Get: SQLite},
		Actions: Record{Create: Pending, Get: Pending},
	},
	PresetFullPostgres: {
		Devices: uniform(Postgres),
		States:  uniform(Postgres),
		Events:  Record{Create: Postgres, Get: Postgres},
		Actions: Record{Create: Pending, Get: Pending},
	},
	// Server side of a bus deployment: authoritative storage in Postgres,
	// actions forwarded to devices over the bus.
	PresetBusPostgres: {
		Devices: uniform(Postgres),
		States:  uniform(Postgres),
		Events:  Record{Create: Postgres, Get: Postgres},
		Actions: Record{Create: Bus, Get: Pending},
	},
	// Client side: writes go out on the bus, reads come from the server's
	// HTTP API and actions arrive through the bus consumer into the local
	// pending queue.
	PresetBusPeer: {
		Devices: Entity{Create: Bus, Get: Peer, Update: Bus, Delete: Bus},
		States:  Entity{Create: Bus, Get: Peer, Update: Bus, Delete: Bus},
		Events:  Record{Create: Bus, Get: Peer},
		Actions: Record{Create: Pending, Get: Pending},
	},
}

// Presets returns the preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds a plan from cfg: the preset first, then every non-empty
// override, then validation.
func Resolve(cfg config.TopologyConfig) (Plan, error) {
	var plan Plan
	if cfg.Preset != "" {
		p, ok := presets[cfg.Preset]
		if !ok {
			return Plan{}, fmt.Errorf("%w: unknown preset %q (have %s)",
				ErrInvalidPlan, cfg.Preset, strings.Join(Presets(), ", "))
		}
		plan = p
	}

	overrideEntity(&plan.Devices, cfg.Devices)
	overrideEntity(&plan.States, cfg.States)
	overrideRecord(&plan.Events, cfg.Events)
	overrideRecord(&plan.Actions, cfg.Actions)

	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func set(dst *Kind, v string) {
	if v != "" {
		*dst = Kind(strings.ToLower(strings.TrimSpace(v)))
	}
}

func overrideEntity(e *Entity, cfg config.EntityTopologyConfig) {
	set(&e.Create, cfg.Create)
	set(&e.Get, cfg.Get)
	set(&e.Update, cfg.Update)
	set(&e.Delete, cfg.Delete)
}

func overrideRecord(r *Record, cfg config.RecordTopologyConfig) {
	set(&r.Create, cfg.Create)
	set(&r.Get, cfg.Get)
}

type slot struct {
	entity     string
	capability string
	kind       Kind
}

func (p Plan) slots() []slot {
	return []slot{
		{"devices", "create", p.Devices.Create},
		{"devices", "get", p.Devices.Get},
		{"devices", "update", p.Devices.Update},
		{"devices", "delete", p.Devices.Delete},
		{"states", "create", p.States.Create},
		{"states", "get", p.States.Get},
		{"states", "update", p.States.Update},
		{"states", "delete", p.States.Delete},
		{"events", "create", p.Events.Create},
		{"events", "get", p.Events.Get},
		{"actions", "create", p.Actions.Create},
		{"actions", "get", p.Actions.Get},
	}
}

// Validate rejects empty slots, unknown kinds and impossible combinations:
// bus cannot read, pending serves only actions, and the peer API has no
// action endpoints.
func (p Plan) Validate() error {
	var errs []string
	for _, s := range p.slots() {
		name := s.entity + "." + s.capability
		switch s.kind {
		case "":
			errs = append(errs, name+" has no backend")
		case Memory, SQLite, Postgres:
		case Bus:
			if s.capability == "get" {
				errs = append(errs, name+": bus cannot serve reads")
			}
		case Peer:
			if s.entity == "actions" {
				errs = append(errs, name+": peer has no action endpoints")
			}
		case Pending:
			if s.entity != "actions" {
				errs = append(errs, name+": pending only serves actions")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown backend %q", name, s.kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(errs, "; "))
	}
	return nil
}

// Uses reports whether any slot is served by k.
func (p Plan) Uses(k Kind) bool {
	for _, s := range p.slots() {
		if s.kind == k {
			return true
		}
	}
	return false
}

// Publishes reports, per entity, whether any write goes to the bus. A hub
// consuming the bus should skip those entities.
func (p Plan) Publishes() (devices, states, events, actions bool) {
	devices = p.Devices.Create == Bus || p.Devices.Update == Bus || p.Devices.Delete == Bus
	states = p.States.Create == Bus || p.States.Update == Bus || p.States.Delete == Bus
	events = p.Events.Create == Bus
	actions = p.Actions.Create == Bus
	return devices, states, events, actions
}
