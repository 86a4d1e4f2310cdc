package topology

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/postgres"
	"github.com/nerrad567/gray-logic-telemetry/internal/service"
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/broker"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/memory"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/peer"
	pgstore "github.com/nerrad567/gray-logic-telemetry/internal/store/postgres"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/sqlite"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Queue is a pending-action bridge: push on Create, drain on ListByDevice.
type Queue interface {
	store.Creator[telemetry.Action]
	store.ActionGetter
}

// Sources holds the live connections a plan may draw from. Only the kinds
// the plan uses need to be set.
type Sources struct {
	SQLite   *database.DB
	Postgres *postgres.Pool
	Bus      *broker.Writer
	Peer     *peer.Client
	Pending  Queue
}

// deviceSet is one backend's full set of device capabilities. Write-only
// backends leave get nil.
type deviceSet struct {
	create store.Creator[*telemetry.Device]
	get    store.DeviceGetter
	update store.Updater[*telemetry.Device]
	delete store.Deleter[uuid.UUID]
}

type stateSet struct {
	create store.Creator[*telemetry.DeviceState]
	get    store.StateGetter
	update store.Updater[*telemetry.DeviceState]
	delete store.Deleter[uuid.UUID]
}

type eventSet struct {
	create store.Creator[telemetry.Event]
	get    store.EventGetter
}

type actionSet struct {
	create store.Creator[telemetry.Action]
	get    store.ActionGetter
}

type catalog struct {
	devices map[Kind]deviceSet
	states  map[Kind]stateSet
	events  map[Kind]eventSet
	actions map[Kind]actionSet
}

// catalog instantiates each backend the plan uses once, so a slot served
// by the same kind shares one store.
func (p Plan) catalog(src Sources) (*catalog, error) {
	c := &catalog{
		devices: map[Kind]deviceSet{},
		states:  map[Kind]stateSet{},
		events:  map[Kind]eventSet{},
		actions: map[Kind]actionSet{},
	}

	if p.Uses(Memory) {
		d, s, e, a := memory.NewDeviceStore(), memory.NewStateStore(), memory.NewEventStore(), memory.NewActionStore()
		c.devices[Memory] = deviceSet{d, d, d, d}
		c.states[Memory] = stateSet{s, s, s, s}
		c.events[Memory] = eventSet{e, e}
		c.actions[Memory] = actionSet{a, a}
	}

	if p.Uses(SQLite) {
		if src.SQLite == nil {
			return nil, fmt.Errorf("%w: sqlite backend selected but no database is open", ErrInvalidPlan)
		}
		d := sqlite.NewDeviceRepository(src.SQLite)
		s := sqlite.NewStateRepository(src.SQLite)
		e := sqlite.NewEventRepository(src.SQLite)
		a := sqlite.NewActionRepository(src.SQLite)
		c.devices[SQLite] = deviceSet{d, d, d, d}
		c.states[SQLite] = stateSet{s, s, s, s}
		c.events[SQLite] = eventSet{e, e}
		c.actions[SQLite] = actionSet{a, a}
	}

	if p.Uses(Postgres) {
		if src.Postgres == nil {
			return nil, fmt.Errorf("%w: postgres backend selected but no pool is connected", ErrInvalidPlan)
		}
		d := pgstore.NewDeviceRepository(src.Postgres)
		s := pgstore.NewStateRepository(src.Postgres)
		e := pgstore.NewEventRepository(src.Postgres)
		a := pgstore.NewActionRepository(src.Postgres)
		c.devices[Postgres] = deviceSet{d, d, d, d}
		c.states[Postgres] = stateSet{s, s, s, s}
		c.events[Postgres] = eventSet{e, e}
		c.actions[Postgres] = actionSet{a, a}
	}

	if p.Uses(Bus) {
		if src.Bus == nil {
			return nil, fmt.Errorf("%w: bus backend selected but no transport is connected", ErrInvalidPlan)
		}
		d, s := src.Bus.Devices(), src.Bus.States()
		c.devices[Bus] = deviceSet{create: d, update: d, delete: d}
		c.states[Bus] = stateSet{create: s, update: s, delete: s}
		c.events[Bus] = eventSet{create: src.Bus.Events()}
		c.actions[Bus] = actionSet{create: src.Bus.Actions()}
	}

	if p.Uses(Peer) {
		if src.Peer == nil {
			return nil, fmt.Errorf("%w: peer backend selected but no peer is configured", ErrInvalidPlan)
		}
		d, s, e := src.Peer.Devices(), src.Peer.States(), src.Peer.Events()
		c.devices[Peer] = deviceSet{d, d, d, d}
		c.states[Peer] = stateSet{s, s, s, s}
		c.events[Peer] = eventSet{e, e}
	}

	if p.Uses(Pending) {
		if src.Pending == nil {
			return nil, fmt.Errorf("%w: pending backend selected but no bridge exists", ErrInvalidPlan)
		}
		c.actions[Pending] = actionSet{src.Pending, src.Pending}
	}

	return c, nil
}

// Build assembles the service backends for the plan.
func (p Plan) Build(src Sources) (service.Backends, error) {
	if err := p.Validate(); err != nil {
		return service.Backends{}, err
	}
	c, err := p.catalog(src)
	if err != nil {
		return service.Backends{}, err
	}

	b := service.Backends{
		Devices: store.DeviceBackends{
			Create: c.devices[p.Devices.Create].create,
			Get:    c.devices[p.Devices.Get].get,
			Update: c.devices[p.Devices.Update].update,
			Delete: c.devices[p.Devices.Delete].delete,
		},
		States: store.StateBackends{
			Create: c.states[p.States.Create].create,
			Get:    c.states[p.States.Get].get,
			Update: c.states[p.States.Update].update,
			Delete: c.states[p.States.Delete].delete,
		},
		Events: store.EventBackends{
			Create: c.events[p.Events.Create].create,
			Get:    c.events[p.Events.Get].get,
		},
		Actions: store.ActionBackends{
			Create: c.actions[p.Actions.Create].create,
			Get:    c.actions[p.Actions.Get].get,
		},
	}
	if err := b.Validate(); err != nil {
		return service.Backends{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	return b, nil
}
