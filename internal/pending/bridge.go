package pending

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Logger is the logging interface used by the bridges.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bridge is an in-memory pending-action queue per device physical ID.
type Bridge struct {
	mu         sync.Mutex
	queues     map[string][]telemetry.Action
	maxPending int
	logger     Logger
}

// NewBridge creates an empty bridge. A positive maxPending caps each
// device queue; when full, the oldest action is dropped.
func NewBridge(maxPending int) *Bridge {
	return &Bridge{
		queues:     make(map[string][]telemetry.Action),
		maxPending: maxPending,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Push appends an action to its device queue.
func (b *Bridge) Push(a telemetry.Action) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := append(b.queues[a.PhysicalID], a.Clone())
	if b.maxPending > 0 && len(q) > b.maxPending {
		dropped := len(q) - b.maxPending
		b.logger.Warn("pending queue full, dropping oldest actions",
			"device", a.PhysicalID, "dropped", dropped)
		q = q[dropped:]
	}
	b.queues[a.PhysicalID] = q
}

// Pull removes and returns every queued action for a device, oldest first.
// An unknown device yields an empty slice.
func (b *Bridge) Pull(physicalID string) []telemetry.Action {
	b.mu.Lock()
	q := b.queues[physicalID]
	delete(b.queues, physicalID)
	logger := b.logger
	b.mu.Unlock()

	if q == nil {
		return []telemetry.Action{}
	}
	logger.Debug("pending actions drained", "device", physicalID, "count", len(q))
	return q
}

// Len reports how many actions are queued for a device.
func (b *Bridge) Len(physicalID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[physicalID])
}

// Create pushes the action. It never fails.
func (b *Bridge) Create(_ context.Context, a telemetry.Action) error {
	b.Push(a)
	return nil
}

// ListByDevice drains the device queue.
func (b *Bridge) ListByDevice(_ context.Context, physicalID string) ([]telemetry.Action, error) {
	return b.Pull(physicalID), nil
}

var (
	_ store.Creator[telemetry.Action] = (*Bridge)(nil)
	_ store.ActionGetter              = (*Bridge)(nil)
)
