package pending

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// DefaultKeyPrefix namespaces the Redis lists.
const DefaultKeyPrefix = "telemetryhub:pending:"

// RedisBridge keeps one Redis list per device. Push is RPUSH; Pull reads
// and deletes the list inside MULTI/EXEC so concurrent pulls from several
// replicas never return the same action twice.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	maxPending int
	logger     Logger
}

// NewRedisBridge creates a bridge on client. An empty prefix uses
// DefaultKeyPrefix.
func NewRedisBridge(client *redis.Client, prefix string, maxPending int) *RedisBridge {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisBridge{client: client, prefix: prefix, maxPending: maxPending, logger: noopLogger{}}
}

// SetLogger sets the logger for the bridge.
func (b *RedisBridge) SetLogger(logger Logger) {
	b.logger = logger
}

func (b *RedisBridge) key(physicalID string) string {
	return b.prefix + physicalID
}

// Create appends the action to its device list.
func (b *RedisBridge) Create(ctx context.Context, a telemetry.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return store.Internal(fmt.Errorf("marshalling action: %w", err))
	}

	key := b.key(a.PhysicalID)
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if b.maxPending > 0 {
			pipe.LTrim(ctx, key, int64(-b.maxPending), -1)
		}
		return nil
	})
	if err != nil {
		return store.Internal(fmt.Errorf("pushing pending action: %w", err))
	}
	return nil
}

// ListByDevice drains the device list atomically.
func (b *RedisBridge) ListByDevice(ctx context.Context, physicalID string) ([]telemetry.Action, error) {
	key := b.key(physicalID)

	var lrange *redis.StringSliceCmd
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, store.Internal(fmt.Errorf("draining pending actions: %w", err))
	}

	raw := lrange.Val()
	actions := make([]telemetry.Action, 0, len(raw))
	for _, item := range raw {
		var a telemetry.Action
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			// The entry is already gone from Redis; keep the rest.
			b.logger.Warn("discarding undecodable pending action", "device", physicalID, "error", err)
			continue
		}
		actions = append(actions, a)
	}
	if len(actions) > 0 {
		b.logger.Debug("pending actions drained", "device", physicalID, "count", len(actions))
	}
	return actions, nil
}

var (
	_ store.Creator[telemetry.Action] = (*RedisBridge)(nil)
	_ store.ActionGetter              = (*RedisBridge)(nil)
)
