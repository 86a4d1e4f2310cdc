package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/bus"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/service"
)

// handleTimeout bounds the service calls made for one message.
const handleTimeout = 10 * time.Second

// ErrUnsupported is returned for envelopes whose action does not apply to
// the topic they arrived on.
var ErrUnsupported = errors.New("ingest: unsupported message")

// Logger is the logging interface used by the adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Streams selects which topics a consumer listens to.
//
// A hub must not consume an entity it also publishes, or its own writes
// would come back to it.
type Streams struct {
	Devices bool
	States  bool
	Events  bool
	Actions bool
}

// AllStreams listens to every topic.
func AllStreams() Streams {
	return Streams{Devices: true, States: true, Events: true, Actions: true}
}

// ErrNoStreams is returned by Start when no stream is selected.
var ErrNoStreams = errors.New("ingest: no streams selected")

// Consumer applies bus envelopes to the local services.
//
// Handler errors are returned to the transport, which logs them; a bad
// message never stops the subscription.
type Consumer struct {
	transport bus.Transport
	topics    mqtt.Topics
	services  *service.Services
	streams   Streams
	logger    Logger
	ctx       context.Context
}

// NewConsumer returns a consumer for the configured topics.
func NewConsumer(transport bus.Transport, topics mqtt.Topics, services *service.Services) *Consumer {
	return &Consumer{
		transport: transport,
		topics:    topics,
		services:  services,
		streams:   AllStreams(),
		logger:    noopLogger{},
		ctx:       context.Background(),
	}
}

// SetLogger sets the logger.
func (c *Consumer) SetLogger(logger Logger) {
	c.logger = logger
}

// SetStreams restricts the topics Start subscribes to.
func (c *Consumer) SetStreams(s Streams) {
	c.streams = s
}

// Topics returns the topics Start subscribes to.
func (c *Consumer) Topics() []string {
	var topics []string
	if c.streams.Devices {
		topics = append(topics, c.topics.Devices())
	}
	if c.streams.States {
		topics = append(topics, c.topics.DeviceStates())
	}
	if c.streams.Events {
		topics = append(topics, c.topics.Events())
	}
	if c.streams.Actions {
		topics = append(topics, c.topics.AllActions())
	}
	return topics
}

// Start subscribes to the selected topics; actions use the per-device
// wildcard. ctx bounds every handled message.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx = ctx
	topics := c.Topics()
	if len(topics) == 0 {
		return ErrNoStreams
	}
	for _, topic := range topics {
		if err := c.transport.Listen(topic, c.Handle); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	c.logger.Info("bus consumer started", "topics", topics)
	return nil
}

// Handle decodes one message and dispatches it by topic.
func (c *Consumer) Handle(topic string, payload []byte) error {
	env, err := bus.Unmarshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.ctx, handleTimeout)
	defer cancel()

	switch topic {
	case c.topics.Devices():
		return c.handleDevice(ctx, env)
	case c.topics.DeviceStates():
		return c.handleState(ctx, env)
	case c.topics.Events():
		return c.handleEvent(ctx, env)
	}
	if physicalID, ok := c.topics.ActionDevice(topic); ok {
		return c.handleAction(ctx, physicalID, env)
	}
	return fmt.Errorf("%w: topic %s", ErrUnsupported, topic)
}

func (c *Consumer) handleDevice(ctx context.Context, env bus.Envelope) error {
	if env.ActionType == bus.Delete {
		var p bus.DeletePayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return fmt.Errorf("%w: device id: %w", bus.ErrMalformed, err)
		}
		return c.services.Devices.Delete(ctx, id)
	}

	var p bus.DevicePayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	device, err := p.Device()
	if err != nil {
		return err
	}

	if env.ActionType == bus.Create {
		_, err = c.services.Devices.Create(ctx, device)
		return err
	}
	_, err = c.services.Devices.Update(ctx, device.ID, service.DeviceUpdate{
		PhysicalID: device.PhysicalID,
		Name:       device.Name,
		Events:     device.Events,
		Actions:    device.Actions,
	})
	return err
}

func (c *Consumer) handleState(ctx context.Context, env bus.Envelope) error {
	if env.ActionType == bus.Delete {
		var p bus.StateDeletePayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		id, err := uuid.Parse(p.DeviceID)
		if err != nil {
			return fmt.Errorf("%w: device id: %w", bus.ErrMalformed, err)
		}
		return c.services.States.Delete(ctx, id)
	}

	var p bus.StatePayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	state, err := p.State()
	if err != nil {
		return err
	}

	if env.ActionType == bus.Create {
		_, err = c.services.States.Create(ctx, state.DeviceID, state.Values, state.LastUpdate)
		return err
	}
	_, err = c.services.States.Update(ctx, state.DeviceID, state.Values)
	return err
}

// handleEvent re-validates the encoded payload against the local schema.
func (c *Consumer) handleEvent(ctx context.Context, env bus.Envelope) error {
	if env.ActionType != bus.Create {
		return fmt.Errorf("%w: event %s", ErrUnsupported, env.ActionType)
	}
	var p bus.EventPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	at, err := p.Time()
	if err != nil {
		return err
	}
	event, err := c.services.Events.Ingest(ctx, p.PhysicalID, p.Name, []byte(p.Data), at)
	if err != nil {
		return err
	}
	c.logger.Debug("event ingested from bus", "physical_id", p.PhysicalID, "event_id", event.ID)
	return nil
}

// handleAction queues an action addressed to physicalID. The topic wins
// over the payload's device id.
func (c *Consumer) handleAction(ctx context.Context, physicalID string, env bus.Envelope) error {
	if env.ActionType != bus.Create {
		return fmt.Errorf("%w: action %s", ErrUnsupported, env.ActionType)
	}
	var p bus.ActionPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	action, err := p.Action()
	if err != nil {
		return err
	}
	action.PhysicalID = physicalID
	return c.services.Actions.Deliver(ctx, action)
}
