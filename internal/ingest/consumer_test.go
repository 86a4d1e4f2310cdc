package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/bus"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/pending"
	"github.com/nerrad567/gray-logic-telemetry/internal/service"
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/store/memory"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]func(string, []byte) error
}

func (f *fakeTransport) Send(string, []byte) error { return nil }

func (f *fakeTransport) Listen(topic string, h func(string, []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]func(string, []byte) error)
	}
	f.handlers[topic] = h
	return nil
}

var testTopics = mqtt.NewTopics(config.BusTopicsConfig{
	Device:      "t/devices",
	DeviceState: "t/states",
	Event:       "t/events",
	Action:      "t/actions",
})

func setupConsumer(t *testing.T) (*Consumer, *service.Services, *pending.Bridge) {
	t.Helper()
	devices := memory.NewDeviceStore()
	states := memory.NewStateStore()
	events := memory.NewEventStore()
	bridge := pending.NewBridge(0)

	svc, err := service.New(service.Backends{
		Devices: memory.Devices(devices),
		States:  memory.States(states),
		Events:  store.EventBackends{Create: events, Get: events},
		Actions: store.ActionBackends{Create: bridge, Get: bridge},
	})
	if err != nil {
		t.Fatalf("service.New() error = %v", err)
	}
	return NewConsumer(&fakeTransport{}, testTopics, svc), svc, bridge
}

func mustEnvelope(t *testing.T, action bus.ActionType, payload any) []byte {
	t.Helper()
	data, err := bus.Marshal(action, payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return data
}

func thermostat() *telemetry.Device {
	return telemetry.NewDevice("thermo-01", uuid.New(), "Thermostat",
		telemetry.Capabilities{"reading": telemetry.NewCapability(map[string]telemetry.ValueType{
			"temperature": telemetry.TypeNumber,
		})}, nil)
}

func TestConsumer_Start(t *testing.T) {
	transport := &fakeTransport{}
	c := NewConsumer(transport, testTopics, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, topic := range []string{"t/devices", "t/states", "t/events", "t/actions/+"} {
		if _, ok := transport.handlers[topic]; !ok {
			t.Errorf("no subscription on %s", topic)
		}
	}
}

func TestConsumer_Streams(t *testing.T) {
	transport := &fakeTransport{}
	c := NewConsumer(transport, testTopics, nil)
	c.SetStreams(Streams{Actions: true})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(transport.handlers) != 1 {
		t.Errorf("subscribed to %d topics, want 1", len(transport.handlers))
	}
	if _, ok := transport.handlers["t/actions/+"]; !ok {
		t.Error("no subscription on the action wildcard")
	}

	c.SetStreams(Streams{})
	if err := c.Start(context.Background()); !errors.Is(err, ErrNoStreams) {
		t.Errorf("Start() with no streams error = %v, want ErrNoStreams", err)
	}
}

func TestConsumer_DeviceLifecycle(t *testing.T) {
	c, svc, _ := setupConsumer(t)
	ctx := context.Background()
	device := thermostat()

	payload, err := bus.FromDevice(device)
	if err != nil {
		t.Fatalf("FromDevice() error = %v", err)
	}
	if err := c.Handle("t/devices", mustEnvelope(t, bus.Create, payload)); err != nil {
		t.Fatalf("Create: Handle() error = %v", err)
	}
	got, err := svc.Devices.Get(ctx, device.ID)
	if err != nil || got.PhysicalID != "thermo-01" {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	payload.Name = "Hall thermostat"
	if err := c.Handle("t/devices", mustEnvelope(t, bus.Update, payload)); err != nil {
		t.Fatalf("Update: Handle() error = %v", err)
	}
	got, _ = svc.Devices.Get(ctx, device.ID) //nolint:errcheck // checked below
	if got == nil || got.Name != "Hall thermostat" {
		t.Errorf("after update device = %+v", got)
	}

	del := mustEnvelope(t, bus.Delete, bus.DeletePayload{ID: device.ID.String()})
	if err := c.Handle("t/devices", del); err != nil {
		t.Fatalf("Delete: Handle() error = %v", err)
	}
	if err := c.Handle("t/devices", del); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("second Delete: Handle() error = %v, want ErrNotFound", err)
	}
}

func TestConsumer_EventRevalidates(t *testing.T) {
	c, svc, _ := setupConsumer(t)
	ctx := context.Background()
	device, err := svc.Devices.Create(ctx, thermostat())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	good := bus.EventPayload{
		PhysicalID: "thermo-01",
		Name:       "reading",
		Timestamp:  "2026-03-01T09:00:00Z",
		Data:       `{"temperature":21}`,
	}
	if err := c.Handle("t/events", mustEnvelope(t, bus.Create, good)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	bad := good
	bad.Data = `{"temperature":"warm"}`
	if err := c.Handle("t/events", mustEnvelope(t, bus.Create, bad)); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("Handle(bad) error = %v, want ErrInvalidInput", err)
	}

	if err := c.Handle("t/events", mustEnvelope(t, bus.Delete, good)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Handle(delete event) error = %v, want ErrUnsupported", err)
	}

	events, _ := svc.Events.List(ctx, "thermo-01") //nolint:errcheck // memory store
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	want := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !events[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, want)
	}

	state, err := svc.States.Get(ctx, device.ID)
	if err != nil {
		t.Fatalf("state not projected: %v", err)
	}
	if n, _ := state.Values["temperature"].Number(); n != 21 {
		t.Errorf("temperature = %v, want 21", state.Values["temperature"])
	}
}

func TestConsumer_State(t *testing.T) {
	c, svc, _ := setupConsumer(t)
	id := uuid.New()

	create := bus.StatePayload{
		DeviceID:   id.String(),
		LastUpdate: "2026-03-01T09:00:00Z",
		Values:     map[string]telemetry.Value{"on": telemetry.BoolValue(true)},
	}
	if err := c.Handle("t/states", mustEnvelope(t, bus.Create, create)); err != nil {
		t.Fatalf("Create: Handle() error = %v", err)
	}

	update := create
	update.Values = map[string]telemetry.Value{"level": telemetry.NumberValue(3)}
	if err := c.Handle("t/states", mustEnvelope(t, bus.Update, update)); err != nil {
		t.Fatalf("Update: Handle() error = %v", err)
	}

	state, err := svc.States.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(state.Values) != 2 {
		t.Errorf("values = %v, want merged on and level", state.Values)
	}

	if err := c.Handle("t/states", mustEnvelope(t, bus.Delete, bus.StateDeletePayload{DeviceID: id.String()})); err != nil {
		t.Errorf("Delete: Handle() error = %v", err)
	}
}

func TestConsumer_ActionQueuesByTopic(t *testing.T) {
	c, _, bridge := setupConsumer(t)

	payload := bus.ActionPayload{
		DeviceID:  "ignored",
		Name:      "set",
		Timestamp: "2026-03-01T09:00:00Z",
		Data:      `{"target":19}`,
	}
	if err := c.Handle("t/actions/thermo-01", mustEnvelope(t, bus.Create, payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	actions := bridge.Pull("thermo-01")
	if len(actions) != 1 || actions[0].Name != "set" {
		t.Fatalf("pulled %+v, want one set action", actions)
	}
	if n, _ := actions[0].Payload["target"].Number(); n != 19 {
		t.Errorf("target = %v, want 19", actions[0].Payload["target"])
	}
}

func TestConsumer_Rejects(t *testing.T) {
	c, _, _ := setupConsumer(t)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		wantErr error
	}{
		{"not an envelope", "t/devices", []byte("hello"), bus.ErrMalformed},
		{"unknown topic", "t/other", mustEnvelope(t, bus.Create, map[string]string{}), ErrUnsupported},
		{"bad device id", "t/devices", mustEnvelope(t, bus.Delete, bus.DeletePayload{ID: "x"}), bus.ErrMalformed},
		{"nested action topic", "t/actions/a/b", mustEnvelope(t, bus.Create, bus.ActionPayload{}), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Handle(tt.topic, tt.payload); !errors.Is(err, tt.wantErr) {
				t.Errorf("Handle() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
