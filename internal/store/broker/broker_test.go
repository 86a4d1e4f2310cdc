package broker

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
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

type sent struct {
	topic   string
	payload []byte
}

// mockTransport records every Send.
type mockTransport struct {
	mu      sync.Mutex
	sent    []sent
	sendErr error
}

func (m *mockTransport) Send(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sent{topic: topic, payload: payload})
	return nil
}

func (m *mockTransport) Listen(string, func(string, []byte) error) error { return nil }

func (m *mockTransport) last(t *testing.T) (string, bus.Envelope) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	msg := m.sent[len(m.sent)-1]
	env, err := bus.Unmarshal(msg.payload)
	if err != nil {
		t.Fatalf("sent message is not an envelope: %v", err)
	}
	return msg.topic, env
}

func newTestWriter() (*Writer, *mockTransport) {
	transport := &mockTransport{}
	topics := mqtt.NewTopics(config.BusTopicsConfig{
		Device:      "t/devices",
		DeviceState: "t/states",
		Event:       "t/events",
		Action:      "t/actions",
	})
	return New(transport, topics), transport
}

func TestDeviceWriter(t *testing.T) {
	w, transport := newTestWriter()
	ctx := context.Background()
	device := telemetry.NewDevice("thermo-01", uuid.New(), "Thermostat", nil, nil)

	tests := []struct {
		name   string
		call   func() error
		action bus.ActionType
	}{
		{"create", func() error { return w.Devices().Create(ctx, device) }, bus.Create},
		{"update", func() error { return w.Devices().Update(ctx, device) }, bus.Update},
		{"delete", func() error { return w.Devices().DeleteByID(ctx, device.ID) }, bus.Delete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("error = %v", err)
			}
			topic, env := transport.last(t)
			if topic != "t/devices" {
				t.Errorf("topic = %q, want t/devices", topic)
			}
			if env.ActionType != tt.action {
				t.Errorf("action_type = %q, want %q", env.ActionType, tt.action)
			}
		})
	}

	_, env := transport.last(t)
	var del bus.DeletePayload
	if err := env.Decode(&del); err != nil || del.ID != device.ID.String() {
		t.Errorf("delete payload = %+v, %v", del, err)
	}
}

func TestStateWriter(t *testing.T) {
	w, transport := newTestWriter()
	state := telemetry.NewDeviceState(uuid.New(), telemetry.Payload{"on": telemetry.BoolValue(true)}, time.Now())

	if err := w.States().Update(context.Background(), state); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	topic, env := transport.last(t)
	if topic != "t/states" || env.ActionType != bus.Update {
		t.Errorf("sent %s %s, want t/states Update", topic, env.ActionType)
	}

	if err := w.States().DeleteByID(context.Background(), state.DeviceID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	_, env = transport.last(t)
	var del bus.StateDeletePayload
	if err := env.Decode(&del); err != nil || del.DeviceID != state.DeviceID.String() {
		t.Errorf("delete payload = %+v, %v", del, err)
	}
}

func TestEventWriter(t *testing.T) {
	w, transport := newTestWriter()
	event := telemetry.Event{
		ID:         uuid.New(),
		PhysicalID: "thermo-01",
		Name:       "reading",
		Timestamp:  time.Now(),
		Payload:    telemetry.Payload{"temperature": telemetry.NumberValue(21)},
	}

	if err := w.Events().Create(context.Background(), event); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	topic, env := transport.last(t)
	if topic != "t/events" {
		t.Errorf("topic = %q, want t/events", topic)
	}
	var p bus.EventPayload
	if err := env.Decode(&p); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.PhysicalID != "thermo-01" || p.Name != "reading" || p.Data != `{"temperature":21}` {
		t.Errorf("payload = %+v", p)
	}
}

func TestActionWriter_PerDeviceTopic(t *testing.T) {
	w, transport := newTestWriter()
	action := telemetry.Action{ID: uuid.New(), PhysicalID: "thermo-01", Name: "set", Timestamp: time.Now()}

	if err := w.Actions().Create(context.Background(), action); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	topic, _ := transport.last(t)
	if topic != "t/actions/thermo-01" {
		t.Errorf("topic = %q, want t/actions/thermo-01", topic)
	}
}

func TestWriter_Errors(t *testing.T) {
	w, transport := newTestWriter()
	transport.sendErr = errors.New("broker down")

	err := w.Devices().DeleteByID(context.Background(), uuid.New())
	detail, ok := store.AsInternal(err)
	if !ok {
		t.Fatalf("error = %v, want InternalError", err)
	}
	if detail == "" {
		t.Error("internal detail is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	transport.sendErr = nil
	if err := w.Events().Create(ctx, telemetry.Event{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Create() with cancelled context error = %v, want context.Canceled", err)
	}
}
