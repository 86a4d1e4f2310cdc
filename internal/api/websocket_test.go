package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_EventBroadcast(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	createSensor(t, srv.Handler())

	conn := dialWS(t, ts, "?channel="+ChannelEvent+":sensor-01")
	waitForClients(t, srv.Hub(), 1)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/v1/events/sensor-01/reading",
		`{"temperature": 19, "door_open": true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.Channel != ChannelEvent || msg.Key != "sensor-01" {
		t.Fatalf("message = %+v, want device.event for sensor-01", msg)
	}
	data, _ := json.Marshal(msg.Data) //nolint:errcheck // re-encoding a decoded value
	if !strings.Contains(string(data), `"reading"`) || !strings.Contains(string(data), `"device_id"`) {
		t.Errorf("data %s does not carry the event and device id", data)
	}
}

func TestWebSocket_SubscribeAndPing(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "")
	waitForClients(t, srv.Hub(), 1)

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "0", Channels: []string{"device.unknown"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError || msg.ID != "0" {
		t.Fatalf("unknown channel reply = %+v, want error", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Channels: []string{ChannelStateChanged}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeResponse || msg.ID != "1" || len(msg.Channels) != 1 {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "2"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypePong || msg.ID != "2" {
		t.Fatalf("ping reply = %+v", msg)
	}

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/v1/device_states",
		`{"device_id":"6f1c1f5e-1b7a-4a55-9a3b-2a9f0f7d1c11","values":{"on":true}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create state status = %d", rec.Code)
	}
	if msg := readMessage(t, conn); msg.Channel != ChannelStateChanged {
		t.Errorf("broadcast = %+v, want state change", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "3"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v, want error", msg)
	}
}

func TestHub_BroadcastFiltersByKey(t *testing.T) {
	hub := NewHub(testServerWSConfig(), testLogger())

	all := newWSClient(hub, nil)
	all.subscriptions[ChannelEvent] = struct{}{}
	one := newWSClient(hub, nil)
	one.subscriptions[ChannelEvent+":a"] = struct{}{}
	none := newWSClient(hub, nil)
	for _, c := range []*WSClient{all, one, none} {
		hub.Register(c)
	}

	hub.Broadcast(ChannelEvent, "b", map[string]string{"k": "v"})

	if len(all.send) != 1 {
		t.Errorf("channel subscriber got %d messages, want 1", len(all.send))
	}
	if len(one.send) != 0 {
		t.Errorf("other-key subscriber got %d messages, want 0", len(one.send))
	}
	if len(none.send) != 0 {
		t.Errorf("unsubscribed client got %d messages, want 0", len(none.send))
	}

	hub.Broadcast(ChannelEvent, "a", nil)
	if len(one.send) != 1 {
		t.Errorf("keyed subscriber got %d messages, want 1", len(one.send))
	}

	hub.Unregister(all)
	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}
}

func TestHub_CountsDroppedFrames(t *testing.T) {
	hub := NewHub(testServerWSConfig(), testLogger())
	slow := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{ChannelEvent: {}}}
	hub.Register(slow)

	hub.Broadcast(ChannelEvent, "a", nil)
	hub.Broadcast(ChannelEvent, "a", nil)
	hub.Broadcast(ChannelEvent, "a", nil)

	if got := hub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestParseSubscription(t *testing.T) {
	tests := []struct {
		in      string
		channel string
		key     string
		ok      bool
	}{
		{ChannelEvent, ChannelEvent, "", true},
		{ChannelEvent + ":pump-7", ChannelEvent, "pump-7", true},
		{ChannelStateChanged + ":6f1c1f5e-1b7a-4a55-9a3b-2a9f0f7d1c11", ChannelStateChanged, "6f1c1f5e-1b7a-4a55-9a3b-2a9f0f7d1c11", true},
		{"device.unknown", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			channel, key, ok := parseSubscription(tt.in)
			if channel != tt.channel || key != tt.key || ok != tt.ok {
				t.Errorf("parseSubscription(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, channel, key, ok, tt.channel, tt.key, tt.ok)
			}
		})
	}
}
