package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Stream message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// Stream channels. A client subscribes to a whole channel or to one device
// with "<channel>:<key>". The key is the physical id for events and the
// device id for state changes.
const (
	ChannelEvent        = "device.event"
	ChannelStateChanged = "device.state_changed"
)

// WSMessage is one frame on the live stream, in either direction.
//
// Clients send {"type":"subscribe","id":"1","channels":["device.event:pump-7"]}.
// The hub sends events with Channel, Key and Data set.
type WSMessage struct {
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	Key       string   `json:"key,omitempty"`
	Channels  []string `json:"channels,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Data      any      `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// EventMessage is the data of a device.event frame.
type EventMessage struct {
	DeviceID *string         `json:"device_id,omitempty"`
	Event    telemetry.Event `json:"event"`
}

// parseSubscription splits "channel[:key]" and checks the channel exists.
func parseSubscription(s string) (channel, key string, ok bool) {
	channel, key, _ = strings.Cut(s, ":")
	switch channel {
	case ChannelEvent, ChannelStateChanged:
		return channel, key, true
	default:
		return "", "", false
	}
}

// Hub fans stored events and state changes out to stream clients. It is
// registered as an observer on the event and state services.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
	dropped atomic.Uint64
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

// Unregister removes a client. Only the caller that removes it from the
// map closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Debug("stream client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were discarded because a client's
// buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Broadcast sends data to every client subscribed to channel or to
// channel:key. Client locks are taken only after the hub lock is released.
func (h *Hub) Broadcast(channel, key string, data any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		Channel:   channel,
		Key:       key,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      data,
	})
	if err != nil {
		h.logger.Error("failed to marshal stream frame", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	keyed := channel + ":" + key
	for _, client := range clients {
		if !client.subscribed(channel) && (key == "" || !client.subscribed(keyed)) {
			continue
		}
		if !client.trySend(frame) {
			h.dropped.Add(1)
		}
	}
}

// EventRecorded streams a stored event keyed by its physical id.
func (h *Hub) EventRecorded(_ context.Context, device *telemetry.Device, ev telemetry.Event) {
	msg := EventMessage{Event: ev}
	if device != nil {
		id := device.ID.String()
		msg.DeviceID = &id
	}
	h.Broadcast(ChannelEvent, ev.PhysicalID, msg)
}

// StateChanged streams a state snapshot keyed by device id.
func (h *Hub) StateChanged(_ context.Context, state *telemetry.DeviceState) {
	h.Broadcast(ChannelStateChanged, state.DeviceID.String(), state)
}

// handleWebSocket upgrades the connection. Each ?channel= parameter is
// subscribed before the first frame; unknown channels are ignored.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn)
	for _, sub := range r.URL.Query()["channel"] {
		if _, _, ok := parseSubscription(sub); ok {
			client.subscriptions[sub] = struct{}{}
		}
	}

	s.hub.Register(client)
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}
