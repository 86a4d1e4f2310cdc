package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

// WSClient is one stream connection.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
}

// keepalive returns the ping interval and pong wait, 30s and 10s when unset.
func keepalive(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping, pong = 30*time.Second, 10*time.Second
	if cfg.PingInterval > 0 {
		ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	return ping, pong
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	ping, pong := keepalive(cfg)
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(ping + pong))
	}
	extend() //nolint:errcheck // best effort
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read error", "error", err)
			}
			return
		}
		// Application frames count as liveness too.
		extend() //nolint:errcheck // best effort
		c.handle(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ping, pong := keepalive(cfg)
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // write error reported below
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(WSMessage{Type: WSTypeError, Error: "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.updateSubscriptions(msg)
	case WSTypePing:
		c.reply(WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		c.reply(WSMessage{Type: WSTypeError, ID: msg.ID, Error: "unknown message type: " + msg.Type})
	}
}

// updateSubscriptions applies a subscribe or unsubscribe frame. Every
// entry must name a known channel, otherwise nothing changes.
func (c *WSClient) updateSubscriptions(msg WSMessage) {
	if len(msg.Channels) == 0 {
		c.reply(WSMessage{Type: WSTypeError, ID: msg.ID, Error: "channels is required"})
		return
	}
	for _, sub := range msg.Channels {
		if _, _, ok := parseSubscription(sub); !ok {
			c.reply(WSMessage{Type: WSTypeError, ID: msg.ID, Error: "unknown channel: " + sub})
			return
		}
	}

	c.mu.Lock()
	for _, sub := range msg.Channels {
		if msg.Type == WSTypeSubscribe {
			c.subscriptions[sub] = struct{}{}
		} else {
			delete(c.subscriptions, sub)
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("stream subscriptions changed", "type", msg.Type, "channels", msg.Channels)
	c.reply(WSMessage{Type: WSTypeResponse, ID: msg.ID, Channels: msg.Channels})
}

func (c *WSClient) reply(msg WSMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(frame)
}

// trySend queues a frame without blocking. It reports false when the
// buffer is full or the client has already been closed.
func (c *WSClient) trySend(frame []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *WSClient) subscribed(sub string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[sub]
	return ok
}
