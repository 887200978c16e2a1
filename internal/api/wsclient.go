package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-installer/internal/auth"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
)

const (
	// wsSendBufferSize is the per-client outbound frame buffer.
	wsSendBufferSize = 64

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// CORS middleware already vets the origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsTiming holds the keepalive schedule derived from config.
type wsTiming struct {
	pingEvery time.Duration
	readWait  time.Duration // ping interval plus pong grace
	writeWait time.Duration
	maxFrame  int64
}

func newWSTiming(cfg config.WebSocketConfig) wsTiming {
	ping := time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	pong := time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return wsTiming{
		pingEvery: ping,
		readWait:  ping + pong,
		writeWait: pong,
		maxFrame:  int64(cfg.MaxMessageSize),
	}
}

// WSClient is one connected installer form.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	timing   wsTiming
	identity auth.Identity

	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	centrals      map[string]struct{} // nil means every central
}

func newWSClient(hub *Hub, conn *websocket.Conn, id auth.Identity, timing wsTiming) *WSClient {
	return &WSClient{
		hub:           hub,
		conn:          conn,
		timing:        timing,
		identity:      id,
		send:          make(chan []byte, wsSendBufferSize),
		done:          make(chan struct{}),
		subscriptions: make(map[string]struct{}),
	}
}

// handleWebSocket upgrades the request. With auth enabled a single-use
// ticket from POST /auth/ws-ticket must be passed as ?ticket=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var id auth.Identity
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		var ok bool
		if id, ok = s.tickets.redeem(ticket); !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, id, s.hub.timing)
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// shutdown stops the writer and closes the socket. Idempotent.
func (c *WSClient) shutdown() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// trySend queues data without blocking. It reports false when the client
// is gone or its buffer is full.
func (c *WSClient) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) extendRead() {
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetReadDeadline(time.Now().Add(c.timing.readWait))
}

func (c *WSClient) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(c.timing.maxFrame)
	c.extendRead()
	c.conn.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err, "subject", c.identity.Subject)
			}
			return
		}
		c.extendRead()
		c.handleMessage(frame)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.timing.pingEvery)
	defer ticker.Stop()

	write := func(kind int, data []byte) bool {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(c.timing.writeWait))
		return c.conn.WriteMessage(kind, data) == nil
	}

	for {
		select {
		case <-c.done:
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case frame := <-c.send:
			if !write(websocket.TextMessage, frame) {
				c.shutdown()
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				c.shutdown()
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeSubscription re-decodes the generic payload.
func decodeSubscription(payload any) (WSSubscribePayload, bool) {
	var sub WSSubscribePayload
	raw, err := json.Marshal(payload)
	if err != nil {
		return sub, false
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, false
	}
	return sub, true
}

func (c *WSClient) handleSubscribe(msg WSMessage) {
	sub, ok := decodeSubscription(msg.Payload)
	if !ok {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}
	for _, ch := range sub.Channels {
		if _, known := knownChannels[ch]; !known {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	if len(sub.Centrals) > 0 {
		c.centrals = make(map[string]struct{}, len(sub.Centrals))
		for _, id := range sub.Centrals {
			c.centrals[id] = struct{}{}
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed",
		"channels", sub.Channels,
		"centrals", sub.Centrals,
		"subject", c.identity.Subject,
	)

	resp := map[string]any{"subscribed": sub.Channels}
	if len(sub.Centrals) > 0 {
		resp["centrals"] = sub.Centrals
	}
	c.reply(msg.ID, WSTypeResponse, resp)
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	sub, ok := decodeSubscription(msg.Payload)
	if !ok {
		c.sendError(msg.ID, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

// wants reports whether the client subscribed to channel and, when
// centralID is set, whether its central filter admits it.
func (c *WSClient) wants(channel, centralID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	if centralID == "" || c.centrals == nil {
		return true
	}
	_, ok := c.centrals[centralID]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
