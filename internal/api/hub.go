package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/allocator"
	"github.com/nerrad567/gray-logic-installer/internal/hardware"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels.
const (
	// ChannelPlacementChanged carries PlacementChanged events.
	ChannelPlacementChanged = "central.placement_changed"

	// ChannelNotice carries degraded-result notices.
	ChannelNotice = "console.notice"
)

var knownChannels = map[string]struct{}{
	ChannelPlacementChanged: {},
	ChannelNotice:           {},
}

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
// Centrals, when set on subscribe, limits events to those centrals; a form
// editing one central only hears about that central.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Centrals []string `json:"centrals,omitempty"`
}

// PlacementChanged tells open forms that a central's ports must be rescanned.
// An empty Direction means both pools.
type PlacementChanged struct {
	CentralID string             `json:"central_id"`
	Direction hardware.Direction `json:"direction,omitempty"`
	DeviceID  string             `json:"device_id,omitempty"`
	Reason    string             `json:"reason"`
}

// Placement change reasons.
const (
	ReasonCommitted = "committed"
	ReasonRefreshed = "refreshed"
)

// PlacementChangedFromCommit builds the event for a commit announcement.
func PlacementChangedFromCommit(ev allocator.CommitEvent) PlacementChanged {
	return PlacementChanged{
		CentralID: ev.CentralID,
		Direction: ev.Direction,
		DeviceID:  ev.DeviceID,
		Reason:    ReasonCommitted,
	}
}

// Hub fans placement events out to connected installer forms.
type Hub struct {
	timing  wsTiming
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// NewHub creates a hub with no clients. cfg sets the keepalive schedule
// for every client that joins.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		timing:  newWSTiming(cfg),
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
	h.logger.Debug("websocket hub stopped", "disconnected", len(clients))
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "subject", client.identity.Subject)
}

// Unregister removes a client and stops its writer. Safe to call twice.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.shutdown()
	if existed {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all clients subscribed to the given channel,
// regardless of their central filter. It returns the number of recipients.
func (h *Hub) Broadcast(channel string, payload any) int {
	return h.broadcast(channel, "", payload)
}

// PublishPlacementChanged broadcasts ev on ChannelPlacementChanged.
func (h *Hub) PublishPlacementChanged(ev PlacementChanged) int {
	return h.broadcast(ChannelPlacementChanged, ev.CentralID, ev)
}

// PublishNotice broadcasts a degraded-result notice on ChannelNotice.
func (h *Hub) PublishNotice(n allocator.Notice) int {
	return h.broadcast(ChannelNotice, n.CentralID, n)
}

// broadcast sends to subscribers of channel whose filter admits centralID.
// An empty centralID skips the filter. Slow clients drop the frame.
func (h *Hub) broadcast(channel, centralID string, payload any) int {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(channel, centralID) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if !c.trySend(data) {
			dropped++
		}
	}
	if len(targets) > 0 {
		h.logger.Debug("websocket event sent",
			"channel", channel,
			"central_id", centralID,
			"recipients", len(targets),
			"dropped", dropped,
		)
	}
	return len(targets)
}
