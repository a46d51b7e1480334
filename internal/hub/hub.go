package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/classlive/classlive/internal/metrics"
)

// Hub fans out domain events to the live connections registered for their
// target scope. It holds no durable state: persistence happens before a
// broadcast is invoked, by contract.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry *Registry
	logger   zerolog.Logger
}

// New creates a Hub backed by the given registry.
func New(registry *Registry, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		logger:   logger,
	}
}

// Registry exposes the membership registry for join/leave handling.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register adds a live client to the hub and, when the client carries a
// user identity, subscribes it for recipient pushes.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.registry.Subscribe(c.ID, c.UserID)
	metrics.WebSocketConnections.Inc()

	h.logger.Debug().Str("conn_id", c.ID).Str("uid", c.UserID).Msg("client registered")
}

// Unregister removes a client from the hub and drops its membership in
// every room. Safe to call more than once; only the first call acts.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	h.registry.DropConnection(c.ID)
	metrics.WebSocketConnections.Dec()

	h.logger.Debug().Str("conn_id", c.ID).Msg("client unregistered")
}

// BroadcastToRoom delivers an event to every connection joined to a room.
// Delivery is best-effort per connection: a failure to deliver to one
// connection never blocks or fails delivery to the others.
func (h *Hub) BroadcastToRoom(roomID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("broadcast marshal failed")
		return
	}

	h.deliver(h.registry.MembersOf(roomID), data)
	metrics.BroadcastEvents.WithLabelValues("room").Inc()
}

// BroadcastToRecipient delivers an event to every connection a recipient
// currently has open. A user may have more than one open session.
func (h *Hub) BroadcastToRecipient(userID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("uid", userID).Msg("broadcast marshal failed")
		return
	}

	h.deliver(h.registry.ConnectionsOf(userID), data)
	metrics.BroadcastEvents.WithLabelValues("recipient").Inc()
}

// deliver pushes raw bytes to each named connection's send buffer. A full
// buffer means the client stopped draining; it gets disconnected rather
// than stalling the fan-out. Sends happen under the read lock so a
// concurrent Unregister cannot close a channel mid-send.
func (h *Hub) deliver(connIDs []string, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, id := range connIDs {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Str("conn_id", c.ID).Msg("send buffer full, dropping client")
		h.Unregister(c)
	}
}
