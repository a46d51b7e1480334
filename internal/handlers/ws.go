package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/classlive/classlive/internal/hub"
	"github.com/classlive/classlive/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client runs on a separate origin in development;
	// cross-origin policy is enforced upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsOpTimeout bounds store operations triggered by a socket frame.
const wsOpTimeout = 10 * time.Second

// ServeWS upgrades the connection and bridges it to the hub. An optional
// uid query parameter registers the connection for recipient pushes.
// Joining rooms always requires an explicit join_classroom frame.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), uid, h.hub, conn, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(h.handleClientEvent)
}

// handleClientEvent validates and dispatches one inbound frame. Malformed
// or unauthorized frames answer the sender with an error frame and touch
// nothing.
func (h *Handler) handleClientEvent(c *hub.Client, raw []byte) {
	var ev clientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.sendError(c, "invalid event payload")
		return
	}

	switch ev.Type {
	case eventJoinClassroom:
		if ev.RoomID == "" {
			h.sendError(c, "join_classroom requires roomId")
			return
		}
		h.hub.Registry().Join(c.ID, ev.RoomID)
		h.logger.Debug().Str("conn_id", c.ID).Str("room_id", ev.RoomID).Msg("joined classroom")

	case eventLeaveClassroom:
		if ev.RoomID == "" {
			h.sendError(c, "leave_classroom requires roomId")
			return
		}
		h.hub.Registry().Leave(c.ID, ev.RoomID)
		h.logger.Debug().Str("conn_id", c.ID).Str("room_id", ev.RoomID).Msg("left classroom")

	case eventSendMessage:
		if ev.RoomID == "" || ev.Author == nil || ev.Author.ID == "" || ev.Author.Name == "" || ev.Text == "" {
			h.sendError(c, "send_message requires roomId, author and text")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
		defer cancel()
		if _, err := h.createChatMessage(ctx, ev.RoomID, *ev.Author, ev.Text); err != nil {
			h.logger.Error().Err(err).Str("conn_id", c.ID).Msg("failed to store message from socket")
			h.sendError(c, "failed to store message")
		}

	case eventDeleteMessage:
		if ev.MessageID == "" || ev.UserID == "" {
			h.sendError(c, "delete_message requires messageId and userId")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
		defer cancel()
		err := h.deleteChatMessage(ctx, ev.MessageID, ev.UserID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.sendError(c, "message not found")
		case errors.Is(err, errForbidden):
			h.sendError(c, "only the author can delete a message")
		case err != nil:
			h.logger.Error().Err(err).Str("conn_id", c.ID).Msg("failed to delete message from socket")
			h.sendError(c, "failed to delete message")
		}

	default:
		h.sendError(c, "unknown event type")
	}
}

// sendError answers a single client with an error frame.
func (h *Handler) sendError(c *hub.Client, message string) {
	data, err := json.Marshal(errorFrame(message))
	if err != nil {
		return
	}
	c.Deliver(data)
}
