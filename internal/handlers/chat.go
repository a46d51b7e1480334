package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/classlive/classlive/internal/metrics"
	"github.com/classlive/classlive/internal/models"
	"github.com/classlive/classlive/internal/store"
)

// errForbidden marks an authorization mismatch on delete.
var errForbidden = errors.New("author mismatch")

const maxMessageTextBytes = 4096

// PostChatRequest represents the send message request body.
type PostChatRequest struct {
	ClassID string        `json:"classId"`
	Author  models.Author `json:"author"`
	Text    string        `json:"text"`
}

// GetChatHistory handles fetching a classroom's chat history in
// chronological order.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	classID := r.URL.Query().Get("classId")
	if classID == "" {
		h.Error(w, http.StatusBadRequest, "missing classId")
		return
	}

	messages, err := h.store.ListMessagesByRoom(r.Context(), classID)
	if err != nil {
		h.logger.Error().Err(err).Str("class_id", classID).Msg("failed to list chat messages")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	if messages == nil {
		messages = []models.ChatMessage{}
	}
	h.JSON(w, http.StatusOK, messages)
}

// PostChatMessage handles sending a chat message: persist first, then
// broadcast to the room. A store failure leaves no artifact and
// triggers no broadcast.
func (h *Handler) PostChatMessage(w http.ResponseWriter, r *http.Request) {
	var req PostChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.ClassID == "" || req.Author.ID == "" || req.Author.Name == "" || req.Text == "" {
		h.Error(w, http.StatusBadRequest, "missing required fields: classId, author object, text")
		return
	}
	if len(req.Text) > maxMessageTextBytes {
		h.Error(w, http.StatusUnprocessableEntity, "text too long (max 4096 bytes)")
		return
	}

	msg, err := h.createChatMessage(r.Context(), req.ClassID, req.Author, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("class_id", req.ClassID).Msg("failed to store chat message")
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// DeleteChatMessage handles deleting a chat message. Only the stored
// author may delete; anyone else gets 403 and the store stays untouched.
func (h *Handler) DeleteChatMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.URL.Query().Get("messageId")
	userID := r.URL.Query().Get("userId")
	if messageID == "" || userID == "" {
		h.Error(w, http.StatusBadRequest, "missing messageId or userId")
		return
	}

	err := h.deleteChatMessage(r.Context(), messageID, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.Error(w, http.StatusNotFound, "message not found")
	case errors.Is(err, errForbidden):
		h.Error(w, http.StatusForbidden, "only the author can delete a message")
	case err != nil:
		h.logger.Error().Err(err).Str("message_id", messageID).Msg("failed to delete chat message")
		h.Error(w, http.StatusInternalServerError, "failed to delete message")
	default:
		h.JSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
	}
}

// createChatMessage persists a message and fans it out to the room, in
// that order. Shared by the HTTP handler and the WebSocket gateway.
func (h *Handler) createChatMessage(ctx context.Context, roomID string, author models.Author, text string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		RoomID:   roomID,
		AuthorID: author.ID,
		Author:   author,
		Text:     text,
	}

	if err := h.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	metrics.MessagesPosted.Inc()
	h.hub.BroadcastToRoom(roomID, newMessage(msg))
	return msg, nil
}

// deleteChatMessage verifies authorship, deletes, and broadcasts the
// deletion. Shared by the HTTP handler and the WebSocket gateway.
func (h *Handler) deleteChatMessage(ctx context.Context, messageID, userID string) error {
	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return store.ErrNotFound
	}
	if msg.AuthorID != userID {
		return errForbidden
	}

	existed, err := h.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !existed {
		return store.ErrNotFound
	}

	metrics.MessagesDeleted.Inc()
	h.hub.BroadcastToRoom(msg.RoomID, messageDeleted(messageID))
	return nil
}
