package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/classlive/classlive/internal/metrics"
	"github.com/classlive/classlive/internal/models"
	"github.com/classlive/classlive/internal/store"
)

// notificationPreviewRunes bounds the message preview stored with a
// notification. Truncation is the producer's job, not the delivery core's.
const notificationPreviewRunes = 140

// CreateNotificationRequest represents the create notification request body.
type CreateNotificationRequest struct {
	UserID  string          `json:"uid"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Extra   json.RawMessage `json:"extra,omitempty"`
}

// PatchNotificationRequest represents the mark-read request body. Either
// ID is set (mark one) or Action is "markAll" with UserID.
type PatchNotificationRequest struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action,omitempty"`
	UserID string `json:"uid,omitempty"`
}

// DeleteNotificationRequest represents the delete notification request body.
type DeleteNotificationRequest struct {
	ID string `json:"id"`
}

// NotificationListResponse represents the notification list response.
type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// GetNotifications handles fetching a recipient's notifications, newest
// first.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		h.Error(w, http.StatusBadRequest, "missing uid")
		return
	}

	notifications, err := h.store.ListNotificationsByRecipient(r.Context(), uid, time.Time{})
	if err != nil {
		h.logger.Error().Err(err).Str("uid", uid).Msg("failed to list notifications")
		h.Error(w, http.StatusInternalServerError, "failed to fetch notifications")
		return
	}

	// Store order is chronological; the bell shows newest first.
	out := make([]models.Notification, 0, len(notifications))
	for i := len(notifications) - 1; i >= 0; i-- {
		out = append(out, notifications[i])
	}

	h.JSON(w, http.StatusOK, NotificationListResponse{Notifications: out})
}

// CreateNotification handles producing a notification: persist, then push
// to any open sessions the recipient has. Streams served by the change
// feed pick the insert up on their own.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.UserID == "" || req.Title == "" {
		h.Error(w, http.StatusBadRequest, "missing required fields: uid, title")
		return
	}

	n := &models.Notification{
		UserID:  req.UserID,
		Title:   req.Title,
		Message: truncatePreview(req.Message),
		Extra:   req.Extra,
	}

	if err := h.store.AppendNotification(r.Context(), n); err != nil {
		h.logger.Error().Err(err).Str("uid", req.UserID).Msg("failed to store notification")
		h.Error(w, http.StatusInternalServerError, "failed to store notification")
		return
	}

	metrics.NotificationsCreated.Inc()
	h.hub.BroadcastToRecipient(n.UserID, notification(*n))

	h.JSON(w, http.StatusCreated, n)
}

// PatchNotifications handles marking notifications read, singly or in
// bulk for one recipient.
func (h *Handler) PatchNotifications(w http.ResponseWriter, r *http.Request) {
	var req PatchNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ID != "" {
		err := h.store.MarkNotificationRead(r.Context(), req.ID)
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Str("id", req.ID).Msg("failed to mark notification read")
			h.Error(w, http.StatusInternalServerError, "failed to update notification")
			return
		}
		h.JSON(w, http.StatusOK, map[string]string{"message": "Marked as read"})
		return
	}

	if req.Action == "markAll" && req.UserID != "" {
		count, err := h.store.MarkAllNotificationsRead(r.Context(), req.UserID)
		if err != nil {
			h.logger.Error().Err(err).Str("uid", req.UserID).Msg("failed to mark all notifications read")
			h.Error(w, http.StatusInternalServerError, "failed to update notifications")
			return
		}
		h.JSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Marked %d notifications", count)})
		return
	}

	h.Error(w, http.StatusBadRequest, "invalid payload")
}

// DeleteNotifications handles removing a notification by id.
func (h *Handler) DeleteNotifications(w http.ResponseWriter, r *http.Request) {
	var req DeleteNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.Error(w, http.StatusBadRequest, "missing id")
		return
	}

	existed, err := h.store.DeleteNotification(r.Context(), req.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("id", req.ID).Msg("failed to delete notification")
		h.Error(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}
	if !existed {
		h.Error(w, http.StatusNotFound, "notification not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

// truncatePreview bounds a notification message to the preview length
// without splitting a rune.
func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= notificationPreviewRunes {
		return s
	}
	return string(runes[:notificationPreviewRunes])
}
