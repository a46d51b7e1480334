package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/classlive/classlive/internal/metrics"
	"github.com/classlive/classlive/internal/models"
)

// sendFunc writes one SSE data frame.
type sendFunc func(event any)

// NotificationStream serves a recipient's notification feed over SSE.
// The change feed is used when the store supports one; otherwise the
// stream falls back to time-windowed polling. A feed that fails — at
// open or mid-stream — degrades to polling after an error frame rather
// than ending delivery. Either way the stream is torn down through the
// request context on every exit path.
func (h *Handler) NotificationStream(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		h.Error(w, http.StatusBadRequest, "missing uid")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(event any) {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to marshal stream event")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	send(map[string]string{"type": "hello", "uid": uid})

	if h.feed != nil {
		ch, err := h.feed.WatchNotifications(r.Context(), uid)
		if err == nil {
			mark, lost := h.streamFromFeed(r, uid, send, ch)
			if !lost {
				return
			}
			// Polling resumes from the point the feed last delivered,
			// so nothing created during the gap is missed.
			h.logger.Warn().Str("uid", uid).Msg("change feed closed, polling instead")
			send(errorFrame("change feed closed"))
			h.streamFromPolling(r, uid, send, mark)
			return
		}
		h.logger.Warn().Err(err).Str("uid", uid).Msg("change feed unavailable, polling instead")
		send(errorFrame("change feed unavailable"))
	}

	h.streamFromPolling(r, uid, send, time.Time{})
}

// streamFromFeed relays change-feed events until the client disconnects
// or the feed closes. It reports the watermark a polling fallback should
// resume from and whether the feed was lost rather than the client
// leaving.
func (h *Handler) streamFromFeed(r *http.Request, uid string, send sendFunc, ch <-chan models.Notification) (time.Time, bool) {
	metrics.NotificationStreams.WithLabelValues("feed").Inc()
	defer metrics.NotificationStreams.WithLabelValues("feed").Dec()

	ctx := r.Context()
	mark := time.Now().UTC()
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return mark, true
			}
			send(notification(n))
			if n.CreatedAt.After(mark) {
				mark = n.CreatedAt
			}
		case <-ctx.Done():
			return mark, false
		}
	}
}

// streamFromPolling discovers new notifications on a fixed interval,
// starting from watermark. A zero watermark makes the first tick pick
// up anything created before the stream opened, so a notification
// produced while the recipient had no stream still arrives within one
// interval. A failed poll keeps the old watermark: records created
// during the failure are delivered on the next successful tick instead
// of being dropped.
func (h *Handler) streamFromPolling(r *http.Request, uid string, send sendFunc, watermark time.Time) {
	metrics.NotificationStreams.WithLabelValues("poll").Inc()
	defer metrics.NotificationStreams.WithLabelValues("poll").Dec()

	ctx := r.Context()
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	// Rows stamped at or past the advancing watermark come back again
	// on the next tick; remembering their ids keeps delivery to
	// exactly once without risking a drop at the boundary.
	boundary := make(map[string]struct{})
	for {
		select {
		case <-ticker.C:
			// Taken before the query: a record created while the query
			// runs lands after next and gets picked up on the next tick
			// rather than silently skipped.
			next := time.Now().UTC()
			notifications, err := h.store.ListNotificationsByRecipient(ctx, uid, watermark)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				h.logger.Error().Err(err).Str("uid", uid).Msg("notification poll failed")
				send(errorFrame("poll failed"))
				continue
			}
			for i := range notifications {
				if _, seen := boundary[notifications[i].ID]; seen {
					continue
				}
				send(notification(notifications[i]))
			}
			boundary = make(map[string]struct{})
			for i := range notifications {
				if !notifications[i].CreatedAt.Before(next) {
					boundary[notifications[i].ID] = struct{}{}
				}
			}
			watermark = next
		case <-ctx.Done():
			return
		}
	}
}
