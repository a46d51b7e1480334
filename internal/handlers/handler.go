package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classlive/classlive/internal/hub"
	"github.com/classlive/classlive/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store store.DataStore
	feed  store.NotificationFeed // nil when the store is poll-only
	hub   *hub.Hub
	redis *redis.Client // nil when rate limiting/caching is not configured

	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewHandler creates a new Handler. The change-feed capability of the
// store is probed once here; request handling never branches on type.
func NewHandler(st store.DataStore, h *hub.Hub, redisClient *redis.Client, pollInterval time.Duration, logger zerolog.Logger) *Handler {
	feed, _ := st.(store.NotificationFeed)
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &Handler{
		store:        st,
		feed:         feed,
		hub:          h,
		redis:        redisClient,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
