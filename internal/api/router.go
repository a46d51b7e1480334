package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classlive/classlive/internal/api/middleware"
	"github.com/classlive/classlive/internal/config"
	"github.com/classlive/classlive/internal/handlers"
	"github.com/classlive/classlive/internal/hub"
	"github.com/classlive/classlive/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, st store.DataStore, h *hub.Hub, redisClient *redis.Client, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (only when Redis is configured)
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger, middleware.RateLimiterConfig{
			Whitelist: cfg.RateLimitWhitelist,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - the web client is served from its own origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	hd := handlers.NewHandler(st, h, redisClient, cfg.NotifyPollInterval, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", hd.Root)
	r.Get("/health", hd.Health)

	r.Route("/api", func(r chi.Router) {
		// Classroom chat
		r.Get("/chat", hd.GetChatHistory)
		r.Post("/chat", hd.PostChatMessage)
		r.Delete("/chat", hd.DeleteChatMessage)

		// Notifications
		r.Get("/notifications", hd.GetNotifications)
		r.Post("/notifications", hd.CreateNotification)
		r.Patch("/notifications", hd.PatchNotifications)
		r.Delete("/notifications", hd.DeleteNotifications)
		r.Get("/notifications/stream", hd.NotificationStream)

		// Realtime gateway
		r.Get("/socket", hd.ServeWS)
	})

	return r
}
