package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classlive_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classlive_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classlive_websocket_connections",
			Help: "Currently open WebSocket connections",
		},
	)

	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classlive_broadcast_events_total",
			Help: "Events fanned out by the broadcast hub",
		},
		[]string{"scope"}, // "room" or "recipient"
	)

	NotificationStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "classlive_notification_streams",
			Help: "Currently open notification event streams",
		},
		[]string{"mode"}, // "feed" or "poll"
	)

	// Business metrics
	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classlive_messages_posted_total",
			Help: "Total chat messages posted",
		},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classlive_messages_deleted_total",
			Help: "Total chat messages deleted",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classlive_notifications_created_total",
			Help: "Total notifications created",
		},
	)
)
