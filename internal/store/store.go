package store

import (
	"context"
	"errors"
	"time"

	"github.com/classlive/classlive/internal/models"
)

// ErrNotFound is returned by point lookups and mutations that name an
// id which does not exist in the store.
var ErrNotFound = errors.New("store: not found")

// DataStore defines the interface for persistent storage of chat messages
// and notifications. Both PostgresStore and SQLiteStore implement it.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Chat message operations. AppendMessage assigns ID and CreatedAt.
	// ListMessagesByRoom returns messages in ascending CreatedAt order with
	// ties broken by id, so the order is deterministic.
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessagesByRoom(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	DeleteMessage(ctx context.Context, id string) (bool, error)

	// Notification operations. A zero createdAfter means "no lower bound".
	AppendNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsByRecipient(ctx context.Context, uid string, createdAfter time.Time) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, uid string) (int64, error)
	DeleteNotification(ctx context.Context, id string) (bool, error)
}

// NotificationFeed is the change-feed capability. Stores that can push
// row-level notification inserts implement it; stores that cannot are
// served by the polling fallback instead. The capability check happens
// once at startup via type assertion, never per request.
type NotificationFeed interface {
	// WatchNotifications delivers every notification created for uid, in
	// creation order, until ctx is cancelled. The returned channel is
	// closed when the watch ends.
	WatchNotifications(ctx context.Context, uid string) (<-chan models.Notification, error)
}
