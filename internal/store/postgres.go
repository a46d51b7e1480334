package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/classlive/classlive/internal/models"
)

// notifyChannel is the LISTEN/NOTIFY channel carrying notification inserts.
const notifyChannel = "classlive_notifications"

// PostgresStore handles PostgreSQL database operations. It is the
// change-feed-capable backend: notification inserts are published over
// LISTEN/NOTIFY, so it implements NotificationFeed.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		author_photo_url TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		read BOOLEAN NOT NULL DEFAULT FALSE,
		read_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		extra JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at, id);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AppendMessage stores a chat message, assigning its id and timestamp.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, room_id, author_id, author_name, author_photo_url, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.RoomID, msg.AuthorID, msg.Author.Name, msg.Author.PhotoURL, msg.Text, msg.CreatedAt)
	return err
}

// ListMessagesByRoom retrieves a room's messages in chronological order.
func (s *PostgresStore) ListMessagesByRoom(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, author_id, author_name, author_photo_url, text, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.AuthorID,
			&msg.Author.Name,
			&msg.Author.PhotoURL,
			&msg.Text,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msg.Author.ID = msg.AuthorID
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetMessage retrieves a message by id. Returns nil when absent.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, author_id, author_name, author_photo_url, text, created_at
		FROM chat_messages WHERE id = $1
	`, id).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.AuthorID,
		&msg.Author.Name,
		&msg.Author.PhotoURL,
		&msg.Text,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	msg.Author.ID = msg.AuthorID
	return msg, nil
}

// DeleteMessage removes a message by id. Idempotent; reports whether a
// record existed.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AppendNotification stores a notification and publishes it on the notify
// channel so live watchers see it without polling. The insert and the
// notify share a transaction: a failed insert publishes nothing.
func (s *PostgresStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = ulid.Make().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var extra any
	if len(n.Extra) > 0 {
		extra = string(n.Extra)
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, message, read, read_at, created_at, extra)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
	`, n.ID, n.UserID, n.Title, n.Message, n.Read, n.CreatedAt, extra)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListNotificationsByRecipient retrieves a recipient's notifications in
// chronological order, optionally bounded below by createdAfter.
func (s *PostgresStore) ListNotificationsByRecipient(ctx context.Context, uid string, createdAfter time.Time) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, message, read, read_at, created_at, COALESCE(extra::TEXT, '')
		FROM notifications
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`, uid, createdAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var extra string
		err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &n.ReadAt, &n.CreatedAt, &extra)
		if err != nil {
			return nil, err
		}
		if extra != "" {
			n.Extra = json.RawMessage(extra)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flips read to true and stamps read_at.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = NOW()
		WHERE id = $1 AND read = FALSE
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists int
		err := s.pool.QueryRow(ctx, `SELECT 1 FROM notifications WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification for a recipient
// and returns how many rows changed.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, uid string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND read = FALSE
	`, uid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteNotification removes a notification by id.
func (s *PostgresStore) DeleteNotification(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// WatchNotifications subscribes to notification inserts for uid over
// LISTEN/NOTIFY. It holds one pooled connection for the lifetime of the
// watch and releases it when ctx is cancelled.
func (s *PostgresStore) WatchNotifications(ctx context.Context, uid string) (<-chan models.Notification, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(ctx, `LISTEN `+notifyChannel); err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan models.Notification, 16)

	go func() {
		defer func() {
			// The pool hands this connection to ordinary queries next;
			// leave no subscription accumulating payloads on it. The
			// watch ctx is already done here, so use a fresh one.
			cleanup, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, _ = conn.Exec(cleanup, `UNLISTEN `+notifyChannel)
			cancel()
			conn.Release()
			close(out)
		}()

		for {
			pgNotif, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				// ctx cancelled or connection lost; either way the watch ends
				return
			}

			var n models.Notification
			if err := json.Unmarshal([]byte(pgNotif.Payload), &n); err != nil {
				continue
			}
			if n.UserID != uid {
				continue
			}

			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
