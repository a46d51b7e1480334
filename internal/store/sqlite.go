package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/classlive/classlive/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the poll-only
// backend: it does not implement NotificationFeed, so notification
// streams served from it fall back to time-windowed polling.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/classlive.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/classlive.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		author_photo_url TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		read INTEGER NOT NULL DEFAULT 0,
		read_at INTEGER,
		created_at INTEGER NOT NULL,
		extra TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage stores a chat message, assigning its id and timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, author_id, author_name, author_photo_url, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.AuthorID, msg.Author.Name, msg.Author.PhotoURL, msg.Text, msg.CreatedAt.UnixMilli())
	return err
}

// ListMessagesByRoom retrieves a room's messages in chronological order.
func (s *SQLiteStore) ListMessagesByRoom(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, author_id, author_name, author_photo_url, text, created_at
		FROM chat_messages
		WHERE room_id = ?
		ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// GetMessage retrieves a message by id. Returns nil when absent.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, author_id, author_name, author_photo_url, text, created_at
		FROM chat_messages WHERE id = ?
	`, id)

	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// DeleteMessage removes a message by id. Idempotent; reports whether a
// record existed.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendNotification stores a notification, assigning its id and timestamp.
func (s *SQLiteStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = ulid.Make().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var extra *string
	if len(n.Extra) > 0 {
		str := string(n.Extra)
		extra = &str
	}

	readInt := 0
	if n.Read {
		readInt = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, read, read_at, created_at, extra)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)
	`, n.ID, n.UserID, n.Title, n.Message, readInt, n.CreatedAt.UnixMilli(), extra)
	return err
}

// ListNotificationsByRecipient retrieves a recipient's notifications in
// chronological order, optionally bounded below by createdAfter.
func (s *SQLiteStore) ListNotificationsByRecipient(ctx context.Context, uid string, createdAfter time.Time) ([]models.Notification, error) {
	var after int64
	if !createdAfter.IsZero() {
		after = createdAfter.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, read, read_at, created_at, extra
		FROM notifications
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at ASC, id ASC
	`, uid, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var readInt int
		var readAt *int64
		var createdAt int64
		var extra *string

		err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &readInt, &readAt, &createdAt, &extra)
		if err != nil {
			return nil, err
		}

		n.Read = readInt == 1
		if readAt != nil {
			t := time.UnixMilli(*readAt).UTC()
			n.ReadAt = &t
		}
		n.CreatedAt = time.UnixMilli(createdAt).UTC()
		if extra != nil {
			n.Extra = json.RawMessage(*extra)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flips read to true and stamps read_at. Already-read
// notifications keep their original read_at.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = ?
		WHERE id = ? AND read = 0
	`, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "already read" from "no such row"
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM notifications WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification for a recipient
// and returns how many rows changed.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, uid string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = ?
		WHERE user_id = ? AND read = 0
	`, time.Now().UTC().UnixMilli(), uid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNotification removes a notification by id.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row scanner) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{}
	var createdAt int64

	err := row.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.AuthorID,
		&msg.Author.Name,
		&msg.Author.PhotoURL,
		&msg.Text,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Author.ID = msg.AuthorID
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()
	return msg, nil
}
