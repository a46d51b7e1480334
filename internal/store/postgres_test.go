package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/classlive/classlive/internal/models"
)

// These tests need a live database; set TEST_DATABASE_URL to run them.
func postgresTestURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return url
}

func TestWatchNotificationsDeliversInsert(t *testing.T) {
	s, err := NewPostgresStore(context.Background(), postgresTestURL(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uid := "watch-" + ulid.Make().String()
	ch, err := s.WatchNotifications(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}

	n := &models.Notification{UserID: uid, Title: "ping"}
	if err := s.AppendNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if got.ID != n.ID || got.UserID != uid {
			t.Fatalf("expected %s for %s, got %+v", n.ID, uid, got)
		}
	case <-ctx.Done():
		t.Fatal("watch never delivered the insert")
	}
}

// The watch holds the pool's only connection here; after cancellation
// that connection goes back to serving ordinary queries and must carry
// no leftover subscription state.
func TestWatchTeardownLeavesPoolUsable(t *testing.T) {
	url := postgresTestURL(t)
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	s, err := NewPostgresStore(context.Background(), url+sep+"pool_max_conns=1")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	ctx, cancel := context.WithCancel(context.Background())
	uid := "watch-" + ulid.Make().String()
	ch, err := s.WatchNotifications(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}

	cancel()
	for range ch {
	}

	n := &models.Notification{UserID: uid, Title: "after teardown"}
	if err := s.AppendNotification(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListNotificationsByRecipient(context.Background(), uid, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != n.ID {
		t.Fatalf("expected the stored notification back, got %v", got)
	}
}
