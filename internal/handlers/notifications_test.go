package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/classlive/classlive/internal/models"
)

func createNotification(t *testing.T, h *Handler, body string) models.Notification {
	t.Helper()
	w := postJSON(t, h.CreateNotification, "/api/notifications", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var n models.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func listNotifications(t *testing.T, h *Handler, uid string) []models.Notification {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications?uid="+uid, nil)
	w := httptest.NewRecorder()
	h.GetNotifications(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp NotificationListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Notifications
}

func TestCreateNotificationValidation(t *testing.T) {
	h := newTestHandler(t)

	for _, body := range []string{
		`{`,
		`{"title":"no uid"}`,
		`{"uid":"u1"}`,
	} {
		w := postJSON(t, h.CreateNotification, "/api/notifications", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestCreateAndListNotifications(t *testing.T) {
	h := newTestHandler(t)

	first := createNotification(t, h, `{"uid":"u1","title":"Assignment posted","message":"Read chapter 3","extra":{"type":"assignment","courseId":"course-1"}}`)
	second := createNotification(t, h, `{"uid":"u1","title":"Announcement"}`)
	createNotification(t, h, `{"uid":"u2","title":"Not yours"}`)

	got := listNotifications(t, h, "u1")
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	// Newest first.
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("expected newest first, got %v", got)
	}
	if got[1].Read {
		t.Fatal("expected unread by default")
	}

	var extra map[string]string
	if err := json.Unmarshal(got[1].Extra, &extra); err != nil {
		t.Fatal(err)
	}
	if extra["type"] != "assignment" || extra["courseId"] != "course-1" {
		t.Fatalf("expected extra passed through, got %v", extra)
	}
}

func TestCreateNotificationTruncatesPreview(t *testing.T) {
	h := newTestHandler(t)

	long := strings.Repeat("é", notificationPreviewRunes+25)
	n := createNotification(t, h, `{"uid":"u1","title":"t","message":"`+long+`"}`)

	runes := []rune(n.Message)
	if len(runes) != notificationPreviewRunes {
		t.Fatalf("expected %d runes, got %d", notificationPreviewRunes, len(runes))
	}
}

func patchJSON(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.PatchNotifications(w, req)
	return w
}

func TestMarkSingleNotificationRead(t *testing.T) {
	h := newTestHandler(t)

	n := createNotification(t, h, `{"uid":"u1","title":"ping"}`)

	if w := patchJSON(t, h, `{"id":"`+n.ID+`"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	got := listNotifications(t, h, "u1")
	if !got[0].Read || got[0].ReadAt == nil {
		t.Fatalf("expected read with readAt, got %+v", got[0])
	}

	if w := patchJSON(t, h, `{"id":"missing"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMarkAllNotificationsReadForRecipient(t *testing.T) {
	h := newTestHandler(t)

	createNotification(t, h, `{"uid":"u1","title":"a"}`)
	createNotification(t, h, `{"uid":"u1","title":"b"}`)
	createNotification(t, h, `{"uid":"u2","title":"theirs"}`)

	if w := patchJSON(t, h, `{"action":"markAll","uid":"u1"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	for _, n := range listNotifications(t, h, "u1") {
		if !n.Read {
			t.Fatalf("expected all of u1's read, got %+v", n)
		}
	}
	if theirs := listNotifications(t, h, "u2"); theirs[0].Read {
		t.Fatal("expected u2's notification untouched")
	}
}

func TestPatchNotificationsInvalidPayload(t *testing.T) {
	h := newTestHandler(t)

	if w := patchJSON(t, h, `{"action":"markAll"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without uid, got %d", w.Code)
	}
	if w := patchJSON(t, h, `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty payload, got %d", w.Code)
	}
}

func TestDeleteNotification(t *testing.T) {
	h := newTestHandler(t)

	n := createNotification(t, h, `{"uid":"u1","title":"bye"}`)

	req := httptest.NewRequest(http.MethodDelete, "/api/notifications", strings.NewReader(`{"id":"`+n.ID+`"}`))
	w := httptest.NewRecorder()
	h.DeleteNotifications(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/notifications", strings.NewReader(`{"id":"`+n.ID+`"}`))
	w = httptest.NewRecorder()
	h.DeleteNotifications(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
