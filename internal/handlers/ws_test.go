package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server, uid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if uid != "" {
		url += "?uid=" + uid
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]any
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return ev
}

// waitForMembers blocks until the room has the wanted member count; the
// join frame is processed asynchronously by the read pump.
func waitForMembers(t *testing.T, h *Handler, roomID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.hub.Registry().MembersOf(roomID)) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members", roomID, want)
}

func TestSocketSendMessageReachesRoomMembersOnly(t *testing.T) {
	h := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	alice := dialWS(t, srv, "u1")
	bob := dialWS(t, srv, "u2")

	if err := alice.WriteJSON(map[string]string{"type": "join_classroom", "roomId": "course-1"}); err != nil {
		t.Fatal(err)
	}
	waitForMembers(t, h, "course-1", 1)

	err := alice.WriteJSON(map[string]any{
		"type":   "send_message",
		"roomId": "course-1",
		"author": map[string]string{"id": "u1", "name": "Alice"},
		"text":   "hi",
	})
	if err != nil {
		t.Fatal(err)
	}

	ev := readEvent(t, alice)
	if ev["type"] != "new_chat_message" {
		t.Fatalf("expected new_chat_message, got %v", ev)
	}
	msg, ok := ev["message"].(map[string]any)
	if !ok || msg["text"] != "hi" || msg["id"] == "" || msg["id"] == nil {
		t.Fatalf("unexpected message payload: %v", ev)
	}
	if msg["classId"] != "course-1" || msg["authorId"] != "u1" {
		t.Fatalf("unexpected message payload: %v", ev)
	}

	// Bob never joined the room and must see nothing.
	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatal("expected no delivery to a non-member")
	}
}

func TestSocketDeleteMessageAuthorization(t *testing.T) {
	h := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	alice := dialWS(t, srv, "u1")
	if err := alice.WriteJSON(map[string]string{"type": "join_classroom", "roomId": "course-1"}); err != nil {
		t.Fatal(err)
	}
	waitForMembers(t, h, "course-1", 1)

	err := alice.WriteJSON(map[string]any{
		"type":   "send_message",
		"roomId": "course-1",
		"author": map[string]string{"id": "u1", "name": "Alice"},
		"text":   "to be removed",
	})
	if err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, alice)
	msg, ok := ev["message"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected frame: %v", ev)
	}
	msgID, _ := msg["id"].(string)
	if msgID == "" {
		t.Fatalf("missing message id in %v", ev)
	}

	// A different user only gets an error frame back; nothing broadcast.
	err = alice.WriteJSON(map[string]string{
		"type": "delete_message", "messageId": msgID, "userId": "u2",
	})
	if err != nil {
		t.Fatal(err)
	}
	ev = readEvent(t, alice)
	if ev["type"] != "error" {
		t.Fatalf("expected error frame, got %v", ev)
	}

	// The author's delete is broadcast to the room.
	err = alice.WriteJSON(map[string]string{
		"type": "delete_message", "messageId": msgID, "userId": "u1",
	})
	if err != nil {
		t.Fatal(err)
	}
	ev = readEvent(t, alice)
	if ev["type"] != "chat_message_deleted" || ev["messageId"] != msgID {
		t.Fatalf("expected chat_message_deleted for %s, got %v", msgID, ev)
	}
}

func TestSocketRecipientPush(t *testing.T) {
	h := newTestHandler(t)

	wsSrv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer wsSrv.Close()

	conn := dialWS(t, wsSrv, "u7")

	// Recipient subscription happens during the upgrade, but register the
	// read deadline generously: the notification is pushed right after the
	// HTTP create returns.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.hub.Registry().ConnectionsOf("u7")) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	created := createNotification(t, h, `{"uid":"u7","title":"Quiz tomorrow"}`)

	ev := readEvent(t, conn)
	if ev["type"] != "notification" || ev["id"] != created.ID {
		t.Fatalf("expected notification %s, got %v", created.ID, ev)
	}
}

func TestSocketRejectsMalformedFrames(t *testing.T) {
	h := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dialWS(t, srv, "")

	cases := []string{
		`{not json`,
		`{"type":"join_classroom"}`,
		`{"type":"send_message","roomId":"course-1"}`,
		`{"type":"delete_message"}`,
		`{"type":"mystery"}`,
	}
	for _, frame := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
		ev := readEvent(t, conn)
		if ev["type"] != "error" {
			t.Fatalf("frame %q: expected error, got %v", frame, ev)
		}
	}
}
