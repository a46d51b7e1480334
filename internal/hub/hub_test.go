package hub

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

type testEvent struct {
	Type string `json:"type"`
	Seq  int    `json:"seq"`
}

func newTestClient(t *testing.T, h *Hub, id, userID string) *Client {
	t.Helper()
	c := NewClient(id, userID, h, nil, zerolog.Nop())
	h.Register(c)
	return c
}

// drain reads every frame currently buffered for a client.
func drain(c *Client) []testEvent {
	var events []testEvent
	for {
		select {
		case data := <-c.send:
			var ev testEvent
			if err := json.Unmarshal(data, &ev); err == nil {
				events = append(events, ev)
			}
		default:
			return events
		}
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	h := New(NewRegistry(), zerolog.Nop())
	a := newTestClient(t, h, "a", "")
	b := newTestClient(t, h, "b", "")

	h.Registry().Join(a.ID, "course-1")

	h.BroadcastToRoom("course-1", testEvent{Type: "msg", Seq: 1})

	if got := drain(a); len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("expected a to receive seq 1, got %v", got)
	}
	if got := drain(b); len(got) != 0 {
		t.Fatalf("expected b to receive nothing, got %v", got)
	}
}

func TestDoubleJoinDeliversOnce(t *testing.T) {
	h := New(NewRegistry(), zerolog.Nop())
	a := newTestClient(t, h, "a", "")

	h.Registry().Join(a.ID, "course-1")
	h.Registry().Join(a.ID, "course-1")

	h.BroadcastToRoom("course-1", testEvent{Type: "msg", Seq: 1})

	if got := drain(a); len(got) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(got))
	}
}

func TestRoomBroadcastOrderIsFIFO(t *testing.T) {
	h := New(NewRegistry(), zerolog.Nop())
	a := newTestClient(t, h, "a", "")
	b := newTestClient(t, h, "b", "")

	h.Registry().Join(a.ID, "course-1")
	h.Registry().Join(b.ID, "course-1")

	for i := 1; i <= 5; i++ {
		h.BroadcastToRoom("course-1", testEvent{Type: "msg", Seq: i})
	}

	for _, c := range []*Client{a, b} {
		got := drain(c)
		if len(got) != 5 {
			t.Fatalf("client %s: expected 5 events, got %d", c.ID, len(got))
		}
		for i, ev := range got {
			if ev.Seq != i+1 {
				t.Fatalf("client %s: out of order at %d: %v", c.ID, i, got)
			}
		}
	}
}

func TestBroadcastToRecipientHitsAllSessions(t *testing.T) {
	h := New(NewRegistry(), zerolog.Nop())
	s1 := newTestClient(t, h, "s1", "u1")
	s2 := newTestClient(t, h, "s2", "u1")
	other := newTestClient(t, h, "s3", "u2")

	h.BroadcastToRecipient("u1", testEvent{Type: "notif", Seq: 1})

	if got := drain(s1); len(got) != 1 {
		t.Fatalf("expected s1 to receive the event, got %v", got)
	}
	if got := drain(s2); len(got) != 1 {
		t.Fatalf("expected s2 to receive the event, got %v", got)
	}
	if got := drain(other); len(got) != 0 {
		t.Fatalf("expected u2's session to receive nothing, got %v", got)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := New(NewRegistry(), zerolog.Nop())
	a := newTestClient(t, h, "a", "u1")
	h.Registry().Join(a.ID, "course-1")

	h.Unregister(a)
	// second call must be harmless
	h.Unregister(a)

	if got := h.Registry().MembersOf("course-1"); len(got) != 0 {
		t.Fatalf("expected membership cleared, got %v", got)
	}

	// must not panic on the closed channel
	h.BroadcastToRoom("course-1", testEvent{Type: "msg", Seq: 1})
	h.BroadcastToRecipient("u1", testEvent{Type: "notif", Seq: 2})
}

func TestSlowClientIsDroppedNotBlocking(t *testing.T) {
	h := New(NewRegistry(), zerolog.Nop())
	slow := newTestClient(t, h, "slow", "")
	fast := newTestClient(t, h, "fast", "")

	h.Registry().Join(slow.ID, "course-1")
	h.Registry().Join(fast.ID, "course-1")

	// Fill the slow client's buffer without draining it.
	for i := 0; i < sendBufferSize+10; i++ {
		h.BroadcastToRoom("course-1", testEvent{Type: "msg", Seq: i})
		// keep fast from overflowing too
		if len(fast.send) > sendBufferSize-8 {
			drain(fast)
		}
	}

	// The slow client has been unregistered; the fast one still gets events.
	h.BroadcastToRoom("course-1", testEvent{Type: "msg", Seq: 999})
	got := drain(fast)
	if len(got) == 0 || got[len(got)-1].Seq != 999 {
		t.Fatalf("expected fast client to keep receiving, got %v", got)
	}
	if members := h.Registry().MembersOf("course-1"); len(members) != 1 {
		t.Fatalf("expected slow client dropped from room, got %v", members)
	}
}
