package handlers

import "github.com/classlive/classlive/internal/models"

// Wire event names. Client event names match the original classroom wire
// protocol so existing clients keep working.
const (
	eventJoinClassroom  = "join_classroom"
	eventLeaveClassroom = "leave_classroom"
	eventSendMessage    = "send_message"
	eventDeleteMessage  = "delete_message"

	eventNewChatMessage     = "new_chat_message"
	eventChatMessageDeleted = "chat_message_deleted"
	eventNotification       = "notification"
	eventError              = "error"
)

// clientEvent is the inbound envelope for every client-to-server frame.
// Which fields are required depends on Type; validation happens at the
// transport boundary before any domain logic runs.
type clientEvent struct {
	Type      string         `json:"type"`
	RoomID    string         `json:"roomId,omitempty"`
	Author    *models.Author `json:"author,omitempty"`
	Text      string         `json:"text,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
}

type newMessageEvent struct {
	Type    string              `json:"type"`
	Message *models.ChatMessage `json:"message"`
}

type messageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type notificationEvent struct {
	Type string `json:"type"`
	models.Notification
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newMessage(msg *models.ChatMessage) newMessageEvent {
	return newMessageEvent{Type: eventNewChatMessage, Message: msg}
}

func messageDeleted(id string) messageDeletedEvent {
	return messageDeletedEvent{Type: eventChatMessageDeleted, MessageID: id}
}

func notification(n models.Notification) notificationEvent {
	return notificationEvent{Type: eventNotification, Notification: n}
}

func errorFrame(message string) errorEvent {
	return errorEvent{Type: eventError, Message: message}
}
