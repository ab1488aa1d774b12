package chat

import (
	"encoding/json"
	"fmt"

	"jobconnect/realtime-service/internal/identity"
)

// Client-to-server event names. These, with the server events below, are
// the hub's wire contract; the Gateway and mobile client depend on them.
const (
	EvGetChatRooms   = "get_chat_rooms"
	EvCreateChatRoom = "create_chat_room"
	EvJoinChatRoom   = "join_chat_room"
	EvSendMessage    = "send_message"
	EvMarkRead       = "mark_messages_read"
)

// Server-to-client event names.
const (
	EvChatRooms           = "chat_rooms"
	EvChatRoomCreated     = "chat_room_created"
	EvChatHistory         = "chat_history"
	EvNewMessage          = "new_message"
	EvMessageNotification = "message_notification"
	EvMessagesRead        = "messages_read"
	EvMarkReadSuccess     = "mark_read_success"
	EvUserStatus          = "user_status"
	EvError               = "error"
)

// Error kinds carried on error events so clients can react appropriately
// (redirect vs inline message).
const (
	ErrKindValidation = "validation"
	ErrKindForbidden  = "forbidden"
	ErrKindNotFound   = "not_found"
	ErrKindInternal   = "internal"
)

// ClientEvent is the envelope for inbound events.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the envelope for outbound events.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ─── Client payloads ─────────────────────────────────────────────────────────

// CreateRoomRequest opens (or finds) the room with a counterpart,
// optionally scoped to a job.
type CreateRoomRequest struct {
	RecipientID string  `json:"recipientId"`
	JobID       *string `json:"jobId,omitempty"`
}

// JoinRoomRequest subscribes the connection to a room's broadcasts.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// SendMessageRequest posts a message to a room. MessageType defaults
// to text.
type SendMessageRequest struct {
	RoomID      string  `json:"roomId"`
	Content     string  `json:"content"`
	MessageType string  `json:"messageType,omitempty"`
	FileURL     *string `json:"fileUrl,omitempty"`
}

// MarkReadRequest marks the counterpart's messages in a room as read.
type MarkReadRequest struct {
	RoomID string `json:"roomId"`
}

// ─── Server payloads ─────────────────────────────────────────────────────────

// ChatHistoryPayload is the full ordered history returned on join.
type ChatHistoryPayload struct {
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
}

// MessageNotificationPayload is the out-of-band nudge sent to a
// counterpart who is connected but not joined to the room.
type MessageNotificationPayload struct {
	RoomID  string         `json:"roomId"`
	Message Message        `json:"message"`
	Sender  *identity.User `json:"sender"`
}

// MessagesReadPayload tells a sender which of their messages were read.
type MessagesReadPayload struct {
	RoomID     string   `json:"roomId"`
	ReaderID   string   `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}

// MarkReadSuccessPayload acknowledges a mark-read to its caller.
type MarkReadSuccessPayload struct {
	RoomID string `json:"roomId"`
}

// UserStatusPayload announces presence changes.
type UserStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" | "offline"
}

// ErrorPayload is delivered only to the originating connection, never
// broadcast.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EncodeEvent marshals a server event for transport. Payload structs are
// all marshal-safe; an error here means a programming bug, so callers
// treat it as internal.
func EncodeEvent(event string, data any) ([]byte, error) {
	b, err := json.Marshal(ServerEvent{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event, err)
	}
	return b, nil
}
