package chat

import (
	"context"
	"fmt"
	"log/slog"

	"jobconnect/realtime-service/internal/identity"
)

// Broadcaster is the slice of the hub the service needs for delivery.
type Broadcaster interface {
	IsOnline(userID string) bool
	SendToUser(userID string, data []byte) bool
	Broadcast(roomID string, data []byte)
}

// Notifier receives the out-of-band side effects of chat activity:
// persisted notifications and cross-service event publishing. All of it
// is non-fatal to the originating operation.
type Notifier interface {
	MessageSent(ctx context.Context, room *Room, msg *Message, sender *identity.User, recipientOnline bool)
	MessagesRead(ctx context.Context, room *Room, readerID string, messageIDs []string)
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates the hub's business logic. It has no dependency on
// the websocket transport — the client event loop and any future
// transport call into it the same way.
type Service struct {
	store    Store
	hub      Broadcaster
	notifier Notifier
}

// NewService returns a configured Service.
func NewService(store Store, hub Broadcaster, notifier Notifier) *Service {
	return &Service{store: store, hub: hub, notifier: notifier}
}

// ─── Operations ──────────────────────────────────────────────────────────────

// ListRooms returns the caller's rooms, each annotated with whether the
// counterpart currently holds an active connection.
func (s *Service) ListRooms(ctx context.Context, user *identity.User) ([]RoomView, error) {
	rooms, err := s.store.ListRoomsByUser(ctx, user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	views := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, RoomView{
			Room:     r,
			IsOnline: s.hub.IsOnline(r.Counterpart(user.ID)),
		})
	}
	return views, nil
}

// CreateOrGetRoom finds or creates the room between the caller and a
// counterpart, optionally scoped to a job. The caller's role decides
// which column they occupy; admins have no side and are rejected.
func (s *Service) CreateOrGetRoom(ctx context.Context, user *identity.User, req CreateRoomRequest) (*Room, error) {
	if req.RecipientID == "" {
		return nil, &ValidationError{Msg: "recipientId is required"}
	}
	if req.RecipientID == user.ID {
		return nil, &ValidationError{Msg: "cannot open a room with yourself"}
	}

	var employerID, seekerID string
	switch user.Role {
	case identity.RoleEmployer:
		employerID, seekerID = user.ID, req.RecipientID
	case identity.RoleSeeker:
		employerID, seekerID = req.RecipientID, user.ID
	default:
		return nil, &ForbiddenError{Msg: "only employers and seekers can open chat rooms"}
	}

	room, created, err := s.store.GetOrCreateRoom(ctx, employerID, seekerID, req.JobID)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("chat room created",
			"roomId", room.ID, "employerId", employerID, "seekerId", seekerID)
	}
	return room, nil
}

// JoinRoom validates the caller's membership, zeroes their own unread
// counter, and returns the room with its full chronological history for
// initial render. The counterpart's counter is untouched.
func (s *Service) JoinRoom(ctx context.Context, user *identity.User, roomID string) (*Room, []Message, error) {
	if roomID == "" {
		return nil, nil, &ValidationError{Msg: "roomId is required"}
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if !room.Participant(user.ID) {
		return nil, nil, &ForbiddenError{Msg: "not a participant of this room"}
	}

	if err := s.store.ResetUnread(ctx, room, user.ID); err != nil {
		return nil, nil, err
	}

	history, err := s.store.MessageHistory(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return room, history, nil
}

// SendMessage persists a message, updates the room's preview and the
// recipient's unread counter transactionally, then broadcasts to the
// room group and nudges the counterpart's personal channel if they're
// connected. Broadcast strictly follows persistence: a failed write
// emits nothing.
func (s *Service) SendMessage(ctx context.Context, user *identity.User, req SendMessageRequest) (*Message, error) {
	if req.RoomID == "" || req.Content == "" {
		return nil, &ValidationError{Msg: "roomId and content are required"}
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = MessageText
	}
	if !validMessageType(msgType) {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown message type %q", msgType)}
	}

	room, err := s.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.Participant(user.ID) {
		return nil, &ForbiddenError{Msg: "not a participant of this room"}
	}

	msg, err := s.store.InsertMessage(ctx, room, user.ID, msgType, req.Content, req.FileURL)
	if err != nil {
		return nil, err
	}

	if frame, err := EncodeEvent(EvNewMessage, msg); err == nil {
		s.hub.Broadcast(room.ID, frame)
	} else {
		slog.Warn("encode new_message failed", "roomId", room.ID, "err", err)
	}

	recipient := room.Counterpart(user.ID)
	recipientOnline := false
	if frame, err := EncodeEvent(EvMessageNotification, MessageNotificationPayload{
		RoomID:  room.ID,
		Message: *msg,
		Sender:  user,
	}); err == nil {
		recipientOnline = s.hub.SendToUser(recipient, frame)
	}

	s.notifier.MessageSent(ctx, room, msg, user, recipientOnline)
	return msg, nil
}

// MarkRead transitions every unread counterpart-authored message in the
// room to read, zeroes the caller's counter, and tells the counterpart
// which message ids were read if they're connected. Messages authored
// by the caller are untouched.
func (s *Service) MarkRead(ctx context.Context, user *identity.User, roomID string) ([]string, error) {
	if roomID == "" {
		return nil, &ValidationError{Msg: "roomId is required"}
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Participant(user.ID) {
		return nil, &ForbiddenError{Msg: "not a participant of this room"}
	}

	ids, err := s.store.MarkMessagesRead(ctx, room, user.ID)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if frame, err := EncodeEvent(EvMessagesRead, MessagesReadPayload{
			RoomID:     room.ID,
			ReaderID:   user.ID,
			MessageIDs: ids,
		}); err == nil {
			s.hub.SendToUser(room.Counterpart(user.ID), frame)
		}
		s.notifier.MessagesRead(ctx, room, user.ID, ids)
	}
	return ids, nil
}

// ─── Error taxonomy ──────────────────────────────────────────────────────────

// ValidationError rejects a malformed event; no state changed.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ForbiddenError rejects a caller who is not a participant (or whose
// role cannot perform the operation); no state changed, and nothing
// about the room's other participant is leaked.
type ForbiddenError struct{ Msg string }

func (e *ForbiddenError) Error() string { return e.Msg }
