// Package notify persists user notifications and fans chat/interview
// events out over Redis pub/sub for the Gateway's push forwarders.
// Publishing is best-effort: a Redis outage degrades push delivery but
// never fails the operation that triggered it.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jobconnect/realtime-service/internal/chat"
	"jobconnect/realtime-service/internal/identity"
)

// Redis channels consumed by the Gateway.
const (
	ChannelNewMessage        = "EVENT_NEW_MESSAGE"
	ChannelMessagesRead      = "EVENT_MESSAGES_READ"
	ChannelInterviewReminder = "EVENT_INTERVIEW_REMINDER"
)

// Notification types.
const (
	TypeNewMessage        = "new_message"
	TypeInterviewReminder = "interview_reminder"
	TypeInterviewUpdate   = "interview_update"
)

// Notification is a persisted per-user notification row.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	RelatedID *string    `json:"relatedId"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Publisher writes notification rows and publishes Redis events.
type Publisher struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewPublisher returns a configured Publisher.
func NewPublisher(pool *pgxpool.Pool, rdb *redis.Client) *Publisher {
	return &Publisher{pool: pool, rdb: rdb}
}

// MessageSent implements chat.Notifier. The Redis event always goes out
// so push forwarders can reach backgrounded apps; a notification row is
// only written when the recipient had no live connection — an online
// recipient already got the message_notification frame.
func (p *Publisher) MessageSent(ctx context.Context, room *chat.Room, msg *chat.Message, sender *identity.User, recipientOnline bool) {
	recipient := room.Counterpart(sender.ID)

	p.publish(ctx, ChannelNewMessage, map[string]string{
		"roomId":      room.ID,
		"messageId":   msg.ID,
		"senderId":    sender.ID,
		"recipientId": recipient,
	})

	if recipientOnline {
		return
	}
	preview := msg.Content
	if len(preview) > 120 {
		preview = preview[:120]
	}
	if err := p.Create(ctx, &Notification{
		UserID:    recipient,
		Type:      TypeNewMessage,
		Title:     "New message from " + sender.Username,
		Content:   preview,
		RelatedID: &room.ID,
	}); err != nil {
		slog.Warn("persist message notification failed",
			"roomId", room.ID, "recipientId", recipient, "err", err)
	}
}

// MessagesRead implements chat.Notifier.
func (p *Publisher) MessagesRead(ctx context.Context, room *chat.Room, readerID string, messageIDs []string) {
	p.publish(ctx, ChannelMessagesRead, map[string]any{
		"roomId":     room.ID,
		"readerId":   readerID,
		"messageIds": messageIDs,
	})
}

// InterviewReminder records a reminder notification for one participant
// and publishes the Gateway event.
func (p *Publisher) InterviewReminder(ctx context.Context, userID, interviewID, title, content string) error {
	p.publish(ctx, ChannelInterviewReminder, map[string]string{
		"interviewId": interviewID,
		"userId":      userID,
	})
	return p.Create(ctx, &Notification{
		UserID:    userID,
		Type:      TypeInterviewReminder,
		Title:     title,
		Content:   content,
		RelatedID: &interviewID,
	})
}

// InterviewUpdate records a scheduling-change notification.
func (p *Publisher) InterviewUpdate(ctx context.Context, userID, interviewID, title, content string) error {
	return p.Create(ctx, &Notification{
		UserID:    userID,
		Type:      TypeInterviewUpdate,
		Title:     title,
		Content:   content,
		RelatedID: &interviewID,
	})
}

// Create inserts a notification row.
func (p *Publisher) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return p.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, user_id, type, title, content, related_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Content, n.RelatedID,
	).Scan(&n.CreatedAt)
}

// publish sends a JSON event to a Redis channel, non-fatally.
func (p *Publisher) publish(ctx context.Context, channel string, payload any) {
	event, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("marshal redis event failed", "channel", channel, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, event).Err(); err != nil {
		slog.Warn("publish redis event failed", "channel", channel, "err", err)
	}
}
