// Package chat implements the realtime messaging hub: one room per
// (employer, seeker, job) pair, websocket delivery, and denormalized
// unread counters maintained transactionally with every write.
package chat

import (
	"time"
)

// RoomActive is the only room status this service reads or writes;
// archival is owned by the back-office tooling.
const RoomActive = "active"

// Message types accepted from clients.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageFile  = "file"
)

// Room is a conversation between exactly one employer and one seeker,
// optionally scoped to a job posting.
type Room struct {
	ID              string     `json:"id"`
	EmployerID      string     `json:"employerId"`
	SeekerID        string     `json:"seekerId"`
	JobID           *string    `json:"jobId"`
	LastMessage     *string    `json:"lastMessage"`
	LastMessageTime *time.Time `json:"lastMessageTime"`
	EmployerUnread  int        `json:"employerUnreadCount"`
	SeekerUnread    int        `json:"seekerUnreadCount"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Participant reports whether userID is one of the room's two sides.
func (r *Room) Participant(userID string) bool {
	return r.EmployerID == userID || r.SeekerID == userID
}

// Counterpart returns the other side of the room for a given participant.
func (r *Room) Counterpart(userID string) string {
	if r.EmployerID == userID {
		return r.SeekerID
	}
	return r.EmployerID
}

// RoomView is a Room annotated with the counterpart's live presence,
// derived from the in-memory session registry at listing time.
type RoomView struct {
	Room
	IsOnline bool `json:"isOnline"`
}

// Message is a single chat message. Immutable after insert except for
// the read flag and timestamp, which transition exactly once.
type Message struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	RoomID    string     `json:"roomId"`
	SenderID  string     `json:"senderId"`
	Type      string     `json:"messageType"`
	Content   string     `json:"content"`
	FileURL   *string    `json:"fileUrl"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// validMessageType rejects unknown message types before they reach the
// store.
func validMessageType(t string) bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}
