package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobconnect/realtime-service/internal/identity"
)

// Store is the persistence contract for rooms and messages. Counter
// mutations are atomic at the storage layer (SQL-side increments and
// resets), never read-modify-write in application code.
type Store interface {
	ListRoomsByUser(ctx context.Context, userID string, role identity.Role) ([]Room, error)
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	GetOrCreateRoom(ctx context.Context, employerID, seekerID string, jobID *string) (*Room, bool, error)
	MessageHistory(ctx context.Context, roomID string) ([]Message, error)
	InsertMessage(ctx context.Context, room *Room, senderID, msgType, content string, fileURL *string) (*Message, error)
	MarkMessagesRead(ctx context.Context, room *Room, readerID string) ([]string, error)
	ResetUnread(ctx context.Context, room *Room, userID string) error
}

// ErrRoomNotFound is returned when a room is missing.
var ErrRoomNotFound = fmt.Errorf("chat room not found")

const roomColumns = `id, employer_id, seeker_id, job_id, last_message,
	last_message_time, employer_unread_count, seeker_unread_count,
	status, created_at, updated_at`

const messageColumns = `id, seq, room_id, sender_id, message_type, content,
	file_url, is_read, read_at, created_at`

// PgStore implements Store on a pgx pool.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// ListRoomsByUser returns the caller's active rooms, most recently
// active first.
func (s *PgStore) ListRoomsByUser(ctx context.Context, userID string, role identity.Role) ([]Room, error) {
	column := "seeker_id"
	if role == identity.RoleEmployer {
		column = "employer_id"
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM chat_rooms
		 WHERE %s = $1 AND status = '%s'
		 ORDER BY last_message_time DESC NULLS LAST, created_at DESC`,
			roomColumns, column, RoomActive),
		userID)
	if err != nil {
		return nil, fmt.Errorf("listRooms query: %w", err)
	}
	defer rows.Close()

	out := make([]Room, 0)
	for rows.Next() {
		var r Room
		if err := scanRoom(rows, &r); err != nil {
			return nil, fmt.Errorf("listRooms scan: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRoom fetches a room by id. Returns ErrRoomNotFound for misses.
func (s *PgStore) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var r Room
	err := scanRoom(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM chat_rooms WHERE id = $1`, roomColumns),
		roomID), &r)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getRoom: %w", err)
	}
	return &r, nil
}

// GetOrCreateRoom finds the room for the (employer, seeker, job) triple
// or creates it. The created flag reports which happened. Uniqueness is
// backed by two partial unique indexes (job-scoped and job-less), so a
// concurrent create loses the race gracefully and re-reads the winner.
func (s *PgStore) GetOrCreateRoom(ctx context.Context, employerID, seekerID string, jobID *string) (*Room, bool, error) {
	existing, err := s.findRoom(ctx, employerID, seekerID, jobID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("getOrCreateRoom lookup: %w", err)
	}

	var r Room
	err = scanRoom(s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO chat_rooms (id, employer_id, seeker_id, job_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING
		 RETURNING %s`, roomColumns),
		uuid.New().String(), employerID, seekerID, jobID), &r)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a concurrent create; the winner's row is the room.
		winner, err := s.findRoom(ctx, employerID, seekerID, jobID)
		if err != nil {
			return nil, false, fmt.Errorf("getOrCreateRoom re-read: %w", err)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getOrCreateRoom insert: %w", err)
	}
	return &r, true, nil
}

func (s *PgStore) findRoom(ctx context.Context, employerID, seekerID string, jobID *string) (*Room, error) {
	var r Room
	err := scanRoom(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM chat_rooms
		 WHERE employer_id = $1 AND seeker_id = $2
		   AND job_id IS NOT DISTINCT FROM $3
		   AND status = '%s'`, roomColumns, RoomActive),
		employerID, seekerID, jobID), &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MessageHistory returns a room's messages in insertion order (the seq
// column, assigned by the store at commit, not wall-clock time).
func (s *PgStore) MessageHistory(ctx context.Context, roomID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM chat_messages
		 WHERE room_id = $1
		 ORDER BY seq ASC`, messageColumns),
		roomID)
	if err != nil {
		return nil, fmt.Errorf("messageHistory query: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("messageHistory scan: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// InsertMessage persists a message and, in the same transaction, updates
// the room's last-message preview and increments the counterpart's
// unread counter. A failed insert leaves the room row untouched.
func (s *PgStore) InsertMessage(ctx context.Context, room *Room, senderID, msgType, content string, fileURL *string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("insertMessage begin: %w", err)
	}
	defer tx.Rollback(ctx)

	m := Message{
		ID:       uuid.New().String(),
		RoomID:   room.ID,
		SenderID: senderID,
		Type:     msgType,
		Content:  content,
		FileURL:  fileURL,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_id, message_type, content, file_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq, created_at`,
		m.ID, m.RoomID, m.SenderID, m.Type, m.Content, m.FileURL,
	).Scan(&m.Seq, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insertMessage insert: %w", err)
	}

	// The recipient's counter, never the sender's own.
	counter := unreadColumn(room, room.Counterpart(senderID))
	_, err = tx.Exec(ctx,
		fmt.Sprintf(`UPDATE chat_rooms
		 SET last_message = $1,
		     last_message_time = $2,
		     %s = %s + 1,
		     updated_at = NOW()
		 WHERE id = $3`, counter, counter),
		m.Content, m.CreatedAt, room.ID)
	if err != nil {
		return nil, fmt.Errorf("insertMessage room update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("insertMessage commit: %w", err)
	}
	return &m, nil
}

// MarkMessagesRead flips every unread message authored by the reader's
// counterpart to read and zeroes the reader's counter, in one batch.
// Returns the ids that transitioned.
func (s *PgStore) MarkMessagesRead(ctx context.Context, room *Room, readerID string) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("markRead begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE chat_messages
		 SET is_read = true, read_at = NOW()
		 WHERE room_id = $1 AND sender_id <> $2 AND is_read = false
		 RETURNING id`,
		room.ID, readerID)
	if err != nil {
		return nil, fmt.Errorf("markRead update: %w", err)
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("markRead scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	counter := unreadColumn(room, readerID)
	_, err = tx.Exec(ctx,
		fmt.Sprintf(`UPDATE chat_rooms SET %s = 0, updated_at = NOW() WHERE id = $1`, counter),
		room.ID)
	if err != nil {
		return nil, fmt.Errorf("markRead counter reset: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("markRead commit: %w", err)
	}
	return ids, nil
}

// ResetUnread zeroes a participant's unread counter (join-time reset).
func (s *PgStore) ResetUnread(ctx context.Context, room *Room, userID string) error {
	counter := unreadColumn(room, userID)
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE chat_rooms SET %s = 0, updated_at = NOW() WHERE id = $1`, counter),
		room.ID)
	if err != nil {
		return fmt.Errorf("resetUnread: %w", err)
	}
	return nil
}

// unreadColumn maps a participant to their counter column. Callers have
// already validated participation.
func unreadColumn(room *Room, userID string) string {
	if room.EmployerID == userID {
		return "employer_unread_count"
	}
	return "seeker_unread_count"
}

func scanRoom(row pgx.Row, r *Room) error {
	return row.Scan(
		&r.ID, &r.EmployerID, &r.SeekerID, &r.JobID, &r.LastMessage,
		&r.LastMessageTime, &r.EmployerUnread, &r.SeekerUnread,
		&r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
}

func scanMessage(row pgx.Row, m *Message) error {
	return row.Scan(
		&m.ID, &m.Seq, &m.RoomID, &m.SenderID, &m.Type, &m.Content,
		&m.FileURL, &m.IsRead, &m.ReadAt, &m.CreatedAt,
	)
}
