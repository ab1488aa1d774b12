package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"jobconnect/realtime-service/internal/chat"
	"jobconnect/realtime-service/internal/identity"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

// fakeStore is an in-memory chat.Store that mimics the SQL semantics:
// atomic counter bumps, insertion-ordered history, batch read marking.
type fakeStore struct {
	rooms    map[string]*chat.Room
	messages map[string][]chat.Message
	nextSeq  int64
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[string]*chat.Room),
		messages: make(map[string][]chat.Message),
	}
}

func (f *fakeStore) addRoom(id, employerID, seekerID string, jobID *string) *chat.Room {
	r := &chat.Room{
		ID: id, EmployerID: employerID, SeekerID: seekerID, JobID: jobID,
		Status: chat.RoomActive, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.rooms[id] = r
	return r
}

func (f *fakeStore) ListRoomsByUser(_ context.Context, userID string, role identity.Role) ([]chat.Room, error) {
	out := make([]chat.Room, 0)
	for _, r := range f.rooms {
		if (role == identity.RoleEmployer && r.EmployerID == userID) ||
			(role == identity.RoleSeeker && r.SeekerID == userID) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRoom(_ context.Context, roomID string) (*chat.Room, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, chat.ErrRoomNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) GetOrCreateRoom(_ context.Context, employerID, seekerID string, jobID *string) (*chat.Room, bool, error) {
	for _, r := range f.rooms {
		if r.EmployerID == employerID && r.SeekerID == seekerID && ptrEq(r.JobID, jobID) {
			copied := *r
			return &copied, false, nil
		}
	}
	r := f.addRoom(fmt.Sprintf("room-%d", len(f.rooms)+1), employerID, seekerID, jobID)
	copied := *r
	return &copied, true, nil
}

func (f *fakeStore) MessageHistory(_ context.Context, roomID string) ([]chat.Message, error) {
	return append([]chat.Message(nil), f.messages[roomID]...), nil
}

func (f *fakeStore) InsertMessage(_ context.Context, room *chat.Room, senderID, msgType, content string, fileURL *string) (*chat.Message, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.nextSeq++
	m := chat.Message{
		ID:     fmt.Sprintf("msg-%d", f.nextSeq),
		Seq:    f.nextSeq,
		RoomID: room.ID, SenderID: senderID, Type: msgType,
		Content: content, FileURL: fileURL, CreatedAt: time.Now(),
	}
	f.messages[room.ID] = append(f.messages[room.ID], m)

	stored := f.rooms[room.ID]
	stored.LastMessage = &m.Content
	stored.LastMessageTime = &m.CreatedAt
	if senderID == stored.EmployerID {
		stored.SeekerUnread++
	} else {
		stored.EmployerUnread++
	}
	return &m, nil
}

func (f *fakeStore) MarkMessagesRead(_ context.Context, room *chat.Room, readerID string) ([]string, error) {
	ids := make([]string, 0)
	msgs := f.messages[room.ID]
	now := time.Now()
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			msgs[i].ReadAt = &now
			ids = append(ids, msgs[i].ID)
		}
	}
	f.zeroCounter(room.ID, readerID)
	return ids, nil
}

func (f *fakeStore) ResetUnread(_ context.Context, room *chat.Room, userID string) error {
	f.zeroCounter(room.ID, userID)
	return nil
}

func (f *fakeStore) zeroCounter(roomID, userID string) {
	stored := f.rooms[roomID]
	if stored.EmployerID == userID {
		stored.EmployerUnread = 0
	} else {
		stored.SeekerUnread = 0
	}
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// fakeHub records deliveries instead of writing to sockets.
type fakeHub struct {
	online     map[string]bool
	sent       map[string][][]byte // userID → frames
	broadcasts map[string][][]byte // roomID → frames
}

func newFakeHub(onlineUsers ...string) *fakeHub {
	h := &fakeHub{
		online:     make(map[string]bool),
		sent:       make(map[string][][]byte),
		broadcasts: make(map[string][][]byte),
	}
	for _, u := range onlineUsers {
		h.online[u] = true
	}
	return h
}

func (h *fakeHub) IsOnline(userID string) bool { return h.online[userID] }

func (h *fakeHub) SendToUser(userID string, data []byte) bool {
	if !h.online[userID] {
		return false
	}
	h.sent[userID] = append(h.sent[userID], data)
	return true
}

func (h *fakeHub) Broadcast(roomID string, data []byte) {
	h.broadcasts[roomID] = append(h.broadcasts[roomID], data)
}

// fakeNotifier records side-effect calls.
type fakeNotifier struct {
	messageSent []struct {
		roomID          string
		recipientOnline bool
	}
	messagesRead [][]string
}

func (n *fakeNotifier) MessageSent(_ context.Context, room *chat.Room, _ *chat.Message, _ *identity.User, recipientOnline bool) {
	n.messageSent = append(n.messageSent, struct {
		roomID          string
		recipientOnline bool
	}{room.ID, recipientOnline})
}

func (n *fakeNotifier) MessagesRead(_ context.Context, _ *chat.Room, _ string, ids []string) {
	n.messagesRead = append(n.messagesRead, ids)
}

// ─── Test fixtures ───────────────────────────────────────────────────────────

var (
	employer = &identity.User{ID: "emp-1", Username: "acme", Role: identity.RoleEmployer, Status: "active"}
	seeker   = &identity.User{ID: "seek-1", Username: "jo", Role: identity.RoleSeeker, Status: "active"}
	outsider = &identity.User{ID: "seek-2", Username: "sam", Role: identity.RoleSeeker, Status: "active"}
	admin    = &identity.User{ID: "adm-1", Username: "root", Role: identity.RoleAdmin, Status: "active"}
)

func setup(onlineUsers ...string) (*chat.Service, *fakeStore, *fakeHub, *fakeNotifier) {
	store := newFakeStore()
	hub := newFakeHub(onlineUsers...)
	notifier := &fakeNotifier{}
	return chat.NewService(store, hub, notifier), store, hub, notifier
}

func decodeEvent(t *testing.T, frame []byte) chat.ClientEvent {
	t.Helper()
	var ev chat.ClientEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		t.Fatalf("frame is not a valid event envelope: %v", err)
	}
	return ev
}

// ─── CreateOrGetRoom ────────────────────────────────────────────────────────

func TestCreateOrGetRoom_EmployerCallerTakesEmployerColumn(t *testing.T) {
	svc, _, _, _ := setup()
	room, err := svc.CreateOrGetRoom(context.Background(), employer,
		chat.CreateRoomRequest{RecipientID: seeker.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.EmployerID != employer.ID || room.SeekerID != seeker.ID {
		t.Errorf("room sides = (%s, %s), want (%s, %s)",
			room.EmployerID, room.SeekerID, employer.ID, seeker.ID)
	}
}

func TestCreateOrGetRoom_SeekerCallerTakesSeekerColumn(t *testing.T) {
	svc, _, _, _ := setup()
	room, err := svc.CreateOrGetRoom(context.Background(), seeker,
		chat.CreateRoomRequest{RecipientID: employer.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.EmployerID != employer.ID || room.SeekerID != seeker.ID {
		t.Errorf("room sides = (%s, %s), want (%s, %s)",
			room.EmployerID, room.SeekerID, employer.ID, seeker.ID)
	}
}

func TestCreateOrGetRoom_SameTripleReturnsSameRoom(t *testing.T) {
	svc, _, _, _ := setup()
	jobID := "job-9"

	first, err := svc.CreateOrGetRoom(context.Background(), employer,
		chat.CreateRoomRequest{RecipientID: seeker.ID, JobID: &jobID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.CreateOrGetRoom(context.Background(), seeker,
		chat.CreateRoomRequest{RecipientID: employer.ID, JobID: &jobID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same (employer, seeker, job) triple produced two rooms: %s, %s", first.ID, second.ID)
	}
}

func TestCreateOrGetRoom_DifferentJobsAreDifferentRooms(t *testing.T) {
	svc, _, _, _ := setup()
	jobA, jobB := "job-a", "job-b"

	first, _ := svc.CreateOrGetRoom(context.Background(), employer,
		chat.CreateRoomRequest{RecipientID: seeker.ID, JobID: &jobA})
	second, _ := svc.CreateOrGetRoom(context.Background(), employer,
		chat.CreateRoomRequest{RecipientID: seeker.ID, JobID: &jobB})
	if first.ID == second.ID {
		t.Error("rooms scoped to different jobs must be distinct")
	}
}

func TestCreateOrGetRoom_MissingRecipientIsValidationError(t *testing.T) {
	svc, _, _, _ := setup()
	_, err := svc.CreateOrGetRoom(context.Background(), employer, chat.CreateRoomRequest{})
	var ve *chat.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

func TestCreateOrGetRoom_AdminRoleIsForbidden(t *testing.T) {
	svc, _, _, _ := setup()
	_, err := svc.CreateOrGetRoom(context.Background(), admin,
		chat.CreateRoomRequest{RecipientID: seeker.ID})
	var fe *chat.ForbiddenError
	if !errors.As(err, &fe) {
		t.Errorf("error = %v, want ForbiddenError", err)
	}
}

// ─── ListRooms ──────────────────────────────────────────────────────────────

func TestListRooms_AnnotatesCounterpartPresence(t *testing.T) {
	svc, store, _, _ := setup(seeker.ID) // only the seeker is connected
	store.addRoom("r1", employer.ID, seeker.ID, nil)
	store.addRoom("r2", employer.ID, outsider.ID, nil)

	views, err := svc.ListRooms(context.Background(), employer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d rooms, want 2", len(views))
	}
	for _, v := range views {
		wantOnline := v.SeekerID == seeker.ID
		if v.IsOnline != wantOnline {
			t.Errorf("room %s: IsOnline = %v, want %v", v.ID, v.IsOnline, wantOnline)
		}
	}
}

// ─── SendMessage ────────────────────────────────────────────────────────────

func TestSendMessage_PersistsAndIncrementsOnlyRecipientCounter(t *testing.T) {
	svc, store, _, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	_, err := svc.SendMessage(context.Background(), employer,
		chat.SendMessageRequest{RoomID: "r1", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(store.messages["r1"]); n != 1 {
		t.Fatalf("persisted %d messages, want 1", n)
	}
	room := store.rooms["r1"]
	if room.SeekerUnread != 1 {
		t.Errorf("seeker unread = %d, want 1", room.SeekerUnread)
	}
	if room.EmployerUnread != 0 {
		t.Errorf("employer (sender) unread = %d, want 0", room.EmployerUnread)
	}
	if room.LastMessage == nil || *room.LastMessage != "hello" {
		t.Errorf("room last message not updated: %v", room.LastMessage)
	}
	if room.LastMessageTime == nil {
		t.Error("room last message time not updated")
	}
}

func TestSendMessage_BroadcastsToRoomGroup(t *testing.T) {
	svc, store, hub, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	msg, err := svc.SendMessage(context.Background(), seeker,
		chat.SendMessageRequest{RoomID: "r1", Content: "hi there"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frames := hub.broadcasts["r1"]
	if len(frames) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(frames))
	}
	ev := decodeEvent(t, frames[0])
	if ev.Event != chat.EvNewMessage {
		t.Errorf("broadcast event = %q, want %q", ev.Event, chat.EvNewMessage)
	}
	var got chat.Message
	if err := json.Unmarshal(ev.Data, &got); err != nil {
		t.Fatalf("broadcast payload: %v", err)
	}
	if got.ID != msg.ID || got.Content != "hi there" {
		t.Errorf("broadcast carries %+v, want the persisted message", got)
	}
}

func TestSendMessage_NotifiesOnlineCounterpartOutOfBand(t *testing.T) {
	svc, store, hub, notifier := setup(employer.ID)
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	_, err := svc.SendMessage(context.Background(), seeker,
		chat.SendMessageRequest{RoomID: "r1", Content: "ping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frames := hub.sent[employer.ID]
	if len(frames) != 1 {
		t.Fatalf("got %d personal frames for the employer, want 1", len(frames))
	}
	if ev := decodeEvent(t, frames[0]); ev.Event != chat.EvMessageNotification {
		t.Errorf("personal event = %q, want %q", ev.Event, chat.EvMessageNotification)
	}
	if len(notifier.messageSent) != 1 || !notifier.messageSent[0].recipientOnline {
		t.Errorf("notifier calls = %+v, want one with recipientOnline=true", notifier.messageSent)
	}
}

func TestSendMessage_OfflineCounterpartGetsNoPersonalFrame(t *testing.T) {
	svc, store, hub, notifier := setup() // nobody online
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	if _, err := svc.SendMessage(context.Background(), seeker,
		chat.SendMessageRequest{RoomID: "r1", Content: "ping"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hub.sent[employer.ID]) != 0 {
		t.Error("offline counterpart must not receive a personal frame")
	}
	if len(notifier.messageSent) != 1 || notifier.messageSent[0].recipientOnline {
		t.Errorf("notifier calls = %+v, want one with recipientOnline=false", notifier.messageSent)
	}
}

func TestSendMessage_NonParticipantIsForbiddenAndStateUnchanged(t *testing.T) {
	svc, store, hub, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	_, err := svc.SendMessage(context.Background(), outsider,
		chat.SendMessageRequest{RoomID: "r1", Content: "let me in"})
	var fe *chat.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want ForbiddenError", err)
	}
	if len(store.messages["r1"]) != 0 {
		t.Error("rejected send must persist nothing")
	}
	if len(hub.broadcasts["r1"]) != 0 {
		t.Error("rejected send must broadcast nothing")
	}
	room := store.rooms["r1"]
	if room.EmployerUnread != 0 || room.SeekerUnread != 0 {
		t.Error("rejected send must not touch counters")
	}
}

func TestSendMessage_MissingFieldsAreValidationErrors(t *testing.T) {
	svc, store, _, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	cases := []chat.SendMessageRequest{
		{RoomID: "", Content: "x"},
		{RoomID: "r1", Content: ""},
		{RoomID: "r1", Content: "x", MessageType: "carrier_pigeon"},
		{RoomID: "r1", Content: "x", MessageType: "system"},
	}
	for _, req := range cases {
		_, err := svc.SendMessage(context.Background(), employer, req)
		var ve *chat.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("request %+v: error = %v, want ValidationError", req, err)
		}
	}
}

func TestSendMessage_UnknownRoomIsNotFound(t *testing.T) {
	svc, _, _, _ := setup()
	_, err := svc.SendMessage(context.Background(), employer,
		chat.SendMessageRequest{RoomID: "nope", Content: "x"})
	if !errors.Is(err, chat.ErrRoomNotFound) {
		t.Errorf("error = %v, want ErrRoomNotFound", err)
	}
}

func TestSendMessage_FailedPersistEmitsNothing(t *testing.T) {
	svc, store, hub, notifier := setup(employer.ID)
	store.addRoom("r1", employer.ID, seeker.ID, nil)
	store.failNext = errors.New("db down")

	if _, err := svc.SendMessage(context.Background(), seeker,
		chat.SendMessageRequest{RoomID: "r1", Content: "x"}); err == nil {
		t.Fatal("expected the store error to propagate")
	}
	if len(hub.broadcasts["r1"]) != 0 || len(hub.sent[employer.ID]) != 0 {
		t.Error("a failed persist must not emit anything")
	}
	if len(notifier.messageSent) != 0 {
		t.Error("a failed persist must not notify")
	}
}

// ─── JoinRoom ───────────────────────────────────────────────────────────────

func TestJoinRoom_ZeroesOwnCounterOnlyAndReturnsHistory(t *testing.T) {
	svc, store, _, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	// employer sends two, seeker one: employer unread 1, seeker unread 2
	svc.SendMessage(context.Background(), employer, chat.SendMessageRequest{RoomID: "r1", Content: "a"})
	svc.SendMessage(context.Background(), employer, chat.SendMessageRequest{RoomID: "r1", Content: "b"})
	svc.SendMessage(context.Background(), seeker, chat.SendMessageRequest{RoomID: "r1", Content: "c"})

	_, history, err := svc.JoinRoom(context.Background(), seeker, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	room := store.rooms["r1"]
	if room.SeekerUnread != 0 {
		t.Errorf("joiner's unread = %d, want 0", room.SeekerUnread)
	}
	if room.EmployerUnread != 1 {
		t.Errorf("counterpart's unread = %d, want 1 (untouched)", room.EmployerUnread)
	}

	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []string{"a", "b", "c"} {
		if history[i].Content != want {
			t.Errorf("history[%d] = %q, want %q (chronological, oldest first)", i, history[i].Content, want)
		}
	}
}

func TestJoinRoom_NonParticipantIsForbidden(t *testing.T) {
	svc, store, _, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	_, _, err := svc.JoinRoom(context.Background(), outsider, "r1")
	var fe *chat.ForbiddenError
	if !errors.As(err, &fe) {
		t.Errorf("error = %v, want ForbiddenError", err)
	}
}

func TestJoinRoom_UnknownRoomIsNotFound(t *testing.T) {
	svc, _, _, _ := setup()
	_, _, err := svc.JoinRoom(context.Background(), employer, "ghost")
	if !errors.Is(err, chat.ErrRoomNotFound) {
		t.Errorf("error = %v, want ErrRoomNotFound", err)
	}
}

// ─── MarkRead ───────────────────────────────────────────────────────────────

func TestMarkRead_OnlyCounterpartMessagesTransition(t *testing.T) {
	svc, store, _, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	svc.SendMessage(context.Background(), employer, chat.SendMessageRequest{RoomID: "r1", Content: "from employer"})
	svc.SendMessage(context.Background(), seeker, chat.SendMessageRequest{RoomID: "r1", Content: "from seeker"})

	ids, err := svc.MarkRead(context.Background(), seeker, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("marked %d messages, want 1", len(ids))
	}

	for _, m := range store.messages["r1"] {
		switch m.SenderID {
		case employer.ID:
			if !m.IsRead || m.ReadAt == nil {
				t.Error("counterpart-authored message should be read with a timestamp")
			}
		case seeker.ID:
			if m.IsRead {
				t.Error("caller's own message must be untouched")
			}
		}
	}
	if store.rooms["r1"].SeekerUnread != 0 {
		t.Error("reader's counter should be zeroed")
	}
}

func TestMarkRead_NotifiesOnlineCounterpartWithMessageIDs(t *testing.T) {
	svc, store, hub, notifier := setup(employer.ID)
	store.addRoom("r1", employer.ID, seeker.ID, nil)
	msg, _ := svc.SendMessage(context.Background(), employer,
		chat.SendMessageRequest{RoomID: "r1", Content: "read me"})

	ids, err := svc.MarkRead(context.Background(), seeker, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frames := hub.sent[employer.ID]
	if len(frames) != 1 {
		t.Fatalf("got %d personal frames for the employer, want 1", len(frames))
	}
	ev := decodeEvent(t, frames[0])
	if ev.Event != chat.EvMessagesRead {
		t.Fatalf("last personal event = %q, want %q", ev.Event, chat.EvMessagesRead)
	}
	var payload chat.MessagesReadPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ReaderID != seeker.ID || len(payload.MessageIDs) != 1 || payload.MessageIDs[0] != msg.ID {
		t.Errorf("payload = %+v, want reader %s and id %s", payload, seeker.ID, msg.ID)
	}
	if len(notifier.messagesRead) != 1 || notifier.messagesRead[0][0] != ids[0] {
		t.Errorf("notifier read calls = %+v", notifier.messagesRead)
	}
}

func TestMarkRead_NothingUnreadNotifiesNobody(t *testing.T) {
	svc, store, hub, notifier := setup(employer.ID)
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	ids, err := svc.MarkRead(context.Background(), seeker, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("marked %d messages in an empty room", len(ids))
	}
	if len(hub.sent[employer.ID]) != 0 || len(notifier.messagesRead) != 0 {
		t.Error("an empty mark-read must not notify")
	}
}

func TestMarkRead_NonParticipantIsForbidden(t *testing.T) {
	svc, store, _, _ := setup()
	store.addRoom("r1", employer.ID, seeker.ID, nil)

	_, err := svc.MarkRead(context.Background(), outsider, "r1")
	var fe *chat.ForbiddenError
	if !errors.As(err, &fe) {
		t.Errorf("error = %v, want ForbiddenError", err)
	}
}
