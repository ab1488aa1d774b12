package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jobconnect/realtime-service/internal/identity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client is one authenticated websocket connection. Inbound events are
// handled strictly one at a time (readPump is a single goroutine), so a
// connection's own events never interleave; events from different
// connections interleave freely.
type Client struct {
	hub  *Hub
	svc  *Service
	conn *websocket.Conn
	user *identity.User

	send chan []byte
	once sync.Once
	done chan struct{}
}

func newClient(hub *Hub, svc *Service, conn *websocket.Conn, user *identity.User) *Client {
	return &Client{
		hub:  hub,
		svc:  svc,
		conn: conn,
		user: user,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Enqueue implements Conn. A full buffer counts as a dead connection:
// the slow client is shut down rather than blocking the hub.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.Shutdown()
		return false
	}
}

// Shutdown implements Conn. Safe to call from any goroutine, any number
// of times.
func (c *Client) Shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// run services the connection until it drops, then cleans up the
// session and announces the presence change.
func (c *Client) run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)

	wasCurrent := c.hub.Unregister(c.user.ID, c)
	c.Shutdown()

	if wasCurrent {
		slog.Info("chat disconnect", "userId", c.user.ID)
		if frame, err := EncodeEvent(EvUserStatus, UserStatusPayload{
			UserID: c.user.ID, Status: "offline",
		}); err == nil {
			c.hub.BroadcastAll(frame)
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("chat read error", "userId", c.user.ID, "err", err)
			}
			return
		}
		c.dispatch(ctx, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Shutdown()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

// dispatch routes one inbound event to the service and emits the reply.
// Each event runs to completion, persistence included, before the next
// is read.
func (c *Client) dispatch(ctx context.Context, raw []byte) {
	var ev ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.emitError(&ValidationError{Msg: "malformed event"})
		return
	}

	switch ev.Event {
	case EvGetChatRooms:
		rooms, err := c.svc.ListRooms(ctx, c.user)
		if err != nil {
			c.emitError(err)
			return
		}
		c.emit(EvChatRooms, rooms)

	case EvCreateChatRoom:
		var req CreateRoomRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			c.emitError(&ValidationError{Msg: "malformed create_chat_room payload"})
			return
		}
		room, err := c.svc.CreateOrGetRoom(ctx, c.user, req)
		if err != nil {
			c.emitError(err)
			return
		}
		c.hub.JoinRoom(room.ID, c.user.ID, c)
		c.emit(EvChatRoomCreated, room)

	case EvJoinChatRoom:
		var req JoinRoomRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			c.emitError(&ValidationError{Msg: "malformed join_chat_room payload"})
			return
		}
		room, history, err := c.svc.JoinRoom(ctx, c.user, req.RoomID)
		if err != nil {
			c.emitError(err)
			return
		}
		c.hub.JoinRoom(room.ID, c.user.ID, c)
		c.emit(EvChatHistory, ChatHistoryPayload{RoomID: room.ID, Messages: history})

	case EvSendMessage:
		var req SendMessageRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			c.emitError(&ValidationError{Msg: "malformed send_message payload"})
			return
		}
		// The sender gets the persisted message through the room
		// broadcast like any other joined listener.
		if _, err := c.svc.SendMessage(ctx, c.user, req); err != nil {
			c.emitError(err)
		}

	case EvMarkRead:
		var req MarkReadRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			c.emitError(&ValidationError{Msg: "malformed mark_messages_read payload"})
			return
		}
		if _, err := c.svc.MarkRead(ctx, c.user, req.RoomID); err != nil {
			c.emitError(err)
			return
		}
		c.emit(EvMarkReadSuccess, MarkReadSuccessPayload{RoomID: req.RoomID})

	default:
		c.emitError(&ValidationError{Msg: "unknown event " + ev.Event})
	}
}

// emit sends a server event to this connection only.
func (c *Client) emit(event string, data any) {
	frame, err := EncodeEvent(event, data)
	if err != nil {
		slog.Warn("encode event failed", "event", event, "err", err)
		return
	}
	c.Enqueue(frame)
}

// emitError maps a service error onto the error event taxonomy and
// delivers it to the originating connection only.
func (c *Client) emitError(err error) {
	c.emit(EvError, errorPayloadFor(err))
}

// errorPayloadFor classifies a service error. Infra failures are
// reported as internal without detail.
func errorPayloadFor(err error) ErrorPayload {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrorPayload{Kind: ErrKindValidation, Message: ve.Msg}
	}
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return ErrorPayload{Kind: ErrKindForbidden, Message: fe.Msg}
	}
	if errors.Is(err, ErrRoomNotFound) {
		return ErrorPayload{Kind: ErrKindNotFound, Message: err.Error()}
	}
	slog.Warn("chat internal error", "err", err)
	return ErrorPayload{Kind: ErrKindInternal, Message: "internal error"}
}
