package chat

import (
	"sync"
)

// Conn is the transport handle the hub fans events out to. A Client
// implements it over a websocket; tests substitute fakes.
type Conn interface {
	// Enqueue hands a frame to the connection's writer. It must not
	// block; a false return means the connection is dead or backlogged.
	Enqueue(data []byte) bool
	// Shutdown tears the connection down.
	Shutdown()
}

// Hub is the in-memory session registry: one live connection per user
// (last connection wins) and per-room broadcast groups. All maps are
// guarded by a single mutex; mutation happens only on connect,
// disconnect, and explicit room joins.
type Hub struct {
	mu sync.RWMutex

	// sessions maps user id → the user's single active connection.
	sessions map[string]Conn
	// members maps room id → the set of user ids joined to the room's
	// broadcast group. Connections are resolved through sessions at
	// delivery time, so a replaced connection can never linger here.
	members map[string]map[string]struct{}
	// joined is the reverse index: user id → rooms their current
	// connection has joined.
	joined map[string]map[string]struct{}
}

// NewHub returns an empty registry.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]Conn),
		members:  make(map[string]map[string]struct{}),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register installs conn as the user's active connection. If the user
// already has one, the old connection is shut down and its room
// memberships dropped: group membership is connection-scoped, so a
// fresh connection re-joins explicitly.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	old := h.sessions[userID]
	h.sessions[userID] = conn
	h.dropMembershipsLocked(userID)
	h.mu.Unlock()

	if old != nil {
		old.Shutdown()
	}
}

// Unregister removes conn if it is still the user's active connection.
// A stale connection (already replaced by Register) is a no-op, so a
// late disconnect cannot tear down its successor's session.
func (h *Hub) Unregister(userID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[userID] != conn {
		return false
	}
	delete(h.sessions, userID)
	h.dropMembershipsLocked(userID)
	return true
}

// JoinRoom adds the user's connection to a room's broadcast group, but
// only while conn is still the user's active connection: a replaced
// connection's in-flight join must not subscribe its successor.
func (h *Hub) JoinRoom(roomID, userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[userID] != conn {
		return
	}
	if h.members[roomID] == nil {
		h.members[roomID] = make(map[string]struct{})
	}
	h.members[roomID][userID] = struct{}{}
	if h.joined[userID] == nil {
		h.joined[userID] = make(map[string]struct{})
	}
	h.joined[userID][roomID] = struct{}{}
}

// IsOnline reports whether the user holds an active connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[userID]
	return ok
}

// SendToUser delivers a frame to the user's personal channel. Returns
// false when the user has no active connection.
func (h *Hub) SendToUser(userID string, data []byte) bool {
	h.mu.RLock()
	conn, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Enqueue(data)
}

// Broadcast delivers a frame to every connection joined to the room's
// group.
func (h *Hub) Broadcast(roomID string, data []byte) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.members[roomID]))
	for userID := range h.members[roomID] {
		if conn, ok := h.sessions[userID]; ok {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Enqueue(data)
	}
}

// BroadcastAll delivers a frame to every active connection (presence
// announcements).
func (h *Hub) BroadcastAll(data []byte) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.sessions))
	for _, conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Enqueue(data)
	}
}

// dropMembershipsLocked removes the user from every broadcast group.
// Caller holds h.mu.
func (h *Hub) dropMembershipsLocked(userID string) {
	for roomID := range h.joined[userID] {
		delete(h.members[roomID], userID)
		if len(h.members[roomID]) == 0 {
			delete(h.members, roomID)
		}
	}
	delete(h.joined, userID)
}
