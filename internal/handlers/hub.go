// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/sirupsen/logrus"
)

// outBuffer is how many events may queue per connection before new ones are dropped.
const outBuffer = 32

// Connection is one websocket client. The write pump drains OutChan.
type Connection struct {
	ID       uuid.UUID
	MemberID uuid.UUID // zero until the client creates, joins or rejoins
	Code     string
	OutChan  chan interface{}
	Cancel   context.CancelFunc
}

func newConnection(cancel context.CancelFunc) *Connection {
	return &Connection{
		ID:      uuid.New(),
		OutChan: make(chan interface{}, outBuffer),
		Cancel:  cancel,
	}
}

// Hub groups connections by session code and maps member identities to their
// current connection. It implements game.Broadcaster.
type Hub struct {
	mu       sync.Mutex
	byMember map[uuid.UUID]*Connection
	rooms    map[string]map[*Connection]struct{}
	logger   *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		byMember: make(map[uuid.UUID]*Connection),
		rooms:    make(map[string]map[*Connection]struct{}),
		logger:   logger,
	}
}

// Bind points memberID at conn and places conn in the room for code (code may
// be empty while a session is being created). A connection previously bound
// to the same member is evicted and cancelled.
func (h *Hub) Bind(conn *Connection, code string, memberID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.byMember[memberID]; ok && prev != conn {
		h.leaveRoomLocked(prev)
		prev.MemberID = uuid.Nil
		if prev.Cancel != nil {
			prev.Cancel()
		}
		h.logger.Infof("Hub: member %s moved from connection %s to %s", memberID, prev.ID, conn.ID)
	}
	if conn.MemberID != uuid.Nil && conn.MemberID != memberID {
		delete(h.byMember, conn.MemberID)
	}
	h.leaveRoomLocked(conn)

	conn.MemberID = memberID
	conn.Code = code
	h.byMember[memberID] = conn
	if code != "" {
		room, ok := h.rooms[code]
		if !ok {
			room = make(map[*Connection]struct{})
			h.rooms[code] = room
		}
		room[conn] = struct{}{}
	}
}

// Unbind removes conn from the hub. It reports the member and code conn was
// bound to, and whether conn was still that member's current connection.
func (h *Hub) Unbind(conn *Connection) (memberID uuid.UUID, code string, current bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	memberID, code = conn.MemberID, conn.Code
	h.leaveRoomLocked(conn)
	if memberID != uuid.Nil && h.byMember[memberID] == conn {
		delete(h.byMember, memberID)
		current = true
	}
	conn.MemberID = uuid.Nil
	conn.Code = ""
	return memberID, code, current
}

// Binding returns the member and code conn is currently bound to.
func (h *Hub) Binding(conn *Connection) (uuid.UUID, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return conn.MemberID, conn.Code
}

// leaveRoomLocked drops conn from its room, deleting the room when empty.
// Assumes lock is held.
func (h *Hub) leaveRoomLocked(conn *Connection) {
	if conn.Code == "" {
		return
	}
	if room, ok := h.rooms[conn.Code]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, conn.Code)
		}
	}
}

// Broadcast queues ev on every connection in the room for code.
func (h *Hub) Broadcast(code string, ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[code] {
		h.enqueueLocked(conn, ev)
	}
}

// SendTo queues ev on memberID's current connection, if any.
func (h *Hub) SendTo(memberID uuid.UUID, ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.byMember[memberID]; ok {
		h.enqueueLocked(conn, ev)
	}
}

// enqueueLocked never blocks; a full buffer drops the event.
// Assumes lock is held.
func (h *Hub) enqueueLocked(conn *Connection, msg interface{}) {
	select {
	case conn.OutChan <- msg:
	default:
		h.logger.Warnf("Hub: dropping message for connection %s, buffer full", conn.ID)
	}
}

// Send queues msg on conn directly, bypassing any binding.
func (h *Hub) Send(conn *Connection, msg interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(conn, msg)
}

// RoomSize returns the number of connections bound to code.
func (h *Hub) RoomSize(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[code])
}
