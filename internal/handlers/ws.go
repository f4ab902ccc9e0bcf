// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/auth"
	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/jason-s-yu/sudoku-battle/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "sudoku"

// createTimeout bounds puzzle generation for a single create request.
const createTimeout = 10 * time.Second

// ClientMessage is the envelope for every inbound websocket message. Only the
// fields relevant to Type are read.
type ClientMessage struct {
	Type       string `json:"type"`
	Code       string `json:"code,omitempty"`
	Name       string `json:"name,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Role       string `json:"role,omitempty"`
	Ticket     string `json:"ticket,omitempty"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	Value      int    `json:"value"`
	WasCorrect bool   `json:"wasCorrect"`
	Text       string `json:"text,omitempty"`
	Emoji      string `json:"emoji,omitempty"`
}

// SessionServer owns the registry and the hub that delivers its events.
type SessionServer struct {
	Registry *game.Registry
	Hub      *Hub
	Tickets  *auth.Tickets
	Origins  []string
	Logger   *logrus.Logger
}

// NewSessionServer wires a hub and a registry together. cfg.Tickets defaults to tickets.
func NewSessionServer(logger *logrus.Logger, tickets *auth.Tickets, origins []string, cfg game.RegistryConfig) *SessionServer {
	hub := NewHub(logger)
	if cfg.Tickets == nil && tickets != nil {
		cfg.Tickets = tickets
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &SessionServer{
		Registry: game.NewRegistry(hub, logger, cfg),
		Hub:      hub,
		Tickets:  tickets,
		Origins:  origins,
		Logger:   logger,
	}
}

// WSHandler upgrades the request, then reads client messages until the
// connection closes.
func (ss *SessionServer) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: ss.Origins,
		})
		if err != nil {
			ss.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the sudoku subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := newConnection(cancel)
		middleware.LogWebSocketConnect(ss.Logger, r.RemoteAddr, r.URL.Path)

		go writePump(ctx, c, conn, ss.Logger)
		err = ss.readPump(ctx, c, conn)

		memberID, code, current := ss.Hub.Unbind(conn)
		if current && code != "" {
			if s, gerr := ss.Registry.Get(code); gerr == nil {
				s.Disconnect(memberID)
			}
		}
		middleware.LogWebSocketDisconnect(ss.Logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes messages and dispatches them one at a time. It returns the
// read error that ended the loop, or nil on a normal close.
func (ss *SessionServer) readPump(ctx context.Context, c *websocket.Conn, conn *Connection) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			ss.Logger.Warnf("Received non-text message type %d on connection %s. Ignoring.", msgType, conn.ID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ss.Logger.Warnf("Invalid JSON on connection %s: %v", conn.ID, err)
			ss.Hub.Send(conn, game.ErrorEvent("Invalid JSON format."))
			continue
		}
		ss.dispatch(ctx, conn, msg)
	}
}

// dispatch handles one message. A panic is logged and reported to the sender
// instead of tearing down the connection.
func (ss *SessionServer) dispatch(ctx context.Context, conn *Connection, msg ClientMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			ss.Logger.Errorf("Panic handling %q on connection %s: %v", msg.Type, conn.ID, rec)
			ss.Hub.Send(conn, game.ErrorEvent("Internal error."))
		}
	}()

	ss.Logger.Debugf("Received %q on connection %s", msg.Type, conn.ID)

	var err error
	switch msg.Type {
	case "create":
		err = ss.handleCreate(ctx, conn, msg)
	case "join":
		err = ss.handleJoin(conn, msg)
	case "rejoin":
		err = ss.handleRejoin(conn, msg)
	case "submit_cell":
		err = ss.withSession(conn, func(s *game.Session, id uuid.UUID) error {
			return s.SubmitCell(id, msg.Row, msg.Col, msg.Value)
		})
	case "erase_cell":
		err = ss.withSession(conn, func(s *game.Session, id uuid.UUID) error {
			return s.EraseCell(id, msg.Row, msg.Col, msg.WasCorrect)
		})
	case "use_hint":
		err = ss.withSession(conn, func(s *game.Session, id uuid.UUID) error {
			return s.UseHint(id, msg.Row, msg.Col)
		})
	case "chat":
		err = ss.withSession(conn, func(s *game.Session, id uuid.UUID) error {
			s.Chat(id, msg.Text, msg.Emoji)
			return nil
		})
	case "reaction":
		err = ss.withSession(conn, func(s *game.Session, id uuid.UUID) error {
			s.React(id, msg.Emoji)
			return nil
		})
	case "ping":
		ss.Hub.Send(conn, map[string]string{"type": "pong"})
	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if err == nil || errors.Is(err, game.ErrInvalidState) || errors.Is(err, game.ErrHintExhausted) {
		return
	}
	ss.Logger.Debugf("Rejected %q on connection %s: %v", msg.Type, conn.ID, err)
	ss.Hub.Send(conn, game.ErrorEvent(err.Error()))
}

var errAlreadySeated = errors.New("connection already belongs to a session")
var errNotSeated = errors.New("connection has not joined a session")

func (ss *SessionServer) ensureUnseated(conn *Connection) error {
	if id, _ := ss.Hub.Binding(conn); id != uuid.Nil {
		return errAlreadySeated
	}
	return nil
}

func (ss *SessionServer) handleCreate(ctx context.Context, conn *Connection, msg ClientMessage) error {
	if err := ss.ensureUnseated(conn); err != nil {
		return err
	}
	id := uuid.New()
	ss.Hub.Bind(conn, "", id)

	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()
	s, _, err := ss.Registry.Create(ctx, id, msg.Name, game.ParseMode(msg.Mode), msg.Difficulty)
	if err != nil {
		ss.Hub.Unbind(conn)
		return err
	}
	ss.Hub.Bind(conn, s.Code, id)
	return nil
}

func (ss *SessionServer) handleJoin(conn *Connection, msg ClientMessage) error {
	if err := ss.ensureUnseated(conn); err != nil {
		return err
	}
	s, err := ss.Registry.Get(msg.Code)
	if err != nil {
		return err
	}
	id := uuid.New()
	ss.Hub.Bind(conn, s.Code, id)
	m, err := s.Join(id, msg.Name)
	if err != nil {
		ss.Hub.Unbind(conn)
		return err
	}
	if m.Spectating() {
		ss.Logger.Infof("Connection %s is watching session %s", conn.ID, s.Code)
	}
	return nil
}

// handleRejoin matches by ticket when one is presented, falling back to
// display name plus role.
func (ss *SessionServer) handleRejoin(conn *Connection, msg ClientMessage) error {
	if err := ss.ensureUnseated(conn); err != nil {
		return err
	}
	code := msg.Code
	var byID uuid.UUID
	if msg.Ticket != "" && ss.Tickets != nil {
		t, err := ss.Tickets.ParseTicket(msg.Ticket)
		if err != nil {
			ss.Logger.Debugf("Rejecting rejoin ticket on connection %s: %v", conn.ID, err)
			return errors.New("invalid rejoin ticket")
		}
		if code != "" && game.NormalizeCode(code) != t.Code {
			return errors.New("ticket does not match session")
		}
		code, byID = t.Code, t.PlayerID
	}

	s, err := ss.Registry.Get(code)
	if err != nil {
		return err
	}
	m, err := s.Lookup(byID, msg.Name, game.Role(strings.ToLower(msg.Role)))
	if err != nil {
		return err
	}
	ss.Hub.Bind(conn, s.Code, m.ID)
	if _, err := s.Rejoin(m.ID); err != nil {
		ss.Hub.Unbind(conn)
		return err
	}
	return nil
}

// withSession runs fn against the session and member conn is bound to.
func (ss *SessionServer) withSession(conn *Connection, fn func(s *game.Session, id uuid.UUID) error) error {
	id, code := ss.Hub.Binding(conn)
	if id == uuid.Nil || code == "" {
		return errNotSeated
	}
	s, err := ss.Registry.Get(code)
	if err != nil {
		return err
	}
	return fn(s, id)
}

// writePump drains conn.OutChan onto the socket and pings periodically.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing msg for connection %s: %v", conn.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for connection %s: %v", conn.ID, err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to send ping to connection %s: %v. Assuming disconnect.", conn.ID, err)
				conn.Cancel()
				return
			}
		}
	}
}
