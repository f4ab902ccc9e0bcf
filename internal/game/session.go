// internal/game/session.go
package game

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/puzzle"
	"github.com/sirupsen/logrus"
)

// Mode selects the match rules. Both modes currently end on the first
// completed board.
type Mode string

const (
	ModeCompetitive Mode = "competitive"
	ModeCooperative Mode = "cooperative"
)

// ParseMode maps client input to a Mode, defaulting to competitive.
func ParseMode(s string) Mode {
	if Mode(s) == ModeCooperative {
		return ModeCooperative
	}
	return ModeCompetitive
}

// Role distinguishes the two seats.
type Role string

const (
	RoleP1        Role = "p1"
	RoleP2        Role = "p2"
	RoleSpectator Role = "spectator"
)

const (
	MaxPlayers     = 2
	InitialHints   = 3
	MaxChatEntries = 50
	MaxChatRunes   = 120
)

// Player is one of the two competing seats. ID is stable for the life of the
// session; connections are bound to it, never the other way around.
type Player struct {
	ID        uuid.UUID
	Name      string
	Role      Role
	Connected bool
}

// Spectator is a read-only observer.
type Spectator struct {
	ID   uuid.UUID
	Name string
}

// Progress tracks one player's board. Filled always equals the number of
// cells recorded as correct.
type Progress struct {
	Filled         int
	Score          int
	Errors         int
	HintsRemaining int

	correct map[int]bool
}

func newProgress() *Progress {
	return &Progress{HintsRemaining: InitialHints, correct: make(map[int]bool)}
}

// Member is what a caller learns about itself after joining.
type Member struct {
	ID   uuid.UUID `json:"playerId"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

// Spectating reports whether the member is an observer.
func (m Member) Spectating() bool {
	return m.Role == RoleSpectator
}

// ChatMessage is one entry of the bounded chat log.
type ChatMessage struct {
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Emoji string `json:"emoji"`
	TS    int64  `json:"ts"`
}

// TicketIssuer signs rejoin tickets handed to players.
type TicketIssuer interface {
	IssueTicket(code string, playerID uuid.UUID, role string) (string, error)
}

// Session holds the entire state for one match in memory.
type Session struct {
	Code       string
	Mode       Mode
	Difficulty string
	CreatedAt  time.Time

	solution   puzzle.Grid
	board      puzzle.Grid
	totalEmpty int

	players    []*Player
	spectators []*Spectator
	progress   map[uuid.UUID]*Progress
	chat       []ChatMessage

	state     State
	startTime time.Time
	pausedAt  time.Time
	closed    bool

	countdownTimer *time.Timer
	graceTimer     *time.Timer
	pauseSeq       int

	timings Timings
	bc      Broadcaster
	tickets TicketIssuer
	results ResultRecorder
	now     func() time.Time
	log     *logrus.Entry

	Mu sync.Mutex
}

// sessionDeps carries the collaborators a Session needs from its registry.
type sessionDeps struct {
	timings Timings
	bc      Broadcaster
	tickets TicketIssuer
	results ResultRecorder
	now     func() time.Time
	logger  *logrus.Logger
}

func newSession(code string, mode Mode, difficulty string, p *puzzle.Puzzle, deps sessionDeps) *Session {
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.logger == nil {
		deps.logger = logrus.StandardLogger()
	}
	return &Session{
		Code:       code,
		Mode:       mode,
		Difficulty: difficulty,
		CreatedAt:  deps.now(),
		solution:   p.Solution,
		board:      p.Board,
		totalEmpty: p.Board.CountBlanks(),
		progress:   make(map[uuid.UUID]*Progress),
		state:      StateWaiting,
		timings:    deps.timings,
		bc:         deps.bc,
		tickets:    deps.tickets,
		results:    deps.results,
		now:        deps.now,
		log:        deps.logger.WithField("session", code),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.state
}

// TotalEmpty returns the number of blanks in the puzzle.
func (s *Session) TotalEmpty() int {
	return s.totalEmpty
}

// View returns the public projection of the session.
func (s *Session) View() StateView {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.viewLocked()
}

// ChatLog returns a copy of the chat log, oldest first.
func (s *Session) ChatLog() []ChatMessage {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return append([]ChatMessage(nil), s.chat...)
}

// Progress returns a copy of a player's progress.
func (s *Session) Progress(playerID uuid.UUID) (Progress, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	p, ok := s.progress[playerID]
	if !ok {
		return Progress{}, false
	}
	cp := *p
	cp.correct = nil
	return cp, true
}

// Join adds id as the next player, or as a spectator once both seats are taken.
// The caller must bind its connection to id before calling so that the
// session_joined event reaches it.
func (s *Session) Join(id uuid.UUID, name string) (Member, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.closed {
		return Member{}, ErrSessionNotFound
	}
	if s.state == StateFinished {
		return Member{}, ErrSessionFinished
	}

	if len(s.players) >= MaxPlayers {
		if name == "" {
			name = "Spectator"
		}
		s.spectators = append(s.spectators, &Spectator{ID: id, Name: name})
		s.log.Infof("Spectator %s (%s) joined", name, id)
		s.sendLocked(id, Event{
			Type:  EventJoinedAsSpectator,
			State: s.viewPtrLocked(),
			Payload: map[string]interface{}{
				"playerId": id,
				"chat":     s.chatCopyLocked(),
			},
		})
		s.broadcastStateLocked()
		return Member{ID: id, Name: name, Role: RoleSpectator}, nil
	}

	p := s.addPlayerLocked(id, name)
	s.sendLocked(id, s.memberEventLocked(EventSessionJoined, p))
	s.broadcastStateLocked()

	if len(s.players) == MaxPlayers {
		s.fireLocked(TriggerPlayersReady, nil)
	}
	return Member{ID: p.ID, Name: p.Name, Role: p.Role}, nil
}

// host seats the creator as p1 and announces the new session to them.
func (s *Session) host(id uuid.UUID, name string) Member {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	p := s.addPlayerLocked(id, name)
	s.sendLocked(id, s.memberEventLocked(EventSessionCreated, p))
	return Member{ID: p.ID, Name: p.Name, Role: p.Role}
}

// addPlayerLocked appends a player with fresh progress.
// Assumes lock is held.
func (s *Session) addPlayerLocked(id uuid.UUID, name string) *Player {
	role := RoleP1
	if len(s.players) == 1 {
		role = RoleP2
	}
	if name == "" {
		name = "Player1"
		if role == RoleP2 {
			name = "Player2"
		}
	}
	p := &Player{ID: id, Name: name, Role: role, Connected: true}
	s.players = append(s.players, p)
	s.progress[id] = newProgress()
	s.log.Infof("Player %s (%s) joined as %s", name, id, role)
	return p
}

// Lookup finds the player a rejoin request refers to: by id when one is given,
// otherwise by display name and role.
func (s *Session) Lookup(id uuid.UUID, name string, role Role) (Member, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.closed {
		return Member{}, ErrSessionNotFound
	}
	for _, p := range s.players {
		if (id != uuid.Nil && p.ID == id) || (id == uuid.Nil && p.Name == name && p.Role == role) {
			return Member{ID: p.ID, Name: p.Name, Role: p.Role}, nil
		}
	}
	return Member{}, ErrPlayerNotFound
}

// Rejoin marks a known player connected again. Progress stays keyed by the
// player's identity, so nothing is copied. If the match is paused and every
// player is back, it resumes.
func (s *Session) Rejoin(id uuid.UUID) (Member, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.closed {
		return Member{}, ErrSessionNotFound
	}
	p := s.playerLocked(id)
	if p == nil {
		return Member{}, ErrPlayerNotFound
	}
	p.Connected = true
	if _, ok := s.progress[id]; !ok {
		s.progress[id] = newProgress()
	}
	s.log.Infof("Player %s (%s) rejoined", p.Name, id)

	s.sendLocked(id, s.memberEventLocked(EventSessionJoined, p))
	if s.state == StatePaused && s.allConnectedLocked() {
		s.fireLocked(TriggerReconnected, p)
	}
	s.broadcastStateLocked()
	return Member{ID: p.ID, Name: p.Name, Role: p.Role}, nil
}

// Disconnect handles a member's connection loss. Spectators are dropped;
// players stay seated but a running match pauses.
func (s *Session) Disconnect(id uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.closed {
		return
	}
	for i, sp := range s.spectators {
		if sp.ID == id {
			s.spectators = append(s.spectators[:i], s.spectators[i+1:]...)
			s.log.Infof("Spectator %s left", id)
			s.broadcastStateLocked()
			return
		}
	}

	p := s.playerLocked(id)
	if p == nil {
		s.log.Debugf("Disconnect for unknown member %s", id)
		return
	}
	if !p.Connected {
		return
	}
	p.Connected = false
	s.log.Infof("Player %s (%s) disconnected in state %s", p.Name, id, s.state)
	s.broadcastLocked(Event{Type: EventPlayerDisconnected, Payload: map[string]interface{}{
		"name": p.Name,
		"role": p.Role,
	}})
	if s.state == StatePlaying {
		s.fireLocked(TriggerPlayerLost, p)
	}
	s.broadcastStateLocked()
}

// Chat appends a message to the log and relays it to the session.
func (s *Session) Chat(id uuid.UUID, text, emoji string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	name, role, ok := s.memberLocked(id)
	if !ok {
		return
	}
	if utf8.RuneCountInString(text) > MaxChatRunes {
		text = string([]rune(text)[:MaxChatRunes])
	}
	msg := ChatMessage{Name: name, Role: role, Text: text, Emoji: emoji, TS: s.now().UnixMilli()}
	s.chat = append(s.chat, msg)
	if len(s.chat) > MaxChatEntries {
		s.chat = s.chat[len(s.chat)-MaxChatEntries:]
	}
	s.broadcastLocked(Event{Type: EventChat, Payload: map[string]interface{}{"message": msg}})
}

// React relays a quick emoji reaction without logging it.
func (s *Session) React(id uuid.UUID, emoji string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	_, role, ok := s.memberLocked(id)
	if !ok {
		return
	}
	s.broadcastLocked(Event{Type: EventReaction, Payload: map[string]interface{}{
		"playerId": id,
		"role":     role,
		"emoji":    emoji,
	}})
}

// Close stops all timers. Pending callbacks see closed and do nothing.
func (s *Session) Close() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.closed = true
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
		s.countdownTimer = nil
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// announceWinnerLocked reveals the solution and final standings.
// Assumes lock is held.
func (s *Session) announceWinnerLocked(winner *Player) {
	elapsed := s.now().Sub(s.startTime)
	payload := map[string]interface{}{
		"elapsed":       elapsed.Milliseconds(),
		"finalProgress": s.playerViewsLocked(),
		"solution":      s.solution,
		"winnerName":    "?",
	}
	if winner != nil {
		payload["winnerId"] = winner.ID
		payload["winnerName"] = winner.Name
		payload["winnerRole"] = winner.Role
	}
	s.broadcastLocked(Event{Type: EventMatchOver, Payload: payload})
	s.recordResultLocked("completed", winner, elapsed)
}

// abortLocked ends the match without a winner.
// Assumes lock is held.
func (s *Session) abortLocked(reason string) {
	s.broadcastLocked(Event{Type: EventMatchAborted, Payload: map[string]interface{}{"reason": reason}})
	s.broadcastStateLocked()
	var elapsed time.Duration
	if !s.startTime.IsZero() {
		elapsed = s.now().Sub(s.startTime)
	}
	s.recordResultLocked("aborted", nil, elapsed)
}

// memberEventLocked builds session_created / session_joined for a player.
// Assumes lock is held.
func (s *Session) memberEventLocked(t EventType, p *Player) Event {
	payload := map[string]interface{}{
		"code":     s.Code,
		"playerId": p.ID,
		"role":     p.Role,
		"chat":     s.chatCopyLocked(),
	}
	if s.tickets != nil {
		ticket, err := s.tickets.IssueTicket(s.Code, p.ID, string(p.Role))
		if err != nil {
			s.log.Warnf("Failed to issue rejoin ticket for %s: %v", p.ID, err)
		} else {
			payload["ticket"] = ticket
		}
	}
	return Event{Type: t, State: s.viewPtrLocked(), Payload: payload}
}

func (s *Session) playerLocked(id uuid.UUID) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) memberLocked(id uuid.UUID) (string, Role, bool) {
	if p := s.playerLocked(id); p != nil {
		return p.Name, p.Role, true
	}
	for _, sp := range s.spectators {
		if sp.ID == id {
			return sp.Name, RoleSpectator, true
		}
	}
	return "", "", false
}

func (s *Session) isSpectatorLocked(id uuid.UUID) bool {
	for _, sp := range s.spectators {
		if sp.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) allConnectedLocked() bool {
	for _, p := range s.players {
		if !p.Connected {
			return false
		}
	}
	return true
}

func (s *Session) chatCopyLocked() []ChatMessage {
	return append([]ChatMessage{}, s.chat...)
}

func (s *Session) playerViewsLocked() []PlayerView {
	views := make([]PlayerView, 0, len(s.players))
	for _, p := range s.players {
		v := PlayerView{ID: p.ID, Name: p.Name, Role: p.Role, Hints: InitialHints, Connected: p.Connected}
		if pr, ok := s.progress[p.ID]; ok {
			v.Filled = pr.Filled
			v.Score = pr.Score
			v.Errors = pr.Errors
			v.Hints = pr.HintsRemaining
		}
		views = append(views, v)
	}
	return views
}

func (s *Session) viewLocked() StateView {
	return StateView{
		Code:           s.Code,
		Mode:           s.Mode,
		Difficulty:     s.Difficulty,
		Puzzle:         s.board,
		TotalEmpty:     s.totalEmpty,
		GameState:      s.state,
		Players:        s.playerViewsLocked(),
		SpectatorCount: len(s.spectators),
	}
}

func (s *Session) viewPtrLocked() *StateView {
	v := s.viewLocked()
	return &v
}

func (s *Session) broadcastLocked(ev Event) {
	if s.bc == nil {
		return
	}
	s.bc.Broadcast(s.Code, ev)
}

func (s *Session) broadcastStateLocked() {
	s.broadcastLocked(Event{Type: EventSessionUpdate, State: s.viewPtrLocked()})
}

func (s *Session) sendLocked(id uuid.UUID, ev Event) {
	if s.bc == nil {
		return
	}
	s.bc.SendTo(id, ev)
}

// recordResultLocked hands the outcome to the results recorder without blocking.
// Assumes lock is held.
func (s *Session) recordResultLocked(outcome string, winner *Player, elapsed time.Duration) {
	if s.results == nil {
		return
	}
	res := MatchResult{
		Code:       s.Code,
		Mode:       string(s.Mode),
		Difficulty: s.Difficulty,
		Outcome:    outcome,
		ElapsedMs:  elapsed.Milliseconds(),
		Players:    s.playerViewsLocked(),
		FinishedAt: s.now(),
	}
	if winner != nil {
		res.WinnerID = winner.ID
		res.WinnerName = winner.Name
		res.WinnerRole = string(winner.Role)
	}
	rec, entry := s.results, s.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rec.RecordResult(ctx, res); err != nil {
			entry.Warnf("Failed to record match result: %v", err)
		}
	}()
}
