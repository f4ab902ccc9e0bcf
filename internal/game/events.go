// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/puzzle"
)

// EventType names an outbound event.
type EventType string

const (
	EventSessionCreated     EventType = "session_created"
	EventSessionJoined      EventType = "session_joined"
	EventJoinedAsSpectator  EventType = "joined_as_spectator"
	EventSessionUpdate      EventType = "session_update"
	EventCountdownStart     EventType = "countdown_start"
	EventCountdownTick      EventType = "countdown_tick"
	EventMatchStart         EventType = "match_start"
	EventCellUpdate         EventType = "cell_update"
	EventCellErased         EventType = "cell_erased"
	EventHintResult         EventType = "hint_result"
	EventHintDenied         EventType = "hint_denied"
	EventChat               EventType = "chat"
	EventReaction           EventType = "reaction"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventMatchPaused        EventType = "match_paused"
	EventMatchResumed       EventType = "match_resumed"
	EventMatchAborted       EventType = "match_aborted"
	EventMatchOver          EventType = "match_over"
	EventError              EventType = "error"
)

// Event is the envelope every outbound message uses.
type Event struct {
	Type    EventType              `json:"type"`
	State   *StateView             `json:"state,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ErrorEvent builds the event sent to a connection whose request failed.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Payload: map[string]interface{}{"msg": msg}}
}

// Broadcaster delivers events to session members. Delivery is best-effort:
// implementations must not block and must not call back into the session.
type Broadcaster interface {
	// Broadcast sends ev to every connection bound to the session code.
	Broadcast(code string, ev Event)
	// SendTo sends ev to the connection currently bound to memberID, if any.
	SendTo(memberID uuid.UUID, ev Event)
}

// PlayerView is the public projection of a player and their progress.
type PlayerView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Filled    int       `json:"filled"`
	Score     int       `json:"score"`
	Errors    int       `json:"errors"`
	Hints     int       `json:"hints"`
	Connected bool      `json:"connected"`
}

// StateView is the public projection of a session. The solution is never part of it.
type StateView struct {
	Code           string       `json:"code"`
	Mode           Mode         `json:"mode"`
	Difficulty     string       `json:"difficulty"`
	Puzzle         puzzle.Grid  `json:"puzzle"`
	TotalEmpty     int          `json:"totalEmpty"`
	GameState      State        `json:"gameState"`
	Players        []PlayerView `json:"players"`
	SpectatorCount int          `json:"spectatorCount"`
}
