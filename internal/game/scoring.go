// internal/game/scoring.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/puzzle"
)

// Scoring constants.
const (
	BasePoints    = 50
	MinPoints     = 10
	DecayPoints   = 5
	DecayInterval = 30 * time.Second
	WrongPenalty  = 20
	HintPenalty   = 50
)

// Points returns the award for a correct cell placed elapsed after the start:
// 50, minus 5 for every full 30 seconds, never below 10.
func Points(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	pts := BasePoints - DecayPoints*int(elapsed/DecayInterval)
	if pts < MinPoints {
		return MinPoints
	}
	return pts
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// moveTargetLocked validates a move request and returns the mover's progress.
// A nil progress with a nil error means the move is silently ignored.
// Assumes lock is held.
func (s *Session) moveTargetLocked(id uuid.UUID, row, col int) (*Player, *Progress, error) {
	if s.closed {
		return nil, nil, ErrSessionNotFound
	}
	if s.state != StatePlaying {
		return nil, nil, ErrInvalidState
	}
	if !puzzle.InBounds(row, col) {
		return nil, nil, ErrInvalidCell
	}
	p := s.playerLocked(id)
	if p == nil {
		if s.isSpectatorLocked(id) {
			return nil, nil, ErrSpectator
		}
		return nil, nil, ErrPlayerNotFound
	}
	if s.board[row][col] != 0 {
		s.log.Debugf("Player %s targeted given cell (%d,%d). Ignoring.", id, row, col)
		return p, nil, nil
	}
	prog, ok := s.progress[id]
	if !ok {
		return p, nil, nil
	}
	if prog.correct == nil {
		prog.correct = make(map[int]bool)
	}
	return p, prog, nil
}

// SubmitCell checks value against the solution and scores the move.
// A correct placement of the last blank finishes the match.
func (s *Session) SubmitCell(id uuid.UUID, row, col, value int) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, prog, err := s.moveTargetLocked(id, row, col)
	if err != nil || prog == nil {
		return err
	}
	if value < 1 || value > 9 {
		return ErrInvalidCell
	}

	key := row*puzzle.Size + col
	correct := value == s.solution[row][col]
	if correct {
		if prog.correct[key] {
			return nil
		}
		prog.correct[key] = true
		prog.Filled++
		prog.Score += Points(s.now().Sub(s.startTime))
	} else {
		if prog.correct[key] {
			delete(prog.correct, key)
			prog.Filled = floorZero(prog.Filled - 1)
		}
		prog.Errors++
		prog.Score = floorZero(prog.Score - WrongPenalty)
	}

	s.broadcastLocked(Event{Type: EventCellUpdate, Payload: map[string]interface{}{
		"playerId": id,
		"row":      row,
		"col":      col,
		"value":    value,
		"correct":  correct,
		"progress": s.playerViewsLocked(),
	}})

	if correct {
		s.checkWinLocked(p, prog)
	}
	return nil
}

// EraseCell clears a cell on the player's board. Filled only drops when the
// server recorded the cell as correct; the score is never restored.
func (s *Session) EraseCell(id uuid.UUID, row, col int, wasCorrect bool) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	_, prog, err := s.moveTargetLocked(id, row, col)
	if err != nil || prog == nil {
		return err
	}

	key := row*puzzle.Size + col
	if prog.correct[key] {
		delete(prog.correct, key)
		prog.Filled = floorZero(prog.Filled - 1)
	} else if wasCorrect {
		s.log.Debugf("Player %s erased (%d,%d) claiming it was correct; no record. Filled unchanged.", id, row, col)
	}

	s.broadcastLocked(Event{Type: EventCellErased, Payload: map[string]interface{}{
		"playerId": id,
		"row":      row,
		"col":      col,
		"progress": s.playerViewsLocked(),
	}})
	return nil
}

// UseHint reveals the solution value of a cell to the requester at a score
// cost. The revealed cell counts as filled.
func (s *Session) UseHint(id uuid.UUID, row, col int) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, prog, err := s.moveTargetLocked(id, row, col)
	if err != nil || prog == nil {
		return err
	}
	if prog.HintsRemaining <= 0 {
		s.sendLocked(id, Event{Type: EventHintDenied})
		return ErrHintExhausted
	}
	key := row*puzzle.Size + col
	if prog.correct[key] {
		return nil
	}

	prog.HintsRemaining--
	prog.Score = floorZero(prog.Score - HintPenalty)
	prog.correct[key] = true
	prog.Filled++
	value := s.solution[row][col]

	s.sendLocked(id, Event{Type: EventHintResult, Payload: map[string]interface{}{
		"row":       row,
		"col":       col,
		"value":     value,
		"hintsLeft": prog.HintsRemaining,
	}})
	s.broadcastLocked(Event{Type: EventCellUpdate, Payload: map[string]interface{}{
		"playerId": id,
		"row":      row,
		"col":      col,
		"value":    value,
		"correct":  true,
		"isHint":   true,
		"progress": s.playerViewsLocked(),
	}})

	s.checkWinLocked(p, prog)
	return nil
}

// checkWinLocked finishes the match when prog covers every blank. The state
// guard in Next makes a second completion a no-op.
// Assumes lock is held.
func (s *Session) checkWinLocked(p *Player, prog *Progress) {
	if prog.Filled < s.totalEmpty {
		return
	}
	if s.fireLocked(TriggerBoardComplete, p) {
		s.broadcastStateLocked()
	}
}
