// internal/game/state.go
package game

import (
	"fmt"
	"time"
)

// State is a session's position in the match lifecycle.
type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateFinished  State = "finished"
)

// Trigger is anything that can move a session between states.
type Trigger string

const (
	TriggerPlayersReady  Trigger = "players_ready"  // second player joined
	TriggerCountdownDone Trigger = "countdown_done" // last tick elapsed
	TriggerBoardComplete Trigger = "board_complete" // a player filled every blank
	TriggerPlayerLost    Trigger = "player_lost"    // a player's connection dropped
	TriggerReconnected   Trigger = "reconnected"    // every player is connected again
	TriggerGraceExpired  Trigger = "grace_expired"  // pause outlived the grace window
)

// Effect is a side effect the session performs on entering the next state.
type Effect int

const (
	EffectStartCountdown Effect = iota
	EffectStartClock
	EffectArmGrace
	EffectCancelGrace
	EffectResumeClock
	EffectAnnounceWinner
	EffectAbort
)

type transition struct {
	next    State
	effects []Effect
}

// transitions is the complete lifecycle. Pairs missing from the table are
// rejected; StateFinished has no outgoing edges.
var transitions = map[State]map[Trigger]transition{
	StateWaiting: {
		TriggerPlayersReady: {StateCountdown, []Effect{EffectStartCountdown}},
	},
	StateCountdown: {
		TriggerCountdownDone: {StatePlaying, []Effect{EffectStartClock}},
	},
	StatePlaying: {
		TriggerPlayerLost:    {StatePaused, []Effect{EffectArmGrace}},
		TriggerBoardComplete: {StateFinished, []Effect{EffectCancelGrace, EffectAnnounceWinner}},
	},
	StatePaused: {
		TriggerReconnected:  {StatePlaying, []Effect{EffectCancelGrace, EffectResumeClock}},
		TriggerGraceExpired: {StateFinished, []Effect{EffectAbort}},
	},
}

// Next returns the state reached from s on t and the effects to run.
// ok is false when t is not accepted in s.
func Next(s State, t Trigger) (next State, effects []Effect, ok bool) {
	tr, ok := transitions[s][t]
	if !ok {
		return s, nil, false
	}
	return tr.next, tr.effects, true
}

// Timings holds the durations of timed transitions.
type Timings struct {
	CountdownDelay time.Duration // before the first tick
	CountdownStep  time.Duration // between ticks
	GraceWindow    time.Duration // how long a pause waits for a rejoin
}

// CountdownFrom is the first countdown tick value.
const CountdownFrom = 3

// DefaultTimings returns the production durations.
func DefaultTimings() Timings {
	return Timings{
		CountdownDelay: 500 * time.Millisecond,
		CountdownStep:  time.Second,
		GraceWindow:    30 * time.Second,
	}
}

// fireLocked applies t and runs the resulting effects. actor is the player the
// trigger concerns (the winner, or the one who disconnected) and may be nil.
// Assumes lock is held.
func (s *Session) fireLocked(t Trigger, actor *Player) bool {
	next, effects, ok := Next(s.state, t)
	if !ok {
		s.log.Debugf("Ignoring trigger %s in state %s", t, s.state)
		return false
	}
	prev := s.state
	s.state = next
	s.log.WithField("trigger", t).Infof("State %s -> %s", prev, next)

	for _, eff := range effects {
		switch eff {
		case EffectStartCountdown:
			s.broadcastLocked(Event{Type: EventCountdownStart})
			s.scheduleTickLocked(CountdownFrom, s.timings.CountdownDelay)
		case EffectStartClock:
			s.startTime = s.now()
			s.broadcastLocked(Event{Type: EventMatchStart, Payload: map[string]interface{}{
				"startTime": s.startTime.UnixMilli(),
			}})
		case EffectArmGrace:
			s.pausedAt = s.now()
			s.armGraceLocked()
			reason := "a player disconnected"
			if actor != nil {
				reason = fmt.Sprintf("%s disconnected. Rejoin within %d seconds.", actor.Name, int(s.timings.GraceWindow.Seconds()))
			}
			s.broadcastLocked(Event{Type: EventMatchPaused, Payload: map[string]interface{}{"reason": reason}})
		case EffectCancelGrace:
			if s.graceTimer != nil {
				s.graceTimer.Stop()
				s.graceTimer = nil
			}
		case EffectResumeClock:
			if !s.pausedAt.IsZero() {
				s.startTime = s.startTime.Add(s.now().Sub(s.pausedAt))
				s.pausedAt = time.Time{}
			}
			s.broadcastLocked(Event{Type: EventMatchResumed, Payload: map[string]interface{}{
				"startTime": s.startTime.UnixMilli(),
			}})
		case EffectAnnounceWinner:
			s.announceWinnerLocked(actor)
		case EffectAbort:
			s.abortLocked("Your opponent left the match.")
		}
	}
	return true
}

// scheduleTickLocked arms the timer that emits countdown tick n.
// Assumes lock is held.
func (s *Session) scheduleTickLocked(n int, after time.Duration) {
	s.countdownTimer = time.AfterFunc(after, func() {
		s.countdownTick(n)
	})
}

func (s *Session) countdownTick(n int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.closed || s.state != StateCountdown {
		s.log.Debugf("Stale countdown tick %d (state %s, closed %v). Ignoring.", n, s.state, s.closed)
		return
	}
	if n > 0 {
		s.broadcastLocked(Event{Type: EventCountdownTick, Payload: map[string]interface{}{"n": n}})
		s.scheduleTickLocked(n-1, s.timings.CountdownStep)
		return
	}
	s.countdownTimer = nil
	s.fireLocked(TriggerCountdownDone, nil)
	// A seat that dropped during the countdown pauses the match at once.
	for _, p := range s.players {
		if !p.Connected {
			s.fireLocked(TriggerPlayerLost, p)
			break
		}
	}
	s.broadcastStateLocked()
}

// armGraceLocked starts the pause-expiry timer. A sequence number guards
// against a timer from an earlier pause firing after a resume and a new pause.
// Assumes lock is held.
func (s *Session) armGraceLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	s.pauseSeq++
	seq := s.pauseSeq
	s.graceTimer = time.AfterFunc(s.timings.GraceWindow, func() {
		s.graceExpired(seq)
	})
}

func (s *Session) graceExpired(seq int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.closed || s.state != StatePaused || s.pauseSeq != seq {
		s.log.Debugf("Stale grace timer (state %s, seq %d/%d). Ignoring.", s.state, seq, s.pauseSeq)
		return
	}
	s.graceTimer = nil
	s.fireLocked(TriggerGraceExpired, nil)
}
