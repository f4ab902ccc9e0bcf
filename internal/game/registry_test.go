package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTickets struct{}

func (stubTickets) IssueTicket(code string, playerID uuid.UUID, role string) (string, error) {
	return code + ":" + role, nil
}

type captureResults struct {
	ch chan MatchResult
}

func (c *captureResults) RecordResult(ctx context.Context, res MatchResult) error {
	c.ch <- res
	return nil
}

func newTestRegistry(t *testing.T, cfg RegistryConfig) (*Registry, *mockBroadcaster) {
	t.Helper()
	mb := newMockBroadcaster()
	if cfg.Generator == nil {
		cfg.Generator = puzzle.NewGenerator(nil, 5*time.Second)
	}
	r := NewRegistry(mb, quietLogger(), cfg)
	t.Cleanup(r.Stop)
	return r, mb
}

func TestRegistryCreateEasy(t *testing.T) {
	r, mb := newTestRegistry(t, RegistryConfig{Tickets: stubTickets{}})

	host := uuid.New()
	s, m, err := r.Create(context.Background(), host, "alice", ModeCompetitive, "easy")
	require.NoError(t, err)

	assert.Equal(t, RoleP1, m.Role)
	assert.Len(t, s.Code, CodeLength)
	for _, ch := range s.Code {
		assert.True(t, strings.ContainsRune(CodeAlphabet, ch), "unexpected code char %q", ch)
	}

	v := s.View()
	assert.Equal(t, 35, v.TotalEmpty)
	assert.Equal(t, v.Puzzle.CountBlanks(), v.TotalEmpty)
	n, err := puzzle.CountSolutions(v.Puzzle, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateWaiting, v.GameState)

	ev := mb.lastTo(host)
	require.NotNil(t, ev)
	assert.Equal(t, EventSessionCreated, ev.Type)
	assert.Equal(t, s.Code+":p1", ev.Payload["ticket"])
	assert.Equal(t, s.Code, ev.Payload["code"])
}

func TestRegistryUnknownDifficulty(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{})
	s, _, err := r.Create(context.Background(), uuid.New(), "alice", ParseMode("whatever"), "Nightmare")
	require.NoError(t, err)
	assert.Equal(t, ModeCompetitive, s.Mode)
	assert.Equal(t, "nightmare", s.Difficulty)
	assert.LessOrEqual(t, s.TotalEmpty(), puzzle.DefaultBlanks)
}

func TestRegistryGet(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{})
	s, _, err := r.Create(context.Background(), uuid.New(), "alice", ModeCooperative, "easy")
	require.NoError(t, err)

	got, err := r.Get("  " + strings.ToLower(s.Code) + " ")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get("ZZZZZZ")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryCodesUnique(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{})
	seen := make(map[string]bool)
	r.mu.Lock()
	for i := 0; i < 500; i++ {
		code := r.newCodeLocked()
		require.False(t, seen[code])
		seen[code] = true
		r.sessions[code] = &Session{Code: code}
	}
	r.mu.Unlock()
}

func TestRegistrySweep(t *testing.T) {
	clock := newFakeClock()
	r, _ := newTestRegistry(t, RegistryConfig{TTL: 2 * time.Hour, Now: clock.Now, Timings: fastTimings(time.Minute)})

	old, _, err := r.Create(context.Background(), uuid.New(), "alice", ModeCompetitive, "easy")
	require.NoError(t, err)
	_, err = old.Join(uuid.New(), "bob")
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)
	fresh, _, err := r.Create(context.Background(), uuid.New(), "carol", ModeCompetitive, "easy")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, r.Sweep(), "expiry is by creation time regardless of state")
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(old.Code)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(fresh.Code)
	assert.NoError(t, err)

	_, err = old.Join(uuid.New(), "late")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryStartStop(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{SweepInterval: time.Hour})
	require.NoError(t, r.Start())
	_, _, err := r.Create(context.Background(), uuid.New(), "alice", ModeCompetitive, "easy")
	require.NoError(t, err)
	r.Stop()
	assert.Zero(t, r.Len())
}

func TestRegistryRecordsResult(t *testing.T) {
	rec := &captureResults{ch: make(chan MatchResult, 1)}
	r, _ := newTestRegistry(t, RegistryConfig{Results: rec, Timings: fastTimings(time.Minute)})

	s, p1, err := r.Create(context.Background(), uuid.New(), "alice", ModeCompetitive, "easy")
	require.NoError(t, err)
	_, err = s.Join(uuid.New(), "bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State() == StatePlaying }, time.Second, time.Millisecond)

	for row := 0; row < puzzle.Size; row++ {
		for col := 0; col < puzzle.Size; col++ {
			if s.board[row][col] == 0 {
				require.NoError(t, s.SubmitCell(p1.ID, row, col, s.solution[row][col]))
			}
		}
	}
	require.Equal(t, StateFinished, s.State())

	select {
	case res := <-rec.ch:
		assert.Equal(t, "completed", res.Outcome)
		assert.Equal(t, p1.ID, res.WinnerID)
		assert.Equal(t, s.Code, res.Code)
	case <-time.After(time.Second):
		t.Fatal("result was not recorded")
	}
}
