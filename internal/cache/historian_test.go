package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDelta(t *testing.T) {
	done := game.MatchResult{
		Outcome:   "completed",
		ElapsedMs: 90_000,
		Players: []game.PlayerView{
			{Errors: 2, Hints: 3},
			{Errors: 1, Hints: 1},
		},
	}
	assert.Equal(t, map[string]int64{
		"matches":           1,
		"outcome:completed": 1,
		"solve_ms_total":    90_000,
		"errors_total":      3,
		"hints_used_total":  2,
	}, StatsDelta(done))

	aborted := game.MatchResult{Outcome: "aborted", ElapsedMs: 5_000}
	assert.Equal(t, map[string]int64{"matches": 1, "outcome:aborted": 1}, StatsDelta(aborted))
}

// Needs a local Redis; skipped otherwise.
func TestHistorianDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := Connect(ctx, "localhost:6379", 0)
	if err != nil {
		t.Skipf("no local redis: %v", err)
	}
	defer rdb.Close()

	suffix := uuid.NewString()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	h := NewHistorian(rdb, "sudoku_results_test_"+suffix, logger)
	h.StatsPrefix = "sudoku_stats_test_" + suffix + ":"
	h.PopTimeout = 100 * time.Millisecond
	defer func() {
		bg := context.Background()
		rdb.Del(bg, h.Queue, h.StatsPrefix+"all", h.StatsPrefix+"difficulty:hard", h.StatsPrefix+"mode:competitive")
	}()

	res := game.MatchResult{Code: "ABC234", Mode: "competitive", Difficulty: "hard", Outcome: "aborted"}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	require.NoError(t, rdb.RPush(ctx, h.Queue, data).Err())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- h.Run(runCtx) }()

	require.Eventually(t, func() bool {
		stats, err := h.Stats(ctx, "difficulty:hard")
		return err == nil && stats["matches"] == "1"
	}, 3*time.Second, 20*time.Millisecond)

	stats, err := h.Stats(ctx, "mode:competitive")
	require.NoError(t, err)
	assert.Equal(t, "1", stats["outcome:aborted"])

	stop()
	assert.NoError(t, <-done)
}
