package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a local Redis; skipped otherwise.
func TestResultsFeedPush(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb, err := Connect(ctx, "localhost:6379", 0)
	if err != nil {
		t.Skipf("no local redis: %v", err)
	}
	queue := "sudoku_results_test_" + uuid.NewString()
	feed := NewResultsFeed(rdb, queue)
	feed.MaxLen = 2
	defer func() {
		rdb.Del(context.Background(), queue)
		feed.Close()
	}()

	for i := 0; i < 3; i++ {
		res := game.MatchResult{
			Code:       "ABC234",
			Outcome:    "completed",
			WinnerID:   uuid.New(),
			ElapsedMs:  int64(i),
			FinishedAt: time.Now(),
		}
		require.NoError(t, feed.RecordResult(ctx, res))
	}

	raw, err := rdb.LRange(ctx, queue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 2, "list is trimmed to MaxLen")

	var last game.MatchResult
	require.NoError(t, json.Unmarshal([]byte(raw[1]), &last))
	assert.Equal(t, int64(2), last.ElapsedMs)
	assert.Equal(t, "ABC234", last.Code)
}

func TestNewResultsFeedDefaults(t *testing.T) {
	feed := NewResultsFeed(nil, "")
	assert.Equal(t, DefaultQueueName, feed.Queue)
	assert.Equal(t, int64(DefaultMaxLen), feed.MaxLen)
}
