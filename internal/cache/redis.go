// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list match results are pushed to.
const DefaultQueueName = "sudoku_results"

// DefaultMaxLen caps the list so an absent consumer cannot grow it forever.
const DefaultMaxLen = 1000

// ResultsFeed pushes finished-match summaries onto a Redis list for whatever
// consumes them. Nothing in this service reads the list back.
type ResultsFeed struct {
	Rdb    *redis.Client
	Queue  string
	MaxLen int64
}

// Connect dials Redis at addr and verifies it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewResultsFeed wraps rdb. An empty queue name uses DefaultQueueName.
func NewResultsFeed(rdb *redis.Client, queue string) *ResultsFeed {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ResultsFeed{Rdb: rdb, Queue: queue, MaxLen: DefaultMaxLen}
}

// RecordResult serializes res to JSON and appends it to the queue, trimming
// the oldest entries beyond MaxLen.
func (f *ResultsFeed) RecordResult(ctx context.Context, res game.MatchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchResult: %w", err)
	}

	pipe := f.Rdb.TxPipeline()
	pipe.RPush(ctx, f.Queue, data)
	if f.MaxLen > 0 {
		pipe.LTrim(ctx, f.Queue, -f.MaxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", f.Queue, err)
	}
	return nil
}

// Close releases the underlying client.
func (f *ResultsFeed) Close() error {
	return f.Rdb.Close()
}
