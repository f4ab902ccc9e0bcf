// internal/cache/historian.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultStatsPrefix prefixes the Redis hashes the historian maintains.
const DefaultStatsPrefix = "sudoku_stats:"

// Historian drains the results queue and folds each result into per-difficulty
// and per-mode counters stored as Redis hashes.
type Historian struct {
	Rdb         *redis.Client
	Queue       string
	StatsPrefix string
	PopTimeout  time.Duration
	Logger      *logrus.Logger
}

// NewHistorian returns a historian reading queue with default settings.
func NewHistorian(rdb *redis.Client, queue string, logger *logrus.Logger) *Historian {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Historian{
		Rdb:         rdb,
		Queue:       queue,
		StatsPrefix: DefaultStatsPrefix,
		PopTimeout:  3 * time.Second,
		Logger:      logger,
	}
}

// Run pops results until ctx is cancelled. BLPop uses a short timeout so
// cancellation is noticed promptly.
func (h *Historian) Run(ctx context.Context) error {
	h.Logger.Infof("Historian reading %q", h.Queue)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		res, err := h.Rdb.BLPop(ctx, h.PopTimeout, h.Queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.Logger.Errorf("BLPop: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var mr game.MatchResult
		if err := json.Unmarshal([]byte(res[1]), &mr); err != nil {
			h.Logger.Warnf("invalid match result: %v", err)
			continue
		}
		if err := h.Apply(ctx, mr); err != nil {
			h.Logger.Errorf("failed to record stats for %s: %v", mr.Code, err)
			continue
		}
		h.Logger.WithFields(logrus.Fields{
			"code":       mr.Code,
			"outcome":    mr.Outcome,
			"difficulty": mr.Difficulty,
			"elapsed_ms": mr.ElapsedMs,
			"winner":     mr.WinnerName,
		}).Info("Match recorded")
	}
}

// Apply increments the counters for mr in a single transaction.
func (h *Historian) Apply(ctx context.Context, mr game.MatchResult) error {
	delta := StatsDelta(mr)
	pipe := h.Rdb.TxPipeline()
	for _, key := range h.keys(mr) {
		for field, n := range delta {
			pipe.HIncrBy(ctx, key, field, n)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply stats: %w", err)
	}
	return nil
}

// Stats reads the counters for one bucket, e.g. "difficulty:easy".
func (h *Historian) Stats(ctx context.Context, bucket string) (map[string]string, error) {
	return h.Rdb.HGetAll(ctx, h.StatsPrefix+bucket).Result()
}

func (h *Historian) keys(mr game.MatchResult) []string {
	return []string{
		h.StatsPrefix + "all",
		h.StatsPrefix + "difficulty:" + mr.Difficulty,
		h.StatsPrefix + "mode:" + mr.Mode,
	}
}

// StatsDelta returns the counter increments one result contributes.
// Only completed matches count toward solve time.
func StatsDelta(mr game.MatchResult) map[string]int64 {
	delta := map[string]int64{"matches": 1}
	delta["outcome:"+mr.Outcome] = 1
	if mr.Outcome == "completed" {
		delta["solve_ms_total"] = mr.ElapsedMs
		for _, p := range mr.Players {
			delta["errors_total"] += int64(p.Errors)
			delta["hints_used_total"] += int64(game.InitialHints - p.Hints)
		}
	}
	return delta
}
