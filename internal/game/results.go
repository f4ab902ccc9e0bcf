package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MatchResult summarizes a finished match for external consumers.
type MatchResult struct {
	Code       string       `json:"code"`
	Mode       string       `json:"mode"`
	Difficulty string       `json:"difficulty"`
	Outcome    string       `json:"outcome"` // "completed" or "aborted"
	WinnerID   uuid.UUID    `json:"winner_id,omitempty"`
	WinnerName string       `json:"winner_name,omitempty"`
	WinnerRole string       `json:"winner_role,omitempty"`
	ElapsedMs  int64        `json:"elapsed_ms"`
	Players    []PlayerView `json:"players"`
	FinishedAt time.Time    `json:"finished_at"`
}

// ResultRecorder receives match results. Calls run off the session lock and
// failures are only logged.
type ResultRecorder interface {
	RecordResult(ctx context.Context, res MatchResult) error
}
