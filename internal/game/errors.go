package game

import "errors"

// Errors surfaced to the connection that triggered them. ErrInvalidState is
// the exception: callers drop it silently.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFinished = errors.New("session already finished")
	ErrHintExhausted   = errors.New("no hints remaining")
	ErrInvalidState    = errors.New("action not allowed in current state")
	ErrPlayerNotFound  = errors.New("player not found in session")
	ErrSpectator       = errors.New("spectators cannot play")
	ErrInvalidCell     = errors.New("invalid cell")
)
