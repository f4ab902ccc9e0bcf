// internal/game/registry.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-battle/internal/puzzle"
	"github.com/sirupsen/logrus"
)

// CodeAlphabet omits characters that are easy to misread (I, O, 0, 1).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a session code.
const CodeLength = 6

// RegistryConfig configures a Registry. Zero values fall back to defaults.
type RegistryConfig struct {
	TTL           time.Duration // sessions older than this are swept; default 2h
	SweepInterval time.Duration // default 10m
	Timings       Timings
	Generator     *puzzle.Generator
	Tickets       TicketIssuer
	Results       ResultRecorder
	Now           func() time.Time
}

// Registry owns every live session in memory.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	rng      *rand.Rand

	cfg   RegistryConfig
	bc    Broadcaster
	log   *logrus.Logger
	sched gocron.Scheduler
}

// NewRegistry returns an empty registry. Call Start to begin sweeping.
func NewRegistry(bc Broadcaster, logger *logrus.Logger, cfg RegistryConfig) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.Generator == nil {
		cfg.Generator = puzzle.NewGenerator(nil, 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:      cfg,
		bc:       bc,
		log:      logger,
	}
}

// Start schedules the TTL sweep.
func (r *Registry) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create sweep scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(r.cfg.SweepInterval),
		gocron.NewTask(func() {
			if n := r.Sweep(); n > 0 {
				r.log.Infof("Swept %d expired session(s)", n)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	sched.Start()

	r.mu.Lock()
	r.sched = sched
	r.mu.Unlock()
	r.log.Infof("Session sweep every %s, TTL %s", r.cfg.SweepInterval, r.cfg.TTL)
	return nil
}

// Stop shuts the scheduler down and closes every session.
func (r *Registry) Stop() {
	r.mu.Lock()
	sched := r.sched
	r.sched = nil
	sessions := make([]*Session, 0, len(r.sessions))
	for code, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, code)
	}
	r.mu.Unlock()

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			r.log.Warnf("Sweep scheduler shutdown: %v", err)
		}
	}
	for _, s := range sessions {
		s.Close()
	}
}

// Create generates a puzzle and opens a new session with hostID seated as p1.
// The caller must bind its connection to hostID first so that session_created
// reaches it.
func (r *Registry) Create(ctx context.Context, hostID uuid.UUID, name string, mode Mode, difficulty string) (*Session, Member, error) {
	diff := puzzle.Difficulty(strings.ToLower(strings.TrimSpace(difficulty)))
	if !diff.Known() {
		r.log.Warnf("Unrecognized difficulty %q, carving %d blanks", difficulty, diff.Blanks())
	}

	r.mu.Lock()
	seed := r.rng.Int63()
	r.mu.Unlock()

	// Generation runs outside the registry lock.
	p, err := r.cfg.Generator.Generate(ctx, seed, diff)
	if err != nil {
		return nil, Member{}, fmt.Errorf("failed to generate puzzle: %w", err)
	}

	r.mu.Lock()
	code := r.newCodeLocked()
	s := newSession(code, mode, string(diff), p, sessionDeps{
		timings: r.cfg.Timings,
		bc:      r.bc,
		tickets: r.cfg.Tickets,
		results: r.cfg.Results,
		now:     r.cfg.Now,
		logger:  r.log,
	})
	r.sessions[code] = s
	r.mu.Unlock()

	if short := p.Shortfall(); short > 0 {
		s.log.Warnf("Carve stopped %d blank(s) short of %d", short, p.Target)
	}
	s.log.WithFields(logrus.Fields{
		"mode":       mode,
		"difficulty": diff,
		"blanks":     p.Blanks,
		"nodes":      p.Stats.Nodes,
		"duration":   p.Stats.Duration,
	}).Info("Session created")

	return s, s.host(hostID, name), nil
}

// newCodeLocked draws codes until one is unused.
// Assumes lock is held.
func (r *Registry) newCodeLocked() string {
	buf := make([]byte, CodeLength)
	for {
		for i := range buf {
			buf[i] = CodeAlphabet[r.rng.Intn(len(CodeAlphabet))]
		}
		code := string(buf)
		if _, taken := r.sessions[code]; !taken {
			return code
		}
	}
}

// NormalizeCode upper-cases and trims client input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Get returns the live session for code.
func (r *Registry) Get(code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions older than the TTL, whatever their state, and
// returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.cfg.Now()
	r.mu.Lock()
	var expired []*Session
	for code, s := range r.sessions {
		if now.Sub(s.CreatedAt) > r.cfg.TTL {
			expired = append(expired, s)
			delete(r.sessions, code)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		s.log.Info("Session expired")
	}
	return len(expired)
}
