// internal/puzzle/generator.go
package puzzle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// DefaultTimeout bounds a full Generate call.
const DefaultTimeout = 2 * time.Second

// Puzzle is a carved board together with the grid it was carved from.
type Puzzle struct {
	Solution   Grid
	Board      Grid
	Difficulty Difficulty
	// Target is the blank count the carver aimed for; Blanks is what it reached.
	Target int
	Blanks int
	Stats  Stats
}

// Shortfall returns how many blanks the carver failed to remove.
func (p *Puzzle) Shortfall() int {
	if p.Blanks >= p.Target {
		return 0
	}
	return p.Target - p.Blanks
}

// Generator builds puzzles with a unique solution.
type Generator struct {
	Solver  *Solver
	Timeout time.Duration
}

// NewGenerator wires a generator around the given solver.
func NewGenerator(s *Solver, timeout time.Duration) *Generator {
	if s == nil {
		s = NewSolver(DefaultMaxNodes)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{Solver: s, Timeout: timeout}
}

// Generate fills a random solution from seed and carves it for diff.
// Carving stops early, without error, when the time budget expires; the
// returned Puzzle then has Blanks < Target.
func (g *Generator) Generate(ctx context.Context, seed int64, diff Difficulty) (*Puzzle, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	rng := rand.New(rand.NewSource(seed))
	sol, err := GenerateSolution(ctx, rng)
	if err != nil {
		return nil, err
	}
	if !IsSolved(&sol) {
		return nil, fmt.Errorf("puzzle: generated solution for seed %d is invalid", seed)
	}
	board, st := g.Carve(ctx, sol, diff, rng)
	st.Duration = time.Since(start)
	return &Puzzle{
		Solution:   sol,
		Board:      board,
		Difficulty: diff,
		Target:     diff.Blanks(),
		Blanks:     board.CountBlanks(),
		Stats:      st,
	}, nil
}

// GenerateSolution fills an empty grid by randomized backtracking. Every cell
// gets its own freshly shuffled digit order when the search first reaches it.
func GenerateSolution(ctx context.Context, rng *rand.Rand) (Grid, error) {
	var (
		g     Grid
		order [Size * Size][Size]int
		next  [Size * Size]int
	)
	pos, steps := 0, 0
	for pos < Size*Size {
		steps++
		if steps&1023 == 0 && ctx.Err() != nil {
			return Grid{}, ctx.Err()
		}
		r, c := pos/Size, pos%Size
		if next[pos] == 0 {
			for i := range order[pos] {
				order[pos][i] = i + 1
			}
			rng.Shuffle(Size, func(i, j int) {
				order[pos][i], order[pos][j] = order[pos][j], order[pos][i]
			})
		}
		g[r][c] = 0

		placed := false
		for next[pos] < Size {
			n := order[pos][next[pos]]
			next[pos]++
			if OkCell(&g, r, c, n) {
				g[r][c] = n
				placed = true
				break
			}
		}
		if !placed {
			next[pos] = 0
			pos--
			if pos < 0 {
				return Grid{}, errors.New("puzzle: exhausted search filling an empty grid")
			}
			continue
		}
		pos++
	}
	return g, nil
}

// Carve blanks cells of sol in random order, keeping a blank only while the
// board still has exactly one completion. It stops at diff's target or when
// candidates (or ctx) run out.
func (g *Generator) Carve(ctx context.Context, sol Grid, diff Difficulty, rng *rand.Rand) (Grid, Stats) {
	board := sol
	target := diff.Blanks()
	positions := rng.Perm(Size * Size)

	var st Stats
	removed := 0
	for _, p := range positions {
		if removed >= target || ctx.Err() != nil {
			break
		}
		r, c := p/Size, p%Size
		keep := board[r][c]
		board[r][c] = 0
		unique, cs, err := g.Solver.Unique(ctx, board)
		st.Nodes += cs.Nodes
		if err != nil || !unique {
			board[r][c] = keep
			continue
		}
		removed++
	}
	return board, st
}
