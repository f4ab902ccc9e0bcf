// internal/puzzle/solver.go
package puzzle

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxNodes bounds a single uniqueness check. A carve step that needs
// more than this is treated as ambiguous and the cell is restored. The
// generator's wall-clock budget is the real stop; this only guards a single
// pathological search.
const DefaultMaxNodes = 5_000_000

// ErrSearchBudget is returned when a search runs out of nodes before it can
// decide the answer.
var ErrSearchBudget = errors.New("puzzle: search budget exhausted")

// Stats captures the cost of a search.
type Stats struct {
	Nodes    int
	Duration time.Duration
}

// Solver counts completions of a partially filled grid with a depth-first
// search over an explicit frame stack.
type Solver struct {
	// MaxNodes caps digit placements tried per call. Zero means DefaultMaxNodes,
	// a negative value disables the cap.
	MaxNodes int
}

// NewSolver returns a Solver with the given node cap.
func NewSolver(maxNodes int) *Solver {
	return &Solver{MaxNodes: maxNodes}
}

func (s *Solver) maxNodes() int {
	if s == nil || s.MaxNodes == 0 {
		return DefaultMaxNodes
	}
	return s.MaxNodes
}

// Count returns the number of completions of g, stopping as soon as limit is
// reached. The result never exceeds limit. g is not modified.
//
// Blank cells are visited in row-major order; each frame records the last
// digit tried at its depth, so backtracking resumes from the next digit.
func (s *Solver) Count(ctx context.Context, g Grid, limit int) (int, Stats, error) {
	start := time.Now()
	if limit < 1 {
		limit = 1
	}
	if len(Conflicts(&g)) > 0 {
		return 0, Stats{Duration: time.Since(start)}, nil
	}

	blanks := make([]int, 0, Size*Size)
	for p := 0; p < Size*Size; p++ {
		if g[p/Size][p%Size] == 0 {
			blanks = append(blanks, p)
		}
	}
	if len(blanks) == 0 {
		return 1, Stats{Duration: time.Since(start)}, nil
	}

	budget := s.maxNodes()
	tried := make([]int, len(blanks))
	count, nodes, steps := 0, 0, 0
	depth := 0
	for depth >= 0 {
		steps++
		if steps&1023 == 0 && ctx.Err() != nil {
			return count, Stats{Nodes: nodes, Duration: time.Since(start)}, ctx.Err()
		}
		r, c := blanks[depth]/Size, blanks[depth]%Size
		g[r][c] = 0

		n := tried[depth] + 1
		for ; n <= 9; n++ {
			nodes++
			if OkCell(&g, r, c, n) {
				break
			}
		}
		if budget > 0 && nodes > budget {
			return count, Stats{Nodes: nodes, Duration: time.Since(start)}, ErrSearchBudget
		}
		if n > 9 {
			tried[depth] = 0
			depth--
			continue
		}

		tried[depth] = n
		g[r][c] = n
		if depth == len(blanks)-1 {
			count++
			if count >= limit {
				break
			}
			continue
		}
		depth++
	}
	return count, Stats{Nodes: nodes, Duration: time.Since(start)}, nil
}

// Unique reports whether g has exactly one completion.
func (s *Solver) Unique(ctx context.Context, g Grid) (bool, Stats, error) {
	n, st, err := s.Count(ctx, g, 2)
	if err != nil {
		return false, st, err
	}
	return n == 1, st, nil
}

// CountSolutions counts completions of g up to limit with no node cap.
// An error means the count is not trustworthy.
func CountSolutions(g Grid, limit int) (int, error) {
	n, _, err := NewSolver(-1).Count(context.Background(), g, limit)
	if err != nil {
		return 0, err
	}
	return n, nil
}
