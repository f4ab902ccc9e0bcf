package puzzle

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A classic puzzle with a single solution (0 = empty).
var sample = Grid{
	{5, 3, 0, 0, 7, 0, 0, 0, 0},
	{6, 0, 0, 1, 9, 5, 0, 0, 0},
	{0, 9, 8, 0, 0, 0, 0, 6, 0},
	{8, 0, 0, 0, 6, 0, 0, 0, 3},
	{4, 0, 0, 8, 0, 3, 0, 0, 1},
	{7, 0, 0, 0, 2, 0, 0, 0, 6},
	{0, 6, 0, 0, 0, 0, 2, 8, 0},
	{0, 0, 0, 4, 1, 9, 0, 0, 5},
	{0, 0, 0, 0, 8, 0, 0, 7, 9},
}

func assertPermutations(t *testing.T, g Grid) {
	t.Helper()
	for i := 0; i < Size; i++ {
		var row, col, box [10]bool
		for j := 0; j < Size; j++ {
			row[g[i][j]] = true
			col[g[j][i]] = true
			box[g[(i/3)*3+j/3][(i%3)*3+j%3]] = true
		}
		for n := 1; n <= 9; n++ {
			require.Truef(t, row[n], "row %d misses %d", i, n)
			require.Truef(t, col[n], "col %d misses %d", i, n)
			require.Truef(t, box[n], "box %d misses %d", i, n)
		}
	}
}

func TestGenerateSolutionIsValid(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g, err := GenerateSolution(context.Background(), rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		assertPermutations(t, g)
		assert.True(t, IsSolved(&g))
	}
}

func TestGenerateSolutionVariesWithSeed(t *testing.T) {
	a, err := GenerateSolution(context.Background(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	b, err := GenerateSolution(context.Background(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOkCell(t *testing.T) {
	g := sample
	assert.False(t, OkCell(&g, 0, 2, 5), "row clash")
	assert.False(t, OkCell(&g, 0, 2, 8), "column clash")
	assert.False(t, OkCell(&g, 0, 2, 9), "box clash")
	assert.True(t, OkCell(&g, 0, 2, 4))
}

// countOf counts completions up to 2 and fails the test on a search error.
func countOf(t *testing.T, g Grid) int {
	t.Helper()
	n, err := CountSolutions(g, 2)
	require.NoError(t, err)
	return n
}

func TestCountSolutions(t *testing.T) {
	assert.Equal(t, 1, countOf(t, sample))

	var empty Grid
	assert.Equal(t, 2, countOf(t, empty), "count stops at the limit")

	bad := sample
	bad[0][2] = 5
	assert.Equal(t, 0, countOf(t, bad))
}

func TestCountSolutionsHardBoard(t *testing.T) {
	gen := NewGenerator(NewSolver(-1), 10*time.Second)
	p, err := gen.Generate(context.Background(), 2, Hard)
	require.NoError(t, err)
	require.Equal(t, 55, p.Blanks)
	assert.Equal(t, 1, countOf(t, p.Board))
}

func TestHardReachesTarget(t *testing.T) {
	gen := NewGenerator(nil, 10*time.Second)
	for seed := int64(1); seed <= 10; seed++ {
		p, err := gen.Generate(context.Background(), seed, Hard)
		require.NoError(t, err)
		assert.Zero(t, p.Shortfall(), "seed %d carved %d blanks", seed, p.Blanks)
	}
}

func TestCountLeavesGridUntouched(t *testing.T) {
	g := sample
	_, _, err := NewSolver(0).Count(context.Background(), g, 2)
	require.NoError(t, err)
	assert.Equal(t, sample, g)
}

func TestSolverBudget(t *testing.T) {
	var empty Grid
	_, st, err := NewSolver(50).Count(context.Background(), empty, 1000)
	assert.ErrorIs(t, err, ErrSearchBudget)
	assert.Greater(t, st.Nodes, 50)
}

func TestCarveKeepsUniqueSolution(t *testing.T) {
	gen := NewGenerator(NewSolver(DefaultMaxNodes), 5*time.Second)
	for _, diff := range []Difficulty{Easy, Medium, Hard, Difficulty("expert")} {
		t.Run(string(diff), func(t *testing.T) {
			p, err := gen.Generate(context.Background(), 42, diff)
			require.NoError(t, err)

			assert.Equal(t, 1, countOf(t, p.Board))
			assert.True(t, IsSolved(&p.Solution))
			assert.Equal(t, p.Board.CountBlanks(), p.Blanks)
			assert.Equal(t, diff.Blanks(), p.Target)
			assert.LessOrEqual(t, p.Blanks, p.Target)
			for r := 0; r < Size; r++ {
				for c := 0; c < Size; c++ {
					if p.Board[r][c] != 0 {
						assert.Equal(t, p.Solution[r][c], p.Board[r][c])
					}
				}
			}
		})
	}
}

func TestCarveEasyReachesTarget(t *testing.T) {
	gen := NewGenerator(nil, 5*time.Second)
	p, err := gen.Generate(context.Background(), 7, Easy)
	require.NoError(t, err)
	// 35 blanks sits well inside what a random carve reaches.
	assert.Equal(t, 35, p.Blanks)
	assert.Zero(t, p.Shortfall())
	assert.Equal(t, 1, countOf(t, p.Board))
}

func TestDifficultyBlanks(t *testing.T) {
	assert.Equal(t, 35, Easy.Blanks())
	assert.Equal(t, 46, Medium.Blanks())
	assert.Equal(t, 55, Hard.Blanks())
	assert.Equal(t, 40, Difficulty("nightmare").Blanks())
	assert.False(t, Difficulty("nightmare").Known())
}

func TestConflicts(t *testing.T) {
	g := sample
	assert.Empty(t, Conflicts(&g))
	g[8][0] = 9
	assert.NotEmpty(t, Conflicts(&g))
	assert.False(t, IsSolved(&sample))
}
