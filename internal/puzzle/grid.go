// internal/puzzle/grid.go
package puzzle

// Size is the edge length of the board.
const Size = 9

// Grid is a 9x9 board. Zero marks a blank cell.
type Grid [Size][Size]int

// Difficulty labels the carving target. Any value is accepted; unknown labels
// fall back to DefaultBlanks.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// DefaultBlanks is the carving target for unrecognized difficulties.
const DefaultBlanks = 40

// Blanks returns the number of cells the carver tries to remove.
func (d Difficulty) Blanks() int {
	switch d {
	case Easy:
		return 35
	case Medium:
		return 46
	case Hard:
		return 55
	default:
		return DefaultBlanks
	}
}

// Known reports whether d is one of the named difficulties.
func (d Difficulty) Known() bool {
	return d == Easy || d == Medium || d == Hard
}

// OkCell reports whether n can be placed at (row, col) without repeating in the
// row, the column or the 3x3 box. The cell itself is not inspected.
func OkCell(g *Grid, row, col, n int) bool {
	br, bc := (row/3)*3, (col/3)*3
	for i := 0; i < Size; i++ {
		if i != col && g[row][i] == n {
			return false
		}
		if i != row && g[i][col] == n {
			return false
		}
		r, c := br+i/3, bc+i%3
		if (r != row || c != col) && g[r][c] == n {
			return false
		}
	}
	return true
}

// CountBlanks returns the number of zero cells.
func (g *Grid) CountBlanks() int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g[r][c] == 0 {
				n++
			}
		}
	}
	return n
}

// InBounds reports whether (row, col) addresses a cell.
func InBounds(row, col int) bool {
	return row >= 0 && row < Size && col >= 0 && col < Size
}
