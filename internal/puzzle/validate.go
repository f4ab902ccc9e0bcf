package puzzle

// Cell identifies a board position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Conflicts returns every filled cell that repeats a digit already seen in its
// row, column or box. Blank cells are skipped.
func Conflicts(g *Grid) []Cell {
	conf := make([]Cell, 0, 8)
	check := func(seen *int, r, c int) {
		v := g[r][c]
		if v == 0 {
			return
		}
		bit := 1 << v
		if *seen&bit != 0 {
			conf = append(conf, Cell{Row: r, Col: c})
		}
		*seen |= bit
	}
	for r := 0; r < Size; r++ {
		seen := 0
		for c := 0; c < Size; c++ {
			check(&seen, r, c)
		}
	}
	for c := 0; c < Size; c++ {
		seen := 0
		for r := 0; r < Size; r++ {
			check(&seen, r, c)
		}
	}
	for b := 0; b < Size; b++ {
		seen := 0
		for i := 0; i < Size; i++ {
			check(&seen, (b/3)*3+i/3, (b%3)*3+i%3)
		}
	}
	return conf
}

// IsSolved reports whether g is complete, uses only digits 1-9, and has no conflicts.
func IsSolved(g *Grid) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g[r][c] < 1 || g[r][c] > 9 {
				return false
			}
		}
	}
	return len(Conflicts(g)) == 0
}
