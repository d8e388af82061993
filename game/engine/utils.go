package engine

// CountCells counts the cells holding the given symbol
func (g Grid) CountCells(c Cell) int {
	count := 0
	for _, cell := range g.cells {
		if cell == c {
			count++
		}
	}
	return count
}

// FindCells returns the positions holding the given symbol in row-major order
func (g Grid) FindCells(c Cell) []Position {
	var out []Position
	for i, cell := range g.cells {
		if cell == c {
			out = append(out, Position{X: i / g.cols, Y: i % g.cols})
		}
	}
	return out
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// CanReachTreasure marks every non-wall cell that has a 4-connected path to
// some treasure. The result is indexed [row][col].
func CanReachTreasure(g Grid) [][]bool {
	reach := make([][]bool, g.rows)
	for x := range reach {
		reach[x] = make([]bool, g.cols)
	}

	// Flood fill outward from all treasures at once
	queue := g.FindCells(Treasure)
	for _, p := range queue {
		reach[p.X][p.Y] = true
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			n := p.Add(d)
			if !g.InBounds(n) || reach[n.X][n.Y] || g.cell(n) == Wall {
				continue
			}
			reach[n.X][n.Y] = true
			queue = append(queue, n)
		}
	}
	return reach
}

// PathLength counts the PathMark cells of a solved grid
func PathLength(result Grid) int {
	return result.CountCells(PathMark)
}
