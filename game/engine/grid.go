package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Grid is a rectangular map of cells stored row-major.
// The zero value is an empty grid; use NewGrid or ParseGrid to build one.
type Grid struct {
	rows  int
	cols  int
	cells []Cell
}

// NewGrid creates a rows x cols grid filled with fill
func NewGrid(rows, cols int, fill Cell) (Grid, error) {
	if rows < MinGridSize || cols < MinGridSize {
		return Grid{}, ErrEmptyGrid
	}
	cells := make([]Cell, rows*cols)
	for i := range cells {
		cells[i] = fill
	}
	return Grid{rows: rows, cols: cols, cells: cells}, nil
}

// ParseGrid builds a grid from one string per row. Symbols are kept as-is.
func ParseGrid(rows []string) (Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Grid{}, ErrEmptyGrid
	}
	cols := len(rows[0])
	cells := make([]Cell, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return Grid{}, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrInconsistentGrid, i, len(row), cols)
		}
		for j := 0; j < len(row); j++ {
			cells = append(cells, Cell(row[j]))
		}
	}
	return Grid{rows: len(rows), cols: cols, cells: cells}, nil
}

// MustParseGrid is ParseGrid for literals known to be valid
func MustParseGrid(rows ...string) Grid {
	g, err := ParseGrid(rows)
	if err != nil {
		panic(err)
	}
	return g
}

// Rows returns the number of rows
func (g Grid) Rows() int { return g.rows }

// Cols returns the number of columns
func (g Grid) Cols() int { return g.cols }

// IsEmpty reports whether the grid has no cells
func (g Grid) IsEmpty() bool { return len(g.cells) == 0 }

// InBounds reports whether p addresses a cell of the grid
func (g Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.rows && p.Y >= 0 && p.Y < g.cols
}

// At returns the cell at p
func (g Grid) At(p Position) (Cell, error) {
	if !g.InBounds(p) {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d grid", ErrOutOfBounds, p.X, p.Y, g.rows, g.cols)
	}
	return g.cells[p.X*g.cols+p.Y], nil
}

// cell is At without the bounds check, for callers that already checked
func (g Grid) cell(p Position) Cell {
	return g.cells[p.X*g.cols+p.Y]
}

// Set writes c at p. The grid shares storage with its copies by value,
// so Set must only be used on grids obtained from Clone, NewGrid or ParseGrid.
func (g Grid) Set(p Position, c Cell) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d grid", ErrOutOfBounds, p.X, p.Y, g.rows, g.cols)
	}
	g.cells[p.X*g.cols+p.Y] = c
	return nil
}

// SetCell writes c at p and silently ignores out-of-bounds positions
func (g Grid) SetCell(p Position, c Cell) {
	if g.InBounds(p) {
		g.cells[p.X*g.cols+p.Y] = c
	}
}

// PaintSegment paints a horizontal or vertical segment, both ends included.
// Cells outside the grid are skipped.
func (g Grid) PaintSegment(from, to Position, c Cell) error {
	switch {
	case from.X == to.X:
		step := 1
		if to.Y < from.Y {
			step = -1
		}
		for y := from.Y; y != to.Y+step; y += step {
			g.SetCell(Position{X: from.X, Y: y}, c)
		}
	case from.Y == to.Y:
		step := 1
		if to.X < from.X {
			step = -1
		}
		for x := from.X; x != to.X+step; x += step {
			g.SetCell(Position{X: x, Y: from.Y}, c)
		}
	default:
		return ErrDiagonalSegment
	}
	return nil
}

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	if g.cells == nil {
		return Grid{}
	}
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return Grid{rows: g.rows, cols: g.cols, cells: cells}
}

// WithStart returns a copy of the grid with StartMark written at p.
// Out-of-bounds starts leave the copy unchanged.
func (g Grid) WithStart(p Position) Grid {
	out := g.Clone()
	out.SetCell(p, StartMark)
	return out
}

// Equal reports whether both grids have the same shape and cells
func (g Grid) Equal(other Grid) bool {
	if g.rows != other.rows || g.cols != other.cols {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Strings renders one string per row
func (g Grid) Strings() []string {
	out := make([]string, g.rows)
	for x := 0; x < g.rows; x++ {
		row := g.cells[x*g.cols : (x+1)*g.cols]
		b := make([]byte, len(row))
		for i, c := range row {
			b[i] = byte(c)
		}
		out[x] = string(b)
	}
	return out
}

// String renders the grid with one row per line
func (g Grid) String() string {
	return strings.Join(g.Strings(), "\n")
}

// MarshalJSON encodes the grid as an array of row strings
func (g Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Strings())
}

// UnmarshalJSON decodes an array of row strings. An empty array yields the zero grid.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var rows []string
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		*g = Grid{}
		return nil
	}
	parsed, err := ParseGrid(rows)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
