package engine

import "errors"

// Cell is a single map symbol
type Cell byte

const (
	Empty     Cell = '.'
	Wall      Cell = '#'
	Treasure  Cell = 'T'
	PathMark  Cell = '*'
	StartMark Cell = '@'
)

// Validation constants
const (
	MinGridSize = 1
	MaxGridSize = 200
)

var (
	ErrOutOfBounds      = errors.New("coordinate out of bounds")
	ErrEmptyGrid        = errors.New("grid must have at least one row and one column")
	ErrInconsistentGrid = errors.New("grid rows have unequal length")
	ErrDiagonalSegment  = errors.New("only horizontal or vertical segments are allowed")
)

// IsPassable reports whether the search may step onto the cell
func (c Cell) IsPassable() bool {
	return c != Wall
}

// String returns the cell symbol
func (c Cell) String() string {
	return string(rune(c))
}

// Position represents a grid coordinate. X is the row and Y the column.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the position shifted by d
func (p Position) Add(d Direction) Position {
	return Position{X: p.X + d.DX, Y: p.Y + d.DY}
}

// Direction is a single 4-connected move
type Direction struct {
	Name   string
	DX, DY int
}

// Directions is the fixed exploration order: up, down, left, right.
// Reproducible results depend on this order.
var Directions = [4]Direction{
	{Name: "up", DX: -1, DY: 0},
	{Name: "down", DX: 1, DY: 0},
	{Name: "left", DX: 0, DY: -1},
	{Name: "right", DX: 0, DY: 1},
}

// StepKind classifies a traced event
type StepKind int

const (
	// StepVisit is emitted when a cell is first entered
	StepVisit StepKind = iota
	// StepMark is emitted while unwinding a successful path
	StepMark
	// StepDone is always the last event of a trace
	StepDone
)

func (k StepKind) String() string {
	switch k {
	case StepVisit:
		return "visit"
	case StepMark:
		return "mark"
	case StepDone:
		return "done"
	}
	return "unknown"
}

// MarshalText encodes the kind by name for JSON payloads
func (k StepKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *StepKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "visit":
		*k = StepVisit
	case "mark":
		*k = StepMark
	case "done":
		*k = StepDone
	default:
		return errors.New("unknown step kind: " + string(text))
	}
	return nil
}

// StepEvent is one element of a traced search.
// Grid is a private snapshot; Found is only meaningful on StepDone.
type StepEvent struct {
	Kind  StepKind `json:"kind"`
	Pos   Position `json:"pos"`
	Grid  Grid     `json:"grid"`
	Found bool     `json:"found,omitempty"`
}
