package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCellConstants(t *testing.T) {
	tests := []struct {
		cell     Cell
		expected string
	}{
		{Empty, "."},
		{Wall, "#"},
		{Treasure, "T"},
		{PathMark, "*"},
		{StartMark, "@"},
	}

	for _, test := range tests {
		if test.cell.String() != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, test.cell.String())
		}
	}
}

func TestParseGrid(t *testing.T) {
	grid, err := ParseGrid([]string{"..#", "T.."})
	if err != nil {
		t.Fatalf("Failed to parse grid: %v", err)
	}
	if grid.Rows() != 2 || grid.Cols() != 3 {
		t.Errorf("Expected 2x3 grid, got %dx%d", grid.Rows(), grid.Cols())
	}
	if c, _ := grid.At(Position{X: 1, Y: 0}); c != Treasure {
		t.Errorf("Expected treasure at (1,0), got %c", c)
	}
	if c, _ := grid.At(Position{X: 0, Y: 2}); c != Wall {
		t.Errorf("Expected wall at (0,2), got %c", c)
	}
}

func TestParseGrid_Errors(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		want error
	}{
		{"no rows", nil, ErrEmptyGrid},
		{"empty row", []string{""}, ErrEmptyGrid},
		{"jagged", []string{"...", ".."}, ErrInconsistentGrid},
		{"jagged later row", []string{"..", "..", "..."}, ErrInconsistentGrid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGrid(tt.rows)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseGrid_KeepsAnnotations(t *testing.T) {
	grid := MustParseGrid("@*.", "#T*")
	if got := grid.String(); got != "@*.\n#T*" {
		t.Errorf("Expected symbols to round-trip, got %q", got)
	}
}

func TestNewGrid(t *testing.T) {
	grid, err := NewGrid(3, 4, Wall)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	if grid.CountCells(Wall) != 12 {
		t.Errorf("Expected 12 walls, got %d", grid.CountCells(Wall))
	}

	if _, err := NewGrid(0, 4, Empty); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("Expected ErrEmptyGrid, got %v", err)
	}
}

func TestGrid_BoundsChecks(t *testing.T) {
	grid := MustParseGrid("..", "..")

	for _, p := range []Position{{-1, 0}, {0, -1}, {2, 0}, {0, 2}} {
		if grid.InBounds(p) {
			t.Errorf("Expected %v out of bounds", p)
		}
		if _, err := grid.At(p); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("At(%v): expected ErrOutOfBounds, got %v", p, err)
		}
		if err := grid.Set(p, Wall); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Set(%v): expected ErrOutOfBounds, got %v", p, err)
		}
		grid.SetCell(p, Wall)
	}
	if grid.CountCells(Wall) != 0 {
		t.Error("SetCell out of bounds must not write")
	}
}

func TestGrid_CloneIsDeep(t *testing.T) {
	grid := MustParseGrid("..", "..")
	clone := grid.Clone()
	clone.SetCell(Position{X: 0, Y: 0}, Wall)

	if c, _ := grid.At(Position{X: 0, Y: 0}); c != Empty {
		t.Errorf("Clone shares storage with original")
	}
	if grid.Equal(clone) {
		t.Error("Expected grids to differ after editing the clone")
	}
}

func TestGrid_WithStart(t *testing.T) {
	grid := MustParseGrid("*.", "..")
	marked := grid.WithStart(Position{X: 0, Y: 0})

	if c, _ := marked.At(Position{X: 0, Y: 0}); c != StartMark {
		t.Errorf("Expected start mark, got %c", c)
	}
	if c, _ := grid.At(Position{X: 0, Y: 0}); c != PathMark {
		t.Errorf("WithStart modified the original grid")
	}
	if !grid.WithStart(Position{X: 5, Y: 5}).Equal(grid) {
		t.Error("Out-of-bounds start should leave the copy unchanged")
	}
}

func TestGrid_PaintSegment(t *testing.T) {
	grid, _ := NewGrid(4, 4, Empty)

	if err := grid.PaintSegment(Position{X: 1, Y: 3}, Position{X: 1, Y: 0}, Wall); err != nil {
		t.Fatalf("Failed to paint row segment: %v", err)
	}
	if err := grid.PaintSegment(Position{X: 0, Y: 2}, Position{X: 9, Y: 2}, Treasure); err != nil {
		t.Fatalf("Failed to paint column segment: %v", err)
	}

	expected := []string{"..T.", "##T#", "..T.", "..T."}
	for i, row := range grid.Strings() {
		if row != expected[i] {
			t.Errorf("Row %d: expected %q, got %q", i, expected[i], row)
		}
	}

	err := grid.PaintSegment(Position{X: 0, Y: 0}, Position{X: 2, Y: 2}, Wall)
	if !errors.Is(err, ErrDiagonalSegment) {
		t.Errorf("Expected ErrDiagonalSegment, got %v", err)
	}
}

func TestGrid_JSON(t *testing.T) {
	grid := MustParseGrid(".#", "T*")

	data, err := json.Marshal(grid)
	if err != nil {
		t.Fatalf("Failed to marshal grid: %v", err)
	}
	if string(data) != `[".#","T*"]` {
		t.Errorf("Unexpected JSON %s", data)
	}

	var decoded Grid
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal grid: %v", err)
	}
	if !decoded.Equal(grid) {
		t.Errorf("Expected %v, got %v", grid.Strings(), decoded.Strings())
	}

	if err := json.Unmarshal([]byte(`["..","."]`), &decoded); !errors.Is(err, ErrInconsistentGrid) {
		t.Errorf("Expected ErrInconsistentGrid, got %v", err)
	}
}

func TestStepKind_Text(t *testing.T) {
	for _, kind := range []StepKind{StepVisit, StepMark, StepDone} {
		text, _ := kind.MarshalText()
		var decoded StepKind
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("Failed to decode %s: %v", text, err)
		}
		if decoded != kind {
			t.Errorf("Expected %v, got %v", kind, decoded)
		}
	}

	var k StepKind
	if err := k.UnmarshalText([]byte("teleport")); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestUtils(t *testing.T) {
	grid := MustParseGrid("T.#", "..#", "##T")

	if n := grid.CountCells(Treasure); n != 2 {
		t.Errorf("Expected 2 treasures, got %d", n)
	}
	treasures := grid.FindCells(Treasure)
	if len(treasures) != 2 || treasures[0] != (Position{0, 0}) || treasures[1] != (Position{2, 2}) {
		t.Errorf("Unexpected treasure positions %v", treasures)
	}
	if d := ManhattanDistance(Position{0, 0}, Position{2, 2}); d != 4 {
		t.Errorf("Expected distance 4, got %d", d)
	}

	reach := CanReachTreasure(grid)
	if !reach[1][1] || !reach[0][1] {
		t.Error("Expected top-left region to reach a treasure")
	}
	if reach[0][2] {
		t.Error("Walls never reach a treasure")
	}
	if !reach[2][2] {
		t.Error("A treasure reaches itself")
	}
}
