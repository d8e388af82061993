package engine

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func collect(t *testing.T, tr *Tracer) []StepEvent {
	t.Helper()
	var events []StepEvent
	for ev := range tr.All() {
		events = append(events, ev)
	}
	if len(events) == 0 || events[len(events)-1].Kind != StepDone {
		t.Fatalf("trace must end with a done event, got %d events", len(events))
	}
	return events
}

func TestSolve_TreasureBehindSingleOpening(t *testing.T) {
	grid := MustParseGrid("...", "#T#", "...")

	found, result := Solve(grid, Position{X: 0, Y: 0})
	if !found {
		t.Fatal("Expected treasure to be found")
	}

	expected := []string{"**.", "#*#", "..."}
	if got := result.Strings(); strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected result %v, got %v", expected, got)
	}
}

func TestSolve_TreasureEnclosedByWalls(t *testing.T) {
	grid := MustParseGrid(".#.", "#T#", ".#.")

	found, result := Solve(grid, Position{X: 0, Y: 0})
	if found {
		t.Fatal("Expected enclosed treasure to be unreachable")
	}
	if !result.Equal(grid) {
		t.Errorf("Expected unchanged grid on failure, got %v", result.Strings())
	}
}

func TestSolve_InvalidStart(t *testing.T) {
	grid := MustParseGrid("..T", "#..")

	tests := []struct {
		name  string
		start Position
	}{
		{"negative row", Position{X: -1, Y: 0}},
		{"negative column", Position{X: 0, Y: -1}},
		{"row past end", Position{X: 2, Y: 0}},
		{"column past end", Position{X: 0, Y: 3}},
		{"wall", Position{X: 1, Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, result := Solve(grid, tt.start)
			if found {
				t.Error("Expected no path from invalid start")
			}
			if !result.Equal(grid) {
				t.Errorf("Expected unchanged grid, got %v", result.Strings())
			}
		})
	}
}

func TestSolve_StartOnTreasure(t *testing.T) {
	grid := MustParseGrid("T.", "..")

	found, result := Solve(grid, Position{X: 0, Y: 0})
	if !found {
		t.Fatal("Expected start on treasure to succeed")
	}
	if got := result.Strings(); got[0] != "*." || got[1] != ".." {
		t.Errorf("Expected only the start marked, got %v", got)
	}
}

func TestSolve_BacktracksOutOfDeadEnd(t *testing.T) {
	grid := MustParseGrid(
		"..#T",
		"..#.",
		"....",
	)

	found, result := Solve(grid, Position{X: 1, Y: 0})
	if !found {
		t.Fatal("Expected treasure to be found")
	}

	// (2,0) is explored and abandoned before the route along the bottom row
	expected := []string{"**#*", "**#*", ".***"}
	for i, row := range result.Strings() {
		if row != expected[i] {
			t.Errorf("Row %d: expected %q, got %q", i, expected[i], row)
		}
	}
}

func TestSolve_FirstTreasureInDirectionOrder(t *testing.T) {
	// Up is tried before down, so the upper treasure wins
	grid := MustParseGrid("T", ".", ".", "T")

	found, result := Solve(grid, Position{X: 1, Y: 0})
	if !found {
		t.Fatal("Expected treasure to be found")
	}
	expected := []string{"*", "*", ".", "T"}
	for i, row := range result.Strings() {
		if row != expected[i] {
			t.Errorf("Row %d: expected %q, got %q", i, expected[i], row)
		}
	}
}

func TestSolve_DoesNotMutateInput(t *testing.T) {
	grid := MustParseGrid("...", ".#.", "..T")
	before := grid.Clone()

	Solve(grid, Position{X: 0, Y: 0})

	if !grid.Equal(before) {
		t.Errorf("Solve mutated its input: %v", grid.Strings())
	}
}

func TestSolve_Idempotent(t *testing.T) {
	grid := MustParseGrid("....", ".##.", ".#T.", "....")
	start := Position{X: 0, Y: 0}

	found1, result1 := Solve(grid, start)
	found2, result2 := Solve(grid, start)

	if found1 != found2 {
		t.Errorf("Found differs between calls: %v vs %v", found1, found2)
	}
	if !result1.Equal(result2) {
		t.Errorf("Results differ between calls:\n%v\n%v", result1, result2)
	}
}

func TestSolve_LongCorridor(t *testing.T) {
	// Deep enough that a recursive search would need thousands of frames
	const length = 20000
	row := strings.Repeat(".", length-1) + "T"
	grid := MustParseGrid(row)

	found, result := Solve(grid, Position{X: 0, Y: 0})
	if !found {
		t.Fatal("Expected treasure at the end of the corridor")
	}
	if PathLength(result) != length {
		t.Errorf("Expected path length %d, got %d", length, PathLength(result))
	}
}

func TestSolve_PathIsConnected(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		grid := randomGrid(rng, 1+rng.IntN(8), 1+rng.IntN(8), 0.3)
		start := Position{X: rng.IntN(grid.Rows()), Y: rng.IntN(grid.Cols())}
		if c, _ := grid.At(start); c == Wall {
			continue
		}

		found, result := Solve(grid, start)
		reach := CanReachTreasure(grid)
		if found != reach[start.X][start.Y] {
			t.Fatalf("Grid %v from %v: found=%v but reachability=%v", grid.Strings(), start, found, reach[start.X][start.Y])
		}
		if !found {
			continue
		}
		assertConnectedPath(t, grid, result, start)
	}
}

// assertConnectedPath checks the marked cells form a walk from start that
// ends on a treasure and that no other cell changed.
func assertConnectedPath(t *testing.T, grid, result Grid, start Position) {
	t.Helper()
	if c, _ := result.At(start); c != PathMark {
		t.Fatalf("Start %v not marked in %v", start, result.Strings())
	}

	marked := 0
	treasureOnPath := false
	for x := 0; x < grid.Rows(); x++ {
		for y := 0; y < grid.Cols(); y++ {
			p := Position{X: x, Y: y}
			before, _ := grid.At(p)
			after, _ := result.At(p)
			if after != PathMark {
				if before != after {
					t.Fatalf("Unmarked cell %v changed from %c to %c", p, before, after)
				}
				continue
			}
			marked++
			if before == Wall {
				t.Fatalf("Wall %v marked as path", p)
			}
			if before == Treasure {
				treasureOnPath = true
			}
		}
	}
	if !treasureOnPath {
		t.Fatalf("No treasure on marked path in %v", result.Strings())
	}

	// Every marked cell must be reachable from start through marked cells
	seen := map[Position]bool{start: true}
	queue := []Position{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			n := p.Add(d)
			if c, err := result.At(n); err == nil && c == PathMark && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	if len(seen) != marked {
		t.Fatalf("Marked path is not connected: reached %d of %d cells in %v", len(seen), marked, result.Strings())
	}
}

func TestTrace_EventOrder(t *testing.T) {
	grid := MustParseGrid("...", "#T#", "...")
	events := collect(t, Trace(grid, Position{X: 0, Y: 0}))

	expected := []struct {
		kind StepKind
		pos  Position
	}{
		{StepVisit, Position{0, 0}},
		{StepVisit, Position{0, 1}},
		{StepVisit, Position{1, 1}},
		{StepMark, Position{1, 1}},
		{StepMark, Position{0, 1}},
		{StepMark, Position{0, 0}},
		{StepDone, Position{0, 0}},
	}
	if len(events) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(events))
	}
	for i, want := range expected {
		if events[i].Kind != want.kind || events[i].Pos != want.pos {
			t.Errorf("Event %d: expected %s %v, got %s %v", i, want.kind, want.pos, events[i].Kind, events[i].Pos)
		}
	}

	done := events[len(events)-1]
	if !done.Found {
		t.Error("Expected done event to report success")
	}
	if got := done.Grid.Strings(); got[0] != "**." || got[1] != "#*#" {
		t.Errorf("Unexpected final grid %v", got)
	}
}

func TestTrace_SnapshotsTrackMarking(t *testing.T) {
	grid := MustParseGrid("...", "#T#", "...")
	events := collect(t, Trace(grid, Position{X: 0, Y: 0}))

	// Visits happen before any marking
	for _, ev := range events[:3] {
		if !ev.Grid.Equal(grid) {
			t.Errorf("Visit snapshot %v should equal the input grid", ev.Pos)
		}
	}
	// Each mark snapshot already contains its own cell
	for _, ev := range events[3:6] {
		if c, _ := ev.Grid.At(ev.Pos); c != PathMark {
			t.Errorf("Mark snapshot at %v shows %c", ev.Pos, c)
		}
	}
}

func TestTrace_SnapshotsAreIndependent(t *testing.T) {
	grid := MustParseGrid("..", ".T")
	tr := Trace(grid, Position{X: 0, Y: 0})

	first, ok := tr.Next()
	if !ok {
		t.Fatal("Expected a first event")
	}
	first.Grid.SetCell(Position{X: 0, Y: 1}, Wall)

	second, ok := tr.Next()
	if !ok {
		t.Fatal("Expected a second event")
	}
	if c, _ := second.Grid.At(Position{X: 0, Y: 1}); c == Wall {
		t.Error("Mutating an emitted snapshot leaked into later events")
	}
	if c, _ := grid.At(Position{X: 0, Y: 1}); c == Wall {
		t.Error("Mutating an emitted snapshot leaked into the input grid")
	}
}

func TestTrace_Failure(t *testing.T) {
	grid := MustParseGrid("..#", "..#", "##T")
	events := collect(t, Trace(grid, Position{X: 0, Y: 0}))

	visits := VisitOrder(events)
	expected := []Position{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if len(visits) != len(expected) {
		t.Fatalf("Expected %d visits, got %v", len(expected), visits)
	}
	for i := range expected {
		if visits[i] != expected[i] {
			t.Errorf("Visit %d: expected %v, got %v", i, expected[i], visits[i])
		}
	}

	done := events[len(events)-1]
	if done.Found {
		t.Error("Expected failure")
	}
	if !done.Grid.Equal(grid) {
		t.Errorf("Expected unchanged final grid, got %v", done.Grid.Strings())
	}
	for _, ev := range events {
		if ev.Kind == StepMark {
			t.Errorf("Unexpected mark event at %v", ev.Pos)
		}
	}
}

func TestTrace_OutOfBoundsStart(t *testing.T) {
	grid := MustParseGrid("T")
	events := collect(t, Trace(grid, Position{X: -1, Y: 0}))

	if len(events) != 1 {
		t.Fatalf("Expected only the done event, got %d events", len(events))
	}
	if events[0].Found {
		t.Error("Expected failure from out-of-bounds start")
	}
}

func TestTrace_NotRestartable(t *testing.T) {
	tr := Trace(MustParseGrid(".T"), Position{X: 0, Y: 0})
	collect(t, tr)

	if _, ok := tr.Next(); ok {
		t.Error("Expected exhausted tracer to stay exhausted")
	}
	if !tr.Done() || !tr.Found() {
		t.Errorf("Expected done and found, got done=%v found=%v", tr.Done(), tr.Found())
	}
	if got := tr.Result().Strings()[0]; got != "**" {
		t.Errorf("Expected result **, got %s", got)
	}
}

func TestTrace_EarlyStopLeavesNoState(t *testing.T) {
	grid := MustParseGrid("....", "....", "...T")
	tr := Trace(grid, Position{X: 0, Y: 0})
	for range tr.All() {
		break
	}
	if tr.Done() {
		t.Error("Tracer should not be done after an early break")
	}

	// A fresh trace over the same grid is unaffected
	found, _ := Solve(grid, Position{X: 0, Y: 0})
	if tr2 := Trace(grid, Position{X: 0, Y: 0}); len(tr2.VisitOrder()) == 0 || tr2.Found() != found {
		t.Error("Fresh trace should complete and agree with Solve")
	}
}

func TestTraceAgreesWithSolve(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	for i := 0; i < 300; i++ {
		grid := randomGrid(rng, 1+rng.IntN(10), 1+rng.IntN(10), 0.35)
		start := Position{X: rng.IntN(grid.Rows()+2) - 1, Y: rng.IntN(grid.Cols()+2) - 1}

		found, result := Solve(grid, start)
		tr := Trace(grid, start)
		collect(t, tr)

		if tr.Found() != found {
			t.Fatalf("Grid %v from %v: trace found=%v, solve found=%v", grid.Strings(), start, tr.Found(), found)
		}
		if !tr.Result().Equal(result) {
			t.Fatalf("Grid %v from %v: trace result %v, solve result %v", grid.Strings(), start, tr.Result().Strings(), result.Strings())
		}
	}
}

func TestTracePositions_MatchesTrace(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 3))
	for i := 0; i < 200; i++ {
		grid := randomGrid(rng, 1+rng.IntN(8), 1+rng.IntN(8), 0.3)
		start := Position{X: rng.IntN(grid.Rows()), Y: rng.IntN(grid.Cols())}

		full := Trace(grid, start)
		light := TracePositions(grid, start)
		withGrids := collect(t, full)
		bare := collect(t, light)

		if len(bare) != len(withGrids) {
			t.Fatalf("Grid %v from %v: %d events without snapshots, %d with", grid.Strings(), start, len(bare), len(withGrids))
		}
		for j := range bare {
			if bare[j].Kind != withGrids[j].Kind || bare[j].Pos != withGrids[j].Pos {
				t.Fatalf("Event %d differs: %s %v vs %s %v", j, bare[j].Kind, bare[j].Pos, withGrids[j].Kind, withGrids[j].Pos)
			}
			if !bare[j].Grid.IsEmpty() {
				t.Fatalf("Event %d carries a snapshot", j)
			}
		}
		if light.Found() != full.Found() || !light.Result().Equal(full.Result()) {
			t.Fatalf("Grid %v from %v: outcome differs", grid.Strings(), start)
		}
	}
}

func TestTrace_VisitOrderAfterNext(t *testing.T) {
	grid := MustParseGrid("..#T", "..#.", "....")
	start := Position{X: 1, Y: 0}

	tr := Trace(grid, start)
	first, ok := tr.Next()
	if !ok || first.Grid.IsEmpty() {
		t.Fatal("Expected a first event with a snapshot")
	}

	rest := tr.VisitOrder()
	want := TracePositions(grid, start).VisitOrder()
	if len(rest) != len(want)-1 {
		t.Fatalf("Expected %d remaining visits, got %d", len(want)-1, len(rest))
	}
	for i, p := range rest {
		if p != want[i+1] {
			t.Errorf("Visit %d: expected %v, got %v", i+1, want[i+1], p)
		}
	}

	_, result := Solve(grid, start)
	if !tr.Found() || !tr.Result().Equal(result) {
		t.Errorf("Unexpected outcome %v %v", tr.Found(), tr.Result().Strings())
	}
}

func randomGrid(rng *rand.Rand, rows, cols int, density float64) Grid {
	g, _ := NewGrid(rows, cols, Empty)
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			if rng.Float64() < density {
				g.SetCell(Position{X: x, Y: y}, Wall)
			}
		}
	}
	g.SetCell(Position{X: rng.IntN(rows), Y: rng.IntN(cols)}, Treasure)
	return g
}
