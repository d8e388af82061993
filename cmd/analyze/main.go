// Command analyze prints quick, human-readable statistics about the map files
// in the project's maps directory (or the directory given as the first
// argument). It summarizes dimensions, wall density and treasure counts,
// highlights empty cells that cannot reach any treasure, and runs a sample
// search from the first empty cell.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/maps"
)

// maxListed caps how many unreachable cells are printed per map
const maxListed = 5

// MapAnalysis holds the statistics reported for one map.
type MapAnalysis struct {
	Name        string
	Rows, Cols  int
	Walls       int
	Treasures   int
	Empty       int
	WallDensity float64

	// Reachable counts empty cells with a path to some treasure
	Reachable   int
	Unreachable []engine.Position

	// Sample search from the first empty cell in row-major order
	HasSample       bool
	SampleStart     engine.Position
	Found           bool
	PathLength      int
	Visited         int
	NearestTreasure int
}

func main() {
	dir := "maps"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	manager, err := maps.NewManager(dir)
	if err != nil {
		fmt.Printf("Error opening maps directory: %v\n", err)
		os.Exit(1)
	}

	infos, err := manager.ListMaps()
	if err != nil {
		fmt.Printf("Error listing maps: %v\n", err)
		os.Exit(1)
	}

	for _, info := range infos {
		fmt.Printf("\n=== Analyzing %s ===\n", info.Filename)
		grid, err := manager.LoadMap(info.Filename)
		if err != nil {
			fmt.Printf("Error loading map: %v\n", err)
			continue
		}
		printAnalysis(os.Stdout, analyzeGrid(info.MapID, grid))
	}
}

// analyzeGrid computes the statistics of one map
func analyzeGrid(name string, grid engine.Grid) MapAnalysis {
	a := MapAnalysis{
		Name:      name,
		Rows:      grid.Rows(),
		Cols:      grid.Cols(),
		Walls:     grid.CountCells(engine.Wall),
		Treasures: grid.CountCells(engine.Treasure),
		Empty:     grid.CountCells(engine.Empty),
	}
	if total := a.Rows * a.Cols; total > 0 {
		a.WallDensity = float64(a.Walls) / float64(total)
	}

	reach := engine.CanReachTreasure(grid)
	empties := grid.FindCells(engine.Empty)
	for _, p := range empties {
		if reach[p.X][p.Y] {
			a.Reachable++
		} else {
			a.Unreachable = append(a.Unreachable, p)
		}
	}

	if len(empties) == 0 {
		return a
	}

	start := empties[0]
	found, result := engine.Solve(grid, start)
	a.HasSample = true
	a.SampleStart = start
	a.Found = found
	if found {
		a.PathLength = engine.PathLength(result)
	}
	a.Visited = len(engine.Trace(grid, start).VisitOrder())
	a.NearestTreasure = -1
	for _, t := range grid.FindCells(engine.Treasure) {
		if d := engine.ManhattanDistance(start, t); a.NearestTreasure < 0 || d < a.NearestTreasure {
			a.NearestTreasure = d
		}
	}

	return a
}

// printAnalysis writes the report for a in the command's output format
func printAnalysis(w io.Writer, a MapAnalysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.Rows, a.Cols)
	fmt.Fprintf(w, "Walls: %d (%.1f%% density)\n", a.Walls, a.WallDensity*100)
	fmt.Fprintf(w, "Treasures: %d\n", a.Treasures)
	fmt.Fprintf(w, "Empty Cells: %d\n", a.Empty)

	if len(a.Unreachable) > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d empty cells cannot reach any treasure!\n", len(a.Unreachable))
		for i, p := range a.Unreachable {
			if i == maxListed {
				fmt.Fprintf(w, "   ... and %d more\n", len(a.Unreachable)-maxListed)
				break
			}
			fmt.Fprintf(w, "   Unreachable: (%d, %d)\n", p.X, p.Y)
		}
	} else if a.Empty > 0 {
		fmt.Fprintf(w, "✅ All %d empty cells can reach a treasure\n", a.Empty)
	}

	if !a.HasSample {
		fmt.Fprintf(w, "⚠️  CRITICAL: no empty cell to start a search from\n")
		return
	}

	fmt.Fprintf(w, "Sample Start: (%d, %d)\n", a.SampleStart.X, a.SampleStart.Y)
	if a.Found {
		fmt.Fprintf(w, "✅ Treasure found: path of %d cells after visiting %d cells", a.PathLength, a.Visited)
		if a.NearestTreasure >= 0 {
			fmt.Fprintf(w, " (nearest treasure %d steps away in a straight line)", a.NearestTreasure)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "⚠️  No treasure reachable from the sample start (%d cells visited)\n", a.Visited)
	}
}
