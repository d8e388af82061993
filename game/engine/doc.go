// Package engine provides the grid model and treasure search for the
// Treasure Hunt service.
//
// The engine package implements:
//   - A rectangular Grid of single-byte cell symbols with bounds-checked access
//   - Map editing helpers (SetCell, PaintSegment, WithStart)
//   - Solve: a backtracking depth-first search with a dead-end memo
//   - Trace: the same search as a pull-based sequence of step events
//
// Symbols:
//
//	.  empty      #  wall      T  treasure
//	*  path mark  @  start mark
//
// Coordinates are (X, Y) = (row, column). Moves are 4-directional and are
// always tried in the order up, down, left, right, so the first treasure
// reached under that order is the one reported.
//
// Usage:
//
//	grid, err := engine.ParseGrid([]string{"...", "#T#", "..."})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	found, result := engine.Solve(grid, engine.Position{X: 0, Y: 0})
//
//	tracer := engine.Trace(grid, engine.Position{X: 0, Y: 0})
//	for ev := range tracer.All() {
//		fmt.Println(ev.Kind, ev.Pos)
//	}
//
// Grids passed to Solve and Trace are never modified. Every grid handed
// back, including each trace snapshot, is an independent copy.
package engine
