package steplog

import (
	"iter"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

// Frame is the grid shown after replaying Steps[Index]
type Frame struct {
	Index int             `json:"index"`
	Pos   engine.Position `json:"pos"`
	Grid  engine.Grid     `json:"grid"`
}

// Base returns the final grid with every path mark cleared back to empty.
// Start marks and all other symbols are kept.
func (r Record) Base() engine.Grid {
	base := r.Grid.Clone()
	for _, p := range base.FindCells(engine.PathMark) {
		base.SetCell(p, engine.Empty)
	}
	return base
}

// Frames replays the step list over Base. Each frame paints the visited
// cell when it is empty, so walls, treasures and the start mark survive.
// Steps outside the grid are reported but paint nothing.
func (r Record) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		canvas := r.Base()
		for i, p := range r.Steps {
			if c, err := canvas.At(p); err == nil && c == engine.Empty {
				canvas.SetCell(p, engine.PathMark)
			}
			if !yield(Frame{Index: i, Pos: p, Grid: canvas.Clone()}) {
				return
			}
		}
	}
}
