package engine

import "iter"

// frame is one level of the backtracking stack: the cell being expanded
// and the index of the next direction to try.
type frame struct {
	pos  Position
	next int
}

type phase int

const (
	phaseSearch phase = iota
	phaseUnwind
	phaseFinish
	phaseDone
)

// explorer runs the backtracking DFS one event at a time with an explicit
// stack, so deep grids never hit call-depth limits. Visit order matches the
// recursive formulation: a cell is reported when entered, then its
// neighbors are tried up, down, left, right.
//
// visited is never cleared during a call, so each cell is entered at most
// once. deadEnd records cells whose four neighbors all failed; it is only
// written when recordDeadEnds is set and is consulted before entering a cell.
type explorer struct {
	src            Grid
	work           Grid
	start          Position
	visited        []bool
	deadEnd        []bool
	recordDeadEnds bool
	snapshots      bool
	stack          []frame
	phase          phase
	found          bool
	startReported  bool
}

func newExplorer(g Grid, start Position, recordDeadEnds, snapshots bool) *explorer {
	n := g.rows * g.cols
	e := &explorer{
		src:            g,
		work:           g.Clone(),
		start:          start,
		visited:        make([]bool, n),
		recordDeadEnds: recordDeadEnds,
		snapshots:      snapshots,
	}
	if recordDeadEnds {
		e.deadEnd = make([]bool, n)
	}
	// The start goes through the same checks as any neighbor; its visit
	// event is handed out by the first call to next.
	e.stack = make([]frame, 0, 16)
	if !e.enter(start) {
		e.phase = phaseFinish
	}
	return e
}

func (e *explorer) index(p Position) int {
	return p.X*e.src.cols + p.Y
}

// enter pushes p when it is open. It returns false for out-of-bounds, wall,
// already visited and known dead-end cells.
func (e *explorer) enter(p Position) bool {
	if !e.src.InBounds(p) || e.src.cell(p) == Wall {
		return false
	}
	i := e.index(p)
	if e.visited[i] {
		return false
	}
	if e.deadEnd != nil && e.deadEnd[i] {
		return false
	}
	e.visited[i] = true
	e.stack = append(e.stack, frame{pos: p})
	if e.src.cell(p) == Treasure {
		e.found = true
		e.phase = phaseUnwind
	}
	return true
}

func (e *explorer) event(kind StepKind, p Position) StepEvent {
	ev := StepEvent{Kind: kind, Pos: p}
	if e.snapshots {
		ev.Grid = e.work.Clone()
	}
	return ev
}

// next advances the search to its next observable event
func (e *explorer) next() (StepEvent, bool) {
	if !e.startReported {
		e.startReported = true
		if len(e.stack) == 1 {
			return e.event(StepVisit, e.start), true
		}
	}
	for {
		switch e.phase {
		case phaseSearch:
			if len(e.stack) == 0 {
				e.phase = phaseFinish
				continue
			}
			top := &e.stack[len(e.stack)-1]
			if top.next == len(Directions) {
				if e.recordDeadEnds {
					e.deadEnd[e.index(top.pos)] = true
				}
				e.stack = e.stack[:len(e.stack)-1]
				continue
			}
			p := top.pos.Add(Directions[top.next])
			top.next++
			if e.enter(p) {
				return e.event(StepVisit, p), true
			}

		case phaseUnwind:
			if len(e.stack) == 0 {
				e.phase = phaseFinish
				continue
			}
			f := e.stack[len(e.stack)-1]
			e.stack = e.stack[:len(e.stack)-1]
			e.work.cells[e.index(f.pos)] = PathMark
			return e.event(StepMark, f.pos), true

		case phaseFinish:
			e.phase = phaseDone
			done := StepEvent{Kind: StepDone, Pos: e.start, Found: e.found}
			if e.snapshots {
				done.Grid = e.work.Clone()
			}
			return done, true

		case phaseDone:
			return StepEvent{}, false
		}
	}
}

// Solve searches for any treasure reachable from start with 4-directional
// moves through non-wall cells. On success the returned grid is a copy of g
// with every cell of the discovered path, start and treasure included,
// set to PathMark. On failure it is an unchanged copy of g. An out-of-bounds
// or wall start is a failed search, not an error.
func Solve(g Grid, start Position) (bool, Grid) {
	e := newExplorer(g, start, true, false)
	for {
		ev, ok := e.next()
		if !ok || ev.Kind == StepDone {
			break
		}
	}
	return e.found, e.work
}

// Tracer is a single-use, pull-based view of a search. Events from Trace
// carry their own grid snapshot; events from TracePositions carry none.
//
// A successful search yields its StepVisit events, then one StepMark per
// path cell from the treasure back to the start, and ends with StepDone.
// The success outcome is therefore reported after the marks: a consumer that
// wants to announce success before the marks are drawn can treat the first
// StepMark as the signal. Every sequence ends with exactly one StepDone.
type Tracer struct {
	e      *explorer
	done   bool
	found  bool
	result Grid
}

// Trace prepares a traced search over g from start. Only the start cell is
// checked up front; exploration advances one event per call to Next.
// Trace does not record dead ends.
func Trace(g Grid, start Position) *Tracer {
	return &Tracer{e: newExplorer(g, start, false, true)}
}

// TracePositions is Trace without grid snapshots. Events carry only their
// kind and position; Result is still available once Done.
func TracePositions(g Grid, start Position) *Tracer {
	return &Tracer{e: newExplorer(g, start, false, false)}
}

// Next returns the next event, or false once the sequence is exhausted
func (t *Tracer) Next() (StepEvent, bool) {
	if t.done {
		return StepEvent{}, false
	}
	ev, ok := t.e.next()
	if !ok {
		t.done = true
		return StepEvent{}, false
	}
	if ev.Kind == StepDone {
		t.done = true
		t.found = ev.Found
		t.result = t.e.work.Clone()
		t.e = nil
	}
	return ev, true
}

// All adapts the tracer to range-over-func. It shares the tracer's position,
// so events already pulled with Next are not repeated.
func (t *Tracer) All() iter.Seq[StepEvent] {
	return func(yield func(StepEvent) bool) {
		for {
			ev, ok := t.Next()
			if !ok || !yield(ev) {
				return
			}
		}
	}
}

// Done reports whether the terminal event has been produced
func (t *Tracer) Done() bool { return t.done }

// Found is the search outcome; valid once Done is true
func (t *Tracer) Found() bool { return t.found }

// Result returns a copy of the final grid; valid once Done is true
func (t *Tracer) Result() Grid { return t.result.Clone() }

// VisitOrder drains the tracer and returns the coordinates of the remaining
// StepVisit events in order. The drained events take no snapshots.
func (t *Tracer) VisitOrder() []Position {
	if t.e != nil {
		t.e.snapshots = false
	}
	var out []Position
	for ev := range t.All() {
		if ev.Kind == StepVisit {
			out = append(out, ev.Pos)
		}
	}
	return out
}

// VisitOrder extracts the StepVisit coordinates from a collected trace
func VisitOrder(events []StepEvent) []Position {
	out := make([]Position, 0, len(events))
	for _, ev := range events {
		if ev.Kind == StepVisit {
			out = append(out, ev.Pos)
		}
	}
	return out
}
