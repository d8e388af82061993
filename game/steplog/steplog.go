package steplog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

// Section markers of the record format. They are case-sensitive and must
// each appear exactly once, StepsMarker first.
const (
	StepsMarker = "#STEPS"
	MapMarker   = "#MAP"
)

// maxLineSize bounds a single grid row when decoding
const maxLineSize = 1 << 20

var ErrMalformedRecord = errors.New("malformed step log record")

// Record is one persisted run: the visit order followed by the final grid
type Record struct {
	Steps []engine.Position `json:"steps"`
	Grid  engine.Grid       `json:"grid"`
}

// NewRecord builds the record of a search from start. The start mark is
// written over the result unless the path is the start cell alone, so a
// successful run always leaves at least one PathMark in the grid.
func NewRecord(steps []engine.Position, result engine.Grid, start engine.Position) Record {
	grid := result.WithStart(start)
	if grid.CountCells(engine.PathMark) == 0 {
		if c, err := result.At(start); err == nil && c == engine.PathMark {
			grid = result.Clone()
		}
	}
	return Record{Steps: steps, Grid: grid}
}

// Found reports whether the final grid carries a marked path
func (r Record) Found() bool {
	return r.Grid.CountCells(engine.PathMark) > 0
}

// Equal compares two records, treating nil and empty step lists alike
func (r Record) Equal(other Record) bool {
	if len(r.Steps) != len(other.Steps) {
		return false
	}
	for i := range r.Steps {
		if r.Steps[i] != other.Steps[i] {
			return false
		}
	}
	return r.Grid.Equal(other.Grid)
}

// Encode writes rec in the line-oriented #STEPS / #MAP format
func Encode(w io.Writer, rec Record) error {
	if rec.Grid.IsEmpty() {
		return fmt.Errorf("encode step log: %w", engine.ErrEmptyGrid)
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(StepsMarker)
	bw.WriteByte('\n')
	for _, p := range rec.Steps {
		bw.WriteString(strconv.Itoa(p.X))
		bw.WriteByte(',')
		bw.WriteString(strconv.Itoa(p.Y))
		bw.WriteByte('\n')
	}
	bw.WriteString(MapMarker)
	bw.WriteByte('\n')
	for _, row := range rec.Grid.Strings() {
		bw.WriteString(row)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Marshal returns the encoded form of rec
func Marshal(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type section int

const (
	sectionNone section = iota
	sectionSteps
	sectionMap
)

// Decode parses a record. Markers switch the active section, blank lines
// are skipped, coordinate lines are "x,y" pairs and map lines are taken as
// rows. Any violation is reported as ErrMalformedRecord and nothing is
// returned.
func Decode(r io.Reader) (Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	var (
		mode    = sectionNone
		steps   = make([]engine.Position, 0)
		rows    []string
		lineNo  int
		seenMap bool
	)

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch line {
		case StepsMarker:
			if mode != sectionNone {
				return Record{}, malformed(lineNo, "duplicate %s marker", StepsMarker)
			}
			mode = sectionSteps
			continue
		case MapMarker:
			if mode == sectionNone {
				return Record{}, malformed(lineNo, "%s before %s", MapMarker, StepsMarker)
			}
			if seenMap {
				return Record{}, malformed(lineNo, "duplicate %s marker", MapMarker)
			}
			mode = sectionMap
			seenMap = true
			continue
		}

		switch mode {
		case sectionNone:
			return Record{}, malformed(lineNo, "content before any section marker")
		case sectionSteps:
			p, err := parseCoordinate(line)
			if err != nil {
				return Record{}, malformed(lineNo, "%v", err)
			}
			steps = append(steps, p)
		case sectionMap:
			rows = append(rows, line)
		}
	}
	if err := sc.Err(); err != nil {
		return Record{}, fmt.Errorf("read step log: %w", err)
	}

	if !seenMap {
		return Record{}, fmt.Errorf("%w: missing %s section", ErrMalformedRecord, MapMarker)
	}
	grid, err := engine.ParseGrid(rows)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	return Record{Steps: steps, Grid: grid}, nil
}

// Unmarshal parses an encoded record
func Unmarshal(data []byte) (Record, error) {
	return Decode(bytes.NewReader(data))
}

func parseCoordinate(line string) (engine.Position, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return engine.Position{}, fmt.Errorf("coordinate %q must be one x,y pair", line)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return engine.Position{}, fmt.Errorf("coordinate %q: invalid x: %w", line, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return engine.Position{}, fmt.Errorf("coordinate %q: invalid y: %w", line, err)
	}
	return engine.Position{X: x, Y: y}, nil
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedRecord, line, fmt.Sprintf(format, args...))
}
