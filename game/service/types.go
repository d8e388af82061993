package service

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

// MapFileExt is the extension of map files in the maps directory
const MapFileExt = ".txt"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMapNotFound     = errors.New("map not found")
	ErrInvalidMap      = errors.New("invalid map")
	ErrInvalidStart    = errors.New("invalid start position")
)

// SessionInfo provides information about a hunt session
type SessionInfo struct {
	ID             string          `json:"id"`
	MapName        string          `json:"map_name"`
	Grid           engine.Grid     `json:"grid"`
	Start          engine.Position `json:"start"`
	LastSolve      *SolveResult    `json:"last_solve,omitempty"`
	LastRecord     string          `json:"last_record,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
}

// SolveResult contains the outcome of a search from the session start
type SolveResult struct {
	Found      bool            `json:"found"`
	Start      engine.Position `json:"start"`
	Result     engine.Grid     `json:"result"`
	PathLength int             `json:"path_length"`
}

// TraceOptions configures trace retrieval
type TraceOptions struct {
	Limit     int  `json:"limit"`
	Snapshots bool `json:"snapshots"`
}

// TraceStep is a compact record of one search event
type TraceStep struct {
	Idx  int             `json:"idx"`
	Kind engine.StepKind `json:"kind"`
	Pos  engine.Position `json:"pos"`
	Grid *engine.Grid    `json:"grid,omitempty"`
}

// TraceResult contains the events of a traced search
type TraceResult struct {
	Steps      []TraceStep `json:"steps"`
	TotalSteps int         `json:"total_steps"`
	Visits     int         `json:"visits"`
	Truncated  bool        `json:"truncated,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Found      bool        `json:"found"`
	Result     engine.Grid `json:"result"`
}

// RecordResult describes what Record wrote to the records directory
type RecordResult struct {
	Found      bool            `json:"found"`
	Start      engine.Position `json:"start"`
	RecordName string          `json:"record,omitempty"`
	ErrorFile  string          `json:"error_file,omitempty"`
	Steps      int             `json:"steps"`
	Result     engine.Grid     `json:"result"`
}

// ReplayResult is a decoded step log ready to be animated
type ReplayResult struct {
	Name  string            `json:"name"`
	Steps []engine.Position `json:"steps"`
	Grid  engine.Grid       `json:"grid"`
	Found bool              `json:"found"`
}

// MapInfo provides information about a stored map
type MapInfo struct {
	Filename  string `json:"filename"`
	MapID     string `json:"map_id"` // The identifier to use for session creation
	Rows      int    `json:"rows"`
	Cols      int    `json:"cols"`
	Treasures int    `json:"treasures"`
	Walls     int    `json:"walls"`
}

// GenerateRequest configures random map generation. Zero values fall back
// to the generator defaults.
type GenerateRequest struct {
	Name       string   `json:"name,omitempty"`
	Rows       int      `json:"rows,omitempty"`
	Cols       int      `json:"cols,omitempty"`
	Density    *float64 `json:"density,omitempty"`
	Seed       *uint64  `json:"seed,omitempty"`
	NoTreasure bool     `json:"no_treasure,omitempty"`
}

// NewMapInfo summarizes grid stored under filename
func NewMapInfo(filename string, grid engine.Grid) *MapInfo {
	return &MapInfo{
		Filename:  filename,
		MapID:     strings.TrimSuffix(filename, filepath.Ext(filename)),
		Rows:      grid.Rows(),
		Cols:      grid.Cols(),
		Treasures: grid.CountCells(engine.Treasure),
		Walls:     grid.CountCells(engine.Wall),
	}
}
