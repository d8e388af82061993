package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/steplog"
)

// HuntService defines all treasure hunt operations
type HuntService interface {
	// Session Management
	CreateSession(ctx context.Context, mapName string, start engine.Position) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SetStart(ctx context.Context, sessionID string, start engine.Position) (*SessionInfo, error)

	// Search
	Solve(ctx context.Context, sessionID string) (*SolveResult, error)
	Trace(ctx context.Context, sessionID string, opts TraceOptions) (*TraceResult, error)
	OpenTrace(ctx context.Context, sessionID string) (*engine.Tracer, error)
	Record(ctx context.Context, sessionID string) (*RecordResult, error)

	// Step logs
	Replay(ctx context.Context, name string) (*ReplayResult, error)
	ReadRecord(ctx context.Context, name string) ([]byte, error)
	ListRecords(ctx context.Context) ([]string, error)
	DeleteRecord(ctx context.Context, name string) error

	// Maps
	ListMaps(ctx context.Context) ([]*MapInfo, error)
	LoadMap(ctx context.Context, mapName string) (engine.Grid, error)
	SaveMap(ctx context.Context, mapName string, grid engine.Grid) error
	GenerateMap(ctx context.Context, req GenerateRequest) (*MapInfo, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, mapName string, grid engine.Grid, start engine.Position) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// MapCatalog handles map loading and storage
type MapCatalog interface {
	LoadMap(name string) (engine.Grid, error)
	ListMaps() ([]*MapInfo, error)
	GetDefault() (string, engine.Grid)
	SaveMap(name string, grid engine.Grid) error
}

// RecordStore persists step log records
type RecordStore interface {
	Save(mapName string, rec steplog.Record) (string, error)
	Load(name string) (steplog.Record, error)
	ReadRaw(name string) ([]byte, error)
	List() ([]string, error)
	Delete(name string) error
	WriteNoSolution(mapName string, start engine.Position) (string, error)
}

// Session represents one map with a chosen start cell
type Session struct {
	ID             string
	MapName        string
	Grid           engine.Grid
	Start          engine.Position
	LastSolve      *SolveResult
	LastRecord     string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
