package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/mapgen"
	"github.com/wricardo/mcp-training/treasurehunt/game/steplog"
)

// huntServiceImpl implements the HuntService interface
type huntServiceImpl struct {
	sessions SessionManager
	maps     MapCatalog
	records  RecordStore
	mu       sync.RWMutex
}

// NewHuntService creates a new hunt service instance
func NewHuntService(sessions SessionManager, maps MapCatalog, records RecordStore) HuntService {
	return &huntServiceImpl{
		sessions: sessions,
		maps:     maps,
		records:  records,
	}
}

func toSessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		MapName:        sess.MapName,
		Grid:           sess.Grid.Clone(),
		Start:          sess.Start,
		LastSolve:      sess.LastSolve,
		LastRecord:     sess.LastRecord,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
	}
}

func checkStart(grid engine.Grid, start engine.Position) error {
	if !grid.InBounds(start) {
		return fmt.Errorf("%w: (%d,%d) outside %dx%d map",
			ErrInvalidStart, start.X, start.Y, grid.Rows(), grid.Cols())
	}
	return nil
}

// persist saves a session after a change; failures only cost durability
func (s *huntServiceImpl) persist(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		log.Printf("Warning: Failed to persist session %s: %v", sess.ID, err)
	}
}

// CreateSession creates a new hunt session over a stored map
func (s *huntServiceImpl) CreateSession(ctx context.Context, mapName string, start engine.Position) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var grid engine.Grid
	if mapName != "" {
		var err error
		grid, err = s.maps.LoadMap(mapName)
		if err != nil {
			return nil, fmt.Errorf("failed to load map %s: %w", mapName, err)
		}
	} else {
		mapName, grid = s.maps.GetDefault()
	}

	if err := checkStart(grid, start); err != nil {
		return nil, err
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", mapName, grid, start)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return toSessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *huntServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)

	return toSessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *huntServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, toSessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *huntServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// SetStart moves the session start and forgets the previous solve
func (s *huntServiceImpl) SetStart(ctx context.Context, sessionID string, start engine.Position) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkStart(sess.Grid, start); err != nil {
		return nil, err
	}

	sess.Start = start
	sess.LastSolve = nil
	s.sessions.UpdateLastAccessed(sessionID)
	s.persist(sess)

	return toSessionInfo(sess), nil
}

// Solve runs the search from the session start. The result grid carries
// the start mark on top of the path.
func (s *huntServiceImpl) Solve(ctx context.Context, sessionID string) (*SolveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	found, result := engine.Solve(sess.Grid, sess.Start)
	solve := &SolveResult{
		Found:      found,
		Start:      sess.Start,
		Result:     result.WithStart(sess.Start),
		PathLength: engine.PathLength(result),
	}

	sess.LastSolve = solve
	s.sessions.UpdateLastAccessed(sessionID)
	s.persist(sess)

	return solve, nil
}

// Trace runs the step-by-step search and returns up to opts.Limit events.
// The search always runs to completion so Found and Result are final.
func (s *huntServiceImpl) Trace(ctx context.Context, sessionID string, opts TraceOptions) (*TraceResult, error) {
	s.mu.RLock()
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	grid, start := sess.Grid, sess.Start
	s.mu.RUnlock()

	result := &TraceResult{Steps: []TraceStep{}}
	if opts.Limit > 0 {
		result.Limit = opts.Limit
	}

	tracer := engine.TracePositions(grid, start)
	if opts.Snapshots {
		tracer = engine.Trace(grid, start)
	}
	for ev := range tracer.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.TotalSteps++
		if ev.Kind == engine.StepVisit {
			result.Visits++
		}
		if opts.Limit > 0 && len(result.Steps) >= opts.Limit {
			result.Truncated = true
			continue
		}

		step := TraceStep{Idx: result.TotalSteps, Kind: ev.Kind, Pos: ev.Pos}
		if opts.Snapshots {
			snap := ev.Grid
			step.Grid = &snap
		}
		result.Steps = append(result.Steps, step)
	}

	result.Found = tracer.Found()
	result.Result = tracer.Result()
	s.sessions.UpdateLastAccessed(sessionID)

	return result, nil
}

// OpenTrace returns a fresh tracer over the session map for callers that
// pace events themselves
func (s *huntServiceImpl) OpenTrace(ctx context.Context, sessionID string) (*engine.Tracer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return engine.Trace(sess.Grid, sess.Start), nil
}

// Record traces the search and stores its visit order together with the
// final map. When no treasure is reachable the record is still written and
// a no-solution note is left next to it.
func (s *huntServiceImpl) Record(ctx context.Context, sessionID string) (*RecordResult, error) {
	s.mu.RLock()
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	grid, start, mapName := sess.Grid, sess.Start, sess.MapName
	s.mu.RUnlock()

	visits := engine.TracePositions(grid, start).VisitOrder()
	found, result := engine.Solve(grid, start)
	rec := steplog.NewRecord(visits, result, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := s.records.Save(mapName, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to save step log: %w", err)
	}

	out := &RecordResult{
		Found:      found,
		Start:      start,
		RecordName: name,
		Steps:      len(visits),
		Result:     rec.Grid,
	}

	if !found {
		errFile, err := s.records.WriteNoSolution(mapName, start)
		if err != nil {
			return nil, fmt.Errorf("failed to write no-solution file: %w", err)
		}
		out.ErrorFile = errFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The session may have been deleted while the search ran
	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.LastRecord = name
		s.sessions.UpdateLastAccessed(sessionID)
		s.persist(sess)
	}

	return out, nil
}

// Replay loads a stored step log
func (s *huntServiceImpl) Replay(ctx context.Context, name string) (*ReplayResult, error) {
	rec, err := s.records.Load(name)
	if err != nil {
		return nil, err
	}
	return &ReplayResult{
		Name:  steplog.RecordName(name),
		Steps: rec.Steps,
		Grid:  rec.Grid,
		Found: rec.Found(),
	}, nil
}

// ReadRecord returns the stored step log text
func (s *huntServiceImpl) ReadRecord(ctx context.Context, name string) ([]byte, error) {
	return s.records.ReadRaw(name)
}

// ListRecords returns stored step log names
func (s *huntServiceImpl) ListRecords(ctx context.Context) ([]string, error) {
	return s.records.List()
}

// DeleteRecord removes a stored step log
func (s *huntServiceImpl) DeleteRecord(ctx context.Context, name string) error {
	return s.records.Delete(name)
}

// ListMaps returns all available maps
func (s *huntServiceImpl) ListMaps(ctx context.Context) ([]*MapInfo, error) {
	return s.maps.ListMaps()
}

// LoadMap loads a specific map
func (s *huntServiceImpl) LoadMap(ctx context.Context, mapName string) (engine.Grid, error) {
	return s.maps.LoadMap(mapName)
}

// SaveMap saves a map
func (s *huntServiceImpl) SaveMap(ctx context.Context, mapName string, grid engine.Grid) error {
	if grid.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalidMap, engine.ErrEmptyGrid)
	}
	return s.maps.SaveMap(mapName, grid)
}

// GenerateMap creates a random map and stores it
func (s *huntServiceImpl) GenerateMap(ctx context.Context, req GenerateRequest) (*MapInfo, error) {
	opts := []mapgen.Option{mapgen.WithTreasure(!req.NoTreasure)}
	if req.Rows > 0 || req.Cols > 0 {
		rows, cols := req.Rows, req.Cols
		if rows == 0 {
			rows = mapgen.DefaultRows
		}
		if cols == 0 {
			cols = mapgen.DefaultCols
		}
		opts = append(opts, mapgen.WithSize(rows, cols))
	}
	if req.Density != nil {
		opts = append(opts, mapgen.WithDensity(*req.Density))
	}
	if req.Seed != nil {
		opts = append(opts, mapgen.WithSeed(*req.Seed))
	}

	grid, err := mapgen.Generate(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
	}

	name := req.Name
	if name == "" {
		name = mapgen.NewName()
	}
	if filepath.Ext(name) == "" {
		name += MapFileExt
	}
	if err := s.maps.SaveMap(name, grid); err != nil {
		return nil, err
	}

	return NewMapInfo(name, grid), nil
}
