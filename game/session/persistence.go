package session

import (
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions.
// The grid is stored with the session so later edits to the map file do not
// change an existing hunt.
type PersistedSessionData struct {
	ID             string               `json:"id"`
	MapName        string               `json:"map_name"`
	Grid           engine.Grid          `json:"grid"`
	Start          engine.Position      `json:"start"`
	LastSolve      *service.SolveResult `json:"last_solve,omitempty"`
	LastRecord     string               `json:"last_record,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
}
