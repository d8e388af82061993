package session

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
)

func createTestGrid() engine.Grid {
	return engine.MustParseGrid(
		"..#..",
		".#T#.",
		".....",
	)
}

func createSession(m *Manager, id string) (*service.Session, error) {
	return m.Create(id, "test.txt", createTestGrid(), engine.Position{X: 0, Y: 0})
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := createSession(manager, "test-session")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.MapName != "test.txt" {
			t.Errorf("Expected map name 'test.txt', got '%s'", session.MapName)
		}
		if !session.Grid.Equal(createTestGrid()) {
			t.Error("Expected session grid to match the map")
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := createSession(manager, "")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID == "" {
			t.Error("Expected auto-generated session ID")
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character session ID, got %d characters", len(session.ID))
		}
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := createSession(manager, "test-session")
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := createSession(manager, "TEST-SESSION")
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists for case variant, got %v", err)
		}
	})

	t.Run("empty grid", func(t *testing.T) {
		_, err := manager.Create("invalid-test", "test.txt", engine.Grid{}, engine.Position{})
		if !errors.Is(err, service.ErrInvalidMap) {
			t.Errorf("Expected ErrInvalidMap for empty grid, got %v", err)
		}
	})

	t.Run("invalid session ID", func(t *testing.T) {
		_, err := createSession(manager, "../escape")
		if !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()

	// Create test session
	created, _ := createSession(manager, "get-test")

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("get-test")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session.ID != created.ID {
			t.Errorf("Expected session ID '%s', got '%s'", created.ID, session.ID)
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("GET-TEST")
		if err != nil {
			t.Fatalf("Failed to get session with different case: %v", err)
		}
		if session.ID != created.ID {
			t.Errorf("Expected same session regardless of case")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("non-existent")
		if err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()

	// Create test session
	createSession(manager, "delete-test")

	t.Run("delete existing session", func(t *testing.T) {
		err := manager.Delete("delete-test")
		if err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}

		// Verify session is deleted
		_, err = manager.Get("delete-test")
		if err != ErrSessionNotFound {
			t.Error("Expected session to be deleted")
		}
	})

	t.Run("delete non-existent session", func(t *testing.T) {
		err := manager.Delete("non-existent")
		if err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("case-insensitive delete", func(t *testing.T) {
		createSession(manager, "case-test")
		err := manager.Delete("CASE-TEST")
		if err != nil {
			t.Fatalf("Failed to delete with different case: %v", err)
		}
		_, err = manager.Get("case-test")
		if err != ErrSessionNotFound {
			t.Error("Expected session to be deleted regardless of case")
		}
	})
}

func TestManager_List(t *testing.T) {
	manager := NewManager()

	// Create multiple sessions
	session1, _ := createSession(manager, "list-1")
	session2, _ := createSession(manager, "list-2")
	session3, _ := createSession(manager, "list-3")

	sessions := manager.List()

	if len(sessions) < 3 {
		t.Errorf("Expected at least 3 sessions, got %d", len(sessions))
	}

	// Verify all created sessions are in the list
	foundSessions := make(map[string]bool)
	for _, s := range sessions {
		foundSessions[s.ID] = true
	}

	if !foundSessions[session1.ID] {
		t.Error("Session 1 not found in list")
	}
	if !foundSessions[session2.ID] {
		t.Error("Session 2 not found in list")
	}
	if !foundSessions[session3.ID] {
		t.Error("Session 3 not found in list")
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()

	// Create sessions with different last access times
	active, _ := createSession(manager, "active")
	expired, _ := createSession(manager, "expired")

	// Simulate expired session
	expired.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	active.LastAccessedAt = time.Now()

	// Clean up sessions older than 1 hour
	deleted := manager.CleanupExpiredSessions(1 * time.Hour)

	if deleted != 1 {
		t.Errorf("Expected 1 session to be deleted, got %d", deleted)
	}

	// Verify expired session is deleted
	_, err := manager.Get("expired")
	if err != ErrSessionNotFound {
		t.Error("Expected expired session to be deleted")
	}

	// Verify active session still exists
	_, err = manager.Get("active")
	if err != nil {
		t.Error("Expected active session to still exist")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()

	session, _ := createSession(manager, "access-test")
	originalTime := session.LastAccessedAt

	// Wait a bit to ensure time difference
	time.Sleep(10 * time.Millisecond)

	err := manager.UpdateLastAccessed("access-test")
	if err != nil {
		t.Fatalf("Failed to update last accessed: %v", err)
	}

	// Get session again to verify update
	updated, _ := manager.Get("access-test")
	if !updated.LastAccessedAt.After(originalTime) {
		t.Error("Expected LastAccessedAt to be updated")
	}
}

func TestManager_CaseInsensitiveIDs(t *testing.T) {
	manager := NewManager()

	if _, err := createSession(manager, "Mixed-Case"); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	for _, id := range []string{"Mixed-Case", "mixed-case", "MIXED-CASE"} {
		session, err := manager.Get(id)
		if err != nil {
			t.Errorf("Get(%q) failed: %v", id, err)
			continue
		}
		if session.ID != "Mixed-Case" {
			t.Errorf("Get(%q) returned ID %q", id, session.ID)
		}
	}

	if _, err := createSession(manager, "MIXED-case"); err != ErrSessionAlreadyExists {
		t.Errorf("Expected ErrSessionAlreadyExists for a differently cased ID, got %v", err)
	}
	if err := manager.DeleteFromMemory("mixed-CASE"); err != nil {
		t.Errorf("DeleteFromMemory failed: %v", err)
	}
	if manager.Count() != 0 {
		t.Errorf("Expected no sessions left, got %d", manager.Count())
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()

	// Test concurrent session creation
	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sessionID := strings.ToLower(generateRandomID())
			_, err := createSession(manager, sessionID)
			if err != nil && err != ErrSessionAlreadyExists {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	// Check for unexpected errors
	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}

	// Verify sessions were created
	sessions := manager.List()
	if len(sessions) == 0 {
		t.Error("Expected sessions to be created")
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	grid := createTestGrid()

	session1, _ := manager.Create("iso-1", "test.txt", grid, engine.Position{X: 0, Y: 0})
	session2, _ := manager.Create("iso-2", "test.txt", grid, engine.Position{X: 2, Y: 4})

	// Editing one session's grid must not leak into the other or the source
	session1.Grid.SetCell(engine.Position{X: 0, Y: 0}, engine.Wall)

	if c, _ := session2.Grid.At(engine.Position{X: 0, Y: 0}); c != engine.Empty {
		t.Error("Session 2 should not be affected by session 1 edits")
	}
	if c, _ := grid.At(engine.Position{X: 0, Y: 0}); c != engine.Empty {
		t.Error("Source grid should not be affected by session edits")
	}
	if session1.Start == session2.Start {
		t.Error("Sessions should keep independent start positions")
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()

	generatedIDs := make(map[string]bool)

	// Generate multiple sessions and check for uniqueness
	for i := 0; i < 50; i++ {
		session, err := createSession(manager, "")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if generatedIDs[session.ID] {
			t.Errorf("Duplicate session ID generated: %s", session.ID)
		}
		generatedIDs[session.ID] = true

		// Verify ID format (4 hex characters)
		if _, err := hex.DecodeString(session.ID); err != nil || len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got %d", len(session.ID))
		}
	}
}

// Helper function to generate random ID for testing
func generateRandomID() string {
	return "test-" + time.Now().Format("150405")
}
