package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/session"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}

	expectedAppName := "Treasure Hunt Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

// useDirs points the directory flags at temporary directories for one test
func useDirs(t *testing.T, maps string) {
	t.Helper()

	origMaps, origRecords, origSessions, origWatch := *mapsDir, *recordsDir, *sessionsDir, *watchMaps
	t.Cleanup(func() {
		*mapsDir, *recordsDir, *sessionsDir, *watchMaps = origMaps, origRecords, origSessions, origWatch
	})

	root := t.TempDir()
	*mapsDir = maps
	*recordsDir = filepath.Join(root, "records")
	*sessionsDir = filepath.Join(root, "sessions")
	*watchMaps = false
}

func TestInitializeServices(t *testing.T) {
	mapsPath := t.TempDir()
	if err := os.WriteFile(filepath.Join(mapsPath, "classic.txt"), []byte("...\n#T#\n...\n"), 0644); err != nil {
		t.Fatal(err)
	}
	useDirs(t, mapsPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	huntService, sessions, err := initializeServices(ctx)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	if huntService == nil || sessions == nil {
		t.Fatal("Expected hunt service and session manager to be initialized")
	}

	info, err := huntService.CreateSession(ctx, "classic", engine.Position{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	result, err := huntService.Solve(ctx, info.ID)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !result.Found {
		t.Error("Expected the classic map to be solvable from (0,0)")
	}

	sessionFile := filepath.Join(*sessionsDir, info.ID+".json")
	if _, err := os.Stat(sessionFile); err != nil {
		t.Errorf("Expected session file to be written: %v", err)
	}

	// Shutdown writes sessions back even if their files went missing
	if err := os.Remove(sessionFile); err != nil {
		t.Fatal(err)
	}
	flushSessions(sessions)
	if _, err := os.Stat(sessionFile); err != nil {
		t.Errorf("Expected flush to rewrite the session file: %v", err)
	}
}

func TestInitializeServices_RepoMaps(t *testing.T) {
	if _, err := os.Stat("maps"); os.IsNotExist(err) {
		t.Skip("Skipping test - maps directory not found")
	}
	useDirs(t, "maps")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	huntService, _, err := initializeServices(ctx)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	infos, err := huntService.ListMaps(ctx)
	if err != nil {
		t.Fatalf("ListMaps failed: %v", err)
	}
	if len(infos) == 0 {
		t.Error("Expected at least one map in ./maps")
	}
}

func TestInitializeServices_InvalidMapsDir(t *testing.T) {
	useDirs(t, "/non/existent/path")

	_, _, err := initializeServices(context.Background())
	if err == nil {
		t.Error("Expected error for non-existent maps directory")
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}

	if *host == "" {
		t.Error("Host should have a default value")
	}

	if *mapsDir == "" || *recordsDir == "" || *sessionsDir == "" {
		t.Error("Directory flags should have default values")
	}

	if *stepDelay < 0 {
		t.Errorf("Step delay should not be negative: %v", *stepDelay)
	}
}

// newEnvFlagSet mirrors the directory and delay flags on a private FlagSet
func newEnvFlagSet() (*flag.FlagSet, *string, *time.Duration) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	maps := fs.String("maps-dir", "maps", "")
	fs.String("records-dir", "records", "")
	fs.String("sessions-dir", "sessions", "")
	delay := fs.Duration("step-delay", 150*time.Millisecond, "")
	return fs, maps, delay
}

func TestApplyEnvDefaults(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		mapsEnv   string
		delayEnv  string
		wantMaps  string
		wantDelay time.Duration
	}{
		{"no env", nil, "", "", "maps", 150 * time.Millisecond},
		{"env used", nil, "/srv/maps", "2s", "/srv/maps", 2 * time.Second},
		{"plain milliseconds", nil, "", "40", "maps", 40 * time.Millisecond},
		{"invalid delay ignored", nil, "", "soon", "maps", 150 * time.Millisecond},
		{"flag wins over env", []string{"-maps-dir", "cli", "-step-delay", "1s"}, "/srv/maps", "2s", "cli", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAPS_DIR", tt.mapsEnv)
			t.Setenv("STEP_DELAY", tt.delayEnv)

			fs, maps, delay := newEnvFlagSet()
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			applyEnvDefaults(fs)

			if *maps != tt.wantMaps {
				t.Errorf("maps-dir = %q, want %q", *maps, tt.wantMaps)
			}
			if *delay != tt.wantDelay {
				t.Errorf("step-delay = %v, want %v", *delay, tt.wantDelay)
			}
		})
	}
}

func TestPruneOrphanedSessions(t *testing.T) {
	dir := t.TempDir()
	persistence, err := session.NewFilePersistence(dir)
	if err != nil {
		t.Fatal(err)
	}
	manager := session.NewManagerWithPersistence(persistence)

	grid, err := engine.ParseGrid([]string{"...", "#T#", "..."})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"aa01", "bb02"} {
		if _, err := manager.Create(id, "classic", grid, engine.Position{}); err != nil {
			t.Fatal(err)
		}
	}

	if n := pruneOrphanedSessions(manager, persistence); n != 0 {
		t.Errorf("Expected nothing pruned, got %d", n)
	}

	if err := os.Remove(filepath.Join(dir, "aa01.json")); err != nil {
		t.Fatal(err)
	}

	if n := pruneOrphanedSessions(manager, persistence); n != 1 {
		t.Errorf("Expected 1 pruned session, got %d", n)
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session left, got %d", manager.Count())
	}
	if _, err := manager.Get("bb02"); err != nil {
		t.Errorf("Expected bb02 to survive: %v", err)
	}

	if n := pruneOrphanedSessions(manager, nil); n != 0 {
		t.Errorf("Expected nil persistence to prune nothing, got %d", n)
	}
}
