package maps

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
)

// DefaultMapName is preferred as the default map when present
const DefaultMapName = "classic.txt"

var (
	ErrMapNotFound = service.ErrMapNotFound
	ErrInvalidMap  = service.ErrInvalidMap
	ErrInvalidName = errors.New("invalid map name")
)

// Manager handles map loading and caching
type Manager struct {
	mapsDir     string
	defaultName string
	defaultMap  engine.Grid
	maps        map[string]engine.Grid
	mu          sync.RWMutex
}

// NewManager creates a new map manager over an existing directory
func NewManager(mapsDir string) (*Manager, error) {
	if _, err := os.Stat(mapsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("maps directory does not exist: %s", mapsDir)
	}

	m := &Manager{
		mapsDir: mapsDir,
		maps:    make(map[string]engine.Grid),
	}

	m.loadDefaultMap()
	return m, nil
}

// Dir returns the directory maps are read from
func (m *Manager) Dir() string {
	return m.mapsDir
}

// fileName adds the map extension when name has none
func fileName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if filepath.Ext(name) == "" {
		name += service.MapFileExt
	}
	return name, nil
}

// ParseMap reads a map file body: one row per line, blank lines ignored
func ParseMap(data []byte) (engine.Grid, error) {
	var rows []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return engine.Grid{}, err
	}
	return engine.ParseGrid(rows)
}

// FormatMap renders a grid in map file form
func FormatMap(grid engine.Grid) []byte {
	return []byte(grid.String() + "\n")
}

// LoadMap loads a map by file name, with or without extension
func (m *Manager) LoadMap(name string) (engine.Grid, error) {
	filename, err := fileName(name)
	if err != nil {
		return engine.Grid{}, err
	}

	m.mu.RLock()
	// Check cache first
	if grid, exists := m.maps[filename]; exists {
		m.mu.RUnlock()
		return grid.Clone(), nil
	}
	m.mu.RUnlock()

	grid, err := m.readMap(filename)
	if err != nil {
		return engine.Grid{}, err
	}

	m.mu.Lock()
	m.maps[filename] = grid
	m.mu.Unlock()

	return grid.Clone(), nil
}

func (m *Manager) readMap(filename string) (engine.Grid, error) {
	data, err := os.ReadFile(filepath.Join(m.mapsDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return engine.Grid{}, fmt.Errorf("%w: %s", ErrMapNotFound, filename)
		}
		return engine.Grid{}, fmt.Errorf("failed to read map file: %w", err)
	}

	grid, err := ParseMap(data)
	if err != nil {
		return engine.Grid{}, fmt.Errorf("%w: %s: %w", ErrInvalidMap, filename, err)
	}
	return grid, nil
}

// ListMaps returns information about all readable maps, sorted by name
func (m *Manager) ListMaps() ([]*service.MapInfo, error) {
	entries, err := os.ReadDir(m.mapsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read maps directory: %w", err)
	}

	maps := make([]*service.MapInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != service.MapFileExt {
			continue
		}

		grid, err := m.LoadMap(entry.Name())
		if err != nil {
			// Skip invalid maps
			continue
		}
		maps = append(maps, service.NewMapInfo(entry.Name(), grid))
	}

	return maps, nil
}

// GetDefault returns the default map name and a copy of its grid
func (m *Manager) GetDefault() (string, engine.Grid) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName, m.defaultMap.Clone()
}

// SetDefault sets the default map by name
func (m *Manager) SetDefault(name string) error {
	grid, err := m.LoadMap(name)
	if err != nil {
		return err
	}
	filename, _ := fileName(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = filename
	m.defaultMap = grid
	return nil
}

// SaveMap writes a map to disk and caches it
func (m *Manager) SaveMap(name string, grid engine.Grid) error {
	if grid.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalidMap, engine.ErrEmptyGrid)
	}
	filename, err := fileName(name)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(m.mapsDir, filename), FormatMap(grid), 0644); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	m.mu.Lock()
	m.maps[filename] = grid.Clone()
	m.mu.Unlock()

	return nil
}

// RefreshCache drops every cached map and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.maps = make(map[string]engine.Grid)
	m.mu.Unlock()

	m.loadDefaultMap()
}

// invalidate drops one cached map, reloading the default if it changed
func (m *Manager) invalidate(filename string) {
	m.mu.Lock()
	delete(m.maps, filename)
	isDefault := filename == m.defaultName
	m.mu.Unlock()

	if isDefault {
		m.loadDefaultMap()
	}
}

// Watch invalidates cached maps when their files change on disk. The
// watcher is registered before Watch returns and stops when ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create map watcher: %w", err)
	}
	if err := watcher.Add(m.mapsDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch maps directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if filepath.Ext(name) != service.MapFileExt {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					m.invalidate(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Warning: map watcher error: %v", err)
			}
		}
	}()

	return nil
}

// loadDefaultMap picks classic.txt, else the first readable map, else a
// built-in fallback
func (m *Manager) loadDefaultMap() {
	name := DefaultMapName
	grid, err := m.LoadMap(name)
	if err != nil {
		name = ""
		maps, listErr := m.ListMaps()
		if listErr == nil && len(maps) > 0 {
			name = maps[0].Filename
			grid, err = m.LoadMap(name)
		}
		if name == "" || err != nil {
			name, grid = "default.txt", minimalMap()
		}
	}

	m.mu.Lock()
	m.defaultName = name
	m.defaultMap = grid
	m.mu.Unlock()
}

// minimalMap returns a small valid map with a reachable treasure
func minimalMap() engine.Grid {
	return engine.MustParseGrid(
		".....",
		".###.",
		"...#T",
		".#...",
		".....",
	)
}
