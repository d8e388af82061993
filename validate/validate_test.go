package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

// writeMap writes content to a temporary .txt file and returns its path
func writeMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_map.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write map: %v", err)
	}
	return path
}

// hasError reports whether any message contains substr
func hasError(result ValidationResult, substr string) bool {
	for _, err := range result.Errors {
		if strings.Contains(err, substr) {
			return true
		}
	}
	return false
}

func TestValidateMap_ValidMap(t *testing.T) {
	path := writeMap(t, "..#T\n..#.\n....\n")

	result := validateMap(path)
	if !result.Valid {
		t.Errorf("Expected valid map, but got errors: %v", result.Errors)
	}

	if result.File != "test_map.txt" {
		t.Errorf("Expected file name test_map.txt, got %s", result.File)
	}

	if !hasError(result, "✓ Grid: 3x4") {
		t.Errorf("Expected grid summary, got %v", result.Errors)
	}
	if !hasError(result, "✓ Connectivity: 9/9 empty cells reach a treasure") {
		t.Errorf("Expected connectivity summary, got %v", result.Errors)
	}
}

func TestValidateMap_BlankLinesIgnored(t *testing.T) {
	path := writeMap(t, "\n...\n\n#T#\n...\n\n")

	result := validateMap(path)
	if !result.Valid {
		t.Errorf("Expected valid map, but got errors: %v", result.Errors)
	}
}

func TestValidateMap_MissingFile(t *testing.T) {
	result := validateMap("/non/existent/file.txt")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}
	if !hasError(result, "Failed to read file") {
		t.Error("Expected 'Failed to read file' error")
	}
}

func TestValidateMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "\n\n", "Map is empty"},
		{"jagged", "...\n#T\n...\n", "Inconsistent grid width at row 2"},
		{"bad symbol", "..X\n.T.\n", "Invalid character 'X' at position [0,2]"},
		{"solved path", "*.T\n", "Search mark '*'"},
		{"start mark", "@.T\n", "Search mark '@'"},
		{"no treasure", "...\n.#.\n", "Must have at least 1 treasure"},
		{"no empty cell", "#T#\n", "Must have at least 1 empty cell"},
		{"walled off", "..#\n###\n#T#\n", "Connectivity failure: none of 2 empty cells"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateMap(writeMap(t, tt.content))
			if result.Valid {
				t.Fatalf("Expected invalid map, got %v", result.Errors)
			}
			if !hasError(result, tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateConnectivity_PartiallyReachable(t *testing.T) {
	grid := engine.MustParseGrid(
		"..#.",
		"T.#.",
	)

	result := validateConnectivity(grid)
	if !result.Valid {
		t.Errorf("Expected valid connectivity, but got errors: %v", result.Errors)
	}
	if !hasError(result, "3/5 empty cells reach a treasure") {
		t.Errorf("Expected partial reachability summary, got %v", result.Errors)
	}
}

func TestValidateConnectivity_EmptyGrid(t *testing.T) {
	result := validateConnectivity(engine.Grid{})
	if result.Valid {
		t.Error("Expected invalid result for empty grid")
	}
	if !hasError(result, "Cannot validate connectivity: empty grid") {
		t.Error("Expected 'Cannot validate connectivity: empty grid' error")
	}
}

func TestRepoMapsAreValid(t *testing.T) {
	files, _ := filepath.Glob(filepath.Join("..", "maps", "*.txt"))
	if len(files) == 0 {
		t.Skip("Skipping test - maps directory not found")
	}

	for _, file := range files {
		if result := validateMap(file); !result.Valid {
			t.Errorf("%s: %v", result.File, result.Errors)
		}
	}
}
