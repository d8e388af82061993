// Command validate provides a small CLI that validates treasure map files
// (*.txt) in the ../maps directory, or the directory given as the first
// argument. It checks:
//   - Grid consistency (all rows the same width) and allowed characters (. # T)
//   - Presence of at least one treasure (T) and one empty cell (.)
//   - Connectivity: at least one empty cell has a 4-directional path to a treasure
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// readRows returns the non-blank lines of a map file, trimmed
func readRows(data []byte) []string {
	var rows []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			rows = append(rows, line)
		}
	}
	return rows
}

// validateMap loads and validates a single map file. It performs structural
// checks, symbol validation and reachability analysis for treasures.
func validateMap(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	layout := readRows(data)
	if len(layout) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "Map is empty")
		return result
	}

	gridWidth := -1
	treasureCount := 0
	emptyCount := 0
	wallCount := 0

	for i, row := range layout {
		if gridWidth == -1 {
			gridWidth = len(row)
		} else if len(row) != gridWidth {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Inconsistent grid width at row %d: expected %d, got %d", i+1, gridWidth, len(row)))
		}

		for j := 0; j < len(row); j++ {
			switch engine.Cell(row[j]) {
			case engine.Empty:
				emptyCount++
			case engine.Wall:
				wallCount++
			case engine.Treasure:
				treasureCount++
			case engine.PathMark, engine.StartMark:
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("Search mark '%c' at position [%d,%d] (maps must not contain solved paths)", row[j], i, j))
			default:
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("Invalid character '%c' at position [%d,%d]", row[j], i, j))
			}
		}
	}

	if treasureCount == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "Must have at least 1 treasure (T)")
	}

	if emptyCount == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "Must have at least 1 empty cell (.) to start from")
	}

	if result.Valid {
		grid, err := engine.ParseGrid(layout)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid grid: %v", err))
			return result
		}

		reach := validateConnectivity(grid)
		if !reach.Valid {
			result.Valid = false
		}
		result.Errors = append(result.Errors, reach.Errors...)
	}

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", len(layout), gridWidth))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Treasures: %d", treasureCount))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Walls: %d", wallCount))
	}

	return result
}

// validateConnectivity requires at least one empty cell with a path to a
// treasure, and reports how many empty cells can start a successful search.
func validateConnectivity(grid engine.Grid) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	if grid.IsEmpty() {
		result.Valid = false
		result.Errors = append(result.Errors, "Cannot validate connectivity: empty grid")
		return result
	}

	reach := engine.CanReachTreasure(grid)

	empty := grid.FindCells(engine.Empty)
	reachable := 0
	for _, p := range empty {
		if reach[p.X][p.Y] {
			reachable++
		}
	}

	if reachable == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Connectivity failure: none of %d empty cells can reach a treasure", len(empty)))
		return result
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Connectivity: %d/%d empty cells reach a treasure", reachable, len(empty)))
	return result
}

// main scans the maps directory for *.txt files and validates each one,
// printing a concise report and exiting with non-zero status if any are
// invalid.
func main() {
	mapsDir := "../maps"
	if len(os.Args) > 1 {
		mapsDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(mapsDir, "*.txt"))
	if err != nil {
		fmt.Printf("Error finding map files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No map files found in %s\n", mapsDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateMap(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All maps are valid!")
	} else {
		fmt.Println("❌ Some maps have errors")
		os.Exit(1)
	}
}
