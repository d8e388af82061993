package steplog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

const (
	// SolvedSuffix is appended to a map's base name to form its record file
	SolvedSuffix = "_Solved.txt"
	// NoSolutionSuffix names the file written when a search finds nothing
	NoSolutionSuffix = "_NoSolution.txt"
)

var (
	ErrRecordNotFound = errors.New("step log record not found")
	ErrInvalidName    = errors.New("invalid record name")
)

// Store keeps step log records as text files in a single directory
type Store struct {
	dir string
}

// NewStore creates the records directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create records directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory records are written to
func (s *Store) Dir() string {
	return s.dir
}

// RecordName maps a map file name such as "classic.txt" to "classic_Solved.txt".
// Names already carrying the suffix are returned unchanged.
func RecordName(mapName string) string {
	if strings.HasSuffix(mapName, SolvedSuffix) {
		return mapName
	}
	return baseName(mapName) + SolvedSuffix
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes rec for the given map and returns the record file name
func (s *Store) Save(mapName string, rec Record) (string, error) {
	name := RecordName(mapName)
	p, err := s.path(name)
	if err != nil {
		return "", err
	}

	data, err := Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write record file: %w", err)
	}
	return name, nil
}

// Load reads a record by record name or by the map name it was saved under
func (s *Store) Load(name string) (Record, error) {
	p, err := s.path(RecordName(name))
	if err != nil {
		return Record{}, err
	}

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, name)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()

	rec, err := Decode(f)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", name, err)
	}
	return rec, nil
}

// ReadRaw returns the encoded bytes of a record without parsing them
func (s *Store) ReadRaw(name string) ([]byte, error) {
	p, err := s.path(RecordName(name))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}
	return data, nil
}

// List returns the record file names in lexical order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), SolvedSuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a record
func (s *Store) Delete(name string) error {
	p, err := s.path(RecordName(name))
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, name)
		}
		return fmt.Errorf("failed to remove record file: %w", err)
	}
	return nil
}

// WriteNoSolution leaves a short note for a map whose search from start
// found no treasure. Any earlier record for the map is left untouched.
func (s *Store) WriteNoSolution(mapName string, start engine.Position) (string, error) {
	name := baseName(mapName) + NoSolutionSuffix
	p, err := s.path(name)
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Error: map has no solution starting at coordinate x=%d, y=%d\n", start.X, start.Y)
	if err := os.WriteFile(p, []byte(msg), 0644); err != nil {
		return "", fmt.Errorf("failed to write no-solution file: %w", err)
	}
	return name, nil
}
