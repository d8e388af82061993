// Package mapgen builds random treasure maps.
package mapgen

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

const (
	DefaultRows    = 10
	DefaultCols    = 10
	DefaultDensity = 0.15
)

var ErrInvalidOptions = errors.New("invalid generator options")

type options struct {
	rows, cols int
	density    float64
	seed       *uint64
	treasure   bool
}

// Option configures Generate
type Option func(*options)

// WithSize sets the grid dimensions
func WithSize(rows, cols int) Option {
	return func(o *options) {
		o.rows = rows
		o.cols = cols
	}
}

// WithDensity sets the probability that a cell becomes a wall
func WithDensity(density float64) Option {
	return func(o *options) {
		o.density = density
	}
}

// WithSeed makes generation deterministic
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// WithTreasure controls whether one treasure is placed on the map
func WithTreasure(place bool) Option {
	return func(o *options) {
		o.treasure = place
	}
}

// Generate returns a grid where each cell is independently a wall with the
// configured density. When a treasure is requested it overwrites one
// uniformly chosen cell.
func Generate(opts ...Option) (engine.Grid, error) {
	o := options{
		rows:     DefaultRows,
		cols:     DefaultCols,
		density:  DefaultDensity,
		treasure: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.rows < engine.MinGridSize || o.rows > engine.MaxGridSize ||
		o.cols < engine.MinGridSize || o.cols > engine.MaxGridSize {
		return engine.Grid{}, fmt.Errorf("%w: size %dx%d outside %d..%d",
			ErrInvalidOptions, o.rows, o.cols, engine.MinGridSize, engine.MaxGridSize)
	}
	if o.density < 0 || o.density > 1 {
		return engine.Grid{}, fmt.Errorf("%w: density %v outside [0,1]", ErrInvalidOptions, o.density)
	}

	var rng *rand.Rand
	if o.seed != nil {
		rng = rand.New(rand.NewPCG(*o.seed, *o.seed^0x9e3779b97f4a7c15))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	grid, err := engine.NewGrid(o.rows, o.cols, engine.Empty)
	if err != nil {
		return engine.Grid{}, err
	}
	for x := 0; x < o.rows; x++ {
		for y := 0; y < o.cols; y++ {
			if rng.Float64() < o.density {
				grid.SetCell(engine.Position{X: x, Y: y}, engine.Wall)
			}
		}
	}
	if o.treasure {
		p := engine.Position{X: rng.IntN(o.rows), Y: rng.IntN(o.cols)}
		grid.SetCell(p, engine.Treasure)
	}
	return grid, nil
}

// NewName returns a fresh map file name such as "random_1a2b3c4d.txt"
func NewName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "random_" + id[:8] + ".txt"
}
