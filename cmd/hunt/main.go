// Command hunt runs treasure searches offline against the maps and step log
// directories used by the server, without starting it.
//
//	hunt maps
//	hunt solve --x 0 --y 0 classic
//	hunt record --x 1 --y 0 maze
//	hunt replay --delay 50ms maze
//	hunt generate --rows 12 --cols 20 --density 0.25 --seed 7
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/maps"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
	"github.com/wricardo/mcp-training/treasurehunt/game/session"
	"github.com/wricardo/mcp-training/treasurehunt/game/steplog"
)

const defaultStepDelay = 150 * time.Millisecond

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree writing its output to out
func newApp(out io.Writer) *cli.Command {
	startFlags := []cli.Flag{
		&cli.IntFlag{Name: "x", Usage: "start row"},
		&cli.IntFlag{Name: "y", Usage: "start column"},
	}

	return &cli.Command{
		Name:    "hunt",
		Usage:   "search treasure maps and manage step logs",
		Writer:  out,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "maps-dir",
				Value:   "maps",
				Usage:   "directory containing map files",
				Sources: cli.EnvVars("MAPS_DIR"),
			},
			&cli.StringFlag{
				Name:    "records-dir",
				Value:   "records",
				Usage:   "directory for step logs",
				Sources: cli.EnvVars("RECORDS_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "maps",
				Usage:  "list available maps",
				Action: listMaps,
			},
			{
				Name:      "solve",
				Usage:     "search a map and print the marked path",
				ArgsUsage: "<map>",
				Flags:     startFlags,
				Action:    solve,
			},
			{
				Name:      "record",
				Usage:     "search a map and store its step log",
				ArgsUsage: "<map>",
				Flags:     startFlags,
				Action:    record,
			},
			{
				Name:   "records",
				Usage:  "list stored step logs",
				Action: listRecords,
			},
			{
				Name:      "replay",
				Usage:     "animate a stored step log in the terminal",
				ArgsUsage: "<record>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "delay",
						Value:   defaultStepDelay,
						Usage:   "pause between frames",
						Sources: cli.EnvVars("STEP_DELAY"),
					},
					&cli.BoolFlag{Name: "final", Usage: "print only the last frame"},
				},
				Action: replay,
			},
			{
				Name:  "generate",
				Usage: "generate and store a random map",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "map name (random when empty)"},
					&cli.IntFlag{Name: "rows", Usage: "number of rows"},
					&cli.IntFlag{Name: "cols", Usage: "number of columns"},
					&cli.FloatFlag{Name: "density", Value: -1, Usage: "wall probability in [0,1]"},
					&cli.IntFlag{Name: "seed", Value: -1, Usage: "random seed (random when negative)"},
					&cli.BoolFlag{Name: "no-treasure", Usage: "do not place a treasure"},
				},
				Action: generate,
			},
		},
	}
}

// openService wires an in-memory hunt service over the configured directories
func openService(cmd *cli.Command) (service.HuntService, error) {
	mapManager, err := maps.NewManager(cmd.String("maps-dir"))
	if err != nil {
		return nil, err
	}
	records, err := steplog.NewStore(cmd.String("records-dir"))
	if err != nil {
		return nil, err
	}
	return service.NewHuntService(session.NewManager(), mapManager, records), nil
}

// startSession opens a session on the map named by the first argument
func startSession(ctx context.Context, cmd *cli.Command) (service.HuntService, *service.SessionInfo, error) {
	if cmd.NArg() < 1 {
		return nil, nil, fmt.Errorf("missing map name")
	}
	svc, err := openService(cmd)
	if err != nil {
		return nil, nil, err
	}
	start := engine.Position{X: int(cmd.Int("x")), Y: int(cmd.Int("y"))}
	info, err := svc.CreateSession(ctx, cmd.Args().First(), start)
	if err != nil {
		return nil, nil, err
	}
	return svc, info, nil
}

func listMaps(ctx context.Context, cmd *cli.Command) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	infos, err := svc.ListMaps(ctx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for _, m := range infos {
		fmt.Fprintf(w, "%-20s %3dx%-3d treasures=%d walls=%d\n", m.MapID, m.Rows, m.Cols, m.Treasures, m.Walls)
	}
	return nil
}

func solve(ctx context.Context, cmd *cli.Command) error {
	svc, info, err := startSession(ctx, cmd)
	if err != nil {
		return err
	}
	res, err := svc.Solve(ctx, info.ID)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if !res.Found {
		fmt.Fprintf(w, "No treasure reachable from (%d, %d)\n", res.Start.X, res.Start.Y)
		fmt.Fprintln(w, info.Grid.WithStart(res.Start).String())
		return nil
	}
	fmt.Fprintf(w, "Treasure found: path of %d cells from (%d, %d)\n", res.PathLength, res.Start.X, res.Start.Y)
	fmt.Fprintln(w, res.Result.String())
	return nil
}

func record(ctx context.Context, cmd *cli.Command) error {
	svc, info, err := startSession(ctx, cmd)
	if err != nil {
		return err
	}
	res, err := svc.Record(ctx, info.ID)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Stored %s (%d steps, found=%t)\n", res.RecordName, res.Steps, res.Found)
	if res.ErrorFile != "" {
		fmt.Fprintf(w, "No solution written to %s\n", res.ErrorFile)
	}
	return nil
}

func listRecords(ctx context.Context, cmd *cli.Command) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	names, err := svc.ListRecords(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.Root().Writer, name)
	}
	return nil
}

func replay(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("missing record name")
	}
	svc, err := openService(cmd)
	if err != nil {
		return err
	}
	res, err := svc.Replay(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	rec := steplog.Record{Steps: res.Steps, Grid: res.Grid}
	delay := cmd.Duration("delay")
	final := cmd.Bool("final")

	fmt.Fprintf(w, "Replaying %s (%d steps)\n", res.Name, len(res.Steps))
	if final {
		fmt.Fprintln(w, res.Grid.String())
	} else {
		fmt.Fprintln(w, rec.Base().String())
		for frame := range rec.Frames() {
			if delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			fmt.Fprintf(w, "\nstep %d (%d, %d)\n", frame.Index+1, frame.Pos.X, frame.Pos.Y)
			fmt.Fprintln(w, frame.Grid.String())
		}
	}

	if res.Found {
		fmt.Fprintln(w, "Treasure found")
	} else {
		fmt.Fprintln(w, "No treasure reachable")
	}
	return nil
}

func generate(ctx context.Context, cmd *cli.Command) error {
	svc, err := openService(cmd)
	if err != nil {
		return err
	}

	req := service.GenerateRequest{
		Name:       cmd.String("name"),
		Rows:       int(cmd.Int("rows")),
		Cols:       int(cmd.Int("cols")),
		NoTreasure: cmd.Bool("no-treasure"),
	}
	if d := float64(cmd.Float("density")); d >= 0 {
		req.Density = &d
	}
	if s := int64(cmd.Int("seed")); s >= 0 {
		seed := uint64(s)
		req.Seed = &seed
	}

	info, err := svc.GenerateMap(ctx, req)
	if err != nil {
		return err
	}
	grid, err := svc.LoadMap(ctx, info.Filename)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Generated %s (%dx%d, treasures=%d, walls=%d)\n", info.Filename, info.Rows, info.Cols, info.Treasures, info.Walls)
	fmt.Fprintln(w, grid.String())
	return nil
}
