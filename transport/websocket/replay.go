package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/steplog"
)

// DefaultStepDelay paces replays when no delay is configured
const DefaultStepDelay = 150 * time.Millisecond

// Publisher delivers events to the clients of a channel. *Hub implements it.
type Publisher interface {
	BroadcastEvent(sessionID string, event string, data any)
}

// ReplayStart is the payload of EventReplayStart
type ReplayStart struct {
	Record string      `json:"record"`
	Steps  int         `json:"steps"`
	Grid   engine.Grid `json:"grid"`
}

// ReplayStep is the payload of EventReplayStep
type ReplayStep struct {
	Record string          `json:"record"`
	Index  int             `json:"index"`
	Pos    engine.Position `json:"pos"`
	Grid   engine.Grid     `json:"grid"`
}

// ReplayDone is the payload of EventReplayDone
type ReplayDone struct {
	Record string      `json:"record"`
	Found  bool        `json:"found"`
	Grid   engine.Grid `json:"grid"`
}

type replayRun struct {
	id     uint64
	cancel context.CancelFunc
}

// Replayer animates stored step logs onto hub channels with a fixed delay
// between steps. At most one replay runs per channel; starting a new one
// cancels the previous. StopAll ends every replay, including ones started
// from contexts that are never cancelled.
type Replayer struct {
	pub   Publisher
	delay time.Duration

	root    context.Context
	stopAll context.CancelFunc

	mu      sync.Mutex
	nextID  uint64
	running map[string]replayRun
	wg      sync.WaitGroup
}

// NewReplayer creates a replayer. A negative delay is treated as zero.
func NewReplayer(pub Publisher, delay time.Duration) *Replayer {
	if delay < 0 {
		delay = 0
	}
	root, stopAll := context.WithCancel(context.Background())
	return &Replayer{
		pub:     pub,
		delay:   delay,
		root:    root,
		stopAll: stopAll,
		running: make(map[string]replayRun),
	}
}

// Delay returns the pause between steps
func (r *Replayer) Delay() time.Duration { return r.delay }

// Start runs a replay in the background. The replay stops early when ctx is
// cancelled, when Stop or StopAll is called, or when another replay is
// started on the same channel. After StopAll, Start returns without
// publishing anything.
func (r *Replayer) Start(ctx context.Context, channel, name string, rec steplog.Record) {
	r.mu.Lock()
	if r.root.Err() != nil {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(r.root, cancel)

	if prev, ok := r.running[channel]; ok {
		prev.cancel()
	}
	r.nextID++
	id := r.nextID
	r.running[channel] = replayRun{id: id, cancel: cancel}
	// Registered under the lock so StopAll followed by Wait sees this run
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		defer unlink()
		r.Run(runCtx, channel, name, rec)

		r.mu.Lock()
		if cur, ok := r.running[channel]; ok && cur.id == id {
			delete(r.running, channel)
		}
		r.mu.Unlock()
	}()
}

// Stop cancels the replay running on channel. It reports whether one was
// running.
func (r *Replayer) Stop(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.running[channel]
	if ok {
		run.cancel()
		delete(r.running, channel)
	}
	return ok
}

// Active reports whether a replay is running on channel
func (r *Replayer) Active(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[channel]
	return ok
}

// StopAll cancels every running replay and refuses new ones. Call it before
// Wait when shutting down.
func (r *Replayer) StopAll() {
	r.stopAll()

	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.running)
}

// Wait blocks until every replay started with Start has returned
func (r *Replayer) Wait() {
	r.wg.Wait()
}

// Run replays rec on channel and blocks until the last frame is published
// or ctx is done. A cancelled replay publishes no done event and returns
// ctx.Err().
func (r *Replayer) Run(ctx context.Context, channel, name string, rec steplog.Record) error {
	r.pub.BroadcastEvent(channel, EventReplayStart, ReplayStart{
		Record: name,
		Steps:  len(rec.Steps),
		Grid:   rec.Base(),
	})

	var timer *time.Timer
	if r.delay > 0 {
		timer = time.NewTimer(r.delay)
		defer timer.Stop()
	}

	for frame := range rec.Frames() {
		if err := r.pause(ctx, timer); err != nil {
			return err
		}
		r.pub.BroadcastEvent(channel, EventReplayStep, ReplayStep{
			Record: name,
			Index:  frame.Index,
			Pos:    frame.Pos,
			Grid:   frame.Grid,
		})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	r.pub.BroadcastEvent(channel, EventReplayDone, ReplayDone{
		Record: name,
		Found:  rec.Found(),
		Grid:   rec.Grid.Clone(),
	})
	return nil
}

func (r *Replayer) pause(ctx context.Context, timer *time.Timer) error {
	if timer == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		timer.Reset(r.delay)
		return nil
	}
}
