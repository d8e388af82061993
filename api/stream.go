package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

const (
	sseHeartbeat = 30 * time.Second

	// maxStreamDelay caps the ?delay_ms override
	maxStreamDelay = 5 * time.Second
)

// streamEvent is the data payload of one SSE message
type streamEvent struct {
	Idx   int             `json:"idx"`
	Kind  engine.StepKind `json:"kind"`
	Pos   engine.Position `json:"pos"`
	Grid  *engine.Grid    `json:"grid,omitempty"`
	Found *bool           `json:"found,omitempty"`
}

// streamDelay is the pause between events: ?delay_ms when given, else the
// replayer's step delay.
func (s *Server) streamDelay(r *http.Request) (time.Duration, error) {
	if v := r.URL.Query().Get("delay_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return 0, errors.New("delay_ms must be a non-negative integer")
		}
		return min(time.Duration(ms)*time.Millisecond, maxStreamDelay), nil
	}
	if s.replayer != nil {
		return s.replayer.Delay(), nil
	}
	return 0, nil
}

// handleTraceStream runs a fresh traced search and streams every event as a
// Server-Sent Event named after its kind. The done event carries the found
// flag and the final grid. Closing the connection abandons the search.
func (s *Server) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	delay, err := s.streamDelay(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	snapshots, _ := strconv.ParseBool(r.URL.Query().Get("snapshots"))

	tracer, err := s.service.OpenTrace(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	idx := 0
	for ev := range tracer.All() {
		if idx > 0 && delay > 0 {
			timer := time.NewTimer(delay)
		wait:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					log.Printf("[STREAM] session=%s client gone after %d events", sessionID, idx)
					return
				case <-heartbeat.C:
					fmt.Fprintf(w, ": heartbeat\n\n")
					flusher.Flush()
				case <-timer.C:
					break wait
				}
			}
		} else if ctx.Err() != nil {
			return
		}

		out := streamEvent{Idx: idx, Kind: ev.Kind, Pos: ev.Pos}
		if snapshots || ev.Kind == engine.StepDone {
			g := ev.Grid
			out.Grid = &g
		}
		if ev.Kind == engine.StepDone {
			found := ev.Found
			out.Found = &found
		}

		data, err := json.Marshal(out)
		if err != nil {
			log.Printf("Failed to marshal trace event: %v", err)
			return
		}
		fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", idx, ev.Kind, data)
		flusher.Flush()
		idx++
	}

	tracesTotal.WithLabelValues("stream").Inc()
	traceEvents.Observe(float64(idx))
}
