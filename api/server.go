package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/maps"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
	"github.com/wricardo/mcp-training/treasurehunt/game/steplog"
	"github.com/wricardo/mcp-training/treasurehunt/transport/websocket"
)

// maxBodySize bounds request bodies; map uploads are the largest payload.
const maxBodySize = 1 << 20

// Server represents the REST API server
type Server struct {
	service  service.HuntService
	hub      *websocket.Hub
	replayer *websocket.Replayer
	router   *mux.Router
}

// NewServer creates a new API server. hub and replayer may be nil, which
// disables WebSocket broadcasting and replays.
func NewServer(huntService service.HuntService, hub *websocket.Hub, replayer *websocket.Replayer) *Server {
	s := &Server{
		service:  huntService,
		hub:      hub,
		replayer: replayer,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(metricsMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()

	// Maps (generate must be registered before {name})
	api.HandleFunc("/maps", s.handleListMaps).Methods("GET")
	api.HandleFunc("/maps/generate", s.handleGenerateMap).Methods("POST")
	api.HandleFunc("/maps/{name}", s.handleGetMap).Methods("GET")
	api.HandleFunc("/maps/{name}", s.handleSaveMap).Methods("PUT")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/start", s.handleSetStart).Methods("PUT")

	// Search
	api.HandleFunc("/sessions/{id}/solve", s.handleSolve).Methods("POST")
	api.HandleFunc("/sessions/{id}/trace", s.handleTrace).Methods("GET")
	api.HandleFunc("/sessions/{id}/trace/stream", s.handleTraceStream).Methods("GET")
	api.HandleFunc("/sessions/{id}/record", s.handleRecord).Methods("POST")

	// Step logs
	api.HandleFunc("/records", s.handleListRecords).Methods("GET")
	api.HandleFunc("/records/{name}", s.handleGetRecord).Methods("GET")
	api.HandleFunc("/records/{name}", s.handleDeleteRecord).Methods("DELETE")
	api.HandleFunc("/records/{name}/replay", s.handleReplay).Methods("POST")
	api.HandleFunc("/records/{name}/replay", s.handleStopReplay).Methods("DELETE")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message, "code": status})
}

// respondServiceError maps service and storage errors onto status codes
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrMapNotFound),
		errors.Is(err, steplog.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, steplog.ErrMalformedRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidStart),
		errors.Is(err, service.ErrInvalidMap),
		errors.Is(err, steplog.ErrInvalidName),
		errors.Is(err, maps.ErrInvalidName),
		errors.Is(err, engine.ErrInconsistentGrid),
		errors.Is(err, engine.ErrEmptyGrid):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) broadcast(sessionID, event string, data any) {
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, event, data)
	}
}

// Map Handlers

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.ListMaps(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	grid, err := s.service.LoadMap(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(maps.FormatMap(grid))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"name": name,
		"info": service.NewMapInfo(name, grid),
		"grid": grid,
	})
}

// handleSaveMap accepts either {"grid": [...rows]} or a text/plain map body
func (s *Server) handleSaveMap(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var grid engine.Grid
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		grid, err = maps.ParseMap(data)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var req struct {
			Grid engine.Grid `json:"grid"`
		}
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
		grid = req.Grid
	}

	if err := s.service.SaveMap(r.Context(), name, grid); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, service.NewMapInfo(name, grid))
}

func (s *Server) handleGenerateMap(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.GenerateMap(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Printf("[GENERATE] map=%s size=%dx%d treasures=%d walls=%d",
		info.Filename, info.Rows, info.Cols, info.Treasures, info.Walls)

	respondJSON(w, http.StatusCreated, info)
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MapID string           `json:"map_id,omitempty"`
		Start *engine.Position `json:"start,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var start engine.Position
	if req.Start != nil {
		start = *req.Start
	}

	info, err := s.service.CreateSession(r.Context(), req.MapID, start)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	if s.replayer != nil {
		s.replayer.Stop(sessionID)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

func (s *Server) handleSetStart(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var start engine.Position
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&start); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.SetStart(r.Context(), sessionID, start)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastToSession(sessionID, info)
	}

	respondJSON(w, http.StatusOK, info)
}

// Search Handlers

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	began := time.Now()
	result, err := s.service.Solve(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	solveDuration.Observe(time.Since(began).Seconds())
	solvesTotal.WithLabelValues(foundLabel(result.Found)).Inc()

	s.broadcast(sessionID, websocket.EventSolved, result)

	log.Printf("[SOLVE] session=%s start=(%d,%d) found=%v path=%d",
		sessionID, result.Start.X, result.Start.Y, result.Found, result.PathLength)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	query := r.URL.Query()
	var opts service.TraceOptions
	if limitStr := query.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = l
	}
	opts.Snapshots, _ = strconv.ParseBool(query.Get("snapshots"))

	result, err := s.service.Trace(r.Context(), sessionID, opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tracesTotal.WithLabelValues("batch").Inc()
	traceEvents.Observe(float64(result.TotalSteps))

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	result, err := s.service.Record(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	recordingsTotal.WithLabelValues(foundLabel(result.Found)).Inc()

	if result.Found {
		log.Printf("[RECORD] session=%s record=%s steps=%d", sessionID, result.RecordName, result.Steps)
	} else {
		log.Printf("[RECORD] session=%s record=%s steps=%d no solution (%s)",
			sessionID, result.RecordName, result.Steps, result.ErrorFile)
	}

	respondJSON(w, http.StatusCreated, result)
}

// Step Log Handlers

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListRecords(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(names),
		"records": names,
	})
}

// handleGetRecord returns the raw step log, or the decoded record with
// ?format=json
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if r.URL.Query().Get("format") == "json" {
		replay, err := s.service.Replay(r.Context(), name)
		if err != nil {
			if errors.Is(err, steplog.ErrMalformedRecord) {
				decodeFailures.Inc()
			}
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, replay)
		return
	}

	data, err := s.service.ReadRecord(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := s.service.DeleteRecord(r.Context(), name); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Record %s deleted", name),
	})
}

// replayChannel picks the hub channel a replay is published on: the
// ?channel= parameter, else the record name.
func replayChannel(r *http.Request, name string) string {
	if ch := r.URL.Query().Get("channel"); ch != "" {
		return ch
	}
	return steplog.RecordName(name)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if s.replayer == nil {
		respondError(w, http.StatusServiceUnavailable, "Replay is not enabled")
		return
	}

	replay, err := s.service.Replay(r.Context(), name)
	if err != nil {
		if errors.Is(err, steplog.ErrMalformedRecord) {
			decodeFailures.Inc()
		}
		respondServiceError(w, err)
		return
	}

	channel := replayChannel(r, name)
	rec := steplog.Record{Steps: replay.Steps, Grid: replay.Grid}
	// The replay outlives the request
	s.replayer.Start(context.WithoutCancel(r.Context()), channel, replay.Name, rec)
	replaysStarted.Inc()

	log.Printf("[REPLAY] record=%s channel=%s steps=%d delay=%s",
		replay.Name, channel, len(replay.Steps), s.replayer.Delay())

	respondJSON(w, http.StatusAccepted, map[string]any{
		"record":   replay.Name,
		"channel":  channel,
		"steps":    len(replay.Steps),
		"found":    replay.Found,
		"delay_ms": s.replayer.Delay().Milliseconds(),
	})
}

func (s *Server) handleStopReplay(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if s.replayer == nil {
		respondError(w, http.StatusServiceUnavailable, "Replay is not enabled")
		return
	}

	channel := replayChannel(r, name)
	if !s.replayer.Stop(channel) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("No replay running on %s", channel))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Replay on %s stopped", channel),
	})
}

// WebSocket Handler

// handleWebSocket attaches a client to a session (?session=ID, verified) or
// to a free-form replay channel (?channel=name).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "WebSocket is not enabled", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	if channel := query.Get("channel"); channel != "" {
		s.hub.ServeWS(w, r, channel)
		return
	}

	sessionID := query.Get("session")
	if sessionID == "" {
		http.Error(w, "session or channel parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
