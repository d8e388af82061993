// Package websocket provides WebSocket transport for the Treasure Hunt server.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - Event broadcasting after solves and start changes
//   - Paced replay of stored step logs
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a dedicated
// pair of goroutines for reading and writing. Broadcasts are queued on a
// buffered channel and fanned out by the hub's event loop.
//
// Message Protocol:
//
// Outgoing messages are JSON documents, one per WebSocket frame:
//
//	{"session_id": "abc1", "event": "replay_step", "data": {...}}
//
// Events are session_update, solved, replay_start, replay_step and
// replay_done. Incoming messages are read and discarded.
//
// Session Integration:
//
// Clients pick a channel via query parameter (?sessionId=abc1). A channel is
// normally a session ID, but replays may target any channel name.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	replayer := websocket.NewReplayer(hub, 150*time.Millisecond)
//	replayer.Start(ctx, "abc1", "classic_Solved.txt", record)
//
// Replay:
//
// A replay publishes replay_start with the base grid, one replay_step per
// visited coordinate with the grid painted so far, and replay_done with the
// stored final grid. Starting a replay on a busy channel cancels the one
// already running there.
package websocket
