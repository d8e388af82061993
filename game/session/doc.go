// Package session provides session management for the Treasure Hunt server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Optional JSON file persistence
//   - Session cleanup and expiration
//
// A session pins one map grid and one start cell. The grid is copied on
// creation so editing the map file later does not change a running hunt.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs generated with crypto/rand. Lookups are
// case-insensitive.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", "classic.txt", grid, engine.Position{X: 0, Y: 0})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err = manager.Get(sess.ID)
//	sessions := manager.List()
//
// With persistence every create and access update is written to
// <sessions dir>/<id>.json and LoadPersistedSessions restores them at startup.
// Flush rewrites every in-memory session; the server calls it on shutdown.
package session
