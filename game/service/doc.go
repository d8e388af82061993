// Package service provides the business logic layer for the Treasure Hunt server.
//
// The service package implements:
//   - Multi-session hunt management, one map and start cell per session
//   - Solve and trace runs over the session map
//   - Step log recording and replay
//   - Map listing, storage and random generation
//
// Core Interfaces:
//
// HuntService is the main service interface used by the transports.
// SessionManager stores sessions, MapCatalog serves map files and
// RecordStore persists step logs.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	mapMgr, _ := maps.NewManager("maps")
//	records, _ := steplog.NewStore("maps/records")
//	huntService := service.NewHuntService(sessionMgr, mapMgr, records)
//
//	info, err := huntService.CreateSession(ctx, "classic.txt", engine.Position{X: 0, Y: 0})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := huntService.Solve(ctx, info.ID)
//
// Solve never reports a missing path as an error: Found is false and the
// result grid is the unchanged map with the start mark.
package service
