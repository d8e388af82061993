// Package mcp provides a Model Context Protocol front end for the Treasure
// Hunt server.
//
// The Client is a thin proxy: every tool call becomes one or two REST
// requests against a running server, and the JSON answer is rendered as
// plain text with row and column indexes for the agent to read.
//
// MCP Tools:
//   - list_maps, generate_map
//   - create_session, get_session, list_sessions, set_start
//   - solve, trace, record
//   - list_records, get_record
//   - describe_cell, hunt_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
