// Package api provides HTTP REST API handlers for the Treasure Hunt server.
//
// Endpoints:
//
// Maps:
//   - GET /api/maps - List maps with size, treasure and wall counts
//   - GET /api/maps/{name} - Get a map (?format=text for the raw file)
//   - PUT /api/maps/{name} - Store a map from {"grid": [...]} or text/plain
//   - POST /api/maps/generate - Generate a random map
//
// Sessions:
//   - POST /api/sessions - Create a session {"map_id": "classic", "start": {"x": 0, "y": 0}}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//   - PUT /api/sessions/{id}/start - Move the start cell {"x": 1, "y": 2}
//
// Search:
//   - POST /api/sessions/{id}/solve - Run the search, returns found and the marked grid
//   - GET /api/sessions/{id}/trace - Traced search (?limit=N&snapshots=true)
//   - GET /api/sessions/{id}/trace/stream - Traced search as Server-Sent Events
//   - POST /api/sessions/{id}/record - Trace and store a step log
//
// Step logs:
//   - GET /api/records - List stored step logs
//   - GET /api/records/{name} - Raw step log (?format=json for the decoded record)
//   - DELETE /api/records/{name} - Delete a step log
//   - POST /api/records/{name}/replay - Replay over WebSocket (?channel=abc1)
//   - DELETE /api/records/{name}/replay - Stop a running replay
//
// Other:
//   - GET /ws?session=abc1 or /ws?channel=name - WebSocket event stream
//   - GET /health
//   - GET /metrics - Prometheus metrics
//
// Grid coordinates are {"x": row, "y": column}. Grids are JSON arrays of row
// strings using '.', '#', 'T', '*' and '@'.
//
// Error Handling:
//
// Errors are returned as JSON with the matching HTTP status code:
//
//	{
//	  "error": "session not found: ab12",
//	  "code": 404
//	}
//
// Unknown sessions, maps and records map to 404, invalid starts, maps and
// names to 400, and undecodable step logs to 422.
package api
