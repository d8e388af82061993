package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Treasure Hunt",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Treasure Hunt - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Pick a map and a start cell, then let the depth-first search look for a
treasure (T). The solved grid marks the path with '*' and the start with '@'.

AVAILABLE TOOLS:
- list_maps: List available maps
- generate_map: Create a random map
- create_session: Pin a map and a start cell
- get_session / list_sessions: Inspect sessions
- set_start: Move the start cell
- solve: Run the search and show the marked grid
- trace: Show the order in which cells were explored
- record: Store a step log of the search
- list_records / get_record: Browse stored step logs
- describe_cell: Explain one cell of a session map
- hunt_instructions: Rules and coordinate conventions

Coordinates are x = row, y = column, both starting at 0.`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Maps
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List available maps with their size, treasure and wall counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListMaps)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "generate_map",
		Description: "Generate a random map and store it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "File name for the map (optional, random by default)",
				},
				"rows": map[string]any{
					"type":        "integer",
					"description": "Number of rows (default 10)",
				},
				"cols": map[string]any{
					"type":        "integer",
					"description": "Number of columns (default 10)",
				},
				"density": map[string]any{
					"type":        "number",
					"description": "Wall density between 0 and 1 (default 0.15)",
				},
				"seed": map[string]any{
					"type":        "integer",
					"description": "Seed for a reproducible map",
				},
				"no_treasure": map[string]any{
					"type":        "boolean",
					"description": "Generate a map without a treasure",
				},
			},
		},
	}, c.handleGenerateMap)

	// Sessions
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a hunt session on a map with a start cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"map_id": map[string]any{
					"type":        "string",
					"description": "Map to use (optional, default map otherwise)",
				},
				"x": map[string]any{
					"type":        "integer",
					"description": "Start row (default 0)",
				},
				"y": map[string]any{
					"type":        "integer",
					"description": "Start column (default 0)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active hunt sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_start",
		Description: "Move the start cell of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"x": map[string]any{
					"type":        "integer",
					"description": "Start row",
				},
				"y": map[string]any{
					"type":        "integer",
					"description": "Start column",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleSetStart)

	// Search
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solve",
		Description: "Search for a treasure from the session start and show the marked grid",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleSolve)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "trace",
		Description: "Show the exploration order of the search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of events to return (0 = all)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTrace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "record",
		Description: "Run the search and store its step log",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleRecord)

	// Step logs
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_records",
		Description: "List stored step logs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListRecords)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_record",
		Description: "Show a stored step log",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Record name, e.g. classic_Solved.txt or classic",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetRecord)

	// Help
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe one cell of a session map",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"x": map[string]any{
					"type":        "integer",
					"description": "Row",
				},
				"y": map[string]any{
					"type":        "integer",
					"description": "Column",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hunt_instructions",
		Description: "Get the rules of the treasure hunt",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleHuntInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return nil, fmt.Errorf("%s", errResp.Error)
		}
		return nil, fmt.Errorf("API error: %d", resp.StatusCode)
	}

	return resp, nil
}

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) apiCallRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Argument helpers. JSON numbers arrive as float64.

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func positionArgs(args map[string]any) (engine.Position, error) {
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return engine.Position{}, fmt.Errorf("x and y must be integers")
	}
	return engine.Position{X: x, Y: y}, nil
}

func sessionPath(args map[string]any, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// Tool handlers

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var infos []service.MapInfo
	if err := c.apiCall(ctx, "GET", "/api/maps", nil, &infos); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Available Maps (%d):\n\n", len(infos))
	for _, m := range infos {
		fmt.Fprintf(&result, "- %s (%dx%d, treasures: %d, walls: %d)\n",
			m.MapID, m.Rows, m.Cols, m.Treasures, m.Walls)
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGenerateMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var req service.GenerateRequest
	req.Name, _ = args["name"].(string)
	req.Rows, _ = intArg(args, "rows")
	req.Cols, _ = intArg(args, "cols")
	if d, ok := args["density"].(float64); ok {
		req.Density = &d
	}
	if s, ok := intArg(args, "seed"); ok && s >= 0 {
		seed := uint64(s)
		req.Seed = &seed
	}
	req.NoTreasure, _ = args["no_treasure"].(bool)

	var info service.MapInfo
	if err := c.apiCall(ctx, "POST", "/api/maps/generate", req, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var grid struct {
		Grid engine.Grid `json:"grid"`
	}
	if err := c.apiCall(ctx, "GET", "/api/maps/"+url.PathEscape(info.MapID), nil, &grid); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Generated map: %s (%dx%d, treasures: %d, walls: %d)\n\n%s",
		info.MapID, info.Rows, info.Cols, info.Treasures, info.Walls, formatGrid(grid.Grid))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]any{}
	if mapID, _ := args["map_id"].(string); mapID != "" {
		body["map_id"] = mapID
	}
	x, _ := intArg(args, "x")
	y, _ := intArg(args, "y")
	body["start"] = engine.Position{X: x, Y: y}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nMap: %s\n\n%s", session.ID, session.MapName, formatSessionGrid(&session))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "unsolved"
		if s.LastSolve != nil {
			status = "no treasure reachable"
			if s.LastSolve.Found {
				status = fmt.Sprintf("solved, path %d", s.LastSolve.PathLength)
			}
		}
		fmt.Fprintf(&result, "- %s (Map: %s, Start: (%d,%d), %s, Created: %s)\n",
			s.ID, s.MapName, s.Start.X, s.Start.Y, status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleSetStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := positionArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "PUT", path, start, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleSolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/solve")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.SolveResult
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSolveResult(&result)), nil
}

func (c *Client) handleTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/trace")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit, ok := intArg(args, "limit"); ok && limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var result service.TraceResult
	if err := c.apiCall(ctx, "GET", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTraceResult(&result)), nil
}

func (c *Client) handleRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.RecordResult
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Step log stored: %s (%d steps)\n", result.RecordName, result.Steps)
	if result.Found {
		out.WriteString("Treasure found.\n")
	} else {
		fmt.Fprintf(&out, "No treasure reachable from (%d,%d); note written to %s\n",
			result.Start.X, result.Start.Y, result.ErrorFile)
	}
	out.WriteString("\n")
	out.WriteString(formatGrid(result.Result))
	return mcp.NewToolResultText(out.String()), nil
}

func (c *Client) handleListRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int      `json:"count"`
		Records []string `json:"records"`
	}
	if err := c.apiCall(ctx, "GET", "/api/records", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Stored Step Logs (%d):\n\n", response.Count)
	for _, name := range response.Records {
		fmt.Fprintf(&result, "- %s\n", name)
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(request)["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	data, err := c.apiCallRaw(ctx, "/api/records/"+url.PathEscape(name))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := positionArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cell, err := session.Grid.At(pos)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Grid size is %dx%d (rows 0-%d, columns 0-%d)",
			pos.X, pos.Y, session.Grid.Rows(), session.Grid.Cols(), session.Grid.Rows()-1, session.Grid.Cols()-1)), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Cell (%d, %d): '%s' %s\n", pos.X, pos.Y, cell, describeCell(cell))
	fmt.Fprintf(&result, "Passable: %v\n", cell.IsPassable())
	if pos == session.Start {
		result.WriteString("This is the session start cell.\n")
	}
	if session.LastSolve != nil {
		if solved, err := session.LastSolve.Result.At(pos); err == nil && solved == engine.PathMark {
			result.WriteString("Part of the last solved path.\n")
		}
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleHuntInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Treasure Hunt - Instructions

MAP LEGEND:
  .  empty, passable
  #  wall
  T  treasure
  *  path mark written by the search
  @  start cell in solved grids

COORDINATES:
  x is the row (0 at the top), y is the column (0 at the left).

SEARCH RULES:
  - Moves are up, down, left, right; never diagonal.
  - Neighbours are tried in the fixed order up, down, left, right.
  - The first treasure reached wins; the path is not necessarily shortest.
  - A start on a wall or outside the map finds nothing.
  - When nothing is found the map comes back unchanged.

STEP LOGS:
  record stores "#STEPS" followed by "x,y" lines in visit order and "#MAP"
  followed by the solved grid. When no treasure is reachable a
  "<map>_NoSolution.txt" note is written next to it.

WORKFLOW:
  1. list_maps or generate_map
  2. create_session with map_id, x and y
  3. solve, trace or record
  4. set_start to try another start cell`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func describeCell(c engine.Cell) string {
	switch c {
	case engine.Empty:
		return "(empty)"
	case engine.Wall:
		return "(wall)"
	case engine.Treasure:
		return "(treasure)"
	case engine.PathMark:
		return "(path mark)"
	case engine.StartMark:
		return "(start mark)"
	}
	return "(unknown)"
}

// formatGrid renders a grid with column and row indexes
func formatGrid(g engine.Grid) string {
	if g.IsEmpty() {
		return "(empty grid)\n"
	}

	var b strings.Builder
	b.WriteString("    ")
	for y := 0; y < g.Cols(); y++ {
		b.WriteString(strconv.Itoa(y % 10))
	}
	b.WriteString("\n")
	for x, row := range g.Strings() {
		fmt.Fprintf(&b, "%3d %s\n", x, row)
	}
	return b.String()
}

func formatSessionGrid(session *service.SessionInfo) string {
	return formatGrid(session.Grid.WithStart(session.Start))
}

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nMap: %s\nStart: (%d,%d)\nCreated: %s\n\n",
		session.ID, session.MapName, session.Start.X, session.Start.Y,
		session.CreatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(formatSessionGrid(session))
	if session.LastSolve != nil {
		b.WriteString("\nLast solve:\n")
		b.WriteString(formatSolveResult(session.LastSolve))
	}
	if session.LastRecord != "" {
		fmt.Fprintf(&b, "\nLast step log: %s\n", session.LastRecord)
	}
	return b.String()
}

func formatSolveResult(result *service.SolveResult) string {
	var b strings.Builder
	if result.Found {
		fmt.Fprintf(&b, "Treasure found from (%d,%d). Path cells: %d\n\n",
			result.Start.X, result.Start.Y, result.PathLength)
	} else {
		fmt.Fprintf(&b, "No treasure reachable from (%d,%d).\n\n", result.Start.X, result.Start.Y)
	}
	b.WriteString(formatGrid(result.Result))
	return b.String()
}

func formatTraceResult(result *service.TraceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trace: %d events, %d cells visited, found=%v\n", result.TotalSteps, result.Visits, result.Found)
	if result.Truncated {
		fmt.Fprintf(&b, "(showing first %d events)\n", result.Limit)
	}
	b.WriteString("\n")
	for _, step := range result.Steps {
		fmt.Fprintf(&b, "%4d %-5s (%d,%d)\n", step.Idx, step.Kind, step.Pos.X, step.Pos.Y)
	}
	b.WriteString("\nFinal grid:\n")
	b.WriteString(formatGrid(result.Result))
	return b.String()
}
