// Command sweep drives a running Treasure Hunt server through its REST API.
// For every map it opens a session, moves the start onto each empty cell in
// turn and solves, then reports how many starts reach a treasure and the
// shortest and longest marked paths.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
	"github.com/wricardo/mcp-training/treasurehunt/game/service"
)

// Client is a minimal REST client bound to one session at a time
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// do sends body as JSON and decodes a 2xx answer into out
func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) ListMaps() ([]*service.MapInfo, error) {
	var infos []*service.MapInfo
	err := c.do(http.MethodGet, "/api/maps", nil, &infos)
	return infos, err
}

func (c *Client) GetMap(name string) (engine.Grid, error) {
	var resp struct {
		Grid engine.Grid `json:"grid"`
	}
	err := c.do(http.MethodGet, "/api/maps/"+url.PathEscape(name), nil, &resp)
	return resp.Grid, err
}

// CreateSession opens a session on mapID and binds the client to it
func (c *Client) CreateSession(mapID string, start engine.Position) (*service.SessionInfo, error) {
	req := map[string]any{"map_id": mapID, "start": start}

	var info service.SessionInfo
	if err := c.do(http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) SetStart(start engine.Position) error {
	return c.do(http.MethodPut, c.sessionPath("/start"), start, nil)
}

func (c *Client) Solve() (*service.SolveResult, error) {
	var res service.SolveResult
	if err := c.do(http.MethodPost, c.sessionPath("/solve"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Record() (*service.RecordResult, error) {
	var res service.RecordResult
	if err := c.do(http.MethodPost, c.sessionPath("/record"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteSession removes the bound session
func (c *Client) DeleteSession() error {
	if c.sessionID == "" {
		return nil
	}
	err := c.do(http.MethodDelete, c.sessionPath(""), nil, nil)
	c.sessionID = ""
	return err
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

// SweepReport summarizes the solves of one map
type SweepReport struct {
	MapID    string
	Starts   int
	Found    int
	Failed   []engine.Position
	Shortest int
	Longest  int
	// LongestStart is the start that produced the longest path
	LongestStart engine.Position
}

// Sweep solves mapID from every empty cell. The session is deleted before
// returning.
func Sweep(c *Client, mapID string, delay time.Duration, verbose bool) (*SweepReport, error) {
	grid, err := c.GetMap(mapID)
	if err != nil {
		return nil, err
	}

	starts := grid.FindCells(engine.Empty)
	report := &SweepReport{MapID: mapID, Starts: len(starts)}
	if len(starts) == 0 {
		return report, nil
	}

	if _, err := c.CreateSession(mapID, starts[0]); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.DeleteSession(); err != nil {
			log.Printf("Warning: failed to delete session: %v", err)
		}
	}()

	for i, start := range starts {
		if i > 0 {
			if err := c.SetStart(start); err != nil {
				return nil, err
			}
		}
		res, err := c.Solve()
		if err != nil {
			return nil, err
		}

		if !res.Found {
			report.Failed = append(report.Failed, start)
		} else {
			report.Found++
			if report.Shortest == 0 || res.PathLength < report.Shortest {
				report.Shortest = res.PathLength
			}
			if res.PathLength > report.Longest {
				report.Longest = res.PathLength
				report.LongestStart = start
			}
		}

		if verbose {
			log.Printf("%s (%d,%d): found=%t path=%d", mapID, start.X, start.Y, res.Found, res.PathLength)
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	return report, nil
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Treasure Hunt server URL")
	mapName := flag.String("map", "", "Sweep a single map (default: all maps)")
	record := flag.Bool("record", false, "Store a step log for the longest path of each map")
	verbose := flag.Bool("v", false, "Verbose output")
	delayMs := flag.Int("delay", 0, "Delay between solves in milliseconds (0 = no delay)")
	flag.Parse()

	log.Printf("Connecting to server at %s", *serverURL)
	client := NewClient(*serverURL)

	mapIDs := []string{*mapName}
	if *mapName == "" {
		infos, err := client.ListMaps()
		if err != nil {
			log.Fatalf("Failed to list maps: %v", err)
		}
		mapIDs = mapIDs[:0]
		for _, info := range infos {
			mapIDs = append(mapIDs, info.MapID)
		}
	}

	failed := false
	for _, id := range mapIDs {
		report, err := Sweep(client, id, time.Duration(*delayMs)*time.Millisecond, *verbose)
		if err != nil {
			log.Printf("❌ %s: %v", id, err)
			failed = true
			continue
		}
		printReport(report)

		if *record && report.Found > 0 {
			if err := recordLongest(client, report); err != nil {
				log.Printf("❌ %s: record failed: %v", id, err)
				failed = true
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}

func printReport(r *SweepReport) {
	log.Printf("=== %s ===", r.MapID)
	log.Printf("Starts: %d, reach a treasure: %d, fail: %d", r.Starts, r.Found, len(r.Failed))
	if r.Found > 0 {
		log.Printf("Path length: shortest %d, longest %d from (%d,%d)",
			r.Shortest, r.Longest, r.LongestStart.X, r.LongestStart.Y)
	}
}

// recordLongest stores the step log of the longest path found by the sweep
func recordLongest(c *Client, r *SweepReport) error {
	if _, err := c.CreateSession(r.MapID, r.LongestStart); err != nil {
		return err
	}
	defer c.DeleteSession()

	res, err := c.Record()
	if err != nil {
		return err
	}
	log.Printf("✅ Stored %s (%d steps)", res.RecordName, res.Steps)
	return nil
}
