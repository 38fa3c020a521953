package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/rowing.report/internal/httputil"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/session"
)

// Client talks to a running rower's API.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient returns a client for baseURL, for example
// "http://rower.local:8080". A nil hc uses http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if err := httputil.ReadJSON(resp, v); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// Snapshot fetches the live engine snapshot.
func (c *Client) Snapshot(ctx context.Context) (rower.Snapshot, error) {
	var snap rower.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/snapshot", &snap)
	return snap, err
}

// Summary fetches the snapshot in display units. Empty unit uses the
// server's default.
func (c *Client) Summary(ctx context.Context, unit string) (Summary, error) {
	path := "/api/summary"
	if unit != "" {
		path += "?units=" + url.QueryEscape(unit)
	}
	var sum Summary
	err := c.do(ctx, http.MethodGet, path, &sum)
	return sum, err
}

// Curves fetches the handle curves of the last drive.
func (c *Client) Curves(ctx context.Context) (rower.Curves, error) {
	var curves rower.Curves
	err := c.do(ctx, http.MethodGet, "/api/curves", &curves)
	return curves, err
}

// Stats fetches engine and source counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", &stats)
	return stats, err
}

// Control sends a session command.
func (c *Client) Control(ctx context.Context, cmd session.Command) error {
	return c.do(ctx, http.MethodPost, "/api/control/"+cmd.String(), nil)
}
