// Package ztlocal is a thin client for the local ZeroTier service's loopback
// HTTP API, used by the reconciler to learn this node's own address and its
// assigned IPs on the served network.
package ztlocal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "http://127.0.0.1:9993"

// Status is the subset of GET /status this package cares about.
type Status struct {
	Address string `json:"address"`
}

// NetworkConfig is the subset of GET /network/{id} this package cares
// about.
type NetworkConfig struct {
	ID                string   `json:"id"`
	AssignedAddresses []string `json:"assignedAddresses"`
	PortDeviceName    string   `json:"portDeviceName"`
	MAC               string   `json:"mac"`
}

// Client talks to the local ZeroTier service. One Client is constructed at
// startup and reused across reconciler ticks; it carries the auth token as
// a header set once, the same single-owner-HTTP-client shape the libdns
// provider clients use (e.g. hetzner's doRequest).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a Client. An empty baseURL defaults to the well-known
// loopback address of the local ZeroTier service.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("X-ZT1-Auth", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s (%d)", path, http.StatusText(resp.StatusCode), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// Status fetches this node's own ZeroTier identity.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.do(ctx, http.MethodGet, "/status", &s)
	return s, err
}

// NetworkConfig fetches this node's local view of one network, including
// its own assigned addresses on it.
func (c *Client) NetworkConfig(ctx context.Context, networkID string) (NetworkConfig, error) {
	var nc NetworkConfig
	err := c.do(ctx, http.MethodGet, "/network/"+networkID, &nc)
	return nc, err
}
