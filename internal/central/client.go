// Package central is a client for ZeroTier Central's network/member
// inventory and DNS-settings APIs, plus the idempotent publisher that keeps
// a network's advertised DNS server pointed at this process.
package central

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://my.zerotier.com/api/v1"

// DNS is the writable DNS-advertisement block on a network object.
type DNS struct {
	Domain  string   `json:"domain"`
	Servers []string `json:"servers"`
}

// Network is the subset of a Central network object this package reads or
// writes.
type Network struct {
	ID     string `json:"id"`
	Config struct {
		DNS DNS `json:"dns"`
	} `json:"config"`
}

// Member is one entry from GET /network/{id}/member.
type Member struct {
	Config struct {
		Address       string   `json:"address"`
		Authorized    bool     `json:"authorized"`
		IPAssignments []string `json:"ipAssignments"`
	} `json:"config"`
	Name string `json:"name"`
}

// Client talks to ZeroTier Central. Constructed once at startup and reused
// across reconciler ticks, carrying the bearer token as a header set once.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a Client. An empty baseURL defaults to the public Central
// endpoint; operators may override it (e.g. for self-hosted Central).
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request for %s: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Path: path, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s (%d)", path, http.StatusText(resp.StatusCode), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// AuthError distinguishes Central authentication failures (HTTP 401/403)
// from other transient failures, per the error-handling disposition table:
// these are logged at error and retried, rather than treated like an
// ordinary transient fetch failure.
type AuthError struct {
	Path       string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (%d)", e.Path, e.StatusCode)
}

// GetNetwork fetches a network's current configuration, including its
// advertised DNS block.
func (c *Client) GetNetwork(ctx context.Context, networkID string) (Network, error) {
	var n Network
	err := c.do(ctx, http.MethodGet, "/network/"+networkID, nil, &n)
	return n, err
}

// GetMembers fetches the full member list for a network.
func (c *Client) GetMembers(ctx context.Context, networkID string) ([]Member, error) {
	var members []Member
	err := c.do(ctx, http.MethodGet, "/network/"+networkID+"/member", nil, &members)
	return members, err
}

// SetNetworkDNS writes the network's advertised DNS block.
func (c *Client) SetNetworkDNS(ctx context.Context, networkID string, dns DNS) error {
	payload := struct {
		Config struct {
			DNS DNS `json:"dns"`
		} `json:"config"`
	}{}
	payload.Config.DNS = dns
	return c.do(ctx, http.MethodPost, "/network/"+networkID, payload, nil)
}
