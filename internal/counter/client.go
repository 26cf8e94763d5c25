package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is the body returned by every counter route.
type Response struct {
	Value int `json:"value"`
}

// Client talks to a running counter API.
type Client struct {
	// BaseURL is the API root, e.g. "http://localhost:3001/api".
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a bounded request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get fetches the current value.
func (c *Client) Get(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodGet, "/counter")
}

// Increment adds the server's step.
func (c *Client) Increment(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodPost, "/counter/increment")
}

// Decrement subtracts one.
func (c *Client) Decrement(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodPost, "/counter/decrement")
}

// Reset sets the value to zero.
func (c *Client) Reset(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodPost, "/counter/reset")
}

func (c *Client) do(ctx context.Context, method, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to the counter API at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode counter response: %w", err)
	}

	return out.Value, nil
}
