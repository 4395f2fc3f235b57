// Package chain watches the payment contract: an HTTP client for the chain
// query API, a dispatcher that decodes contract logs into domain events, and
// a poller that walks block heights forward.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds every chain API call so a stalled node
// cannot wedge the poller.
const DefaultRequestTimeout = 10 * time.Second

// QueryClient is the chain query surface the poller depends on.
type QueryClient interface {
	TipHeight(ctx context.Context) (int64, error)
	BlockEvents(ctx context.Context, height int64) ([]LogEntry, error)
}

// Client is a JSON-over-HTTP chain query API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a chain API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("chain API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// TipHeight returns the highest known block height.
func (c *Client) TipHeight(ctx context.Context) (int64, error) {
	data, err := c.doRequest(ctx, "/v1/blocks/tip")
	if err != nil {
		return 0, err
	}
	var out struct {
		Height int64 `json:"height"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("unmarshal tip: %w", err)
	}
	return out.Height, nil
}

// BlockEvents returns all contract logs recorded in one block.
func (c *Client) BlockEvents(ctx context.Context, height int64) ([]LogEntry, error) {
	data, err := c.doRequest(ctx, fmt.Sprintf("/v1/blocks/%d/events", height))
	if err != nil {
		return nil, err
	}
	var out struct {
		Events []LogEntry `json:"events"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return out.Events, nil
}
