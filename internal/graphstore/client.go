// Package graphstore talks to the remote graph service that persists
// imported nodes and relationships. It implements graph.Store.
package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/xmlgest/internal/ulid"
)

// Client communicates with the graph store HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	stats      *StoreStats

	// backoff is swapped out by tests.
	backoff func(attempt int) time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		stats:   NewStoreStats(time.Hour),
		backoff: Backoff,
	}
}

// nodeRequest is the body for POST /api/v1/nodes.
type nodeRequest struct {
	Label string         `json:"label"`
	Props map[string]any `json:"props,omitempty"`
}

// nodeResponse carries the id the store assigned.
type nodeResponse struct {
	ID int64 `json:"id"`
}

// relRequest is the body for POST /api/v1/relationships.
type relRequest struct {
	From int64  `json:"from"`
	To   int64  `json:"to"`
	Type string `json:"type"`
}

// CreateNode stores a node and returns its id.
func (c *Client) CreateNode(ctx context.Context, label string, props map[string]any) (int64, error) {
	body, err := json.Marshal(nodeRequest{Label: label, Props: props})
	if err != nil {
		return 0, fmt.Errorf("marshal node: %w", err)
	}
	var out nodeResponse
	if err := c.post(ctx, "/api/v1/nodes", body, &out); err != nil {
		return 0, fmt.Errorf("create node: %w", err)
	}
	return out.ID, nil
}

// CreateRel stores a relationship between two previously created nodes.
func (c *Client) CreateRel(ctx context.Context, from, to int64, typ string) error {
	body, err := json.Marshal(relRequest{From: from, To: to, Type: typ})
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}
	if err := c.post(ctx, "/api/v1/relationships", body, nil); err != nil {
		return fmt.Errorf("create relationship: %w", err)
	}
	return nil
}

// Stats reports request latency and error aggregates.
func (c *Client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// post sends one logical request, retrying transient failures. All
// attempts share one X-Request-Id so the server can dedupe creations
// that succeeded after the response was lost.
func (c *Client) post(ctx context.Context, path string, body []byte, out any) (err error) {
	start := time.Now()
	defer func() {
		c.stats.Record(time.Since(start).Milliseconds(), err == nil)
	}()

	reqID := ulid.New()
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err = c.postOnce(ctx, path, body, reqID, out)
		if err == nil || !IsRetryable(err) || attempt == MaxRetries-1 {
			return err
		}
		c.stats.RecordRetry()
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) postOnce(ctx context.Context, path string, body []byte, reqID string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Request-Id", reqID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network failures are transient until proven otherwise.
		return &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Close releases any resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
