package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ThreatScanner/internal/ports"
)

// Client talks to an external vector index service over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	index    string
	http     *http.Client
}

var _ ports.VectorIndex = (*Client)(nil)

// NewClient creates a reusable HTTP client for the given index.
func NewClient(endpoint, apiKey, index string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		index:    index,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Insert upserts one vector with its filtering metadata.
func (c *Client) Insert(ctx context.Context, id string, vector []float64, metadata map[string]string) error {
	payload := map[string]any{
		"index": c.index,
		"vectors": []map[string]any{
			{"id": id, "values": vector, "metadata": metadata},
		},
	}
	return c.post(ctx, "/insert", payload, nil)
}

// Query returns ranked matches for a vector.
func (c *Client) Query(ctx context.Context, vector []float64, topK int, withMetadata bool) ([]ports.VectorMatch, error) {
	payload := map[string]any{
		"index":          c.index,
		"vector":         vector,
		"topK":           topK,
		"returnMetadata": withMetadata,
	}

	var resp struct {
		Matches []struct {
			ID       string            `json:"id"`
			Score    float64           `json:"score"`
			Metadata map[string]string `json:"metadata"`
		} `json:"matches"`
	}
	if err := c.post(ctx, "/query", payload, &resp); err != nil {
		return nil, err
	}

	matches := make([]ports.VectorMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, ports.VectorMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	if c.http == nil || c.endpoint == "" {
		return fmt.Errorf("vector client misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
