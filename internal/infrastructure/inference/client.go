package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
)

// Client talks to an external machine-inference endpoint over HTTP. The
// model identifier becomes a path segment; the payload is posted as JSON
// and the raw response body is returned untouched for the normalizer.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.InferenceClient = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Run posts the payload to the named model and returns the raw body.
func (c *Client) Run(ctx context.Context, model string, payload any) (json.RawMessage, error) {
	if c.http == nil || c.endpoint == "" {
		return nil, fmt.Errorf("inference client misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	metrics.InferenceCallDuration.WithLabelValues(model).Observe(time.Since(started).Seconds())

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference error %s: %s", resp.Status, strings.TrimSpace(string(preview)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return json.RawMessage(raw), nil
}
