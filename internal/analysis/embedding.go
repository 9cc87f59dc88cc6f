package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/usage"
)

// Embedder turns analyzed article text into a vector. Embedding runs
// strictly after a successful analysis merge, never alongside it.
type Embedder struct {
	client ports.InferenceClient
	meter  *usage.Meter
	model  string
}

// NewEmbedder wires the embedding model.
func NewEmbedder(client ports.InferenceClient, meter *usage.Meter, model string) *Embedder {
	return &Embedder{client: client, meter: meter, model: model}
}

// Embed generates a vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.client == nil {
		return nil, fmt.Errorf("inference client is not configured")
	}

	raw, err := e.client.Run(ctx, e.model, embeddingRequest{Text: text})
	if err != nil {
		metrics.InferenceCallsTotal.WithLabelValues(e.model, "error").Inc()
		return nil, fmt.Errorf("embedding inference: %w", err)
	}
	metrics.InferenceCallsTotal.WithLabelValues(e.model, "ok").Inc()

	if e.meter != nil {
		e.meter.Track(e.model, usage.EstimateTokens(len(text)), 0)
	}

	vector, err := decodeEmbedding(raw)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// decodeEmbedding accepts both the wrapper and the bare embedding shapes:
// {"response": {"data": [[...]]}} or {"data": [[...]]}.
func decodeEmbedding(raw json.RawMessage) ([]float64, error) {
	var wrapper struct {
		Response struct {
			Data [][]float64 `json:"data"`
		} `json:"response"`
		Data [][]float64 `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}

	data := wrapper.Response.Data
	if len(data) == 0 {
		data = wrapper.Data
	}
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("embedding response contains no vector")
	}
	return data[0], nil
}
