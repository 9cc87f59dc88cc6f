package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/usage"
)

// Baseline is the single large-model analysis path: one call extracting
// every field at once.
type Baseline struct {
	client        ports.InferenceClient
	meter         *usage.Meter
	model         string
	maxInputChars int
	logger        *slog.Logger
}

// NewBaseline wires the single-model path.
func NewBaseline(client ports.InferenceClient, meter *usage.Meter, model string, maxInputChars int, logger *slog.Logger) *Baseline {
	return &Baseline{
		client:        client,
		meter:         meter,
		model:         model,
		maxInputChars: maxInputChars,
		logger:        logger,
	}
}

// Analyze runs the full extraction prompt against the baseline model.
func (b *Baseline) Analyze(ctx context.Context, article domain.Article) (*domain.AnalysisResult, error) {
	if b.client == nil {
		return nil, fmt.Errorf("inference client is not configured")
	}

	body := TruncateBody(article.Body, b.maxInputChars)
	request := newChatRequest(baselineSystemPrompt, baselineUserPrompt(article.Title, body), baselineMaxTokens)

	raw, err := b.client.Run(ctx, b.model, request)
	if err != nil {
		metrics.InferenceCallsTotal.WithLabelValues(b.model, "error").Inc()
		return nil, fmt.Errorf("baseline inference: %w", err)
	}
	metrics.InferenceCallsTotal.WithLabelValues(b.model, "ok").Inc()

	if b.meter != nil {
		inTokens := usage.EstimateTokens(len(baselineSystemPrompt) + len(article.Title) + len(body))
		outTokens := usage.EstimateTokens(len(raw))
		b.meter.Track(b.model, inTokens, outTokens)
	}

	obj, ok := Normalize(raw, b.logger)
	if !ok {
		return nil, fmt.Errorf("baseline response did not normalize")
	}
	if !HasRequiredFields(obj, "summary", "category", "severity") {
		return nil, fmt.Errorf("baseline response missing required fields")
	}

	iocs, _ := fieldIOCs(obj)
	return &domain.AnalysisResult{
		Summary:      fieldString(obj, "summary"),
		KeyPoints:    fieldStringList(obj, "key_points"),
		Category:     domain.ParseCategory(fieldString(obj, "category")),
		Severity:     domain.ParseSeverity(fieldString(obj, "severity")),
		Sectors:      fieldStringList(obj, "sectors"),
		ThreatActors: fieldStringList(obj, "threat_actors"),
		IOCs:         iocs,
		Strategy:     domain.StrategyBaseline,
	}, nil
}
