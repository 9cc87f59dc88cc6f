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

// TriModel fans out to two specialized extractors running concurrently: a
// small fast model for classification and a larger one for key points and
// indicators. The merge only happens when both calls succeeded; a single
// failure fails the whole pipeline, never producing a partial result.
type TriModel struct {
	client        ports.InferenceClient
	meter         *usage.Meter
	basicModel    string
	detailedModel string
	maxInputChars int
	logger        *slog.Logger
}

// NewTriModel wires the parallel extraction pipeline.
func NewTriModel(client ports.InferenceClient, meter *usage.Meter, basicModel, detailedModel string, maxInputChars int, logger *slog.Logger) *TriModel {
	return &TriModel{
		client:        client,
		meter:         meter,
		basicModel:    basicModel,
		detailedModel: detailedModel,
		maxInputChars: maxInputChars,
		logger:        logger,
	}
}

// basicOutcome carries the classification half of the merge.
type basicOutcome struct {
	summary  string
	category domain.Category
	severity domain.Severity
	sectors  []string
	actors   []string
	err      error
}

// detailedOutcome carries the key-point and indicator half.
type detailedOutcome struct {
	keyPoints []string
	iocs      domain.IOCSet
	err       error
}

// Analyze runs both extractors concurrently and merges their results. No
// field exists in both halves, so the merge takes every field from
// whichever extractor produced it.
func (t *TriModel) Analyze(ctx context.Context, article domain.Article) (*domain.AnalysisResult, error) {
	if t.client == nil {
		return nil, fmt.Errorf("inference client is not configured")
	}

	body := TruncateBody(article.Body, t.maxInputChars)

	basicCh := make(chan basicOutcome, 1)
	detailedCh := make(chan detailedOutcome, 1)

	// Each branch recovers its own panics; a panicking client adapter must
	// surface as an error at the join point, never kill the process.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				basicCh <- basicOutcome{err: fmt.Errorf("basic extractor panicked: %v", r)}
			}
		}()
		basicCh <- t.runBasic(ctx, article.Title, body)
	}()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				detailedCh <- detailedOutcome{err: fmt.Errorf("detailed extractor panicked: %v", r)}
			}
		}()
		detailedCh <- t.runDetailed(ctx, article.Title, body)
	}()

	// Join in a fixed order; completion order between the branches is
	// not guaranteed and must not matter here.
	basic := <-basicCh
	detailed := <-detailedCh

	if basic.err != nil {
		return nil, fmt.Errorf("basic extractor: %w", basic.err)
	}
	if detailed.err != nil {
		return nil, fmt.Errorf("detailed extractor: %w", detailed.err)
	}

	return &domain.AnalysisResult{
		Summary:      basic.summary,
		KeyPoints:    detailed.keyPoints,
		Category:     basic.category,
		Severity:     basic.severity,
		Sectors:      basic.sectors,
		ThreatActors: basic.actors,
		IOCs:         detailed.iocs,
		Strategy:     domain.StrategyTriModel,
	}, nil
}

func (t *TriModel) runBasic(ctx context.Context, title, body string) basicOutcome {
	request := newChatRequest(basicSystemPrompt, basicUserPrompt(title, body), basicMaxTokens)

	raw, err := t.client.Run(ctx, t.basicModel, request)
	if err != nil {
		metrics.InferenceCallsTotal.WithLabelValues(t.basicModel, "error").Inc()
		return basicOutcome{err: err}
	}
	metrics.InferenceCallsTotal.WithLabelValues(t.basicModel, "ok").Inc()

	if t.meter != nil {
		inTokens := usage.EstimateTokens(len(basicSystemPrompt) + len(title) + len(body))
		t.meter.Track(t.basicModel, inTokens, usage.EstimateTokens(len(raw)))
	}

	obj, ok := Normalize(raw, t.logger)
	if !ok {
		return basicOutcome{err: fmt.Errorf("response did not normalize")}
	}
	if !HasRequiredFields(obj, "summary", "category", "severity") {
		return basicOutcome{err: fmt.Errorf("response missing required fields")}
	}

	return basicOutcome{
		summary:  fieldString(obj, "summary"),
		category: domain.ParseCategory(fieldString(obj, "category")),
		severity: domain.ParseSeverity(fieldString(obj, "severity")),
		sectors:  fieldStringList(obj, "sectors"),
		actors:   fieldStringList(obj, "threat_actors"),
	}
}

func (t *TriModel) runDetailed(ctx context.Context, title, body string) detailedOutcome {
	request := newChatRequest(detailedSystemPrompt, detailedUserPrompt(title, body), detailedMaxTokens)

	raw, err := t.client.Run(ctx, t.detailedModel, request)
	if err != nil {
		metrics.InferenceCallsTotal.WithLabelValues(t.detailedModel, "error").Inc()
		return detailedOutcome{err: err}
	}
	metrics.InferenceCallsTotal.WithLabelValues(t.detailedModel, "ok").Inc()

	if t.meter != nil {
		inTokens := usage.EstimateTokens(len(detailedSystemPrompt) + len(title) + len(body))
		t.meter.Track(t.detailedModel, inTokens, usage.EstimateTokens(len(raw)))
	}

	obj, ok := Normalize(raw, t.logger)
	if !ok {
		return detailedOutcome{err: fmt.Errorf("response did not normalize")}
	}

	// The indicator object must be present even when all its lists are
	// empty; its absence fails the call.
	iocs, ok := fieldIOCs(obj)
	if !ok {
		return detailedOutcome{err: fmt.Errorf("response missing iocs object")}
	}

	return detailedOutcome{
		keyPoints: fieldStringList(obj, "key_points"),
		iocs:      iocs,
	}
}
