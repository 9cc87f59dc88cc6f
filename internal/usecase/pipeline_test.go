package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"ThreatScanner/internal/analysis"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/usage"
)

type fakeSource struct {
	articles []domain.Article
	err      error
}

func (f *fakeSource) FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error) {
	return f.articles, f.err
}

type savedAnalysis struct {
	article    domain.Article
	result     *domain.AnalysisResult
	confidence float64
}

type fakeRepository struct {
	processed  map[string]bool
	analyses   []savedAnalysis
	indicators map[string]domain.IOCSet
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{processed: map[string]bool{}, indicators: map[string]domain.IOCSet{}}
}

func (f *fakeRepository) AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error) {
	result := map[string]bool{}
	for _, id := range ids {
		if f.processed[id] {
			result[id] = true
		}
	}
	return result, nil
}

func (f *fakeRepository) SaveAnalysis(ctx context.Context, article domain.Article, result *domain.AnalysisResult, confidence float64) error {
	f.analyses = append(f.analyses, savedAnalysis{article: article, result: result, confidence: confidence})
	return nil
}

func (f *fakeRepository) SaveIndicators(ctx context.Context, articleID string, iocs domain.IOCSet) (int, error) {
	f.indicators[articleID] = iocs
	return iocs.Count(), nil
}

type fakeNotifier struct {
	digests []string
}

func (f *fakeNotifier) PublishDigest(ctx context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return nil
}

type stubInference struct {
	response string
	err      error
}

func (s *stubInference) Run(ctx context.Context, model string, payload any) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.response), nil
}

const fullResponse = `{"response":{"summary":"Ransomware campaign expands","category":"ransomware","severity":"high",` +
	`"key_points":["double extortion","new loader","targets healthcare"],"sectors":["healthcare"],"threat_actors":["LockTrap"],` +
	`"iocs":{"ips":["1.2.3.4"],"domains":["evil.com"],"cves":[],"hashes":[],"urls":[],"emails":[]}}}`

func testController(client *stubInference, meter *usage.Meter, model string) *analysis.Controller {
	baseline := analysis.NewBaseline(client, meter, model, 12000, nil)
	trimodel := analysis.NewTriModel(client, meter, "basic-model", "detailed-model", 12000, nil)
	return analysis.NewController(analysis.ModeBaseline, 0, baseline, trimodel, nil)
}

func testArticles() []domain.Article {
	day := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	return []domain.Article{
		{ID: "seen-1", Title: "Old news", Body: "already handled", PublishedAt: day},
		{ID: "new-1", Title: "Fresh incident", Body: "ransomware spotted", PublishedAt: day},
	}
}

func TestProcessDaySkipsProcessedAndPersists(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.processed["seen-1"] = true

	pipeline := NewPipeline(PipelineDeps{
		Source:     &fakeSource{articles: testArticles()},
		Repository: repo,
		Controller: testController(&stubInference{response: fullResponse}, nil, "baseline-model"),
	})

	if err := pipeline.ProcessDay(context.Background(), time.Now()); err != nil {
		t.Fatalf("ProcessDay error: %v", err)
	}

	if len(repo.analyses) != 1 {
		t.Fatalf("expected 1 persisted analysis, got %d", len(repo.analyses))
	}

	saved := repo.analyses[0]
	if saved.article.ID != "new-1" {
		t.Fatalf("wrong article persisted: %s", saved.article.ID)
	}
	if !saved.result.Valid() {
		t.Fatalf("persisted result invalid: %+v", saved.result)
	}
	if saved.confidence <= 0 {
		t.Fatalf("expected positive confidence, got %f", saved.confidence)
	}

	iocs, ok := repo.indicators["new-1"]
	if !ok {
		t.Fatalf("indicators not persisted")
	}
	if iocs.Count() != 2 {
		t.Fatalf("expected 2 indicators, got %d", iocs.Count())
	}
}

func TestProcessDayPersistsDegradedPlaceholder(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	pipeline := NewPipeline(PipelineDeps{
		Source:     &fakeSource{articles: testArticles()[1:]},
		Repository: repo,
		Controller: testController(&stubInference{err: fmt.Errorf("inference down")}, nil, "baseline-model"),
	})

	if err := pipeline.ProcessDay(context.Background(), time.Now()); err != nil {
		t.Fatalf("ProcessDay error: %v", err)
	}

	if len(repo.analyses) != 1 {
		t.Fatalf("expected degraded placeholder to be persisted, got %d records", len(repo.analyses))
	}

	saved := repo.analyses[0]
	if saved.result.Summary != "analysis unavailable" {
		t.Fatalf("unexpected placeholder summary: %s", saved.result.Summary)
	}
	if saved.result.Category != domain.CategoryOther || saved.result.Severity != domain.SeverityInfo {
		t.Fatalf("unexpected placeholder classification: %+v", saved.result)
	}
	if saved.confidence != 0 {
		t.Fatalf("degraded confidence = %f, want 0", saved.confidence)
	}
	if len(repo.indicators) != 0 {
		t.Fatalf("degraded article should persist no indicators")
	}
}

func TestProcessDayAlertsWhenBudgetLeavesOK(t *testing.T) {
	t.Parallel()

	meter := usage.NewMeter(0.001)
	notifier := &fakeNotifier{}

	pipeline := NewPipeline(PipelineDeps{
		Source:     &fakeSource{articles: testArticles()[1:]},
		Repository: newFakeRepository(),
		Controller: testController(&stubInference{response: fullResponse}, meter, "@cf/meta/llama-3.3-70b-instruct-fp8-fast"),
		Meter:      meter,
		Notifier:   notifier,
	})

	if err := pipeline.ProcessDay(context.Background(), time.Now()); err != nil {
		t.Fatalf("ProcessDay error: %v", err)
	}

	if len(notifier.digests) != 1 {
		t.Fatalf("expected 1 budget alert, got %d", len(notifier.digests))
	}
}

func TestProcessDayFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	pipeline := NewPipeline(PipelineDeps{
		Source:     &fakeSource{err: fmt.Errorf("feeds unreachable")},
		Controller: testController(&stubInference{response: fullResponse}, nil, "baseline-model"),
	})

	if err := pipeline.ProcessDay(context.Background(), time.Now()); err == nil {
		t.Fatalf("expected fetch failure to surface")
	}
}
