package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ThreatScanner/internal/analysis"
	"ThreatScanner/internal/archive"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/usage"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Repository ports.AnalysisRepository
	Controller *analysis.Controller
	Embedder   *analysis.Embedder
	Archive    *archive.Store
	Vectors    ports.VectorIndex
	Meter      *usage.Meter
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

// Pipeline implements the daily analysis workflow: fetch, analyze, persist,
// archive, embed.
type Pipeline struct {
	source     ports.ArticleSource
	repository ports.AnalysisRepository
	controller *analysis.Controller
	embedder   *analysis.Embedder
	archive    *archive.Store
	vectors    ports.VectorIndex
	meter      *usage.Meter
	notifier   ports.Notifier
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		controller: deps.Controller,
		embedder:   deps.Embedder,
		archive:    deps.Archive,
		vectors:    deps.Vectors,
		meter:      deps.Meter,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
	}
}

// ProcessDay orchestrates one batch run. Per-article failures degrade to a
// placeholder record instead of aborting the run; only a failure to fetch
// the article list is fatal.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) error {
	if p.source == nil || p.controller == nil {
		return nil
	}

	articles, err := p.source.FetchDaily(ctx, day)
	if err != nil {
		return fmt.Errorf("fetch daily: %w", err)
	}

	ids := make([]string, len(articles))
	for i, art := range articles {
		ids[i] = art.ID
	}

	skip := map[string]bool{}
	if p.repository != nil && len(ids) > 0 {
		skip, err = p.repository.AlreadyProcessed(ctx, ids)
		if err != nil {
			return fmt.Errorf("load processed: %w", err)
		}
	}

	analyzed, degraded := 0, 0
	for _, article := range articles {
		if skip[article.ID] {
			continue
		}

		if p.processArticle(ctx, article) {
			analyzed++
		} else {
			degraded++
		}
	}

	p.reportUsage(ctx, analyzed, degraded)
	return nil
}

// processArticle runs one article end to end. Returns false when only the
// degraded placeholder could be persisted.
func (p *Pipeline) processArticle(ctx context.Context, article domain.Article) bool {
	result := p.controller.Analyze(ctx, article)
	healthy := result != nil
	if !healthy {
		result = domain.FallbackResult()
	}

	if p.repository != nil {
		if err := p.repository.SaveAnalysis(ctx, article, result, confidence(result)); err != nil {
			p.error("persist analysis", article, err)
			return false
		}
		if healthy && result.IOCs.Count() > 0 {
			if _, err := p.repository.SaveIndicators(ctx, article.ID, result.IOCs); err != nil {
				p.error("persist indicators", article, err)
			}
		}
	}

	if !healthy {
		return false
	}

	p.archiveArticle(ctx, article, result)
	p.indexArticle(ctx, article, result)
	return true
}

// archiveArticle is best effort: size and quota rejections are policy, not
// failures of the run.
func (p *Pipeline) archiveArticle(ctx context.Context, article domain.Article, result *domain.AnalysisResult) {
	if p.archive == nil {
		return
	}

	err := p.archive.Put(ctx, article, *result)
	if err == nil {
		return
	}

	var sizeErr *archive.SizeError
	var quotaErr *archive.QuotaError
	switch {
	case errors.As(err, &sizeErr):
		p.warn("article too large to archive", article, err)
	case errors.As(err, &quotaErr):
		p.warn("archive quota rejected write", article, err)
	default:
		p.error("archive write", article, err)
	}
}

// indexArticle generates the embedding strictly after a successful analysis
// and inserts it into the vector index, best effort.
func (p *Pipeline) indexArticle(ctx context.Context, article domain.Article, result *domain.AnalysisResult) {
	if p.embedder == nil || p.vectors == nil {
		return
	}

	text := article.Title + "\n" + result.Summary
	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		p.warn("embedding failed", article, err)
		return
	}

	metadata := map[string]string{
		"title":        article.Title,
		"category":     string(result.Category),
		"severity":     string(result.Severity),
		"published_at": article.PublishedAt.UTC().Format(time.RFC3339),
	}
	if err := p.vectors.Insert(ctx, article.ID, vector, metadata); err != nil {
		p.warn("vector insert failed", article, err)
	}
}

// reportUsage logs the daily budget state and alerts operators once the
// status leaves OK. Usage metering is advisory; nothing is blocked here.
func (p *Pipeline) reportUsage(ctx context.Context, analyzed, degraded int) {
	if p.meter == nil {
		return
	}

	summary := p.meter.Summary()
	metrics.UsageNeuronsToday.Set(summary.Used)

	if p.logger != nil {
		p.logger.Info("run complete",
			"analyzed", analyzed,
			"degraded", degraded,
			"neurons_used", summary.Used,
			"neurons_percent", summary.Percent,
			"budget_status", summary.Status,
		)
		for _, entry := range p.meter.Breakdown() {
			p.logger.Debug("model usage",
				"model", entry.Model,
				"cost", entry.Cost,
				"calls", entry.Calls,
				"avg_per_call", entry.AvgPerCall,
			)
		}
	}

	if p.notifier == nil || summary.Status == usage.StatusOK {
		return
	}

	digest := fmt.Sprintf("Compute budget %s: %.0f of %.0f neurons used today (%.1f%%). Analyzed %d, degraded %d.",
		summary.Status, summary.Used, summary.Ceiling, summary.Percent, analyzed, degraded)
	if err := p.notifier.PublishDigest(ctx, digest); err != nil && p.logger != nil {
		p.logger.Warn("budget alert failed", "error", err)
	}
}

// confidence scores field completeness of a result. The degraded
// placeholder always scores zero.
func confidence(result *domain.AnalysisResult) float64 {
	if result == nil || result.Strategy == domain.StrategyNone {
		return 0
	}

	score := 0.5
	if n := len(result.KeyPoints); n >= 3 && n <= 5 {
		score += 0.2
	}
	if result.IOCs.Count() > 0 {
		score += 0.2
	}
	if len(result.Sectors) > 0 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (p *Pipeline) warn(msg string, article domain.Article, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "article_id", article.ID, "error", err)
	}
}

func (p *Pipeline) error(msg string, article domain.Article, err error) {
	if p.logger != nil {
		p.logger.Error(msg, "article_id", article.ID, "error", err)
	}
}
