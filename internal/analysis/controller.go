package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/metrics"
)

// Mode selects how the controller routes an article. The set is closed;
// the dispatch switch below is exhaustive over it.
type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeTriModel Mode = "trimodel"
	ModeShadow   Mode = "shadow"
	ModeCanary   Mode = "canary"
)

// ParseMode maps a config string to a Mode, defaulting to baseline.
func ParseMode(value string) Mode {
	switch Mode(value) {
	case ModeTriModel, ModeShadow, ModeCanary:
		return Mode(value)
	default:
		return ModeBaseline
	}
}

// Controller is the top-level analysis entry point. It selects one of four
// deployment strategies and guarantees that no failure, panic included,
// escapes Analyze: the worst outcome for a caller is a nil result.
type Controller struct {
	mode          Mode
	canaryPercent float64
	baseline      *Baseline
	trimodel      *TriModel
	logger        *slog.Logger

	// rnd draws the per-article canary sample; replaceable in tests.
	rnd func() float64
}

// NewController wires both analysis paths behind a deployment mode.
func NewController(mode Mode, canaryPercent float64, baseline *Baseline, trimodel *TriModel, logger *slog.Logger) *Controller {
	return &Controller{
		mode:          mode,
		canaryPercent: canaryPercent,
		baseline:      baseline,
		trimodel:      trimodel,
		logger:        logger,
		rnd:           rand.Float64,
	}
}

// Analyze runs the configured strategy and returns nil when no analysis
// could be produced. Callers must persist the degraded placeholder from
// domain.FallbackResult in that case so the article is not retried forever.
func (c *Controller) Analyze(ctx context.Context, article domain.Article) (result *domain.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logFailure(article, "strategy panicked", r)
			result = c.lastResort(ctx, article)
		}
	}()

	var err error
	switch c.mode {
	case ModeBaseline:
		metrics.StrategySelectionsTotal.WithLabelValues(string(c.mode), string(domain.StrategyBaseline)).Inc()
		result, err = c.baseline.Analyze(ctx, article)
	case ModeTriModel:
		metrics.StrategySelectionsTotal.WithLabelValues(string(c.mode), string(domain.StrategyTriModel)).Inc()
		result, err = c.trimodel.Analyze(ctx, article)
	case ModeShadow:
		result, err = c.runShadow(ctx, article)
	case ModeCanary:
		if c.rnd()*100 < c.canaryPercent {
			metrics.StrategySelectionsTotal.WithLabelValues(string(c.mode), string(domain.StrategyTriModel)).Inc()
			result, err = c.trimodel.Analyze(ctx, article)
		} else {
			metrics.StrategySelectionsTotal.WithLabelValues(string(c.mode), string(domain.StrategyBaseline)).Inc()
			result, err = c.baseline.Analyze(ctx, article)
		}
	}

	if err != nil {
		c.logFailure(article, "strategy failed", err)
		metrics.StrategyFallbacksTotal.WithLabelValues(string(c.mode)).Inc()
		return c.lastResort(ctx, article)
	}

	if result != nil {
		metrics.AnalysisResultsTotal.WithLabelValues(string(result.Strategy), "ok").Inc()
	}
	return result
}

// runShadow executes baseline and tri-model concurrently, always answering
// with the baseline result. When both succeed it emits a structured
// comparison for offline validation of the tri-model rollout.
func (c *Controller) runShadow(ctx context.Context, article domain.Article) (*domain.AnalysisResult, error) {
	type outcome struct {
		result *domain.AnalysisResult
		err    error
	}

	baselineCh := make(chan outcome, 1)
	shadowCh := make(chan outcome, 1)

	// Recover inside each branch: a panic here runs on its own goroutine
	// and would bypass the recover in Analyze entirely.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				baselineCh <- outcome{err: fmt.Errorf("baseline panicked: %v", r)}
			}
		}()
		r, err := c.baseline.Analyze(ctx, article)
		baselineCh <- outcome{result: r, err: err}
	}()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				shadowCh <- outcome{err: fmt.Errorf("trimodel panicked: %v", r)}
			}
		}()
		r, err := c.trimodel.Analyze(ctx, article)
		shadowCh <- outcome{result: r, err: err}
	}()

	baseline := <-baselineCh
	shadow := <-shadowCh

	if shadow.err != nil {
		c.debug("shadow trimodel failed", "article_id", article.ID, "error", shadow.err)
	} else if baseline.err == nil && baseline.result != nil && shadow.result != nil {
		c.logComparison(article, baseline.result, shadow.result)
	}

	return baseline.result, baseline.err
}

// lastResort is the final fallback: one direct baseline attempt. Its own
// failure, panics included, yields nil. It runs after Analyze's recover has
// already fired, so it must contain panics itself.
func (c *Controller) lastResort(ctx context.Context, article domain.Article) (result *domain.AnalysisResult) {
	if c.baseline == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logFailure(article, "baseline fallback panicked", r)
			metrics.AnalysisResultsTotal.WithLabelValues(string(domain.StrategyNone), "failed").Inc()
			result = nil
		}
	}()

	result, err := c.baseline.Analyze(ctx, article)
	if err != nil {
		c.logFailure(article, "baseline fallback failed", err)
		metrics.AnalysisResultsTotal.WithLabelValues(string(domain.StrategyNone), "failed").Inc()
		return nil
	}
	metrics.AnalysisResultsTotal.WithLabelValues(string(result.Strategy), "fallback").Inc()
	return result
}

func (c *Controller) logComparison(article domain.Article, baseline, shadow *domain.AnalysisResult) {
	if c.logger == nil {
		return
	}

	c.logger.Info("shadow comparison",
		"article_id", article.ID,
		"category_match", baseline.Category == shadow.Category,
		"severity_match", baseline.Severity == shadow.Severity,
		"baseline_key_points", len(baseline.KeyPoints),
		"shadow_key_points", len(shadow.KeyPoints),
		"baseline_ips", len(baseline.IOCs.IPs),
		"shadow_ips", len(shadow.IOCs.IPs),
		"baseline_domains", len(baseline.IOCs.Domains),
		"shadow_domains", len(shadow.IOCs.Domains),
		"baseline_cves", len(baseline.IOCs.CVEs),
		"shadow_cves", len(shadow.IOCs.CVEs),
		"baseline_hashes", len(baseline.IOCs.Hashes),
		"shadow_hashes", len(shadow.IOCs.Hashes),
		"baseline_urls", len(baseline.IOCs.URLs),
		"shadow_urls", len(shadow.IOCs.URLs),
		"baseline_emails", len(baseline.IOCs.Emails),
		"shadow_emails", len(shadow.IOCs.Emails),
	)
}

func (c *Controller) logFailure(article domain.Article, msg string, cause any) {
	if c.logger == nil {
		return
	}

	c.logger.Error(msg,
		"article_id", article.ID,
		"article_title", article.Title,
		"article_source", article.Source,
		"article_length", len(article.Body),
		"mode", string(c.mode),
		"error", cause,
	)
}

func (c *Controller) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
