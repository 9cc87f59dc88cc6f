package domain

import "time"

// Article is a core entity describing a security-news item fetched from feeds.
// Immutable once fetched; the analysis engine only reads it.
type Article struct {
	ID          string
	Title       string
	Body        string
	URL         string
	Source      string
	PublishedAt time.Time
}

// ProcessingStatus records how an article left the pipeline: with a real
// analysis or with the degraded placeholder.
type ProcessingStatus string

const (
	StatusAnalyzed ProcessingStatus = "analyzed"
	StatusDegraded ProcessingStatus = "degraded"
)

// StatusOf classifies a persisted result.
func StatusOf(result *AnalysisResult) ProcessingStatus {
	if result == nil || result.Strategy == StrategyNone {
		return StatusDegraded
	}
	return StatusAnalyzed
}
