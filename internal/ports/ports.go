package ports

import (
	"context"
	"encoding/json"
	"time"

	"ThreatScanner/internal/domain"
)

// ArticleSource pulls fresh articles from upstream security-news feeds.
type ArticleSource interface {
	FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error)
}

// InferenceClient runs a model against a payload and returns the raw
// response body. The payload is either a chat-style message request or a
// bare text request for embedding models; the response shape is unspecified
// and must go through the response normalizer.
type InferenceClient interface {
	Run(ctx context.Context, model string, payload any) (json.RawMessage, error)
}

// AnalysisRepository persists analysis summaries and indicators.
type AnalysisRepository interface {
	AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error)
	SaveAnalysis(ctx context.Context, article domain.Article, result *domain.AnalysisResult, confidence float64) error
	SaveIndicators(ctx context.Context, articleID string, iocs domain.IOCSet) (int, error)
}

// BlobStore abstracts the durable object storage wrapped by the archive.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil when absent
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, limit int) (keys []string, truncated bool, err error)
	Size(ctx context.Context, key string) (int64, error) // 0, nil when absent
}

// CounterStore is a key-value store with TTL support backing quota records.
type CounterStore interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil when absent
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// VectorIndex stores embeddings for the similarity feature.
type VectorIndex interface {
	Insert(ctx context.Context, id string, vector []float64, metadata map[string]string) error
	Query(ctx context.Context, vector []float64, topK int, withMetadata bool) ([]VectorMatch, error)
}

// VectorMatch is one ranked result from a vector query.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Notifier pushes operational digests and budget alerts to an external channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
