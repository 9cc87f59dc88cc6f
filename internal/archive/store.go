package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
)

const (
	bytesPerGiB = float64(1 << 30)

	quotaKeyPrefix = "archive:quota:"
)

// Store wraps a blob store with a per-object size cap and monthly
// operation/storage ceilings tracked in a key-value counter store. Every
// path checks quota before touching storage and updates the counters only
// after the storage call succeeded.
type Store struct {
	blobs    ports.BlobStore
	counters ports.CounterStore
	limits   Limits
	prefix   string
	quotaTTL time.Duration
	logger   *slog.Logger

	// mu serializes the quota read-modify-write; the record is always
	// rewritten as a whole, never per field.
	mu  sync.Mutex
	now func() time.Time
}

// NewStore builds a quota-enforced archive over the given backends.
func NewStore(blobs ports.BlobStore, counters ports.CounterStore, limits Limits, prefix string, quotaTTL time.Duration, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "articles"
	}
	return &Store{
		blobs:    blobs,
		counters: counters,
		limits:   limits,
		prefix:   prefix,
		quotaTTL: quotaTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Key derives the deterministic object key for an article.
func (s *Store) Key(articleID string, publishedAt time.Time) string {
	utc := publishedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s.json", s.prefix, utc.Year(), int(utc.Month()), articleID)
}

// Put archives an article snapshot. Oversized documents are rejected with
// a SizeError before any storage or quota call; writes that would push the
// monthly storage or class-A counters past their ceilings are rejected
// with a QuotaError.
func (s *Store) Put(ctx context.Context, article domain.Article, analysis domain.AnalysisResult) error {
	snapshot := domain.ArchivedArticle{
		ID:          article.ID,
		Title:       article.Title,
		Body:        article.Body,
		URL:         article.URL,
		Source:      article.Source,
		PublishedAt: article.PublishedAt,
		Analysis:    analysis,
		ArchivedAt:  s.now().UTC(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal archive document: %w", err)
	}

	// Embed the document's own size, then enforce the cap on the bytes
	// that will actually be written.
	snapshot.SizeBytes = int64(len(data))
	data, err = json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal archive document: %w", err)
	}

	size := int64(len(data))
	if s.limits.MaxObjectBytes > 0 && size > s.limits.MaxObjectBytes {
		metrics.ArchiveOperationsTotal.WithLabelValues("put", "size_rejected").Inc()
		return &SizeError{Bytes: size, Limit: s.limits.MaxObjectBytes}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadQuota(ctx)
	if err != nil {
		return err
	}

	deltaGiB := float64(size) / bytesPerGiB
	if s.limits.StorageGiB > 0 && record.StorageGiB+deltaGiB > s.limits.StorageGiB {
		s.warnQuota(record, "storage")
		metrics.ArchiveOperationsTotal.WithLabelValues("put", "quota_rejected").Inc()
		return &QuotaError{Resource: "storage", Used: record.StorageGiB, Limit: s.limits.StorageGiB}
	}
	if s.limits.ClassAOps > 0 && record.ClassAOps+1 > s.limits.ClassAOps {
		s.warnQuota(record, "class A operations")
		metrics.ArchiveOperationsTotal.WithLabelValues("put", "quota_rejected").Inc()
		return &QuotaError{Resource: "class A operations", Used: float64(record.ClassAOps), Limit: float64(s.limits.ClassAOps)}
	}

	key := s.Key(article.ID, article.PublishedAt)
	err = s.blobs.Put(ctx, key, data, "application/json", map[string]string{
		"article_id": article.ID,
		"source":     article.Source,
	})
	if err != nil {
		metrics.ArchiveOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("archive put %s: %w", key, err)
	}

	record.StorageGiB += deltaGiB
	record.ClassAOps++
	record.ArchivedCount++
	if err := s.saveQuota(ctx, record); err != nil {
		return err
	}

	metrics.ArchiveOperationsTotal.WithLabelValues("put", "ok").Inc()
	metrics.ArchiveStorageGiB.Set(record.StorageGiB)
	return nil
}

// Get retrieves an archived snapshot, or nil when the key does not exist.
// Reads are gated on the monthly class-B ceiling.
func (s *Store) Get(ctx context.Context, articleID string, publishedAt time.Time) (*domain.ArchivedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadQuota(ctx)
	if err != nil {
		return nil, err
	}

	if s.limits.ClassBOps > 0 && record.ClassBOps+1 > s.limits.ClassBOps {
		s.warnQuota(record, "class B operations")
		metrics.ArchiveOperationsTotal.WithLabelValues("get", "quota_rejected").Inc()
		return nil, &QuotaError{Resource: "class B operations", Used: float64(record.ClassBOps), Limit: float64(s.limits.ClassBOps)}
	}

	key := s.Key(articleID, publishedAt)
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		metrics.ArchiveOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("archive get %s: %w", key, err)
	}

	record.ClassBOps++
	if err := s.saveQuota(ctx, record); err != nil {
		return nil, err
	}
	metrics.ArchiveOperationsTotal.WithLabelValues("get", "ok").Inc()

	if data == nil {
		return nil, nil
	}

	var snapshot domain.ArchivedArticle
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode archive document %s: %w", key, err)
	}
	return &snapshot, nil
}

// Delete removes an archived snapshot, best effort. An existing object's
// size is read first so the storage counter can be decremented by the
// freed amount; a missing object still gets the idempotent delete call
// without touching storage accounting.
func (s *Store) Delete(ctx context.Context, articleID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.Key(articleID, publishedAt)

	size, err := s.blobs.Size(ctx, key)
	if err != nil {
		return fmt.Errorf("archive size %s: %w", key, err)
	}

	if err := s.blobs.Delete(ctx, key); err != nil {
		metrics.ArchiveOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("archive delete %s: %w", key, err)
	}

	record, err := s.loadQuota(ctx)
	if err != nil {
		return err
	}

	if size > 0 {
		record.StorageGiB -= float64(size) / bytesPerGiB
		if record.StorageGiB < 0 {
			record.StorageGiB = 0
		}
		if record.ArchivedCount > 0 {
			record.ArchivedCount--
		}
	}
	record.ClassAOps++
	if err := s.saveQuota(ctx, record); err != nil {
		return err
	}

	metrics.ArchiveOperationsTotal.WithLabelValues("delete", "ok").Inc()
	metrics.ArchiveStorageGiB.Set(record.StorageGiB)
	return nil
}

// List enumerates archived keys under a prefix, counting as one class-A
// operation. Truncation of the provider result set is surfaced to callers.
func (s *Store) List(ctx context.Context, prefix string, limit int) (keys []string, truncated bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadQuota(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.limits.ClassAOps > 0 && record.ClassAOps+1 > s.limits.ClassAOps {
		s.warnQuota(record, "class A operations")
		metrics.ArchiveOperationsTotal.WithLabelValues("list", "quota_rejected").Inc()
		return nil, false, &QuotaError{Resource: "class A operations", Used: float64(record.ClassAOps), Limit: float64(s.limits.ClassAOps)}
	}

	keys, truncated, err = s.blobs.List(ctx, prefix, limit)
	if err != nil {
		metrics.ArchiveOperationsTotal.WithLabelValues("list", "error").Inc()
		return nil, false, fmt.Errorf("archive list %s: %w", prefix, err)
	}

	record.ClassAOps++
	if err := s.saveQuota(ctx, record); err != nil {
		return nil, false, err
	}

	metrics.ArchiveOperationsTotal.WithLabelValues("list", "ok").Inc()
	return keys, truncated, nil
}

// Quota returns the current monthly record for operational reporting.
func (s *Store) Quota(ctx context.Context) (QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadQuota(ctx)
	if err != nil {
		return QuotaRecord{}, err
	}
	return *record, nil
}

func (s *Store) quotaKey() string {
	return quotaKeyPrefix + s.now().UTC().Format("2006-01")
}

// loadQuota reads the month's record, lazily creating it on first use.
func (s *Store) loadQuota(ctx context.Context) (*QuotaRecord, error) {
	data, err := s.counters.Get(ctx, s.quotaKey())
	if err != nil {
		return nil, fmt.Errorf("load quota record: %w", err)
	}

	record := &QuotaRecord{Month: s.now().UTC().Format("2006-01"), Status: QuotaHealthy}
	if data != nil {
		if err := json.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decode quota record: %w", err)
		}
	}
	record.recomputeStatus(s.limits)
	return record, nil
}

// saveQuota writes the whole record back with a TTL past month end.
func (s *Store) saveQuota(ctx context.Context, record *QuotaRecord) error {
	record.UpdatedAt = s.now().UTC()
	record.recomputeStatus(s.limits)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode quota record: %w", err)
	}
	if err := s.counters.Put(ctx, s.quotaKey(), data, s.quotaTTL); err != nil {
		return fmt.Errorf("save quota record: %w", err)
	}
	return nil
}

func (s *Store) warnQuota(record *QuotaRecord, resource string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn("archive quota ceiling reached",
		"resource", resource,
		"month", record.Month,
		"storage_gib", record.StorageGiB,
		"class_a_ops", record.ClassAOps,
		"class_b_ops", record.ClassBOps,
		"status", record.Status,
	)
}
