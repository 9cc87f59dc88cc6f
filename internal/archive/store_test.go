package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ThreatScanner/internal/domain"
)

type fakeBlobStore struct {
	objects map[string][]byte
	puts    int
	deletes int
	lists   int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	f.puts++
	f.objects[key] = data
	return nil
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.deletes++
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) List(ctx context.Context, prefix string, limit int) ([]string, bool, error) {
	f.lists++
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	truncated := false
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
		truncated = true
	}
	return keys, truncated, nil
}

func (f *fakeBlobStore) Size(ctx context.Context, key string) (int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return 0, nil
	}
	return int64(len(data)), nil
}

type fakeCounterStore struct {
	values map[string][]byte
	gets   int
	puts   int
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{values: map[string][]byte{}}
}

func (f *fakeCounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.gets++
	data, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (f *fakeCounterStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.puts++
	f.values[key] = value
	return nil
}

func (f *fakeCounterStore) Delete(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func testLimits() Limits {
	return Limits{
		MaxObjectBytes: 200 * 1024,
		StorageGiB:     8,
		ClassAOps:      800_000,
		ClassBOps:      8_000_000,
	}
}

func testStore(blobs *fakeBlobStore, counters *fakeCounterStore) *Store {
	store := NewStore(blobs, counters, testLimits(), "articles", 40*24*time.Hour, nil)
	store.now = func() time.Time {
		return time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	}
	return store
}

func testArticle() domain.Article {
	return domain.Article{
		ID:          "art-1",
		Title:       "Ransomware hits logistics provider",
		Body:        "A ransomware group encrypted systems across three regions.",
		Source:      "test-feed",
		PublishedAt: time.Date(2026, time.August, 30, 8, 0, 0, 0, time.UTC),
	}
}

func testAnalysis() domain.AnalysisResult {
	return domain.AnalysisResult{
		Summary:  "Ransomware attack on logistics",
		Category: domain.CategoryRansomware,
		Severity: domain.SeverityHigh,
		Strategy: domain.StrategyBaseline,
	}
}

func (f *fakeCounterStore) quota(t *testing.T) QuotaRecord {
	t.Helper()
	data, ok := f.values["archive:quota:2026-09"]
	if !ok {
		t.Fatalf("quota record missing")
	}
	var record QuotaRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode quota record: %v", err)
	}
	return record
}

func TestPutStoresWithDeterministicKey(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	if err := store.Put(context.Background(), testArticle(), testAnalysis()); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	key := "articles/2026/08/art-1.json"
	if _, ok := blobs.objects[key]; !ok {
		t.Fatalf("expected object under %s, have %v", key, blobs.objects)
	}

	record := counters.quota(t)
	if record.ClassAOps != 1 {
		t.Fatalf("class A ops = %d, want 1", record.ClassAOps)
	}
	if record.ArchivedCount != 1 {
		t.Fatalf("archived count = %d, want 1", record.ArchivedCount)
	}
	if record.StorageGiB <= 0 {
		t.Fatalf("storage should have grown, got %f", record.StorageGiB)
	}
	if record.Status != QuotaHealthy {
		t.Fatalf("status = %s, want %s", record.Status, QuotaHealthy)
	}
}

func TestPutRejectsOversizedBeforeAnyCall(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	article := testArticle()
	article.Body = strings.Repeat("x", 250*1024)

	err := store.Put(context.Background(), article, testAnalysis())
	var sizeErr *SizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected SizeError, got %v", err)
	}

	if blobs.puts != 0 {
		t.Fatalf("blob store touched on oversized write: %d puts", blobs.puts)
	}
	if counters.gets != 0 || counters.puts != 0 {
		t.Fatalf("quota touched on oversized write: %d gets %d puts", counters.gets, counters.puts)
	}
}

func TestPutSizeCapAppliesToWrittenBytes(t *testing.T) {
	t.Parallel()

	article := testArticle()
	analysis := testAnalysis()
	archivedAt := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	// Length of the document before its own size is embedded; the final
	// document is a few bytes longer once size_bytes carries a real value.
	first, err := json.Marshal(domain.ArchivedArticle{
		ID:          article.ID,
		Title:       article.Title,
		Body:        article.Body,
		URL:         article.URL,
		Source:      article.Source,
		PublishedAt: article.PublishedAt,
		Analysis:    analysis,
		ArchivedAt:  archivedAt,
	})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	limits := testLimits()
	limits.MaxObjectBytes = int64(len(first))
	store := NewStore(blobs, counters, limits, "articles", 40*24*time.Hour, nil)
	store.now = func() time.Time { return archivedAt }

	err = store.Put(context.Background(), article, analysis)
	var sizeErr *SizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected SizeError for document at the cap boundary, got %v", err)
	}
	if blobs.puts != 0 {
		t.Fatalf("blob store touched on oversized write: %d puts", blobs.puts)
	}
}

func TestPutRejectsWhenStorageQuotaExhausted(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	seed, _ := json.Marshal(QuotaRecord{Month: "2026-09", StorageGiB: 8.5})
	counters.values["archive:quota:2026-09"] = seed

	err := store.Put(context.Background(), testArticle(), testAnalysis())
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if quotaErr.Resource != "storage" {
		t.Fatalf("resource = %s, want storage", quotaErr.Resource)
	}

	if blobs.puts != 0 {
		t.Fatalf("blob store touched on quota rejection")
	}
	record := counters.quota(t)
	if record.StorageGiB != 8.5 {
		t.Fatalf("storage counter changed on rejection: %f", record.StorageGiB)
	}
}

func TestGetReturnsNilForMissingKey(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	snapshot, err := store.Get(context.Background(), "missing", time.Now())
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot, got %+v", snapshot)
	}

	record := counters.quota(t)
	if record.ClassBOps != 1 {
		t.Fatalf("class B ops = %d, want 1", record.ClassBOps)
	}
}

func TestGetRoundTrip(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	article := testArticle()
	if err := store.Put(context.Background(), article, testAnalysis()); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	snapshot, err := store.Get(context.Background(), article.ID, article.PublishedAt)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if snapshot == nil {
		t.Fatalf("expected snapshot, got nil")
	}
	if snapshot.ID != article.ID || snapshot.Analysis.Category != domain.CategoryRansomware {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestGetRejectsWhenClassBExhausted(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	seed, _ := json.Marshal(QuotaRecord{Month: "2026-09", ClassBOps: 8_000_000})
	counters.values["archive:quota:2026-09"] = seed

	_, err := store.Get(context.Background(), "anything", time.Now())
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
}

func TestDeleteMissingKeyIsIdempotent(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	seed, _ := json.Marshal(QuotaRecord{Month: "2026-09", StorageGiB: 1.5, ArchivedCount: 3})
	counters.values["archive:quota:2026-09"] = seed

	if err := store.Delete(context.Background(), "ghost", time.Now()); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if blobs.deletes != 1 {
		t.Fatalf("delete call not issued: %d", blobs.deletes)
	}
	record := counters.quota(t)
	if record.StorageGiB != 1.5 {
		t.Fatalf("storage changed on missing-key delete: %f", record.StorageGiB)
	}
	if record.ArchivedCount != 3 {
		t.Fatalf("archived count changed on missing-key delete: %d", record.ArchivedCount)
	}
	if record.ClassAOps != 1 {
		t.Fatalf("class A ops = %d, want 1", record.ClassAOps)
	}
}

func TestDeleteDecrementsStorageByFreedSize(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	article := testArticle()
	if err := store.Put(context.Background(), article, testAnalysis()); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if counters.quota(t).StorageGiB <= 0 {
		t.Fatalf("expected storage to grow after put")
	}

	if err := store.Delete(context.Background(), article.ID, article.PublishedAt); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	record := counters.quota(t)
	if record.StorageGiB != 0 {
		t.Fatalf("storage = %f after delete, want 0", record.StorageGiB)
	}
	if record.ArchivedCount != 0 {
		t.Fatalf("archived count = %d after delete, want 0", record.ArchivedCount)
	}
}

func TestListCountsAsClassAAndSurfacesTruncation(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobStore()
	counters := newFakeCounterStore()
	store := testStore(blobs, counters)

	for i := 0; i < 3; i++ {
		blobs.objects[fmt.Sprintf("articles/2026/08/a-%d.json", i)] = []byte("{}")
	}

	keys, truncated, err := store.List(context.Background(), "articles/2026/08/", 2)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(keys) != 2 || !truncated {
		t.Fatalf("expected 2 truncated keys, got %d truncated=%v", len(keys), truncated)
	}
	if counters.quota(t).ClassAOps != 1 {
		t.Fatalf("list should count as class A")
	}
}

func TestQuotaStatusBuckets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		storage float64
		want    string
	}{
		{"healthy", 1, QuotaHealthy},
		{"warning at 70 percent", 5.7, QuotaWarning},
		{"critical at 80 percent", 6.5, QuotaCritical},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			record := QuotaRecord{StorageGiB: tc.storage}
			record.recomputeStatus(testLimits())
			if record.Status != tc.want {
				t.Fatalf("status = %s, want %s", record.Status, tc.want)
			}
		})
	}
}
