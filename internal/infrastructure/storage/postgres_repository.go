package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// PostgresRepository persists analysis summaries and indicators.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.AnalysisRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// AlreadyProcessed returns a map with IDs that already have a summary row.
func (r *PostgresRepository) AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT article_id FROM analysis_summaries WHERE article_id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// SaveAnalysis upserts the flattened analysis summary row for an article.
func (r *PostgresRepository) SaveAnalysis(ctx context.Context, article domain.Article, result *domain.AnalysisResult, confidence float64) error {
	if r.db == nil || result == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("analysis_summaries").
		Columns("article_id", "title", "source", "url", "published_at",
			"summary", "key_points", "category", "severity",
			"sectors", "threat_actors", "confidence", "strategy", "status").
		Values(article.ID, article.Title, article.Source, article.URL, article.PublishedAt,
			result.Summary, pq.StringArray(result.KeyPoints), string(result.Category), string(result.Severity),
			pq.StringArray(result.Sectors), pq.StringArray(result.ThreatActors), confidence, string(result.Strategy),
			string(domain.StatusOf(result))).
		Suffix(`ON CONFLICT (article_id) DO UPDATE
            SET summary = EXCLUDED.summary,
                key_points = EXCLUDED.key_points,
                category = EXCLUDED.category,
                severity = EXCLUDED.severity,
                sectors = EXCLUDED.sectors,
                threat_actors = EXCLUDED.threat_actors,
                confidence = EXCLUDED.confidence,
                strategy = EXCLUDED.strategy,
                status = EXCLUDED.status,
                updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	return nil
}

// SaveIndicators inserts one row per indicator and returns how many insert
// statements were issued. Duplicate indicators are expected across articles
// and swallowed via ON CONFLICT rather than aborting the batch.
func (r *PostgresRepository) SaveIndicators(ctx context.Context, articleID string, iocs domain.IOCSet) (int, error) {
	rows := IndicatorRows(iocs)
	if r.db == nil || len(rows) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, row := range rows {
		query, args, err := r.builder.
			Insert("indicators").
			Columns("article_id", "type", "value", "first_seen", "last_seen").
			Values(articleID, row.Type, row.Value, sq.Expr("NOW()"), sq.Expr("NOW()")).
			Suffix(`ON CONFLICT (type, value) DO UPDATE SET last_seen = NOW()`).
			ToSql()
		if err != nil {
			return inserted, fmt.Errorf("build indicator insert: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return inserted, fmt.Errorf("insert indicator %s=%s: %w", row.Type, row.Value, err)
		}
		inserted++
	}

	return inserted, nil
}

// IndicatorRow is one flattened indicator destined for the relational store.
type IndicatorRow struct {
	Type  string
	Value string
}

// IndicatorRows flattens the six typed lists into insertable rows.
func IndicatorRows(iocs domain.IOCSet) []IndicatorRow {
	var rows []IndicatorRow
	appendAll := func(kind string, values []string) {
		for _, value := range values {
			rows = append(rows, IndicatorRow{Type: kind, Value: value})
		}
	}

	appendAll("ip", iocs.IPs)
	appendAll("domain", iocs.Domains)
	appendAll("cve", iocs.CVEs)
	appendAll("hash", iocs.Hashes)
	appendAll("url", iocs.URLs)
	appendAll("email", iocs.Emails)

	return rows
}
