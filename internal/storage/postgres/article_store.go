// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// PoolConfig controls the Postgres connection pool.
type PoolConfig struct {
	DSN      string
	MaxConns int32
}

// dbPool is the subset of pgxpool.Pool the stores use, satisfied by
// pgxmock pools in tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// NewPool connects a pgx pool from config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// ArticleStore implements news.ArticleStore on Postgres.
// It assumes a table schema like:
//
//	CREATE TABLE articles (
//	    id BIGSERIAL PRIMARY KEY,
//	    title TEXT NOT NULL,
//	    source_url TEXT NOT NULL UNIQUE,
//	    source_domain TEXT NOT NULL,
//	    raw_content TEXT,
//	    category TEXT,
//	    content_fingerprint TEXT UNIQUE,
//	    fetch_status TEXT NOT NULL,
//	    summary TEXT,
//	    summary_error TEXT,
//	    summary_style TEXT,
//	    cluster_id TEXT,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    processed_at TIMESTAMPTZ
//	);
type ArticleStore struct {
	pool dbPool
}

// NewArticleStore wraps an existing pool.
func NewArticleStore(pool dbPool) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ExistsBySourceURL reports whether an article with the URL is persisted.
func (s *ArticleStore) ExistsBySourceURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE source_url = $1)`, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by source_url: %w", err)
	}
	return exists, nil
}

// ExistsByFingerprint reports whether the content fingerprint is persisted.
func (s *ArticleStore) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE content_fingerprint = $1)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by fingerprint: %w", err)
	}
	return exists, nil
}

const insertArticleSQL = `
INSERT INTO articles (
    title, source_url, source_domain, raw_content, category,
    content_fingerprint, fetch_status, summary_style, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT DO NOTHING`

// InsertBatch persists new articles in one transaction. Rows violating the
// source_url or content_fingerprint uniqueness constraints are rejected
// individually (ON CONFLICT DO NOTHING); the remaining rows still commit.
// A commit failure fails the whole batch.
func (s *ArticleStore) InsertBatch(ctx context.Context, articles []news.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, a := range articles {
		tag, execErr := tx.Exec(ctx, insertArticleSQL,
			a.Title,
			a.SourceURL,
			a.SourceDomain,
			a.RawContent,
			a.Category,
			nullable(a.ContentFingerprint),
			string(a.FetchStatus),
			nullable(string(a.SummaryStyle)),
			a.CreatedAt,
		)
		if execErr != nil {
			return 0, fmt.Errorf("insert article %s: %w", a.SourceURL, execErr)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert batch: %w", err)
	}
	return inserted, nil
}

const articleColumns = `
    id, title, source_url, source_domain, raw_content, category,
    content_fingerprint, fetch_status, summary, summary_error,
    summary_style, cluster_id, created_at, processed_at`

// Unsummarized returns up to limit articles lacking a summary, ordered by id.
func (s *ArticleStore) Unsummarized(ctx context.Context, limit int) ([]news.Article, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+articleColumns+`
         FROM articles WHERE summary IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select unsummarized: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// SetSummary records a successful summarization, clearing any prior error.
func (s *ArticleStore) SetSummary(
	ctx context.Context, id int64, summary string, style news.SummaryStyle, at time.Time,
) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE articles
         SET summary = $2, summary_error = NULL, summary_style = $3, processed_at = $4
         WHERE id = $1`,
		id, summary, string(style), at)
	if err != nil {
		return fmt.Errorf("set summary for %d: %w", id, err)
	}
	return nil
}

// SetSummaryError records a failed attempt without touching any prior summary.
func (s *ArticleStore) SetSummaryError(ctx context.Context, id int64, message string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE articles SET summary_error = $2, processed_at = $3 WHERE id = $1`,
		id, message, at)
	if err != nil {
		return fmt.Errorf("set summary error for %d: %w", id, err)
	}
	return nil
}

// SummarizedSince returns summarized articles created at or after the cutoff.
func (s *ArticleStore) SummarizedSince(ctx context.Context, cutoff time.Time) ([]news.Article, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+articleColumns+`
         FROM articles
         WHERE created_at >= $1 AND summary IS NOT NULL
         ORDER BY id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select summarized since: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// AssignClusters writes cluster ids for the whole cohort in one transaction.
// Ids are updated in ascending article order so runs are deterministic.
func (s *ArticleStore) AssignClusters(ctx context.Context, assignments map[int64]string) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin assign clusters: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE articles SET cluster_id = $2 WHERE id = $1`,
			id, assignments[id]); err != nil {
			return fmt.Errorf("assign cluster for %d: %w", id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit assign clusters: %w", err)
	}
	return nil
}

// digestScanCap bounds how many clustered rows one digest query pulls.
const digestScanCap = 200

// ClusteredSince returns clustered articles created at or after the cutoff,
// newest first, optionally filtered by category and source domain.
func (s *ArticleStore) ClusteredSince(
	ctx context.Context, cutoff time.Time, categories, sources []string,
) ([]news.Article, error) {
	query := `SELECT` + articleColumns + `
         FROM articles
         WHERE cluster_id IS NOT NULL AND created_at >= $1`
	args := []any{cutoff}
	if len(categories) > 0 {
		args = append(args, categories)
		query += fmt.Sprintf(" AND category = ANY($%d)", len(args))
	}
	if len(sources) > 0 {
		args = append(args, sources)
		query += fmt.Sprintf(" AND source_domain = ANY($%d)", len(args))
	}
	args = append(args, digestScanCap)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select clustered since: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func scanArticles(rows pgx.Rows) ([]news.Article, error) {
	var articles []news.Article
	for rows.Next() {
		var (
			a           news.Article
			fingerprint *string
			style       *string
		)
		if err := rows.Scan(
			&a.ID, &a.Title, &a.SourceURL, &a.SourceDomain, &a.RawContent,
			&a.Category, &fingerprint, &a.FetchStatus, &a.Summary,
			&a.SummaryError, &style, &a.ClusterID, &a.CreatedAt, &a.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if fingerprint != nil {
			a.ContentFingerprint = *fingerprint
		}
		if style != nil {
			a.SummaryStyle = news.SummaryStyle(*style)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
