// Package postgres provides Postgres-backed persistence for sources,
// articles, and ingestion run records.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/ingest"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store implements ingest.Store on top of a pgx connection pool.
type Store struct {
	pool   pool
	logger *zap.Logger
}

// New connects to Postgres using the provided config.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
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
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, logger: logger}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, logger *zap.Logger) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: p, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Begin opens a transaction-backed session.
func (s *Store) Begin(ctx context.Context) (ingest.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify("begin session", err)
	}
	return &session{tx: tx, logger: s.logger}, nil
}

// ListActiveSourceIDs returns the ids of sources marked active, oldest id first.
func (s *Store) ListActiveSourceIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM sources WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, classify("list active sources", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list active sources", err)
	}
	return ids, nil
}

// ListRuns returns the most recent run records, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ingest.RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, url, status, created_count, skipped_count, error_message, created_at
		   FROM ingest_runs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify("list runs", err)
	}
	defer rows.Close()
	var out []ingest.RunRecord
	for rows.Next() {
		var (
			rec ingest.RunRecord
			msg *string
		)
		if err := rows.Scan(&rec.ID, &rec.SourceID, &rec.URL, &rec.Status,
			&rec.Created, &rec.Skipped, &msg, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		if msg != nil {
			rec.ErrorMessage = *msg
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list runs", err)
	}
	return out, nil
}

type session struct {
	tx     pgx.Tx
	logger *zap.Logger
	done   bool
}

func (se *session) GetSource(ctx context.Context, id int64) (ingest.Source, error) {
	var src ingest.Source
	err := se.tx.QueryRow(ctx,
		`SELECT id, name, url, category, is_active, last_fetch_at, fetch_interval_seconds
		   FROM sources WHERE id = $1`, id).
		Scan(&src.ID, &src.Name, &src.URL, &src.Category, &src.IsActive,
			&src.LastFetchAt, &src.FetchInterval)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Source{}, fmt.Errorf("source %d: %w", id, ingest.ErrSourceNotFound)
	}
	if err != nil {
		return ingest.Source{}, classify("get source", err)
	}
	return src, nil
}

func (se *session) ArticleExists(ctx context.Context, canonicalURL string) (bool, error) {
	var exists bool
	err := se.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE canonical_url = $1)`, canonicalURL).
		Scan(&exists)
	if err != nil {
		return false, classify("article exists", err)
	}
	return exists, nil
}

func (se *session) RecentFingerprints(ctx context.Context, limit int) ([]uint64, error) {
	rows, err := se.tx.Query(ctx,
		`SELECT simhash FROM articles ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify("recent fingerprints", err)
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("scan simhash: %w", err)
		}
		v, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			se.logger.Warn("skipping malformed simhash", zap.String("value", hex))
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("recent fingerprints", err)
	}
	return out, nil
}

func (se *session) StageArticle(ctx context.Context, article ingest.Article) error {
	_, err := se.tx.Exec(ctx,
		`INSERT INTO articles (
			title, body, canonical_url, source_name, published_at, category,
			url_hash, simhash, summary, keywords, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		article.Title,
		article.Body,
		article.CanonicalURL,
		article.SourceName,
		article.PublishedAt,
		article.Category,
		article.URLHash,
		fmt.Sprintf("%016x", article.Simhash),
		article.Summary,
		strings.Join(article.Keywords, ","),
		article.CreatedAt,
	)
	if err != nil {
		return classify("stage article", err)
	}
	return nil
}

func (se *session) TouchSourceFetched(ctx context.Context, id int64, at time.Time) error {
	_, err := se.tx.Exec(ctx,
		`UPDATE sources SET last_fetch_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return classify("touch source", err)
	}
	return nil
}

func (se *session) InsertRunRecord(ctx context.Context, record ingest.RunRecord) error {
	var msg *string
	if record.ErrorMessage != "" {
		msg = &record.ErrorMessage
	}
	_, err := se.tx.Exec(ctx,
		`INSERT INTO ingest_runs (
			id, source_id, url, status, created_count, skipped_count, error_message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		record.ID,
		record.SourceID,
		record.URL,
		record.Status,
		record.Created,
		record.Skipped,
		msg,
		record.CreatedAt,
	)
	if err != nil {
		return classify("insert run record", err)
	}
	return nil
}

func (se *session) Commit(ctx context.Context) error {
	se.done = true
	if err := se.tx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (se *session) Rollback(ctx context.Context) error {
	se.done = true
	if err := se.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return classify("rollback", err)
	}
	return nil
}

func (se *session) Close(ctx context.Context) {
	if se.done {
		return
	}
	se.done = true
	if err := se.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		se.logger.Warn("session rollback on close failed", zap.Error(err))
	}
}

// classify maps connection-loss style failures to ingest.ErrSessionClosed so
// callers can distinguish transient session death from permanent errors.
func classify(op string, err error) error {
	if isClosed(err) {
		return fmt.Errorf("%s: %w", op, ingest.ErrSessionClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isClosed(err error) bool {
	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conn closed") ||
		strings.Contains(msg, "connection is closed") ||
		strings.Contains(msg, "closed pool")
}
