package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_results (
	id               BIGSERIAL PRIMARY KEY,
	content_hash     TEXT NOT NULL UNIQUE,
	entity_name      TEXT NOT NULL,
	adapter          TEXT NOT NULL,
	platform         TEXT NOT NULL,
	content          TEXT NOT NULL,
	url              TEXT NOT NULL,
	source_type      TEXT NOT NULL DEFAULT '',
	severity         TEXT NOT NULL DEFAULT 'unknown',
	sentiment        DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_type       TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	matched_text     TEXT NOT NULL DEFAULT '',
	risk_terms       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_scan_results_entity ON scan_results (entity_name, created_at DESC);

CREATE TABLE IF NOT EXISTS quarantine_records (
	id           UUID PRIMARY KEY,
	run_id       TEXT NOT NULL,
	entity_name  TEXT NOT NULL,
	adapter      TEXT NOT NULL,
	failed_stage TEXT NOT NULL,
	kind         TEXT NOT NULL,
	reason       TEXT NOT NULL,
	item         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quarantine_entity ON quarantine_records (entity_name, created_at DESC);`

// Store persists accepted items and quarantine records in PostgreSQL. It
// implements the pipeline sink and quarantine contracts.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// New connects to PostgreSQL and optionally creates the schema
func New(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	s := &Store{
		db:     db,
		logger: log.WithComponent("store"),
	}

	if err := s.initialize(cfg.EnsureSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	s.logger.Info("Result store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return s, nil
}

func (s *Store) initialize(ensureSchema bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if !ensureSchema {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug("Database schema ensured")
	return nil
}

// Store inserts an accepted item. Items already stored for the same entity
// with the same URL and content are skipped.
func (s *Store) Store(ctx context.Context, item *mention.Item) error {
	row, err := newResultRow(item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scan_results (
			content_hash, entity_name, adapter, platform, content, url, source_type,
			severity, sentiment, match_type, confidence_score, matched_text, risk_terms
		) VALUES (
			:content_hash, :entity_name, :adapter, :platform, :content, :url, :source_type,
			:severity, :sentiment, :match_type, :confidence_score, :matched_text, :risk_terms
		)
		ON CONFLICT (content_hash) DO NOTHING`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.Error("Failed to insert scan result",
			zap.Error(err),
			zap.String("adapter", row.Adapter),
			zap.String("entity", row.EntityName))
		return fmt.Errorf("failed to insert scan result: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("Duplicate scan result skipped", zap.String("content_hash", row.ContentHash))
	}

	return nil
}

// Record inserts a quarantine record
func (s *Store) Record(ctx context.Context, r quarantine.Record) error {
	row, err := newQuarantineRow(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quarantine_records (
			id, run_id, entity_name, adapter, failed_stage, kind, reason, item, created_at
		) VALUES (
			:id, :run_id, :entity_name, :adapter, :failed_stage, :kind, :reason, :item, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.Error("Failed to insert quarantine record",
			zap.Error(err),
			zap.String("record_id", row.ID),
			zap.String("stage", row.FailedStage))
		return fmt.Errorf("failed to insert quarantine record: %w", err)
	}

	return nil
}

// List returns stored quarantine records, newest first. Rows with
// an unknown stage are skipped.
func (s *Store) List(ctx context.Context, f quarantine.Filter) ([]quarantine.Record, error) {
	query := `
		SELECT id, run_id, entity_name, adapter, failed_stage, kind, reason, item, created_at
		FROM quarantine_records
		WHERE ($1 = '' OR entity_name = $1) AND ($2 = '' OR failed_stage = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows []QuarantineRow
	if err := s.db.SelectContext(ctx, &rows, query, f.EntityName, string(f.Stage), limit); err != nil {
		return nil, fmt.Errorf("failed to list quarantine records: %w", err)
	}

	records := make([]quarantine.Record, 0, len(rows))
	for i := range rows {
		record, err := rows[i].toRecord()
		if err != nil {
			s.logger.Warn("Skipping invalid quarantine row", zap.String("id", rows[i].ID), zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// RecentResults returns the latest accepted items for an entity
func (s *Store) RecentResults(ctx context.Context, entityName string, limit int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []ResultRow
	query := `
		SELECT id, content_hash, entity_name, adapter, platform, content, url, source_type,
			severity, sentiment, match_type, confidence_score, matched_text, risk_terms, created_at
		FROM scan_results
		WHERE entity_name = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := s.db.SelectContext(ctx, &rows, query, entityName, limit); err != nil {
		return nil, fmt.Errorf("failed to list scan results: %w", err)
	}
	return rows, nil
}

// GetStats returns row counts for results and quarantine
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{QuarantineByStage: make(map[string]int64)}

	if err := s.db.GetContext(ctx, &stats.Results, "SELECT COUNT(*) FROM scan_results"); err != nil {
		return nil, fmt.Errorf("failed to count scan results: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT failed_stage, COUNT(*) FROM quarantine_records GROUP BY failed_stage")
	if err != nil {
		return nil, fmt.Errorf("failed to count quarantine records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage string
		var count int64
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine count: %w", err)
		}
		stats.QuarantineByStage[stage] = count
		stats.Quarantined += count
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL hides the password in a database URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}
