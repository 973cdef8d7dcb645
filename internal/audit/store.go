// Package audit persists tool invocation records in a local SQLite database.
// Records carry metadata only: tool name, outcome, failure message, timing.
// Result payloads and argument values are never stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"toolbridge/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.AuditSink using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id           TEXT PRIMARY KEY,
		tool         TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		message      TEXT,
		duration_ms  INTEGER NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_time ON invocations(created_at);
	CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one invocation record.
func (s *SQLiteStore) Record(ctx context.Context, entry domain.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, tool, outcome, message, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Tool, entry.Outcome, entry.Message, entry.DurationMS, entry.CreatedAt,
	)
	return err
}

// Recent returns the newest records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool, outcome, message, duration_ms, created_at
		 FROM invocations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var message sql.NullString
		if err := rows.Scan(&e.ID, &e.Tool, &e.Outcome, &message, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByOutcome aggregates the stored records per outcome.
func (s *SQLiteStore) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM invocations GROUP BY outcome`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.AuditSink = (*SQLiteStore)(nil)
