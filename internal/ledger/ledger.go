package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/rs/zerolog"
)

const defaultTimeout = 5 * time.Second

// Run is one recorded pipeline run
type Run struct {
	ID         string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	Segments   int
	Artifacts  []string
	Error      string
}

// Ledger stores a history of runs in SQLite
type Ledger struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the ledger database at path
func Open(ctx context.Context, logger zerolog.Logger, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	// batches record from several workers
	db.SetMaxOpenConns(1)

	l := &Ledger{
		db:     db,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
	if err := l.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	l.logger.Debug().Str("path", path).Msg("ledger opened")
	return l, nil
}

func (l *Ledger) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		state TEXT NOT NULL,
		segments INTEGER NOT NULL DEFAULT 0,
		artifacts TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Record stores r, replacing any run with the same ID
func (l *Ledger) Record(ctx context.Context, r Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, source, started_at, finished_at, state, segments, artifacts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.State, r.Segments, strings.Join(r.Artifacts, "\n"), r.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. A non-empty source filters by path.
func (l *Ledger) Recent(ctx context.Context, source string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, source, started_at, finished_at, state, segments, artifacts, error FROM runs`
	args := []any{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
			artifacts         string
		)
		if err := rows.Scan(&r.ID, &r.Source, &started, &finished, &r.State, &r.Segments, &artifacts, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		if artifacts != "" {
			r.Artifacts = strings.Split(artifacts, "\n")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}
