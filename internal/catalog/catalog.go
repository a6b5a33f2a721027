// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists a SQLite index of converted sessions: where
// each came from, where its Markdown went, its header statistics, and a
// full-text index over the rendered content. The catalog is a side
// index; callers treat its failures as warnings, never as conversion
// failures.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/chatmd/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "catalog.db"
)

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	catalogDir string
	maxResults int
}

// NewStore opens or creates the catalog database at
// catalogDir/index/catalog.db, creating the schema if needed.
func NewStore(cfg types.CatalogConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.CatalogDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, catalogDir: cfg.CatalogDir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			source_path TEXT NOT NULL,
			markdown_path TEXT NOT NULL,
			requester TEXT,
			responder TEXT,
			turns INTEGER,
			user_turns INTEGER,
			assistant_turns INTEGER,
			code_blocks INTEGER,
			code_lines INTEGER,
			converted_at TEXT,
			content TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT,
			finished_at TEXT,
			root TEXT,
			converted INTEGER,
			skipped INTEGER,
			failed INTEGER
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='sessions_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE sessions_fts USING fts5(content, content=sessions, content_rowid=rowid)`,
			`CREATE TRIGGER sessions_ai AFTER INSERT ON sessions BEGIN
				INSERT INTO sessions_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER sessions_ad AFTER DELETE ON sessions BEGIN
				INSERT INTO sessions_fts(sessions_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER sessions_au AFTER UPDATE ON sessions BEGIN
				INSERT INTO sessions_fts(sessions_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO sessions_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// RecordSession upserts one converted session and its rendered content.
// Re-converting a session replaces its row; the FTS triggers keep the
// index in step.
func (s *Store) RecordSession(ctx context.Context, sum types.SessionSummary, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete-then-insert rather than upsert so the FTS delete trigger
	// sees the old content.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sum.ID); err != nil {
		return fmt.Errorf("deleting old session row: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, source_path, markdown_path, requester, responder,
			turns, user_turns, assistant_turns, code_blocks, code_lines, converted_at, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.SourcePath, sum.MarkdownPath, sum.Requester, sum.Responder,
		sum.Turns, sum.UserTurns, sum.AssistantTurns, sum.CodeBlocks, sum.CodeLines,
		sum.ConvertedAt.UTC().Format(time.RFC3339Nano), content,
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sum.ID, err)
	}

	return tx.Commit()
}

// Run records one batch conversion outcome.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Root       string
	Converted  int
	Skipped    int
	Failed     int
}

// RecordRun stores a batch outcome and returns its generated ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, root, converted, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Root, run.Converted, run.Skipped, run.Failed,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return run.ID, nil
}

const sessionColumns = `id, source_path, markdown_path, requester, responder,
	turns, user_turns, assistant_turns, code_blocks, code_lines, converted_at`

// List returns cataloged sessions, most recently converted first.
func (s *Store) List(ctx context.Context) ([]types.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY converted_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Search runs an FTS5 match over the rendered content and returns the
// owning sessions, best match first, capped at the configured maximum.
func (s *Store) Search(ctx context.Context, query string) ([]types.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 JOIN sessions_fts ON sessions_fts.rowid = sessions.rowid
		 WHERE sessions_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, query, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching sessions: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]types.SessionSummary, error) {
	var out []types.SessionSummary
	for rows.Next() {
		var sum types.SessionSummary
		var convertedAt string
		if err := rows.Scan(&sum.ID, &sum.SourcePath, &sum.MarkdownPath,
			&sum.Requester, &sum.Responder, &sum.Turns, &sum.UserTurns,
			&sum.AssistantTurns, &sum.CodeBlocks, &sum.CodeLines, &convertedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, convertedAt); err == nil {
			sum.ConvertedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
