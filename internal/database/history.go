package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/plugcrawler/internal/model"
)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "plugcrawler.db"

// History is the SQLite run history.
type History struct {
	db     *sql.DB
	dbPath string
}

// Options configures History behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*History, error) {
	dbPath := filepath.Join(dbDir, DefaultFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a file that is not there.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &History{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		seeds TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		page_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		results TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		title TEXT,
		error TEXT,
		content_hash TEXT,
		extensions TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Run is one saved crawl.
type Run struct {
	ID          string
	Name        string
	Seeds       []string
	StartedAt   time.Time
	FinishedAt  time.Time
	Pages       int
	Failures    int
	Interrupted bool

	// Results is the trace of the run.
	Results []string
}

// Page is one saved page of a run.
type Page struct {
	URL         string
	Depth       int
	Title       string
	Error       string
	ContentHash string
	Extensions  []model.ExtensionOutput
}

// SaveRun stores out and all of its pages in one transaction and returns
// the new run ID. interrupted marks runs that ended on a timeout or signal.
func (h *History) SaveRun(ctx context.Context, out *model.Output, interrupted bool) (string, error) {
	seedsJSON, err := json.Marshal(nonNil(out.Seeds))
	if err != nil {
		return "", fmt.Errorf("failed to serialize seeds: %w", err)
	}
	resultsJSON, err := json.Marshal(nonNil(out.Lines))
	if err != nil {
		return "", fmt.Errorf("failed to serialize results: %w", err)
	}

	id := uuid.NewString()
	pages, failures := out.Stats()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, name, seeds, started_at, finished_at, page_count, failure_count, interrupted, results)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		out.Name,
		string(seedsJSON),
		formatTimestamp(out.StartedAt),
		formatTimestamp(out.FinishedAt),
		pages,
		failures,
		interrupted,
		string(resultsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, seq, url, depth, title, error, content_hash, extensions)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	var seq int
	var walkErr error
	out.Walk(func(p *model.PageResult) {
		if walkErr != nil {
			return
		}
		extJSON, err := json.Marshal(p.Extensions)
		if err != nil {
			walkErr = fmt.Errorf("failed to serialize extensions of %s: %w", p.URL, err)
			return
		}
		if _, err := stmt.ExecContext(ctx, id, seq, p.URL, p.Depth, p.Title, p.Error, p.ContentHash, string(extJSON)); err != nil {
			walkErr = fmt.Errorf("failed to insert page %s: %w", p.URL, err)
			return
		}
		seq++
	})
	if walkErr != nil {
		return "", walkErr
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs first. An empty name lists every
// crawler; limit <= 0 means no limit.
func (h *History) ListRuns(ctx context.Context, name string, limit int) ([]Run, error) {
	query := `
	SELECT id, name, seeds, started_at, finished_at, page_count, failure_count, interrupted, results
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)
	if name != "" {
		query += " AND name = ?"
		args = append(args, name)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID or ErrRunNotFound.
func (h *History) GetRun(ctx context.Context, id string) (*Run, error) {
	row := h.db.QueryRowContext(ctx, `
	SELECT id, name, seeds, started_at, finished_at, page_count, failure_count, interrupted, results
	FROM runs
	WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// GetRunPages returns the pages of a run in crawl pre-order.
func (h *History) GetRunPages(ctx context.Context, runID string) ([]Page, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, depth, title, error, content_hash, extensions
	FROM pages
	WHERE run_id = ?
	ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		var title, errText, hash, extJSON sql.NullString
		if err := rows.Scan(&p.URL, &p.Depth, &title, &errText, &hash, &extJSON); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Title = title.String
		p.Error = errText.String
		p.ContentHash = hash.String
		if extJSON.Valid && extJSON.String != "" && extJSON.String != "null" {
			if err := json.Unmarshal([]byte(extJSON.String), &p.Extensions); err != nil {
				return nil, fmt.Errorf("failed to parse extensions of %s: %w", p.URL, err)
			}
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ChangedSince reports whether contentHash differs from the digest of the
// most recently saved visit of url. A URL never seen before counts as
// changed. Call it before saving the current run.
func (h *History) ChangedSince(ctx context.Context, url, contentHash string) (bool, error) {
	var previous string
	err := h.db.QueryRowContext(ctx, `
	SELECT content_hash FROM pages
	WHERE url = ? AND content_hash != ''
	ORDER BY id DESC
	LIMIT 1
	`, url).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up previous visit: %w", err)
	}
	return previous != contentHash, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var seedsJSON, resultsJSON, started, finished string
	err := s.Scan(
		&run.ID,
		&run.Name,
		&seedsJSON,
		&started,
		&finished,
		&run.Pages,
		&run.Failures,
		&run.Interrupted,
		&resultsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seeds: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// timestampLayout is fixed width so stored times sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
