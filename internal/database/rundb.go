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

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/siteharvest/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "siteharvest.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunDB stores the history of extract runs.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
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

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per extract run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		output_dir TEXT NOT NULL,
		primary_hosts TEXT NOT NULL,
		report_json TEXT NOT NULL,
		routes_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Documents emitted by the live crawl of a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		raw_hash TEXT,
		text_chars INTEGER,
		link_count INTEGER,
		asset_count INTEGER,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Failed fetches of a run
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a stored extract run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	OutputDir  string
	Report     *model.Report
	Routes     *model.Routes
}

// RunMetadata summarizes a run without decoding its routes.
type RunMetadata struct {
	ID           int64
	StartedAt    time.Time
	OutputDir    string
	PrimaryHosts []string
	Pages        int
	Failures     int
}

// PageRecord is a stored crawled page.
type PageRecord struct {
	URL         string
	StatusCode  int
	ContentType string
	Title       string
	RawHash     string
	TextChars   int
	LinkCount   int
	AssetCount  int
}

// SaveRun stores a run with its crawled pages and failures in a single
// transaction and returns the new run ID.
func (rdb *RunDB) SaveRun(ctx context.Context, run *Run, pages []*model.Page, failures []model.CrawlFailure) (int64, error) {
	if run == nil || run.Report == nil || run.Routes == nil {
		return 0, errors.New("run, report and routes are required")
	}

	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	routesJSON, err := json.Marshal(run.Routes)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize routes: %w", err)
	}
	hostsJSON, err := json.Marshal(run.Report.PrimaryHosts)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize primary hosts: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (started_at, finished_at, output_dir, primary_hosts, report_json, routes_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.OutputDir,
		string(hostsJSON),
		string(reportJSON),
		string(routesJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, p := range pages {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, url, status_code, content_type, title, raw_hash, text_chars, link_count, asset_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO NOTHING
		`, id, p.URL, p.StatusCode, p.ContentType, p.Title, p.Hash, p.TextChars(), len(p.Links), len(p.Assets))
		if err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx, `INSERT INTO failures (run_id, url, reason) VALUES (?, ?, ?)`, id, f.URL, f.Reason); err != nil {
			return 0, fmt.Errorf("failed to insert failure %s: %w", f.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = id
	return id, nil
}

// GetRun retrieves a run by ID. It returns ErrRunNotFound if the ID does
// not exist.
func (rdb *RunDB) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := rdb.db.QueryRowContext(ctx, `
	SELECT id, started_at, finished_at, output_dir, report_json, routes_json
	FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRuns returns up to n runs, newest first.
func (rdb *RunDB) LatestRuns(ctx context.Context, n int) ([]*Run, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id, started_at, finished_at, output_dir, report_json, routes_json
	FROM runs ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRuns returns metadata for up to limit runs, newest first. A limit of
// zero or less returns every run.
func (rdb *RunDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := rdb.db.QueryContext(ctx, `
	SELECT r.id, r.started_at, r.output_dir, r.primary_hosts,
		(SELECT COUNT(*) FROM pages p WHERE p.run_id = r.id),
		(SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)
	FROM runs r
	ORDER BY r.id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var (
			meta      RunMetadata
			startedAt string
			hostsJSON string
		)
		if err := rows.Scan(&meta.ID, &startedAt, &meta.OutputDir, &hostsJSON, &meta.Pages, &meta.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		if err := json.Unmarshal([]byte(hostsJSON), &meta.PrimaryHosts); err != nil {
			return nil, fmt.Errorf("failed to parse primary hosts of run %d: %w", meta.ID, err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

// GetPages returns the crawled pages of a run ordered by URL.
func (rdb *RunDB) GetPages(ctx context.Context, runID int64) ([]PageRecord, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT url, status_code, content_type, title, raw_hash, text_chars, link_count, asset_count
	FROM pages WHERE run_id = ? ORDER BY url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var p PageRecord
		if err := rows.Scan(&p.URL, &p.StatusCode, &p.ContentType, &p.Title, &p.RawHash, &p.TextChars, &p.LinkCount, &p.AssetCount); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeleteRun removes a run and its pages and failures.
func (rdb *RunDB) DeleteRun(ctx context.Context, id int64) error {
	result, err := rdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                    Run
		startedAt, finishedAt  string
		reportJSON, routesJSON string
	)
	if err := row.Scan(&run.ID, &startedAt, &finishedAt, &run.OutputDir, &reportJSON, &routesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)

	run.Report = &model.Report{}
	if err := json.Unmarshal([]byte(reportJSON), run.Report); err != nil {
		return nil, fmt.Errorf("failed to parse report of run %d: %w", run.ID, err)
	}
	run.Routes = &model.Routes{}
	if err := json.Unmarshal([]byte(routesJSON), run.Routes); err != nil {
		return nil, fmt.Errorf("failed to parse routes of run %d: %w", run.ID, err)
	}
	return &run, nil
}

// timestampFormats lists formats SQLite may hand back for DATETIME columns.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time if s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
