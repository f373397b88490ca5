// Package storage persists runs, pages and classification results in
// SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/demoforge/mirror/internal/classify"
)

// Database handles all database operations.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDatabase opens (and initializes) the database at path.
func NewDatabase(path string) (*Database, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite supports only one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// --- Run operations ---

// CreateRun inserts a new run row.
func (d *Database) CreateRun(run *Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO runs (run_id, seed_url, site_domain, site_type, strategy, phase)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.SeedURL, run.SiteDomain, run.SiteType, run.Strategy, run.Phase)
	return err
}

// UpdateRunProgress refreshes the mutable progress columns of a run.
func (d *Database) UpdateRunProgress(run *Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		UPDATE runs SET
			phase = ?, pages_crawled = ?, pages_failed = ?, total_known_urls = ?,
			coverage_pct = ?, average_quality = ?, plateau_detected = ?, stop_reason = ?
		WHERE run_id = ?
	`, run.Phase, run.PagesCrawled, run.PagesFailed, run.TotalKnownURLs,
		run.CoveragePct, run.AverageQuality, run.PlateauDetected, run.StopReason, run.RunID)
	return err
}

// FinishRun stamps a run's terminal state.
func (d *Database) FinishRun(runID, phase, stopReason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		UPDATE runs SET phase = ?, stop_reason = ?, finished_at = CURRENT_TIMESTAMP
		WHERE run_id = ?
	`, phase, stopReason, runID)
	return err
}

// GetRun retrieves one run, or nil when absent.
func (d *Database) GetRun(runID string) (*Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var run Run
	var finished sql.NullTime
	err := d.db.QueryRow(`
		SELECT run_id, seed_url, site_domain, site_type, strategy, phase,
			pages_crawled, pages_failed, total_known_urls, coverage_pct,
			average_quality, plateau_detected, stop_reason, started_at, finished_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(
		&run.RunID, &run.SeedURL, &run.SiteDomain, &run.SiteType, &run.Strategy, &run.Phase,
		&run.PagesCrawled, &run.PagesFailed, &run.TotalKnownURLs, &run.CoveragePct,
		&run.AverageQuality, &run.PlateauDetected, &run.StopReason, &run.StartedAt, &finished,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// ListRuns returns runs ordered newest first.
func (d *Database) ListRuns(limit int) ([]*Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(`
		SELECT run_id, seed_url, site_domain, site_type, strategy, phase,
			pages_crawled, pages_failed, total_known_urls, coverage_pct,
			average_quality, plateau_detected, stop_reason, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		if err := rows.Scan(
			&run.RunID, &run.SeedURL, &run.SiteDomain, &run.SiteType, &run.Strategy, &run.Phase,
			&run.PagesCrawled, &run.PagesFailed, &run.TotalKnownURLs, &run.CoveragePct,
			&run.AverageQuality, &run.PlateauDetected, &run.StopReason, &run.StartedAt, &finished,
		); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its pages and failures.
func (d *Database) DeleteRun(runID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM pages WHERE run_id = ?",
		"DELETE FROM failures WHERE run_id = ?",
		"DELETE FROM runs WHERE run_id = ?",
	} {
		if _, err := tx.Exec(stmt, runID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Page operations ---

// InsertPage records one crawled page.
func (d *Database) InsertPage(page *Page) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO pages (run_id, canonical_url, final_url, title, http_status,
			content_type, html_flavor, bytes_html, output_dir, worthy, quality, classify_method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, canonical_url) DO NOTHING
	`, page.RunID, page.CanonicalURL, page.FinalURL, page.Title, page.HTTPStatus,
		page.ContentType, page.HTMLFlavor, page.BytesHTML, page.OutputDir,
		page.Worthy, page.Quality, page.ClassifyMethod)
	return err
}

// ListPages returns the pages of one run in fetch order.
func (d *Database) ListPages(runID string) ([]*Page, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, run_id, canonical_url, final_url, title, http_status,
			content_type, html_flavor, bytes_html, output_dir, worthy, quality,
			classify_method, fetched_at
		FROM pages WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(
			&page.ID, &page.RunID, &page.CanonicalURL, &page.FinalURL, &page.Title,
			&page.HTTPStatus, &page.ContentType, &page.HTMLFlavor, &page.BytesHTML,
			&page.OutputDir, &page.Worthy, &page.Quality, &page.ClassifyMethod, &page.FetchedAt,
		); err != nil {
			return nil, err
		}
		pages = append(pages, &page)
	}
	return pages, rows.Err()
}

// InsertFailure records one failed URL.
func (d *Database) InsertFailure(failure *Failure) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO failures (run_id, canonical_url, reason, transient)
		VALUES (?, ?, ?, ?)
	`, failure.RunID, failure.CanonicalURL, failure.Reason, failure.Transient)
	return err
}

// ListFailures returns the failures of one run.
func (d *Database) ListFailures(runID string) ([]*Failure, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, run_id, canonical_url, reason, transient, recorded_at
		FROM failures WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []*Failure
	for rows.Next() {
		var failure Failure
		if err := rows.Scan(
			&failure.ID, &failure.RunID, &failure.CanonicalURL,
			&failure.Reason, &failure.Transient, &failure.RecordedAt,
		); err != nil {
			return nil, err
		}
		failures = append(failures, &failure)
	}
	return failures, rows.Err()
}

// --- Classification cache ---

// ClassificationStore is a domain-scoped persistent classification cache
// backed by the classifications table.
type ClassificationStore struct {
	db     *Database
	domain string
}

// ClassificationStore returns the persistent classification cache for a
// domain.
func (d *Database) ClassificationStore(domain string) *ClassificationStore {
	return &ClassificationStore{db: d, domain: domain}
}

// Get looks up a cached classification result.
func (s *ClassificationStore) Get(fingerprint string) (*classify.Result, bool) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result classify.Result
	var method string
	err := s.db.db.QueryRow(`
		SELECT is_worthy, confidence, reasoning, method
		FROM classifications WHERE domain = ? AND fingerprint = ?
	`, s.domain, fingerprint).Scan(&result.IsWorthy, &result.Confidence, &result.Reasoning, &method)
	if err != nil {
		return nil, false
	}
	result.Method = classify.Method(method)
	return &result, true
}

// Put stores a classification result. Existing entries are kept; cache
// entries are write-once.
func (s *ClassificationStore) Put(fingerprint string, result *classify.Result) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, err := s.db.db.Exec(`
		INSERT INTO classifications (domain, fingerprint, is_worthy, confidence, reasoning, method)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, fingerprint) DO NOTHING
	`, s.domain, fingerprint, result.IsWorthy, result.Confidence, result.Reasoning, string(result.Method))
	return err
}
