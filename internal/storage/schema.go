package storage

// Schema contains the table definitions.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	seed_url TEXT NOT NULL,
	site_domain TEXT NOT NULL,
	site_type TEXT NOT NULL DEFAULT 'unknown',
	strategy TEXT NOT NULL DEFAULT '',
	phase TEXT NOT NULL DEFAULT 'initializing',
	pages_crawled INTEGER NOT NULL DEFAULT 0,
	pages_failed INTEGER NOT NULL DEFAULT 0,
	total_known_urls INTEGER NOT NULL DEFAULT 0,
	coverage_pct REAL NOT NULL DEFAULT 0,
	average_quality REAL NOT NULL DEFAULT 0,
	plateau_detected INTEGER NOT NULL DEFAULT 0,
	stop_reason TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	finished_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	final_url TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	http_status INTEGER NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL DEFAULT '',
	html_flavor TEXT NOT NULL DEFAULT 'raw',
	bytes_html INTEGER NOT NULL DEFAULT 0,
	output_dir TEXT NOT NULL DEFAULT '',
	worthy INTEGER NOT NULL DEFAULT 0,
	quality REAL NOT NULL DEFAULT 0,
	classify_method TEXT NOT NULL DEFAULT '',
	fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(run_id, canonical_url)
);

CREATE TABLE IF NOT EXISTS failures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	transient INTEGER NOT NULL DEFAULT 0,
	recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS classifications (
	domain TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	is_worthy INTEGER NOT NULL,
	confidence REAL NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	method TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (domain, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
`
