package storage

import "time"

// Run is one persisted crawl run.
type Run struct {
	RunID           string
	SeedURL         string
	SiteDomain      string
	SiteType        string
	Strategy        string
	Phase           string
	PagesCrawled    int
	PagesFailed     int
	TotalKnownURLs  int
	CoveragePct     float64
	AverageQuality  float64
	PlateauDetected bool
	StopReason      string
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// Page is one persisted crawled page.
type Page struct {
	ID             int64
	RunID          string
	CanonicalURL   string
	FinalURL       string
	Title          string
	HTTPStatus     int
	ContentType    string
	HTMLFlavor     string
	BytesHTML      int
	OutputDir      string
	Worthy         bool
	Quality        float64
	ClassifyMethod string
	FetchedAt      time.Time
}

// Failure records one URL that did not make it into the mirror.
type Failure struct {
	ID           int64
	RunID        string
	CanonicalURL string
	Reason       string
	Transient    bool
	RecordedAt   time.Time
}
