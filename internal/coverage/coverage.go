// Package coverage tracks live crawl progress: how much of the known URL
// space has been crawled, how fast, and how good the content is.
package coverage

import (
	"sync"
	"time"
)

// Phase describes where in its lifecycle a run is.
type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseSitemapAnalysis Phase = "sitemap_analysis"
	PhaseCrawling        Phase = "crawling"
	PhaseQualityPlateau  Phase = "quality_plateau"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
)

// Trend describes the direction of recent quality scores.
type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendStable       Trend = "stable"
	TrendDeclining    Trend = "declining"
	TrendInsufficient Trend = "insufficient"
)

const (
	maxRecentQuality = 20
	trendWindow      = 5
	trendDelta       = 0.05
)

// Snapshot is a point-in-time view of a run's progress. Snapshots are
// value objects; a subscriber can hold one indefinitely.
type Snapshot struct {
	RunID             string    `json:"run_id"`
	Timestamp         time.Time `json:"timestamp"`
	Phase             Phase     `json:"phase"`
	CoveragePct       float64   `json:"coverage_pct"`
	PagesCrawled      int       `json:"pages_crawled"`
	PagesFailed       int       `json:"pages_failed"`
	TotalKnownURLs    int       `json:"total_known_urls"`
	InitialSitemapURL int       `json:"initial_sitemap_urls"`
	DiscoveredURLs    int       `json:"discovered_urls"`
	RecentQuality     []float64 `json:"recent_quality"`
	QualityTrend      Trend     `json:"quality_trend"`
	VelocityPerMin    float64   `json:"velocity_per_min"`
	ETASeconds        *float64  `json:"eta_seconds,omitempty"`
	CurrentURL        string    `json:"current_url,omitempty"`
	PlateauDetected   bool      `json:"plateau_detected"`
	StopReason        string    `json:"stop_reason,omitempty"`
}

// Summary is the final stats object for a finished run.
type Summary struct {
	RunID           string        `json:"run_id"`
	Phase           Phase         `json:"phase"`
	CoveragePct     float64       `json:"coverage_pct"`
	PagesCrawled    int           `json:"pages_crawled"`
	PagesFailed     int           `json:"pages_failed"`
	TotalKnownURLs  int           `json:"total_known_urls"`
	SitemapURLs     int           `json:"sitemap_urls"`
	DiscoveredURLs  int           `json:"discovered_urls"`
	AverageQuality  float64       `json:"average_quality"`
	Elapsed         time.Duration `json:"elapsed"`
	ElapsedSeconds  float64       `json:"elapsed_seconds"`
	PlateauDetected bool          `json:"plateau_detected"`
	StopReason      string        `json:"stop_reason,omitempty"`
}

// Tracker maintains the coverage state of one run. All methods are safe
// for concurrent use.
type Tracker struct {
	mu sync.Mutex

	runID   string
	phase   Phase
	started time.Time

	sitemapURLs    map[string]struct{}
	discoveredURLs map[string]struct{}
	crawledURLs    map[string]struct{}
	failedURLs     map[string]struct{}

	recentQuality []float64
	qualitySum    float64
	qualityCount  int

	currentURL      string
	plateauDetected bool
	stopReason      string
}

// New creates a tracker for a run.
func New(runID string) *Tracker {
	return &Tracker{
		runID:          runID,
		phase:          PhaseInitializing,
		started:        time.Now(),
		sitemapURLs:    make(map[string]struct{}),
		discoveredURLs: make(map[string]struct{}),
		crawledURLs:    make(map[string]struct{}),
		failedURLs:     make(map[string]struct{}),
	}
}

// RunID returns the run identifier.
func (t *Tracker) RunID() string {
	return t.runID
}

// SetPhase transitions the run's phase.
func (t *Tracker) SetPhase(phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// AddSitemapURLs records URLs known from sitemap reconnaissance.
func (t *Tracker) AddSitemapURLs(urls []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range urls {
		t.sitemapURLs[u] = struct{}{}
	}
}

// AddDiscovered records URLs discovered while crawling.
func (t *Tracker) AddDiscovered(urls []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range urls {
		t.discoveredURLs[u] = struct{}{}
	}
}

// RecordCrawled marks one URL as successfully crawled with its quality
// score.
func (t *Tracker) RecordCrawled(url string, quality float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.crawledURLs[url] = struct{}{}
	t.pushQuality(quality)
}

// RecordFailed marks one URL as failed (unworthy, duplicate, fetch
// error).
func (t *Tracker) RecordFailed(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failedURLs[url] = struct{}{}
}

// SetCurrentURL records the URL being fetched right now.
func (t *Tracker) SetCurrentURL(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentURL = url
}

// MarkPlateau records that the plateau monitor fired.
func (t *Tracker) MarkPlateau(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plateauDetected = true
	t.stopReason = reason
	t.phase = PhaseQualityPlateau
}

// Finish transitions the run to its terminal phase with a stop reason.
func (t *Tracker) Finish(phase Phase, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	if reason != "" {
		t.stopReason = reason
	}
	t.currentURL = ""
}

func (t *Tracker) pushQuality(score float64) {
	t.recentQuality = append(t.recentQuality, score)
	if len(t.recentQuality) > maxRecentQuality {
		t.recentQuality = t.recentQuality[1:]
	}
	t.qualitySum += score
	t.qualityCount++
}

// Snapshot computes the current coverage snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	known := t.knownLocked()
	crawled := len(t.crawledURLs)

	snap := Snapshot{
		RunID:             t.runID,
		Timestamp:         time.Now(),
		Phase:             t.phase,
		PagesCrawled:      crawled,
		PagesFailed:       len(t.failedURLs),
		TotalKnownURLs:    known,
		InitialSitemapURL: len(t.sitemapURLs),
		DiscoveredURLs:    len(t.discoveredURLs),
		RecentQuality:     append([]float64(nil), t.recentQuality...),
		QualityTrend:      t.trendLocked(),
		CurrentURL:        t.currentURL,
		PlateauDetected:   t.plateauDetected,
		StopReason:        t.stopReason,
	}

	if known > 0 {
		snap.CoveragePct = 100 * float64(crawled) / float64(known)
	}

	elapsed := time.Since(t.started)
	if elapsed > 0 && crawled > 0 {
		snap.VelocityPerMin = float64(crawled) / elapsed.Minutes()
	}
	if snap.VelocityPerMin > 0 && known > crawled {
		eta := float64(known-crawled) / snap.VelocityPerMin * 60
		snap.ETASeconds = &eta
	}
	return snap
}

// Summary computes the final stats for the run.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	known := t.knownLocked()
	crawled := len(t.crawledURLs)
	elapsed := time.Since(t.started)

	summary := Summary{
		RunID:           t.runID,
		Phase:           t.phase,
		PagesCrawled:    crawled,
		PagesFailed:     len(t.failedURLs),
		TotalKnownURLs:  known,
		SitemapURLs:     len(t.sitemapURLs),
		DiscoveredURLs:  len(t.discoveredURLs),
		Elapsed:         elapsed,
		ElapsedSeconds:  elapsed.Seconds(),
		PlateauDetected: t.plateauDetected,
		StopReason:      t.stopReason,
	}
	if known > 0 {
		summary.CoveragePct = 100 * float64(crawled) / float64(known)
	}
	if t.qualityCount > 0 {
		summary.AverageQuality = t.qualitySum / float64(t.qualityCount)
	}
	return summary
}

// knownLocked is the size of sitemap ∪ discovered URL sets.
func (t *Tracker) knownLocked() int {
	known := len(t.sitemapURLs)
	for u := range t.discoveredURLs {
		if _, dup := t.sitemapURLs[u]; !dup {
			known++
		}
	}
	return known
}

// trendLocked compares the first and second halves of the last few
// quality scores.
func (t *Tracker) trendLocked() Trend {
	scores := t.recentQuality
	if len(scores) > trendWindow {
		scores = scores[len(scores)-trendWindow:]
	}
	if len(scores) < 3 {
		return TrendInsufficient
	}

	mid := len(scores) / 2
	first := mean(scores[:mid])
	second := mean(scores[mid:])

	switch {
	case second-first > trendDelta:
		return TrendImproving
	case first-second > trendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
