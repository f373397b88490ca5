// Package plateau detects when crawl quality has flattened out: either
// the recent worthy ratio drops below a site-type threshold or discovered
// content stops being diverse.
package plateau

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/demoforge/mirror/internal/sitetype"
)

// minPatternRatio is the unique URL-pattern ratio below which the
// diversity window signals a stop.
const minPatternRatio = 0.3

// Decision is one page outcome fed to the monitor.
type Decision struct {
	IsWorthy    bool
	ContentHash string
	URL         string
}

// Stats is an on-demand snapshot of monitor state.
type Stats struct {
	WorthinessSamples int     `json:"worthiness_samples"`
	WorthinessWindow  int     `json:"worthiness_window"`
	WorthyRatio       float64 `json:"worthy_ratio"`
	WorthyThreshold   float64 `json:"worthy_threshold"`
	DiversitySamples  int     `json:"diversity_samples"`
	DiversityWindow   int     `json:"diversity_window"`
	UniqueHashRatio   float64 `json:"unique_hash_ratio"`
	UniquePatternRatio float64 `json:"unique_pattern_ratio"`
	PlateauDetected   bool    `json:"plateau_detected"`
	StopReason        string  `json:"stop_reason,omitempty"`
}

var numericSegmentRe = regexp.MustCompile(`\d+`)

// patternKey collapses numeric IDs so /products/123 and /products/456
// share a key.
func patternKey(url string) string {
	return numericSegmentRe.ReplaceAllString(url, "{n}")
}

// boolWindow is a bounded FIFO of worthy/not decisions.
type boolWindow struct {
	values []bool
	size   int
}

func (w *boolWindow) push(v bool) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
}

func (w *boolWindow) full() bool { return len(w.values) >= w.size }

func (w *boolWindow) mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	worthy := 0
	for _, v := range w.values {
		if v {
			worthy++
		}
	}
	return float64(worthy) / float64(len(w.values))
}

// stringWindow is a bounded FIFO of strings with a uniqueness ratio.
type stringWindow struct {
	values []string
	size   int
}

func (w *stringWindow) push(v string) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
}

func (w *stringWindow) full() bool { return len(w.values) >= w.size }

func (w *stringWindow) uniqueRatio() float64 {
	if len(w.values) == 0 {
		return 1
	}
	seen := make(map[string]struct{}, len(w.values))
	for _, v := range w.values {
		seen[v] = struct{}{}
	}
	return float64(len(seen)) / float64(len(w.values))
}

// Monitor combines the worthiness and diversity windows; either one can
// signal a stop.
type Monitor struct {
	thresholds sitetype.Thresholds

	mu         sync.Mutex
	worthiness boolWindow
	hashes     stringWindow
	patterns   stringWindow
	stopped    bool
	stopReason string
}

// NewMonitor creates a monitor tuned with site-type thresholds.
func NewMonitor(thresholds sitetype.Thresholds) *Monitor {
	return &Monitor{
		thresholds: thresholds,
		worthiness: boolWindow{size: thresholds.WorthinessWindow},
		hashes:     stringWindow{size: thresholds.DiversityWindow},
		patterns:   stringWindow{size: thresholds.DiversityWindow},
	}
}

// Observe records one page decision and re-evaluates the stop condition.
// Once a stop is signaled it latches.
func (m *Monitor) Observe(d Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.worthiness.push(d.IsWorthy)
	if d.ContentHash != "" {
		m.hashes.push(d.ContentHash)
	}
	if d.URL != "" {
		m.patterns.push(patternKey(d.URL))
	}

	if m.stopped {
		return
	}

	if m.worthiness.full() {
		if ratio := m.worthiness.mean(); ratio < m.thresholds.WorthyThreshold {
			m.stopped = true
			m.stopReason = fmt.Sprintf(
				"quality plateau: %.0f%% worthy in last %d pages (threshold %.0f%%)",
				ratio*100, len(m.worthiness.values), m.thresholds.WorthyThreshold*100)
			return
		}
	}

	if m.hashes.full() {
		hashRatio := m.hashes.uniqueRatio()
		patternRatio := m.patterns.uniqueRatio()
		minHashRatio := 1 - m.thresholds.SimilarityThreshold
		if hashRatio < minHashRatio || patternRatio < minPatternRatio {
			m.stopped = true
			m.stopReason = fmt.Sprintf(
				"content diversity collapsed: %.2f unique-hash ratio, %.2f unique-pattern ratio in last %d pages",
				hashRatio, patternRatio, len(m.hashes.values))
		}
	}
}

// ShouldStop reports whether a plateau has been detected, with the reason.
func (m *Monitor) ShouldStop() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped, m.stopReason
}

// Stats returns a comprehensive snapshot of the monitor.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		WorthinessSamples:  len(m.worthiness.values),
		WorthinessWindow:   m.worthiness.size,
		WorthyRatio:        m.worthiness.mean(),
		WorthyThreshold:    m.thresholds.WorthyThreshold,
		DiversitySamples:   len(m.hashes.values),
		DiversityWindow:    m.hashes.size,
		UniqueHashRatio:    m.hashes.uniqueRatio(),
		UniquePatternRatio: m.patterns.uniqueRatio(),
		PlateauDetected:    m.stopped,
		StopReason:         m.stopReason,
	}
}
