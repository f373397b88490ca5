package dedup

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
)

// Status classifies a page relative to previously seen content.
type Status string

const (
	StatusCanonical Status = "canonical" // first representative of its class
	StatusDuplicate Status = "duplicate" // exact or near duplicate
	StatusAlias     Status = "alias"     // redirect stub pointing elsewhere
)

// Verdict is the dedup decision for one fetched page.
type Verdict struct {
	Status       Status
	CanonicalURL string
	Reason       string
}

// Stats summarizes deduplicator activity.
type Stats struct {
	Processed     int
	UniqueKept    int
	ExactDups     int
	NearDups      int
	RedirectStubs int
}

const (
	// Hamming distance at or below which two SimHash fingerprints are
	// considered near duplicates (~94% similar).
	nearDupThreshold = 4

	jsRedirectMaxLen = 240
	movedPageMaxLen  = 180
)

var movedPagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)this\s+page\s+has\s+(?:been\s+)?moved`),
	regexp.MustCompile(`(?i)document\s+has\s+moved`),
	regexp.MustCompile(`(?i)redirect(?:ing|ed)?\s+to`),
	regexp.MustCompile(`(?i)page\s+(?:not\s+found|no\s+longer\s+(?:exists|available))`),
	regexp.MustCompile(`(?i)click\s+here\s+if\s+you\s+are\s+not\s+redirected`),
}

var metaRefreshURLRe = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'">;\s]+)`)

type bucketMember struct {
	canonicalURL string
	fingerprint  uint64
}

// Deduplicator holds the per-run dedup state: exact hash map, fuzzy hash
// buckets with SimHash members, and per-URL fingerprints.
type Deduplicator struct {
	minContentLength int
	logger           *logrus.Logger

	mu        sync.Mutex
	exact     map[string]string         // exact hash -> canonical URL
	fuzzy     map[string][]bucketMember // fuzzy hash -> bucket
	simhashes map[string]uint64         // canonical URL -> fingerprint
	stats     Stats
}

// New creates a deduplicator. Pages whose extracted text is shorter than
// minContentLength are treated as canonical without analysis.
func New(minContentLength int, logger *logrus.Logger) *Deduplicator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Deduplicator{
		minContentLength: minContentLength,
		logger:           logger,
		exact:            make(map[string]string),
		fuzzy:            make(map[string][]bucketMember),
		simhashes:        make(map[string]uint64),
	}
}

// Examine runs the three detection tiers against a page's HTML and
// records the page when it is the canonical representative of its class.
func (d *Deduplicator) Examine(canonicalURL, html string) (*Verdict, error) {
	content, err := ExtractContent(html)
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}
	return d.ExamineContent(canonicalURL, content), nil
}

// ExamineContent is Examine for already-extracted content.
func (d *Deduplicator) ExamineContent(canonicalURL string, content *ExtractedContent) *Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Processed++

	// Tier 1: redirect stubs never represent content.
	if verdict := detectRedirectStub(content); verdict != nil {
		d.stats.RedirectStubs++
		d.logger.WithFields(logrus.Fields{
			"url":    canonicalURL,
			"target": verdict.CanonicalURL,
		}).Debug("redirect stub detected")
		return verdict
	}

	if len(content.Text) < d.minContentLength {
		d.keep(canonicalURL, content)
		return &Verdict{
			Status:       StatusCanonical,
			CanonicalURL: canonicalURL,
			Reason:       "below_min_content_length",
		}
	}

	// Tier 2: exact duplicate.
	exactHash := HashText(NormalizeExact(content.Text))
	if prior, seen := d.exact[exactHash]; seen {
		d.stats.ExactDups++
		return &Verdict{
			Status:       StatusDuplicate,
			CanonicalURL: prior,
			Reason:       "exact_hash",
		}
	}

	// Tier 3: fuzzy bucket plus SimHash comparison.
	fuzzyHash := HashText(NormalizeFuzzy(content.Text))
	fingerprint := SimHash(content.Text)
	for _, member := range d.fuzzy[fuzzyHash] {
		if HammingDistance(member.fingerprint, fingerprint) <= nearDupThreshold {
			d.stats.NearDups++
			return &Verdict{
				Status:       StatusDuplicate,
				CanonicalURL: member.canonicalURL,
				Reason:       fmt.Sprintf("near_dup_simhash<=%d", nearDupThreshold),
			}
		}
	}

	d.exact[exactHash] = canonicalURL
	d.fuzzy[fuzzyHash] = append(d.fuzzy[fuzzyHash], bucketMember{
		canonicalURL: canonicalURL,
		fingerprint:  fingerprint,
	})
	d.keep(canonicalURL, content)

	return &Verdict{
		Status:       StatusCanonical,
		CanonicalURL: canonicalURL,
		Reason:       "unique",
	}
}

func (d *Deduplicator) keep(canonicalURL string, content *ExtractedContent) {
	d.stats.UniqueKept++
	d.simhashes[canonicalURL] = SimHash(content.Text)
}

// detectRedirectStub applies the redirect-stub heuristics; nil means the
// page is not a stub.
func detectRedirectStub(content *ExtractedContent) *Verdict {
	target := "unknown"
	if content.CanonicalRef != "" {
		target = content.CanonicalRef
	}

	if content.MetaRefresh != "" {
		if m := metaRefreshURLRe.FindStringSubmatch(content.MetaRefresh); len(m) == 2 {
			target = m[1]
		}
		return &Verdict{Status: StatusAlias, CanonicalURL: target, Reason: "meta_refresh"}
	}

	if content.HasJSRedirect && len(content.Text) < jsRedirectMaxLen {
		return &Verdict{Status: StatusAlias, CanonicalURL: target, Reason: "js_redirect_hint"}
	}

	if len(content.Text) < movedPageMaxLen {
		for _, re := range movedPagePatterns {
			if re.MatchString(content.Text) {
				return &Verdict{Status: StatusAlias, CanonicalURL: target, Reason: "moved_page_text"}
			}
		}
	}

	return nil
}

// Stats returns a snapshot of deduplicator statistics.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
