// Package sitetype classifies the business domain of a website from URL,
// title and content signals using hybrid phrase and keyword scoring.
package sitetype

import (
	"strings"
	"sync"

	"github.com/demoforge/mirror/internal/urlutil"
	"github.com/sirupsen/logrus"
)

// Type is the closed set of recognized business domains.
type Type string

const (
	Banking       Type = "banking"
	Ecommerce     Type = "ecommerce"
	News          Type = "news"
	Corporate     Type = "corporate"
	Educational   Type = "educational"
	Healthcare    Type = "healthcare"
	Government    Type = "government"
	NonProfit     Type = "non_profit"
	Entertainment Type = "entertainment"
	RealEstate    Type = "real_estate"
	Legal         Type = "legal"
	Restaurant    Type = "restaurant"
	Technology    Type = "technology"
	Unknown       Type = "unknown"
)

// Confidence labels how strong the winning score was.
type Confidence string

const (
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceMedium   Confidence = "MEDIUM"
	ConfidenceLow      Confidence = "LOW"
	ConfidenceFallback Confidence = "FALLBACK"
)

// Scoring weights: phrases are specific, keywords merely supporting.
const (
	phraseURLScore     = 15
	phraseTitleScore   = 10
	phraseContentScore = 5
	keywordURLScore    = 3
	keywordTitleScore  = 2
	keywordContentScore = 1

	minWinningScore = 3
)

// Result is the outcome of site-type detection.
type Result struct {
	Type          Type
	Score         int
	PhraseMatches int
	Confidence    Confidence
}

// Detector scores site types and caches one result per domain.
type Detector struct {
	logger *logrus.Logger

	mu    sync.Mutex
	cache map[string]*Result
}

// NewDetector creates a site-type detector.
func NewDetector(logger *logrus.Logger) *Detector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Detector{
		logger: logger,
		cache:  make(map[string]*Result),
	}
}

// Detect classifies the site. Detection is a pure function of the inputs;
// the per-domain cache only avoids repeat work within a run.
func (d *Detector) Detect(rawURL, title, content string) *Result {
	host, _ := urlutil.ExtractHost(rawURL)
	domain := urlutil.ExtractDomain(host)

	d.mu.Lock()
	if cached, ok := d.cache[domain]; ok {
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	result := Classify(rawURL, title, content)

	d.mu.Lock()
	if cached, ok := d.cache[domain]; ok {
		result = cached
	} else {
		d.cache[domain] = result
	}
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"domain":     domain,
		"site_type":  result.Type,
		"score":      result.Score,
		"confidence": result.Confidence,
	}).Info("site type detected")

	return result
}

// Classify scores every candidate type and picks the winner. The winning
// type must score at least 3; ties break first by phrase-match count and
// then by lexicon order. Below threshold, domain-extension fallbacks and
// generic corporate language apply.
func Classify(rawURL, title, content string) *Result {
	urlLower := strings.ToLower(rawURL)
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	best := &Result{Type: Unknown}
	for _, candidate := range lexiconOrder {
		lex := lexicons[candidate]
		score, phraseMatches := scoreLexicon(lex, urlLower, titleLower, contentLower)
		if score > best.Score || (score == best.Score && score > 0 && phraseMatches > best.PhraseMatches) {
			best = &Result{Type: candidate, Score: score, PhraseMatches: phraseMatches}
		}
	}

	if best.Score >= minWinningScore {
		best.Confidence = confidenceLabel(best.Score, best.PhraseMatches)
		return best
	}

	return fallback(urlLower, titleLower, contentLower)
}

func scoreLexicon(lex lexicon, urlLower, titleLower, contentLower string) (score, phraseMatches int) {
	for _, phrase := range lex.phrases {
		if strings.Contains(urlLower, phrase) {
			score += phraseURLScore
			phraseMatches++
		}
		if strings.Contains(titleLower, phrase) {
			score += phraseTitleScore
			phraseMatches++
		}
		if strings.Contains(contentLower, phrase) {
			score += phraseContentScore
			phraseMatches++
		}
	}
	for _, keyword := range lex.keywords {
		if containsWord(urlLower, keyword) {
			score += keywordURLScore
		}
		if containsWord(titleLower, keyword) {
			score += keywordTitleScore
		}
		if containsWord(contentLower, keyword) {
			score += keywordContentScore
		}
	}
	return score, phraseMatches
}

// containsWord matches a keyword at token granularity to keep "art" from
// matching "startup".
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

func fallback(urlLower, titleLower, contentLower string) *Result {
	host := urlLower
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}

	switch {
	case strings.HasSuffix(host, ".edu"):
		return &Result{Type: Educational, Confidence: ConfidenceFallback}
	case strings.HasSuffix(host, ".gov"):
		return &Result{Type: Government, Confidence: ConfidenceFallback}
	case strings.HasSuffix(host, ".org"):
		return &Result{Type: NonProfit, Confidence: ConfidenceFallback}
	}

	combined := titleLower + " " + contentLower
	for _, keyword := range corporateFallbackKeywords {
		if containsWord(combined, keyword) {
			return &Result{Type: Corporate, Confidence: ConfidenceFallback}
		}
	}

	return &Result{Type: Unknown, Confidence: ConfidenceFallback}
}

func confidenceLabel(score, phraseMatches int) Confidence {
	switch {
	case score >= 20 && phraseMatches >= 2:
		return ConfidenceHigh
	case score >= 10:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
