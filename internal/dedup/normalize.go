package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Fuzzy normalization replaces volatile fragments (dates, times, numbers,
// freshness clauses) with placeholders so that pages differing only in
// those fragments bucket together.
var (
	isoDateRe     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	numericDateRe = regexp.MustCompile(`\b\d{1,2}[/.]\d{1,2}[/.]\d{2,4}\b`)
	wordDateRe    = regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`)
	timeRe        = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?\b`)
	lastUpdatedRe = regexp.MustCompile(`(?i)\b(?:last\s+)?(?:updated|modified|revised|published)\s*(?:on|at|:)?\s*\S*`)
	numberRe      = regexp.MustCompile(`[$€£¥]?\s?\d[\d,.]*\s?%?`)
)

var fuzzyStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {},
	"is": {}, "are": {}, "was": {}, "be": {},
}

// NormalizeExact lowercases text and collapses whitespace; its SHA-256 is
// the exact-duplicate fingerprint.
func NormalizeExact(text string) string {
	return normalizeWhitespace(strings.ToLower(text))
}

// NormalizeFuzzy neutralizes dates, times, freshness clauses and numbers,
// then drops a small stopword set. Pages that differ only in those
// volatile fragments reduce to identical fuzzy strings.
func NormalizeFuzzy(text string) string {
	s := strings.ToLower(text)
	s = lastUpdatedRe.ReplaceAllString(s, " <updated> ")
	s = isoDateRe.ReplaceAllString(s, " <date> ")
	s = numericDateRe.ReplaceAllString(s, " <date> ")
	s = wordDateRe.ReplaceAllString(s, " <date> ")
	s = timeRe.ReplaceAllString(s, " <time> ")
	s = numberRe.ReplaceAllString(s, " <num> ")

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := fuzzyStopwords[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// HashText returns the hex-encoded SHA-256 of a string.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
