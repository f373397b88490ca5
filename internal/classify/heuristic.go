package classify

import (
	"context"
	"fmt"
	"strings"
)

// Heuristic scoring adjustments. The score starts at 0.5 and each matched
// signal shifts it; the result is clamped to [0,1] and the page is worthy
// at 0.5 or above.
const (
	baseScore            = 0.5
	businessTermBonus    = 0.15
	valuablePDFBonus     = 0.3
	junkPDFPenalty       = 0.4
	junkIndicatorPenalty = 0.3
	businessPathBonus    = 0.2
	errorPathPenalty     = 0.5
)

var businessTerms = []string{
	"pricing", "features", "solutions", "services", "products",
	"about", "contact", "case study", "customers", "testimonials",
	"documentation", "guide", "overview", "blog",
}

var valuablePDFHints = []string{"report", "whitepaper", "brochure", "datasheet", "catalog"}

var junkPDFHints = []string{"debug", "cache", "temp", "tmp", "backup"}

var junkIndicators = []string{"admin", "api/v", "internal", "staging", "sandbox"}

var businessPaths = []string{"/business/", "/commercial/", "/corporate/"}

var errorPaths = []string{"/404", "/error", "/test", "/dev"}

// heuristicStep scores pages with additive keyword heuristics.
type heuristicStep struct{}

func (s *heuristicStep) Name() Method { return MethodHeuristic }

func (s *heuristicStep) Classify(_ context.Context, in Input) (*Result, error) {
	score, signals := Score(in)
	reasoning := "heuristic score"
	if len(signals) > 0 {
		reasoning = fmt.Sprintf("heuristic score %.2f: %s", score, strings.Join(signals, ", "))
	}
	return &Result{
		IsWorthy:   score >= 0.5,
		Confidence: score,
		Reasoning:  reasoning,
		Method:     MethodHeuristic,
	}, nil
}

// Score computes the heuristic worthiness score and the signals that
// contributed to it.
func Score(in Input) (float64, []string) {
	haystack := strings.ToLower(in.CanonicalURL + " " + in.Title + " " + in.Content)
	urlLower := strings.ToLower(in.CanonicalURL)
	isPDF := strings.HasSuffix(strings.ToLower(pathOf(urlLower)), ".pdf")

	score := baseScore
	var signals []string

	for _, term := range businessTerms {
		if strings.Contains(haystack, term) {
			score += businessTermBonus
			signals = append(signals, "business term "+term)
			break
		}
	}

	if isPDF {
		for _, hint := range valuablePDFHints {
			if strings.Contains(haystack, hint) {
				score += valuablePDFBonus
				signals = append(signals, "valuable document pdf")
				break
			}
		}
		for _, hint := range junkPDFHints {
			if strings.Contains(haystack, hint) {
				score -= junkPDFPenalty
				signals = append(signals, "junk pdf")
				break
			}
		}
	}

	for _, junk := range junkIndicators {
		if strings.Contains(haystack, junk) {
			score -= junkIndicatorPenalty
			signals = append(signals, "junk indicator "+junk)
			break
		}
	}

	for _, p := range businessPaths {
		if strings.Contains(urlLower, p) {
			score += businessPathBonus
			signals = append(signals, "business path")
			break
		}
	}

	for _, p := range errorPaths {
		if strings.Contains(urlLower, p) {
			score -= errorPathPenalty
			signals = append(signals, "error path")
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, signals
}

func pathOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[i:]
	} else {
		s = "/"
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
