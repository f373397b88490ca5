// Package strategy decides how a crawl approaches a site: seeded from an
// AI-ranked sitemap, or progressive discovery from the seed alone.
package strategy

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/demoforge/mirror/internal/classify"
	"github.com/demoforge/mirror/internal/fetcher"
	"github.com/demoforge/mirror/internal/sitemap"
	"github.com/demoforge/mirror/internal/sitetype"
)

// Strategy names.
const (
	SitemapFirst = "sitemap_first"
	Progressive  = "progressive"
)

const (
	// How many ranked sitemap URLs seed the frontier.
	seedTopN = 50

	// Page budget multiplier when a sitemap is available.
	sitemapBudgetFactor = 3

	// Budget and URL estimate when discovering progressively.
	progressiveMaxPages = 1000
	progressiveEstimate = 150
)

// Plan is the crawl plan handed to the orchestrator.
type Plan struct {
	Strategy     string
	PriorityURLs []string
	MaxPages     int
	EstimatedURL int

	SiteType   sitetype.Type
	Confidence sitetype.Confidence
	Thresholds sitetype.Thresholds

	Sitemap *sitemap.Analysis
}

// Planner runs reconnaissance and produces a plan.
type Planner struct {
	analyzer *sitemap.Analyzer
	detector *sitetype.Detector
	fetcher  *fetcher.Fetcher
	cascade  *classify.Cascade
	logger   *logrus.Logger
}

// New creates a planner. The cascade may be nil; sitemap ranking is then
// skipped and raw sitemap order seeds the frontier.
func New(analyzer *sitemap.Analyzer, detector *sitetype.Detector, f *fetcher.Fetcher, cascade *classify.Cascade, logger *logrus.Logger) *Planner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Planner{
		analyzer: analyzer,
		detector: detector,
		fetcher:  f,
		cascade:  cascade,
		logger:   logger,
	}
}

// Plan runs sitemap and site-type reconnaissance for a seed URL and
// selects a strategy.
func (p *Planner) Plan(ctx context.Context, seedURL string) (*Plan, error) {
	analysis, err := p.analyzer.Analyze(ctx, seedURL)
	if err != nil {
		return nil, err
	}

	detected := p.detectSiteType(ctx, seedURL)
	plan := &Plan{
		SiteType:   detected.Type,
		Confidence: detected.Confidence,
		Thresholds: sitetype.ThresholdsFor(detected.Type),
		Sitemap:    analysis,
	}

	if analysis.HasSitemap && len(analysis.URLs) > 0 {
		plan.Strategy = SitemapFirst
		plan.MaxPages = sitemapBudgetFactor * len(analysis.URLs)
		plan.EstimatedURL = len(analysis.URLs)
		plan.PriorityURLs = p.priorityURLs(ctx, analysis)
	} else {
		plan.Strategy = Progressive
		plan.MaxPages = progressiveMaxPages
		plan.EstimatedURL = progressiveEstimate
		plan.PriorityURLs = []string{seedURL}
	}

	p.logger.WithFields(logrus.Fields{
		"seed":      seedURL,
		"strategy":  plan.Strategy,
		"site_type": string(plan.SiteType),
		"max_pages": plan.MaxPages,
		"seeds":     len(plan.PriorityURLs),
	}).Info("crawl plan selected")

	return plan, nil
}

// priorityURLs ranks sitemap URLs via URL-only classification and takes
// the top slice. Without a cascade, sitemap order stands.
func (p *Planner) priorityURLs(ctx context.Context, analysis *sitemap.Analysis) []string {
	if p.cascade != nil {
		p.analyzer.Rank(ctx, analysis, p.cascade)
	}

	var urls []string
	if len(analysis.RankedURLs) > 0 {
		for _, ranked := range analysis.RankedURLs {
			urls = append(urls, ranked.URL)
		}
	} else {
		for _, entry := range analysis.URLs {
			urls = append(urls, entry.Loc)
		}
	}
	if len(urls) > seedTopN {
		urls = urls[:seedTopN]
	}
	return urls
}

// detectSiteType classifies the site from its homepage. A fetch failure
// degrades to URL-only detection.
func (p *Planner) detectSiteType(ctx context.Context, seedURL string) *sitetype.Result {
	var title, content string
	if p.fetcher != nil {
		resp := p.fetcher.Fetch(ctx, seedURL)
		if resp.Error == nil && resp.StatusCode < 400 && len(resp.Body) > 0 {
			title, content = homepageText(string(resp.Body))
		}
	}
	return p.detector.Detect(seedURL, title, content)
}

// homepageText extracts a crude title and text sample for lexicon
// scoring; exact extraction quality does not matter here.
func homepageText(html string) (title, content string) {
	lower := strings.ToLower(html)
	if start := strings.Index(lower, "<title"); start != -1 {
		if open := strings.Index(lower[start:], ">"); open != -1 {
			rest := html[start+open+1:]
			if end := strings.Index(strings.ToLower(rest), "</title>"); end != -1 {
				title = strings.TrimSpace(rest[:end])
			}
		}
	}

	// Strip tags naively; the detector only counts word hits.
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
		if b.Len() > 8000 {
			break
		}
	}
	content = strings.Join(strings.Fields(b.String()), " ")
	return title, content
}
