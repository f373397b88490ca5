// Package sitemap discovers and parses sitemaps and derives intelligence
// from robots.txt. The result feeds strategy planning, not enforcement.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/demoforge/mirror/internal/classify"
	"github.com/demoforge/mirror/internal/robots"
	"github.com/sirupsen/logrus"
)

const (
	maxSitemapBytes = 20 << 20
	maxIndexDepth   = 3

	// Crawl delays advertised by robots.txt are honored only up to this
	// cap; demo crawls cannot afford a 30 second gap.
	maxSuggestedDelay = 2 * time.Second
)

// xmlSitemap is a parsed urlset document.
type xmlSitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []SitemapURL `xml:"url"`
}

// xmlSitemapIndex is a parsed sitemapindex document.
type xmlSitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapURL is one entry of a sitemap.
type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// RobotsIntel is reconnaissance derived from robots.txt.
type RobotsIntel struct {
	Found                bool          `json:"found"`
	Sitemaps             []string      `json:"sitemaps,omitempty"`
	SuggestedDelay       time.Duration `json:"suggested_delay"`
	InterestingDisallows []string      `json:"interesting_disallows,omitempty"`
	DisallowCount        int           `json:"disallow_count"`
	Complexity           string        `json:"complexity"` // simple, medium, complex
}

// RankedURL is a sitemap URL pre-classified in URL-only mode.
type RankedURL struct {
	URL       string  `json:"url"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Analysis is the full result of sitemap reconnaissance for a seed.
type Analysis struct {
	HasSitemap  bool
	SitemapURL  string
	URLs        []SitemapURL
	RobotsIntel RobotsIntel
	RankedURLs  []RankedURL
}

// businessKeywords mark disallowed paths worth reporting: sections the
// site hides that likely hold business content.
var businessKeywords = []string{
	"product", "pricing", "catalog", "account", "member", "report",
	"document", "download", "portal", "api",
}

// Analyzer fetches and parses sitemaps for one site.
type Analyzer struct {
	client    *http.Client
	userAgent string
	logger    *logrus.Logger
}

// NewAnalyzer creates a sitemap analyzer. A nil client gets a default
// with a 15 second timeout.
func NewAnalyzer(client *http.Client, userAgent string, logger *logrus.Logger) *Analyzer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Analyzer{client: client, userAgent: userAgent, logger: logger}
}

// Analyze runs sitemap discovery and robots.txt reconnaissance for a seed
// URL. Failures to find a sitemap are not errors; the progressive
// strategy covers that case.
func (a *Analyzer) Analyze(ctx context.Context, seedURL string) (*Analysis, error) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}

	analysis := &Analysis{}
	analysis.RobotsIntel = a.robotsIntel(ctx, seed)

	candidates := candidateLocations(seed)
	// robots.txt Sitemap: directives take precedence over guessed paths.
	candidates = append(analysis.RobotsIntel.Sitemaps, candidates...)

	seen := make(map[string]struct{})
	for _, candidate := range candidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		urls := a.fetchSitemap(ctx, candidate, 0)
		if len(urls) > 1 {
			analysis.HasSitemap = true
			analysis.SitemapURL = candidate
			analysis.URLs = urls
			break
		}
	}

	a.logger.WithFields(logrus.Fields{
		"seed":        seedURL,
		"has_sitemap": analysis.HasSitemap,
		"url_count":   len(analysis.URLs),
	}).Info("sitemap analysis complete")

	return analysis, nil
}

// Rank pre-classifies sitemap URLs in URL-only mode and orders them by
// descending score.
func (a *Analyzer) Rank(ctx context.Context, analysis *Analysis, cascade *classify.Cascade) {
	if cascade == nil || len(analysis.URLs) == 0 {
		return
	}
	ranked := make([]RankedURL, 0, len(analysis.URLs))
	for _, entry := range analysis.URLs {
		result, err := cascade.Classify(ctx, classify.Input{CanonicalURL: entry.Loc})
		if err != nil {
			continue
		}
		score := result.Confidence
		if !result.IsWorthy {
			score = 0
		}
		ranked = append(ranked, RankedURL{URL: entry.Loc, Score: score, Reasoning: result.Reasoning})
	}
	sortRanked(ranked)
	analysis.RankedURLs = ranked
}

func sortRanked(ranked []RankedURL) {
	// Stable insertion sort keeps sitemap order among equal scores.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
}

// candidateLocations returns the fixed list of sitemap locations to try.
func candidateLocations(seed *url.URL) []string {
	host := seed.Host
	bare := strings.TrimPrefix(host, "www.")
	hosts := []string{host}
	if host == bare {
		hosts = append(hosts, "www."+bare)
	} else {
		hosts = append(hosts, bare)
	}

	var candidates []string
	for _, h := range hosts {
		candidates = append(candidates,
			fmt.Sprintf("%s://%s/sitemap.xml", seed.Scheme, h),
			fmt.Sprintf("%s://%s/sitemap_index.xml", seed.Scheme, h),
		)
	}
	candidates = append(candidates, strings.TrimSuffix(seed.String(), "/")+"/sitemap.xml")
	return candidates
}

// fetchSitemap fetches one sitemap document, recursing into child
// sitemaps when the root is a sitemapindex.
func (a *Analyzer) fetchSitemap(ctx context.Context, sitemapURL string, depth int) []SitemapURL {
	if depth > maxIndexDepth {
		return nil
	}

	body, ok := a.get(ctx, sitemapURL)
	if !ok {
		return nil
	}

	if strings.Contains(string(body), "<sitemapindex") {
		var index xmlSitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			a.logger.WithError(err).WithField("url", sitemapURL).Debug("sitemap index parse failed")
			return nil
		}
		var urls []SitemapURL
		for _, child := range index.Sitemaps {
			urls = append(urls, a.fetchSitemap(ctx, strings.TrimSpace(child.Loc), depth+1)...)
		}
		return urls
	}

	var sitemap xmlSitemap
	if err := xml.Unmarshal(body, &sitemap); err != nil {
		a.logger.WithError(err).WithField("url", sitemapURL).Debug("sitemap parse failed")
		return nil
	}
	for i := range sitemap.URLs {
		sitemap.URLs[i].Loc = strings.TrimSpace(sitemap.URLs[i].Loc)
	}
	return sitemap.URLs
}

// robotsIntel fetches /robots.txt and derives crawl intelligence.
func (a *Analyzer) robotsIntel(ctx context.Context, seed *url.URL) RobotsIntel {
	intel := RobotsIntel{Complexity: "simple"}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", seed.Scheme, seed.Host)
	body, ok := a.get(ctx, robotsURL)
	if !ok {
		return intel
	}

	parsed := robots.Parse(string(body))
	intel.Found = true
	intel.Sitemaps = parsed.Sitemaps

	if delay := parsed.CrawlDelay(a.userAgent); delay > 0 {
		if delay > maxSuggestedDelay {
			delay = maxSuggestedDelay
		}
		intel.SuggestedDelay = delay
	}

	disallows := parsed.DisallowedPaths(a.userAgent)
	intel.DisallowCount = len(disallows)
	for _, path := range disallows {
		lower := strings.ToLower(path)
		for _, keyword := range businessKeywords {
			if strings.Contains(lower, keyword) {
				intel.InterestingDisallows = append(intel.InterestingDisallows, path)
				break
			}
		}
	}

	switch {
	case intel.DisallowCount > 20:
		intel.Complexity = "complex"
	case intel.DisallowCount > 5:
		intel.Complexity = "medium"
	}

	return intel
}

func (a *Analyzer) get(ctx context.Context, rawURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, false
	}
	return body, true
}
