package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// section aggregates the crawled pages sharing a top-level path
// segment.
type section struct {
	name       string
	pages      int
	worthy     int
	totalBytes int
	quality    float64
	maxDepth   int
}

func (g *Generator) fillStructure(report *Report, runID string) error {
	pages, err := g.db.ListPages(runID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	sections := make(map[string]*section)
	for _, page := range pages {
		name, depth := sectionOf(page.CanonicalURL)
		s, ok := sections[name]
		if !ok {
			s = &section{name: name}
			sections[name] = s
		}
		s.pages++
		if page.Worthy {
			s.worthy++
		}
		s.totalBytes += page.BytesHTML
		s.quality += page.Quality
		if depth > s.maxDepth {
			s.maxDepth = depth
		}
	}

	ordered := make([]*section, 0, len(sections))
	for _, s := range sections {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].pages != ordered[j].pages {
			return ordered[i].pages > ordered[j].pages
		}
		return ordered[i].name < ordered[j].name
	})

	for _, s := range ordered {
		report.Rows = append(report.Rows, Row{Values: map[string]interface{}{
			"Section":     s.name,
			"Pages":       s.pages,
			"Worthy":      s.worthy,
			"Avg Quality": s.quality / float64(s.pages),
			"Max Depth":   s.maxDepth,
			"Total Bytes": s.totalBytes,
		}})
	}
	return nil
}

// sectionOf maps a URL to its top-level path segment and path depth.
// The site root maps to "/".
func sectionOf(rawURL string) (string, int) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/", 0
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "/", 0
	}
	return "/" + segments[0], len(segments)
}
