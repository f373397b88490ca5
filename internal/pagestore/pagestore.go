// Package pagestore persists crawled pages to the mirror output tree,
// one directory per URL.
package pagestore

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/sirupsen/logrus"
)

const (
	maxSegmentLen = 40

	// Windows path limit leaves headroom for the file names inside.
	maxDirLen = 250
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Meta is the sidecar metadata written next to each page.
type Meta struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentType string    `json:"content_type"`
	BytesHTML   int       `json:"bytes_html"`
	HTMLFlavor  string    `json:"html_flavor"` // raw or rendered
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// Page is one crawled page ready to persist.
type Page struct {
	CanonicalURL string
	Title        string
	HTML         string
	ContentType  string
	HTMLFlavor   string
	FetchedAt    time.Time
}

// Store writes pages under a root directory.
type Store struct {
	root   string
	logger *logrus.Logger
}

// New creates a page store rooted at dir.
func New(root string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the output root directory.
func (s *Store) Root() string {
	return s.root
}

// Save persists one page: index.md, index.html, raw.html and meta.json in
// the page's directory. The write is atomic per page; a failed write
// leaves no partial directory behind.
func (s *Store) Save(page *Page) (string, error) {
	dir, err := s.DirFor(page.CanonicalURL)
	if err != nil {
		return "", err
	}

	markdown, err := htmltomarkdown.ConvertString(page.HTML)
	if err != nil {
		// Keep the HTML artifacts even when conversion trips up.
		s.logger.WithError(err).WithField("url", page.CanonicalURL).Warn("markdown conversion failed")
		markdown = ""
	}

	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now().UTC()
	}
	meta := Meta{
		URL:         page.CanonicalURL,
		Title:       page.Title,
		FetchedAt:   page.FetchedAt.UTC(),
		ContentType: page.ContentType,
		BytesHTML:   len(page.HTML),
		HTMLFlavor:  page.HTMLFlavor,
		Success:     true,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta: %w", err)
	}

	// Stage into a temp dir, then rename into place.
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, ".staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	files := map[string][]byte{
		"index.md":   []byte(markdown),
		"index.html": []byte(page.HTML),
		"raw.html":   []byte(page.HTML),
		"meta.json":  metaJSON,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmp, name), content, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	os.RemoveAll(dir)
	if err := os.Rename(tmp, dir); err != nil {
		return "", fmt.Errorf("failed to move page into place: %w", err)
	}
	return dir, nil
}

// DirFor maps a canonical URL to its output directory.
func (s *Store) DirFor(canonicalURL string) (string, error) {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	segments := []string{slugify(u.Host)}
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if slug := slugify(seg); slug != "" {
			segments = append(segments, slug)
		}
	}
	if u.RawQuery != "" {
		segments = append(segments, "_q_"+querySlug(u.Query()))
	}

	dir := filepath.Join(append([]string{s.root}, segments...)...)
	if len(dir) > maxDirLen {
		sum := sha1.Sum([]byte(canonicalURL))
		dir = filepath.Join(s.root, slugify(u.Host), fmt.Sprintf("_long_%x", sum[:8]))
	}
	return dir, nil
}

// slugify lowercases a path segment and collapses anything non
// alphanumeric to a single dash, truncated to the segment cap.
func slugify(segment string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(segment), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSegmentLen {
		slug = strings.Trim(slug[:maxSegmentLen], "-")
	}
	return slug
}

// querySlug renders query parameters as a stable sorted slug.
func querySlug(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		sorted := append([]string(nil), values[key]...)
		sort.Strings(sorted)
		for _, value := range sorted {
			parts = append(parts, slugify(key)+"-"+slugify(value))
		}
	}
	slug := strings.Join(parts, "_")
	if len(slug) > maxSegmentLen*2 {
		sum := sha1.Sum([]byte(slug))
		slug = fmt.Sprintf("%x", sum[:8])
	}
	return slug
}
