// Package urlfilter applies cheap structural reject filters to candidate
// URLs before any fetch or classification work is spent on them.
package urlfilter

import (
	"net/url"
	"strings"
	"sync"

	"github.com/demoforge/mirror/internal/urlutil"
)

// Reason identifies why a URL was rejected. First matching rule wins.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonBinaryFile       Reason = "binary_file"
	ReasonExternalDomain   Reason = "external_domain"
	ReasonPathTooLong      Reason = "path_too_long"
	ReasonComplexQuery     Reason = "complex_query"
	ReasonNonContentPath   Reason = "non_content_path"
	ReasonTrackingParams   Reason = "tracking_params"
	ReasonUselessFileType  Reason = "useless_file_type"
	ReasonTooDeepNesting   Reason = "too_deep_nesting"
	ReasonTooManySpecial   Reason = "too_many_special_chars"
)

const (
	maxPathLength   = 300
	maxQueryLength  = 100
	maxPathSegments = 8
	maxSpecialChars = 15
)

var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg", ".webp",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".tar", ".gz", ".7z",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm",
	".woff", ".ttf", ".eot", ".otf",
	".exe", ".dmg", ".apk", ".iso",
}

var uselessExtensions = []string{
	".xml", ".json", ".csv", ".map", ".woff2", ".rss", ".atom",
	".css", ".js", ".txt", ".yaml", ".yml",
}

var nonContentSegments = []string{
	"/api/", "/admin/", "/_", "/tracking/", "/oauth/", "/login/",
	"/logout/", "/signin/", "/signup/", "/cart/", "/checkout/",
	"/wp-admin/", "/cgi-bin/", "/static/", "/assets/",
}

var trackingQueryHints = []string{
	"session=", "sessionid=", "token=", "timestamp=", "nonce=", "signature=",
}

const specialChars = "-_=&%?#"

// Filter rejects URLs by structural rules and counts rejections per reason.
type Filter struct {
	siteDomain string

	mu         sync.Mutex
	rejections map[Reason]int
}

// New creates a filter scoped to the given site domain.
func New(siteDomain string) *Filter {
	return &Filter{
		siteDomain: siteDomain,
		rejections: make(map[Reason]int),
	}
}

// Check applies all reject rules in order and returns the first matching
// reason, or ReasonNone when the URL passes. Rejections are counted.
func (f *Filter) Check(rawURL string) Reason {
	reason := f.evaluate(rawURL)
	if reason != ReasonNone {
		f.mu.Lock()
		f.rejections[reason]++
		f.mu.Unlock()
	}
	return reason
}

// Allow reports whether the URL passes every reject rule.
func (f *Filter) Allow(rawURL string) bool {
	return f.Check(rawURL) == ReasonNone
}

func (f *Filter) evaluate(rawURL string) Reason {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ReasonNonContentPath
	}

	path := strings.ToLower(u.Path)
	query := strings.ToLower(u.RawQuery)

	for _, ext := range binaryExtensions {
		if strings.HasSuffix(path, ext) {
			return ReasonBinaryFile
		}
	}

	if f.siteDomain != "" && !urlutil.IsSameSite(rawURL, f.siteDomain) {
		return ReasonExternalDomain
	}

	if len(u.Path) > maxPathLength {
		return ReasonPathTooLong
	}

	if len(u.RawQuery) > maxQueryLength {
		return ReasonComplexQuery
	}

	for _, seg := range nonContentSegments {
		if strings.Contains(path, seg) {
			return ReasonNonContentPath
		}
	}

	for _, hint := range trackingQueryHints {
		if strings.Contains(query, hint) {
			return ReasonTrackingParams
		}
	}

	for _, ext := range uselessExtensions {
		if strings.HasSuffix(path, ext) {
			return ReasonUselessFileType
		}
	}

	segments := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments++
		}
	}
	if segments > maxPathSegments {
		return ReasonTooDeepNesting
	}

	special := 0
	for _, r := range u.Path {
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}
	if special > maxSpecialChars {
		return ReasonTooManySpecial
	}

	return ReasonNone
}

// Rejections returns a copy of the per-reason rejection counts.
func (f *Filter) Rejections() map[Reason]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[Reason]int, len(f.rejections))
	for reason, n := range f.rejections {
		counts[reason] = n
	}
	return counts
}

// TotalRejected returns the total number of rejected URLs.
func (f *Filter) TotalRejected() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.rejections {
		total += n
	}
	return total
}
