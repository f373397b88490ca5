// Package dedup implements three-tier duplicate detection over page
// content: redirect-stub heuristics, exact text hashing, and fuzzy
// bucketing with SimHash comparison.
package dedup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// contentSelector lists the elements whose visible text is considered
// meaningful page content.
const contentSelector = "h1, h2, h3, h4, h5, h6, p, li, td, th, figcaption, blockquote"

// ExtractedContent holds the meaningful text pulled from a page.
type ExtractedContent struct {
	Title        string
	Text         string
	CanonicalRef string // href of <link rel="canonical">, if present
	MetaRefresh  string // content of <meta http-equiv="refresh">, if present
	HasJSRedirect bool  // lightweight window.location / location.replace hint
}

// ExtractContent pulls the meaningful text out of an HTML document:
// scripts, styles, noscript and template blocks are dropped; the title
// plus the visible text of main/article (falling back to body) is
// collected from heading, paragraph, list, table and figure elements.
func ExtractContent(html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := &ExtractedContent{}
	out.Title = normalizeWhitespace(doc.Find("title").First().Text())

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		out.CanonicalRef = strings.TrimSpace(href)
	}
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if equiv, _ := s.Attr("http-equiv"); strings.EqualFold(equiv, "refresh") {
			out.MetaRefresh, _ = s.Attr("content")
			return false
		}
		return true
	})
	out.HasJSRedirect = hasJSRedirectHint(doc)

	doc.Find("script, style, noscript, template").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var parts []string
	if out.Title != "" {
		parts = append(parts, out.Title)
	}
	root.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		if text := normalizeWhitespace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 || (len(parts) == 1 && out.Title != "") {
		// Element-focused extraction found nothing; fall back to the
		// whole body text.
		if body := normalizeWhitespace(root.Text()); body != "" {
			parts = append(parts, body)
		}
	}

	out.Text = strings.Join(parts, "\n")
	return out, nil
}

func hasJSRedirectHint(doc *goquery.Document) bool {
	hint := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		code := s.Text()
		if strings.Contains(code, "window.location") || strings.Contains(code, "location.replace") {
			hint = true
			return false
		}
		return true
	})
	return hint
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
