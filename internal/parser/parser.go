// Package parser extracts links and page metadata from rendered HTML.
package parser

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// PageData contains the extracted data the crawl loop consumes.
type PageData struct {
	// Title tag content
	Title string

	// Meta description
	MetaDescription string

	// Canonical URL from <link rel=canonical>
	Canonical string

	// Links found on the page, resolved against the base URL
	Links []Link

	// Base URL if a <base> tag is present
	BaseURL string

	// Language from the html lang attribute
	Language string
}

// Link is one anchor found on the page.
type Link struct {
	URL      string
	Text     string
	NoFollow bool
}

// Parser parses HTML content relative to a base URL.
type Parser struct {
	baseURL *url.URL
}

// NewParser creates a parser. baseURL anchors relative hrefs.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse extracts page data from HTML content.
func (p *Parser) Parse(htmlContent []byte) (*PageData, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	data := &PageData{Links: make([]Link, 0)}
	p.traverse(doc, data)
	return data, nil
}

func (p *Parser) traverse(n *html.Node, data *PageData) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "html":
			data.Language = getAttr(n, "lang")

		case "base":
			if href := getAttr(n, "href"); href != "" {
				data.BaseURL = href
				if u, err := url.Parse(href); err == nil {
					p.baseURL = p.baseURL.ResolveReference(u)
				}
			}

		case "title":
			if data.Title == "" {
				data.Title = strings.TrimSpace(getTextContent(n))
			}

		case "meta":
			if strings.ToLower(getAttr(n, "name")) == "description" {
				data.MetaDescription = getAttr(n, "content")
			}

		case "link":
			if strings.ToLower(getAttr(n, "rel")) == "canonical" {
				data.Canonical = p.resolveURL(getAttr(n, "href"))
			}

		case "a":
			link := p.parseAnchor(n)
			if link.URL != "" {
				data.Links = append(data.Links, link)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, data)
	}
}

// parseAnchor extracts one anchor, skipping non-navigable schemes.
func (p *Parser) parseAnchor(n *html.Node) Link {
	href := strings.TrimSpace(getAttr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return Link{}
	}

	rel := strings.ToLower(getAttr(n, "rel"))
	return Link{
		URL:      p.resolveURL(href),
		Text:     strings.TrimSpace(getTextContent(n)),
		NoFollow: strings.Contains(rel, "nofollow"),
	}
}

func (p *Parser) resolveURL(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(ref).String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func getTextContent(n *html.Node) string {
	var buf bytes.Buffer
	collectText(n, &buf)
	return buf.String()
}

func collectText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}

// ExtractLinks parses HTML and returns only its links.
func ExtractLinks(baseURL string, content []byte) ([]Link, error) {
	p, err := NewParser(baseURL)
	if err != nil {
		return nil, err
	}
	data, err := p.Parse(content)
	if err != nil {
		return nil, err
	}
	return data.Links, nil
}
