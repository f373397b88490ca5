// Package testutil provides a configurable HTTP test server for crawl
// tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// TestServer is a configurable in-process website.
type TestServer struct {
	Server    *httptest.Server
	mu        sync.RWMutex
	pages     map[string]*TestPage
	delays    map[string]time.Duration
	errors    map[string]int
	hits      map[string]int
	redirects map[string]string
}

// TestPage is one served page.
type TestPage struct {
	Content     string
	ContentType string
	StatusCode  int
}

// NewTestServer creates a test server with no pages.
func NewTestServer() *TestServer {
	ts := &TestServer{
		pages:     make(map[string]*TestPage),
		delays:    make(map[string]time.Duration),
		errors:    make(map[string]int),
		hits:      make(map[string]int),
		redirects: make(map[string]string),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handler))
	return ts
}

func (ts *TestServer) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	ts.mu.Lock()
	ts.hits[path]++
	ts.mu.Unlock()

	ts.mu.RLock()
	delay := ts.delays[path]
	errorCode := ts.errors[path]
	redirect := ts.redirects[path]
	page := ts.pages[path]
	ts.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
		return
	}
	if errorCode > 0 {
		w.WriteHeader(errorCode)
		return
	}
	if page != nil {
		contentType := page.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		if page.StatusCode > 0 {
			w.WriteHeader(page.StatusCode)
		}
		io.WriteString(w, page.Content)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// AddPage registers an HTML page.
func (ts *TestServer) AddPage(path, content string) {
	ts.AddPageWithType(path, content, "text/html; charset=utf-8")
}

// AddPageWithType registers a page with an explicit content type.
func (ts *TestServer) AddPageWithType(path, content, contentType string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.pages[path] = &TestPage{Content: content, ContentType: contentType, StatusCode: 200}
}

// SetDelay makes a path respond slowly.
func (ts *TestServer) SetDelay(path string, delay time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delays[path] = delay
}

// SetError makes a path fail with a status code.
func (ts *TestServer) SetError(path string, statusCode int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.errors[path] = statusCode
}

// SetRedirect makes a path answer 301 to another location.
func (ts *TestServer) SetRedirect(from, to string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.redirects[from] = to
}

// Hits returns how many times a path was requested.
func (ts *TestServer) Hits(path string) int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.hits[path]
}

// URL returns the server base URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// Close shuts the server down.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// BuildDemoSite populates the server with a small crawlable site: a
// sitemap, content pages, a redirect stub and near-duplicate pricing
// pages.
func (ts *TestServer) BuildDemoSite() {
	base := ts.URL()

	ts.AddPage("/", `<!DOCTYPE html>
<html>
<head><title>Acme Corporation</title></head>
<body>
	<h1>Welcome to Acme</h1>
	<p>Our company provides professional business services to clients worldwide.
	Browse our products and solutions to learn what we can do for you.</p>
	<nav>
		<a href="/products">Products</a>
		<a href="/about">About</a>
		<a href="/pricing/basic">Basic Pricing</a>
		<a href="/pricing/premium">Premium Pricing</a>
		<a href="/moved">Old Page</a>
	</nav>
</body>
</html>`)

	ts.AddPage("/products", `<!DOCTYPE html>
<html>
<head><title>Products - Acme</title></head>
<body>
	<h1>Our Products</h1>
	<p>Acme builds industrial widgets for every business need. Each widget is
	manufactured to exacting standards and ships with a full service warranty.</p>
	<ul>
		<li><a href="/products/widget">Widget</a></li>
		<li><a href="/products/gadget">Gadget</a></li>
	</ul>
</body>
</html>`)

	ts.AddPage("/products/widget", `<!DOCTYPE html>
<html>
<head><title>Widget - Acme</title></head>
<body>
	<h1>The Widget</h1>
	<p>The Acme widget is a versatile industrial component used across
	manufacturing, logistics and construction. Available in three sizes with
	volume discounts for commercial customers.</p>
</body>
</html>`)

	ts.AddPage("/products/gadget", `<!DOCTYPE html>
<html>
<head><title>Gadget - Acme</title></head>
<body>
	<h1>The Gadget</h1>
	<p>The Acme gadget automates repetitive assembly tasks. It integrates with
	standard production lines and reports utilization metrics to your dashboard.</p>
</body>
</html>`)

	ts.AddPage("/about", `<!DOCTYPE html>
<html>
<head><title>About - Acme</title></head>
<body>
	<h1>About Acme</h1>
	<p>Founded decades ago, Acme Corporation serves thousands of businesses with
	reliable products and attentive customer service from offices worldwide.</p>
</body>
</html>`)

	// Near-duplicate pair: identical layout, only numbers differ.
	ts.AddPage("/pricing/basic", `<!DOCTYPE html>
<html>
<head><title>Basic Plan - Acme</title></head>
<body>
	<h1>Basic Plan</h1>
	<p>The plan costs $19 per month and includes 5 user seats. Billed annually
	with a 14 day free trial. Upgrade or cancel at any time from your account.</p>
</body>
</html>`)

	ts.AddPage("/pricing/premium", `<!DOCTYPE html>
<html>
<head><title>Premium Plan - Acme</title></head>
<body>
	<h1>Premium Plan</h1>
	<p>The plan costs $99 per month and includes 50 user seats. Billed annually
	with a 30 day free trial. Upgrade or cancel at any time from your account.</p>
</body>
</html>`)

	// Redirect stub page.
	ts.AddPage("/moved", `<!DOCTYPE html>
<html>
<head>
	<meta http-equiv="refresh" content="0; url=`+base+`/products">
	<link rel="canonical" href="`+base+`/products">
</head>
<body>This page has moved.</body>
</html>`)

	ts.AddPageWithType("/robots.txt", `User-agent: *
Disallow: /private/
Crawl-delay: 1
Sitemap: `+base+`/sitemap.xml`, "text/plain")

	ts.AddPageWithType("/sitemap.xml", `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>`+base+`/</loc></url>
	<url><loc>`+base+`/products</loc></url>
	<url><loc>`+base+`/products/widget</loc></url>
	<url><loc>`+base+`/products/gadget</loc></url>
	<url><loc>`+base+`/about</loc></url>
</urlset>`, "application/xml")
}

// Article adds a simple article page and returns its path.
func (ts *TestServer) Article(slug, title, body string) string {
	path := "/" + slug
	ts.AddPage(path, fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
	<h1>%s</h1>
	<p>%s</p>
</body>
</html>`, title, title, body))
	return path
}
