package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, baseURL, content string) *PageData {
	t.Helper()
	p, err := NewParser(baseURL)
	require.NoError(t, err)
	data, err := p.Parse([]byte(content))
	require.NoError(t, err)
	return data
}

func TestParseMetadata(t *testing.T) {
	data := parse(t, "https://example.com/page", `<!DOCTYPE html>
<html lang="en">
<head>
	<title>  Widget Catalog  </title>
	<meta name="description" content="All our widgets.">
	<link rel="canonical" href="/catalog">
</head>
<body></body>
</html>`)

	assert.Equal(t, "Widget Catalog", data.Title)
	assert.Equal(t, "All our widgets.", data.MetaDescription)
	assert.Equal(t, "https://example.com/catalog", data.Canonical)
	assert.Equal(t, "en", data.Language)
	assert.Empty(t, data.Links)
}

func TestLinkResolution(t *testing.T) {
	data := parse(t, "https://example.com/a/b", `<html><body>
<a href="/root">Root</a>
<a href="child">Child</a>
<a href="../sibling">Sibling</a>
<a href="https://other.org/x">External</a>
<a href="//cdn.example.com/asset">Scheme relative</a>
</body></html>`)

	require.Len(t, data.Links, 5)
	assert.Equal(t, "https://example.com/root", data.Links[0].URL)
	assert.Equal(t, "https://example.com/a/child", data.Links[1].URL)
	assert.Equal(t, "https://example.com/sibling", data.Links[2].URL)
	assert.Equal(t, "https://other.org/x", data.Links[3].URL)
	assert.Equal(t, "https://cdn.example.com/asset", data.Links[4].URL)
}

func TestNonNavigableHrefsAreSkipped(t *testing.T) {
	data := parse(t, "https://example.com/", `<html><body>
<a href="#section">Fragment</a>
<a href="javascript:void(0)">JS</a>
<a href="mailto:hi@example.com">Mail</a>
<a href="tel:+1234">Phone</a>
<a href="data:text/plain,x">Data</a>
<a href="">Empty</a>
<a href="/keep">Keep</a>
</body></html>`)

	require.Len(t, data.Links, 1)
	assert.Equal(t, "https://example.com/keep", data.Links[0].URL)
	assert.Equal(t, "Keep", data.Links[0].Text)
}

func TestNoFollowAndLinkText(t *testing.T) {
	data := parse(t, "https://example.com/", `<html><body>
<a href="/a" rel="nofollow">Untrusted</a>
<a href="/b" rel="noopener nofollow">Also untrusted</a>
<a href="/c"><span>Nested </span><b>text</b></a>
</body></html>`)

	require.Len(t, data.Links, 3)
	assert.True(t, data.Links[0].NoFollow)
	assert.True(t, data.Links[1].NoFollow)
	assert.False(t, data.Links[2].NoFollow)
	assert.Equal(t, "Nested text", data.Links[2].Text)
}

func TestBaseTagRebasesRelativeLinks(t *testing.T) {
	data := parse(t, "https://example.com/deep/page", `<html>
<head><base href="https://example.com/other/"></head>
<body><a href="item">Item</a></body>
</html>`)

	assert.Equal(t, "https://example.com/other/", data.BaseURL)
	require.Len(t, data.Links, 1)
	assert.Equal(t, "https://example.com/other/item", data.Links[0].URL)
}

func TestParseToleratesBrokenHTML(t *testing.T) {
	data := parse(t, "https://example.com/", `<html><body>
<div><a href="/ok">OK<div></a></p>
<table><a href="/table">In table</a>`)

	urls := make([]string, 0, len(data.Links))
	for _, l := range data.Links {
		urls = append(urls, l.URL)
	}
	assert.Contains(t, urls, "https://example.com/ok")
	assert.Contains(t, urls, "https://example.com/table")
}

func TestExtractLinks(t *testing.T) {
	links, err := ExtractLinks("https://example.com/", []byte(`<html><body>
<a href="/one">One</a><a href="/two">Two</a>
</body></html>`))
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/one", links[0].URL)
	assert.Equal(t, "https://example.com/two", links[1].URL)
}
