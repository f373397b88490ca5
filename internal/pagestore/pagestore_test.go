package pagestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirFor(t *testing.T) {
	s := New("/out", nil)

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"root page", "https://example.com/", "/out/example-com"},
		{"nested path", "https://example.com/products/widget", "/out/example-com/products/widget"},
		{"mixed case and symbols", "https://example.com/Hello%20World!", "/out/example-com/hello-world"},
		{"query params", "https://example.com/search?q=widget", "/out/example-com/search/_q_q-widget"},
		{
			"sorted query keys",
			"https://example.com/p?b=2&a=1",
			"/out/example-com/p/_q_a-1_b-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, err := s.DirFor(tt.url)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.expected), dir)
		})
	}
}

func TestDirForTruncatesLongSegments(t *testing.T) {
	s := New("/out", nil)
	dir, err := s.DirFor("https://example.com/" + strings.Repeat("a", 80))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "example-com", strings.Repeat("a", 40)), dir)
}

func TestDirForHashesOverlongPaths(t *testing.T) {
	s := New("/out", nil)
	long := "https://example.com/" + strings.Repeat("seg/", 70) + "leaf"
	dir, err := s.DirFor(long)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(dir), 250)
	base := filepath.Base(dir)
	assert.True(t, strings.HasPrefix(base, "_long_"), "got %q", base)
	assert.Equal(t, filepath.Join("/out", "example-com", base), dir)

	// Same URL, same fallback directory.
	again, err := s.DirFor(long)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestSaveWritesAllArtifacts(t *testing.T) {
	root := t.TempDir()
	s := New(root, nil)

	fetched := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	dir, err := s.Save(&Page{
		CanonicalURL: "https://example.com/products/widget",
		Title:        "Widget",
		HTML:         "<html><body><h1>Widget</h1><p>Industrial component.</p></body></html>",
		ContentType:  "text/html; charset=utf-8",
		HTMLFlavor:   "raw",
		FetchedAt:    fetched,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "example-com", "products", "widget"), dir)

	for _, name := range []string{"index.md", "index.html", "raw.html", "meta.json"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, name)
	}

	markdown, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(markdown), "Widget")
	assert.Contains(t, string(markdown), "Industrial component.")
	assert.NotContains(t, string(markdown), "<h1>")

	metaJSON, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	var meta Meta
	require.NoError(t, json.Unmarshal(metaJSON, &meta))
	assert.Equal(t, "https://example.com/products/widget", meta.URL)
	assert.Equal(t, "Widget", meta.Title)
	assert.Equal(t, fetched, meta.FetchedAt)
	assert.Equal(t, "raw", meta.HTMLFlavor)
	assert.True(t, meta.Success)
	assert.Greater(t, meta.BytesHTML, 0)
}

func TestSaveReplacesPreviousVersion(t *testing.T) {
	root := t.TempDir()
	s := New(root, nil)

	page := &Page{
		CanonicalURL: "https://example.com/a",
		Title:        "First",
		HTML:         "<html><body>first version</body></html>",
	}
	dir, err := s.Save(page)
	require.NoError(t, err)

	page.Title = "Second"
	page.HTML = "<html><body>second version</body></html>"
	again, err := s.Save(page)
	require.NoError(t, err)
	assert.Equal(t, dir, again)

	content, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "second version")

	// No staging leftovers next to the page directory.
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".staging-"), entry.Name())
	}
}

func TestSaveDefaultsFetchedAt(t *testing.T) {
	root := t.TempDir()
	s := New(root, nil)

	dir, err := s.Save(&Page{
		CanonicalURL: "https://example.com/b",
		HTML:         "<html><body>x</body></html>",
	})
	require.NoError(t, err)

	metaJSON, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	var meta Meta
	require.NoError(t, json.Unmarshal(metaJSON, &meta))
	assert.WithinDuration(t, time.Now().UTC(), meta.FetchedAt, time.Minute)
}
