package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Page", "https://example.com/Page"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"collapses slashes", "https://example.com//a///b", "https://example.com/a/b"},
		{"trims trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"adds root slash", "https://example.com", "https://example.com/"},
		{"drops utm params", "https://example.com/a?utm_source=x&utm_medium=y", "https://example.com/a"},
		{"drops gclid", "https://example.com/a?gclid=123&id=7", "https://example.com/a?id=7"},
		{"sorts query keys", "https://example.com/a?z=1&a=2", "https://example.com/a?a=2&z=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM:443//Products/?utm_campaign=x&b=2&a=1#frag",
		"http://www.example.com/a/b/c/",
		"https://example.com/?gclid=abc",
	}
	for _, input := range inputs {
		once, err := Canonicalize(input)
		require.NoError(t, err)
		twice, err := Canonicalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "canonicalize must be idempotent for %q", input)
	}
}

func TestCanonicalEquality(t *testing.T) {
	a, err := Canonicalize("https://Example.com/pricing/?utm_source=mail")
	require.NoError(t, err)
	b, err := Canonicalize("https://example.com:443//pricing")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Canonicalize("https://example.com/pricing?plan=basic")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestIsSameSite(t *testing.T) {
	assert.True(t, IsSameSite("https://example.com/a", "example.com"))
	assert.True(t, IsSameSite("https://www.example.com/a", "example.com"))
	assert.True(t, IsSameSite("https://shop.example.com/a", "example.com"))
	assert.True(t, IsSameSite("https://example.com/a", "www.example.com"))
	assert.False(t, IsSameSite("https://example.org/a", "example.com"))
	assert.False(t, IsSameSite("https://notexample.com/a", "example.com"))
	assert.True(t, IsSameSite("http://127.0.0.1:8080/a", "127.0.0.1"))
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("www.example.com"))
	assert.Equal(t, "example.com", ExtractDomain("a.b.example.com"))
	assert.Equal(t, "example.com", ExtractDomain("example.com:8080"))
	assert.Equal(t, "localhost", ExtractDomain("localhost"))
	assert.Equal(t, "127.0.0.1", ExtractDomain("127.0.0.1:8080"))
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, IsHTTP("https://example.com"))
	assert.True(t, IsHTTP("http://example.com"))
	assert.False(t, IsHTTP("ftp://example.com"))
	assert.False(t, IsHTTP("mailto:a@example.com"))
}
