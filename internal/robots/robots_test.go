package robots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicDisallow(t *testing.T) {
	r := Parse(`User-agent: *
Disallow: /private/
Disallow: /tmp/
`)

	assert.True(t, r.IsAllowed("mirrorbot", "/"))
	assert.True(t, r.IsAllowed("mirrorbot", "/products"))
	assert.False(t, r.IsAllowed("mirrorbot", "/private/data"))
	assert.False(t, r.IsAllowed("mirrorbot", "/tmp/x"))
}

func TestAgentSpecificRules(t *testing.T) {
	r := Parse(`User-agent: *
Disallow: /secret/

User-agent: badbot
Disallow: /
`)

	assert.False(t, r.IsAllowed("badbot", "/anything"))
	assert.True(t, r.IsAllowed("goodbot", "/anything"))
	assert.False(t, r.IsAllowed("goodbot", "/secret/page"))

	// Substring matching follows common practice for agent tokens.
	assert.False(t, r.IsAllowed("BadBot/2.1", "/anything"))
}

func TestStackedUserAgents(t *testing.T) {
	r := Parse(`User-agent: alpha
User-agent: beta
Disallow: /shared/
`)

	assert.False(t, r.IsAllowed("alpha", "/shared/x"))
	assert.False(t, r.IsAllowed("beta", "/shared/x"))
	assert.True(t, r.IsAllowed("gamma", "/shared/x"))
}

func TestLongerRuleWins(t *testing.T) {
	r := Parse(`User-agent: *
Disallow: /docs/
Allow: /docs/public/
`)

	assert.False(t, r.IsAllowed("bot", "/docs/internal"))
	assert.True(t, r.IsAllowed("bot", "/docs/public/guide"))
}

func TestWildcardAndAnchorPatterns(t *testing.T) {
	r := Parse(`User-agent: *
Disallow: /*.pdf$
Disallow: /search*sort=
`)

	assert.False(t, r.IsAllowed("bot", "/files/report.pdf"))
	assert.True(t, r.IsAllowed("bot", "/files/report.pdf.html"))
	assert.False(t, r.IsAllowed("bot", "/search?q=x&sort=price"))
	assert.True(t, r.IsAllowed("bot", "/search?q=x"))
}

func TestEmptyDisallowAllowsEverything(t *testing.T) {
	r := Parse(`User-agent: *
Disallow:
`)
	assert.True(t, r.IsAllowed("bot", "/anything"))
}

func TestCrawlDelay(t *testing.T) {
	r := Parse(`User-agent: *
Crawl-delay: 2.5
`)
	assert.Equal(t, 2500*time.Millisecond, r.CrawlDelay("bot"))

	none := Parse(`User-agent: *
Disallow: /x/
`)
	assert.Equal(t, time.Duration(0), none.CrawlDelay("bot"))
}

func TestSitemapDirectives(t *testing.T) {
	r := Parse(`Sitemap: https://example.com/sitemap.xml
User-agent: *
Disallow: /private/
Sitemap: https://example.com/news-sitemap.xml
`)

	assert.Equal(t, []string{
		"https://example.com/sitemap.xml",
		"https://example.com/news-sitemap.xml",
	}, r.Sitemaps)
}

func TestDisallowedPaths(t *testing.T) {
	r := Parse(`User-agent: *
Disallow: /admin/
Disallow: /cart/
`)

	assert.Equal(t, []string{"/admin/", "/cart/"}, r.DisallowedPaths("anybot"))
}

func TestCommentsAndMalformedLines(t *testing.T) {
	r := Parse(`# crawling policy
User-agent: *   # everyone
Disallow: /hidden/  # keep out
this line has no colon
Disallow
: /orphan/

Disallow: /after-blank/
`)

	assert.False(t, r.IsAllowed("bot", "/hidden/x"))
	assert.False(t, r.IsAllowed("bot", "/after-blank/x"))
	assert.True(t, r.IsAllowed("bot", "/orphan/x"))
}

func TestEmptyFileAllowsEverything(t *testing.T) {
	r := Parse("")
	assert.True(t, r.IsAllowed("bot", "/any/path"))
	assert.Empty(t, r.Sitemaps)
	assert.Nil(t, r.DisallowedPaths("bot"))
}
