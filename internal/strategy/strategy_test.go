package strategy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demoforge/mirror/internal/fetcher"
	"github.com/demoforge/mirror/internal/sitemap"
	"github.com/demoforge/mirror/internal/sitetype"
	"github.com/demoforge/mirror/internal/testutil"
)

func newPlanner(t *testing.T) (*Planner, *fetcher.Fetcher) {
	t.Helper()
	f := fetcher.New(5*time.Second, "mirrorbot/1.0")
	analyzer := sitemap.NewAnalyzer(nil, "mirrorbot/1.0", nil)
	detector := sitetype.NewDetector(nil)
	return New(analyzer, detector, f, nil, nil), f
}

func TestPlanSitemapFirst(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.BuildDemoSite()

	p, f := newPlanner(t)
	defer f.Close()

	plan, err := p.Plan(context.Background(), ts.URL()+"/")
	require.NoError(t, err)

	assert.Equal(t, SitemapFirst, plan.Strategy)
	assert.Equal(t, 15, plan.MaxPages, "budget is three times the sitemap size")
	assert.Equal(t, 5, plan.EstimatedURL)
	require.NotNil(t, plan.Sitemap)
	assert.True(t, plan.Sitemap.HasSitemap)

	// Without a cascade the sitemap order stands.
	require.Len(t, plan.PriorityURLs, 5)
	assert.Equal(t, ts.URL()+"/", plan.PriorityURLs[0])
	assert.Equal(t, ts.URL()+"/products", plan.PriorityURLs[1])

	// The demo homepage sells products and services.
	assert.Equal(t, sitetype.Corporate, plan.SiteType)
	assert.Equal(t, sitetype.ThresholdsFor(sitetype.Corporate), plan.Thresholds)
}

func TestPlanProgressiveWithoutSitemap(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.AddPage("/", `<html><head><title>Plain Site</title></head>
<body>nothing special here</body></html>`)

	p, f := newPlanner(t)
	defer f.Close()

	seed := ts.URL() + "/"
	plan, err := p.Plan(context.Background(), seed)
	require.NoError(t, err)

	assert.Equal(t, Progressive, plan.Strategy)
	assert.Equal(t, progressiveMaxPages, plan.MaxPages)
	assert.Equal(t, progressiveEstimate, plan.EstimatedURL)
	assert.Equal(t, []string{seed}, plan.PriorityURLs)
}

func TestPlanCapsSeedURLs(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	base := ts.URL()

	var entries string
	for i := 0; i < 80; i++ {
		entries += fmt.Sprintf("<url><loc>%s/page/%d</loc></url>\n", base, i)
	}
	ts.AddPageWithType("/sitemap.xml", `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`+entries+`</urlset>`, "application/xml")

	p, f := newPlanner(t)
	defer f.Close()

	plan, err := p.Plan(context.Background(), base+"/")
	require.NoError(t, err)

	assert.Equal(t, SitemapFirst, plan.Strategy)
	assert.Len(t, plan.PriorityURLs, 50)
	assert.Equal(t, 240, plan.MaxPages)
}

func TestPlanSurvivesHomepageFetchFailure(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.SetError("/", 500)

	p, f := newPlanner(t)
	defer f.Close()

	plan, err := p.Plan(context.Background(), ts.URL()+"/")
	require.NoError(t, err)
	assert.Equal(t, Progressive, plan.Strategy)
	// URL-only detection cannot say much about an opaque host.
	assert.Equal(t, sitetype.Unknown, plan.SiteType)
}

func TestHomepageText(t *testing.T) {
	title, content := homepageText(`<html>
<head><title> Acme Widgets </title><script>var x = "</nope>";</script></head>
<body><h1>Industrial widgets</h1><p>for every business</p></body>
</html>`)

	assert.Equal(t, "Acme Widgets", title)
	assert.Contains(t, content, "Industrial widgets")
	assert.Contains(t, content, "for every business")
	assert.NotContains(t, content, "<h1>")
}
