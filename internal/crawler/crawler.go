// Package crawler runs the adaptive crawl: strategy planning, frontier
// management, fetching, classification, dedup and page persistence.
package crawler

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/demoforge/mirror/internal/checkpoint"
	"github.com/demoforge/mirror/internal/classify"
	"github.com/demoforge/mirror/internal/config"
	"github.com/demoforge/mirror/internal/coverage"
	"github.com/demoforge/mirror/internal/dedup"
	"github.com/demoforge/mirror/internal/events"
	"github.com/demoforge/mirror/internal/fetcher"
	"github.com/demoforge/mirror/internal/frontier"
	"github.com/demoforge/mirror/internal/llm"
	"github.com/demoforge/mirror/internal/pagestore"
	"github.com/demoforge/mirror/internal/parser"
	"github.com/demoforge/mirror/internal/plateau"
	"github.com/demoforge/mirror/internal/renderer"
	"github.com/demoforge/mirror/internal/robots"
	"github.com/demoforge/mirror/internal/sitemap"
	"github.com/demoforge/mirror/internal/sitetype"
	"github.com/demoforge/mirror/internal/storage"
	"github.com/demoforge/mirror/internal/strategy"
	"github.com/demoforge/mirror/internal/urlfilter"
	"github.com/demoforge/mirror/internal/urlutil"
)

// idlePollInterval is how often an idle worker re-checks the frontier.
const idlePollInterval = 200 * time.Millisecond

// NewRunID generates a run identifier of the form
// crawl_<random8>_<unix_ts>.
func NewRunID() string {
	random8 := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("crawl_%s_%d", random8, time.Now().Unix())
}

// Crawler owns one crawl run.
type Crawler struct {
	cfg    *config.CrawlConfig
	db     *storage.Database
	broker *events.Broker
	logger *logrus.Logger

	tracker     *coverage.Tracker
	checkpoints *checkpoint.Manager
	frontier    *frontier.Frontier
	filter      *urlfilter.Filter
	dedup       *dedup.Deduplicator
	monitor     *plateau.Monitor
	cascade     *classify.Cascade
	fetcher     *fetcher.Fetcher
	renderer    *renderer.Renderer
	store       *pagestore.Store
	robots      *robots.RobotsTxt
	plan        *strategy.Plan
	limiter     *rate.Limiter

	pagesCrawled atomic.Int64
	maxPages     int64
}

// New creates a crawler for one run. db and broker may be nil; run
// persistence and event streaming are then disabled.
func New(cfg *config.CrawlConfig, db *storage.Database, broker *events.Broker, logger *logrus.Logger) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.RunID == "" {
		cfg.RunID = NewRunID()
	}

	canonical, err := urlutil.Canonicalize(cfg.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	cfg.SeedURL = canonical
	if cfg.SiteDomain == "" {
		host, err := urlutil.ExtractHost(canonical)
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL: %w", err)
		}
		cfg.SiteDomain = urlutil.ExtractDomain(host)
	}

	c := &Crawler{
		cfg:      cfg,
		db:       db,
		broker:   broker,
		logger:   logger,
		tracker:  coverage.New(cfg.RunID),
		frontier: frontier.New(),
		filter:   urlfilter.New(cfg.SiteDomain),
		dedup:    dedup.New(cfg.MinContentLength, logger),
		fetcher:  fetcher.New(cfg.PageTimeout, cfg.UserAgent),
		store:    pagestore.New(filepath.Join(cfg.OutputRoot, cfg.SiteDomain), logger),
		limiter:  rate.NewLimiter(rate.Every(cfg.RequestGap), 1),
	}
	if cfg.Auth.Enabled() {
		c.fetcher.SetCredentials(cfg.Auth)
	}
	if cfg.CheckpointInterval > 0 {
		c.checkpoints = checkpoint.NewManager(filepath.Join(cfg.OutputRoot, cfg.SiteDomain), logger)
	}
	return c, nil
}

// Tracker exposes the run's coverage tracker for status queries.
func (c *Crawler) Tracker() *coverage.Tracker {
	return c.tracker
}

// RunID returns the run identifier.
func (c *Crawler) RunID() string {
	return c.cfg.RunID
}

// Run executes the crawl to completion or cancellation and returns the
// final summary. The summary is produced even when the run fails.
func (c *Crawler) Run(ctx context.Context) (coverage.Summary, error) {
	c.publishEvent(events.TypeCrawlStarted, map[string]string{
		"run_id": c.cfg.RunID,
		"seed":   c.cfg.SeedURL,
	})

	heartbeatStop := make(chan struct{})
	if c.broker != nil {
		go c.broker.Heartbeat(c.cfg.RunID, c.tracker, c.cfg.HeartbeatInterval, heartbeatStop)
	}
	if c.checkpoints != nil {
		go c.checkpoints.AutoSave(c.cfg.CheckpointInterval, c.checkpointState, heartbeatStop)
	}
	defer close(heartbeatStop)

	if err := c.prepare(ctx); err != nil {
		c.finish(coverage.PhaseFailed, fmt.Sprintf("initialization failed: %v", err))
		return c.tracker.Summary(), err
	}

	c.tracker.SetPhase(coverage.PhaseCrawling)
	err := c.crawl(ctx)

	switch {
	case err != nil:
		c.finish(coverage.PhaseFailed, fmt.Sprintf("crawl aborted: %v", err))
		c.publishEvent(events.TypeCrawlError, map[string]string{"error": err.Error()})
	default:
		if stopped, reason := c.monitor.ShouldStop(); stopped {
			c.finish(coverage.PhaseQualityPlateau, reason)
		} else {
			c.finish(coverage.PhaseCompleted, "crawl completed")
		}
	}

	summary := c.tracker.Summary()
	c.publishEvent(events.TypeCrawlCompleted, map[string]interface{}{
		"run_id":                    c.cfg.RunID,
		"final_coverage_percentage": summary.CoveragePct,
		"pages_crawled":             summary.PagesCrawled,
		"stop_reason":               summary.StopReason,
	})

	c.logger.WithFields(logrus.Fields{
		"run_id":   c.cfg.RunID,
		"phase":    summary.Phase,
		"crawled":  summary.PagesCrawled,
		"coverage": fmt.Sprintf("%.1f%%", summary.CoveragePct),
		"reason":   summary.StopReason,
	}).Info("crawl finished")

	return summary, err
}

// prepare runs reconnaissance, builds the run-scoped machinery and seeds
// the frontier.
func (c *Crawler) prepare(ctx context.Context) error {
	c.tracker.SetPhase(coverage.PhaseSitemapAnalysis)

	provider := c.buildProvider()
	detector := sitetype.NewDetector(c.logger)
	analyzer := sitemap.NewAnalyzer(&http.Client{Timeout: 15 * time.Second}, c.cfg.UserAgent, c.logger)

	// URL-only cascade for sitemap ranking; site type is not known yet.
	planCascade := classify.NewCascade(c.filter, provider, sitetype.Unknown, c.logger)
	planner := strategy.New(analyzer, detector, c.fetcher, c.fetchCascadeForPlanning(planCascade, provider), c.logger)

	plan, err := planner.Plan(ctx, c.cfg.SeedURL)
	if err != nil {
		return fmt.Errorf("strategy planning failed: %w", err)
	}
	c.plan = plan

	c.monitor = plateau.NewMonitor(plan.Thresholds)

	var opts []classify.Option
	if c.db != nil {
		opts = append(opts, classify.WithStore(c.db.ClassificationStore(c.cfg.SiteDomain)))
	}
	c.cascade = classify.NewCascade(c.filter, provider, plan.SiteType, c.logger, opts...)

	if c.cfg.RenderMode != config.RenderHTML {
		r, err := renderer.New(c.cfg)
		if err != nil {
			if c.cfg.RenderMode == config.RenderJS {
				return fmt.Errorf("renderer startup failed: %w", err)
			}
			c.logger.WithError(err).Warn("renderer unavailable, continuing with raw HTTP")
		} else {
			c.renderer = r
		}
	}

	if c.cfg.RespectRobots {
		c.loadRobots(ctx)
	}

	if plan.Sitemap != nil && len(plan.Sitemap.URLs) > 0 {
		sitemapURLs := make([]string, 0, len(plan.Sitemap.URLs))
		for _, entry := range plan.Sitemap.URLs {
			if canonical, err := urlutil.Canonicalize(entry.Loc); err == nil {
				sitemapURLs = append(sitemapURLs, canonical)
			}
		}
		c.tracker.AddSitemapURLs(sitemapURLs)
	}

	c.maxPages = int64(plan.MaxPages)
	if c.cfg.MaxPages > 0 {
		c.maxPages = int64(c.cfg.MaxPages)
	}

	c.seedFrontier(plan.PriorityURLs)

	if c.cfg.Resume && c.checkpoints != nil {
		c.restoreCheckpoint()
	}

	if c.db != nil {
		if err := c.db.CreateRun(&storage.Run{
			RunID:      c.cfg.RunID,
			SeedURL:    c.cfg.SeedURL,
			SiteDomain: c.cfg.SiteDomain,
			SiteType:   string(plan.SiteType),
			Strategy:   plan.Strategy,
			Phase:      string(coverage.PhaseCrawling),
		}); err != nil {
			c.logger.WithError(err).Warn("failed to persist run row")
		}
	}
	return nil
}

// buildProvider creates the LLM client when a credential is configured.
func (c *Crawler) buildProvider() classify.Provider {
	client := llm.NewClient(llm.Config{
		APIKey:  config.LLMAPIKey(),
		BaseURL: c.cfg.LLMBaseURL,
		Model:   c.cfg.LLMModel,
		Timeout: c.cfg.LLMTimeout,
	})
	if !client.Enabled() {
		return nil
	}
	return client
}

// fetchCascadeForPlanning returns the cascade used for sitemap ranking,
// or nil when no LLM is available; ranking without an LLM adds nothing
// over sitemap order.
func (c *Crawler) fetchCascadeForPlanning(cascade *classify.Cascade, provider classify.Provider) *classify.Cascade {
	if provider == nil {
		return nil
	}
	return cascade
}

func (c *Crawler) loadRobots(ctx context.Context) {
	robotsURL := strings.TrimSuffix(c.cfg.SeedURL, "/") + "/robots.txt"
	if u, err := neturl.Parse(c.cfg.SeedURL); err == nil && u.Host != "" {
		robotsURL = fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	}
	resp := c.fetcher.Fetch(ctx, robotsURL)
	if resp.Error != nil || resp.StatusCode != http.StatusOK {
		c.logger.Debug("robots.txt not available")
		return
	}
	c.robots = robots.Parse(string(resp.Body))
}

func (c *Crawler) seedFrontier(urls []string) {
	// Earlier seeds get higher priority so ranking order survives the
	// heap.
	for i, seed := range urls {
		canonical, err := urlutil.Canonicalize(seed)
		if err != nil {
			continue
		}
		c.frontier.Push(&frontier.Entry{
			CanonicalURL:  canonical,
			Depth:         0,
			PriorityScore: float64(len(urls) - i),
		})
	}
}

// restoreCheckpoint replays a previous run's progress for the same
// seed: crawled URLs are marked seen and the saved queue re-admitted.
func (c *Crawler) restoreCheckpoint() {
	state, err := c.checkpoints.Load()
	if err != nil {
		c.logger.WithError(err).Warn("checkpoint unreadable, starting fresh")
		return
	}
	if state == nil || state.SeedURL != c.cfg.SeedURL {
		return
	}

	for _, url := range state.Seen {
		c.frontier.MarkSeen(url)
	}
	for _, pending := range state.Pending {
		c.frontier.Push(&frontier.Entry{
			CanonicalURL:  pending.URL,
			Depth:         pending.Depth,
			PriorityScore: pending.Priority,
		})
	}
	c.logger.WithFields(logrus.Fields{
		"seen":    len(state.Seen),
		"pending": len(state.Pending),
	}).Info("resumed from checkpoint")
}

// checkpointState snapshots the frontier for the autosave goroutine.
func (c *Crawler) checkpointState() *checkpoint.State {
	pending := c.frontier.PendingEntries()
	urls := make([]checkpoint.PendingURL, 0, len(pending))
	for _, entry := range pending {
		urls = append(urls, checkpoint.PendingURL{
			URL:      entry.CanonicalURL,
			Depth:    entry.Depth,
			Priority: entry.PriorityScore,
		})
	}
	return &checkpoint.State{
		RunID:   c.cfg.RunID,
		SeedURL: c.cfg.SeedURL,
		Pending: urls,
		Seen:    c.frontier.SeenURLs(),
	}
}

// crawl runs the worker pool until the frontier drains, the budget is
// hit, the plateau monitor fires, or the context is cancelled.
func (c *Crawler) crawl(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	var active atomic.Int32
	workers := c.cfg.MaxConcurrent
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				if c.shouldStop() {
					return nil
				}

				entry := c.frontier.Pop()
				if entry == nil {
					if active.Load() == 0 {
						return nil
					}
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(idlePollInterval):
					}
					continue
				}

				active.Add(1)
				c.crawlOne(ctx, entry)
				active.Add(-1)
			}
		})
	}

	err := group.Wait()
	if c.renderer != nil {
		c.renderer.Close()
	}
	c.fetcher.Close()
	return err
}

func (c *Crawler) shouldStop() bool {
	if c.pagesCrawled.Load() >= c.maxPages {
		return true
	}
	stopped, _ := c.monitor.ShouldStop()
	return stopped
}

// crawlOne processes a single frontier entry end to end.
func (c *Crawler) crawlOne(ctx context.Context, entry *frontier.Entry) {
	url := entry.CanonicalURL
	if c.frontier.HasSeen(url) {
		return
	}
	c.frontier.MarkSeen(url)

	if reason := c.filter.Check(url); reason != urlfilter.ReasonNone {
		c.recordFailure(url, string(reason), false)
		return
	}

	if c.robots != nil && !c.robots.IsAllowed(c.cfg.UserAgent, urlutil.ExtractPath(url)) {
		c.recordFailure(url, "disallowed_by_robots", false)
		return
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	c.tracker.SetCurrentURL(url)

	page, failReason, transient := c.fetchPage(ctx, url)
	if page == nil {
		if ctx.Err() != nil {
			return
		}
		c.recordFailure(url, failReason, transient)
		c.publishSnapshot()
		return
	}

	content, err := dedup.ExtractContent(page.HTML)
	if err != nil {
		c.recordFailure(url, "content_extraction_failed", false)
		return
	}
	contentHash := dedup.HashText(dedup.NormalizeExact(content.Text))

	result, err := c.cascade.Classify(ctx, classify.Input{
		CanonicalURL: url,
		Title:        content.Title,
		Content:      content.Text,
	})
	if err != nil {
		c.recordFailure(url, "classification_failed", false)
		return
	}

	if !result.IsWorthy {
		c.logger.WithFields(logrus.Fields{
			"url":       url,
			"method":    result.Method,
			"reasoning": result.Reasoning,
		}).Debug("page rejected as not demo-worthy")
		c.recordFailure(url, "not_worthy: "+result.Reasoning, false)
		c.observe(url, contentHash, false)
		c.publishSnapshot()
		return
	}

	verdict := c.dedup.ExamineContent(url, content)
	if verdict.Status != dedup.StatusCanonical {
		c.recordFailure(url, fmt.Sprintf("%s: %s", verdict.Status, verdict.Reason), false)
		c.observe(url, contentHash, false)
		c.publishSnapshot()
		return
	}

	c.persistPage(url, page, content, result)
	c.pagesCrawled.Add(1)
	c.tracker.RecordCrawled(url, result.Confidence)

	c.enqueueLinks(url, page, entry.Depth)
	c.observe(url, contentHash, true)
	c.publishSnapshot()
	c.updateRunRow()
}

// fetchedPage is the normalized fetch result regardless of transport.
type fetchedPage struct {
	HTML        string
	FinalURL    string
	Title       string
	StatusCode  int
	ContentType string
	HTMLFlavor  string
}

// fetchPage fetches a URL through the renderer or the raw HTTP client
// according to the render mode. Adaptive mode falls back to raw HTTP
// when rendering fails.
func (c *Crawler) fetchPage(ctx context.Context, url string) (page *fetchedPage, failReason string, transient bool) {
	if c.renderer != nil {
		result := c.renderer.Render(ctx, url)
		if result.Error == nil && result.StatusCode < 400 && result.HTML != "" {
			return &fetchedPage{
				HTML:        result.HTML,
				FinalURL:    result.FinalURL,
				Title:       result.Title,
				StatusCode:  result.StatusCode,
				ContentType: result.ContentType,
				HTMLFlavor:  "rendered",
			}, "", false
		}
		if c.cfg.RenderMode == config.RenderJS {
			if result.Error != nil {
				return nil, fmt.Sprintf("render_failed: %v", result.Error), false
			}
			return nil, fmt.Sprintf("http_%d", result.StatusCode), result.StatusCode >= 500
		}
		c.logger.WithField("url", url).Debug("render failed, falling back to raw fetch")
	}

	resp := c.fetcher.Fetch(ctx, url)
	if resp.Error != nil {
		return nil, fmt.Sprintf("fetch_failed: %v", resp.Error), resp.Transient
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Sprintf("http_%d", resp.StatusCode), resp.StatusCode >= 500
	}
	if !strings.HasPrefix(resp.ContentType, "text/html") && resp.ContentType != "" &&
		!strings.HasPrefix(resp.ContentType, "application/xhtml") {
		return nil, "non_html_content: " + resp.ContentType, false
	}
	return &fetchedPage{
		HTML:        string(resp.Body),
		FinalURL:    resp.FinalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		HTMLFlavor:  "raw",
	}, "", false
}

// persistPage writes the page to the mirror tree and the database. A
// filesystem failure is logged and skipped; the crawl continues.
func (c *Crawler) persistPage(url string, page *fetchedPage, content *dedup.ExtractedContent, result *classify.Result) {
	title := page.Title
	if title == "" {
		title = content.Title
	}

	outputDir, err := c.store.Save(&pagestore.Page{
		CanonicalURL: url,
		Title:        title,
		HTML:         page.HTML,
		ContentType:  page.ContentType,
		HTMLFlavor:   page.HTMLFlavor,
		FetchedAt:    time.Now().UTC(),
	})
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Warn("failed to persist page")
	}

	if c.db != nil {
		if err := c.db.InsertPage(&storage.Page{
			RunID:          c.cfg.RunID,
			CanonicalURL:   url,
			FinalURL:       page.FinalURL,
			Title:          title,
			HTTPStatus:     page.StatusCode,
			ContentType:    page.ContentType,
			HTMLFlavor:     page.HTMLFlavor,
			BytesHTML:      len(page.HTML),
			OutputDir:      outputDir,
			Worthy:         result.IsWorthy,
			Quality:        result.Confidence,
			ClassifyMethod: string(result.Method),
		}); err != nil {
			c.logger.WithError(err).Warn("failed to persist page row")
		}
	}
}

// enqueueLinks extracts same-site links and feeds unseen ones back into
// the frontier.
func (c *Crawler) enqueueLinks(url string, page *fetchedPage, depth int) {
	base := page.FinalURL
	if base == "" {
		base = url
	}
	links, err := parser.ExtractLinks(base, []byte(page.HTML))
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Debug("link extraction failed")
		return
	}

	var discovered []string
	for _, link := range links {
		canonical, err := urlutil.Canonicalize(link.URL)
		if err != nil || !urlutil.IsHTTP(canonical) {
			continue
		}
		if !urlutil.IsSameSite(canonical, c.cfg.SiteDomain) {
			continue
		}
		if !c.filter.Allow(canonical) {
			continue
		}
		if c.frontier.Push(&frontier.Entry{
			CanonicalURL:   canonical,
			DiscoveredFrom: url,
			Depth:          depth + 1,
			PriorityScore:  c.cfg.PriorityBias,
		}) {
			discovered = append(discovered, canonical)
		}
	}
	if len(discovered) > 0 {
		c.tracker.AddDiscovered(discovered)
	}
}

// observe feeds one page decision to the plateau monitor and reacts to a
// newly latched stop.
func (c *Crawler) observe(url, contentHash string, worthy bool) {
	wasStopped, _ := c.monitor.ShouldStop()
	c.monitor.Observe(plateau.Decision{IsWorthy: worthy, ContentHash: contentHash, URL: url})
	if stopped, reason := c.monitor.ShouldStop(); stopped && !wasStopped {
		c.tracker.MarkPlateau(reason)
		c.publishEvent(events.TypePlateauDetected, map[string]string{
			"run_id": c.cfg.RunID,
			"reason": reason,
		})
	}
}

func (c *Crawler) recordFailure(url, reason string, transient bool) {
	c.tracker.RecordFailed(url)
	if c.db != nil {
		if err := c.db.InsertFailure(&storage.Failure{
			RunID:        c.cfg.RunID,
			CanonicalURL: url,
			Reason:       reason,
			Transient:    transient,
		}); err != nil {
			c.logger.WithError(err).Debug("failed to persist failure row")
		}
	}
}

func (c *Crawler) publishSnapshot() {
	if c.broker != nil {
		c.broker.PublishSnapshot(c.cfg.RunID, c.tracker.Snapshot())
	}
}

func (c *Crawler) publishEvent(eventType string, payload interface{}) {
	if c.broker != nil {
		c.broker.PublishEvent(c.cfg.RunID, eventType, payload)
	}
}

func (c *Crawler) updateRunRow() {
	if c.db == nil {
		return
	}
	summary := c.tracker.Summary()
	if err := c.db.UpdateRunProgress(&storage.Run{
		RunID:           c.cfg.RunID,
		Phase:           string(summary.Phase),
		PagesCrawled:    summary.PagesCrawled,
		PagesFailed:     summary.PagesFailed,
		TotalKnownURLs:  summary.TotalKnownURLs,
		CoveragePct:     summary.CoveragePct,
		AverageQuality:  summary.AverageQuality,
		PlateauDetected: summary.PlateauDetected,
		StopReason:      summary.StopReason,
	}); err != nil {
		c.logger.WithError(err).Debug("failed to update run row")
	}
}

// finish transitions the tracker and the run row to a terminal state.
// A checkpoint survives a failed run so it can be resumed.
func (c *Crawler) finish(phase coverage.Phase, reason string) {
	c.tracker.Finish(phase, reason)
	if c.checkpoints != nil && phase != coverage.PhaseFailed {
		if err := c.checkpoints.Clear(); err != nil {
			c.logger.WithError(err).Debug("failed to clear checkpoint")
		}
	}
	if c.db != nil {
		c.updateRunRow()
		if err := c.db.FinishRun(c.cfg.RunID, string(phase), reason); err != nil {
			c.logger.WithError(err).Warn("failed to finish run row")
		}
	}
}
