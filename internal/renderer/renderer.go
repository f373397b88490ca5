// Package renderer provides JavaScript rendering via headless Chromium.
package renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/demoforge/mirror/internal/config"
)

// stealthScript removes the most common webdriver fingerprints before any
// page script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
window.chrome = window.chrome || {runtime: {}};
`

// autoScrollScript walks the page downward to trigger lazy-loaded
// content, then resolves.
const autoScrollScript = `
new Promise((resolve) => {
	let total = 0;
	const step = 600;
	const timer = setInterval(() => {
		window.scrollBy(0, step);
		total += step;
		if (total >= document.body.scrollHeight || total > 20000) {
			clearInterval(timer);
			window.scrollTo(0, 0);
			resolve(true);
		}
	}, 100);
})
`

// Result holds the outcome of rendering one page.
type Result struct {
	// HTML after JavaScript execution
	HTML string

	// Final URL after client-side redirects
	FinalURL string

	// Page title
	Title string

	// Status of the main document response
	StatusCode int

	// Content-Type of the main document
	ContentType string

	// Render duration
	RenderTime time.Duration

	// Error if rendering failed
	Error error
}

// Renderer drives a pool of headless Chromium tabs.
type Renderer struct {
	mu sync.Mutex

	cfg       *config.CrawlConfig
	allocator context.Context
	cancel    context.CancelFunc

	browserPool chan context.Context
	poolCancels []context.CancelFunc
	closed      bool
}

// New creates a renderer with one browser context per concurrent worker.
func New(cfg *config.CrawlConfig) (*Renderer, error) {
	r := &Renderer{cfg: cfg}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ChromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromiumPath))
	}

	r.allocator, r.cancel = chromedp.NewExecAllocator(context.Background(), opts...)

	poolSize := cfg.MaxConcurrent
	if poolSize < 1 {
		poolSize = 1
	}
	r.browserPool = make(chan context.Context, poolSize)
	for i := 0; i < poolSize; i++ {
		ctx, cancel := chromedp.NewContext(r.allocator)
		r.poolCancels = append(r.poolCancels, cancel)
		r.browserPool <- ctx
	}

	return r, nil
}

// Render navigates to a URL and captures the post-JavaScript HTML.
func (r *Renderer) Render(ctx context.Context, urlStr string) *Result {
	result := &Result{}
	start := time.Now()

	browserCtx := <-r.browserPool
	defer func() { r.browserPool <- browserCtx }()

	timeoutCtx, cancel := context.WithTimeout(browserCtx, r.cfg.PageTimeout)
	defer cancel()

	// Abort the render when the caller's context dies first.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			if e.Type == network.ResourceTypeDocument && result.StatusCode == 0 {
				result.StatusCode = int(e.Response.Status)
				result.ContentType = e.Response.MimeType
			}
		}
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go chromedp.Run(timeoutCtx, page.HandleJavaScriptDialog(true))
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if r.cfg.Stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}))
	}

	actions = append(actions, chromedp.Navigate(urlStr))

	if r.cfg.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(r.cfg.WaitSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	if r.cfg.AutoScroll {
		var scrolled bool
		actions = append(actions, chromedp.Evaluate(autoScrollScript, &scrolled,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}))
	}

	for _, script := range r.cfg.CustomScripts {
		var ignored interface{}
		actions = append(actions, chromedp.Evaluate(script, &ignored))
	}

	if r.cfg.ExtraWait > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.ExtraWait))
	}

	var html, title, finalURL string
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		result.Error = fmt.Errorf("render failed: %w", err)
		result.RenderTime = time.Since(start)
		return result
	}

	result.HTML = html
	result.Title = title
	result.FinalURL = finalURL
	result.RenderTime = time.Since(start)
	return result
}

// Close shuts down the browser pool and the allocator.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	close(r.browserPool)
	for range r.browserPool {
	}
	for _, cancel := range r.poolCancels {
		cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}
