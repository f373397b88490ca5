// Package classify decides whether a page is worth including in a demo
// mirror. It runs a cascade of classifier steps: cheap structural
// filters, a heuristic scorer, and an optional LLM tier.
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/demoforge/mirror/internal/sitetype"
	"github.com/demoforge/mirror/internal/urlfilter"
	"github.com/demoforge/mirror/internal/urlutil"
	"github.com/sirupsen/logrus"
)

// Method records which cascade tier produced a result.
type Method string

const (
	MethodBasic     Method = "basic"
	MethodHeuristic Method = "heuristic"
	MethodLLM       Method = "llm"
	MethodCache     Method = "cache"
)

// Result is the classification outcome for one page. Confidence measures
// how certain the verdict is, independent of its direction.
type Result struct {
	IsWorthy      bool    `json:"is_worthy"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	Method        Method  `json:"method"`
	PromptTokens  int     `json:"prompt_tokens,omitempty"`
	OutputTokens  int     `json:"output_tokens,omitempty"`
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
}

// Input carries the signals available for one classification. Content and
// Title are optional; URL-only classification is used for sitemap ranking.
type Input struct {
	CanonicalURL string
	Title        string
	Content      string
}

// Step is one tier of the cascade. A nil result means the step has no
// definite verdict and the cascade moves on.
type Step interface {
	Name() Method
	Classify(ctx context.Context, in Input) (*Result, error)
}

// Store persists classification results across runs for one domain.
type Store interface {
	Get(fingerprint string) (*Result, bool)
	Put(fingerprint string, result *Result) error
}

// Cascade runs classifier steps in order, caching results by content
// fingerprint. Cache entries are write-once within a run.
type Cascade struct {
	steps  []Step
	store  Store
	logger *logrus.Logger

	mu    sync.Mutex
	cache map[string]*Result
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithStore attaches a persistent domain-scoped result store.
func WithStore(store Store) Option {
	return func(c *Cascade) { c.store = store }
}

// NewCascade builds the default cascade: basic filters, then the
// heuristic scorer, then the LLM tier when a provider is configured.
// A nil provider disables the LLM tier.
func NewCascade(filter *urlfilter.Filter, provider Provider, siteType sitetype.Type, logger *logrus.Logger, opts ...Option) *Cascade {
	if logger == nil {
		logger = logrus.New()
	}

	llmEligible := provider != nil && provider.Enabled()
	heuristic := &heuristicStep{}
	steps := []Step{
		&basicStep{filter: filter},
		&gatedHeuristicStep{inner: heuristic, deferToLLM: llmEligible},
	}
	if llmEligible {
		steps = append(steps, &llmStep{
			provider: provider,
			siteType: siteType,
			fallback: heuristic,
			logger:   logger,
		})
	}

	c := &Cascade{
		steps:  steps,
		logger: logger,
		cache:  make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the cascade for one page, consulting the cache first.
func (c *Cascade) Classify(ctx context.Context, in Input) (*Result, error) {
	fp := Fingerprint(in)

	if cached := c.lookup(fp); cached != nil {
		hit := *cached
		hit.Method = MethodCache
		return &hit, nil
	}

	for _, step := range c.steps {
		result, err := step.Classify(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("classifier step %s: %w", step.Name(), err)
		}
		if result == nil {
			continue
		}
		c.remember(fp, result)
		c.logger.WithFields(logrus.Fields{
			"url":       in.CanonicalURL,
			"worthy":    result.IsWorthy,
			"method":    result.Method,
			"reasoning": result.Reasoning,
		}).Debug("page classified")
		return result, nil
	}

	// The heuristic tier always produces a verdict, so this is unreachable
	// with the default step set.
	return nil, fmt.Errorf("no classifier step produced a verdict for %s", in.CanonicalURL)
}

func (c *Cascade) lookup(fingerprint string) *Result {
	c.mu.Lock()
	if cached, ok := c.cache[fingerprint]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	if c.store != nil {
		if stored, ok := c.store.Get(fingerprint); ok {
			c.mu.Lock()
			if _, exists := c.cache[fingerprint]; !exists {
				c.cache[fingerprint] = stored
			}
			c.mu.Unlock()
			return stored
		}
	}
	return nil
}

func (c *Cascade) remember(fingerprint string, result *Result) {
	c.mu.Lock()
	_, exists := c.cache[fingerprint]
	if !exists {
		c.cache[fingerprint] = result
	}
	c.mu.Unlock()

	if !exists && c.store != nil {
		if err := c.store.Put(fingerprint, result); err != nil {
			c.logger.WithError(err).Warn("failed to persist classification result")
		}
	}
}

// CacheSize returns the number of in-process cache entries.
func (c *Cascade) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Fingerprint derives the cache key for an input: the URL path alone when
// no title is supplied, the (path, title) pair otherwise.
func Fingerprint(in Input) string {
	path := urlutil.ExtractPath(in.CanonicalURL)
	var material string
	if in.Title != "" {
		material = path + "\x00" + in.Title
	} else {
		material = path
	}
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// basicStep rejects URLs failing the cheap structural filters. A reject is
// a definitive not-worthy verdict; a pass defers to later tiers.
type basicStep struct {
	filter *urlfilter.Filter
}

func (s *basicStep) Name() Method { return MethodBasic }

func (s *basicStep) Classify(_ context.Context, in Input) (*Result, error) {
	if s.filter == nil {
		return nil, nil
	}
	if reason := s.filter.Check(in.CanonicalURL); reason != urlfilter.ReasonNone {
		return &Result{
			IsWorthy:   false,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("rejected by basic filter: %s", reason),
			Method:     MethodBasic,
		}, nil
	}
	return nil, nil
}

// gatedHeuristicStep yields to the LLM tier when content is supplied and a
// provider is configured; otherwise the heuristic verdict is definite.
type gatedHeuristicStep struct {
	inner      *heuristicStep
	deferToLLM bool
}

func (s *gatedHeuristicStep) Name() Method { return MethodHeuristic }

func (s *gatedHeuristicStep) Classify(ctx context.Context, in Input) (*Result, error) {
	if s.deferToLLM && in.Content != "" {
		return nil, nil
	}
	return s.inner.Classify(ctx, in)
}
