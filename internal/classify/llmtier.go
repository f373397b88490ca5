package classify

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/demoforge/mirror/internal/llm"
	"github.com/demoforge/mirror/internal/sitetype"
	"github.com/sirupsen/logrus"
)

// Provider is the LLM surface the cascade depends on. *llm.Client
// satisfies it.
type Provider interface {
	Enabled() bool
	Model() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.Completion, error)
}

// maxPromptContent bounds how much page content is shown to the model.
const maxPromptContent = 800

const systemPrompt = `You judge whether web pages are useful content for a product demonstration of a site search system. Useful pages carry real information a visitor would search for. Boilerplate, admin, legal, placeholder and error pages are not useful. Answer in exactly this form:
WORTHY: true|false
CONFIDENCE: 0.0-1.0
REASONING: <one sentence>`

// siteTypeHints sharpen the prompt for the detected business domain.
var siteTypeHints = map[sitetype.Type]string{
	sitetype.Banking:    "The site is a bank. Product pages, rates, branch info and financial guides are worthy; login portals and compliance boilerplate are not.",
	sitetype.Ecommerce:  "The site is a store. Product and category pages with real descriptions are worthy; cart, checkout and account pages are not.",
	sitetype.News:       "The site is a news outlet. Articles are worthy; tag indexes, archives and author lists usually are not.",
	sitetype.Corporate:  "The site is a company site. Service, team and case-study pages are worthy; legal and cookie pages are not.",
	sitetype.Educational: "The site is an educational institution. Program, course and faculty pages are worthy; login portals are not.",
	sitetype.Technology: "The site is a technology product. Documentation, feature and pricing pages are worthy; status dashboards are not.",
}

var (
	worthyTokenRe  = regexp.MustCompile(`(?i)WORTHY\s*:\s*(\S+)`)
	confidenceRe   = regexp.MustCompile(`(?i)CONFIDENCE\s*:\s*([0-9]*\.?[0-9]+)`)
	reasoningRe    = regexp.MustCompile(`(?i)REASONING\s*:\s*(.+)`)
	affirmativeSet = map[string]bool{"true": true, "yes": true, "worthy": true, "1": true}
)

// llmStep asks the configured model for a verdict. Provider errors never
// fail the run; the step degrades to its heuristic fallback.
type llmStep struct {
	provider Provider
	siteType sitetype.Type
	fallback *heuristicStep
	logger   *logrus.Logger
}

func (s *llmStep) Name() Method { return MethodLLM }

func (s *llmStep) Classify(ctx context.Context, in Input) (*Result, error) {
	completion, err := s.provider.Complete(ctx, systemPrompt, s.buildPrompt(in))
	if err != nil {
		s.logger.WithError(err).WithField("url", in.CanonicalURL).
			Warn("llm classification failed, falling back to heuristic")
		return s.fallback.Classify(ctx, in)
	}

	result := ParseVerdict(completion.Content)
	result.PromptTokens = completion.Usage.PromptTokens
	result.OutputTokens = completion.Usage.CompletionTokens
	result.EstimatedCost = EstimateCost(s.provider.Model(), completion.Usage)
	return result, nil
}

func (s *llmStep) buildPrompt(in Input) string {
	var b strings.Builder
	if hint, ok := siteTypeHints[s.siteType]; ok {
		b.WriteString(hint)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "URL: %s\n", in.CanonicalURL)
	if in.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", in.Title)
	}
	if in.Content != "" {
		content := in.Content
		if len(content) > maxPromptContent {
			content = content[:maxPromptContent]
		}
		fmt.Fprintf(&b, "\nContent:\n%s\n", content)
	}
	return b.String()
}

// ParseVerdict parses a model reply tolerantly. It never panics on
// adversarial output; an absent or ambiguous WORTHY token yields the
// safety default of not worthy.
func ParseVerdict(reply string) *Result {
	result := &Result{
		IsWorthy:   false,
		Confidence: 0.5,
		Reasoning:  "unparseable model output, defaulting to not worthy",
		Method:     MethodLLM,
	}

	if m := worthyTokenRe.FindStringSubmatch(reply); len(m) == 2 {
		token := strings.ToLower(strings.Trim(m[1], ".,;"))
		result.IsWorthy = affirmativeSet[token]
		result.Reasoning = "model verdict"
	}

	if m := confidenceRe.FindStringSubmatch(reply); len(m) == 2 {
		if value, err := strconv.ParseFloat(m[1], 64); err == nil {
			if value > 1 {
				value /= 100
			}
			if value >= 0 && value <= 1 {
				result.Confidence = value
			}
		}
	}

	if m := reasoningRe.FindStringSubmatch(reply); len(m) == 2 {
		if reasoning := strings.TrimSpace(m[1]); reasoning != "" {
			result.Reasoning = reasoning
		}
	}

	return result
}
