// Package config defines crawl configuration options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/demoforge/mirror/internal/auth"
)

// RenderMode defines how pages are fetched.
type RenderMode string

const (
	RenderHTML     RenderMode = "html"     // Plain HTTP fetch, no JavaScript
	RenderJS       RenderMode = "js"       // Headless Chromium rendering
	RenderAdaptive RenderMode = "adaptive" // Chromium with raw-HTML fallback
)

// CrawlConfig holds all configuration for a crawl run.
type CrawlConfig struct {
	// === Basic Settings ===

	// Seed URL to start crawling from
	SeedURL string `json:"seed_url"`

	// Site domain suffix considered in-scope (derived from seed if empty)
	SiteDomain string `json:"site_domain"`

	// Run identifier (auto-generated if empty)
	RunID string `json:"run_id"`

	// User-Agent string
	UserAgent string `json:"user_agent"`

	// === Limits ===

	// Maximum number of pages to fetch (0 = strategy decides)
	MaxPages int `json:"max_pages"`

	// Number of concurrent fetch workers
	MaxConcurrent int `json:"max_concurrent"`

	// Gap enforced between fetches
	RequestGap time.Duration `json:"request_gap"`

	// Per-page fetch timeout
	PageTimeout time.Duration `json:"page_timeout"`

	// Minimum extracted text length before dedup analysis applies
	MinContentLength int `json:"min_content_length"`

	// === Authentication ===

	// Credentials for sites behind a login or shared secret header
	Auth *auth.Credentials `json:"auth,omitempty"`

	// === Politeness ===

	// Respect robots.txt disallow rules (demo mode leaves this off)
	RespectRobots bool `json:"respect_robots"`

	// === Rendering ===

	// Render mode: html, js, adaptive
	RenderMode RenderMode `json:"render_mode"`

	// Inject scripts that remove webdriver fingerprints
	Stealth bool `json:"stealth"`

	// Scroll the page to trigger lazy-loaded content
	AutoScroll bool `json:"auto_scroll"`

	// CSS selector to wait for before capturing HTML
	WaitSelector string `json:"wait_selector,omitempty"`

	// Additional wait after the page settles
	ExtraWait time.Duration `json:"extra_wait"`

	// Custom JavaScript snippets evaluated after load
	CustomScripts []string `json:"custom_scripts,omitempty"`

	// Chromium executable path (empty = discovered)
	ChromiumPath string `json:"chromium_path,omitempty"`

	// === Classification ===

	// LLM model used by the third classifier tier
	LLMModel string `json:"llm_model"`

	// LLM endpoint base URL (OpenAI-compatible)
	LLMBaseURL string `json:"llm_base_url"`

	// Timeout for a single LLM call
	LLMTimeout time.Duration `json:"llm_timeout"`

	// === Frontier ===

	// Priority bias added to links discovered on worthy pages
	PriorityBias float64 `json:"priority_bias"`

	// === Storage ===

	// Root directory for persisted pages
	OutputRoot string `json:"output_root"`

	// SQLite database path for run state and classification cache
	// (empty = in-memory only)
	DatabasePath string `json:"database_path,omitempty"`

	// Interval between crawl-state checkpoints (0 = disabled)
	CheckpointInterval time.Duration `json:"checkpoint_interval"`

	// Resume from a previous checkpoint for the same seed, if present
	Resume bool `json:"resume"`

	// === Monitoring ===

	// Interval between heartbeat snapshots to subscribers
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
}

// DefaultConfig returns a CrawlConfig with sensible defaults.
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		UserAgent:          "MirrorBot/1.0 (+https://github.com/demoforge/mirror)",
		MaxConcurrent:      3,
		RequestGap:         600 * time.Millisecond,
		PageTimeout:        30 * time.Second,
		MinContentLength:   100,
		RespectRobots:      false,
		RenderMode:         RenderAdaptive,
		Stealth:            true,
		AutoScroll:         true,
		ExtraWait:          500 * time.Millisecond,
		LLMModel:           "gpt-4o-mini",
		LLMBaseURL:         "https://api.openai.com/v1",
		LLMTimeout:         20 * time.Second,
		PriorityBias:       0.1,
		OutputRoot:         "mirror_output",
		CheckpointInterval: time.Minute,
		HeartbeatInterval:  15 * time.Second,
	}
}

// Validate checks the configuration and clamps out-of-range values.
func (c *CrawlConfig) Validate() error {
	if c.SeedURL == "" {
		return fmt.Errorf("seed URL is required")
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.PageTimeout < time.Second {
		c.PageTimeout = time.Second
	}
	if c.RequestGap < 0 {
		c.RequestGap = 0
	}
	if c.MinContentLength < 0 {
		c.MinContentLength = 0
	}
	if c.HeartbeatInterval < time.Second {
		c.HeartbeatInterval = time.Second
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	return nil
}

// LLMAPIKey returns the provider credential, loading a .env file if one is
// present. An empty key disables the LLM classifier tier.
func LLMAPIKey() string {
	_ = godotenv.Load()
	return strings.TrimSpace(os.Getenv("LLM_API_KEY"))
}

// Save saves the configuration to a JSON file.
func (c *CrawlConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load loads configuration from a JSON file.
func Load(path string) (*CrawlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
