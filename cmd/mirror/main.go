// Command mirror crawls a website into a searchable demo mirror and
// serves a real-time coverage monitor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/demoforge/mirror/internal/config"
	"github.com/demoforge/mirror/internal/crawler"
	"github.com/demoforge/mirror/internal/events"
	"github.com/demoforge/mirror/internal/logging"
	"github.com/demoforge/mirror/internal/report"
	"github.com/demoforge/mirror/internal/server"
	"github.com/demoforge/mirror/internal/storage"
)

var (
	cfgFile       string
	seedURL       string
	maxPages      int
	runID         string
	respectRobots bool
	resume        bool
	renderMode    string
	concurrency   int
	requestGap    time.Duration
	outputRoot    string
	dbPath        string

	serveAddr string

	reportType   string
	reportFormat string
	reportOut    string
)

var rootCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Adaptive website crawler producing a searchable demo mirror.",
	Long: `mirror crawls a seed website with an adaptive strategy, classifies
each page for demo worthiness, deduplicates near-identical content and
stops when discovered quality plateaus. Progress is streamed live to
subscribers over websockets.`,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl a site into the mirror output tree.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New()
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		var db *storage.Database
		if cfg.DatabasePath != "" {
			db, err = storage.NewDatabase(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
		}

		cr, err := crawler.New(cfg, db, events.NewBroker(logger), logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		summary, err := cr.Run(ctx)
		printSummary(summary.RunID, logger, map[string]interface{}{
			"phase":         summary.Phase,
			"pages_crawled": summary.PagesCrawled,
			"pages_failed":  summary.PagesFailed,
			"coverage_pct":  fmt.Sprintf("%.1f", summary.CoveragePct),
			"stop_reason":   summary.StopReason,
			"elapsed":       summary.Elapsed.Round(time.Second).String(),
		})
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the coverage monitor API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New()
		cfg, err := loadBaseConfig()
		if err != nil {
			return err
		}
		applyFlags(cfg)

		var db *storage.Database
		if cfg.DatabasePath != "" {
			db, err = storage.NewDatabase(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg, db, events.NewBroker(logger), logger)
		logger.WithField("addr", serveAddr).Info("coverage monitor listening")
		return srv.Run(ctx, serveAddr)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <run_id>",
	Short: "Export a report about a finished run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBaseConfig()
		if err != nil {
			return err
		}
		applyFlags(cfg)
		if cfg.DatabasePath == "" {
			return fmt.Errorf("a database path is required for reports (--db)")
		}

		db, err := storage.NewDatabase(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		generated, err := report.NewGenerator(db).Generate(report.ReportType(reportType), args[0])
		if err != nil {
			return err
		}

		out := reportOut
		if out == "" {
			out = fmt.Sprintf("%s_%s.%s", args[0], reportType, reportFormat)
		}
		if err := report.NewExporter(report.ExportFormat(reportFormat), out).Export(generated); err != nil {
			return err
		}
		fmt.Printf("report written to %s (%d rows)\n", out, len(generated.Rows))
		return nil
	},
}

func buildConfig() (*config.CrawlConfig, error) {
	cfg, err := loadBaseConfig()
	if err != nil {
		return nil, err
	}
	if seedURL == "" {
		return nil, fmt.Errorf("--url is required")
	}
	cfg.SeedURL = seedURL
	cfg.MaxPages = maxPages
	cfg.RunID = runID
	cfg.RespectRobots = respectRobots
	cfg.Resume = resume
	applyFlags(cfg)
	return cfg, nil
}

func loadBaseConfig() (*config.CrawlConfig, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.DefaultConfig(), nil
}

func applyFlags(cfg *config.CrawlConfig) {
	if renderMode != "" {
		cfg.RenderMode = config.RenderMode(renderMode)
	}
	if concurrency > 0 {
		cfg.MaxConcurrent = concurrency
	}
	if requestGap > 0 {
		cfg.RequestGap = requestGap
	}
	if outputRoot != "" {
		cfg.OutputRoot = outputRoot
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
}

func printSummary(runID string, logger *logrus.Logger, fields map[string]interface{}) {
	entry := logger.WithField("run_id", runID)
	for key, value := range fields {
		entry = entry.WithField(key, value)
	}
	entry.Info("run summary")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON)")
	rootCmd.PersistentFlags().StringVar(&renderMode, "render", "", "render mode: html, js, adaptive")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "concurrent fetch workers")
	rootCmd.PersistentFlags().DurationVar(&requestGap, "gap", 0, "gap between fetches")
	rootCmd.PersistentFlags().StringVar(&outputRoot, "out", "", "mirror output root directory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")

	crawlCmd.Flags().StringVar(&seedURL, "url", "", "seed URL to crawl (required)")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget (0 = strategy decides)")
	crawlCmd.Flags().StringVar(&runID, "run-id", "", "run identifier (auto-generated if empty)")
	crawlCmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "honor robots.txt disallow rules")
	crawlCmd.Flags().BoolVar(&resume, "resume", false, "resume from a previous checkpoint for the same seed")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")

	reportCmd.Flags().StringVar(&reportType, "type", string(report.ReportSummary), "report type: pages, failures, summary, structure")
	reportCmd.Flags().StringVar(&reportFormat, "format", string(report.FormatCSV), "export format: csv, xlsx, json")
	reportCmd.Flags().StringVar(&reportOut, "output", "", "output file path")

	rootCmd.AddCommand(crawlCmd, serveCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
