// Package report builds tabular reports about finished runs and exports
// them as CSV, XLSX or JSON.
package report

import (
	"fmt"
	"time"

	"github.com/demoforge/mirror/internal/storage"
)

// ReportType identifies a report.
type ReportType string

const (
	ReportPages     ReportType = "pages"
	ReportFailures  ReportType = "failures"
	ReportSummary   ReportType = "summary"
	ReportStructure ReportType = "structure"
)

// Definition describes a report's shape.
type Definition struct {
	Type    ReportType
	Name    string
	Columns []string
}

// Row is one report row keyed by column name.
type Row struct {
	Values map[string]interface{}
}

// Report is a generated report ready for export.
type Report struct {
	Definition  *Definition
	Rows        []Row
	GeneratedAt time.Time
}

var definitions = map[ReportType]*Definition{
	ReportPages: {
		Type:    ReportPages,
		Name:    "Crawled Pages",
		Columns: []string{"URL", "Final URL", "Title", "Status", "Content Type", "Flavor", "Bytes", "Worthy", "Quality", "Method", "Fetched At"},
	},
	ReportFailures: {
		Type:    ReportFailures,
		Name:    "Failed URLs",
		Columns: []string{"URL", "Reason", "Transient", "Recorded At"},
	},
	ReportSummary: {
		Type:    ReportSummary,
		Name:    "Run Summary",
		Columns: []string{"Field", "Value"},
	},
	ReportStructure: {
		Type:    ReportStructure,
		Name:    "Site Structure",
		Columns: []string{"Section", "Pages", "Worthy", "Avg Quality", "Max Depth", "Total Bytes"},
	},
}

// Generator builds reports from the database.
type Generator struct {
	db *storage.Database
}

// NewGenerator creates a report generator.
func NewGenerator(db *storage.Database) *Generator {
	return &Generator{db: db}
}

// Generate builds one report for a run.
func (g *Generator) Generate(reportType ReportType, runID string) (*Report, error) {
	definition, ok := definitions[reportType]
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}

	report := &Report{Definition: definition, GeneratedAt: time.Now()}
	var err error
	switch reportType {
	case ReportPages:
		err = g.fillPages(report, runID)
	case ReportFailures:
		err = g.fillFailures(report, runID)
	case ReportSummary:
		err = g.fillSummary(report, runID)
	case ReportStructure:
		err = g.fillStructure(report, runID)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (g *Generator) fillPages(report *Report, runID string) error {
	pages, err := g.db.ListPages(runID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	for _, page := range pages {
		report.Rows = append(report.Rows, Row{Values: map[string]interface{}{
			"URL":          page.CanonicalURL,
			"Final URL":    page.FinalURL,
			"Title":        page.Title,
			"Status":       page.HTTPStatus,
			"Content Type": page.ContentType,
			"Flavor":       page.HTMLFlavor,
			"Bytes":        page.BytesHTML,
			"Worthy":       page.Worthy,
			"Quality":      page.Quality,
			"Method":       page.ClassifyMethod,
			"Fetched At":   page.FetchedAt.Format(time.RFC3339),
		}})
	}
	return nil
}

func (g *Generator) fillFailures(report *Report, runID string) error {
	failures, err := g.db.ListFailures(runID)
	if err != nil {
		return fmt.Errorf("failed to list failures: %w", err)
	}
	for _, failure := range failures {
		report.Rows = append(report.Rows, Row{Values: map[string]interface{}{
			"URL":         failure.CanonicalURL,
			"Reason":      failure.Reason,
			"Transient":   failure.Transient,
			"Recorded At": failure.RecordedAt.Format(time.RFC3339),
		}})
	}
	return nil
}

func (g *Generator) fillSummary(report *Report, runID string) error {
	run, err := g.db.GetRun(runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}

	add := func(field string, value interface{}) {
		report.Rows = append(report.Rows, Row{Values: map[string]interface{}{
			"Field": field,
			"Value": value,
		}})
	}
	add("Run ID", run.RunID)
	add("Seed URL", run.SeedURL)
	add("Site Domain", run.SiteDomain)
	add("Site Type", run.SiteType)
	add("Strategy", run.Strategy)
	add("Phase", run.Phase)
	add("Pages Crawled", run.PagesCrawled)
	add("Pages Failed", run.PagesFailed)
	add("Total Known URLs", run.TotalKnownURLs)
	add("Coverage %", fmt.Sprintf("%.1f", run.CoveragePct))
	add("Average Quality", fmt.Sprintf("%.2f", run.AverageQuality))
	add("Plateau Detected", run.PlateauDetected)
	add("Stop Reason", run.StopReason)
	add("Started At", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		add("Finished At", run.FinishedAt.Format(time.RFC3339))
		add("Duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String())
	}
	return nil
}
