package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/demoforge/mirror/internal/storage"
)

func seededDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.CreateRun(&storage.Run{
		RunID:      "run-1",
		SeedURL:    "https://example.com/",
		SiteDomain: "example.com",
		SiteType:   "corporate",
		Strategy:   "sitemap_first",
		Phase:      "completed",
	}))
	require.NoError(t, db.InsertPage(&storage.Page{
		RunID:          "run-1",
		CanonicalURL:   "https://example.com/products",
		FinalURL:       "https://example.com/products",
		Title:          "Products",
		HTTPStatus:     200,
		ContentType:    "text/html",
		HTMLFlavor:     "raw",
		BytesHTML:      2048,
		Worthy:         true,
		Quality:        0.8,
		ClassifyMethod: "heuristic",
	}))
	require.NoError(t, db.InsertFailure(&storage.Failure{
		RunID:        "run-1",
		CanonicalURL: "https://example.com/dup",
		Reason:       "exact_hash",
	}))
	return db
}

func TestGeneratePagesReport(t *testing.T) {
	g := NewGenerator(seededDB(t))

	report, err := g.Generate(ReportPages, "run-1")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Crawled Pages", report.Definition.Name)
	assert.Equal(t, "https://example.com/products", report.Rows[0].Values["URL"])
	assert.Equal(t, true, report.Rows[0].Values["Worthy"])
	assert.Equal(t, 0.8, report.Rows[0].Values["Quality"])
}

func TestGenerateFailuresReport(t *testing.T) {
	g := NewGenerator(seededDB(t))

	report, err := g.Generate(ReportFailures, "run-1")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "exact_hash", report.Rows[0].Values["Reason"])
}

func TestGenerateSummaryReport(t *testing.T) {
	g := NewGenerator(seededDB(t))

	report, err := g.Generate(ReportSummary, "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, report.Rows)

	fields := make(map[string]interface{})
	for _, row := range report.Rows {
		fields[row.Values["Field"].(string)] = row.Values["Value"]
	}
	assert.Equal(t, "run-1", fields["Run ID"])
	assert.Equal(t, "sitemap_first", fields["Strategy"])
	assert.Equal(t, "completed", fields["Phase"])
}

func TestGenerateStructureReport(t *testing.T) {
	db := seededDB(t)
	require.NoError(t, db.InsertPage(&storage.Page{
		RunID:        "run-1",
		CanonicalURL: "https://example.com/products/widget",
		Worthy:       true,
		Quality:      0.6,
		BytesHTML:    1024,
	}))
	require.NoError(t, db.InsertPage(&storage.Page{
		RunID:        "run-1",
		CanonicalURL: "https://example.com/",
		Quality:      0.4,
		BytesHTML:    512,
	}))

	g := NewGenerator(db)
	report, err := g.Generate(ReportStructure, "run-1")
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	// Largest section first.
	products := report.Rows[0].Values
	assert.Equal(t, "/products", products["Section"])
	assert.Equal(t, 2, products["Pages"])
	assert.Equal(t, 2, products["Worthy"])
	assert.InDelta(t, 0.7, products["Avg Quality"].(float64), 0.001)
	assert.Equal(t, 2, products["Max Depth"])
	assert.Equal(t, 3072, products["Total Bytes"])

	root := report.Rows[1].Values
	assert.Equal(t, "/", root["Section"])
	assert.Equal(t, 1, root["Pages"])
	assert.Equal(t, 0, root["Worthy"])
}

func TestGenerateUnknownType(t *testing.T) {
	g := NewGenerator(seededDB(t))
	_, err := g.Generate(ReportType("bogus"), "run-1")
	assert.Error(t, err)
}

func TestGenerateSummaryForMissingRun(t *testing.T) {
	g := NewGenerator(seededDB(t))
	_, err := g.Generate(ReportSummary, "nope")
	assert.ErrorContains(t, err, "run not found")
}

func TestExportCSV(t *testing.T) {
	g := NewGenerator(seededDB(t))
	report, err := g.Generate(ReportPages, "run-1")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "pages.csv")
	require.NoError(t, NewExporter(FormatCSV, out).Export(report))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "\xEF\xBB\xBF"), "missing UTF-8 BOM")

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(raw), "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, report.Definition.Columns, records[0])
	assert.Equal(t, "https://example.com/products", records[1][0])
	assert.Equal(t, "0.80", records[1][8], "floats render with two decimals")
	assert.Equal(t, "true", records[1][7])
}

func TestExportXLSX(t *testing.T) {
	g := NewGenerator(seededDB(t))
	report, err := g.Generate(ReportFailures, "run-1")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "failures.xlsx")
	require.NoError(t, NewExporter(FormatXLSX, out).Export(report))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Failed URLs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, report.Definition.Columns, rows[0])
	assert.Equal(t, "https://example.com/dup", rows[1][0])
}

func TestExportJSON(t *testing.T) {
	g := NewGenerator(seededDB(t))
	report, err := g.Generate(ReportSummary, "run-1")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, NewExporter(FormatJSON, out).Export(report))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var payload struct {
		Report string                   `json:"report"`
		Rows   []map[string]interface{} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "Run Summary", payload.Report)
	assert.NotEmpty(t, payload.Rows)
}

func TestExportUnknownFormat(t *testing.T) {
	err := NewExporter(ExportFormat("pdf"), "x.pdf").Export(&Report{Definition: definitions[ReportPages]})
	assert.Error(t, err)
}
