// Package reporter renders one page of reconciliation results for the CLI.
//
// Supported output formats:
//   - Console: human-readable summary and per-item tables for a terminal
//   - JSON: the same envelope the HTTP API returns, for scripting
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeLocations prints the per-location table under each item.
	IncludeLocations bool `json:"include_locations"`
	// IncludeMetadata prints source statuses and counts.
	IncludeMetadata bool `json:"include_metadata"`
	// MaxLocationsPerItem truncates long location tables; 0 means no limit.
	MaxLocationsPerItem int `json:"max_locations_per_item"`
	// DecimalPlaces is the precision of quantities on the console.
	DecimalPlaces int32 `json:"decimal_places"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeLocations:    true,
		IncludeMetadata:     true,
		MaxLocationsPerItem: 0,
		DecimalPlaces:       2,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxLocationsPerItem < 0 {
		return fmt.Errorf("max locations per item cannot be negative, got %d", c.MaxLocationsPerItem)
	}
	if c.DecimalPlaces < 0 || c.DecimalPlaces > reconciler.OutputPlaces {
		return fmt.Errorf("decimal places must be between 0 and %d, got %d", reconciler.OutputPlaces, c.DecimalPlaces)
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes result to writer in the configured format.
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// jsonEnvelope mirrors the HTTP response body.
type jsonEnvelope struct {
	Success bool               `json:"success"`
	Data    *reconciler.Result `json:"data"`
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonEnvelope{Success: true, Data: result})
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("INVENTORY RECONCILIATION REPORT\n")
	if !result.Metadata.FetchedAt.IsZero() {
		ew.printf("Fetched: %s\n", result.Metadata.FetchedAt.Format(time.RFC3339))
	}
	if result.Metadata.Window != "" {
		ew.printf("Window:  %s\n", result.Metadata.Window)
	}
	ew.printf("Page %d of %d (%d items, limit %d)\n\n", result.Page, result.TotalPages, result.Total, result.Limit)

	ew.printf("=== SUMMARY ===\n")
	rg.printSummary(result.Summary, ew)
	ew.printf("\n")

	if rg.config.IncludeMetadata {
		ew.printf("=== SOURCES ===\n")
		rg.printMetadata(result.Metadata, ew)
		ew.printf("\n")
	}

	ew.printf("=== ITEMS ===\n")
	if len(result.Items) == 0 {
		ew.printf("No items match the current filters.\n")
	}
	for _, item := range result.Items {
		rg.printItem(item, ew)
	}

	return ew.err
}

func (rg *ReportGenerator) printSummary(summary reconciler.Summary, ew *errWriter) {
	ew.printf("Items:     %d\n", summary.Items)
	for _, level := range reportLevels {
		if count := summary.ItemsByLevel[level]; count > 0 {
			ew.printf("  %-9s %d (%.1f%%)\n", level, count, calculatePercentage(count, summary.Items))
		}
	}
	ew.printf("Locations: %d\n", summary.Locations)
	for _, level := range reportLevels {
		if count := summary.LocationsByLevel[level]; count > 0 {
			ew.printf("  %-9s %d (%.1f%%)\n", level, count, calculatePercentage(count, summary.Locations))
		}
	}
}

func (rg *ReportGenerator) printMetadata(meta reconciler.Metadata, ew *errWriter) {
	ew.printf("Source A: %s, %d rows, %d locations\n", formatStatus(meta.SourceAStatus), meta.SourceARows, meta.SourceALocationCount)
	ew.printf("Source B: %s, %d rows, %d locations\n", formatStatus(meta.SourceBStatus), meta.SourceBRows, meta.SourceBLocationCount)
	ew.printf("Mapped locations: %d\n", meta.MappedLocationCount)
	if len(meta.UnmappedLocationCodes) > 0 {
		ew.printf("Unmapped codes:   %s\n", strings.Join(meta.UnmappedLocationCodes, ", "))
	}
	ew.printf("Engine time:      %dms\n", meta.EngineTimeMs)
}

func (rg *ReportGenerator) printItem(item *models.MergedItemRow, ew *errWriter) {
	ew.printf("\n%s  %s  [%s]\n", item.ItemCode, item.ItemName, item.OverallDiscrepancy)
	ew.printf("  Stock A/B: %s / %s   Replenishment A/B: %s / %s\n",
		rg.fixed(item.TotalStockA), rg.fixed(item.TotalStockB),
		rg.fixed(item.TotalReplenA), rg.fixed(item.TotalReplenB))

	if !rg.config.IncludeLocations || len(item.Locations) == 0 {
		return
	}

	tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  LOCATION\tSTOCK A\tSTOCK B\tDELTA %%\tAVG A\tAVG B\tDOI A\tDOI B\tLEVEL\n")
	for i, loc := range item.Locations {
		if rg.config.MaxLocationsPerItem > 0 && i >= rg.config.MaxLocationsPerItem {
			fmt.Fprintf(tw, "  ... and %d more\n", len(item.Locations)-i)
			break
		}
		a, b := loc.A, loc.B
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			locationLabel(loc),
			rg.metric(a, func(m *models.SourceMetrics) decimal.Decimal { return m.Stock }),
			rg.metric(b, func(m *models.SourceMetrics) decimal.Decimal { return m.Stock }),
			loc.Delta.StockDeltaPct.StringFixed(2),
			rg.metric(a, func(m *models.SourceMetrics) decimal.Decimal { return m.AvgFlow }),
			rg.metric(b, func(m *models.SourceMetrics) decimal.Decimal { return m.AvgFlow }),
			rg.doi(a),
			rg.doi(b),
			loc.Discrepancy)
	}
	if err := tw.Flush(); err != nil && ew.err == nil {
		ew.err = err
	}
}

var reportLevels = []models.DiscrepancyLevel{
	models.DiscrepancyCritical,
	models.DiscrepancyWarning,
	models.DiscrepancyOK,
	models.DiscrepancyAOnly,
	models.DiscrepancyBOnly,
}

func (rg *ReportGenerator) fixed(d decimal.Decimal) string {
	return d.StringFixed(rg.config.DecimalPlaces)
}

func (rg *ReportGenerator) metric(m *models.SourceMetrics, field func(*models.SourceMetrics) decimal.Decimal) string {
	if m == nil {
		return "-"
	}
	return rg.fixed(field(m))
}

func (rg *ReportGenerator) doi(m *models.SourceMetrics) string {
	if m == nil || !m.DOI.Valid {
		return "-"
	}
	return rg.fixed(m.DOI.Decimal)
}

func locationLabel(loc *models.MergedLocationRow) string {
	label := loc.LocationCode
	if len(loc.SourceACodes) > 0 {
		label += " (" + strings.Join(loc.SourceACodes, ",") + ")"
	}
	if !loc.Mapped && loc.HasA {
		label += " *unmapped"
	}
	return label
}

func formatStatus(status reconciler.SourceStatus) string {
	if status.Error != "" {
		return fmt.Sprintf("%s (%s)", status.Status, status.Error)
	}
	return status.Status
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// errWriter keeps the first write error so the console renderer can
// print unconditionally and report once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	fmt.Fprintf(ew, format, args...)
}
