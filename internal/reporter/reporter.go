// Package reporter renders reconciliation and coverage results for
// terminal display and for export.
//
// Supported output formats:
//   - Console: human-readable tabular output
//   - JSON: structured data for programmatic consumption
//   - CSV: row-per-date export for spreadsheets
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"daysheet-reconciliation-service/internal/coverage"
	"daysheet-reconciliation-service/internal/matcher"
	"daysheet-reconciliation-service/internal/models"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeMatchedRows bool `json:"include_matched_rows"`
	IncludeOrphans     bool `json:"include_orphans"`
	IncludeSummary     bool `json:"include_summary"`

	// Console formatting options
	MaxRows int `json:"max_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeMatchedRows: true,
		IncludeOrphans:     true,
		IncludeSummary:     true,
		MaxRows:            0,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max rows cannot be negative, got %d", c.MaxRows)
	}
	return nil
}

// ReportGenerator renders reconciliation rows and coverage summaries in the
// configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the specified
// configuration. A nil configuration selects the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// ReconciliationReport bundles the rows and their aggregate summary with the
// window they describe.
type ReconciliationReport struct {
	WindowStart time.Time                   `json:"windowStart"`
	WindowEnd   time.Time                   `json:"windowEnd"`
	GeneratedAt time.Time                   `json:"generatedAt"`
	Rows        []matcher.ReconciliationRow `json:"rows"`
	Summary     matcher.Summary             `json:"summary"`
}

// GenerateReconciliation writes a reconciliation report to the writer.
func (rg *ReportGenerator) GenerateReconciliation(report *ReconciliationReport, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("reconciliation report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.reconciliationConsole(report, writer)
	case FormatJSON:
		return rg.encodeJSON(report, writer)
	case FormatCSV:
		return rg.reconciliationCSV(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) reconciliationConsole(report *ReconciliationReport, writer io.Writer) error {
	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Window:    %s to %s\n",
		report.WindowStart.Format(models.DateFormat),
		report.WindowEnd.Format(models.DateFormat))
	fmt.Fprintf(writer, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "%-12s %12s %12s %12s  %s\n",
		"DATE", "DEPOSIT", "BANK", "DIFF", "STATUS")

	printed := 0
	for _, row := range report.Rows {
		if !rg.includeRow(row) {
			continue
		}
		if rg.config.MaxRows > 0 && printed >= rg.config.MaxRows {
			fmt.Fprintf(writer, "  ... and more rows not shown\n")
			break
		}
		fmt.Fprintf(writer, "%-12s %12s %12s %12s  %s\n",
			row.Date.Format(models.DateFormat),
			row.DepositTotal.StringFixed(2),
			row.BankTotal.StringFixed(2),
			row.Difference.StringFixed(2),
			rowStatus(row))
		if row.Note != "" {
			fmt.Fprintf(writer, "%-12s   %s\n", "", row.Note)
		}
		printed++
	}

	if rg.config.IncludeSummary {
		fmt.Fprintf(writer, "\n=== SUMMARY ===\n")
		rg.printSummary(report.Summary, writer)
	}
	return nil
}

func (rg *ReportGenerator) printSummary(summary matcher.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Rows:        %d\n", summary.Rows)
	fmt.Fprintf(writer, "Matched:     %d (%.1f%%)\n",
		summary.Matched, percentage(summary.Matched, summary.Rows))
	fmt.Fprintf(writer, "Mismatched:  %d (%.1f%%)\n",
		summary.Mismatched, percentage(summary.Mismatched, summary.Rows))
	fmt.Fprintf(writer, "Orphans:     %d (%.1f%%)\n",
		summary.Orphans, percentage(summary.Orphans, summary.Rows))
	fmt.Fprintf(writer, "Deposit Sum: %s\n", summary.DepositSum.StringFixed(2))
	fmt.Fprintf(writer, "Bank Sum:    %s\n", summary.BankSum.StringFixed(2))
	fmt.Fprintf(writer, "Net:         %s\n", summary.BankSum.Sub(summary.DepositSum).StringFixed(2))
}

func (rg *ReportGenerator) reconciliationCSV(report *ReconciliationReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Date",
			"Deposit_Total",
			"Bank_Total",
			"Difference",
			"Status",
			"Deposit_ID",
			"Transaction_Count",
			"Notes",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range report.Rows {
		if !rg.includeRow(row) {
			continue
		}
		record := []string{
			row.Date.Format(models.DateFormat),
			row.DepositTotal.StringFixed(2),
			row.BankTotal.StringFixed(2),
			row.Difference.StringFixed(2),
			rowStatus(row),
			row.DepositID,
			fmt.Sprintf("%d", len(row.TransactionIDs)),
			row.Note,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write reconciliation row: %w", err)
		}
	}

	return csvWriter.Error()
}

func (rg *ReportGenerator) includeRow(row matcher.ReconciliationRow) bool {
	if row.Matches && !rg.config.IncludeMatchedRows {
		return false
	}
	if row.Orphan && !rg.config.IncludeOrphans {
		return false
	}
	return true
}

func rowStatus(row matcher.ReconciliationRow) string {
	switch {
	case row.Matches:
		return "matched"
	case row.Orphan:
		return "orphan"
	default:
		return "mismatch"
	}
}

// CoverageReport bundles a month financial summary with its day coverage,
// plus the optional year roll-up.
type CoverageReport struct {
	GeneratedAt time.Time                `json:"generatedAt"`
	Month       *coverage.MonthSummary   `json:"month,omitempty"`
	Days        *coverage.MonthCoverage  `json:"days,omitempty"`
	Year        []coverage.MonthCoverage `json:"year,omitempty"`
}

// GenerateCoverage writes a coverage report to the writer.
func (rg *ReportGenerator) GenerateCoverage(report *CoverageReport, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("coverage report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.coverageConsole(report, writer)
	case FormatJSON:
		return rg.encodeJSON(report, writer)
	case FormatCSV:
		return rg.coverageCSV(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) coverageConsole(report *CoverageReport, writer io.Writer) error {
	fmt.Fprintf(writer, "COVERAGE REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	if report.Month != nil {
		m := report.Month
		fmt.Fprintf(writer, "=== %s %d ===\n", m.Month, m.Year)
		fmt.Fprintf(writer, "Deposit Total: %s (%d records)\n", m.DepositTotal.StringFixed(2), m.DepositCount)
		fmt.Fprintf(writer, "Bank Total:    %s (%d credits)\n", m.BankTotal.StringFixed(2), m.BankCount)
		fmt.Fprintf(writer, "Difference:    %s\n", m.Difference.StringFixed(2))
		fmt.Fprintf(writer, "Status:        %s\n\n", m.Status)
	}

	if report.Days != nil {
		covered := 0
		for _, day := range report.Days.Days {
			if day.Covered {
				covered++
			}
		}
		fmt.Fprintf(writer, "Business days: %d covered / %d eligible (%s)\n",
			covered, len(report.Days.Days), report.Days.Status)
		for _, day := range report.Days.Days {
			mark := " "
			if day.Covered {
				mark = "x"
			}
			fmt.Fprintf(writer, "  [%s] %s\n", mark, day.Date.Format(models.DateFormat))
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(report.Year) > 0 {
		fmt.Fprintf(writer, "=== YEAR ===\n")
		for _, month := range report.Year {
			covered := 0
			for _, day := range month.Days {
				if day.Covered {
					covered++
				}
			}
			fmt.Fprintf(writer, "%-10s %3d/%3d  %s\n",
				month.Month, covered, len(month.Days), month.Status)
		}
	}

	return nil
}

func (rg *ReportGenerator) coverageCSV(report *CoverageReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{"Date", "Covered", "Status"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	writeMonth := func(month *coverage.MonthCoverage) error {
		for _, day := range month.Days {
			record := []string{
				day.Date.Format(models.DateFormat),
				fmt.Sprintf("%t", day.Covered),
				string(month.Status),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write coverage row: %w", err)
			}
		}
		return nil
	}

	if report.Days != nil {
		if err := writeMonth(report.Days); err != nil {
			return err
		}
	}
	for i := range report.Year {
		if err := writeMonth(&report.Year[i]); err != nil {
			return err
		}
	}

	return csvWriter.Error()
}

func (rg *ReportGenerator) encodeJSON(v interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
