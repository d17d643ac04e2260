package cmd

import (
	"fmt"
	"time"

	"daysheet-reconciliation-service/cmd/daysheetrec/config"
	"daysheet-reconciliation-service/internal/coverage"
	"daysheet-reconciliation-service/internal/reporter"
	"daysheet-reconciliation-service/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the coverage command
var (
	coverageMonth  string
	coverageYear   int
	coverageFormat string
	coverageOut    string
)

// coverageCmd represents the coverage command
var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show month or year coverage of the committed snapshot",
	Long: `Coverage reports how completely the snapshot covers business days.
A month report compares deposit totals against bank credits and lists each
eligible weekday with its covered state. A year report rolls twelve months
up into red, orange, or green.

Examples:
  daysheetrec coverage --month 2026-01
  daysheetrec coverage --year 2026 --output-format json`,

	PreRunE: validateCoverageFlags,
	RunE:    runCoverage,
}

func init() {
	rootCmd.AddCommand(coverageCmd)

	coverageCmd.Flags().StringVarP(&coverageMonth, "month", "m", "", "month to report (YYYY-MM)")
	coverageCmd.Flags().IntVarP(&coverageYear, "year", "y", 0, "year to report")
	coverageCmd.Flags().StringVarP(&coverageFormat, "output-format", "f", "console", "output format: console, json, csv")
	coverageCmd.Flags().StringVarP(&coverageOut, "output-file", "o", "", "output file path (default: stdout)")
}

func validateCoverageFlags(cmd *cobra.Command, args []string) error {
	if coverageMonth == "" && coverageYear == 0 {
		return fmt.Errorf("either --month or --year is required")
	}
	if coverageMonth != "" && coverageYear != 0 {
		return fmt.Errorf("--month and --year are mutually exclusive")
	}
	if coverageMonth != "" {
		if _, err := time.Parse("2006-01", coverageMonth); err != nil {
			return fmt.Errorf("invalid month format. Use YYYY-MM: %w", err)
		}
	}
	return nil
}

func runCoverage(cmd *cobra.Command, args []string) error {
	st, err := store.Open(nil, viper.GetString("data-file"))
	if err != nil {
		return err
	}

	deposits := st.Deposits()
	transactions := st.Transactions()
	importLog := st.ImportLog()
	now := time.Now()

	report := &reporter.CoverageReport{GeneratedAt: now.UTC()}

	if coverageMonth != "" {
		parsed, _ := time.Parse("2006-01", coverageMonth)
		year, month := parsed.Year(), parsed.Month()

		summary := coverage.SummarizeMonth(deposits, transactions, year, month)
		days := coverage.MonthDays(deposits, importLog, year, month, now)
		report.Month = &summary
		report.Days = &days
	} else {
		report.Year = coverage.SummarizeYear(deposits, importLog, coverageYear, now)
	}

	reportConfig, err := config.CreateReportConfig(coverageFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	output, cleanup, err := openOutput(coverageOut)
	if err != nil {
		return err
	}
	defer cleanup()

	return generator.GenerateCoverage(report, output)
}
