package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"daysheet-reconciliation-service/cmd/daysheetrec/config"
	"daysheet-reconciliation-service/internal/models"
	"daysheet-reconciliation-service/internal/reconciler"
	"daysheet-reconciliation-service/internal/reporter"
	"daysheet-reconciliation-service/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	startDate        string
	endDate          string
	reconcileMonth   string
	amountTolerance  float64
	settlementWindow int
	outputFormat     string
	outputFile       string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match deposit records against bank credits for a date window",
	Long: `Reconcile pairs committed deposit records with bank credits inside
a date window. Each deposit claims the earliest unclaimed credit of the
same amount dated on or after it, within the settlement window. Unmatched
deposits and unclaimed credits are reported as discrepancies.

Examples:
  # Reconcile a calendar month
  daysheetrec reconcile --month 2026-01

  # Explicit window with JSON output
  daysheetrec reconcile --start-date 2026-01-01 --end-date 2026-01-31 \
    --output-format json --output-file report.json

  # Widen the amount tolerance
  daysheetrec reconcile --month 2026-01 --amount-tolerance 0.05`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&startDate, "start-date", "", "window start date (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVar(&endDate, "end-date", "", "window end date (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVarP(&reconcileMonth, "month", "m", "", "calendar month window (YYYY-MM), overrides start/end dates")

	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0.0, "absolute amount tolerance in dollars (default 0.02)")
	reconcileCmd.Flags().IntVarP(&settlementWindow, "settlement-window", "w", 0, "settlement window in days (default 45)")

	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("settlement-window", reconcileCmd.Flags().Lookup("settlement-window"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if reconcileMonth == "" && (startDate == "" || endDate == "") {
		return fmt.Errorf("either --month or both --start-date and --end-date are required")
	}

	if reconcileMonth != "" {
		if _, err := time.Parse("2006-01", reconcileMonth); err != nil {
			return fmt.Errorf("invalid month format. Use YYYY-MM: %w", err)
		}
	}
	if startDate != "" {
		if _, err := time.Parse(models.DateFormat, startDate); err != nil {
			return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
		}
	}
	if endDate != "" {
		if _, err := time.Parse(models.DateFormat, endDate); err != nil {
			return fmt.Errorf("invalid end date format. Use YYYY-MM-DD: %w", err)
		}
	}
	if startDate != "" && endDate != "" {
		start, _ := time.Parse(models.DateFormat, startDate)
		end, _ := time.Parse(models.DateFormat, endDate)
		if start.After(end) {
			return fmt.Errorf("start date cannot be after end date")
		}
	}

	if amountTolerance < 0 {
		return fmt.Errorf("amount tolerance cannot be negative")
	}
	if settlementWindow < 0 {
		return fmt.Errorf("settlement window cannot be negative")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func reconcileWindow() (time.Time, time.Time) {
	if reconcileMonth != "" {
		start, _ := time.Parse("2006-01", reconcileMonth)
		end := start.AddDate(0, 1, -1)
		return start, end
	}
	start, _ := time.Parse(models.DateFormat, startDate)
	end, _ := time.Parse(models.DateFormat, endDate)
	return start, end
}

func runReconcile(cmd *cobra.Command, args []string) error {
	windowStart, windowEnd := reconcileWindow()

	matchingConfig, err := config.CreateMatchingConfig(amountTolerance, settlementWindow)
	if err != nil {
		return err
	}

	st, err := store.Open(nil, viper.GetString("data-file"))
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(st, matchingConfig)
	if err != nil {
		return err
	}
	result, err := service.Run(cmd.Context(), &reconciler.Request{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	})
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	output, cleanup, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := generator.GenerateReconciliation(result.Report, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		summary := result.Report.Summary
		fmt.Fprintf(os.Stderr, "\nReconciled %d dates: %d matched, %d mismatched, %d orphans.\n",
			summary.Rows, summary.Matched, summary.Mismatched, summary.Orphans)
		for _, discrepancy := range result.Discrepancies {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", discrepancy.Severity, discrepancy.Description)
		}
	}
	return nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}
