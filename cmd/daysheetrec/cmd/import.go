package cmd

import (
	"context"
	"fmt"
	"os"

	"daysheet-reconciliation-service/cmd/daysheetrec/config"
	"daysheet-reconciliation-service/internal/conflict"
	"daysheet-reconciliation-service/internal/ingest"
	"daysheet-reconciliation-service/internal/parsers"
	"daysheet-reconciliation-service/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the import command
var (
	bankFile      string
	bankProfile   string
	bankDateFmt   string
	bankDelimiter string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank statement CSV into the committed snapshot",
	Long: `Import parses a bank statement CSV, drops rows whose date,
description, and amount already exist in the snapshot, commits the rest,
and records the file in the import log. Re-importing identical content is
a no-op.

Examples:
  # Import with the standard column layout
  daysheetrec import --bank-file statements.csv

  # Import a Chase export
  daysheetrec import --bank-file chase.csv --profile chase

  # Override the date format
  daysheetrec import --bank-file stmt.csv --date-format 01/02/2006`,

	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&bankFile, "bank-file", "b", "", "path to bank statement CSV file (required)")
	importCmd.Flags().StringVar(&bankProfile, "profile", "", "bank profile: standard, chase, wellsfargo")
	importCmd.Flags().StringVar(&bankDateFmt, "date-format", "", "date format override (Go layout, e.g. 01/02/2006)")
	importCmd.Flags().StringVar(&bankDelimiter, "delimiter", "", "field delimiter override")

	importCmd.MarkFlagRequired("bank-file")

	viper.BindPFlag("bank-file", importCmd.Flags().Lookup("bank-file"))
	viper.BindPFlag("profile", importCmd.Flags().Lookup("profile"))
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if bankFile == "" {
		bankFile = viper.GetString("bank-file")
	}
	if bankFile == "" {
		return fmt.Errorf("bank-file is required")
	}
	return validateFileExists(bankFile, "bank statement file")
}

func runImport(cmd *cobra.Command, args []string) error {
	bankConfig, err := resolveBankConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(nil, viper.GetString("data-file"))
	if err != nil {
		return err
	}

	service, err := ingest.NewService(st)
	if err != nil {
		return err
	}

	file, err := os.Open(bankFile)
	if err != nil {
		return fmt.Errorf("failed to open bank file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat bank file: %w", err)
	}
	meta := conflict.FileMeta{
		Name:         info.Name(),
		Path:         bankFile,
		ModifiedTime: info.ModTime(),
	}

	result, err := service.ImportBankCSV(context.Background(), file, meta, bankConfig)
	if err != nil {
		return err
	}

	if result.AlreadyImported {
		fmt.Fprintf(os.Stdout, "Already imported; nothing to do.\n")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Imported %d transactions (%d duplicates dropped).\n",
		result.Imported, result.DuplicateDropped)
	if result.ParseStats != nil && len(result.ParseStats.Errors) > 0 {
		fmt.Fprintln(os.Stderr, FormatBatchErrors(result.ParseStats.Errors))
	}
	return nil
}

func resolveBankConfig() (*parsers.BankConfig, error) {
	if bankProfile != "" {
		profile, err := config.BankProfile(bankProfile)
		if err != nil {
			return nil, err
		}
		return profile, nil
	}
	return config.CreateBankConfig(bankDateFmt, bankDelimiter)
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}
