// Package config builds component configurations from CLI flag values.
package config

import (
	"fmt"

	"daysheet-reconciliation-service/internal/matcher"
	"daysheet-reconciliation-service/internal/parsers"
	"daysheet-reconciliation-service/internal/reporter"

	"github.com/shopspring/decimal"
)

// CreateBankConfig creates a bank statement parser configuration with
// optional CLI overrides applied to the defaults.
func CreateBankConfig(dateFormat string, delimiter string) (*parsers.BankConfig, error) {
	config := parsers.DefaultBankConfig()

	if dateFormat != "" {
		config.DateFormat = dateFormat
	}
	if delimiter != "" {
		runes := []rune(delimiter)
		if len(runes) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		config.Delimiter = runes[0]
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bank config: %w", err)
	}
	return config, nil
}

// CreateMatchingConfig creates a matching configuration with the specified
// tolerances. Zero values keep the defaults.
func CreateMatchingConfig(amountTolerance float64, settlementWindowDays int) (*matcher.Config, error) {
	config := matcher.DefaultConfig()

	if amountTolerance > 0 {
		config.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	}
	if settlementWindowDays > 0 {
		config.SettlementWindowDays = settlementWindowDays
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output
// format.
func CreateReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console", "":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		return nil, fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", format)
	}

	return config, nil
}

// CommonBankProfiles returns configurations for bank CSV exports seen in
// practice. Profiles differ only in column names and date layout.
func CommonBankProfiles() map[string]*parsers.BankConfig {
	return map[string]*parsers.BankConfig{
		"standard": parsers.DefaultBankConfig(),
		"chase": {
			Name:              "Chase Bank",
			DateColumn:        "posting_date",
			DescriptionColumn: "description",
			AmountColumn:      "amount",
			DateFormat:        "01/02/2006",
			HasHeader:         true,
			Delimiter:         ',',
			Description:       "Chase Bank statement export",
		},
		"wellsfargo": {
			Name:              "Wells Fargo",
			DateColumn:        "date",
			DescriptionColumn: "description",
			AmountColumn:      "amount",
			DateFormat:        "01/02/2006",
			HasHeader:         true,
			Delimiter:         ',',
			Description:       "Wells Fargo statement export",
		},
	}
}

// BankProfile returns a bank configuration by profile name.
func BankProfile(profileName string) (*parsers.BankConfig, error) {
	profile, ok := CommonBankProfiles()[profileName]
	if !ok {
		return nil, fmt.Errorf("unknown bank profile: %s", profileName)
	}
	return profile, nil
}
