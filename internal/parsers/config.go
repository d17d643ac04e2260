// Package parsers turns bank statement exports into BankTransaction
// candidates for the ingestion pipeline.
//
// Column layout is always explicit configuration: each bank profile names
// its date, description, and amount columns and the date format it uses.
// The parser never guesses a column from its content. Row-level problems are
// collected and reported; one bad row never aborts the batch.
package parsers

import (
	"fmt"
	"strings"
)

// BankConfig describes the CSV layout of one bank's export format.
type BankConfig struct {
	Name              string            `json:"name"`
	DateColumn        string            `json:"date_column"`
	DescriptionColumn string            `json:"description_column"`
	AmountColumn      string            `json:"amount_column"`
	DateFormat        string            `json:"date_format"`
	HasHeader         bool              `json:"has_header"`
	Delimiter         rune              `json:"delimiter"`
	ColumnAliases     map[string]string `json:"column_aliases,omitempty"`
	Description       string            `json:"description,omitempty"`
}

// DefaultBankConfig returns the layout used by the standard export format:
// header row with date, description, and amount columns, ISO dates.
func DefaultBankConfig() *BankConfig {
	return &BankConfig{
		Name:              "Standard",
		DateColumn:        "date",
		DescriptionColumn: "description",
		AmountColumn:      "amount",
		DateFormat:        "2006-01-02",
		HasHeader:         true,
		Delimiter:         ',',
		ColumnAliases: map[string]string{
			"posted_date":      "date",
			"posting_date":     "date",
			"transaction_date": "date",
			"memo":             "description",
			"details":          "description",
			"payee":            "description",
			"amt":              "amount",
			"value":            "amount",
		},
		Description: "Standard CSV export with date, description, and amount columns",
	}
}

// Validate checks the bank configuration for required fields.
func (c *BankConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("bank config name cannot be empty")
	}
	if strings.TrimSpace(c.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}
	if strings.TrimSpace(c.DescriptionColumn) == "" {
		return fmt.Errorf("description column cannot be empty")
	}
	if strings.TrimSpace(c.AmountColumn) == "" {
		return fmt.Errorf("amount column cannot be empty")
	}
	if strings.TrimSpace(c.DateFormat) == "" {
		return fmt.Errorf("date format cannot be empty")
	}
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be zero")
	}
	return nil
}

// canonicalColumn maps a header name through the alias table, lower-casing
// and trimming first.
func (c *BankConfig) canonicalColumn(header string) string {
	name := strings.ToLower(strings.TrimSpace(header))
	if alias, ok := c.ColumnAliases[name]; ok {
		return alias
	}
	return name
}
