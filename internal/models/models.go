// Package models defines the entity types shared across the reconciliation
// service: digitized day-sheet deposit records, imported bank transactions,
// and the import log that tracks committed sources.
//
// Amounts are decimal.Decimal throughout; float arithmetic is never used for
// money. Calendar dates are time.Time values normalized to midnight UTC so
// date comparisons are exact.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the ISO calendar date layout used for all persisted dates.
const DateFormat = "2006-01-02"

// DepositStatus represents the review state of a deposit record.
type DepositStatus string

const (
	// DepositPending marks a record extracted but not yet operator-verified.
	DepositPending DepositStatus = "pending"
	// DepositVerified marks a record confirmed by the operator.
	DepositVerified DepositStatus = "verified"
)

// IsValid checks if the deposit status is a known value.
func (s DepositStatus) IsValid() bool {
	return s == DepositPending || s == DepositVerified
}

// FileType tags the kind of source file recorded in the import log.
type FileType string

const (
	FileTypeDaySheet     FileType = "day-sheet"
	FileTypeBankCSV      FileType = "bank-csv"
	FileTypeBankPDF      FileType = "bank-statement-pdf"
)

// CardDetail is an optional per-network sub-split of the credit-card total.
type CardDetail struct {
	Visa       decimal.Decimal `json:"visa"`
	Mastercard decimal.Decimal `json:"mastercard"`
	Discover   decimal.Decimal `json:"discover"`
	Amex       decimal.Decimal `json:"amex"`
}

// Sum returns the total across all card networks.
func (cd *CardDetail) Sum() decimal.Decimal {
	return cd.Visa.Add(cd.Mastercard).Add(cd.Discover).Add(cd.Amex)
}

// Breakdown holds the per-payment-method sub-totals of a day sheet.
// CheckDetail and CardDetail are optional nested detail; when present their
// sums must equal the corresponding summary field (validated at ingestion,
// trusted afterwards).
type Breakdown struct {
	Cash                 decimal.Decimal `json:"cash"`
	Checks               decimal.Decimal `json:"checks"`
	InsuranceChecks      decimal.Decimal `json:"insuranceChecks"`
	CreditCards          decimal.Decimal `json:"creditCards"`
	InsuranceCreditCards decimal.Decimal `json:"insuranceCreditCards"`
	CareFinancing        decimal.Decimal `json:"careFinancing"`
	SecondaryFinancing   decimal.Decimal `json:"secondaryFinancing"`
	ElectronicTransfer   decimal.Decimal `json:"electronicTransfer"`
	Other                decimal.Decimal `json:"other"`

	CheckDetail []decimal.Decimal `json:"checkDetail,omitempty"`
	CardDetail  *CardDetail       `json:"cardDetail,omitempty"`
}

// Sum returns the total across all payment-method fields.
func (b *Breakdown) Sum() decimal.Decimal {
	return b.Cash.
		Add(b.Checks).
		Add(b.InsuranceChecks).
		Add(b.CreditCards).
		Add(b.InsuranceCreditCards).
		Add(b.CareFinancing).
		Add(b.SecondaryFinancing).
		Add(b.ElectronicTransfer).
		Add(b.Other)
}

// CheckDetailSum returns the sum of the individual check amounts.
func (b *Breakdown) CheckDetailSum() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range b.CheckDetail {
		total = total.Add(amount)
	}
	return total
}

// DepositRecord is the digitized day-sheet total for one business date.
type DepositRecord struct {
	ID          string        `json:"id"`
	Date        time.Time     `json:"date"`
	Total       decimal.Decimal `json:"total"`
	Breakdown   Breakdown     `json:"breakdown"`
	Status      DepositStatus `json:"status"`
	SourceImage string        `json:"sourceImage,omitempty"`
	Notes       string        `json:"notes,omitempty"`
}

// Validate performs structural validation on the deposit record. A zero date
// is rejected here; a record must never be committed with a guessed date.
func (d *DepositRecord) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("deposit record ID cannot be empty")
	}
	if d.Date.IsZero() {
		return fmt.Errorf("deposit record date cannot be zero")
	}
	if d.Total.IsNegative() {
		return fmt.Errorf("deposit record total cannot be negative")
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("invalid deposit status: %s", d.Status)
	}
	return nil
}

// BreakdownDrift returns the difference between the stated total and the
// breakdown sum. The stated total is authoritative for matching; a non-zero
// drift beyond the tolerance is surfaced as a warning, never a hard error.
func (d *DepositRecord) BreakdownDrift() decimal.Decimal {
	return d.Total.Sub(d.Breakdown.Sum())
}

// String returns a short representation for logs.
func (d *DepositRecord) String() string {
	return fmt.Sprintf("DepositRecord{ID: %s, Date: %s, Total: %s, Status: %s}",
		d.ID, d.Date.Format(DateFormat), d.Total.String(), d.Status)
}

// MarshalJSON renders the date as a calendar date.
func (d *DepositRecord) MarshalJSON() ([]byte, error) {
	type Alias DepositRecord
	return json.Marshal(&struct {
		Date string `json:"date"`
		*Alias
	}{
		Date:  d.Date.Format(DateFormat),
		Alias: (*Alias)(d),
	})
}

// UnmarshalJSON parses the calendar date back into a midnight-UTC time.
func (d *DepositRecord) UnmarshalJSON(data []byte) error {
	type Alias DepositRecord
	aux := &struct {
		Date string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	date, err := time.Parse(DateFormat, aux.Date)
	if err != nil {
		return fmt.Errorf("invalid deposit date format: %w", err)
	}
	d.Date = date
	return nil
}

// BankTransaction is one signed line item from a bank statement or export.
// Positive amounts are credits (the deposit side).
type BankTransaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"paymentType,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// Validate performs structural validation on the bank transaction.
func (t *BankTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("bank transaction ID cannot be empty")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("bank transaction date cannot be zero")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("bank transaction description cannot be empty")
	}
	return nil
}

// IsCredit reports whether the transaction is on the deposit side.
func (t *BankTransaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// String returns a short representation for logs.
func (t *BankTransaction) String() string {
	return fmt.Sprintf("BankTransaction{ID: %s, Date: %s, Amount: %s, Description: %q}",
		t.ID, t.Date.Format(DateFormat), t.Amount.String(), t.Description)
}

// MarshalJSON renders the date as a calendar date.
func (t *BankTransaction) MarshalJSON() ([]byte, error) {
	type Alias BankTransaction
	return json.Marshal(&struct {
		Date string `json:"date"`
		*Alias
	}{
		Date:  t.Date.Format(DateFormat),
		Alias: (*Alias)(t),
	})
}

// UnmarshalJSON parses the calendar date back into a midnight-UTC time.
func (t *BankTransaction) UnmarshalJSON(data []byte) error {
	type Alias BankTransaction
	aux := &struct {
		Date string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	date, err := time.Parse(DateFormat, aux.Date)
	if err != nil {
		return fmt.Errorf("invalid transaction date format: %w", err)
	}
	t.Date = date
	return nil
}

// ImportLogEntry records one committed import, keyed by content identity.
// Entries are never mutated; the log is cleared only by an explicit reset.
type ImportLogEntry struct {
	Key         string    `json:"key"`
	Date        time.Time `json:"date"`
	ImportedAt  time.Time `json:"importedAt"`
	FileName    string    `json:"fileName"`
	FileType    FileType  `json:"fileType"`
	RecordCount int       `json:"recordCount"`
	ContentHash string    `json:"contentHash,omitempty"`
}

// Validate performs structural validation on an import log entry.
func (e *ImportLogEntry) Validate() error {
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("import log key cannot be empty")
	}
	if e.ImportedAt.IsZero() {
		return fmt.Errorf("import log timestamp cannot be zero")
	}
	return nil
}

// Date normalizes a timestamp to midnight UTC, the canonical representation
// for business dates.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateToDate drops the time-of-day component, keeping the calendar date
// in UTC.
func TruncateToDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two times fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return TruncateToDate(a).Equal(TruncateToDate(b))
}

// ParseAmount parses a currency amount from a string, stripping common
// currency symbols and thousand separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s': %w", s, err)
	}
	return d, nil
}

// ParseDate attempts to parse a calendar date using the formats commonly
// found in bank exports and filenames.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		DateFormat,
		"01/02/2006",
		"1/2/2006",
		"2006/01/02",
		"01-02-2006",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return TruncateToDate(t), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}
