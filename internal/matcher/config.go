// Package matcher implements the deposit/bank-transaction matching engine.
//
// The engine pairs day-sheet deposit records with bank transactions using a
// single-pass greedy assignment: deposits are processed in ascending date
// order and each claims the first unclaimed candidate transaction whose
// amount is within the currency tolerance and whose date falls inside the
// forward settlement window. The tie-break rule (ascending candidate date,
// then first-encountered) is part of the contract; any two runs over the
// same snapshot produce identical output.
//
// The greedy assignment is deliberately not a globally optimal matching.
// With realistic volumes (tens of rows per month) and tight amount
// tolerances, ambiguous assignments are rare and always surface as a pair of
// mismatch and orphan rows the operator can resolve by eye.
//
// Example usage:
//
//	engine := matcher.NewEngine(matcher.DefaultConfig())
//	rows, err := engine.Reconcile(deposits, transactions, monthStart, monthEnd)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the tunable parameters of the matching engine.
type Config struct {
	// AmountTolerance is the maximum absolute difference between a deposit
	// total and a transaction amount for the pair to match. The default of
	// 0.02 absorbs currency rounding introduced by card processors.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// SettlementWindowDays is the maximum number of days a bank transaction
	// may lag behind the deposit it settles. Card settlements beyond the
	// window are not detected; they surface as a persistent mismatch plus an
	// orphan in the later month, for manual review.
	SettlementWindowDays int `json:"settlement_window_days"`
}

// DefaultConfig returns the engine defaults: two-cent amount tolerance and a
// 45-day settlement window.
func DefaultConfig() *Config {
	return &Config{
		AmountTolerance:      decimal.NewFromFloat(0.02),
		SettlementWindowDays: 45,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", c.AmountTolerance.String())
	}
	if c.SettlementWindowDays < 0 {
		return fmt.Errorf("settlement window days cannot be negative: %d", c.SettlementWindowDays)
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		AmountTolerance:      c.AmountTolerance,
		SettlementWindowDays: c.SettlementWindowDays,
	}
}

// String returns a human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{AmountTolerance: %s, SettlementWindow: %d days}",
		c.AmountTolerance.String(), c.SettlementWindowDays)
}
