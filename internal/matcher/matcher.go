package matcher

import (
	"fmt"
	"sort"
	"time"

	"daysheet-reconciliation-service/internal/models"
	"daysheet-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// ReconciliationRow is one derived comparison row. Rows are recomputed on
// every query from the committed snapshot and are never persisted.
type ReconciliationRow struct {
	Date           time.Time       `json:"date"`
	DepositTotal   decimal.Decimal `json:"depositTotal"`
	BankTotal      decimal.Decimal `json:"bankTotal"`
	Difference     decimal.Decimal `json:"difference"`
	Matches        bool            `json:"matches"`
	DepositID      string          `json:"depositId,omitempty"`
	TransactionIDs []string        `json:"transactionIds,omitempty"`
	Orphan         bool            `json:"orphan"`
	Mismatch       bool            `json:"mismatch"`
	Note           string          `json:"note,omitempty"`
}

// Engine pairs deposit records with bank transactions over a snapshot.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates a matching engine with the given configuration. A nil
// configuration selects the defaults.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config: config.Clone(),
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Reconcile pairs each deposit dated within [windowStart, windowEnd] with
// the first satisfying bank transaction, then reports unclaimed in-window
// credits as orphans. Callers pass transactions from a wider horizon than
// the window itself so a deposit late in the month can match a settlement in
// the following month.
//
// The result is sorted by descending date; within a date, deposit rows keep
// their ascending processing order and orphans follow their pool order.
func (e *Engine) Reconcile(
	deposits []*models.DepositRecord,
	transactions []*models.BankTransaction,
	windowStart, windowEnd time.Time,
) ([]ReconciliationRow, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	if windowEnd.Before(windowStart) {
		return nil, fmt.Errorf("window end %s precedes window start %s",
			windowEnd.Format(models.DateFormat), windowStart.Format(models.DateFormat))
	}

	windowStart = models.TruncateToDate(windowStart)
	windowEnd = models.TruncateToDate(windowEnd)

	// Deposit pool: only deposits inside the window, ascending by date.
	pool := make([]*models.DepositRecord, 0, len(deposits))
	for _, d := range deposits {
		date := models.TruncateToDate(d.Date)
		if !date.Before(windowStart) && !date.After(windowEnd) {
			pool = append(pool, d)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Date.Before(pool[j].Date)
	})

	// Candidate pool: deposit-side transactions dated on/after the window
	// start, ascending by date. The ascending order is what makes the
	// first-satisfying-candidate rule deterministic.
	candidates := make([]*models.BankTransaction, 0, len(transactions))
	for _, t := range transactions {
		if t.IsCredit() && !models.TruncateToDate(t.Date).Before(windowStart) {
			candidates = append(candidates, t)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date.Before(candidates[j].Date)
	})

	claimed := make(map[string]bool, len(candidates))
	rows := make([]ReconciliationRow, 0, len(pool))

	for _, deposit := range pool {
		match := e.findCandidate(deposit, candidates, claimed)
		if match == nil {
			rows = append(rows, ReconciliationRow{
				Date:         models.TruncateToDate(deposit.Date),
				DepositTotal: deposit.Total,
				BankTotal:    decimal.Zero,
				Difference:   deposit.Total.Neg(),
				DepositID:    deposit.ID,
				Mismatch:     true,
			})
			continue
		}

		claimed[match.ID] = true
		row := ReconciliationRow{
			Date:           models.TruncateToDate(deposit.Date),
			DepositTotal:   deposit.Total,
			BankTotal:      match.Amount,
			Difference:     match.Amount.Sub(deposit.Total),
			Matches:        true,
			DepositID:      deposit.ID,
			TransactionIDs: []string{match.ID},
		}
		if !models.SameDate(deposit.Date, match.Date) {
			lag := int(models.TruncateToDate(match.Date).Sub(models.TruncateToDate(deposit.Date)).Hours() / 24)
			row.Note = fmt.Sprintf("settled %d day(s) later on %s", lag, match.Date.Format(models.DateFormat))
		}
		rows = append(rows, row)
	}

	// Unclaimed in-window credits are orphans: possible unrecorded deposits
	// or misclassified bank entries.
	for _, t := range candidates {
		if claimed[t.ID] || models.TruncateToDate(t.Date).After(windowEnd) {
			continue
		}
		rows = append(rows, ReconciliationRow{
			Date:           models.TruncateToDate(t.Date),
			DepositTotal:   decimal.Zero,
			BankTotal:      t.Amount,
			Difference:     t.Amount,
			TransactionIDs: []string{t.ID},
			Orphan:         true,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})

	e.logger.WithFields(logger.Fields{
		"window_start": windowStart.Format(models.DateFormat),
		"window_end":   windowEnd.Format(models.DateFormat),
		"deposits":     len(pool),
		"candidates":   len(candidates),
		"rows":         len(rows),
	}).Debug("Reconciliation computed")

	return rows, nil
}

// findCandidate returns the first unclaimed candidate satisfying all three
// matching constraints, or nil. Candidates are already sorted ascending by
// date, so "first" encodes the documented tie-break.
func (e *Engine) findCandidate(
	deposit *models.DepositRecord,
	candidates []*models.BankTransaction,
	claimed map[string]bool,
) *models.BankTransaction {
	depositDate := models.TruncateToDate(deposit.Date)
	windowEnd := depositDate.AddDate(0, 0, e.config.SettlementWindowDays)

	for _, candidate := range candidates {
		if claimed[candidate.ID] {
			continue
		}

		candidateDate := models.TruncateToDate(candidate.Date)
		// A transaction cannot settle before the business activity it
		// represents.
		if candidateDate.Before(depositDate) {
			continue
		}
		if candidateDate.After(windowEnd) {
			// Candidates are date-ordered; everything further is also out of
			// the settlement window.
			break
		}
		if candidate.Amount.Sub(deposit.Total).Abs().GreaterThan(e.config.AmountTolerance) {
			continue
		}
		return candidate
	}
	return nil
}

// Summary aggregates a reconciliation result for reporting.
type Summary struct {
	Rows       int             `json:"rows"`
	Matched    int             `json:"matched"`
	Mismatched int             `json:"mismatched"`
	Orphans    int             `json:"orphans"`
	DepositSum decimal.Decimal `json:"depositSum"`
	BankSum    decimal.Decimal `json:"bankSum"`
}

// Summarize computes aggregate statistics over reconciliation rows.
func Summarize(rows []ReconciliationRow) Summary {
	summary := Summary{
		Rows:       len(rows),
		DepositSum: decimal.Zero,
		BankSum:    decimal.Zero,
	}
	for _, row := range rows {
		switch {
		case row.Matches:
			summary.Matched++
		case row.Orphan:
			summary.Orphans++
		default:
			summary.Mismatched++
		}
		summary.DepositSum = summary.DepositSum.Add(row.DepositTotal)
		summary.BankSum = summary.BankSum.Add(row.BankTotal)
	}
	return summary
}
