// Package reconciler orchestrates window reconciliation end-to-end: it
// loads committed state, runs the matching pass, classifies the resulting
// discrepancies, and assembles the report payload the presentation layer
// renders.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"daysheet-reconciliation-service/internal/matcher"
	"daysheet-reconciliation-service/internal/models"
	"daysheet-reconciliation-service/internal/reporter"
	"daysheet-reconciliation-service/internal/store"
	apperrors "daysheet-reconciliation-service/pkg/errors"
	"daysheet-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Service coordinates one reconciliation run over the persistent state.
type Service struct {
	store  *store.Store
	engine *matcher.Engine
	logger logger.Logger
}

// NewService creates a reconciliation service over the given store. A nil
// matching configuration selects the defaults.
func NewService(st *store.Store, matchingConfig *matcher.Config) (*Service, error) {
	if st == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "store", nil, nil).
			WithSuggestion("Open the state store before creating the reconciliation service")
	}
	return &Service{
		store:  st,
		engine: matcher.NewEngine(matchingConfig),
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Request describes the window to reconcile.
type Request struct {
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
}

// Validate checks the request window.
func (r *Request) Validate() error {
	if r.WindowStart.IsZero() || r.WindowEnd.IsZero() {
		return fmt.Errorf("window start and end are required")
	}
	if r.WindowStart.After(r.WindowEnd) {
		return fmt.Errorf("window start %s is after window end %s",
			r.WindowStart.Format(models.DateFormat), r.WindowEnd.Format(models.DateFormat))
	}
	return nil
}

// MonthRequest builds the request covering one calendar month.
func MonthRequest(year int, month time.Month) *Request {
	start := models.Date(year, month, 1)
	return &Request{WindowStart: start, WindowEnd: start.AddDate(0, 1, -1)}
}

// DiscrepancyType classifies an unreconciled row.
type DiscrepancyType string

const (
	// DiscrepancyMissingCredit is a deposit with no bank credit inside the
	// settlement window.
	DiscrepancyMissingCredit DiscrepancyType = "missing_credit"
	// DiscrepancyUnclaimedCredit is an in-window bank credit no deposit
	// claims.
	DiscrepancyUnclaimedCredit DiscrepancyType = "unclaimed_credit"
	// DiscrepancyAmountDrift is a matched pair settled at a different amount
	// than recorded, inside tolerance but not exact.
	DiscrepancyAmountDrift DiscrepancyType = "amount_drift"
)

// Severity ranks a discrepancy for triage.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityInfo   Severity = "info"
)

// Discrepancy is one unreconciled or imperfect row, classified for triage.
// A missing credit is the condition the whole process exists to catch, so it
// ranks above an unclaimed credit, which usually means the paper side is
// behind.
type Discrepancy struct {
	Type        DiscrepancyType `json:"type"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	DepositID   string          `json:"depositId,omitempty"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
}

// Stats captures run-level processing counts and timing.
type Stats struct {
	Deposits     int           `json:"deposits"`
	Transactions int           `json:"transactions"`
	MatchingTime time.Duration `json:"matching_time"`
}

// Result bundles the rendered-ready report with the classified
// discrepancies and run statistics.
type Result struct {
	Report        *reporter.ReconciliationReport `json:"report"`
	Discrepancies []*Discrepancy                 `json:"discrepancies,omitempty"`
	Stats         *Stats                         `json:"stats"`
}

// Run executes one reconciliation pass for the requested window.
func (s *Service) Run(ctx context.Context, request *Request) (*Result, error) {
	if request == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryValidation, apperrors.CodeInvalidDate,
			"invalid reconciliation window")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryReconciliation, apperrors.CodeUnexpectedError,
			"reconciliation cancelled")
	}

	deposits := s.store.Deposits()
	transactions := s.store.Transactions()

	started := time.Now()
	rows, err := s.engine.Reconcile(deposits, transactions, request.WindowStart, request.WindowEnd)
	if err != nil {
		return nil, err
	}
	matchingTime := time.Since(started)

	summary := matcher.Summarize(rows)
	s.logger.WithFields(logger.Fields{
		"window_start": request.WindowStart.Format(models.DateFormat),
		"window_end":   request.WindowEnd.Format(models.DateFormat),
		"rows":         summary.Rows,
		"matched":      summary.Matched,
		"mismatched":   summary.Mismatched,
		"orphans":      summary.Orphans,
	}).Info("Reconciliation pass complete")

	return &Result{
		Report: &reporter.ReconciliationReport{
			WindowStart: request.WindowStart,
			WindowEnd:   request.WindowEnd,
			GeneratedAt: time.Now().UTC(),
			Rows:        rows,
			Summary:     summary,
		},
		Discrepancies: classifyDiscrepancies(rows),
		Stats: &Stats{
			Deposits:     len(deposits),
			Transactions: len(transactions),
			MatchingTime: matchingTime,
		},
	}, nil
}

func classifyDiscrepancies(rows []matcher.ReconciliationRow) []*Discrepancy {
	var discrepancies []*Discrepancy
	for _, row := range rows {
		switch {
		case row.Mismatch:
			discrepancies = append(discrepancies, &Discrepancy{
				Type:      DiscrepancyMissingCredit,
				Date:      row.Date,
				Amount:    row.DepositTotal,
				DepositID: row.DepositID,
				Description: fmt.Sprintf("deposit %s has no bank credit within the settlement window",
					row.DepositID),
				Severity: SeverityHigh,
			})
		case row.Orphan:
			discrepancies = append(discrepancies, &Discrepancy{
				Type:   DiscrepancyUnclaimedCredit,
				Date:   row.Date,
				Amount: row.BankTotal,
				Description: fmt.Sprintf("bank credit of %s on %s is claimed by no deposit",
					row.BankTotal.StringFixed(2), row.Date.Format(models.DateFormat)),
				Severity: SeverityMedium,
			})
		case row.Matches && !row.Difference.IsZero():
			discrepancies = append(discrepancies, &Discrepancy{
				Type:      DiscrepancyAmountDrift,
				Date:      row.Date,
				Amount:    row.Difference,
				DepositID: row.DepositID,
				Description: fmt.Sprintf("deposit %s settled %s off the recorded total",
					row.DepositID, row.Difference.StringFixed(2)),
				Severity: SeverityInfo,
			})
		}
	}
	return discrepancies
}
