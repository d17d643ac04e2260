// Package coverage rolls the committed snapshot up to day, month, and year
// views with a tri-state health status.
//
// Month totals compare the deposit side against the bank side; day coverage
// answers the narrower question of whether each business date has an
// imported day sheet at all. Weekends and future dates never count as gaps.
package coverage

import (
	"time"

	"daysheet-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Status is the tri-state health of a month.
type Status string

const (
	// StatusRed means not started: no data on either side.
	StatusRed Status = "red"
	// StatusOrange means processed but discrepant or incomplete.
	StatusOrange Status = "orange"
	// StatusGreen means reconciled within the discrepancy threshold, or, for
	// coverage, every eligible weekday accounted for.
	StatusGreen Status = "green"
)

// discrepancyThreshold is the month-level difference below which the two
// sides are considered reconciled.
var discrepancyThreshold = decimal.NewFromInt(1)

// MonthSummary compares the deposit side against the bank side for one
// calendar month.
type MonthSummary struct {
	Year         int             `json:"year"`
	Month        time.Month      `json:"month"`
	DepositTotal decimal.Decimal `json:"depositTotal"`
	BankTotal    decimal.Decimal `json:"bankTotal"`
	Difference   decimal.Decimal `json:"difference"`
	DepositCount int             `json:"depositCount"`
	BankCount    int             `json:"bankCount"`
	Status       Status          `json:"status"`
}

// DayCoverage marks whether one eligible business date has an imported day
// sheet or import-log entry.
type DayCoverage struct {
	Date    time.Time `json:"date"`
	Covered bool      `json:"covered"`
}

// MonthCoverage is the day-coverage roll-up for one calendar month.
type MonthCoverage struct {
	Year   int           `json:"year"`
	Month  time.Month    `json:"month"`
	Days   []DayCoverage `json:"days"`
	Status Status        `json:"status"`
}

// SummarizeMonth computes the month summary for the given year and month
// from a committed snapshot. Only deposit-side (positive) bank amounts
// count toward the bank total.
func SummarizeMonth(
	deposits []*models.DepositRecord,
	transactions []*models.BankTransaction,
	year int, month time.Month,
) MonthSummary {
	summary := MonthSummary{
		Year:         year,
		Month:        month,
		DepositTotal: decimal.Zero,
		BankTotal:    decimal.Zero,
	}

	for _, d := range deposits {
		if inMonth(d.Date, year, month) {
			summary.DepositTotal = summary.DepositTotal.Add(d.Total)
			summary.DepositCount++
		}
	}
	for _, t := range transactions {
		if t.IsCredit() && inMonth(t.Date, year, month) {
			summary.BankTotal = summary.BankTotal.Add(t.Amount)
			summary.BankCount++
		}
	}

	summary.Difference = summary.BankTotal.Sub(summary.DepositTotal)

	switch {
	case summary.DepositCount == 0 && summary.BankCount == 0:
		summary.Status = StatusRed
	case summary.Difference.Abs().LessThan(discrepancyThreshold):
		summary.Status = StatusGreen
	default:
		summary.Status = StatusOrange
	}

	return summary
}

// MonthDays computes day coverage for one month: every weekday (Monday to
// Friday) up to and including today, marked covered when a deposit record or
// an import-log entry references that date. Weekends and future dates are
// excluded entirely.
func MonthDays(
	deposits []*models.DepositRecord,
	importLog []*models.ImportLogEntry,
	year int, month time.Month,
	today time.Time,
) MonthCoverage {
	covered := coveredDates(deposits, importLog)
	today = models.TruncateToDate(today)

	mc := MonthCoverage{Year: year, Month: month}

	first := models.Date(year, month, 1)
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		if day.After(today) {
			break
		}
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		mc.Days = append(mc.Days, DayCoverage{
			Date:    day,
			Covered: covered[day.Format(models.DateFormat)],
		})
	}

	mc.Status = coverageStatus(mc.Days)
	return mc
}

// SummarizeYear rolls day coverage up to one status per month of the year.
func SummarizeYear(
	deposits []*models.DepositRecord,
	importLog []*models.ImportLogEntry,
	year int,
	today time.Time,
) []MonthCoverage {
	months := make([]MonthCoverage, 0, 12)
	for month := time.January; month <= time.December; month++ {
		months = append(months, MonthDays(deposits, importLog, year, month, today))
	}
	return months
}

// coverageStatus derives the month status from its eligible days: red when
// no covered weekday exists (including months entirely in the future),
// green when every eligible weekday is covered, orange otherwise.
func coverageStatus(days []DayCoverage) Status {
	coveredCount := 0
	for _, d := range days {
		if d.Covered {
			coveredCount++
		}
	}

	switch {
	case coveredCount == 0:
		return StatusRed
	case coveredCount == len(days):
		return StatusGreen
	default:
		return StatusOrange
	}
}

// coveredDates builds the set of dates referenced by a deposit record or an
// import-log entry.
func coveredDates(deposits []*models.DepositRecord, importLog []*models.ImportLogEntry) map[string]bool {
	covered := make(map[string]bool, len(deposits)+len(importLog))
	for _, d := range deposits {
		covered[models.TruncateToDate(d.Date).Format(models.DateFormat)] = true
	}
	for _, e := range importLog {
		if !e.Date.IsZero() {
			covered[models.TruncateToDate(e.Date).Format(models.DateFormat)] = true
		}
	}
	return covered
}

func inMonth(t time.Time, year int, month time.Month) bool {
	t = t.UTC()
	return t.Year() == year && t.Month() == month
}
