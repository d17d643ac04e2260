// Package dedup implements the signature deduplicator that suppresses
// duplicate bank transactions at ingestion time.
//
// A transaction's signature is its calendar date, whitespace-collapsed
// lower-cased description, and amount fixed to two decimal places. Two
// transactions with the same signature are the same real-world entry, even
// when they arrive from overlapping multi-page re-extractions of the same
// statement. Filtering against both the persisted set and earlier-accepted
// candidates in the batch makes re-import of an unchanged source a guaranteed
// no-op.
package dedup

import (
	"strings"

	"daysheet-reconciliation-service/internal/models"
	"daysheet-reconciliation-service/pkg/logger"
)

// Result reports the outcome of filtering a candidate batch.
type Result struct {
	// Accepted holds the candidates that survived filtering, in input order.
	Accepted []*models.BankTransaction
	// DroppedExisting counts candidates matching a persisted transaction.
	DroppedExisting int
	// DroppedInBatch counts candidates matching an earlier-accepted candidate
	// within the same batch.
	DroppedInBatch int
}

// Dropped returns the total number of suppressed candidates.
func (r *Result) Dropped() int {
	return r.DroppedExisting + r.DroppedInBatch
}

// Signature computes the stable identity of a bank transaction used for
// duplicate suppression.
func Signature(t *models.BankTransaction) string {
	return t.Date.Format(models.DateFormat) +
		"|" + normalizeDescription(t.Description) +
		"|" + t.Amount.StringFixed(2)
}

// normalizeDescription lower-cases the description and collapses all runs of
// whitespace to single spaces, so cosmetic differences between extractions of
// the same statement line do not defeat deduplication.
func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Filter drops every candidate whose signature matches a persisted
// transaction or an earlier-accepted candidate in the same batch. It never
// mutates its inputs; committing the accepted candidates is the caller's job.
func Filter(candidates, existing []*models.BankTransaction) *Result {
	log := logger.GetGlobalLogger().WithComponent("dedup")

	persisted := make(map[string]bool, len(existing))
	for _, t := range existing {
		persisted[Signature(t)] = true
	}

	seen := make(map[string]bool, len(persisted)+len(candidates))
	for sig := range persisted {
		seen[sig] = true
	}

	result := &Result{}
	for _, candidate := range candidates {
		sig := Signature(candidate)
		if seen[sig] {
			// Distinguish persisted collisions from in-batch collisions for
			// reporting; both are silent drops.
			if persisted[sig] {
				result.DroppedExisting++
			} else {
				result.DroppedInBatch++
			}
			log.WithFields(logger.Fields{
				"signature": sig,
				"id":        candidate.ID,
			}).Debug("Dropped duplicate transaction candidate")
			continue
		}
		seen[sig] = true
		result.Accepted = append(result.Accepted, candidate)
	}

	if result.Dropped() > 0 {
		log.WithFields(logger.Fields{
			"accepted":         len(result.Accepted),
			"dropped_existing": result.DroppedExisting,
			"dropped_in_batch": result.DroppedInBatch,
		}).Info("Filtered duplicate transactions from batch")
	}

	return result
}
