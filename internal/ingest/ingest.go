// Package ingest coordinates the commit pipeline: parse, deduplicate,
// resolve date conflicts, commit, and record the import in the log.
//
// Each commit is atomic per item. Extraction failures abort only the item in
// flight; cancellation before commit simply discards the pending batch. The
// pipeline consults the import log before parsing, so re-importing
// byte-identical content short-circuits into a zero-record no-op.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"daysheet-reconciliation-service/internal/conflict"
	"daysheet-reconciliation-service/internal/dedup"
	"daysheet-reconciliation-service/internal/models"
	"daysheet-reconciliation-service/internal/parsers"
	"daysheet-reconciliation-service/internal/store"
	apperrors "daysheet-reconciliation-service/pkg/errors"
	"daysheet-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// breakdownTolerance is how far the breakdown sum may drift from the stated
// total before a warning is logged. The stated total is trusted for matching
// either way.
var breakdownTolerance = decimal.NewFromFloat(0.02)

// Service runs the ingestion pipeline over the persistence boundary.
type Service struct {
	store  *store.Store
	logger logger.Logger
}

// NewService creates an ingestion service bound to a store.
func NewService(st *store.Store) (*Service, error) {
	if st == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "store", nil, nil)
	}
	return &Service{
		store:  st,
		logger: logger.GetGlobalLogger().WithComponent("ingest"),
	}, nil
}

// ContentKey computes the content-identity key for an import source: the
// sha256 of its bytes when content is available, else the file name plus
// modification timestamp.
func ContentKey(data []byte, meta conflict.FileMeta) string {
	if len(data) > 0 {
		return fmt.Sprintf("%x", sha256.Sum256(data))
	}
	return fmt.Sprintf("%s@%d", meta.Name, meta.ModifiedTime.UnixMilli())
}

// BankImportResult reports one bank statement import.
type BankImportResult struct {
	Key              string
	AlreadyImported  bool
	Imported         int
	DuplicateDropped int
	ParseStats       *parsers.ParseStats
}

// ImportBankCSV runs the full bank-statement pipeline over CSV content:
// short-circuit on a known content key, parse with the bank's column
// configuration, filter duplicate signatures against the committed snapshot,
// commit the survivors, and record the import. A batch that collides
// entirely yields zero new records and no error.
func (s *Service) ImportBankCSV(
	ctx context.Context,
	r io.Reader,
	meta conflict.FileMeta,
	bankConfig *parsers.BankConfig,
) (*BankImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileNotFound, meta.Name, err)
	}

	key := ContentKey(data, meta)
	result := &BankImportResult{Key: key}

	if s.store.HasImport(key) {
		s.logger.WithFields(logger.Fields{
			"file": meta.Name,
			"key":  key,
		}).Info("Source already imported; skipping")
		result.AlreadyImported = true
		return result, nil
	}

	parser, err := parsers.NewBankStatementParser(bankConfig)
	if err != nil {
		return nil, err
	}
	candidates, stats, err := parser.Parse(bytes.NewReader(data), meta.Name)
	if err != nil {
		return nil, err
	}
	result.ParseStats = stats

	// The pending batch is discarded before it reaches the deduplicator if
	// the caller has given up on it.
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryImport, apperrors.CodeUnexpectedError,
			"import cancelled before commit")
	}

	filtered := dedup.Filter(candidates, s.store.Transactions())
	result.DuplicateDropped = filtered.Dropped()

	if err := s.store.AddTransactions(filtered.Accepted); err != nil {
		return nil, err
	}
	result.Imported = len(filtered.Accepted)

	entry := &models.ImportLogEntry{
		Key:         key,
		ImportedAt:  time.Now().UTC(),
		FileName:    meta.Name,
		FileType:    models.FileTypeBankCSV,
		RecordCount: result.Imported,
		ContentHash: key,
	}
	if err := s.store.RecordImport(entry); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"file":       meta.Name,
		"imported":   result.Imported,
		"duplicates": result.DuplicateDropped,
	}).Info("Bank statement committed")
	return result, nil
}

// CommitDeposit validates and commits one deposit record. A record without
// a resolvable date is rejected before commit; it is never defaulted to
// today. Breakdown drift is tolerated with a warning because the stated
// total is what matching trusts.
func (s *Service) CommitDeposit(record *models.DepositRecord) error {
	if record == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "deposit", nil, nil)
	}
	if record.Date.IsZero() {
		return apperrors.ValidationError(apperrors.CodeMissingDate, "deposit", record.ID, nil)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.DepositPending
	}
	record.Date = models.TruncateToDate(record.Date)

	s.warnOnBreakdownDrift(record)

	return s.store.AddDeposit(record)
}

// DaySheetBatch is the outcome of running a day-sheet candidate batch
// through conflict grouping. Committed candidates are done; Conflicts await
// an operator decision and stay fully pending; Undated candidates were
// rejected with a missing-date condition.
type DaySheetBatch struct {
	Committed []*models.DepositRecord
	Conflicts []*conflict.Group
	Undated   []*conflict.Candidate
	Errors    []*apperrors.Error
}

// ImportDaySheets groups a candidate batch by resolved date before any
// commit. Unique dates commit immediately; dates with multiple candidates
// are surfaced for an explicit decision and nothing for those dates is
// written.
func (s *Service) ImportDaySheets(ctx context.Context, candidates []*conflict.Candidate) (*DaySheetBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryImport, apperrors.CodeUnexpectedError,
			"import cancelled before commit")
	}

	// Marked candidates never resurface, even as conflict members: a resolved
	// group stays resolved on the next scan.
	fresh := make([]*conflict.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if s.store.HasImport(candidate.ContentHash) {
			continue
		}
		fresh = append(fresh, candidate)
	}

	groups, undated := conflict.GroupByDate(fresh)
	batch := &DaySheetBatch{Undated: undated}

	for _, candidate := range undated {
		batch.Errors = append(batch.Errors,
			apperrors.ValidationError(apperrors.CodeMissingDate, "day_sheet", candidate.Meta.Name, nil))
	}

	for _, group := range groups {
		if group.Conflicting() {
			s.logger.WithFields(logger.Fields{
				"date":       group.Date.Format(models.DateFormat),
				"candidates": len(group.Candidates),
			}).Warn("Multiple sources resolve to one date; awaiting decision")
			batch.Conflicts = append(batch.Conflicts, group)
			continue
		}

		candidate := group.Candidates[0]
		record, err := s.commitCandidate(candidate, group.Date)
		if err != nil {
			if appErr, ok := apperrors.AsError(err); ok {
				batch.Errors = append(batch.Errors, appErr)
			} else {
				batch.Errors = append(batch.Errors,
					apperrors.Wrap(err, apperrors.CategoryImport, apperrors.CodeUnexpectedError,
						"failed to commit day sheet"))
			}
			continue
		}
		batch.Committed = append(batch.Committed, record)
	}

	return batch, nil
}

// ApplyDecision commits the chosen candidate of a resolved conflict and
// marks every candidate for that date as imported, including the rejected
// ones. The foreclosure is deliberate: rejected candidates can never be
// re-imported as their own records, and the warning here is the operator's
// last notice of that.
func (s *Service) ApplyDecision(decision *conflict.Decision) error {
	if decision == nil || decision.Record == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "decision", nil, nil)
	}

	if err := s.CommitDeposit(decision.Record); err != nil {
		return err
	}

	for _, key := range decision.MarkKeys {
		if s.store.HasImport(key) {
			continue
		}
		entry := &models.ImportLogEntry{
			Key:         key,
			Date:        decision.Date,
			ImportedAt:  time.Now().UTC(),
			FileName:    decision.Chosen.Meta.Name,
			FileType:    models.FileTypeDaySheet,
			RecordCount: 1,
			ContentHash: key,
		}
		if err := s.store.RecordImport(entry); err != nil {
			return err
		}
	}

	if len(decision.Foreclosed) > 0 {
		s.logger.WithFields(logger.Fields{
			"date":       decision.Date.Format(models.DateFormat),
			"foreclosed": len(decision.Foreclosed),
		}).Warn("Rejected candidates marked imported; they cannot be re-imported separately")
	}
	return nil
}

func (s *Service) commitCandidate(candidate *conflict.Candidate, date time.Time) (*models.DepositRecord, error) {
	if candidate.Extracted == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "extracted", candidate.Meta.Name, nil)
	}

	record := *candidate.Extracted
	record.Date = date
	if err := s.CommitDeposit(&record); err != nil {
		return nil, err
	}

	entry := &models.ImportLogEntry{
		Key:         candidate.ContentHash,
		Date:        date,
		ImportedAt:  time.Now().UTC(),
		FileName:    candidate.Meta.Name,
		FileType:    models.FileTypeDaySheet,
		RecordCount: 1,
		ContentHash: candidate.ContentHash,
	}
	if err := s.store.RecordImport(entry); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) warnOnBreakdownDrift(record *models.DepositRecord) {
	if drift := record.BreakdownDrift(); drift.Abs().GreaterThan(breakdownTolerance) {
		s.logger.WithFields(logger.Fields{
			"deposit": record.ID,
			"date":    record.Date.Format(models.DateFormat),
			"drift":   drift.String(),
		}).Warn("Breakdown sum differs from stated total; total is used for matching")
	}
	if len(record.Breakdown.CheckDetail) > 0 {
		if diff := record.Breakdown.CheckDetailSum().Sub(record.Breakdown.Checks); !diff.IsZero() {
			s.logger.WithFields(logger.Fields{
				"deposit": record.ID,
				"diff":    diff.String(),
			}).Warn("Check detail does not sum to the checks field")
		}
	}
	if record.Breakdown.CardDetail != nil {
		if diff := record.Breakdown.CardDetail.Sum().Sub(record.Breakdown.CreditCards); !diff.IsZero() {
			s.logger.WithFields(logger.Fields{
				"deposit": record.ID,
				"diff":    diff.String(),
			}).Warn("Card detail does not sum to the credit cards field")
		}
	}
}
