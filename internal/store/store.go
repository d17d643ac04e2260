// Package store is the persistence boundary owning the committed
// collections: deposit records, bank transactions, and the import log.
//
// State round-trips through a single JSON snapshot file with an explicit
// schema version. The file lives on an afero filesystem so tests run against
// an in-memory fs. Malformed persisted state is logged and treated as empty;
// it never blocks startup. All reads hand out deep copies: the matching and
// aggregation engines operate on snapshots, never on live references.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"daysheet-reconciliation-service/internal/models"
	apperrors "daysheet-reconciliation-service/pkg/errors"
	"daysheet-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

// SchemaVersion is the current snapshot file schema.
const SchemaVersion = 1

type persistedState struct {
	SchemaVersion int                               `json:"schemaVersion"`
	Deposits      []*models.DepositRecord           `json:"deposits"`
	Transactions  []*models.BankTransaction         `json:"transactions"`
	ImportLog     map[string]*models.ImportLogEntry `json:"importLog"`
}

func emptyState() *persistedState {
	return &persistedState{
		SchemaVersion: SchemaVersion,
		ImportLog:     make(map[string]*models.ImportLogEntry),
	}
}

// Store owns the committed collections and their snapshot file.
type Store struct {
	fs     afero.Fs
	path   string
	logger logger.Logger
	state  *persistedState
}

// Open loads the snapshot at path, creating an empty store when the file
// does not exist. A file that cannot be parsed, or that carries an unknown
// schema version, is logged and replaced by empty collections on the next
// save; startup is never blocked by bad local state.
func Open(fs afero.Fs, path string) (*Store, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "store_path", path, nil)
	}

	s := &Store{
		fs:     fs,
		path:   path,
		logger: logger.GetGlobalLogger().WithComponent("store"),
		state:  emptyState(),
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, apperrors.StoreError(apperrors.CodeStoreWrite, path, err)
	}
	if !exists {
		s.logger.WithField("path", path).Debug("No snapshot file; starting empty")
		return s, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, apperrors.StoreError(apperrors.CodeStoreWrite, path, err)
	}

	var loaded persistedState
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.WithError(err).WithField("path", path).
			Warn("Persisted state is malformed; continuing with empty collections")
		return s, nil
	}
	if loaded.SchemaVersion != SchemaVersion {
		s.logger.WithFields(logger.Fields{
			"path":           path,
			"schema_version": loaded.SchemaVersion,
		}).Warn("Unknown snapshot schema version; continuing with empty collections")
		return s, nil
	}

	if loaded.ImportLog == nil {
		loaded.ImportLog = make(map[string]*models.ImportLogEntry)
	}
	s.state = &loaded

	s.logger.WithFields(logger.Fields{
		"deposits":     len(loaded.Deposits),
		"transactions": len(loaded.Transactions),
		"imports":      len(loaded.ImportLog),
	}).Debug("Loaded snapshot")
	return s, nil
}

// save writes the snapshot atomically: marshal, write a sibling temp file,
// rename over the target. Each mutating operation commits through here, so a
// failure mid-item never corrupts previously committed state.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return apperrors.StoreError(apperrors.CodeStoreWrite, s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return apperrors.StoreError(apperrors.CodeStoreWrite, s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return apperrors.StoreError(apperrors.CodeStoreWrite, s.path, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return apperrors.StoreError(apperrors.CodeStoreWrite, s.path, err)
	}
	return nil
}

// Deposits returns a deep copy of the committed deposit records.
func (s *Store) Deposits() []*models.DepositRecord {
	out := make([]*models.DepositRecord, 0, len(s.state.Deposits))
	for _, d := range s.state.Deposits {
		out = append(out, copyDeposit(d))
	}
	return out
}

// Transactions returns a deep copy of the committed bank transactions.
func (s *Store) Transactions() []*models.BankTransaction {
	out := make([]*models.BankTransaction, 0, len(s.state.Transactions))
	for _, t := range s.state.Transactions {
		clone := *t
		out = append(out, &clone)
	}
	return out
}

// ImportLog returns a deep copy of the import log entries, sorted by import
// time for stable presentation.
func (s *Store) ImportLog() []*models.ImportLogEntry {
	out := make([]*models.ImportLogEntry, 0, len(s.state.ImportLog))
	for _, e := range s.state.ImportLog {
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ImportedAt.Before(out[j].ImportedAt)
	})
	return out
}

// HasImport reports whether a content-identity key has already been
// committed.
func (s *Store) HasImport(key string) bool {
	_, ok := s.state.ImportLog[key]
	return ok
}

// AddDeposit commits one deposit record. The record must validate; in
// particular a record without a date is rejected, never defaulted.
func (s *Store) AddDeposit(d *models.DepositRecord) error {
	if d == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "deposit", nil, nil)
	}
	if d.Date.IsZero() {
		return apperrors.ValidationError(apperrors.CodeMissingDate, "deposit", d.ID, nil)
	}
	if err := d.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeInvalidData, "deposit", d.ID, err)
	}
	for _, existing := range s.state.Deposits {
		if existing.ID == d.ID {
			return apperrors.ValidationError(apperrors.CodeInvalidData, "deposit", d.ID,
				fmt.Errorf("duplicate deposit ID"))
		}
	}

	s.state.Deposits = append(s.state.Deposits, copyDeposit(d))
	return s.save()
}

// UpdateDeposit replaces a committed deposit record in place. Only the
// operator mutates deposits, and only before verification workflows rely on
// them.
func (s *Store) UpdateDeposit(d *models.DepositRecord) error {
	if d == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "deposit", nil, nil)
	}
	if err := d.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeInvalidData, "deposit", d.ID, err)
	}
	for i, existing := range s.state.Deposits {
		if existing.ID == d.ID {
			s.state.Deposits[i] = copyDeposit(d)
			return s.save()
		}
	}
	return apperrors.ValidationError(apperrors.CodeMissingField, "deposit", d.ID,
		fmt.Errorf("no deposit with ID %s", d.ID))
}

// DeleteDeposit removes a deposit record permanently from reconciliation.
func (s *Store) DeleteDeposit(id string) error {
	for i, existing := range s.state.Deposits {
		if existing.ID == id {
			s.state.Deposits = append(s.state.Deposits[:i], s.state.Deposits[i+1:]...)
			return s.save()
		}
	}
	return apperrors.ValidationError(apperrors.CodeMissingField, "deposit", id,
		fmt.Errorf("no deposit with ID %s", id))
}

// AddTransactions commits a batch of bank transactions in one save.
func (s *Store) AddTransactions(transactions []*models.BankTransaction) error {
	if len(transactions) == 0 {
		return nil
	}
	for _, t := range transactions {
		if err := t.Validate(); err != nil {
			return apperrors.ValidationError(apperrors.CodeInvalidData, "transaction", t.ID, err)
		}
	}
	for _, t := range transactions {
		clone := *t
		s.state.Transactions = append(s.state.Transactions, &clone)
	}
	return s.save()
}

// TagTransaction sets the post-hoc classification fields of a committed
// transaction. Everything else about a committed transaction is immutable.
func (s *Store) TagTransaction(id, paymentType, category string) error {
	for _, t := range s.state.Transactions {
		if t.ID == id {
			t.PaymentType = paymentType
			t.Category = category
			return s.save()
		}
	}
	return apperrors.ValidationError(apperrors.CodeMissingField, "transaction", id,
		fmt.Errorf("no transaction with ID %s", id))
}

// RecordImport appends an import-log entry. Entries are write-once: a key
// that already exists is an error, because the pipeline must consult
// HasImport before committing.
func (s *Store) RecordImport(entry *models.ImportLogEntry) error {
	if entry == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "import_log_entry", nil, nil)
	}
	if err := entry.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeInvalidData, "import_log_entry", entry.Key, err)
	}
	if s.HasImport(entry.Key) {
		return apperrors.ImportError(apperrors.CodeAlreadyImported, entry.FileName, nil).
			WithContext("key", entry.Key)
	}

	clone := *entry
	if clone.ImportedAt.IsZero() {
		clone.ImportedAt = time.Now().UTC()
	}
	s.state.ImportLog[clone.Key] = &clone
	return s.save()
}

// Reset clears every collection including the import log. This is the only
// operation that removes import-log entries.
func (s *Store) Reset() error {
	s.state = emptyState()
	return s.save()
}

func copyDeposit(d *models.DepositRecord) *models.DepositRecord {
	clone := *d
	if d.Breakdown.CheckDetail != nil {
		clone.Breakdown.CheckDetail = append([]decimal.Decimal(nil), d.Breakdown.CheckDetail...)
	}
	if d.Breakdown.CardDetail != nil {
		cards := *d.Breakdown.CardDetail
		clone.Breakdown.CardDetail = &cards
	}
	return &clone
}
