package store

import (
	"testing"
	"time"

	"daysheet-reconciliation-service/internal/models"
	apperrors "daysheet-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

const testPath = "/data/daysheet.json"

func createTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := Open(fs, testPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, fs
}

func createTestDeposit(id string) *models.DepositRecord {
	return &models.DepositRecord{
		ID:     id,
		Date:   models.Date(2024, 5, 1),
		Total:  decimal.NewFromFloat(530.00),
		Status: models.DepositPending,
	}
}

func createTestTransaction(id string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:          id,
		Date:        models.Date(2024, 5, 2),
		Description: "BRANCH DEPOSIT",
		Amount:      decimal.NewFromFloat(530.00),
	}
}

func createTestEntry(key string) *models.ImportLogEntry {
	return &models.ImportLogEntry{
		Key:         key,
		Date:        models.Date(2024, 5, 1),
		ImportedAt:  time.Now().UTC(),
		FileName:    "statement.csv",
		FileType:    models.FileTypeBankCSV,
		RecordCount: 3,
	}
}

func TestOpenMissingFile(t *testing.T) {
	s, _ := createTestStore(t)
	if len(s.Deposits()) != 0 || len(s.Transactions()) != 0 || len(s.ImportLog()) != 0 {
		t.Error("A missing snapshot should open as empty collections")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(afero.NewMemMapFs(), "  "); err == nil {
		t.Fatal("Expected an error for a blank store path")
	}
}

func TestRoundTrip(t *testing.T) {
	s, fs := createTestStore(t)

	if err := s.AddDeposit(createTestDeposit("DEP001")); err != nil {
		t.Fatalf("AddDeposit failed: %v", err)
	}
	if err := s.AddTransactions([]*models.BankTransaction{createTestTransaction("TX001")}); err != nil {
		t.Fatalf("AddTransactions failed: %v", err)
	}
	if err := s.RecordImport(createTestEntry("key1")); err != nil {
		t.Fatalf("RecordImport failed: %v", err)
	}

	// Reopen from the same fs and verify every collection survived.
	reopened, err := Open(fs, testPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	deposits := reopened.Deposits()
	if len(deposits) != 1 || deposits[0].ID != "DEP001" {
		t.Fatalf("Expected DEP001 after reopen, got %v", deposits)
	}
	if !deposits[0].Total.Equal(decimal.NewFromFloat(530.00)) {
		t.Errorf("Total changed through persistence: %s", deposits[0].Total)
	}
	if !deposits[0].Date.Equal(models.Date(2024, 5, 1)) {
		t.Errorf("Date changed through persistence: %s", deposits[0].Date)
	}

	if len(reopened.Transactions()) != 1 {
		t.Error("Expected one transaction after reopen")
	}
	if !reopened.HasImport("key1") {
		t.Error("Expected import log entry after reopen")
	}
}

func TestMalformedStateRecovers(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s, err := Open(fs, testPath)
	if err != nil {
		t.Fatalf("Malformed state must not block startup: %v", err)
	}
	if len(s.Deposits()) != 0 {
		t.Error("Malformed state should open as empty")
	}

	// The store stays usable afterwards.
	if err := s.AddDeposit(createTestDeposit("DEP001")); err != nil {
		t.Errorf("Store should accept writes after recovery: %v", err)
	}
}

func TestUnknownSchemaVersionRecovers(t *testing.T) {
	fs := afero.NewMemMapFs()
	payload := []byte(`{"schemaVersion": 99, "deposits": [], "transactions": [], "importLog": {}}`)
	if err := afero.WriteFile(fs, testPath, payload, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s, err := Open(fs, testPath)
	if err != nil {
		t.Fatalf("Unknown schema must not block startup: %v", err)
	}
	if len(s.Deposits()) != 0 {
		t.Error("Unknown schema should open as empty")
	}
}

func TestAddDepositRejectsMissingDate(t *testing.T) {
	s, _ := createTestStore(t)

	deposit := createTestDeposit("DEP001")
	deposit.Date = time.Time{}

	err := s.AddDeposit(deposit)
	if err == nil {
		t.Fatal("Expected a dateless deposit to be rejected")
	}
	if !apperrors.IsCode(err, apperrors.CodeMissingDate) {
		t.Errorf("Expected missing date code, got %v", err)
	}
}

func TestAddDepositRejectsDuplicateID(t *testing.T) {
	s, _ := createTestStore(t)

	if err := s.AddDeposit(createTestDeposit("DEP001")); err != nil {
		t.Fatalf("AddDeposit failed: %v", err)
	}
	if err := s.AddDeposit(createTestDeposit("DEP001")); err == nil {
		t.Fatal("Expected a duplicate deposit ID to be rejected")
	}
}

func TestDepositsReturnsCopies(t *testing.T) {
	s, _ := createTestStore(t)

	deposit := createTestDeposit("DEP001")
	deposit.Breakdown.CheckDetail = []decimal.Decimal{decimal.NewFromFloat(530.00)}
	if err := s.AddDeposit(deposit); err != nil {
		t.Fatalf("AddDeposit failed: %v", err)
	}

	snapshot := s.Deposits()
	snapshot[0].Total = decimal.NewFromFloat(1.00)
	snapshot[0].Breakdown.CheckDetail[0] = decimal.NewFromFloat(1.00)

	fresh := s.Deposits()
	if !fresh[0].Total.Equal(decimal.NewFromFloat(530.00)) {
		t.Error("Mutating a snapshot must not affect committed state")
	}
	if !fresh[0].Breakdown.CheckDetail[0].Equal(decimal.NewFromFloat(530.00)) {
		t.Error("Nested detail must be deep-copied")
	}
}

func TestUpdateAndDeleteDeposit(t *testing.T) {
	s, _ := createTestStore(t)

	if err := s.AddDeposit(createTestDeposit("DEP001")); err != nil {
		t.Fatalf("AddDeposit failed: %v", err)
	}

	updated := createTestDeposit("DEP001")
	updated.Total = decimal.NewFromFloat(600.00)
	updated.Status = models.DepositVerified
	if err := s.UpdateDeposit(updated); err != nil {
		t.Fatalf("UpdateDeposit failed: %v", err)
	}

	deposits := s.Deposits()
	if !deposits[0].Total.Equal(decimal.NewFromFloat(600.00)) {
		t.Errorf("Expected updated total 600.00, got %s", deposits[0].Total)
	}

	if err := s.DeleteDeposit("DEP001"); err != nil {
		t.Fatalf("DeleteDeposit failed: %v", err)
	}
	if len(s.Deposits()) != 0 {
		t.Error("Expected no deposits after delete")
	}

	if err := s.DeleteDeposit("DEP001"); err == nil {
		t.Error("Deleting a missing deposit should fail")
	}
}

func TestTagTransaction(t *testing.T) {
	s, _ := createTestStore(t)

	if err := s.AddTransactions([]*models.BankTransaction{createTestTransaction("TX001")}); err != nil {
		t.Fatalf("AddTransactions failed: %v", err)
	}

	if err := s.TagTransaction("TX001", "card", "settlement"); err != nil {
		t.Fatalf("TagTransaction failed: %v", err)
	}

	transactions := s.Transactions()
	if transactions[0].PaymentType != "card" || transactions[0].Category != "settlement" {
		t.Errorf("Expected tags applied, got %+v", transactions[0])
	}

	if err := s.TagTransaction("TX404", "card", ""); err == nil {
		t.Error("Tagging a missing transaction should fail")
	}
}

func TestRecordImportIsWriteOnce(t *testing.T) {
	s, _ := createTestStore(t)

	if err := s.RecordImport(createTestEntry("key1")); err != nil {
		t.Fatalf("RecordImport failed: %v", err)
	}

	err := s.RecordImport(createTestEntry("key1"))
	if err == nil {
		t.Fatal("Expected a duplicate import key to be rejected")
	}
	if !apperrors.IsCode(err, apperrors.CodeAlreadyImported) {
		t.Errorf("Expected already imported code, got %v", err)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s, fs := createTestStore(t)

	if err := s.AddDeposit(createTestDeposit("DEP001")); err != nil {
		t.Fatalf("AddDeposit failed: %v", err)
	}
	if err := s.RecordImport(createTestEntry("key1")); err != nil {
		t.Fatalf("RecordImport failed: %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if len(s.Deposits()) != 0 {
		t.Error("Expected no deposits after reset")
	}
	if s.HasImport("key1") {
		t.Error("Reset must clear the import log")
	}

	// The cleared state persists.
	reopened, err := Open(fs, testPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.HasImport("key1") {
		t.Error("Reset must persist the cleared import log")
	}
}
