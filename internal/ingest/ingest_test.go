package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"daysheet-reconciliation-service/internal/conflict"
	"daysheet-reconciliation-service/internal/models"
	"daysheet-reconciliation-service/internal/store"
	apperrors "daysheet-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

const bankCSV = `date,description,amount
2024-05-01,BRANCH DEPOSIT,530.00
2024-05-02,ATM DEPOSIT,200.00`

func createTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(afero.NewMemMapFs(), "/data/daysheet.json")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	service, err := NewService(st)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return service, st
}

func createTestMeta(name string) conflict.FileMeta {
	return conflict.FileMeta{
		Name:         name,
		Path:         "/inbox/" + name,
		ModifiedTime: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
}

func createTestCandidate(name, hash string, total float64) *conflict.Candidate {
	return &conflict.Candidate{
		Meta:        createTestMeta(name),
		ContentHash: hash,
		Extracted: &models.DepositRecord{
			Total:  decimal.NewFromFloat(total),
			Status: models.DepositPending,
		},
	}
}

func TestImportBankCSV(t *testing.T) {
	service, st := createTestService(t)

	result, err := service.ImportBankCSV(context.Background(),
		strings.NewReader(bankCSV), createTestMeta("statement.csv"), nil)
	if err != nil {
		t.Fatalf("ImportBankCSV failed: %v", err)
	}

	if result.Imported != 2 {
		t.Errorf("Expected 2 imported, got %d", result.Imported)
	}
	if result.AlreadyImported {
		t.Error("First import must not be flagged as already imported")
	}
	if len(st.Transactions()) != 2 {
		t.Errorf("Expected 2 committed transactions, got %d", len(st.Transactions()))
	}
	if !st.HasImport(result.Key) {
		t.Error("Expected an import log entry for the content key")
	}
}

func TestImportBankCSVIdempotent(t *testing.T) {
	service, st := createTestService(t)
	meta := createTestMeta("statement.csv")

	if _, err := service.ImportBankCSV(context.Background(), strings.NewReader(bankCSV), meta, nil); err != nil {
		t.Fatalf("First import failed: %v", err)
	}

	// Byte-identical content short-circuits via the import log.
	result, err := service.ImportBankCSV(context.Background(), strings.NewReader(bankCSV), meta, nil)
	if err != nil {
		t.Fatalf("Re-import must not fail: %v", err)
	}
	if !result.AlreadyImported {
		t.Error("Expected the re-import to short-circuit")
	}
	if result.Imported != 0 {
		t.Errorf("Expected 0 imported on re-import, got %d", result.Imported)
	}
	if len(st.Transactions()) != 2 {
		t.Errorf("Re-import must not duplicate transactions, got %d", len(st.Transactions()))
	}
}

func TestImportBankCSVFullCollision(t *testing.T) {
	service, st := createTestService(t)

	if _, err := service.ImportBankCSV(context.Background(),
		strings.NewReader(bankCSV), createTestMeta("statement.csv"), nil); err != nil {
		t.Fatalf("First import failed: %v", err)
	}

	// Different bytes, same rows: the whole batch collides on signatures.
	// That is a zero-record success, not an error, and it gets its own log
	// entry.
	reordered := `date,description,amount
2024-05-02,ATM DEPOSIT,200.00
2024-05-01,BRANCH DEPOSIT,530.00`

	result, err := service.ImportBankCSV(context.Background(),
		strings.NewReader(reordered), createTestMeta("statement-copy.csv"), nil)
	if err != nil {
		t.Fatalf("Full collision must not fail: %v", err)
	}
	if result.Imported != 0 {
		t.Errorf("Expected 0 imported, got %d", result.Imported)
	}
	if result.DuplicateDropped != 2 {
		t.Errorf("Expected 2 duplicates dropped, got %d", result.DuplicateDropped)
	}
	if len(st.Transactions()) != 2 {
		t.Errorf("Expected no new transactions, got %d", len(st.Transactions()))
	}
	if !st.HasImport(result.Key) {
		t.Error("A zero-record batch still records its import")
	}
}

func TestImportBankCSVCancelled(t *testing.T) {
	service, st := createTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := service.ImportBankCSV(ctx,
		strings.NewReader(bankCSV), createTestMeta("statement.csv"), nil); err == nil {
		t.Fatal("Expected a cancelled import to fail")
	}
	if len(st.Transactions()) != 0 {
		t.Error("A cancelled import must not commit anything")
	}
}

func TestCommitDepositRejectsMissingDate(t *testing.T) {
	service, _ := createTestService(t)

	err := service.CommitDeposit(&models.DepositRecord{
		Total:  decimal.NewFromFloat(100.00),
		Status: models.DepositPending,
	})
	if err == nil {
		t.Fatal("Expected a dateless record to be rejected")
	}
	if !apperrors.IsCode(err, apperrors.CodeMissingDate) {
		t.Errorf("Expected missing date code, got %v", err)
	}
}

func TestCommitDepositAssignsDefaults(t *testing.T) {
	service, st := createTestService(t)

	record := &models.DepositRecord{
		Date:  models.Date(2024, 5, 1),
		Total: decimal.NewFromFloat(100.00),
	}
	if err := service.CommitDeposit(record); err != nil {
		t.Fatalf("CommitDeposit failed: %v", err)
	}

	deposits := st.Deposits()
	if len(deposits) != 1 {
		t.Fatalf("Expected 1 deposit, got %d", len(deposits))
	}
	if deposits[0].ID == "" {
		t.Error("Expected an ID to be assigned")
	}
	if deposits[0].Status != models.DepositPending {
		t.Errorf("Expected pending status, got %s", deposits[0].Status)
	}
}

func TestImportDaySheetsCommitsUniqueDates(t *testing.T) {
	service, st := createTestService(t)

	candidates := []*conflict.Candidate{
		createTestCandidate("daysheet_2024-05-01.pdf", "hashA", 530.00),
		createTestCandidate("daysheet_2024-05-02.pdf", "hashB", 420.00),
	}

	batch, err := service.ImportDaySheets(context.Background(), candidates)
	if err != nil {
		t.Fatalf("ImportDaySheets failed: %v", err)
	}

	if len(batch.Committed) != 2 {
		t.Fatalf("Expected 2 committed, got %d", len(batch.Committed))
	}
	if len(batch.Conflicts) != 0 || len(batch.Undated) != 0 {
		t.Errorf("Expected no conflicts or undated, got %d/%d",
			len(batch.Conflicts), len(batch.Undated))
	}
	if len(st.Deposits()) != 2 {
		t.Errorf("Expected 2 deposits committed, got %d", len(st.Deposits()))
	}
	if !st.HasImport("hashA") || !st.HasImport("hashB") {
		t.Error("Expected import log entries for both candidates")
	}
}

func TestImportDaySheetsHoldsConflicts(t *testing.T) {
	service, st := createTestService(t)

	candidates := []*conflict.Candidate{
		createTestCandidate("daysheet_2024-05-01.pdf", "hashA", 530.00),
		createTestCandidate("retake_2024-05-01.pdf", "hashB", 525.00),
	}

	batch, err := service.ImportDaySheets(context.Background(), candidates)
	if err != nil {
		t.Fatalf("ImportDaySheets failed: %v", err)
	}

	if len(batch.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict group, got %d", len(batch.Conflicts))
	}
	// Nothing for the conflicted date is committed until a decision.
	if len(st.Deposits()) != 0 {
		t.Errorf("Expected no deposits while the conflict is pending, got %d", len(st.Deposits()))
	}
	if st.HasImport("hashA") || st.HasImport("hashB") {
		t.Error("Conflicted candidates must stay out of the import log")
	}
}

func TestImportDaySheetsRejectsUndated(t *testing.T) {
	service, _ := createTestService(t)

	undated := createTestCandidate("daysheet.pdf", "hashA", 530.00)
	undated.Meta.ModifiedTime = time.Time{}

	batch, err := service.ImportDaySheets(context.Background(), []*conflict.Candidate{undated})
	if err != nil {
		t.Fatalf("ImportDaySheets failed: %v", err)
	}

	if len(batch.Undated) != 1 {
		t.Fatalf("Expected 1 undated candidate, got %d", len(batch.Undated))
	}
	if len(batch.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(batch.Errors))
	}
	if batch.Errors[0].Code != apperrors.CodeMissingDate {
		t.Errorf("Expected missing date code, got %s", batch.Errors[0].Code)
	}
}

func TestApplyDecisionMarksAllCandidates(t *testing.T) {
	service, st := createTestService(t)

	a := createTestCandidate("daysheet_2024-05-01.pdf", "hashA", 530.00)
	b := createTestCandidate("retake_2024-05-01.pdf", "hashB", 525.00)
	group := &conflict.Group{
		Date:       models.Date(2024, 5, 1),
		Candidates: []*conflict.Candidate{a, b},
	}

	decision, err := conflict.Resolve(group, "hashB")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if err := service.ApplyDecision(decision); err != nil {
		t.Fatalf("ApplyDecision failed: %v", err)
	}

	deposits := st.Deposits()
	if len(deposits) != 1 {
		t.Fatalf("Expected 1 committed deposit, got %d", len(deposits))
	}
	if !deposits[0].Total.Equal(decimal.NewFromFloat(525.00)) {
		t.Errorf("Expected the chosen candidate's total, got %s", deposits[0].Total)
	}

	// Both candidates are marked; the rejected one is foreclosed.
	if !st.HasImport("hashA") || !st.HasImport("hashB") {
		t.Error("Expected both candidates in the import log")
	}

	// Re-running the batch is now a no-op: the conflict stays resolved.
	batch, err := service.ImportDaySheets(context.Background(), []*conflict.Candidate{a, b})
	if err != nil {
		t.Fatalf("ImportDaySheets failed: %v", err)
	}
	if len(batch.Committed) != 0 || len(batch.Conflicts) != 0 {
		t.Errorf("Marked candidates must not recommit, got %d committed %d conflicts",
			len(batch.Committed), len(batch.Conflicts))
	}
	if len(st.Deposits()) != 1 {
		t.Errorf("Expected still 1 deposit, got %d", len(st.Deposits()))
	}
}

func TestContentKey(t *testing.T) {
	meta := createTestMeta("statement.csv")

	keyA := ContentKey([]byte("hello"), meta)
	keyB := ContentKey([]byte("hello"), createTestMeta("other.csv"))
	if keyA != keyB {
		t.Error("Content keys must depend on content, not file names")
	}

	keyC := ContentKey([]byte("world"), meta)
	if keyA == keyC {
		t.Error("Different content must produce different keys")
	}

	// Without content, identity falls back to name and mtime.
	fallback := ContentKey(nil, meta)
	if fallback == "" || fallback == keyA {
		t.Error("Expected a distinct fallback key")
	}
}
