package conflict

import (
	"testing"
	"time"

	"daysheet-reconciliation-service/internal/models"
	apperrors "daysheet-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func createTestCandidate(name, hash string) *Candidate {
	return &Candidate{
		Meta: FileMeta{
			Name:         name,
			Path:         "/inbox/" + name,
			ModifiedTime: time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC),
		},
		ContentHash: hash,
		Extracted: &models.DepositRecord{
			ID:     "DEP-" + hash,
			Date:   models.Date(2024, 5, 1),
			Total:  decimal.NewFromFloat(530.00),
			Status: models.DepositPending,
		},
	}
}

func TestParseFilenameDate(t *testing.T) {
	cases := []struct {
		name     string
		expected time.Time
		ok       bool
	}{
		{"daysheet_2024-05-01.pdf", models.Date(2024, 5, 1), true},
		{"scan 2024_05_01 final.png", models.Date(2024, 5, 1), true},
		{"deposit 05-01-2024.jpg", models.Date(2024, 5, 1), true},
		{"IMG_20240501.jpeg", models.Date(2024, 5, 1), true},
		{"daysheet.pdf", time.Time{}, false},
		{"notes-final.txt", time.Time{}, false},
	}

	for _, tc := range cases {
		parsed, ok := ParseFilenameDate(tc.name)
		if ok != tc.ok {
			t.Errorf("ParseFilenameDate(%q): expected ok=%t, got %t", tc.name, tc.ok, ok)
			continue
		}
		if ok && !parsed.Equal(tc.expected) {
			t.Errorf("ParseFilenameDate(%q) = %s, expected %s",
				tc.name, parsed.Format(models.DateFormat), tc.expected.Format(models.DateFormat))
		}
	}
}

func TestResolveDatePrecedence(t *testing.T) {
	candidate := createTestCandidate("daysheet_2024-05-02.pdf", "hash1")

	// Document date wins over everything.
	candidate.DocumentDate = models.Date(2024, 5, 1)
	date, source := candidate.ResolveDate()
	if source != DateFromDocument || !date.Equal(models.Date(2024, 5, 1)) {
		t.Errorf("Expected document date 2024-05-01, got %s from %s", date, source)
	}

	// Without a document date, the filename date wins over mtime.
	candidate.DocumentDate = time.Time{}
	date, source = candidate.ResolveDate()
	if source != DateFromFilename || !date.Equal(models.Date(2024, 5, 2)) {
		t.Errorf("Expected filename date 2024-05-02, got %s from %s", date, source)
	}

	// Without either, fall back to the modification time.
	candidate.Meta.Name = "daysheet.pdf"
	date, source = candidate.ResolveDate()
	if source != DateFromModTime || !date.Equal(models.Date(2024, 5, 10)) {
		t.Errorf("Expected mtime date 2024-05-10, got %s from %s", date, source)
	}

	// Nothing at all resolves to no date.
	candidate.Meta.ModifiedTime = time.Time{}
	_, source = candidate.ResolveDate()
	if source != DateUnresolved {
		t.Errorf("Expected unresolved date, got %s", source)
	}
}

func TestGroupByDate(t *testing.T) {
	a := createTestCandidate("daysheet_2024-05-01.pdf", "hashA")
	b := createTestCandidate("scan_2024-05-01_retake.pdf", "hashB")
	c := createTestCandidate("daysheet_2024-05-02.pdf", "hashC")
	undatedCandidate := createTestCandidate("daysheet.pdf", "hashD")
	undatedCandidate.Meta.ModifiedTime = time.Time{}

	groups, undated := GroupByDate([]*Candidate{c, a, b, undatedCandidate})

	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	// Groups sort ascending by date.
	if !groups[0].Date.Equal(models.Date(2024, 5, 1)) {
		t.Errorf("Expected first group 2024-05-01, got %s", groups[0].Date)
	}
	if !groups[0].Conflicting() {
		t.Error("Two candidates on one date should conflict")
	}
	if groups[1].Conflicting() {
		t.Error("A single candidate should not conflict")
	}

	if len(undated) != 1 || undated[0].ContentHash != "hashD" {
		t.Fatalf("Expected hashD undated, got %v", undated)
	}
}

func TestResolveMarksAllCandidates(t *testing.T) {
	a := createTestCandidate("daysheet_2024-05-01.pdf", "hashA")
	b := createTestCandidate("scan_2024-05-01_retake.pdf", "hashB")
	group := &Group{
		Date:       models.Date(2024, 5, 1),
		Candidates: []*Candidate{a, b},
	}

	decision, err := Resolve(group, "hashB")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if decision.Chosen != b {
		t.Error("Expected hashB to be chosen")
	}
	if len(decision.MarkKeys) != 2 {
		t.Fatalf("Expected both candidates marked, got %d", len(decision.MarkKeys))
	}
	if len(decision.Foreclosed) != 1 || decision.Foreclosed[0] != "hashA" {
		t.Errorf("Expected hashA foreclosed, got %v", decision.Foreclosed)
	}
	if !decision.Record.Date.Equal(group.Date) {
		t.Errorf("Expected the record stamped with the group date, got %s", decision.Record.Date)
	}
	// The decision record is a copy; the candidate's extraction is untouched.
	decision.Record.Total = decimal.NewFromFloat(1.00)
	if b.Extracted.Total.Equal(decimal.NewFromFloat(1.00)) {
		t.Error("Resolving must not mutate the candidate's extracted record")
	}
}

func TestResolveUnknownHash(t *testing.T) {
	group := &Group{
		Date:       models.Date(2024, 5, 1),
		Candidates: []*Candidate{createTestCandidate("a_2024-05-01.pdf", "hashA")},
	}

	_, err := Resolve(group, "nope")
	if err == nil {
		t.Fatal("Expected an error for an unknown hash")
	}
	if !apperrors.IsCode(err, apperrors.CodeDateConflict) {
		t.Errorf("Expected date conflict code, got %v", err)
	}
}

func TestResolveWithoutExtraction(t *testing.T) {
	candidate := createTestCandidate("a_2024-05-01.pdf", "hashA")
	candidate.Extracted = nil
	group := &Group{
		Date:       models.Date(2024, 5, 1),
		Candidates: []*Candidate{candidate},
	}

	if _, err := Resolve(group, "hashA"); err == nil {
		t.Fatal("Expected an error when the chosen candidate has no extracted data")
	}
}

func TestResolveEmptyGroup(t *testing.T) {
	if _, err := Resolve(&Group{}, "hashA"); err == nil {
		t.Fatal("Expected an error for an empty group")
	}
}
