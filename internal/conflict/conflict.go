// Package conflict detects and resolves same-date import collisions.
//
// When several source files resolve to the same business date, none of them
// may be committed automatically: the grouping step runs over the whole
// candidate batch before any commit, producing one explicit decision point
// per conflicting date. Until the operator picks a candidate, every candidate
// in the group stays pending and the batch can be safely revisited.
package conflict

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"daysheet-reconciliation-service/internal/models"
	apperrors "daysheet-reconciliation-service/pkg/errors"
)

// DateSource identifies where a candidate's resolved date came from.
// Precedence is document > filename > file modification time.
type DateSource string

const (
	DateFromDocument DateSource = "document"
	DateFromFilename DateSource = "filename"
	DateFromModTime  DateSource = "mtime"
	DateUnresolved   DateSource = "none"
)

// FileMeta is the file-listing metadata supplied by the filesystem
// collaborator.
type FileMeta struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Candidate is one pending day-sheet import awaiting commit. The extraction
// collaborator fills Extracted and, when the document carries a legible
// date, DocumentDate; PreviewPath references the rendered page for the
// operator's decision.
type Candidate struct {
	Meta         FileMeta              `json:"meta"`
	ContentHash  string                `json:"contentHash"`
	DocumentDate time.Time             `json:"documentDate,omitempty"`
	Extracted    *models.DepositRecord `json:"extracted,omitempty"`
	PreviewPath  string                `json:"previewPath,omitempty"`
}

// ResolveDate returns the candidate's assignment date and its source,
// following the documented precedence. A candidate with no document date, no
// parseable filename date, and a zero modification time has no resolvable
// date and must be rejected before commit.
func (c *Candidate) ResolveDate() (time.Time, DateSource) {
	if !c.DocumentDate.IsZero() {
		return models.TruncateToDate(c.DocumentDate), DateFromDocument
	}
	if date, ok := ParseFilenameDate(c.Meta.Name); ok {
		return date, DateFromFilename
	}
	if !c.Meta.ModifiedTime.IsZero() {
		return models.TruncateToDate(c.Meta.ModifiedTime), DateFromModTime
	}
	return time.Time{}, DateUnresolved
}

var filenameDatePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
	{regexp.MustCompile(`(\d{4}_\d{2}_\d{2})`), "2006_01_02"},
	{regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`), "01-02-2006"},
	{regexp.MustCompile(`(\d{8})`), "20060102"},
}

// ParseFilenameDate extracts a calendar date embedded in a file name, such
// as "daysheet_2024-05-01.pdf" or "deposit 20240501.png".
func ParseFilenameDate(name string) (time.Time, bool) {
	for _, pattern := range filenameDatePatterns {
		match := pattern.re.FindString(name)
		if match == "" {
			continue
		}
		if t, err := time.Parse(pattern.layout, match); err == nil {
			return models.TruncateToDate(t), true
		}
	}
	return time.Time{}, false
}

// Group is the set of candidates resolving to one business date.
type Group struct {
	Date       time.Time    `json:"date"`
	Candidates []*Candidate `json:"candidates"`
}

// Conflicting reports whether the group needs an operator decision.
func (g *Group) Conflicting() bool {
	return len(g.Candidates) > 1
}

// GroupByDate groups a candidate batch by resolved date, before any commit.
// Candidates whose date cannot be resolved are returned separately; they are
// rejected with a missing-date condition rather than guessed. Groups are
// sorted ascending by date for stable presentation.
func GroupByDate(candidates []*Candidate) (groups []*Group, undated []*Candidate) {
	byDate := make(map[string]*Group)

	for _, candidate := range candidates {
		date, source := candidate.ResolveDate()
		if source == DateUnresolved {
			undated = append(undated, candidate)
			continue
		}
		key := date.Format(models.DateFormat)
		group, ok := byDate[key]
		if !ok {
			group = &Group{Date: date}
			byDate[key] = group
		}
		group.Candidates = append(group.Candidates, candidate)
	}

	for _, group := range byDate {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.Before(groups[j].Date)
	})
	return groups, undated
}

// Decision is the outcome of resolving one conflicting group. The chosen
// candidate's extracted data becomes the committed deposit record for the
// date; every candidate in the group, chosen and rejected alike, is marked
// imported so none is reprocessed. Foreclosed lists the rejected candidates'
// content keys: once marked, a rejected candidate can no longer be
// re-imported as its own record, and callers should surface that to the
// operator before committing.
type Decision struct {
	Date       time.Time             `json:"date"`
	Chosen     *Candidate            `json:"chosen"`
	Record     *models.DepositRecord `json:"record"`
	MarkKeys   []string              `json:"markKeys"`
	Foreclosed []string              `json:"foreclosed"`
}

// Resolve produces the decision for a group given the chosen candidate's
// content hash. It fails if the hash names no candidate in the group or the
// chosen candidate carries no extracted data.
func Resolve(group *Group, chosenHash string) (*Decision, error) {
	if group == nil || len(group.Candidates) == 0 {
		return nil, fmt.Errorf("cannot resolve an empty conflict group")
	}

	var chosen *Candidate
	for _, candidate := range group.Candidates {
		if candidate.ContentHash == chosenHash {
			chosen = candidate
			break
		}
	}
	if chosen == nil {
		return nil, apperrors.ImportError(apperrors.CodeDateConflict,
			group.Date.Format(models.DateFormat), nil).
			WithContext("chosen_hash", chosenHash)
	}
	if chosen.Extracted == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField,
			"extracted", chosen.Meta.Name, nil)
	}

	record := *chosen.Extracted
	record.Date = group.Date

	decision := &Decision{
		Date:   group.Date,
		Chosen: chosen,
		Record: &record,
	}
	for _, candidate := range group.Candidates {
		decision.MarkKeys = append(decision.MarkKeys, candidate.ContentHash)
		if candidate != chosen {
			decision.Foreclosed = append(decision.Foreclosed, candidate.ContentHash)
		}
	}
	return decision, nil
}
