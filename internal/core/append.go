package core

import (
	"fmt"
	"strings"
)

// AppendPlan says where new summary rows go. TargetRowIndex is the 1-based data row
// (header excluded); SheetRow is the physical row including the header.
type AppendPlan struct {
	TargetRowIndex int
	HeaderRows     int
	WriteHeader    bool
	Header         []string
	Rows           [][]string
}

// SheetRow returns the 1-based physical row where Values must be written.
func (p AppendPlan) SheetRow() int {
	if p.WriteHeader {
		return 1
	}
	return p.TargetRowIndex + p.HeaderRows
}

// Values returns the rows to write at SheetRow, header first when the store is empty.
func (p AppendPlan) Values() [][]string {
	if !p.WriteHeader {
		return p.Rows
	}
	out := make([][]string, 0, len(p.Rows)+1)
	out = append(out, append([]string(nil), p.Header...))
	return append(out, p.Rows...)
}

// SchemaMismatchError reports that the store header or a new row does not match
// the expected column order.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
	Row      int // 0 for the header, otherwise the 1-based new row
}

func (e *SchemaMismatchError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("schema mismatch: store header %q, expected %q", e.Got, e.Expected)
	}
	return fmt.Sprintf("schema mismatch: new row %d has %d columns, expected %d", e.Row, len(e.Got), len(e.Expected))
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// TargetRowIndex returns the first free data row after existingDataRows.
func TargetRowIndex(existingDataRows int) int {
	if existingDataRows < 0 {
		existingDataRows = 0
	}
	return existingDataRows + 1
}

// PlanAppend validates that records fit the store and returns where to append them.
// existing is every row currently in the store, header included. Previously stored
// rows are never rewritten. Two runs planning against the same store concurrently
// can collide; callers must serialize runs per store.
func PlanAppend(existing [][]string, header []string, records []AggregateRecord) (AppendPlan, error) {
	if len(header) == 0 {
		header = DefaultHeader
	}
	rows := Rows(records)
	for i, row := range rows {
		if len(row) != len(header) {
			return AppendPlan{}, &SchemaMismatchError{Expected: header, Got: row, Row: i + 1}
		}
	}

	existing = trimBlankTail(existing)
	if len(existing) == 0 {
		return AppendPlan{
			TargetRowIndex: TargetRowIndex(0),
			HeaderRows:     1,
			WriteHeader:    true,
			Header:         append([]string(nil), header...),
			Rows:           rows,
		}, nil
	}

	if !HeaderMatches(existing[0], header) {
		return AppendPlan{}, &SchemaMismatchError{Expected: header, Got: existing[0]}
	}
	return AppendPlan{
		TargetRowIndex: TargetRowIndex(len(existing) - 1),
		HeaderRows:     1,
		Header:         append([]string(nil), header...),
		Rows:           rows,
	}, nil
}

// HeaderMatches compares a store header with the expected columns cell by cell.
// Trailing empty cells in got are ignored.
func HeaderMatches(got, expected []string) bool {
	for len(got) > len(expected) && strings.TrimSpace(got[len(got)-1]) == "" {
		got = got[:len(got)-1]
	}
	if len(got) != len(expected) {
		return false
	}
	for i := range expected {
		if strings.TrimSpace(got[i]) != strings.TrimSpace(expected[i]) {
			return false
		}
	}
	return true
}

func trimBlankTail(rows [][]string) [][]string {
	for len(rows) > 0 && blankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
