package memory

import (
	"context"
	"fmt"
	"sync"

	ports "disparos/internal/sheets"
)

var _ ports.Store = (*Store)(nil)

// Store keeps the summary sheet in memory. AppendRows behaves like a range update:
// rows are written from atRow on, and any gap before it is filled with blank rows.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

// New returns a store holding a copy of rows.
func New(rows ...[]string) *Store {
	return &Store{rows: copyRows(rows)}
}

// ReadAllRows returns a copy of every row.
func (s *Store) ReadAllRows(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.rows), nil
}

// AppendRows writes rows starting at the 1-based physical row atRow,
// padding any gap with empty rows.
func (s *Store) AppendRows(ctx context.Context, rows [][]string, atRow int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if atRow < 1 {
		return fmt.Errorf("invalid start row %d", atRow)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.rows) < atRow-1 {
		s.rows = append(s.rows, nil)
	}
	for i, row := range copyRows(rows) {
		at := atRow - 1 + i
		if at < len(s.rows) {
			s.rows[at] = row
			continue
		}
		s.rows = append(s.rows, row)
	}
	return nil
}

// Len returns the number of physical rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, r := range in {
		if r != nil {
			out[i] = append([]string(nil), r...)
		}
	}
	return out
}
