package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"disparos/internal/core"
	ports "disparos/internal/sheets"
)

// ErrRowConflict means another writer appended between the caller's read and its append.
var ErrRowConflict = errors.New("start row is not the next free row")

var _ ports.Store = (*RowStore)(nil)

// RowStore keeps the summary sheet in the summary_rows table. Unlike a
// spreadsheet range update, it refuses an append that does not start at the
// next free row, so a concurrent run is detected instead of overwriting rows.
type RowStore struct {
	db  *sql.DB
	now func() time.Time
}

func (s *RowStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row_num, cells FROM summary_rows ORDER BY row_num`)
	if err != nil {
		return nil, &core.StoreIOError{Op: "read", Err: err}
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var (
			num   int
			cells string
		)
		if err := rows.Scan(&num, &cells); err != nil {
			return nil, &core.StoreIOError{Op: "read", Err: err}
		}
		for len(out) < num-1 {
			out = append(out, nil)
		}
		var row []string
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, &core.StoreIOError{Op: "read", Err: fmt.Errorf("row %d: %w", num, err)}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreIOError{Op: "read", Err: err}
	}
	return out, nil
}

// AppendRows inserts rows from atRow on inside one transaction.
func (s *RowStore) AppendRows(ctx context.Context, rows [][]string, atRow int) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StoreIOError{Op: "append", Err: fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback()

	var last int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(row_num), 0) FROM summary_rows`).Scan(&last); err != nil {
		return &core.StoreIOError{Op: "append", Err: err}
	}
	if atRow != last+1 {
		return &core.StoreIOError{Op: "append", Err: fmt.Errorf("%w: start row %d, next row %d", ErrRowConflict, atRow, last+1)}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO summary_rows (row_num, cells, written_at) VALUES (?, ?, ?)`)
	if err != nil {
		return &core.StoreIOError{Op: "append", Err: err}
	}
	defer stmt.Close()

	written := formatTime(s.now())
	for i, row := range rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return &core.StoreIOError{Op: "append", Err: err}
		}
		if _, err := stmt.ExecContext(ctx, atRow+i, string(cells), written); err != nil {
			return &core.StoreIOError{Op: "append", Err: fmt.Errorf("row %d: %w", atRow+i, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &core.StoreIOError{Op: "append", Err: fmt.Errorf("commit: %w", err)}
	}

	slog.InfoContext(ctx, "Summary rows saved to SQLite", "sheet_row", atRow, "rows", len(rows))
	return nil
}
