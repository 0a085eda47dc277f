package sheets

import (
	"context"
)

// Ports for outbound adapters. Row and column positions are 1-based and count the
// header row, the way spreadsheet tools number them.
type (
	// RowReader returns every row currently in the store, header included.
	RowReader interface {
		ReadAllRows(ctx context.Context) ([][]string, error)
	}

	// RowAppender writes rows starting at the physical row atRow. Existing rows
	// before atRow are never touched.
	RowAppender interface {
		AppendRows(ctx context.Context, rows [][]string, atRow int) error
	}

	// Store is the external summary store: one read and one append per run.
	Store interface {
		RowReader
		RowAppender
	}
)
