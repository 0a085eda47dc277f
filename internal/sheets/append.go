package sheets

import (
	"context"
	"errors"

	"disparos/internal/core"
)

// Status describes the store as seen by a read-only check.
type Status struct {
	Rows          int  // physical rows, header included
	DataRows      int  // rows after the header
	HeaderPresent bool
	HeaderMatches bool
	NextRow       int // physical row the next append would start at
}

// Append reads the store, plans the append and writes the new rows in a single
// call. Nothing is written when records is empty. Read and write failures are
// returned as *core.StoreIOError; a header mismatch as *core.SchemaMismatchError.
func Append(ctx context.Context, store Store, header []string, records []core.AggregateRecord) (core.AppendPlan, error) {
	existing, err := store.ReadAllRows(ctx)
	if err != nil {
		return core.AppendPlan{}, storeError("read", err)
	}
	plan, err := core.PlanAppend(existing, header, records)
	if err != nil {
		return core.AppendPlan{}, err
	}
	if len(plan.Rows) == 0 {
		return plan, nil
	}
	if err := store.AppendRows(ctx, plan.Values(), plan.SheetRow()); err != nil {
		return plan, storeError("append", err)
	}
	return plan, nil
}

// Check reads the store without writing and reports where the next append would go.
func Check(ctx context.Context, store RowReader, header []string) (Status, error) {
	existing, err := store.ReadAllRows(ctx)
	if err != nil {
		return Status{}, storeError("read", err)
	}
	if len(header) == 0 {
		header = core.DefaultHeader
	}
	plan, planErr := core.PlanAppend(existing, header, nil)

	st := Status{Rows: len(existing), NextRow: 1}
	if planErr == nil && plan.WriteHeader {
		return st, nil
	}
	st.HeaderPresent = true
	st.HeaderMatches = planErr == nil
	if st.HeaderMatches {
		st.DataRows = plan.TargetRowIndex - 1
		st.NextRow = plan.SheetRow()
	}
	return st, planErr
}

func storeError(op string, err error) error {
	var se *core.StoreIOError
	if errors.As(err, &se) {
		return err
	}
	return &core.StoreIOError{Op: op, Err: err}
}
