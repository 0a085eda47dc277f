package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"disparos/internal/amqp"
	"disparos/internal/core"
	"disparos/internal/sheets"
	"disparos/internal/storage"
)

// RunLedger is the part of the run ledger the worker updates.
type RunLedger interface {
	GetRun(ctx context.Context, id string) (storage.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status storage.RunStatus, sheetRow int, errMsg string) error
}

// AppendWorker appends queued run summaries to the store. The plan is computed
// when the message is handled, so rows land after whatever the store holds then.
type AppendWorker struct {
	store  sheets.Store
	ledger RunLedger
	header []string
}

// NewAppendWorker creates a worker. ledger may be nil.
func NewAppendWorker(store sheets.Store, ledger RunLedger, header []string) *AppendWorker {
	if len(header) == 0 {
		header = core.DefaultHeader
	}
	return &AppendWorker{store: store, ledger: ledger, header: header}
}

// HandleAppendRequest processes a single append request from AMQP. Errors that
// a retry cannot fix wrap amqp.ErrReject.
func (w *AppendWorker) HandleAppendRequest(ctx context.Context, msg *amqp.AppendRequestMessage) error {
	if w.alreadyAppended(ctx, msg.RunID) {
		slog.InfoContext(ctx, "Run already appended, skipping redelivered request", "run_id", msg.RunID)
		return nil
	}

	header := msg.Header
	if len(header) == 0 {
		header = w.header
	}
	if !core.HeaderMatches(header, w.header) {
		err := &core.SchemaMismatchError{Expected: w.header, Got: header}
		w.markFailed(ctx, msg.RunID, err)
		return fmt.Errorf("%w: %w", amqp.ErrReject, err)
	}

	plan, err := sheets.Append(ctx, w.store, w.header, msg.Records())
	if err != nil {
		w.markFailed(ctx, msg.RunID, err)
		if errors.Is(err, core.ErrSchemaMismatch) {
			return fmt.Errorf("%w: %w", amqp.ErrReject, err)
		}
		return fmt.Errorf("append run %s: %w", msg.RunID, err)
	}

	if w.ledger != nil {
		if err := w.ledger.UpdateRunStatus(ctx, msg.RunID, storage.RunAppended, plan.SheetRow(), ""); err != nil {
			// The rows are in the store; a ledger failure must not trigger a second append.
			slog.ErrorContext(ctx, "Failed to mark run as appended", "run_id", msg.RunID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Successfully appended run summary",
		"run_id", msg.RunID,
		"target_row", plan.TargetRowIndex,
		"sheet_row", plan.SheetRow(),
		"rows", len(plan.Rows),
		"header_written", plan.WriteHeader)
	return nil
}

// StartupCheck reads the store once before consuming, so misconfiguration
// shows up at start rather than on the first message.
func (w *AppendWorker) StartupCheck(ctx context.Context) error {
	st, err := sheets.Check(ctx, w.store, w.header)
	if err != nil {
		return fmt.Errorf("store startup check: %w", err)
	}
	slog.InfoContext(ctx, "Store reachable",
		"rows", st.Rows,
		"data_rows", st.DataRows,
		"header_present", st.HeaderPresent,
		"next_row", st.NextRow)
	return nil
}

func (w *AppendWorker) alreadyAppended(ctx context.Context, runID string) bool {
	if w.ledger == nil {
		return false
	}
	run, err := w.ledger.GetRun(ctx, runID)
	if err != nil {
		if !errors.Is(err, storage.ErrRunNotFound) {
			slog.WarnContext(ctx, "Could not read run from ledger", "run_id", runID, "error", err)
		}
		return false
	}
	return run.Status == storage.RunAppended
}

func (w *AppendWorker) markFailed(ctx context.Context, runID string, cause error) {
	if w.ledger == nil {
		return
	}
	if err := w.ledger.UpdateRunStatus(ctx, runID, storage.RunFailed, 0, cause.Error()); err != nil && !errors.Is(err, storage.ErrRunNotFound) {
		slog.ErrorContext(ctx, "Failed to mark run as failed", "run_id", runID, "error", err)
	}
}
