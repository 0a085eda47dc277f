package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"disparos/internal/amqp"
	"disparos/internal/cache"
	"disparos/internal/config"
	"disparos/internal/core"
	"disparos/internal/ingest"
	"disparos/internal/log"
	"disparos/internal/sheets"
	"disparos/internal/storage"
)

var (
	ErrNoStore     = errors.New("no store configured")
	ErrNoPublisher = errors.New("no AMQP publisher configured")
)

// RunLedger records runs and their append status.
type RunLedger interface {
	CreateRun(ctx context.Context, run storage.Run) error
	UpdateRunStatus(ctx context.Context, id string, status storage.RunStatus, sheetRow int, errMsg string) error
}

// Publisher enqueues append requests for the worker.
type Publisher interface {
	PublishAppendRequest(ctx context.Context, msg *amqp.AppendRequestMessage) error
}

// Options wire the service's collaborators. Every field is optional.
type Options struct {
	Store     sheets.Store
	Ledger    RunLedger
	Publisher Publisher
	Memo      *cache.LRUCache[string]
	Header    []string
	Backend   string
	Logger    *log.Logger
}

// Run is one pipeline execution and what happened to its summary.
type Run struct {
	ID       string
	Source   string
	Result   core.Result
	Plan     core.AppendPlan // zero unless appended directly
	Status   storage.RunStatus
	Duration time.Duration
}

// DispatchService runs the pipeline over an export, records the run, and
// appends the summary to the store directly or through the queue.
type DispatchService struct {
	pipeline  core.PipelineConfig
	store     sheets.Store
	ledger    RunLedger
	publisher Publisher
	memo      *cache.LRUCache[string]
	header    []string
	backend   string
	logger    *log.Logger
	newID     func() string
	now       func() time.Time
}

func NewDispatchService(pipeline core.PipelineConfig, opts Options) *DispatchService {
	if opts.Memo != nil {
		pipeline.Memo = opts.Memo
	}
	header := opts.Header
	if len(header) == 0 {
		header = core.DefaultHeader
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DispatchService{
		pipeline:  pipeline,
		store:     opts.Store,
		ledger:    opts.Ledger,
		publisher: opts.Publisher,
		memo:      opts.Memo,
		header:    header,
		backend:   opts.Backend,
		logger:    logger.WithComponent(log.ComponentPipeline),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// ComputeFile reads an export and computes its summary.
func (s *DispatchService) ComputeFile(ctx context.Context, path string) (*Run, error) {
	records, err := ingest.ReadFile(path)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read export",
			log.NewFields().WithOperation(log.OpParse).WithError(err, errorType(err)).ToSlice()...)
		return nil, fmt.Errorf("read export %s: %w", path, err)
	}
	return s.Compute(ctx, path, records)
}

// Compute runs the pipeline and records the run. It does not touch the store.
// A ledger failure is logged; the computed summary is still returned.
func (s *DispatchService) Compute(ctx context.Context, source string, records []core.RawRecord) (*Run, error) {
	start := s.now()
	res, err := core.Run(records, s.pipeline)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}

	run := &Run{
		ID:       s.newID(),
		Source:   source,
		Result:   res,
		Status:   storage.RunComputed,
		Duration: s.now().Sub(start),
	}
	totalCost := core.TotalCost(res.Aggregates)

	fields := log.NewFields().
		WithRunID(run.ID).
		WithOperation(log.OpRun).
		WithRun(res.Diagnostics.InputRows, len(res.Aggregates), len(res.Diagnostics.ParseWarnings), totalCost.StringFixedBank(core.CostDecimal))
	fields[log.FieldSource] = source
	fields[log.FieldFallbacks] = res.Diagnostics.PartnerFallbacks + res.Diagnostics.ProductFallbacks
	fields[log.FieldDuration] = run.Duration.Milliseconds()
	if s.memo != nil {
		fields[log.FieldCacheHitRate] = s.memo.Stats().HitRate()
	}
	s.logger.InfoContext(ctx, "Pipeline run completed", fields.ToSlice()...)

	for _, w := range res.Diagnostics.ParseWarnings {
		s.logger.DebugContext(ctx, "Unparsable dispatch timestamp", "line", w.Line, "value", w.Value)
	}
	if n := len(res.Diagnostics.ParseWarnings); n > 0 {
		s.logger.WarnContext(ctx, "Rows kept without date and time", log.FieldRunID, run.ID, log.FieldWarnings, n)
	}

	if s.ledger != nil {
		err := s.ledger.CreateRun(ctx, storage.Run{
			ID:               run.ID,
			Source:           source,
			StartedAt:        start,
			InputRows:        res.Diagnostics.InputRows,
			Groups:           len(res.Aggregates),
			TotalCount:       core.TotalCount(res.Aggregates),
			TotalCost:        totalCost,
			ParseWarnings:    len(res.Diagnostics.ParseWarnings),
			PartnerFallbacks: res.Diagnostics.PartnerFallbacks,
			ProductFallbacks: res.Diagnostics.ProductFallbacks,
			Backend:          s.backend,
			Status:           storage.RunComputed,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to record run",
				log.NewFields().WithRunID(run.ID).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		}
	}
	return run, nil
}

// ImportSummary wraps a summary read back from an export artifact in a new run,
// so it can be appended without the original dispatch export.
func (s *DispatchService) ImportSummary(ctx context.Context, source string, aggregates []core.AggregateRecord) *Run {
	run := &Run{
		ID:     s.newID(),
		Source: source,
		Result: core.Result{Aggregates: aggregates},
		Status: storage.RunComputed,
	}
	s.logger.InfoContext(ctx, "Summary imported",
		log.FieldRunID, run.ID, log.FieldSource, source, log.FieldRows, len(aggregates))
	if s.ledger != nil {
		err := s.ledger.CreateRun(ctx, storage.Run{
			ID:         run.ID,
			Source:     source,
			StartedAt:  s.now(),
			Groups:     len(aggregates),
			TotalCount: core.TotalCount(aggregates),
			TotalCost:  core.TotalCost(aggregates),
			Backend:    s.backend,
			Status:     storage.RunComputed,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to record run",
				log.NewFields().WithRunID(run.ID).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		}
	}
	return run
}

// Deliver hands the run's summary to the store according to mode.
func (s *DispatchService) Deliver(ctx context.Context, run *Run, mode string) error {
	switch mode {
	case config.AppendQueue:
		return s.Enqueue(ctx, run)
	case config.AppendDirect, "":
		return s.Append(ctx, run)
	default:
		return fmt.Errorf("unknown append mode %q", mode)
	}
}

// Append reads the store, plans the append and writes the summary rows.
// Nothing is written for an empty summary.
func (s *DispatchService) Append(ctx context.Context, run *Run) error {
	if s.store == nil {
		return ErrNoStore
	}
	if len(run.Result.Aggregates) == 0 {
		s.logger.InfoContext(ctx, "Nothing to append", log.FieldRunID, run.ID)
		return nil
	}

	plan, err := sheets.Append(ctx, s.store, s.header, run.Result.Aggregates)
	if err != nil {
		run.Status = storage.RunFailed
		s.updateLedger(ctx, run.ID, storage.RunFailed, 0, err.Error())
		s.logger.ErrorContext(ctx, "Append failed",
			log.NewFields().WithRunID(run.ID).WithOperation(log.OpAppend).WithError(err, errorType(err)).ToSlice()...)
		return fmt.Errorf("append run %s: %w", run.ID, err)
	}

	run.Plan = plan
	run.Status = storage.RunAppended
	s.updateLedger(ctx, run.ID, storage.RunAppended, plan.SheetRow(), "")

	fields := log.NewFields().WithRunID(run.ID).WithOperation(log.OpAppend).WithPlan(plan.TargetRowIndex, plan.SheetRow(), len(plan.Rows))
	fields[log.FieldBackend] = s.backend
	s.logger.InfoContext(ctx, "Summary appended", fields.ToSlice()...)
	return nil
}

// Enqueue publishes the summary for the append worker.
func (s *DispatchService) Enqueue(ctx context.Context, run *Run) error {
	if s.publisher == nil {
		return ErrNoPublisher
	}
	if len(run.Result.Aggregates) == 0 {
		s.logger.InfoContext(ctx, "Nothing to enqueue", log.FieldRunID, run.ID)
		return nil
	}

	msg := amqp.NewAppendRequestMessage(run.ID, run.Source, s.header, run.Result.Aggregates)
	if err := s.publisher.PublishAppendRequest(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish append request",
			log.NewFields().WithRunID(run.ID).WithOperation(log.OpPublish).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		return fmt.Errorf("enqueue run %s: %w", run.ID, err)
	}

	run.Status = storage.RunQueued
	s.updateLedger(ctx, run.ID, storage.RunQueued, 0, "")
	s.logger.InfoContext(ctx, "Append request queued", log.FieldRunID, run.ID, log.FieldRows, len(msg.Rows))
	return nil
}

// Check reads the store without writing.
func (s *DispatchService) Check(ctx context.Context) (sheets.Status, error) {
	if s.store == nil {
		return sheets.Status{}, ErrNoStore
	}
	return sheets.Check(ctx, s.store, s.header)
}

func (s *DispatchService) updateLedger(ctx context.Context, id string, status storage.RunStatus, sheetRow int, errMsg string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.UpdateRunStatus(ctx, id, status, sheetRow, errMsg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update run status",
			log.NewFields().WithRunID(id).WithError(err, log.ErrorTypeInternal).ToSlice()...)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrInputSchema):
		return log.ErrorTypeInput
	case errors.Is(err, core.ErrSchemaMismatch):
		return log.ErrorTypeSchema
	case errors.Is(err, core.ErrStoreIO):
		return log.ErrorTypeStore
	default:
		return log.ErrorTypeInternal
	}
}
