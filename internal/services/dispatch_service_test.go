package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"disparos/internal/amqp"
	"disparos/internal/cache"
	"disparos/internal/config"
	"disparos/internal/core"
	"disparos/internal/log"
	"disparos/internal/sheets/memory"
	"disparos/internal/storage"
)

type fakeLedger struct {
	created  []storage.Run
	statuses map[string]storage.RunStatus
	rows     map[string]int
	fail     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{statuses: map[string]storage.RunStatus{}, rows: map[string]int{}}
}

func (l *fakeLedger) CreateRun(_ context.Context, run storage.Run) error {
	if l.fail != nil {
		return l.fail
	}
	l.created = append(l.created, run)
	l.statuses[run.ID] = run.Status
	return nil
}

func (l *fakeLedger) UpdateRunStatus(_ context.Context, id string, status storage.RunStatus, sheetRow int, _ string) error {
	if l.fail != nil {
		return l.fail
	}
	l.statuses[id] = status
	l.rows[id] = sheetRow
	return nil
}

type fakePublisher struct {
	msgs []*amqp.AppendRequestMessage
	err  error
}

func (p *fakePublisher) PublishAppendRequest(_ context.Context, msg *amqp.AppendRequestMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func sampleRecords() []core.RawRecord {
	return []core.RawRecord{
		{CampaignName: "GOVERNO DE SP - CARTÃO NOVO", DispatchTimestamp: "05/02/2025 08:28", Line: 2},
		{CampaignName: "Gov SP cartao", DispatchTimestamp: "05/02/2025 08:15", Line: 3},
		{CampaignName: "Gov SP cartao", DispatchTimestamp: "05/02/2025 08:40", Line: 4},
		{CampaignName: "gov ce benef", DispatchTimestamp: "sem data", Line: 5},
	}
}

func newTestService(opts Options) *DispatchService {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s := NewDispatchService(core.DefaultPipelineConfig(), opts)
	s.newID = func() string { return "run-1" }
	return s
}

func TestDispatchService_Compute(t *testing.T) {
	ledger := newFakeLedger()
	memo := cache.NewLRUCache[string](16, time.Minute)
	s := newTestService(Options{Ledger: ledger, Memo: memo, Backend: "memory"})

	run, err := s.Compute(context.Background(), "fev.csv", sampleRecords())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if run.ID != "run-1" || run.Status != storage.RunComputed {
		t.Errorf("run = %+v", run)
	}
	if len(run.Result.Aggregates) != 3 {
		t.Fatalf("got %d groups, want 3", len(run.Result.Aggregates))
	}
	if n := len(run.Result.Diagnostics.ParseWarnings); n != 1 {
		t.Errorf("parse warnings = %d, want 1", n)
	}

	if len(ledger.created) != 1 {
		t.Fatalf("ledger has %d runs, want 1", len(ledger.created))
	}
	rec := ledger.created[0]
	if rec.InputRows != 4 || rec.Groups != 3 || rec.TotalCount != 4 || rec.Backend != "memory" {
		t.Errorf("ledger run = %+v", rec)
	}
	if !rec.TotalCost.Equal(core.TotalCost(run.Result.Aggregates)) {
		t.Errorf("total cost = %s", rec.TotalCost)
	}
	if st := memo.Stats(); st.Size == 0 {
		t.Error("classification memo was not used")
	}
}

func TestDispatchService_ComputeLedgerFailureIsNotFatal(t *testing.T) {
	ledger := newFakeLedger()
	ledger.fail = errors.New("disk full")
	s := newTestService(Options{Ledger: ledger})

	if _, err := s.Compute(context.Background(), "x.csv", sampleRecords()); err != nil {
		t.Fatalf("Compute: %v", err)
	}
}

func TestDispatchService_ComputeFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "disparos.csv")
	body := "NOME CAMPANHA;DATA/HORA DISPARO;ID CAMPANHA\n" +
		"Gov SP cartao;05/02/2025 08:15;1\n" +
		"Gov SP cartao;05/02/2025 08:40;2\n"
	if err := os.WriteFile(good, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("A;B\n1;2\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := newTestService(Options{})
	run, err := s.ComputeFile(context.Background(), good)
	if err != nil {
		t.Fatalf("ComputeFile: %v", err)
	}
	if run.Source != good || len(run.Result.Aggregates) != 1 || run.Result.Aggregates[0].Count != 2 {
		t.Errorf("run = %+v", run)
	}

	if _, err := s.ComputeFile(context.Background(), bad); !errors.Is(err, core.ErrInputSchema) {
		t.Errorf("error = %v, want input schema error", err)
	}
}

func TestDispatchService_Append(t *testing.T) {
	store := memory.New()
	ledger := newFakeLedger()
	s := newTestService(Options{Store: store, Ledger: ledger})
	ctx := context.Background()

	run, err := s.Compute(ctx, "fev.csv", sampleRecords())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := s.Deliver(ctx, run, config.AppendDirect); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if run.Status != storage.RunAppended || run.Plan.SheetRow() != 1 || !run.Plan.WriteHeader {
		t.Errorf("first plan = %+v, status %s", run.Plan, run.Status)
	}
	if store.Len() != 4 {
		t.Fatalf("store has %d rows, want header + 3", store.Len())
	}

	s.newID = func() string { return "run-2" }
	second, err := s.Compute(ctx, "fev.csv", sampleRecords())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := s.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.Plan.SheetRow() != 5 || second.Plan.TargetRowIndex != 4 {
		t.Errorf("second plan = %+v", second.Plan)
	}
	if ledger.statuses["run-2"] != storage.RunAppended || ledger.rows["run-2"] != 5 {
		t.Errorf("ledger = %v %v", ledger.statuses, ledger.rows)
	}

	st, err := s.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if st.DataRows != 6 || st.NextRow != 8 || !st.HeaderMatches {
		t.Errorf("status = %+v", st)
	}
}

func TestDispatchService_AppendSchemaMismatch(t *testing.T) {
	store := memory.New([]string{"DATA", "HORA"})
	ledger := newFakeLedger()
	s := newTestService(Options{Store: store, Ledger: ledger})
	ctx := context.Background()

	run, err := s.Compute(ctx, "fev.csv", sampleRecords())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	err = s.Append(ctx, run)
	if !errors.Is(err, core.ErrSchemaMismatch) {
		t.Fatalf("error = %v, want schema mismatch", err)
	}
	if store.Len() != 1 {
		t.Errorf("store was written to: %d rows", store.Len())
	}
	if run.Status != storage.RunFailed || ledger.statuses["run-1"] != storage.RunFailed {
		t.Errorf("run status = %s, ledger = %s", run.Status, ledger.statuses["run-1"])
	}
}

func TestDispatchService_AppendEmpty(t *testing.T) {
	store := memory.New()
	s := newTestService(Options{Store: store})

	run, err := s.Compute(context.Background(), "vazio.csv", nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := s.Append(context.Background(), run); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("empty run wrote %d rows", store.Len())
	}
}

func TestDispatchService_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	ledger := newFakeLedger()
	s := newTestService(Options{Publisher: pub, Ledger: ledger})
	ctx := context.Background()

	run, err := s.Compute(ctx, "fev.csv", sampleRecords())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := s.Deliver(ctx, run, config.AppendQueue); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.RunID != "run-1" || len(msg.Rows) != 3 || msg.Source != "fev.csv" {
		t.Errorf("message = %+v", msg)
	}
	if run.Status != storage.RunQueued || ledger.statuses["run-1"] != storage.RunQueued {
		t.Errorf("status = %s", run.Status)
	}

	pub.err = errors.New("circuit breaker is open")
	if err := s.Enqueue(ctx, run); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestDispatchService_MissingCollaborators(t *testing.T) {
	s := newTestService(Options{})
	ctx := context.Background()
	run := &Run{ID: "r", Result: core.Result{Aggregates: []core.AggregateRecord{{Count: 1}}}}

	tests := []struct {
		name string
		mode string
		want error
	}{
		{"direct without store", config.AppendDirect, ErrNoStore},
		{"queue without publisher", config.AppendQueue, ErrNoPublisher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Deliver(ctx, run, tt.mode); !errors.Is(err, tt.want) {
				t.Errorf("Deliver(%s) = %v, want %v", tt.mode, err, tt.want)
			}
		})
	}
	if err := s.Deliver(ctx, run, "carrier-pigeon"); err == nil {
		t.Error("expected unknown mode error")
	}
	if _, err := s.Check(ctx); !errors.Is(err, ErrNoStore) {
		t.Errorf("Check error = %v", err)
	}
}

func TestDispatchService_ImportSummary(t *testing.T) {
	store := memory.New()
	ledger := newFakeLedger()
	s := newTestService(Options{Store: store, Ledger: ledger})
	ctx := context.Background()

	computed, err := s.Compute(ctx, "fev.csv", sampleRecords())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	s.newID = func() string { return "run-2" }
	run := s.ImportSummary(ctx, "resumo.csv", computed.Result.Aggregates)
	if run.ID != "run-2" || len(ledger.created) != 2 || ledger.created[1].Groups != 3 {
		t.Fatalf("run = %+v, ledger = %+v", run, ledger.created)
	}
	if err := s.Append(ctx, run); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if store.Len() != 4 {
		t.Errorf("store has %d rows, want 4", store.Len())
	}
}
