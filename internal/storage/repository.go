package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02 15:04:05.000000"

// RunStatus tracks what happened to a run's summary rows.
type RunStatus string

const (
	RunComputed RunStatus = "computed" // summary computed, no append requested
	RunQueued   RunStatus = "queued"
	RunAppended RunStatus = "appended"
	RunFailed   RunStatus = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline execution as recorded in the ledger.
type Run struct {
	ID               string
	Source           string
	StartedAt        time.Time
	FinishedAt       time.Time // zero until the run reaches a final status
	InputRows        int
	Groups           int
	TotalCount       int
	TotalCost        decimal.Decimal
	ParseWarnings    int
	PartnerFallbacks int
	ProductFallbacks int
	Backend          string
	Status           RunStatus
	SheetRow         int
	Error            string
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps the row store's read-check-insert transaction serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Rows returns the summary-sheet store backed by this database.
func (r *SQLiteRepository) Rows() *RowStore {
	return &RowStore{db: r.db, now: r.now}
}

// CreateRun records a computed run. StartedAt defaults to now.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	if run.Status == "" {
		run.Status = RunComputed
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, input_rows, group_count, total_count, total_cost,
			parse_warnings, partner_fallbacks, product_fallbacks, backend, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, formatTime(run.StartedAt), run.InputRows, run.Groups, run.TotalCount,
		run.TotalCost.StringFixedBank(2), run.ParseWarnings, run.PartnerFallbacks, run.ProductFallbacks,
		run.Backend, string(run.Status))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	slog.InfoContext(ctx, "Run recorded",
		"run_id", run.ID,
		"source", run.Source,
		"groups", run.Groups,
		"status", run.Status)
	return nil
}

// UpdateRunStatus moves a run to status. Final statuses stamp finished_at.
func (r *SQLiteRepository) UpdateRunStatus(ctx context.Context, id string, status RunStatus, sheetRow int, errMsg string) error {
	var finished any
	if status == RunAppended || status == RunFailed {
		finished = formatTime(r.now())
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, sheet_row = ?, error = ?, finished_at = COALESCE(?, finished_at)
		WHERE id = ?`,
		string(status), sheetRow, errMsg, finished, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", id, ErrRunNotFound)
	}

	if status == RunFailed {
		slog.WarnContext(ctx, "Run marked as failed", "run_id", id, "error", errMsg)
	} else {
		slog.InfoContext(ctx, "Run status updated", "run_id", id, "status", status, "sheet_row", sheetRow)
	}
	return nil
}

const runColumns = `id, source, started_at, COALESCE(finished_at, ''), input_rows, group_count, total_count,
	total_cost, parse_warnings, partner_fallbacks, product_fallbacks, backend, status, sheet_row, error`

// GetRun retrieves a single run by id.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run               Run
		started, finished string
		cost, status      string
	)
	err := s.Scan(&run.ID, &run.Source, &started, &finished, &run.InputRows, &run.Groups, &run.TotalCount,
		&cost, &run.ParseWarnings, &run.PartnerFallbacks, &run.ProductFallbacks, &run.Backend, &status,
		&run.SheetRow, &run.Error)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("started_at: %w", err)
	}
	if finished != "" {
		if run.FinishedAt, err = parseTime(finished); err != nil {
			return Run{}, fmt.Errorf("finished_at: %w", err)
		}
	}
	if run.TotalCost, err = decimal.NewFromString(cost); err != nil {
		return Run{}, fmt.Errorf("total_cost: %w", err)
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}
