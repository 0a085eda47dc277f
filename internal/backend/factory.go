package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "disparos/internal/sheets/google"
	"disparos/internal/sheets/memory"
	"disparos/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var ledger *storage.SQLiteRepository
	if cfg.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		ledger = repo
	}
	cleanup := func() error {
		if ledger != nil {
			return ledger.Close()
		}
		return nil
	}

	result := &BackendResult{Ledger: ledger, Cleanup: cleanup}
	switch cfg.Type {
	case SQLiteBackend:
		result.Store = ledger.Rows()
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)

	case SheetsBackend:
		client, err := gsheet.NewFromOptions(ctx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		result.Store = client
		f.logger.Info("Initialized Google Sheets backend", "sheet", cfg.GoogleSheetName)

	case MemoryBackend:
		result.Store = memory.New(cfg.Seed...)
		f.logger.Info("Initialized memory backend", "seed_rows", len(cfg.Seed))
	}

	f.logger.Info("Run ledger", "enabled", ledger != nil, "db_path", cfg.SQLiteDBPath)
	return result, nil
}
