package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"disparos/internal/config"
	"disparos/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{StoreBackend: "excel"}); err == nil {
		t.Fatal("expected error for invalid backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		StoreBackend:             "sheets",
		GoogleSpreadsheetID:      "id",
		GoogleSheetName:          "controle_disparos",
		GoogleServiceAccountJSON: "{}",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSheetName != "controle_disparos" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleSheetName: "s"}, "Spreadsheet ID is required"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "s"}, "GoogleServiceAccountJSON"},
		{"unknown", Config{Type: "excel"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type: MemoryBackend,
		Seed: [][]string{core.DefaultHeader},
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Ledger != nil {
		t.Error("ledger opened without a database path")
	}
	rows, err := res.Store.ReadAllRows(context.Background())
	if err != nil || len(rows) != 1 {
		t.Fatalf("seeded store: %v, %v", rows, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disparos.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Ledger == nil || res.Store == nil {
		t.Fatalf("incomplete backend %+v", res)
	}
	if err := res.Store.AppendRows(context.Background(), [][]string{core.DefaultHeader}, 1); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if runs, err := res.Ledger.ListRuns(context.Background(), 5); err != nil || len(runs) != 0 {
		t.Fatalf("ListRuns: %v, %v", runs, err)
	}
}

func TestCreateSheetsBackendWithoutCredentialsFile(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:                     SheetsBackend,
		GoogleSpreadsheetID:      "id",
		GoogleSheetName:          "s",
		GoogleServiceAccountFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "Google Sheets client") {
		t.Fatalf("CreateBackend error = %v", err)
	}
}

func TestBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "sqlite,sheets,memory" {
		t.Errorf("GetBackendTypeStrings() = %q", got)
	}
}
