package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=app") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DISPAROS_TEST_CHANNEL=SMS\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DISPAROS_TEST_CHANNEL", "")
	os.Unsetenv("DISPAROS_TEST_CHANNEL")

	LoadEnvFile(path)
	if got := os.Getenv("DISPAROS_TEST_CHANNEL"); got != "SMS" {
		t.Errorf("DISPAROS_TEST_CHANNEL = %q, want SMS", got)
	}

	// missing files are ignored
	LoadEnvFile(filepath.Join(t.TempDir(), "none.env"))
}

func TestLoadAndValidateConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", &buf)
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "disparos.db"))

	t.Run("valid", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "memory")
		cfg, err := LoadAndValidateConfig(logger)
		if err != nil {
			t.Fatalf("LoadAndValidateConfig: %v", err)
		}
		if cfg.StoreBackend != "memory" {
			t.Errorf("backend = %q", cfg.StoreBackend)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		if _, err := LoadAndValidateConfig(logger); err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(buf.String(), "error_type=configuration_error") {
			t.Errorf("validation failure not logged: %q", buf.String())
		}
	})
}

func TestInitBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", &buf)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "disparos.db"))

	cfg, err := LoadAndValidateConfig(logger)
	if err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}
	res, err := InitBackend(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("InitBackend: %v", err)
	}
	defer res.Close()

	if res.Store == nil || res.Ledger == nil {
		t.Fatalf("backend = %+v, want store and ledger", res)
	}
	rows, err := res.Store.ReadAllRows(context.Background())
	if err != nil || len(rows) != 0 {
		t.Errorf("fresh store rows = %v, %v", rows, err)
	}
}
