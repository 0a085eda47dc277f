package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"disparos/internal/core"
)

const (
	BackendMemory = "memory"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"

	AppendDirect = "direct"
	AppendQueue  = "queue"
)

// ErrEphemeralStore is returned when appends target a store that does not
// outlive the process.
var ErrEphemeralStore = errors.New("memory store does not persist between runs; set STORE_BACKEND to sqlite or sheets")

type Config struct {
	// Target store
	StoreBackend string
	SQLiteDBPath string

	// SummaryHeader labels the store columns. The column order is fixed; only
	// the labels are configurable.
	SummaryHeader []string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	AppendMode   string

	// Pipeline
	UnitRate      string
	Channel       string
	FallbackLabel string
	RulesFile     string

	ClassifyCacheSize int
	ClassifyCacheTTL  time.Duration

	// Worker
	ShutdownTimeout time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		StoreBackend:  getEnv("STORE_BACKEND", BackendMemory),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/disparos.db"),
		SummaryHeader: getEnvList("SUMMARY_HEADER", core.DefaultHeader),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "controle_disparos"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "disparos"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "append_summaries"),
		AppendMode:   getEnv("APPEND_MODE", AppendDirect),

		UnitRate:      getEnv("UNIT_RATE", "0.105"),
		Channel:       getEnv("CHANNEL", "RCS"),
		FallbackLabel: getEnv("FALLBACK_LABEL", "OUTRO"),
		RulesFile:     getEnv("RULES_FILE", ""),

		ClassifyCacheSize: getEnvInt("CLASSIFY_CACHE_SIZE", 4096),
		ClassifyCacheTTL:  getEnvDuration("CLASSIFY_CACHE_TTL", 0),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Rate parses the configured unit rate.
func (c *Config) Rate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(c.UnitRate, ",", ".")))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse unit rate %q: %w", c.UnitRate, err)
	}
	return d, nil
}

// Header returns the store header, falling back to the default labels.
func (c *Config) Header() []string {
	if len(c.SummaryHeader) == 0 {
		return core.DefaultHeader
	}
	return c.SummaryHeader
}

// RequirePersistentStore rejects appends to the memory backend, whose rows
// would be lost when the process exits.
func (c *Config) RequirePersistentStore() error {
	if c.StoreBackend == BackendMemory {
		return ErrEphemeralStore
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{BackendMemory, BackendSheets, BackendSQLite}
	if !contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	if c.StoreBackend == BackendSQLite || c.SQLiteDBPath != "" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.StoreBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(c.SummaryHeader) > 0 {
		if len(c.SummaryHeader) != len(core.DefaultHeader) {
			errors = append(errors, fmt.Sprintf("invalid summary header: got %d columns, want %d", len(c.SummaryHeader), len(core.DefaultHeader)))
		} else if contains(c.SummaryHeader, "") {
			errors = append(errors, "invalid summary header: column labels cannot be empty")
		}
	}

	validModes := []string{AppendDirect, AppendQueue}
	if !contains(validModes, c.AppendMode) {
		errors = append(errors, fmt.Sprintf("invalid append mode '%s': must be one of %v", c.AppendMode, validModes))
	}
	if c.AppendMode == AppendQueue && c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required when append mode is queue")
	}
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if rate, err := c.Rate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid unit rate '%s': must be a decimal number", c.UnitRate))
	} else if rate.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid unit rate %s: must not be negative", rate))
	}
	if strings.TrimSpace(c.Channel) == "" {
		errors = append(errors, "channel cannot be empty")
	}
	if strings.TrimSpace(c.FallbackLabel) == "" {
		errors = append(errors, "fallback label cannot be empty")
	}
	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			errors = append(errors, fmt.Sprintf("rules file is not readable: %s", c.RulesFile))
		}
	}

	if c.ClassifyCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid classify cache size %d: must not be negative", c.ClassifyCacheSize))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated value into trimmed items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
