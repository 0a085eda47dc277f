package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"disparos/internal/amqp"
	"disparos/internal/backend"
	"disparos/internal/cache"
	"disparos/internal/cli"
	"disparos/internal/config"
	"disparos/internal/log"
	"disparos/internal/services"
	"disparos/internal/storage"
)

var version = "dev"

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "disparos",
	Short: "Summarize RCS dispatch exports",
	Long: `disparos reads a dispatch export, classifies every campaign by agreement and
product, groups the dispatches into time slots and appends one summary row per
group to the control sheet.

Examples:
  disparos run export.csv
  disparos run --out resumo.csv --append export.xlsx
  disparos append --check
  disparos runs --limit 5`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this file (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

// app holds what a subcommand needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
	amqp    *amqp.Client
	memo    *cache.LRUCache[string]
	mode    string
}

// loadConfig loads the environment, sets up logging and validates the config.
// Logs go to stderr so stdout stays free for the summary.
func loadConfig() (*config.Config, *log.Logger, error) {
	if envFile != "" {
		cli.LoadEnvFile(envFile)
	} else {
		cli.LoadEnvFile()
	}
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logger := cli.SetupLogger(level, os.Stderr)
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// storeAccess says how much of the backend a subcommand needs.
type storeAccess int

const (
	ledgerOnly storeAccess = iota
	storeRead
	storeWrite
)

// newApp opens the run ledger. storeRead and storeWrite also open the summary
// store and, in queue mode, the AMQP client.
func newApp(ctx context.Context, access storeAccess) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, mode: cfg.AppendMode}
	if appendMode != "" {
		a.mode = appendMode
	}
	if cfg.ClassifyCacheSize > 0 {
		a.memo = cache.NewLRUCache[string](cfg.ClassifyCacheSize, cfg.ClassifyCacheTTL)
	}
	if access == storeWrite && a.mode == config.AppendDirect {
		if err := cfg.RequirePersistentStore(); err != nil {
			logger.Error("Refusing to append", log.FieldBackend, cfg.StoreBackend, log.FieldError, err)
			return nil, err
		}
	}
	if access == ledgerOnly {
		if cfg.SQLiteDBPath != "" {
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return nil, fmt.Errorf("open run ledger: %w", err)
			}
			a.backend = &backend.BackendResult{Ledger: repo, Cleanup: repo.Close}
		}
		return a, nil
	}

	res, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	a.backend = res

	if a.mode == config.AppendQueue {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		a.amqp = client
	}
	return a, nil
}

// service wires the dispatch service to whatever newApp opened.
func (a *app) service() (*services.DispatchService, error) {
	pipeline, err := a.cfg.Pipeline(nil)
	if err != nil {
		return nil, err
	}
	opts := services.Options{
		Memo:    a.memo,
		Header:  a.cfg.Header(),
		Backend: a.cfg.StoreBackend,
		Logger:  a.logger,
	}
	if a.backend != nil {
		opts.Store = a.backend.Store
		if a.backend.Ledger != nil {
			opts.Ledger = a.backend.Ledger
		}
	}
	if a.amqp != nil {
		opts.Publisher = a.amqp
	}
	return services.NewDispatchService(pipeline, opts), nil
}

func (a *app) close() {
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("Failed to close backend", log.FieldError, err)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "disparos version %s\n", version)
	},
}
