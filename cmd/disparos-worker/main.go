// Command disparos-worker consumes queued run summaries and appends them to the
// configured store. Run a single instance per store: appends are planned when
// a message is handled, so concurrent workers would race for the same rows.
package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"disparos/internal/amqp"
	"disparos/internal/cli"
	"disparos/internal/core"
	"disparos/internal/log"
	"disparos/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), nil)
	logger.Info("Starting disparos-worker", log.FieldOperation, log.OpStartup)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		err := errors.New("AMQP_URL is required for the worker")
		logger.Error("Configuration validation failed",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		return err
	}
	if err := cfg.RequirePersistentStore(); err != nil {
		logger.Error("Configuration validation failed",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		return err
	}

	consumed := make(chan struct{})
	ctx, shutdownDone := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() {
		// let the in-flight message finish before the store is closed
		<-consumed
	})

	res, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	var ledger worker.RunLedger
	if res.Ledger != nil {
		ledger = res.Ledger
	}
	appendWorker := worker.NewAppendWorker(res.Store, ledger, cfg.Header())

	// A wrong header would fail every message; refuse to start instead.
	if err := appendWorker.StartupCheck(ctx); err != nil {
		errType := log.ErrorTypeStore
		if errors.Is(err, core.ErrSchemaMismatch) {
			errType = log.ErrorTypeSchema
		}
		logger.Error("Store startup check failed",
			log.NewFields().WithOperation(log.OpStartup).WithError(err, errType).ToSlice()...)
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer client.Close()

	logger.Info("Worker ready",
		log.FieldBackend, cfg.StoreBackend,
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeAppendRequests(gctx, appendWorker.HandleAppendRequest)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Stopping consumer", log.FieldOperation, log.OpShutdown)
		return nil
	})

	err = g.Wait()
	close(consumed)
	if err != nil {
		logger.Error("Message consumption failed", log.FieldOperation, log.OpConsume, log.FieldError, err)
		return err
	}
	<-shutdownDone
	return nil
}
