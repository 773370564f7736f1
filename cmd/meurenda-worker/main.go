package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"meurenda/internal/amqp"
	"meurenda/internal/backend"
	"meurenda/internal/cli"
	"meurenda/internal/config"
	applog "meurenda/internal/log"
	"meurenda/internal/sheets"
	gsheet "meurenda/internal/sheets/google"
	"meurenda/internal/sheets/memory"
	"meurenda/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting meurenda-worker")

	if !cfg.SyncEnabled() {
		logger.Error("AMQP_URL is required to run the sync worker")
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	var mirror sheets.LedgerMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName,
			logger.WithComponent(applog.ComponentSheets).Slog())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory only")
		mirror = memory.New()
	}
	syncWorker := worker.NewSyncWorker(mirror, logger.Slog())

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Rebuild the mirror from the shared store so messages lost while the
	// worker was down do not leave it stale.
	if err := resync(ctx, cfg, syncWorker, logger); err != nil {
		logger.Error("Startup resync failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeTransactionSync(gctx, syncWorker.HandleSyncMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func resync(ctx context.Context, cfg *config.Config, w *worker.SyncWorker, logger *applog.Logger) error {
	if cfg.DataBackend == config.BackendMemory {
		logger.Info("Skipping startup resync, memory backend has no shared state")
		return nil
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The worker only reads the ledger.
	backendCfg.AMQPURL = ""

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer res.Close()

	snap, err := res.Persister.Load(ctx)
	if err != nil {
		return err
	}
	if err := w.Resync(ctx, snap.Transactions); err != nil {
		return err
	}
	logger.Info("Startup resync complete", applog.FieldCount, len(snap.Transactions))
	return nil
}
