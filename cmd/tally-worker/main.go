package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/export"
	"tally/internal/logging"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load(os.Getenv)
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		slog.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appender export.Appender
	if cfg.GoogleSpreadsheetID != "" {
		appender, err = export.NewSheetsAppender(ctx,
			cfg.GoogleSpreadsheetID, cfg.GoogleSheetName,
			cfg.GoogleCredentialsJSON, cfg.GoogleCredentialsFile)
		if err != nil {
			slog.Error("Failed to initialize Sheets appender", "error", err)
			os.Exit(1)
		}
		slog.Info("Sheets backup log connected", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		appender = export.NewMemoryAppender()
		slog.Warn("No GOOGLE_SPREADSHEET_ID provided, exporting to memory only")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewExportWorker(repo, appender, cfg.ExportBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Consume(gctx, func(msg *amqp.ExportMessage) error {
			return w.HandleMessage(gctx, msg)
		})
	})
	g.Go(func() error {
		return w.RunReconciler(gctx, cfg.ReconcileInterval)
	})

	slog.Info("Export worker started",
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.ExportBatchSize,
		"reconcile_interval", cfg.ReconcileInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Worker stopped gracefully")
}
