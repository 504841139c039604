package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"cifra/internal/amqp"
	"cifra/internal/cli"
	"cifra/internal/log"
	"cifra/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := cli.LoadConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentApp)
	logger.Info("Starting cifra-worker", log.FieldOperation, log.OpStartup)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	rt, err := cli.NewRuntime(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize runtime", log.FieldError, err)
		os.Exit(1)
	}
	if loaded, err := rt.LoadKey(); err != nil {
		logger.Error("Failed to load key", log.FieldError, err)
		os.Exit(1)
	} else if !loaded {
		logger.Warn("No key configured, payloads will stay pending")
	}

	inbox, err := rt.OpenInbox()
	if err != nil {
		logger.Error("Failed to open inbox", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer inbox.Close()

	exporter, err := rt.NewExporter(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	if exporter == nil {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewInboxWorker(worker.Config{
		Inbox:     inbox,
		Engine:    rt.Engine,
		Exporter:  exporter,
		BatchSize: cfg.DrainBatchSize,
		Retention: cfg.InboxRetention,
		Metrics:   rt.Recorder(),
		Logger:    logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		rt.Session.Clear()
	})

	go rt.Janitor.Run(ctx, time.Minute)
	go w.Run(ctx, cfg.DrainInterval)

	if err := client.ConsumeRawPayloads(ctx, w.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped")
}
