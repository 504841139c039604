package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"cifra/internal/cli"
	apphttp "cifra/internal/http"
	"cifra/internal/log"
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

	rt, err := cli.NewRuntime(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize runtime", log.FieldError, err)
		os.Exit(1)
	}
	if loaded, err := rt.LoadKey(); err != nil {
		logger.Error("Failed to load key", log.FieldError, err)
		os.Exit(1)
	} else if !loaded {
		logger.Info("No key configured, waiting for PUT /v1/session/key")
	}

	opts := apphttp.Options{
		Addr:      ":" + cfg.Port,
		Engine:    rt.Engine,
		Metrics:   rt.Recorder(),
		RateLimit: cfg.RateLimitPerMinute,
		Calendar:  rt.Calendar,
		Logger:    logger,
	}
	if rt.Metrics != nil {
		opts.MetricsHandler = rt.Metrics.Handler()
	}
	srv := apphttp.NewServer(opts)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		rt.Session.Clear()
	})

	go rt.Janitor.Run(ctx, time.Minute)

	logger.Info("Starting cifra agent",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.CipherBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
