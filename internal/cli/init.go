// Package cli provides the initialization shared by cmd/cifra,
// cmd/cifra-agent and cmd/cifra-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cifra/internal/accounting"
	"cifra/internal/aggregate"
	"cifra/internal/cache"
	"cifra/internal/calendar"
	"cifra/internal/config"
	"cifra/internal/envelope"
	"cifra/internal/keys"
	"cifra/internal/log"
	"cifra/internal/metrics"
	"cifra/internal/session"
	"cifra/internal/sheets"
	gsheet "cifra/internal/sheets/google"
	"cifra/internal/snapshot"
	"cifra/internal/storage"
	"cifra/internal/transactions"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and makes it the slog
// default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	slog.SetDefault(logger.Logger)
	return logger
}

// Runtime is the decryption stack of one process.
type Runtime struct {
	Config   *config.Config
	Logger   *log.Logger
	Metrics  *metrics.Prometheus
	Calendar *calendar.Context
	Keys     *keys.Manager
	Session  *session.Session
	Engine   *session.Engine
	Janitor  *cache.Janitor
}

// NewRuntime wires keys, codec, transformers and the session engine.
func NewRuntime(cfg *config.Config, logger *log.Logger) (*Runtime, error) {
	backend, err := keys.ParseBackend(cfg.CipherBackend)
	if err != nil {
		return nil, err
	}
	tag, err := calendar.ParseLocale(cfg.Locale)
	if err != nil {
		return nil, err
	}
	loc, err := calendar.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Calendar: calendar.New(calendar.WithLocation(loc), calendar.WithLocale(tag)),
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.MetricsEnabled {
		rt.Metrics = metrics.NewPrometheus()
		recorder = rt.Metrics
	}

	rt.Keys = keys.NewManager(keys.ManagerConfig{
		Backend:  backend,
		CacheTTL: cfg.KeyCacheTTL,
		Metrics:  recorder,
		Logger:   logger,
	})
	rt.Janitor = cache.NewJanitor(func(removed int) {
		if removed > 0 {
			logger.Debug("Expired key handles evicted", log.FieldCount, removed)
		}
	})
	rt.Janitor.Register(rt.Keys.Cache())

	resolver := aggregate.NewResolver(envelope.NewCodec(recorder, logger), cfg.FanoutLimit, logger)
	rt.Session = session.New(keys.NewKeyring(rt.Keys), logger)
	rt.Engine = session.NewEngine(rt.Session, session.Transformers{
		Snapshot: snapshot.NewTransformer(snapshot.Config{
			Resolver: resolver,
			Calendar: rt.Calendar,
			Limit:    cfg.FanoutLimit,
			Logger:   logger,
		}),
		Transactions: transactions.NewTransformer(resolver, transactions.Options{Limit: cfg.FanoutLimit}, logger),
		Accounting:   accounting.NewTransformer(resolver, cfg.FanoutLimit, logger),
	}, recorder, logger)
	return rt, nil
}

// Recorder returns the metrics recorder of the runtime.
func (rt *Runtime) Recorder() metrics.Recorder {
	if rt.Metrics == nil {
		return metrics.Noop{}
	}
	return rt.Metrics
}

// LoadKey sets the session key from KEY_HEX or KEY_FILE. It reports false
// when neither is configured.
func (rt *Runtime) LoadKey() (bool, error) {
	material, err := rt.Config.KeyMaterial()
	if err != nil {
		return false, err
	}
	if material == "" {
		return false, nil
	}
	if err := rt.Session.SetKey(material); err != nil {
		return false, err
	}
	return true, nil
}

// OpenInbox opens the raw payload inbox.
func (rt *Runtime) OpenInbox() (*storage.Inbox, error) {
	return storage.NewInbox(rt.Config.SQLiteDBPath, rt.Logger)
}

// NewExporter returns the Google Sheets exporter, or nil when export is
// not configured.
func (rt *Runtime) NewExporter(ctx context.Context) (sheets.TransactionExporter, error) {
	if !rt.Config.SheetsEnabled() {
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   rt.Config.GoogleSpreadsheetID,
		SheetName:       rt.Config.GoogleSheetName,
		CredentialsJSON: rt.Config.GoogleServiceAccountJSON,
		CredentialsFile: rt.Config.GoogleServiceAccountFile,
		Calendar:        rt.Calendar,
		Logger:          rt.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("google sheets exporter: %w", err)
	}
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			log.FieldOperation, log.OpShutdown,
			"signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
