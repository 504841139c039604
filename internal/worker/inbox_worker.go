// Package worker turns raw payloads delivered over AMQP into decrypted
// results: payloads are stored in the inbox first, decrypted once a session
// key is available, and exported where configured.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cifra/internal/amqp"
	"cifra/internal/core"
	"cifra/internal/log"
	"cifra/internal/metrics"
	"cifra/internal/session"
	"cifra/internal/sheets"
	"cifra/internal/storage"
)

type Config struct {
	Inbox  *storage.Inbox
	Engine *session.Engine
	// Exporter receives decrypted transactions; nil disables export.
	Exporter  sheets.TransactionExporter
	BatchSize int
	// Retention is how long processed payloads are kept; zero keeps them.
	Retention time.Duration
	Metrics   metrics.Recorder
	Logger    *log.Logger
}

// InboxWorker processes raw payloads.
type InboxWorker struct {
	inbox     *storage.Inbox
	engine    *session.Engine
	exporter  sheets.TransactionExporter
	batchSize int
	retention time.Duration
	metrics   metrics.Recorder
	logger    *log.Logger
	wake      chan struct{}
	now       func() time.Time
}

func NewInboxWorker(cfg Config) *InboxWorker {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	w := &InboxWorker{
		inbox:     cfg.Inbox,
		engine:    cfg.Engine,
		exporter:  cfg.Exporter,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
		metrics:   metrics.OrNoop(cfg.Metrics),
		logger:    cfg.Logger.WithComponent(log.ComponentWorker),
		wake:      make(chan struct{}, 1),
		now:       time.Now,
	}
	// a new key may unlock pending payloads
	cfg.Engine.Session().OnRotate(w.Wake)
	return w
}

// Wake schedules a drain without waiting for the next tick.
func (w *InboxWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// HandleMessage stores msg in the inbox and processes it right away when a
// key is available. Only a storage failure is returned, so that the
// message is redelivered; every later failure is kept in the inbox.
func (w *InboxWorker) HandleMessage(ctx context.Context, msg *amqp.RawPayloadMessage) error {
	p := storage.Payload{
		ID:         msg.ID.String(),
		Kind:       msg.Kind,
		Year:       msg.Year,
		Month:      msg.Month,
		Currency:   msg.Currency,
		Body:       msg.Payload,
		ReceivedAt: msg.Timestamp,
	}
	if _, err := w.inbox.Save(ctx, p); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}

	stored, err := w.inbox.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("reload payload: %w", err)
	}
	if !stored.Pending() {
		w.logger.DebugContext(ctx, "Payload already handled", log.FieldPayloadID, p.ID)
		return nil
	}
	_ = w.process(ctx, *stored)
	return nil
}

// Drain processes pending payloads, oldest first, until none is left or a
// payload cannot be processed for lack of a key.
func (w *InboxWorker) Drain(ctx context.Context) (int, error) {
	if !w.engine.Session().Ready() {
		return 0, nil
	}
	pending, err := w.inbox.ListPending(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending payloads: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Draining inbox", log.FieldCount, len(pending))

	processed := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		err := w.process(ctx, p)
		if errors.Is(err, core.ErrKeyUnavailable) {
			break
		}
		if err == nil {
			processed++
		}
	}

	if w.retention > 0 {
		if _, err := w.inbox.PurgeProcessed(ctx, w.now().Add(-w.retention)); err != nil {
			w.logger.WarnContext(ctx, "Failed to purge processed payloads", log.FieldError, err)
		}
	}
	return processed, nil
}

// Run drains the inbox at startup, on every tick and after every key
// rotation, until ctx is done.
func (w *InboxWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Wake()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Inbox drain failed", log.FieldError, err)
		}
	}
}

// process decrypts one payload and records the outcome in the inbox. A
// missing key, a superseded run or cancellation leave it pending.
func (w *InboxWorker) process(ctx context.Context, p storage.Payload) error {
	kind, err := session.ParseKind(p.Kind)
	if err != nil {
		w.fail(ctx, p, err)
		return err
	}
	key := session.RequestKey{Kind: kind, Slot: session.Slot{Year: p.Year, Month: p.Month, Currency: p.Currency}}

	out, err := w.engine.Decrypt(ctx, key, p.Body)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrKeyUnavailable),
		errors.Is(err, session.ErrSuperseded),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		w.logger.DebugContext(ctx, "Payload left pending",
			log.FieldPayloadID, p.ID,
			log.FieldErrorKind, kindOf(err))
		w.metrics.PayloadHandled(kindLabel(p.Kind), "pending")
		return err
	default:
		w.fail(ctx, p, err)
		return err
	}

	if err := w.deliver(ctx, p, out); err != nil {
		w.fail(ctx, p, err)
		return err
	}
	if err := w.inbox.MarkProcessed(ctx, p.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark payload as processed",
			log.FieldPayloadID, p.ID,
			log.FieldError, err)
		return err
	}
	w.metrics.PayloadHandled(kindLabel(p.Kind), "processed")
	return nil
}

func (w *InboxWorker) deliver(ctx context.Context, p storage.Payload, out *session.Output) error {
	attrs := []any{
		log.FieldPayloadID, p.ID,
		log.FieldKind, p.Kind,
		log.FieldYear, p.Year,
		log.FieldMonth, p.Month,
		log.FieldCurrency, p.Currency,
		"failures", len(out.Failures()),
	}

	switch {
	case out.Transactions != nil:
		txs := out.Transactions.Transactions
		attrs = append(attrs, log.FieldCount, len(txs))
		if w.exporter != nil && len(txs) > 0 {
			ref, err := w.exporter.ExportTransactions(ctx, p.Year, p.Month, txs)
			if err != nil {
				return fmt.Errorf("export transactions: %w", err)
			}
			attrs = append(attrs, "ref", ref)
		}
	case out.Snapshot != nil:
		attrs = append(attrs, "annual_months", len(out.Snapshot.Snapshot.Annual.MonthlySeries))
	case out.Accounting != nil:
		attrs = append(attrs, log.FieldCount, len(out.Accounting.Summary.JournalEntries))
	}

	w.logger.InfoContext(ctx, "Payload decrypted", attrs...)
	return nil
}

func (w *InboxWorker) fail(ctx context.Context, p storage.Payload, err error) {
	w.metrics.PayloadHandled(kindLabel(p.Kind), "failed")
	if markErr := w.inbox.MarkFailed(ctx, p.ID, kindOf(err)); markErr != nil {
		w.logger.ErrorContext(ctx, "Failed to record payload failure",
			log.FieldPayloadID, p.ID,
			log.FieldError, markErr)
	}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return "superseded"
	case errors.Is(err, session.ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, session.ErrMalformedInput):
		return "malformed_input"
	default:
		return core.ErrorKind(err)
	}
}

func kindLabel(kind string) string {
	if k, err := session.ParseKind(kind); err == nil {
		return string(k)
	}
	return "unknown"
}
