// Package transactions decrypts income and expense listings into display
// rows. Every record is transformed independently; a record that cannot be
// placed is dropped and reported without affecting the others.
package transactions

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cifra/internal/aggregate"
	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/fanout"
	"cifra/internal/log"
)

// Options holds display defaults.
type Options struct {
	IncomeTitle  string
	ExpenseTitle string
	// Limit bounds concurrent record transforms; zero means unbounded.
	Limit int
}

// DefaultOptions returns the English display defaults.
func DefaultOptions() Options {
	return Options{IncomeTitle: "Income", ExpenseTitle: "Expense"}
}

// Report lists what was absorbed while transforming a batch.
type Report struct {
	// Failures are field-level problems of records that were kept.
	Failures []core.FieldError `json:"failures"`
	// Dropped are records removed from the output.
	Dropped []core.FieldError `json:"dropped"`
}

// Result is a decrypted batch.
type Result struct {
	Transactions []core.Transaction
	Report       Report
}

// Transformer decrypts transaction batches.
type Transformer struct {
	resolver *aggregate.Resolver
	opts     Options
	logger   *log.Logger
}

// NewTransformer creates a Transformer. Empty titles fall back to
// DefaultOptions.
func NewTransformer(resolver *aggregate.Resolver, opts Options, logger *log.Logger) *Transformer {
	defaults := DefaultOptions()
	if opts.IncomeTitle == "" {
		opts.IncomeTitle = defaults.IncomeTitle
	}
	if opts.ExpenseTitle == "" {
		opts.ExpenseTitle = defaults.ExpenseTitle
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Transformer{
		resolver: resolver,
		opts:     opts,
		logger:   logger.WithComponent(log.ComponentTransactions),
	}
}

type job struct {
	rec  Record
	kind core.TransactionType
}

// Transform decrypts every record of raw and returns them newest first.
// It fails only on missing input or key, or when ctx is done.
func (t *Transformer) Transform(ctx context.Context, key envelope.Opener, raw *Batch) (*Result, error) {
	if raw == nil {
		return nil, core.ErrRawInputMissing
	}
	if envelope.Missing(key) {
		return nil, core.ErrKeyUnavailable
	}

	jobs := make([]job, 0, raw.Len())
	for _, r := range raw.Incomes {
		jobs = append(jobs, job{rec: r, kind: core.Income})
	}
	for _, r := range raw.Expenses {
		jobs = append(jobs, job{rec: r, kind: core.Expense})
	}

	diag := &aggregate.Diagnostics{}
	outs := fanout.Settle(ctx, t.opts.Limit, jobs, func(ctx context.Context, j job) (core.Transaction, error) {
		return t.record(ctx, key, diag, j)
	})
	fanout.Barrier(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Transactions: fanout.Values(outs),
		Report:       Report{Failures: diag.Errors()},
	}
	for i, err := range fanout.Failures(outs) {
		res.Report.Dropped = append(res.Report.Dropped, core.FieldError{RecordID: jobs[i].rec.ID, Field: "record", Err: err})
		t.logger.WarnContext(ctx, "Dropping transaction",
			log.FieldRecordID, jobs[i].rec.ID,
			log.FieldErrorKind, core.ErrorKind(err))
	}
	sort.Slice(res.Report.Dropped, func(i, j int) bool {
		return res.Report.Dropped[i].RecordID < res.Report.Dropped[j].RecordID
	})

	sort.SliceStable(res.Transactions, func(i, j int) bool {
		a, b := res.Transactions[i], res.Transactions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return res, nil
}

func (t *Transformer) record(ctx context.Context, key envelope.Opener, diag *aggregate.Diagnostics, j job) (core.Transaction, error) {
	rec := j.rec
	if rec.ID == "" {
		return core.Transaction{}, fmt.Errorf("%w: missing id", core.ErrInvalidRecord)
	}

	kind := rec.Type
	if kind == "" {
		kind = j.kind
	}

	var account *Account
	switch kind {
	case core.Income:
		account = rec.ToAccount
	case core.Expense:
		account = rec.FromAccount
	default:
		return core.Transaction{}, fmt.Errorf("%w: type %q", core.ErrInvalidRecord, kind)
	}
	if account == nil {
		return core.Transaction{}, fmt.Errorf("%w: %s without account", core.ErrInvalidRecord, kind)
	}

	createdAt, err := core.ParseTimestamp(rec.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: created_at: %v", core.ErrInvalidRecord, err)
	}

	amount, err := t.resolver.ResolveSingle(ctx, key, rec.Amount)
	if err != nil {
		diag.Add(rec.ID, "amount", err)
		amount = decimal.Zero
	}
	description := t.text(ctx, key, diag, rec.ID, "description", rec.Description)
	message := t.text(ctx, key, diag, rec.ID, "message", rec.Message)

	title := description
	if title == "" {
		if kind == core.Income {
			title = t.opts.IncomeTitle
		} else {
			title = t.opts.ExpenseTitle
		}
	}

	tags := []core.Tag{}
	if kind == core.Expense && rec.Tags != nil {
		tags = rec.Tags
	}

	return core.Transaction{
		ID:           rec.ID,
		Title:        title,
		Type:         kind,
		Amount:       amount,
		Description:  description,
		Message:      message,
		Category:     rec.Category.Name,
		CategoryID:   rec.Category.ID,
		Account:      account.Name,
		CurrencyCode: rec.CurrencyCode,
		Tags:         tags,
		CreatedAt:    createdAt,
	}, nil
}

// text decrypts an optional text field. A value that does not decrypt is
// taken as legacy plaintext and kept verbatim.
func (t *Transformer) text(ctx context.Context, key envelope.Opener, diag *aggregate.Diagnostics, id, field, value string) string {
	if value == "" {
		return ""
	}
	plain, err := t.resolver.Text(ctx, key, value)
	if err != nil {
		diag.Add(id, field, fmt.Errorf("%w: %w", core.ErrLegacyPlaintextFallback, err))
		t.logger.DebugContext(ctx, "Using stored value as plaintext",
			log.FieldRecordID, id,
			log.FieldField, field,
			log.FieldErrorKind, core.ErrorKind(err))
		return value
	}
	return plain
}
