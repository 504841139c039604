// Package accounting decrypts the monthly books: totals, account balances
// and the journal, for both the month in progress and closed months.
package accounting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cifra/internal/aggregate"
	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/fanout"
	"cifra/internal/log"
)

// Transformer decrypts accounting books.
type Transformer struct {
	resolver *aggregate.Resolver
	limit    int
	logger   *log.Logger
}

// NewTransformer creates a Transformer. limit bounds concurrent tasks per
// list; zero means unbounded.
func NewTransformer(resolver *aggregate.Resolver, limit int, logger *log.Logger) *Transformer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Transformer{
		resolver: resolver,
		limit:    limit,
		logger:   logger.WithComponent(log.ComponentAccounting),
	}
}

// Result is a decrypted book and the failures absorbed on the way.
type Result struct {
	Summary  *core.AccountingSummary
	Failures []core.FieldError
}

// TransformCurrentMonth decrypts the live book. Totals are recomputed from
// the decrypted journal and the accumulated cash is the sum of balances.
func (t *Transformer) TransformCurrentMonth(ctx context.Context, key envelope.Opener, raw *CurrentMonth) (*Result, error) {
	if raw == nil {
		return nil, core.ErrRawInputMissing
	}
	if envelope.Missing(key) {
		return nil, core.ErrKeyUnavailable
	}

	run := &run{t: t, key: key, diag: &aggregate.Diagnostics{}}
	var (
		entries  []core.JournalEntry
		balances []core.AccountBalance
	)
	errs := fanout.Join(ctx, 0,
		func(ctx context.Context) error {
			entries = run.entries(ctx, raw.Transactions)
			return nil
		},
		func(ctx context.Context) error {
			balances = settle(ctx, run, raw.Accounts, func(ctx context.Context, a CurrentAccount) core.AccountBalance {
				return core.AccountBalance{
					ID:              a.ID,
					AccountName:     a.Name,
					AccountType:     a.AccountType,
					Balance:         run.field(ctx, a.ID, "currentBalance", a.CurrentBalance),
					StartingBalance: run.optional(ctx, a.ID, "startingBalance", a.StartingBalance),
				}
			})
			return nil
		},
	)
	if err := t.join(ctx, errs); err != nil {
		return nil, err
	}

	sum := &core.AccountingSummary{
		TotalIncome:     decimal.Zero,
		TotalExpense:    decimal.Zero,
		AccumulatedCash: decimal.Zero,
		AccountBalances: balances,
		JournalEntries:  entries,
	}
	for _, e := range entries {
		switch e.Type {
		case core.Income:
			sum.TotalIncome = sum.TotalIncome.Add(e.Amount)
		case core.Expense:
			sum.TotalExpense = sum.TotalExpense.Add(e.Amount)
		}
	}
	sum.TotalSavings = sum.TotalIncome.Sub(sum.TotalExpense)
	sum.CashFlow = sum.TotalSavings
	for _, b := range balances {
		sum.AccumulatedCash = sum.AccumulatedCash.Add(b.Balance)
	}

	return t.finish(ctx, "current", sum, run.diag), nil
}

// TransformHistorical decrypts a closed month. Totals are taken as stored.
func (t *Transformer) TransformHistorical(ctx context.Context, key envelope.Opener, raw *Historical) (*Result, error) {
	if raw == nil {
		return nil, core.ErrRawInputMissing
	}
	if envelope.Missing(key) {
		return nil, core.ErrKeyUnavailable
	}

	run := &run{t: t, key: key, diag: &aggregate.Diagnostics{}}
	sum := &core.AccountingSummary{}
	errs := fanout.Join(ctx, 0,
		func(ctx context.Context) error {
			sum.TotalIncome = run.field(ctx, raw.ID, "total_income", raw.TotalIncome)
			return nil
		},
		func(ctx context.Context) error {
			sum.TotalExpense = run.field(ctx, raw.ID, "total_expense", raw.TotalExpense)
			return nil
		},
		func(ctx context.Context) error {
			sum.TotalSavings = run.field(ctx, raw.ID, "total_savings", raw.TotalSavings)
			return nil
		},
		func(ctx context.Context) error {
			sum.CashFlow = run.field(ctx, raw.ID, "cash_flow", raw.CashFlow)
			return nil
		},
		func(ctx context.Context) error {
			sum.AccumulatedCash = run.field(ctx, raw.ID, "accumulated_cash", raw.AccumulatedCash)
			return nil
		},
		func(ctx context.Context) error {
			sum.AccountBalances = settle(ctx, run, raw.AccountBalanceSnapshots, func(ctx context.Context, s BalanceSnapshot) core.AccountBalance {
				return core.AccountBalance{
					ID:              s.ID,
					AccountName:     s.Account.Name,
					AccountType:     s.Account.AccountType,
					Balance:         run.field(ctx, s.ID, "balance", s.Balance),
					StartingBalance: run.optional(ctx, s.ID, "startingBalance", s.StartingBalance),
				}
			})
			return nil
		},
		func(ctx context.Context) error {
			sum.JournalEntries = run.entries(ctx, raw.JournalEntries)
			return nil
		},
	)
	if err := t.join(ctx, errs); err != nil {
		return nil, err
	}
	return t.finish(ctx, "historical", sum, run.diag), nil
}

func (t *Transformer) finish(ctx context.Context, book string, sum *core.AccountingSummary, diag *aggregate.Diagnostics) *Result {
	failures := diag.Errors()
	if len(failures) > 0 {
		t.logger.DebugContext(ctx, "Accounting book decrypted with failures",
			log.FieldKind, book,
			log.FieldCount, len(failures))
	}
	return &Result{Summary: sum, Failures: failures}
}

func (t *Transformer) join(ctx context.Context, errs []error) error {
	fanout.Barrier(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("transform accounting: %w", err)
		}
	}
	return nil
}

type run struct {
	t    *Transformer
	key  envelope.Opener
	diag *aggregate.Diagnostics
}

func (r *run) field(ctx context.Context, id, name, value string) decimal.Decimal {
	res := r.t.resolver.ResolveDetailed(ctx, r.key, value)
	for _, err := range res.Failed {
		r.diag.Add(id, name, err)
	}
	return res.Value
}

func (r *run) optional(ctx context.Context, id, name string, value *string) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return r.field(ctx, id, name, *value)
}

func (r *run) entries(ctx context.Context, raw []Entry) []core.JournalEntry {
	return settle(ctx, r, raw, func(ctx context.Context, e Entry) core.JournalEntry {
		out := core.JournalEntry{
			ID:          e.ID,
			Type:        e.Type,
			AccountFrom: e.AccountFrom,
			AccountTo:   e.AccountTo,
			Amount:      r.field(ctx, e.ID, "amount", e.Amount),
			Category:    e.Category,
		}
		if e.Description != "" {
			plain, err := r.t.resolver.Text(ctx, r.key, e.Description)
			if err != nil {
				r.diag.Add(e.ID, "description", fmt.Errorf("%w: %w", core.ErrLegacyPlaintextFallback, err))
				plain = e.Description
			}
			out.Description = plain
		}
		createdAt, err := core.ParseTimestamp(e.CreatedAt)
		if err != nil {
			r.diag.Add(e.ID, "created_at", fmt.Errorf("%w: %v", core.ErrInvalidRecord, err))
		}
		out.CreatedAt = createdAt
		return out
	})
}

func settle[T, R any](ctx context.Context, r *run, items []T, fn func(context.Context, T) R) []R {
	outs := fanout.Settle(ctx, r.t.limit, items, func(ctx context.Context, item T) (R, error) {
		return fn(ctx, item), nil
	})
	vals := make([]R, len(outs))
	for i, o := range outs {
		vals[i] = o.Value
		r.diag.Add("", "task", o.Err)
	}
	return vals
}
