// Package snapshot decrypts analytics snapshots: the monthly figures of the
// selected month and the annual series they are compared against.
package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cifra/internal/aggregate"
	"cifra/internal/calendar"
	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/fanout"
	"cifra/internal/log"
)

// Config configures a Transformer.
type Config struct {
	Resolver *aggregate.Resolver
	Calendar *calendar.Context
	// Limit bounds concurrent tasks per list; zero means unbounded.
	Limit  int
	Logger *log.Logger
}

// Transformer turns raw snapshots into plaintext ones.
type Transformer struct {
	resolver *aggregate.Resolver
	cal      *calendar.Context
	limit    int
	logger   *log.Logger
}

// NewTransformer creates a Transformer.
func NewTransformer(cfg Config) *Transformer {
	if cfg.Calendar == nil {
		cfg.Calendar = calendar.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Transformer{
		resolver: cfg.Resolver,
		cal:      cfg.Calendar,
		limit:    cfg.Limit,
		logger:   cfg.Logger.WithComponent(log.ComponentSnapshot),
	}
}

// Result is a decrypted snapshot together with the per-value failures that
// were absorbed while producing it.
type Result struct {
	Snapshot *core.Snapshot
	Failures []core.FieldError
}

type monthOverride struct {
	Month   int
	Income  decimal.Decimal
	Expense decimal.Decimal
	Savings decimal.Decimal
}

type categoryOverride struct {
	Month  int
	Amount decimal.Decimal
}

// Transform decrypts raw with key. It fails only when raw or key is
// missing, when ctx is done, or when a task panics; every per-value failure
// resolves to zero and is listed in Result.Failures.
func (t *Transformer) Transform(ctx context.Context, key envelope.Opener, raw *Data) (*Result, error) {
	if raw == nil {
		return nil, core.ErrRawInputMissing
	}
	if envelope.Missing(key) {
		return nil, core.ErrKeyUnavailable
	}

	run := &resolveRun{t: t, key: key, diag: &aggregate.Diagnostics{}}
	year := raw.YearData

	var (
		monthly     core.MonthlySnapshot
		series      core.Series[core.MonthSummary]
		cashFlow    core.Series[core.CashFlowEntry]
		points      []core.CategoryBudgetPoint
		override    *monthOverride
		catOverride *categoryOverride
	)
	errs := fanout.Join(ctx, 0,
		func(ctx context.Context) error {
			monthly = run.monthly(ctx, raw.MonthData)
			return nil
		},
		func(ctx context.Context) error {
			series = run.annualSeries(ctx, year.AnnualSummary)
			return nil
		},
		func(ctx context.Context) error {
			cashFlow = run.cashFlowSeries(ctx, year.CashFlow)
			return nil
		},
		func(ctx context.Context) error {
			points = run.categoryPoints(ctx, year.CategoryBudgetAnalysis.MonthlyData)
			return nil
		},
		func(ctx context.Context) error {
			override = run.currentMonth(ctx, year.CurrentMonthData)
			return nil
		},
		func(ctx context.Context) error {
			catOverride = run.categoryCurrentMonth(ctx, year.CategoryBudgetAnalysis.CurrentMonthDataForCategory)
			return nil
		},
	)
	fanout.Barrier(ctx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("transform snapshot: %w", err)
		}
	}

	applyVariations(&monthly, series)
	applyIncomePercentages(&monthly)
	if override != nil {
		spliceCurrentMonth(series, cashFlow, *override)
	}

	snap := &core.Snapshot{
		Currency:          raw.Currency,
		Locale:            raw.Locale,
		Language:          raw.Language,
		ExpenseCategories: raw.ExpenseCategories,
		IncomeCategories:  raw.IncomeCategories,
		Monthly:           monthly,
		Annual: core.AnnualSnapshot{
			Year:           year.Year,
			MonthlySeries:  series,
			CashFlowSeries: cashFlow,
			CategoryBudgetAnalysis: categoryAnalysis(
				year.CategoryBudgetAnalysis.ExpenseCategoryID,
				points, catOverride, t.monthsElapsed(year.Year)),
		},
	}
	if snap.Locale == "" {
		snap.Locale = t.cal.Locale().String()
	}

	failures := run.diag.Errors()
	if len(failures) > 0 {
		t.logger.WarnContext(ctx, "Snapshot decrypted with absorbed failures",
			log.FieldYear, year.Year,
			log.FieldMonth, raw.MonthData.Month,
			log.FieldCurrency, raw.Currency,
			log.FieldCount, len(failures))
	}
	return &Result{Snapshot: snap, Failures: failures}, nil
}

// monthsElapsed is the divisor of the category monthly average: the months
// elapsed in year as seen from the calendar context, at least 1.
func (t *Transformer) monthsElapsed(year int) int {
	current, _ := t.cal.CurrentPeriod()
	switch {
	case year == 0 || year == current:
		return max(1, t.cal.MonthsSinceYearStart())
	case year < current:
		return core.MonthsPerYear
	default:
		return 1
	}
}

// resolveRun holds the state shared by the tasks of one transform.
type resolveRun struct {
	t    *Transformer
	key  envelope.Opener
	diag *aggregate.Diagnostics
}

func (r *resolveRun) field(ctx context.Context, name, value string) decimal.Decimal {
	return r.t.resolver.Field(ctx, r.key, r.diag, name, value)
}

func (r *resolveRun) optional(ctx context.Context, name string, value *string) *decimal.Decimal {
	return r.t.resolver.OptionalField(ctx, r.key, r.diag, name, value)
}

// text decrypts a text field, falling back to the stored value.
func (r *resolveRun) text(ctx context.Context, recordID, name, value string) string {
	if value == "" {
		return ""
	}
	plain, err := r.t.resolver.Text(ctx, r.key, value)
	if err != nil {
		r.diag.Add(recordID, name, fmt.Errorf("%w: %w", core.ErrLegacyPlaintextFallback, err))
		return value
	}
	return plain
}

func settle[T, R any](ctx context.Context, r *resolveRun, items []T, fn func(context.Context, T) R) []R {
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

func (r *resolveRun) join(ctx context.Context, tasks ...func(context.Context) error) {
	for _, err := range fanout.Join(ctx, 0, tasks...) {
		r.diag.Add("", "task", err)
	}
}

func (r *resolveRun) monthly(ctx context.Context, raw MonthData) core.MonthlySnapshot {
	out := core.MonthlySnapshot{Month: raw.Month}

	r.join(ctx,
		func(ctx context.Context) error {
			out.Income.Amount = r.field(ctx, "monthData.income.amount", raw.Income.Amount)
			return nil
		},
		func(ctx context.Context) error {
			out.Expense.Amount = r.field(ctx, "monthData.expense.amount", raw.Expense.Amount)
			return nil
		},
		func(ctx context.Context) error {
			out.Budget = r.budget(ctx, "monthData.budget", raw.Budget)
			return nil
		},
		func(ctx context.Context) error {
			out.CurrentMonthBudget = r.budget(ctx, "monthData.currentMonthBudget", raw.CurrentMonthBudget)
			return nil
		},
		func(ctx context.Context) error {
			out.RecentTransactions = settle(ctx, r, raw.LastTransactions, r.recentTransaction)
			return nil
		},
		func(ctx context.Context) error {
			out.CategoryBreakdown = settle(ctx, r, raw.ExpensesByCategory, func(ctx context.Context, c CategoryAmount) core.CategoryAmount {
				return core.CategoryAmount{
					ID:       c.ID,
					Category: c.Category,
					Amount:   r.field(ctx, "monthData.expensesByCategory."+c.Category, c.Amount),
					Color:    c.Color,
				}
			})
			return nil
		},
		func(ctx context.Context) error {
			out.IncomeByCategory = settle(ctx, r, raw.IncomeByCategory, func(ctx context.Context, c CategoryAmount) core.IncomeCategory {
				return core.IncomeCategory{
					ID:       c.ID,
					Category: c.Category,
					Amount:   r.field(ctx, "monthData.incomeByCategory."+c.Category, c.Amount),
					Color:    c.Color,
				}
			})
			return nil
		},
		func(ctx context.Context) error {
			out.DailyCashFlow = settle(ctx, r, raw.DailyCashFlow, func(ctx context.Context, d DailyCashFlow) core.DailyCashFlow {
				return core.DailyCashFlow{
					Day:     d.Day,
					Income:  r.field(ctx, "monthData.dailyCashFlow."+d.Day+".income", d.Income),
					Expense: r.field(ctx, "monthData.dailyCashFlow."+d.Day+".expenses", d.Expenses),
				}
			})
			return nil
		},
	)

	out.Savings.Amount = out.Income.Amount.Sub(out.Expense.Amount)
	return out
}

func (r *resolveRun) budget(ctx context.Context, name string, raw Budget) core.Budget {
	return core.Budget{
		Used:     r.field(ctx, name+".used", raw.Used),
		Budgeted: r.optional(ctx, name+".budgeted", raw.Budgeted),
	}
}

func (r *resolveRun) recentTransaction(ctx context.Context, tx LastTransaction) core.RecentTransaction {
	return core.RecentTransaction{
		ID:          tx.ID,
		Date:        tx.Date,
		Description: r.text(ctx, tx.ID, "description", tx.Description),
		Category:    tx.Category,
		Amount:      r.field(ctx, "lastTransactions."+tx.ID+".amount", tx.Amount),
	}
}

func (r *resolveRun) annualSeries(ctx context.Context, raw []AnnualSummary) core.Series[core.MonthSummary] {
	entries := settle(ctx, r, raw, func(ctx context.Context, s AnnualSummary) core.MonthSummary {
		prefix := fmt.Sprintf("annualSummary.%d.", s.Month)
		return core.MonthSummary{
			Month:   s.Month,
			Income:  r.field(ctx, prefix+"income", s.Income),
			Expense: r.field(ctx, prefix+"expense", s.Expense),
			Savings: r.field(ctx, prefix+"savings", s.Savings),
		}
	})

	series := make(core.Series[core.MonthSummary], len(entries))
	for _, e := range entries {
		if !r.keepMonth(ctx, "annualSummary", e.Month) {
			continue
		}
		series[e.Month] = e
	}
	return series
}

func (r *resolveRun) cashFlowSeries(ctx context.Context, raw []CashFlow) core.Series[core.CashFlowEntry] {
	entries := settle(ctx, r, raw, func(ctx context.Context, c CashFlow) core.CashFlowEntry {
		m := int(c.Month)
		prefix := fmt.Sprintf("cashFlow.%d.", m)
		return core.CashFlowEntry{
			Month:       m,
			Income:      r.field(ctx, prefix+"income", c.Income),
			Expenses:    r.field(ctx, prefix+"expenses", c.Expenses),
			Fixed:       r.field(ctx, prefix+"fixed", c.Fixed),
			Flow:        r.field(ctx, prefix+"flow", c.Flow),
			Accumulated: r.field(ctx, prefix+"accumulated", c.Accumulated),
		}
	})

	series := make(core.Series[core.CashFlowEntry], len(entries))
	for _, e := range entries {
		if !r.keepMonth(ctx, "cashFlow", e.Month) {
			continue
		}
		series[e.Month] = e
	}
	return series
}

func (r *resolveRun) keepMonth(ctx context.Context, series string, month int) bool {
	if core.ValidMonth(month) {
		return true
	}
	r.t.logger.WarnContext(ctx, "Dropping series entry with month out of range",
		"series", series,
		log.FieldMonth, month)
	return false
}

func (r *resolveRun) categoryPoints(ctx context.Context, raw []CategoryMonth) []core.CategoryBudgetPoint {
	return settle(ctx, r, raw, func(ctx context.Context, p CategoryMonth) core.CategoryBudgetPoint {
		prefix := fmt.Sprintf("categoryBudgetAnalysis.%d.", p.Month)
		return core.CategoryBudgetPoint{
			Month:       p.Month,
			Amount:      r.field(ctx, prefix+"amount", p.Amount),
			BudgetTotal: r.field(ctx, prefix+"budgetTotal", p.BudgetTotal),
		}
	})
}

func (r *resolveRun) currentMonth(ctx context.Context, raw *CurrentMonthData) *monthOverride {
	if raw == nil {
		return nil
	}
	if !r.keepMonth(ctx, "currentMonthData", raw.Month) {
		return nil
	}

	o := &monthOverride{Month: raw.Month}
	var savings *decimal.Decimal
	r.join(ctx,
		func(ctx context.Context) error {
			o.Income = deref(r.optional(ctx, "currentMonthData.income", raw.Income))
			return nil
		},
		func(ctx context.Context) error {
			o.Expense = deref(r.optional(ctx, "currentMonthData.expense", raw.Expense))
			return nil
		},
		func(ctx context.Context) error {
			savings = r.optional(ctx, "currentMonthData.savings", raw.Savings)
			return nil
		},
	)
	if savings != nil {
		o.Savings = *savings
	} else {
		o.Savings = o.Income.Sub(o.Expense)
	}
	return o
}

func (r *resolveRun) categoryCurrentMonth(ctx context.Context, raw *CategoryCurrentMonth) *categoryOverride {
	if raw == nil {
		return nil
	}
	return &categoryOverride{
		Month:  raw.Month,
		Amount: deref(r.optional(ctx, "currentMonthDataForCategory.expenses", raw.Expenses)),
	}
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// applyVariations compares the monthly figures with the annual entry of the
// previous month. A missing previous entry counts as zero.
func applyVariations(m *core.MonthlySnapshot, series core.Series[core.MonthSummary]) {
	prev := series[m.Month-1]
	m.Income.VariationPct = core.VariationPct(m.Income.Amount, prev.Income)
	m.Expense.VariationPct = core.VariationPct(m.Expense.Amount, prev.Expense)
	m.Savings.VariationPct = core.VariationPct(m.Savings.Amount, prev.Savings)
}

func applyIncomePercentages(m *core.MonthlySnapshot) {
	for i := range m.IncomeByCategory {
		m.IncomeByCategory[i].Percentage = core.Percentage(m.IncomeByCategory[i].Amount, m.Income.Amount)
	}
}

// spliceCurrentMonth replaces slot o.Month of both series with the figures
// of the month in progress and rebuilds the accumulated chain from there.
func spliceCurrentMonth(series core.Series[core.MonthSummary], cash core.Series[core.CashFlowEntry], o monthOverride) {
	m := o.Month
	series[m] = core.MonthSummary{
		Month:   m,
		Income:  o.Income,
		Expense: o.Expense,
		Savings: o.Savings,
	}

	prevAccumulated := decimal.Zero
	if prev, ok := cash[m-1]; ok {
		prevAccumulated = prev.Accumulated
	}
	flow := o.Income.Sub(o.Expense)
	cash[m] = core.CashFlowEntry{
		Month:       m,
		Income:      o.Income,
		Expenses:    o.Expense,
		Fixed:       decimal.Zero,
		Flow:        flow,
		Accumulated: prevAccumulated.Add(flow),
	}

	acc := cash[m].Accumulated
	for _, k := range cash.Months() {
		if k <= m {
			continue
		}
		e := cash[k]
		acc = acc.Add(e.Flow)
		e.Accumulated = acc
		cash[k] = e
	}
}

func categoryAnalysis(categoryID string, points []core.CategoryBudgetPoint, o *categoryOverride, monthsElapsed int) core.CategoryBudgetAnalysis {
	if points == nil {
		points = []core.CategoryBudgetPoint{}
	}
	if o != nil {
		idx := -1
		for i, p := range points {
			if p.Month == o.Month {
				idx = i
				break
			}
		}
		if idx >= 0 {
			points[idx].Amount = o.Amount
		} else {
			points = append(points, core.CategoryBudgetPoint{Month: o.Month, Amount: o.Amount, BudgetTotal: decimal.Zero})
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Month < points[j].Month })

	total := decimal.Zero
	for _, p := range points {
		total = total.Add(p.Amount)
	}
	return core.CategoryBudgetAnalysis{
		ExpenseCategoryID: categoryID,
		TotalSpent:        total,
		MonthlyAverage:    core.Round2(total.Div(decimal.NewFromInt(int64(max(1, monthsElapsed))))),
		MonthlyData:       points,
	}
}
