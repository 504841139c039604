package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cifra/internal/aggregate"
	"cifra/internal/calendar"
	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/envelope/envelopetest"
	"cifra/internal/keys"
)

func newTransformer() *Transformer {
	return NewTransformer(aggregate.NewResolver(envelope.NewCodec(nil, nil), 0, nil), 4, nil)
}

func mustKey(t *testing.T) *keys.Handle {
	t.Helper()
	h, err := keys.ImportKey(envelopetest.KeyHex)
	require.NoError(t, err)
	return h
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(month time.Month, day int) string {
	return time.Date(2025, month, day, 15, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

var (
	checking = &core.AccountRef{ID: "acc-1", Name: "Checking"}
	card     = &core.AccountRef{ID: "acc-2", Name: "Credit card"}
)

func fixtureEntries(s *envelopetest.Sealer) []Entry {
	return []Entry{
		{ID: "j1", Amount: s.Seal("3000"), Type: core.Income, AccountTo: checking, Description: s.Seal("Salary"), CreatedAt: at(time.September, 1), Category: core.CategoryRef{ID: "c0", Name: "Salary"}},
		{ID: "j2", Amount: s.Seal("120.50"), Type: core.Expense, AccountFrom: card, Description: s.Seal("Groceries"), CreatedAt: at(time.September, 3), Category: core.CategoryRef{ID: "c1", Name: "Food"}},
		{ID: "j3", Amount: s.Seal("60"), Type: core.Expense, AccountFrom: checking, Description: s.Seal("Taxi"), CreatedAt: at(time.September, 9), Category: core.CategoryRef{ID: "c2", Name: "Transport"}},
		{ID: "j4", Amount: s.Seal("19.50"), Type: core.Expense, AccountFrom: card, Description: s.Seal("Bakery"), CreatedAt: at(time.September, 16), Category: core.CategoryRef{ID: "c1", Name: "Food"}},
		{ID: "j5", Amount: s.Seal("500"), Type: core.Transfer, AccountFrom: checking, AccountTo: card, CreatedAt: at(time.September, 20)},
		{ID: "j6", Amount: s.Seal("10"), Type: core.Expense, AccountFrom: card, CreatedAt: at(time.September, 30)},
	}
}

func TestTransformCurrentMonth(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	raw := &CurrentMonth{
		Transactions: fixtureEntries(s),
		Accounts: []CurrentAccount{
			{ID: "acc-1", Name: "Checking", AccountType: "bank", CurrentBalance: s.Seal("2440"), StartingBalance: s.Ptr("1000")},
			{ID: "acc-2", Name: "Credit card", AccountType: "credit", CurrentBalance: s.Join("-150", "-0.50")},
		},
	}

	res, err := newTransformer().TransformCurrentMonth(context.Background(), mustKey(t), raw)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	sum := res.Summary
	assert.True(t, dec("3000").Equal(sum.TotalIncome), sum.TotalIncome.String())
	assert.True(t, dec("210").Equal(sum.TotalExpense), sum.TotalExpense.String())
	assert.True(t, dec("2790").Equal(sum.TotalSavings))
	assert.True(t, sum.TotalSavings.Equal(sum.CashFlow))
	assert.True(t, dec("2289.5").Equal(sum.AccumulatedCash), sum.AccumulatedCash.String())

	require.Len(t, sum.AccountBalances, 2)
	assert.True(t, dec("1000").Equal(sum.AccountBalances[0].StartingBalance))
	assert.True(t, sum.AccountBalances[1].StartingBalance.IsZero())

	require.Len(t, sum.JournalEntries, 6)
	assert.Equal(t, "Groceries", sum.JournalEntries[1].Description)
	assert.Equal(t, time.Date(2025, time.September, 3, 15, 0, 0, 0, time.UTC), sum.JournalEntries[1].CreatedAt)
}

func TestTransformCurrentMonth_AbsorbsFailures(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	entries := fixtureEntries(s)
	entries[1].Amount = envelopetest.Corrupt(entries[1].Amount)
	entries[2].Description = "Taxi to airport"

	res, err := newTransformer().TransformCurrentMonth(context.Background(), mustKey(t), &CurrentMonth{Transactions: entries})
	require.NoError(t, err)

	assert.True(t, dec("89.5").Equal(res.Summary.TotalExpense), res.Summary.TotalExpense.String())
	assert.Equal(t, "Taxi to airport", res.Summary.JournalEntries[2].Description)

	kinds := map[string]string{}
	for _, f := range res.Failures {
		kinds[f.RecordID+"/"+f.Field] = f.Kind()
	}
	assert.Equal(t, core.KindAuthentication, kinds["j2/amount"])
	assert.Equal(t, core.KindLegacyPlaintext, kinds["j3/description"])
}

func TestTransformHistorical(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	raw := &Historical{
		ID:              "h-2025-08",
		Year:            2025,
		Month:           7,
		CurrencyCode:    "PEN",
		TotalIncome:     s.Join("2000", "1000"),
		TotalExpense:    s.Seal("800"),
		TotalSavings:    s.Seal("2200"),
		CashFlow:        s.Seal("2200"),
		AccumulatedCash: s.Seal("9100.25"),
		AccountBalanceSnapshots: []BalanceSnapshot{
			{ID: "b1", AccountID: "acc-1", Balance: s.Seal("9100.25"), Account: SnapshotAccount{Name: "Checking", AccountType: "bank"}},
		},
		JournalEntries: fixtureEntries(s)[:2],
	}

	res, err := newTransformer().TransformHistorical(context.Background(), mustKey(t), raw)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	sum := res.Summary
	assert.True(t, dec("3000").Equal(sum.TotalIncome))
	assert.True(t, dec("800").Equal(sum.TotalExpense))
	assert.True(t, dec("2200").Equal(sum.TotalSavings))
	assert.True(t, dec("2200").Equal(sum.CashFlow))
	assert.True(t, dec("9100.25").Equal(sum.AccumulatedCash))
	require.Len(t, sum.AccountBalances, 1)
	assert.Equal(t, "Checking", sum.AccountBalances[0].AccountName)
	assert.Len(t, sum.JournalEntries, 2)
}

func TestTransform_Preconditions(t *testing.T) {
	tr := newTransformer()
	ctx := context.Background()

	_, err := tr.TransformCurrentMonth(ctx, mustKey(t), nil)
	assert.ErrorIs(t, err, core.ErrRawInputMissing)
	_, err = tr.TransformHistorical(ctx, nil, &Historical{})
	assert.ErrorIs(t, err, core.ErrKeyUnavailable)
	_, err = tr.TransformCurrentMonth(ctx, (*keys.Handle)(nil), &CurrentMonth{})
	assert.ErrorIs(t, err, core.ErrKeyUnavailable)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = tr.TransformHistorical(canceled, mustKey(t), &Historical{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransform_WrongKeyZeroes(t *testing.T) {
	s := envelopetest.New(envelopetest.OtherKeyHex)
	res, err := newTransformer().TransformCurrentMonth(context.Background(), mustKey(t), &CurrentMonth{Transactions: fixtureEntries(s)})
	require.NoError(t, err)
	assert.True(t, res.Summary.TotalIncome.IsZero())
	assert.True(t, res.Summary.TotalExpense.IsZero())
	assert.NotEmpty(t, res.Failures)
}

func TestParse(t *testing.T) {
	cm, err := ParseCurrentMonth([]byte(`{"transactions":[{"id":"j1","amount":"x","type":"income","accountTo":{"id":"a","name":"A"},"created_at":"2025-09-01T00:00:00Z","category":{"id":"c","name":"C"}}],"accounts":[{"id":"a","name":"A","account_type":"bank","currentBalance":"y","startingBalance":null}]}`))
	require.NoError(t, err)
	require.Len(t, cm.Transactions, 1)
	assert.Equal(t, "A", cm.Transactions[0].AccountTo.Name)
	assert.Nil(t, cm.Transactions[0].AccountFrom)
	assert.Equal(t, "y", cm.Accounts[0].CurrentBalance)
	assert.Nil(t, cm.Accounts[0].StartingBalance)

	h, err := ParseHistorical([]byte(`{"id":"h","year":2025,"month":7,"total_income":"a","account_balance_snapshots":[{"id":"b","account_id":"a","balance":"z","account":{"name":"A","account_type":"bank"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "a", h.TotalIncome)
	assert.Equal(t, "bank", h.AccountBalanceSnapshots[0].Account.AccountType)

	_, err = ParseHistorical([]byte("null"))
	assert.ErrorIs(t, err, core.ErrRawInputMissing)
	_, err = ParseCurrentMonth([]byte("{"))
	assert.Error(t, err)
}

func TestWeeklyCashFlow(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	res, err := newTransformer().TransformCurrentMonth(context.Background(), mustKey(t), &CurrentMonth{Transactions: fixtureEntries(s)})
	require.NoError(t, err)

	// a stray entry from the following month is ignored
	res.Summary.JournalEntries = append(res.Summary.JournalEntries, core.JournalEntry{
		ID: "late", Type: core.Expense, Amount: dec("1"), CreatedAt: time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC),
	})

	cal := calendar.New()
	w := WeeklyCashFlow(res.Summary, 2025, 8, cal)

	require.Len(t, w.Weeks, 5)
	require.Len(t, w.Categories, 4)

	inc := w.Categories[0]
	assert.Equal(t, "income", inc.ID)
	require.Len(t, inc.Items, 1)
	assert.Equal(t, "Checking", inc.Items[0].Account)
	assert.Equal(t, "2025-09-01", inc.Items[0].WeekID)

	food := w.Categories[1]
	assert.Equal(t, "expense-food", food.ID)
	assert.Equal(t, "Food", food.Name)
	require.Len(t, food.Items, 2)
	assert.Equal(t, "Credit card", food.Items[0].Account)
	assert.Equal(t, "2025-09-01", food.Items[0].WeekID)
	assert.Equal(t, "2025-09-15", food.Items[1].WeekID)

	assert.Equal(t, "expense-transport", w.Categories[2].ID)
	assert.Equal(t, "2025-09-08", w.Categories[2].Items[0].WeekID)

	other := w.Categories[3]
	assert.Equal(t, "Uncategorized", other.Name)
	assert.Equal(t, "expense-uncategorized", other.ID)
	assert.Equal(t, "2025-09-29", other.Items[0].WeekID)
}

func TestWeeklyCashFlow_Empty(t *testing.T) {
	w := WeeklyCashFlow(nil, 2025, 2, calendar.New())
	assert.Len(t, w.Weeks, 6)
	assert.Empty(t, w.Categories)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "eating-out", slug("Eating out"))
	assert.Equal(t, "home-garden", slug(" Home & Garden! "))
	assert.Equal(t, "café", slug("Café"))
}
