package transactions

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cifra/internal/aggregate"
	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/envelope/envelopetest"
	"cifra/internal/keys"
)

func newTransformer(opts Options) *Transformer {
	return NewTransformer(aggregate.NewResolver(envelope.NewCodec(nil, nil), 0, nil), opts, nil)
}

func mustKey(t *testing.T) *keys.Handle {
	t.Helper()
	h, err := keys.ImportKey(envelopetest.KeyHex)
	require.NoError(t, err)
	return h
}

func income(s *envelopetest.Sealer, id, amount, createdAt string) Record {
	return Record{
		ID:           id,
		Amount:       s.Seal(amount),
		Description:  s.Seal("Salary " + id),
		CurrencyCode: "PEN",
		CreatedAt:    createdAt,
		Type:         core.Income,
		Category:     Category{ID: "cat-salary", Name: "Salary"},
		ToAccount:    &Account{ID: "acc-1", Name: "Checking"},
	}
}

func expense(s *envelopetest.Sealer, id, amount, createdAt string) Record {
	return Record{
		ID:           id,
		Amount:       s.Seal(amount),
		Description:  s.Seal("Lunch " + id),
		Message:      s.Seal("with team"),
		CurrencyCode: "PEN",
		CreatedAt:    createdAt,
		Type:         core.Expense,
		Category:     Category{ID: "cat-food", Name: "Food"},
		FromAccount:  &Account{ID: "acc-2", Name: "Credit card"},
		Tags:         []core.Tag{{ID: "tag-1", Name: "work"}},
	}
}

func ts(day int) string {
	return time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func TestTransform_Basic(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	raw := &Batch{
		Incomes:  []Record{income(s, "i1", "2500.00", ts(1))},
		Expenses: []Record{expense(s, "e1", "35.90", ts(2))},
	}

	res, err := newTransformer(Options{}).Transform(context.Background(), mustKey(t), raw)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Empty(t, res.Report.Failures)
	assert.Empty(t, res.Report.Dropped)

	exp := res.Transactions[0]
	assert.Equal(t, "e1", exp.ID)
	assert.Equal(t, core.Expense, exp.Type)
	assert.True(t, decimal.RequireFromString("35.90").Equal(exp.Amount))
	assert.Equal(t, "Lunch e1", exp.Title)
	assert.Equal(t, "Lunch e1", exp.Description)
	assert.Equal(t, "with team", exp.Message)
	assert.Equal(t, "Credit card", exp.Account)
	assert.Equal(t, "Food", exp.Category)
	assert.Equal(t, "cat-food", exp.CategoryID)
	assert.Equal(t, []core.Tag{{ID: "tag-1", Name: "work"}}, exp.Tags)

	inc := res.Transactions[1]
	assert.Equal(t, "i1", inc.ID)
	assert.Equal(t, "Checking", inc.Account)
	assert.Empty(t, inc.Tags)
	assert.NotNil(t, inc.Tags)
	assert.Equal(t, "PEN", inc.CurrencyCode)
}

func TestTransform_OneCorruptedAmountOfTen(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	raw := &Batch{}
	for i := 0; i < 5; i++ {
		raw.Incomes = append(raw.Incomes, income(s, fmt.Sprintf("i%d", i), "10", ts(i+1)))
		raw.Expenses = append(raw.Expenses, expense(s, fmt.Sprintf("e%d", i), "5", ts(i+10)))
	}
	raw.Expenses[2].Amount = envelopetest.Corrupt(raw.Expenses[2].Amount)

	res, err := newTransformer(Options{}).Transform(context.Background(), mustKey(t), raw)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 10)

	for _, tx := range res.Transactions {
		if tx.ID == "e2" {
			assert.True(t, tx.Amount.IsZero())
		} else {
			assert.False(t, tx.Amount.IsZero(), tx.ID)
		}
	}
	require.Len(t, res.Report.Failures, 1)
	assert.Equal(t, "e2", res.Report.Failures[0].RecordID)
	assert.Equal(t, "amount", res.Report.Failures[0].Field)
	assert.Equal(t, core.KindAuthentication, res.Report.Failures[0].Kind())
}

func TestTransform_LegacyPlaintextDescription(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	rec := expense(s, "e1", "12", ts(3))
	rec.Description = "Coffee at the corner"
	rec.Message = "legacy note"

	res, err := newTransformer(Options{}).Transform(context.Background(), mustKey(t), &Batch{Expenses: []Record{rec}})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)

	tx := res.Transactions[0]
	assert.Equal(t, "Coffee at the corner", tx.Description)
	assert.Equal(t, "Coffee at the corner", tx.Title)
	assert.Equal(t, "legacy note", tx.Message)

	require.Len(t, res.Report.Failures, 2)
	for _, f := range res.Report.Failures {
		assert.Equal(t, core.KindLegacyPlaintext, f.Kind())
		assert.ErrorIs(t, f, core.ErrLegacyPlaintextFallback)
	}
}

func TestTransform_DefaultTitles(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	inc := income(s, "i1", "1", ts(1))
	inc.Description = ""
	exp := expense(s, "e1", "1", ts(2))
	exp.Description = ""

	res, err := newTransformer(Options{IncomeTitle: "Ingreso", ExpenseTitle: "Gasto"}).
		Transform(context.Background(), mustKey(t), &Batch{Incomes: []Record{inc}, Expenses: []Record{exp}})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "Gasto", res.Transactions[0].Title)
	assert.Equal(t, "Ingreso", res.Transactions[1].Title)
	assert.Empty(t, res.Transactions[1].Description)
}

func TestTransform_DropsUnplaceableRecords(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	noAccount := income(s, "i-bad", "1", ts(1))
	noAccount.ToAccount = nil
	badDate := expense(s, "e-bad", "1", "yesterday")
	transfer := expense(s, "t-bad", "1", ts(1))
	transfer.Type = core.Transfer
	noID := expense(s, "", "1", ts(1))

	raw := &Batch{
		Incomes:  []Record{income(s, "i1", "1", ts(1)), noAccount},
		Expenses: []Record{badDate, expense(s, "e1", "1", ts(2)), transfer, noID},
	}

	res, err := newTransformer(Options{}).Transform(context.Background(), mustKey(t), raw)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	require.Len(t, res.Report.Dropped, 4)
	for _, d := range res.Report.Dropped {
		assert.ErrorIs(t, d, core.ErrInvalidRecord)
	}
	assert.Equal(t, []string{"", "e-bad", "i-bad", "t-bad"}, []string{
		res.Report.Dropped[0].RecordID, res.Report.Dropped[1].RecordID,
		res.Report.Dropped[2].RecordID, res.Report.Dropped[3].RecordID,
	})
}

func TestTransform_SortedNewestFirst(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	raw := &Batch{
		Incomes: []Record{
			income(s, "b", "1", ts(5)),
			income(s, "a", "1", ts(5)),
			income(s, "old", "1", ts(1)),
		},
		Expenses: []Record{
			expense(s, "new", "1", ts(20)),
			expense(s, "mid", "1", "2025-03-10T08:00:00.123456"),
		},
	}

	for i := 0; i < 5; i++ {
		res, err := newTransformer(Options{Limit: 2}).Transform(context.Background(), mustKey(t), raw)
		require.NoError(t, err)

		ids := make([]string, len(res.Transactions))
		for i, tx := range res.Transactions {
			ids[i] = tx.ID
		}
		assert.Equal(t, []string{"new", "mid", "a", "b", "old"}, ids)
	}
}

func TestTransform_WrongKeyKeepsRecords(t *testing.T) {
	s := envelopetest.New(envelopetest.OtherKeyHex)
	raw := &Batch{Incomes: []Record{income(s, "i1", "10", ts(1))}}

	res, err := newTransformer(Options{}).Transform(context.Background(), mustKey(t), raw)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.True(t, res.Transactions[0].Amount.IsZero())
	assert.Equal(t, raw.Incomes[0].Description, res.Transactions[0].Description)
}

func TestTransform_Preconditions(t *testing.T) {
	tr := newTransformer(Options{})

	_, err := tr.Transform(context.Background(), mustKey(t), nil)
	require.ErrorIs(t, err, core.ErrRawInputMissing)

	_, err = tr.Transform(context.Background(), nil, &Batch{})
	require.ErrorIs(t, err, core.ErrKeyUnavailable)
	_, err = tr.Transform(context.Background(), (*keys.Handle)(nil), &Batch{})
	require.ErrorIs(t, err, core.ErrKeyUnavailable)

	res, err := tr.Transform(context.Background(), mustKey(t), &Batch{})
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
}

func TestParse(t *testing.T) {
	b, err := Parse(strings.NewReader(`{"incomes":[{"id":"i1","amount":"x","type":"income","to_account":{"id":"a","name":"Main"},"category":{"id":"c","name":"Salary"},"created_at":"2025-03-01T00:00:00Z"}],"expenses":[]}`))
	require.NoError(t, err)
	require.Len(t, b.Incomes, 1)
	assert.Equal(t, "Main", b.Incomes[0].ToAccount.Name)
	assert.Equal(t, 1, b.Len())

	_, err = ParseBytes([]byte("null"))
	require.ErrorIs(t, err, core.ErrRawInputMissing)

	_, err = ParseBytes([]byte("{"))
	require.Error(t, err)
}
