package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidMonth(t *testing.T) {
	assert.True(t, ValidMonth(0))
	assert.True(t, ValidMonth(11))
	assert.False(t, ValidMonth(-1))
	assert.False(t, ValidMonth(12))
}

func TestTransactionTypeValid(t *testing.T) {
	assert.True(t, Income.Valid())
	assert.True(t, Expense.Valid())
	assert.True(t, Transfer.Valid())
	assert.False(t, TransactionType("refund").Valid())
}

func TestSeriesOrdersByMonth(t *testing.T) {
	s := Series[MonthSummary]{
		5:  {Month: 5, Income: dec("5")},
		0:  {Month: 0, Income: dec("0")},
		11: {Month: 11, Income: dec("11")},
	}
	assert.Equal(t, []int{0, 5, 11}, s.Months())

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)
	assert.EqualValues(t, 0, decoded[0]["month"])
	assert.EqualValues(t, 11, decoded[2]["month"])
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindOK, ErrorKind(nil))
	assert.Equal(t, KindAuthentication, ErrorKind(FieldError{Field: "amount", Err: ErrAuthenticationFailure}))
	assert.Equal(t, KindMalformed, ErrorKind(ErrMalformedEnvelope))
	assert.Equal(t, KindUnknown, ErrorKind(assert.AnError))
	assert.Equal(t, KindLegacyPlaintext, ErrorKind(fmt.Errorf("%w: %w", ErrLegacyPlaintextFallback, ErrMalformedEnvelope)))
	assert.Equal(t, KindCanceled, ErrorKind(fmt.Errorf("decrypt: %w", context.Canceled)))
}
