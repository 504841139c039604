package session

import (
	"context"
	"errors"
	"fmt"

	"cifra/internal/accounting"
	"cifra/internal/core"
	"cifra/internal/snapshot"
	"cifra/internal/transactions"
)

var (
	ErrUnknownKind    = errors.New("unknown transform kind")
	ErrMalformedInput = errors.New("malformed raw input")
)

// ParseKind maps a kind name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSnapshot, KindTransactions, KindAccountingCurrent, KindAccountingHistorical:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Output is the plaintext result of one transform. Exactly one of the
// result fields is set, according to Kind. Slot is the period of the
// result; historical books carry their own.
type Output struct {
	Kind         Kind                 `json:"kind"`
	Slot         Slot                 `json:"slot"`
	Snapshot     *snapshot.Result     `json:"snapshot,omitempty"`
	Transactions *transactions.Result `json:"transactions,omitempty"`
	Accounting   *accounting.Result   `json:"accounting,omitempty"`
}

// Failures returns every absorbed per-value failure of the result.
func (o *Output) Failures() []core.FieldError {
	switch {
	case o.Snapshot != nil:
		return o.Snapshot.Failures
	case o.Transactions != nil:
		r := o.Transactions.Report
		return append(append([]core.FieldError(nil), r.Failures...), r.Dropped...)
	case o.Accounting != nil:
		return o.Accounting.Failures
	default:
		return nil
	}
}

// Decrypt parses body as the raw input of key.Kind and runs the matching
// transform. A missing body still goes through the engine so that the
// request ends up Errored with core.ErrRawInputMissing; a malformed body
// is recorded the same way with ErrMalformedInput.
func (e *Engine) Decrypt(ctx context.Context, key RequestKey, body []byte) (*Output, error) {
	out := &Output{Kind: key.Kind, Slot: key.Slot}
	var err error
	switch key.Kind {
	case KindSnapshot:
		var raw *snapshot.Data
		if raw, err = parse(snapshot.ParseBytes, body); err == nil {
			out.Snapshot, err = e.Snapshot(ctx, key.Slot, raw)
		}
	case KindTransactions:
		var raw *transactions.Batch
		if raw, err = parse(transactions.ParseBytes, body); err == nil {
			out.Transactions, err = e.Transactions(ctx, key.Slot, raw)
		}
	case KindAccountingCurrent:
		var raw *accounting.CurrentMonth
		if raw, err = parse(accounting.ParseCurrentMonth, body); err == nil {
			out.Accounting, err = e.AccountingCurrent(ctx, key.Slot, raw)
		}
	case KindAccountingHistorical:
		var raw *accounting.Historical
		if raw, err = parse(accounting.ParseHistorical, body); err == nil {
			if raw != nil {
				out.Slot = Slot{Year: raw.Year, Month: raw.Month, Currency: raw.CurrencyCode}
			}
			out.Accounting, err = e.AccountingHistorical(ctx, raw)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, key.Kind)
	}
	if errors.Is(err, ErrMalformedInput) {
		err = e.reject(ctx, key, err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parse decodes body. A missing body is not an error here: it yields a nil
// raw input, which the transforms reject with core.ErrRawInputMissing.
func parse[T any](fn func([]byte) (*T, error), body []byte) (*T, error) {
	v, err := fn(body)
	switch {
	case errors.Is(err, core.ErrRawInputMissing):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return v, nil
}

// reject records a request that failed before any transform could run.
func (e *Engine) reject(ctx context.Context, key RequestKey, err error) error {
	start := e.now()
	ctx, req := e.begin(ctx, key)
	defer req.cancel()
	if !e.finish(ctx, req, Errored, 0, err, start) {
		return ErrSuperseded
	}
	return err
}
