// Package aggregate resolves reported figures stored as zero or more
// comma-joined envelopes, one per underlying ledger row.
package aggregate

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/fanout"
	"cifra/internal/log"
)

// Resolution is the detailed result of resolving one aggregate field.
type Resolution struct {
	Value decimal.Decimal
	// Tokens is the number of non-empty envelopes in the field.
	Tokens int
	// Failed holds the error of every envelope that contributed zero.
	Failed []error
}

// Resolver turns aggregate fields into numbers.
type Resolver struct {
	codec  *envelope.Codec
	limit  int
	logger *log.Logger
}

// NewResolver creates a Resolver. limit bounds the concurrent decryptions
// per field; zero or less means unbounded.
func NewResolver(codec *envelope.Codec, limit int, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Discard()
	}
	return &Resolver{codec: codec, limit: limit, logger: logger}
}

// Codec returns the codec used for single envelopes.
func (r *Resolver) Codec() *envelope.Codec { return r.codec }

// Split returns the non-empty envelopes of field.
func Split(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	tokens := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Resolve returns the sum of every decryptable envelope in field. It never
// fails: an empty field is zero and a failing envelope contributes zero.
func (r *Resolver) Resolve(ctx context.Context, key envelope.Opener, field string) decimal.Decimal {
	return r.ResolveDetailed(ctx, key, field).Value
}

// ResolveDetailed is Resolve with the per-envelope failures kept.
func (r *Resolver) ResolveDetailed(ctx context.Context, key envelope.Opener, field string) Resolution {
	tokens := Split(field)
	if len(tokens) == 0 {
		return Resolution{Value: decimal.Zero}
	}

	outs := fanout.Settle(ctx, r.limit, tokens, func(ctx context.Context, env string) (decimal.Decimal, error) {
		return r.codec.DecryptNumber(ctx, key, env)
	})

	res := Resolution{Value: fanout.Sum(outs), Tokens: len(tokens)}
	for _, err := range fanout.Failures(outs) {
		res.Failed = append(res.Failed, err)
	}
	return res
}

// ResolveSingle decrypts one envelope as a number and reports its failure.
func (r *Resolver) ResolveSingle(ctx context.Context, key envelope.Opener, env string) (decimal.Decimal, error) {
	return r.codec.DecryptNumber(ctx, key, env)
}

// Text decrypts one envelope as text.
func (r *Resolver) Text(ctx context.Context, key envelope.Opener, env string) (string, error) {
	return r.codec.DecryptString(ctx, key, env)
}

// Field resolves an aggregate field and records its failures under name.
func (r *Resolver) Field(ctx context.Context, key envelope.Opener, diag *Diagnostics, name, field string) decimal.Decimal {
	res := r.ResolveDetailed(ctx, key, field)
	for _, err := range res.Failed {
		diag.Add("", name, err)
	}
	if len(res.Failed) > 0 {
		r.logger.DebugContext(ctx, "Aggregate field partially resolved",
			log.FieldField, name,
			log.FieldCount, len(res.Failed),
			"tokens", res.Tokens)
	}
	return res.Value
}

// OptionalField is Field for nullable figures. A nil or empty field stays
// nil.
func (r *Resolver) OptionalField(ctx context.Context, key envelope.Opener, diag *Diagnostics, name string, field *string) *decimal.Decimal {
	if field == nil || strings.TrimSpace(*field) == "" {
		return nil
	}
	v := r.Field(ctx, key, diag, name, *field)
	return &v
}

// Diagnostics collects absorbed per-value failures. It is safe for
// concurrent use and a nil *Diagnostics discards everything.
type Diagnostics struct {
	mu     sync.Mutex
	errors []core.FieldError
}

// Add records one failure.
func (d *Diagnostics) Add(recordID, field string, err error) {
	if d == nil || err == nil {
		return
	}
	d.mu.Lock()
	d.errors = append(d.errors, core.FieldError{RecordID: recordID, Field: field, Err: err})
	d.mu.Unlock()
}

// Errors returns a copy of the recorded failures.
func (d *Diagnostics) Errors() []core.FieldError {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.FieldError(nil), d.errors...)
}

// Len returns the number of recorded failures.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errors)
}

// ByKind counts the recorded failures per error kind.
func (d *Diagnostics) ByKind() map[string]int {
	counts := make(map[string]int)
	for _, fe := range d.Errors() {
		counts[fe.Kind()]++
	}
	return counts
}
