package envelope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"cifra/internal/core"
	"cifra/internal/log"
	"cifra/internal/metrics"
)

// Opener authenticates and decrypts ciphertext || tag. *keys.Handle is the
// production implementation; the interface lets cipher backends be swapped
// without touching the codec.
type Opener interface {
	Open(nonce, sealed []byte) ([]byte, error)
}

// Missing reports whether key cannot open anything. Openers that can be
// empty, such as a nil *keys.Handle, report it through Available.
func Missing(key Opener) bool {
	if key == nil {
		return true
	}
	a, ok := key.(interface{ Available() bool })
	return ok && !a.Available()
}

// Codec decrypts envelopes and records every outcome.
type Codec struct {
	metrics metrics.Recorder
	logger  *log.Logger
}

// NewCodec creates a Codec. A nil recorder or logger disables that output.
func NewCodec(recorder metrics.Recorder, logger *log.Logger) *Codec {
	if logger == nil {
		logger = log.Discard()
	}
	return &Codec{
		metrics: metrics.OrNoop(recorder),
		logger:  logger.WithComponent(log.ComponentEnvelope),
	}
}

// Decrypt returns the plaintext bytes of one envelope. Failures wrap
// core.ErrMalformedEnvelope, core.ErrAuthenticationFailure or
// core.ErrKeyUnavailable, or are the context error.
func (c *Codec) Decrypt(ctx context.Context, key Opener, env string) ([]byte, error) {
	plain, err := c.decrypt(ctx, key, env)
	kind := core.ErrorKind(err)
	c.metrics.DecryptOutcome(kind)
	if err != nil {
		c.logger.DebugContext(ctx, "Envelope rejected",
			log.FieldOperation, log.OpDecrypt,
			log.FieldErrorKind, kind)
	}
	return plain, err
}

func (c *Codec) decrypt(ctx context.Context, key Opener, env string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if Missing(key) {
		return nil, core.ErrKeyUnavailable
	}
	parts, err := Decode(env)
	if err != nil {
		return nil, err
	}
	plain, err := key.Open(parts.Nonce, parts.Sealed())
	if errors.Is(err, core.ErrKeyUnavailable) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAuthenticationFailure, err)
	}
	return plain, nil
}

// DecryptString decrypts an envelope to text. Invalid UTF-8 sequences are
// replaced with U+FFFD.
func (c *Codec) DecryptString(ctx context.Context, key Opener, env string) (string, error) {
	plain, err := c.Decrypt(ctx, key, env)
	if err != nil {
		return "", err
	}
	if utf8.Valid(plain) {
		return string(plain), nil
	}
	return strings.ToValidUTF8(string(plain), string(utf8.RuneError)), nil
}

// DecryptNumber decrypts an envelope and parses the plaintext as a decimal.
// A plaintext that is not a number fails with core.ErrNonNumericPlaintext.
func (c *Codec) DecryptNumber(ctx context.Context, key Opener, env string) (decimal.Decimal, error) {
	s, err := c.DecryptString(ctx, key, env)
	if err != nil {
		return decimal.Zero, err
	}
	return core.ParseAmount(s)
}
