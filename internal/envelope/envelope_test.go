package envelope_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cifra/internal/core"
	"cifra/internal/envelope"
	"cifra/internal/envelope/envelopetest"
	"cifra/internal/keys"
	"cifra/internal/metrics"
)

type countingRecorder struct {
	metrics.Noop
	kinds map[string]int
}

func (r *countingRecorder) DecryptOutcome(kind string) { r.kinds[kind]++ }

func mustKey(t *testing.T, hexKey string) *keys.Handle {
	t.Helper()
	h, err := keys.ImportKey(hexKey)
	require.NoError(t, err)
	return h
}

func TestDecode(t *testing.T) {
	raw := make([]byte, 40)
	for i := range raw {
		raw[i] = byte(i)
	}

	for name, s := range map[string]string{
		"std":        base64.StdEncoding.EncodeToString(raw),
		"raw std":    base64.RawStdEncoding.EncodeToString(raw[:38]),
		"url":        base64.URLEncoding.EncodeToString(raw),
		"raw url":    base64.RawURLEncoding.EncodeToString(raw[:38]),
		"whitespace": " " + base64.StdEncoding.EncodeToString(raw) + "\n",
	} {
		t.Run(name, func(t *testing.T) {
			p, err := envelope.Decode(s)
			require.NoError(t, err)
			assert.Equal(t, raw[:12], p.Nonce)
			assert.Equal(t, raw[12:28], p.Tag)
			assert.Equal(t, raw[28:len(p.Ciphertext)+28], p.Ciphertext)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"not base64": "!!!not-base64!!!",
		"27 bytes":   base64.StdEncoding.EncodeToString(make([]byte, 27)),
	}
	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := envelope.Decode(s)
			require.ErrorIs(t, err, core.ErrMalformedEnvelope)
		})
	}

	// exactly 28 bytes is an empty plaintext, not malformed
	p, err := envelope.Decode(base64.StdEncoding.EncodeToString(make([]byte, 28)))
	require.NoError(t, err)
	assert.Empty(t, p.Ciphertext)
}

func TestParts_SealedOrder(t *testing.T) {
	p := envelope.Parts{
		Nonce:      []byte{1},
		Tag:        []byte{2, 3},
		Ciphertext: []byte{4, 5, 6},
	}
	assert.Equal(t, []byte{4, 5, 6, 2, 3}, p.Sealed())
}

func TestEncodeDecode(t *testing.T) {
	p := envelope.Parts{
		Nonce:      make([]byte, 12),
		Tag:        make([]byte, 16),
		Ciphertext: []byte("abc"),
	}
	got, err := envelope.Decode(envelope.Encode(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := envelopetest.New(envelopetest.KeyHex)
	key := mustKey(t, envelopetest.KeyHex)
	c := envelope.NewCodec(nil, nil)

	for _, plain := range []string{"", "100.00", "Grocery shopping", "caffè ☕"} {
		got, err := c.DecryptString(ctx, key, s.Seal(plain))
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestCodec_ChaChaBackend(t *testing.T) {
	s := envelopetest.NewChaCha(envelopetest.KeyHex)
	m := keys.NewManager(keys.ManagerConfig{Backend: keys.ChaCha20Poly1305})
	key, err := m.Import(envelopetest.KeyHex)
	require.NoError(t, err)

	got, err := envelope.NewCodec(nil, nil).DecryptString(context.Background(), key, s.Seal("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestCodec_WrongKey(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	other := mustKey(t, envelopetest.OtherKeyHex)

	_, err := envelope.NewCodec(nil, nil).Decrypt(context.Background(), other, s.Seal("100"))
	require.ErrorIs(t, err, core.ErrAuthenticationFailure)
}

func TestCodec_TamperedTag(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	key := mustKey(t, envelopetest.KeyHex)

	_, err := envelope.NewCodec(nil, nil).Decrypt(context.Background(), key, envelopetest.Corrupt(s.Seal("100")))
	require.ErrorIs(t, err, core.ErrAuthenticationFailure)
}

func TestCodec_NilKey(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	_, err := envelope.NewCodec(nil, nil).Decrypt(context.Background(), nil, s.Seal("1"))
	require.ErrorIs(t, err, core.ErrKeyUnavailable)

	var h *keys.Handle
	assert.True(t, envelope.Missing(h))
	assert.False(t, envelope.Missing(mustKey(t, envelopetest.KeyHex)))
	_, err = envelope.NewCodec(nil, nil).Decrypt(context.Background(), h, s.Seal("1"))
	require.ErrorIs(t, err, core.ErrKeyUnavailable)
}

func TestCodec_CanceledContext(t *testing.T) {
	s := envelopetest.New(envelopetest.KeyHex)
	key := mustKey(t, envelopetest.KeyHex)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := envelope.NewCodec(nil, nil).Decrypt(ctx, key, s.Seal("1"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCodec_DecryptNumber(t *testing.T) {
	ctx := context.Background()
	s := envelopetest.New(envelopetest.KeyHex)
	key := mustKey(t, envelopetest.KeyHex)
	c := envelope.NewCodec(nil, nil)

	n, err := c.DecryptNumber(ctx, key, s.Seal("150.25"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150.25").Equal(n))

	n, err = c.DecryptNumber(ctx, key, s.Seal("not a number"))
	require.ErrorIs(t, err, core.ErrNonNumericPlaintext)
	assert.True(t, n.IsZero())
}

func TestCodec_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	s := envelopetest.New(envelopetest.KeyHex)
	key := mustKey(t, envelopetest.KeyHex)
	rec := &countingRecorder{kinds: map[string]int{}}
	c := envelope.NewCodec(rec, nil)

	_, _ = c.Decrypt(ctx, key, s.Seal("1"))
	_, _ = c.Decrypt(ctx, key, "short")
	_, _ = c.Decrypt(ctx, key, envelopetest.Corrupt(s.Seal("1")))

	assert.Equal(t, map[string]int{
		core.KindOK:             1,
		core.KindMalformed:      1,
		core.KindAuthentication: 1,
	}, rec.kinds)
}
