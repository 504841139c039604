// Package envelopetest produces envelopes in the production layout for
// tests. Production code never encrypts.
package envelopetest

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Fixed test keys.
const (
	KeyHex      = "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"
	OtherKeyHex = "feffe9928665731c6d6a8f9467308308feffe9928665731c6d6a8f9467308308"
)

// Sealer encrypts plaintexts into envelopes.
type Sealer struct {
	KeyHex string
	aead   cipher.AEAD
}

// New returns an AES-256-GCM sealer for keyHex. It panics on bad input.
func New(keyHex string) *Sealer {
	block, err := aes.NewCipher(mustHex(keyHex))
	if err != nil {
		panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return &Sealer{KeyHex: keyHex, aead: gcm}
}

// NewChaCha returns a ChaCha20-Poly1305 sealer for keyHex.
func NewChaCha(keyHex string) *Sealer {
	aead, err := chacha20poly1305.New(mustHex(keyHex))
	if err != nil {
		panic(err)
	}
	return &Sealer{KeyHex: keyHex, aead: aead}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Seal returns base64(nonce || tag || ciphertext).
func (s *Sealer) Seal(plaintext string) string {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		panic(err)
	}
	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-s.aead.Overhead()], sealed[len(sealed)-s.aead.Overhead():]

	raw := make([]byte, 0, len(nonce)+len(sealed))
	raw = append(raw, nonce...)
	raw = append(raw, tag...)
	raw = append(raw, ct...)
	return base64.StdEncoding.EncodeToString(raw)
}

// Join seals every plaintext and joins the envelopes with commas, the way
// aggregate fields are stored.
func (s *Sealer) Join(plaintexts ...string) string {
	out := make([]string, len(plaintexts))
	for i, p := range plaintexts {
		out[i] = s.Seal(p)
	}
	return strings.Join(out, ",")
}

// Ptr seals plaintext and returns a pointer to the envelope.
func (s *Sealer) Ptr(plaintext string) *string {
	env := s.Seal(plaintext)
	return &env
}

// Corrupt flips one bit of the tag so authentication fails.
func Corrupt(env string) string {
	raw, err := base64.StdEncoding.DecodeString(env)
	if err != nil {
		panic(err)
	}
	raw[12] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}
