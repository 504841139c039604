package keys

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"cifra/internal/core"
)

var errNotSerializable = errors.New("key handle is not serializable")

// Handle is an imported key usable only for authenticated decryption. It
// does not expose the key bytes and is safe for concurrent use.
type Handle struct {
	id      string
	backend Backend
	aead    cipher.AEAD
}

func newHandle(raw []byte, backend Backend) (*Handle, error) {
	aead, err := backend.newAEAD(raw)
	if err != nil {
		return nil, err
	}
	return &Handle{
		id:      Fingerprint(raw, backend),
		backend: backend,
		aead:    aead,
	}, nil
}

// Fingerprint identifies key material without revealing it: the first 8
// bytes of SHA-256 over the backend name and the key, hex encoded.
func Fingerprint(raw []byte, backend Backend) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// ID returns the key fingerprint.
func (h *Handle) ID() string { return h.id }

// Backend returns the cipher the handle was imported for.
func (h *Handle) Backend() Backend { return h.backend }

// NonceSize is the nonce length expected by Open.
func (h *Handle) NonceSize() int { return h.aead.NonceSize() }

// Overhead is the tag length expected by Open.
func (h *Handle) Overhead() int { return h.aead.Overhead() }

// Available reports whether h can open envelopes. A nil handle cannot.
func (h *Handle) Available() bool { return h != nil && h.aead != nil }

// Open authenticates and decrypts sealed (ciphertext followed by tag). A nil
// handle fails with core.ErrKeyUnavailable.
func (h *Handle) Open(nonce, sealed []byte) ([]byte, error) {
	if !h.Available() {
		return nil, core.ErrKeyUnavailable
	}
	if len(nonce) != h.aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", h.aead.NonceSize(), len(nonce))
	}
	return h.aead.Open(nil, nonce, sealed, nil)
}

// String never prints key material.
func (h *Handle) String() string {
	return fmt.Sprintf("keys.Handle(%s:%s)", h.backend, h.id)
}

// GoString never prints key material.
func (h *Handle) GoString() string { return h.String() }

// MarshalJSON always fails.
func (h *Handle) MarshalJSON() ([]byte, error) { return nil, errNotSerializable }

// MarshalText always fails.
func (h *Handle) MarshalText() ([]byte, error) { return nil, errNotSerializable }
