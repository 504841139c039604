package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of the raw key material in bytes.
const KeySize = 32

// Backend selects the authenticated cipher behind a Handle. Both backends
// use a 12 byte nonce and a 16 byte tag so envelopes share one layout.
type Backend string

const (
	AESGCM           Backend = "aes-gcm"
	ChaCha20Poly1305 Backend = "chacha20-poly1305"
)

// ParseBackend maps a configuration value onto a Backend. The empty string
// selects AESGCM.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", AESGCM:
		return AESGCM, nil
	case ChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("unknown cipher backend %q", s)
	}
}

func (b Backend) newAEAD(key []byte) (cipher.AEAD, error) {
	switch b {
	case AESGCM, "":
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("unknown cipher backend %q", string(b))
	}
}
