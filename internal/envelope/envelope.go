// Package envelope decodes and decrypts single encrypted values.
//
// An envelope is the base64 text form of nonce(12) || tag(16) || ciphertext.
// The authenticated cipher expects ciphertext || tag, so Decode splits the
// envelope and Parts.Sealed reassembles it in that order.
package envelope

import (
	"encoding/base64"
	"fmt"
	"strings"

	"cifra/internal/core"
)

const (
	NonceSize = 12
	TagSize   = 16
	// MinSize is the shortest decoded envelope: an empty plaintext.
	MinSize = NonceSize + TagSize
)

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// Parts is a decoded envelope.
type Parts struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// Sealed returns ciphertext || tag.
func (p Parts) Sealed() []byte {
	out := make([]byte, 0, len(p.Ciphertext)+len(p.Tag))
	out = append(out, p.Ciphertext...)
	return append(out, p.Tag...)
}

// Decode parses the text form of an envelope. Standard and URL-safe base64
// are accepted, with or without padding.
func Decode(s string) (Parts, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Parts{}, fmt.Errorf("%w: empty", core.ErrMalformedEnvelope)
	}

	var raw []byte
	var err error
	for _, enc := range encodings {
		if raw, err = enc.DecodeString(s); err == nil {
			break
		}
	}
	if err != nil {
		return Parts{}, fmt.Errorf("%w: not base64", core.ErrMalformedEnvelope)
	}
	if len(raw) < MinSize {
		return Parts{}, fmt.Errorf("%w: %d bytes, need at least %d", core.ErrMalformedEnvelope, len(raw), MinSize)
	}

	return Parts{
		Nonce:      raw[:NonceSize],
		Tag:        raw[NonceSize:MinSize],
		Ciphertext: raw[MinSize:],
	}, nil
}

// Encode is the inverse of Decode.
func Encode(p Parts) string {
	raw := make([]byte, 0, len(p.Nonce)+len(p.Tag)+len(p.Ciphertext))
	raw = append(raw, p.Nonce...)
	raw = append(raw, p.Tag...)
	raw = append(raw, p.Ciphertext...)
	return base64.StdEncoding.EncodeToString(raw)
}
