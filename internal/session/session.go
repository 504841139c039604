// Package session owns the key of the active user session and runs the
// decrypting transforms against it, one request per slot.
package session

import (
	"cifra/internal/core"
	"cifra/internal/keys"
	"cifra/internal/log"
)

// Session holds the key material of the signed-in user.
type Session struct {
	keyring *keys.Keyring
	logger  *log.Logger
}

// New creates a session without a key.
func New(keyring *keys.Keyring, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Discard()
	}
	return &Session{keyring: keyring, logger: logger.WithComponent(log.ComponentSession)}
}

// SetKey imports rawHex and makes it the session key. A failed import
// leaves the current key in place.
func (s *Session) SetKey(rawHex string) error {
	h, err := s.keyring.Set(rawHex)
	if err != nil {
		s.logger.Warn("Key import rejected",
			log.FieldOperation, log.OpImportKey,
			log.FieldErrorKind, core.ErrorKind(err))
		return err
	}
	s.logger.Info("Session key set",
		log.FieldOperation, log.OpImportKey,
		log.FieldKeyID, h.ID(),
		log.FieldGeneration, s.keyring.Generation())
	return nil
}

// Clear ends the session.
func (s *Session) Clear() {
	s.keyring.Clear()
	s.logger.Info("Session key cleared",
		log.FieldOperation, log.OpClearKey,
		log.FieldGeneration, s.keyring.Generation())
}

// Key returns the active handle or core.ErrKeyUnavailable.
func (s *Session) Key() (*keys.Handle, error) { return s.keyring.Current() }

// Ready reports whether a key is set.
func (s *Session) Ready() bool {
	_, err := s.keyring.Current()
	return err == nil
}

// Generation changes on every rotation or clear.
func (s *Session) Generation() uint64 { return s.keyring.Generation() }

// OnRotate registers fn to run after every rotation or clear.
func (s *Session) OnRotate(fn func()) {
	s.keyring.OnChange(func(*keys.Handle) { fn() })
}
