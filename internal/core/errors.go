package core

import (
	"context"
	"errors"
	"fmt"
)

// Key errors
var (
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrKeyUnavailable     = errors.New("key unavailable")
)

// Per-value errors. These are absorbed by the transforms and never abort a
// snapshot or a batch.
var (
	ErrMalformedEnvelope       = errors.New("malformed envelope")
	ErrAuthenticationFailure   = errors.New("authentication failure")
	ErrNonNumericPlaintext     = errors.New("non-numeric plaintext")
	ErrLegacyPlaintextFallback = errors.New("legacy plaintext fallback")
)

// Input errors
var (
	ErrRawInputMissing = errors.New("raw input missing")
	ErrInvalidRecord   = errors.New("invalid record")
)

// Error kinds used as log and metric labels.
const (
	KindOK              = "ok"
	KindInvalidKey      = "invalid_key_material"
	KindKeyUnavailable  = "key_unavailable"
	KindMalformed       = "malformed_envelope"
	KindAuthentication  = "authentication_failure"
	KindNonNumeric      = "non_numeric_plaintext"
	KindLegacyPlaintext = "legacy_plaintext_fallback"
	KindRawInputMissing = "raw_input_missing"
	KindInvalidRecord   = "invalid_record"
	KindCanceled        = "canceled"
	KindUnknown         = "unknown"
)

// ErrorKind maps err onto the error taxonomy. A nil error is KindOK. A
// legacy fallback is reported as such even though it wraps the decryption
// failure that triggered it.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrLegacyPlaintextFallback):
		return KindLegacyPlaintext
	case errors.Is(err, ErrInvalidKeyMaterial):
		return KindInvalidKey
	case errors.Is(err, ErrKeyUnavailable):
		return KindKeyUnavailable
	case errors.Is(err, ErrMalformedEnvelope):
		return KindMalformed
	case errors.Is(err, ErrAuthenticationFailure):
		return KindAuthentication
	case errors.Is(err, ErrNonNumericPlaintext):
		return KindNonNumeric
	case errors.Is(err, ErrRawInputMissing):
		return KindRawInputMissing
	case errors.Is(err, ErrInvalidRecord):
		return KindInvalidRecord
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// FieldError records a failure that was absorbed while resolving one field
// of one record.
type FieldError struct {
	RecordID string `json:"recordId,omitempty"`
	Field    string `json:"field"`
	Err      error  `json:"-"`
}

func (e FieldError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("record %s field %s: %v", e.RecordID, e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// Kind returns the taxonomy label of the underlying error.
func (e FieldError) Kind() string { return ErrorKind(e.Err) }
