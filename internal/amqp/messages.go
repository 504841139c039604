package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid raw payload message")

// RawPayloadMessage carries one raw, still encrypted transform input from
// the fetching side to the worker. Month is 0-based.
type RawPayloadMessage struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Currency  string          `json:"currency"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRawPayloadMessage creates a message with a fresh ID.
func NewRawPayloadMessage(kind string, year, month int, currency string, payload []byte) *RawPayloadMessage {
	return &RawPayloadMessage{
		ID:        uuid.New(),
		Kind:      kind,
		Year:      year,
		Month:     month,
		Currency:  currency,
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RawPayloadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RawPayloadMessageFromJSON decodes and checks a message.
func RawPayloadMessageFromJSON(data []byte) (*RawPayloadMessage, error) {
	var msg RawPayloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch {
	case msg.ID == uuid.Nil:
		return nil, fmt.Errorf("%w: missing id", ErrInvalidMessage)
	case msg.Kind == "":
		return nil, fmt.Errorf("%w: missing kind", ErrInvalidMessage)
	case len(msg.Payload) == 0 || string(msg.Payload) == "null":
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidMessage)
	}
	return &msg, nil
}
