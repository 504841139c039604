package session

import (
	"fmt"
	"time"
)

// State is the lifecycle stage of one transform request.
type State int

const (
	Idle State = iota
	AwaitingKey
	Decrypting
	Joining
	Ready
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingKey:
		return "awaiting_key"
	case Decrypting:
		return "decrypting"
	case Joining:
		return "joining"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Errored; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Kind names a transform.
type Kind string

const (
	KindSnapshot             Kind = "snapshot"
	KindTransactions         Kind = "transactions"
	KindAccountingCurrent    Kind = "accounting_current"
	KindAccountingHistorical Kind = "accounting_historical"
)

// Slot is the period a request is about. Month is 0-based.
type Slot struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Currency string `json:"currency"`
}

// RequestKey identifies a request slot. A newer request with the same key
// supersedes the one in flight.
type RequestKey struct {
	Kind Kind `json:"kind"`
	Slot
}

func (k RequestKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%s", k.Kind, k.Year, k.Month, k.Currency)
}

// Status is the last known state of a request slot.
type Status struct {
	Key       RequestKey `json:"key"`
	State     State      `json:"state"`
	RequestID string     `json:"requestId"`
	Error     string     `json:"error,omitempty"`
	Failures  int        `json:"failures"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
