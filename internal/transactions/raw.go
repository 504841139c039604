package transactions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"cifra/internal/core"
)

// Batch is a still-encrypted transaction listing.
type Batch struct {
	Incomes  []Record `json:"incomes"`
	Expenses []Record `json:"expenses"`
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.Incomes) + len(b.Expenses) }

type Category struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	ImageID string `json:"image_id,omitempty"`
}

type Account struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AccountType  string `json:"account_type"`
	CurrencyCode string `json:"currency_code"`
}

// Record is one income or expense row. Amount is always an envelope;
// Description and Message may predate field-level encryption.
type Record struct {
	ID           string               `json:"id"`
	Amount       string               `json:"amount"`
	Description  string               `json:"description,omitempty"`
	Message      string               `json:"message,omitempty"`
	CurrencyCode string               `json:"currency_code"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
	Type         core.TransactionType `json:"type"`
	Category     Category             `json:"category"`
	ToAccount    *Account             `json:"to_account,omitempty"`
	FromAccount  *Account             `json:"from_account,omitempty"`
	Tags         []core.Tag           `json:"tags,omitempty"`
}

// Parse decodes a transaction listing. A JSON null fails with
// core.ErrRawInputMissing.
func Parse(r io.Reader) (*Batch, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return ParseBytes(body)
}

// ParseBytes is Parse on an in-memory body.
func ParseBytes(body []byte) (*Batch, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, core.ErrRawInputMissing
	}
	var b Batch
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return &b, nil
}
