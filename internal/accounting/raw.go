package accounting

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cifra/internal/core"
)

// Entry is an encrypted journal entry.
type Entry struct {
	ID          string               `json:"id"`
	Amount      string               `json:"amount"`
	Type        core.TransactionType `json:"type"`
	AccountFrom *core.AccountRef     `json:"accountFrom"`
	AccountTo   *core.AccountRef     `json:"accountTo"`
	Description string               `json:"description,omitempty"`
	CreatedAt   string               `json:"created_at"`
	Category    core.CategoryRef     `json:"category"`
}

// CurrentAccount is an account with its live, encrypted balance.
type CurrentAccount struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	AccountType     string  `json:"account_type"`
	CurrentBalance  string  `json:"currentBalance"`
	StartingBalance *string `json:"startingBalance"`
}

// CurrentMonth is the book of the month in progress, computed from the
// live ledger.
type CurrentMonth struct {
	Transactions []Entry          `json:"transactions"`
	Accounts     []CurrentAccount `json:"accounts"`
}

type SnapshotAccount struct {
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
}

// BalanceSnapshot is the encrypted balance of an account at month close.
type BalanceSnapshot struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	Balance         string          `json:"balance"`
	Account         SnapshotAccount `json:"account"`
	StartingBalance *string         `json:"startingBalance"`
}

// Historical is a closed month as stored by the server.
type Historical struct {
	ID                      string            `json:"id"`
	Year                    int               `json:"year"`
	Month                   int               `json:"month"`
	CurrencyCode            string            `json:"currency_code"`
	TotalIncome             string            `json:"total_income"`
	TotalExpense            string            `json:"total_expense"`
	TotalSavings            string            `json:"total_savings"`
	CashFlow                string            `json:"cash_flow"`
	AccumulatedCash         string            `json:"accumulated_cash"`
	AccountBalanceSnapshots []BalanceSnapshot `json:"account_balance_snapshots"`
	JournalEntries          []Entry           `json:"journal_entries"`
}

func decode[T any](body []byte, what string) (*T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, core.ErrRawInputMissing
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return &v, nil
}

// ParseCurrentMonth decodes a current-month book.
func ParseCurrentMonth(body []byte) (*CurrentMonth, error) {
	return decode[CurrentMonth](body, "current month accounting")
}

// ParseHistorical decodes a closed-month book.
func ParseHistorical(body []byte) (*Historical, error) {
	return decode[Historical](body, "historical accounting")
}
