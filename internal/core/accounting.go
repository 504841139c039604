package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountRef identifies an account attached to a journal entry.
type AccountRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategoryRef identifies the category of a journal entry.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AccountBalance is the decrypted balance of one account for a month.
type AccountBalance struct {
	ID              string          `json:"id"`
	AccountName     string          `json:"accountName"`
	AccountType     string          `json:"accountType"`
	Balance         decimal.Decimal `json:"balance"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

// JournalEntry is one decrypted ledger movement.
type JournalEntry struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	AccountFrom *AccountRef     `json:"accountFrom,omitempty"`
	AccountTo   *AccountRef     `json:"accountTo,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Category    CategoryRef     `json:"category"`
}

// AccountingSummary is the monthly book of a user: totals, balances and the
// journal that produced them.
type AccountingSummary struct {
	TotalIncome     decimal.Decimal  `json:"totalIncome"`
	TotalExpense    decimal.Decimal  `json:"totalExpense"`
	TotalSavings    decimal.Decimal  `json:"totalSavings"`
	CashFlow        decimal.Decimal  `json:"cashFlow"`
	AccumulatedCash decimal.Decimal  `json:"accumulatedCash"`
	AccountBalances []AccountBalance `json:"accountBalances"`
	JournalEntries  []JournalEntry   `json:"journalEntries"`
}

// Week is a Monday-start week clipped to the boundaries of its month.
type Week struct {
	ID        string    `json:"id"`
	Number    int       `json:"weekNumber"`
	DateRange string    `json:"dateRange"`
	Start     time.Time `json:"startDate"`
	End       time.Time `json:"endDate"`
}

// WeeklyItem is a journal entry placed in its week.
type WeeklyItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	WeekID      string          `json:"weekId"`
	CreatedAt   time.Time       `json:"createdAt"`
	Account     string          `json:"account"`
	Category    CategoryRef     `json:"category"`
}

// WeeklyCategory groups weekly items under one heading.
type WeeklyCategory struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Items []WeeklyItem `json:"items"`
}

// WeeklyCashFlow is the week-by-week view of a month.
type WeeklyCashFlow struct {
	Weeks      []Week           `json:"weeks"`
	Categories []WeeklyCategory `json:"categories"`
}
