package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

// MonthsPerYear is the length of every annual series. Months are 0-based.
const MonthsPerYear = 12

type (
	TransactionType string

	// Metric is a monthly figure together with its variation against the
	// previous month.
	Metric struct {
		Amount       decimal.Decimal `json:"amount"`
		VariationPct decimal.Decimal `json:"variationPct"`
	}

	// Budget holds the spent amount and the optional budgeted ceiling.
	Budget struct {
		Used     decimal.Decimal  `json:"used"`
		Budgeted *decimal.Decimal `json:"budgeted"`
	}

	RecentTransaction struct {
		ID          string          `json:"id"`
		Date        string          `json:"date"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
	}

	CategoryAmount struct {
		ID       string          `json:"id"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Color    string          `json:"color"`
	}

	IncomeCategory struct {
		ID         string          `json:"id"`
		Category   string          `json:"category"`
		Amount     decimal.Decimal `json:"amount"`
		Percentage decimal.Decimal `json:"percentage"`
		Color      string          `json:"color"`
	}

	DailyCashFlow struct {
		Day     string          `json:"day"`
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
	}

	MonthlySnapshot struct {
		Month              int                 `json:"month"` // 0-11
		Income             Metric              `json:"income"`
		Expense            Metric              `json:"expense"`
		Savings            Metric              `json:"savings"`
		Budget             Budget              `json:"budget"`
		CurrentMonthBudget Budget              `json:"currentMonthBudget"`
		RecentTransactions []RecentTransaction `json:"recentTransactions"`
		CategoryBreakdown  []CategoryAmount    `json:"categoryBreakdown"`
		IncomeByCategory   []IncomeCategory    `json:"incomeByCategory"`
		DailyCashFlow      []DailyCashFlow     `json:"dailyCashFlow"`
	}

	MonthSummary struct {
		Month   int             `json:"month"`
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Savings decimal.Decimal `json:"savings"`
	}

	CashFlowEntry struct {
		Month       int             `json:"month"`
		Income      decimal.Decimal `json:"income"`
		Expenses    decimal.Decimal `json:"expenses"`
		Fixed       decimal.Decimal `json:"fixed"`
		Flow        decimal.Decimal `json:"flow"`
		Accumulated decimal.Decimal `json:"accumulated"`
	}

	CategoryBudgetPoint struct {
		Month       int             `json:"month"`
		Amount      decimal.Decimal `json:"amount"`
		BudgetTotal decimal.Decimal `json:"budgetTotal"`
	}

	CategoryBudgetAnalysis struct {
		ExpenseCategoryID string                `json:"expenseCategoryId"`
		TotalSpent        decimal.Decimal       `json:"totalSpent"`
		MonthlyAverage    decimal.Decimal       `json:"monthlyAverage"`
		MonthlyData       []CategoryBudgetPoint `json:"monthlyData"`
	}

	AnnualSnapshot struct {
		Year                   int                    `json:"year"`
		MonthlySeries          Series[MonthSummary]   `json:"monthlySeries"`
		CashFlowSeries         Series[CashFlowEntry]  `json:"cashFlowSeries"`
		CategoryBudgetAnalysis CategoryBudgetAnalysis `json:"categoryBudgetAnalysis"`
	}

	// Category is a selectable category option.
	Category struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}

	// Snapshot is a fully decrypted analytics snapshot for one
	// (year, month, currency).
	Snapshot struct {
		Currency          string          `json:"currency"`
		Locale            string          `json:"locale"`
		Language          string          `json:"language"`
		ExpenseCategories []Category      `json:"expenseCategories"`
		IncomeCategories  []Category      `json:"incomeCategories"`
		Monthly           MonthlySnapshot `json:"monthly"`
		Annual            AnnualSnapshot  `json:"annual"`
	}

	Tag struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Transaction is a display-ready ledger row.
	Transaction struct {
		ID           string          `json:"id"`
		Title        string          `json:"title"`
		Type         TransactionType `json:"type"`
		Amount       decimal.Decimal `json:"amount"`
		Description  string          `json:"description,omitempty"`
		Message      string          `json:"message,omitempty"`
		Category     string          `json:"category"`
		CategoryID   string          `json:"categoryId"`
		Account      string          `json:"account"`
		CurrencyCode string          `json:"currencyCode"`
		Tags         []Tag           `json:"tags"`
		CreatedAt    time.Time       `json:"createdAt"`
	}
)

// ValidMonth reports whether m is a 0-based month index.
func ValidMonth(m int) bool {
	return m >= 0 && m < MonthsPerYear
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}
