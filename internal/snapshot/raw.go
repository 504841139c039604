package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"cifra/internal/core"
)

// Response is the envelope the analytics endpoint answers with.
type Response struct {
	Data    *Data  `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Data is a still-encrypted analytics snapshot. Every string documented as
// an aggregate holds zero or more comma-joined envelopes.
type Data struct {
	Currency          string          `json:"currency"`
	Locale            string          `json:"locale,omitempty"`
	Language          string          `json:"language"`
	ExpenseCategories []core.Category `json:"expenseCategories"`
	IncomeCategories  []core.Category `json:"incomeCategories"`
	MonthData         MonthData       `json:"monthData"`
	YearData          YearData        `json:"yearData"`
}

type Metric struct {
	Amount    string  `json:"amount"`
	Variation float64 `json:"variation"`
}

type Budget struct {
	Used     string  `json:"used"`
	Budgeted *string `json:"budgeted"`
}

type LastTransaction struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
}

type CategoryAmount struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Color    string `json:"color"`
}

type DailyCashFlow struct {
	Day      string `json:"day"`
	Expenses string `json:"expenses"`
	Income   string `json:"income"`
}

type MonthData struct {
	Month              int               `json:"month"`
	Income             Metric            `json:"income"`
	Expense            Metric            `json:"expense"`
	Savings            Metric            `json:"savings"`
	CurrentMonthBudget Budget            `json:"currentMonthBudget"`
	Budget             Budget            `json:"budget"`
	LastTransactions   []LastTransaction `json:"lastTransactions"`
	ExpensesByCategory []CategoryAmount  `json:"expensesByCategory"`
	IncomeByCategory   []CategoryAmount  `json:"incomeByCategory"`
	DailyCashFlow      []DailyCashFlow   `json:"dailyCashFlow"`
}

type AnnualSummary struct {
	Month   int    `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Savings string `json:"savings"`
}

// CurrentMonthData is the override for the month in progress.
type CurrentMonthData struct {
	Month   int     `json:"month"`
	Income  *string `json:"income"`
	Expense *string `json:"expense"`
	Savings *string `json:"savings"`
}

type CashFlow struct {
	Month       MonthIndex `json:"month"`
	Income      string     `json:"income"`
	Expenses    string     `json:"expenses"`
	Fixed       string     `json:"fixed"`
	Flow        string     `json:"flow"`
	Accumulated string     `json:"accumulated"`
}

type CategoryMonth struct {
	Month       int    `json:"month"`
	Amount      string `json:"amount"`
	BudgetTotal string `json:"budgetTotal"`
}

type CategoryCurrentMonth struct {
	Month    int     `json:"month"`
	Expenses *string `json:"expenses"`
}

type CategoryBudgetAnalysis struct {
	ExpenseCategoryID           string                `json:"expenseCategoryId"`
	MonthlyData                 []CategoryMonth       `json:"monthlyData"`
	CurrentMonthDataForCategory *CategoryCurrentMonth `json:"currentMonthDataForCategory"`
}

type YearData struct {
	Year                   int                    `json:"year"`
	AnnualSummary          []AnnualSummary        `json:"annualSummary"`
	CurrentMonthData       *CurrentMonthData      `json:"currentMonthData"`
	CashFlow               []CashFlow             `json:"cashFlow"`
	CategoryBudgetAnalysis CategoryBudgetAnalysis `json:"categoryBudgetAnalysis"`
}

// MonthIndex is a month number sent either as a JSON number or as a
// numeric string.
type MonthIndex int

func (m *MonthIndex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("month index %q: %w", string(b), err)
	}
	*m = MonthIndex(n)
	return nil
}

// Parse decodes a snapshot from r. Both the full endpoint response and a
// bare data object are accepted. An unsuccessful response or a body
// without data fails with core.ErrRawInputMissing.
func Parse(r io.Reader) (*Data, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseBytes(body)
}

// ParseBytes is Parse on an in-memory body.
func ParseBytes(body []byte) (*Data, error) {
	var probe struct {
		Data      *Data           `json:"data"`
		Success   *bool           `json:"success"`
		Message   string          `json:"message"`
		MonthData json.RawMessage `json:"monthData"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	switch {
	case probe.Success != nil && !*probe.Success:
		return nil, fmt.Errorf("%w: %s", core.ErrRawInputMissing, probe.Message)
	case probe.Data != nil:
		return probe.Data, nil
	case len(probe.MonthData) > 0 && !bytes.Equal(probe.MonthData, []byte("null")):
		var d Data
		if err := json.Unmarshal(body, &d); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return &d, nil
	default:
		return nil, core.ErrRawInputMissing
	}
}
