package google

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cifra/internal/calendar"
	"cifra/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing spreadsheet ID" {
		t.Fatalf("New() error = %v, want missing spreadsheet ID", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: "/non/existent.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestClient_ExportWithoutService(t *testing.T) {
	c, err := newClient(Config{SpreadsheetID: "sheet"})
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}
	if c.sheetBase != "Transactions" {
		t.Errorf("default sheet base = %q", c.sheetBase)
	}
	_, err = c.ExportTransactions(context.Background(), 2025, 8, []core.Transaction{{ID: "t"}})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("ExportTransactions() error = %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Transactions", "2025 Transactions"},
		{" Transactions ", "2025 Transactions"},
		{"2024 Transactions", "2024 Transactions"},
		{"1234Transactions", "2025 1234Transactions"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, 2025); got != tt.want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestRows(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	cal := calendar.New(calendar.WithLocation(lima))
	txs := []core.Transaction{
		{
			ID:        "e1",
			Title:     "Groceries",
			Type:      core.Expense,
			Amount:    decimal.RequireFromString("35.9"),
			Category:  "Food",
			Account:   "Card",
			CreatedAt: time.Date(2025, 9, 2, 3, 0, 0, 0, time.UTC),
		},
	}

	got := rows(txs, cal)
	if len(got) != 1 || len(got[0]) != len(Header) {
		t.Fatalf("rows() = %v", got)
	}
	want := []any{"2025-09-01", "expense", "Food", "Card", "Groceries", "35.90"}
	for i := range want {
		if got[0][i] != want[i] {
			t.Errorf("column %v = %v, want %v", Header[i], got[0][i], want[i])
		}
	}
}
