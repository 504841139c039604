// Package google exports decrypted transactions to a Google Sheets
// spreadsheet, one sheet per year.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cifra/internal/calendar"
	"cifra/internal/core"
	"cifra/internal/log"
	ports "cifra/internal/sheets"
)

// Columns written per transaction.
var Header = []any{"Date", "Type", "Category", "Account", "Description", "Amount"}

type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the year is prefixed ("2025 Transactions").
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Calendar        *calendar.Context
	Logger          *log.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	cal           *calendar.Context
	logger        *log.Logger
}

var _ ports.TransactionExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	c.svc = svc
	return c, nil
}

func newClient(cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Transactions"
	}
	if cfg.Calendar == nil {
		cfg.Calendar = calendar.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Client{
		spreadsheetID: id,
		sheetBase:     base,
		cal:           cfg.Calendar,
		logger:        cfg.Logger.WithComponent(log.ComponentSheets),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over the file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, credentialsJSON, credentialsFile string) (*gsheet.Service, error) {
	credentialsJSON = strings.TrimSpace(credentialsJSON)
	credentialsFile = strings.TrimSpace(credentialsFile)
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var creds []byte
	switch {
	case credentialsJSON != "":
		creds = []byte(credentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ExportTransactions appends one row per transaction to the sheet of year.
func (c *Client) ExportTransactions(ctx context.Context, year, month int, txs []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if !core.ValidMonth(month) {
		return "", fmt.Errorf("invalid month: %d", month)
	}
	if len(txs) == 0 {
		return "", nil
	}

	sheet := yearPrefixedName(c.sheetBase, year)
	rng := fmt.Sprintf("%s!A:F", sheet)
	vr := &gsheet.ValueRange{Values: rows(txs, c.cal)}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Exported transactions",
		log.FieldOperation, log.OpExport,
		log.FieldYear, year,
		log.FieldMonth, month,
		log.FieldCount, len(txs),
		"range", ref)
	return ref, nil
}

// rows renders transactions as sheet rows in the column order of Header.
func rows(txs []core.Transaction, cal *calendar.Context) [][]any {
	out := make([][]any, 0, len(txs))
	for _, t := range txs {
		out = append(out, []any{
			cal.FormatDate(t.CreatedAt),
			string(t.Type),
			t.Category,
			t.Account,
			t.Title,
			t.Amount.StringFixed(2),
		})
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
