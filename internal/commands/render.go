package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"cifra/internal/calendar"
	"cifra/internal/core"
	"cifra/internal/session"
)

type failureView struct {
	RecordID string `json:"recordId,omitempty"`
	Field    string `json:"field"`
	Kind     string `json:"kind"`
}

// outputView is the printable form of a decrypted payload.
type outputView struct {
	Kind         session.Kind            `json:"kind"`
	Period       session.Slot            `json:"period"`
	Snapshot     *core.Snapshot          `json:"snapshot,omitempty"`
	Transactions []core.Transaction      `json:"transactions,omitempty"`
	Summary      *core.AccountingSummary `json:"summary,omitempty"`
	Weekly       *core.WeeklyCashFlow    `json:"weekly,omitempty"`
	Failures     []failureView           `json:"failures"`
}

func newOutputView(out *session.Output) *outputView {
	view := &outputView{Kind: out.Kind, Period: out.Slot, Failures: []failureView{}}
	switch {
	case out.Snapshot != nil:
		view.Snapshot = out.Snapshot.Snapshot
	case out.Transactions != nil:
		view.Transactions = out.Transactions.Transactions
	case out.Accounting != nil:
		view.Summary = out.Accounting.Summary
	}
	for _, fe := range out.Failures() {
		view.Failures = append(view.Failures, failureView{RecordID: fe.RecordID, Field: fe.Field, Kind: fe.Kind()})
	}
	return view
}

func renderJSON(w io.Writer, view *outputView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func renderTable(w io.Writer, view *outputView, cal *calendar.Context) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	switch {
	case view.Snapshot != nil:
		renderSnapshot(tw, view.Snapshot, cal)
	case view.Summary != nil:
		renderSummary(tw, view.Summary, cal)
		if view.Weekly != nil {
			fmt.Fprintln(tw)
			renderWeekly(tw, view.Weekly, cal)
		}
	default:
		renderTransactions(tw, view.Transactions, cal)
	}

	if len(view.Failures) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "RECORD\tFIELD\tFAILURE")
		for _, f := range view.Failures {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", dash(f.RecordID), f.Field, f.Kind)
		}
	}
	return tw.Flush()
}

func renderSnapshot(w io.Writer, s *core.Snapshot, cal *calendar.Context) {
	m := s.Monthly
	fmt.Fprintln(w, "METRIC\tAMOUNT\tVARIATION %")
	fmt.Fprintf(w, "income\t%s\t%s\n", cal.FormatAmount(m.Income.Amount), m.Income.VariationPct.StringFixed(2))
	fmt.Fprintf(w, "expense\t%s\t%s\n", cal.FormatAmount(m.Expense.Amount), m.Expense.VariationPct.StringFixed(2))
	fmt.Fprintf(w, "savings\t%s\t%s\n", cal.FormatAmount(m.Savings.Amount), m.Savings.VariationPct.StringFixed(2))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSE\tSAVINGS")
	for _, ms := range s.Annual.MonthlySeries.Values() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ms.Month+1,
			cal.FormatAmount(ms.Income), cal.FormatAmount(ms.Expense), cal.FormatAmount(ms.Savings))
	}
}

func renderTransactions(w io.Writer, txs []core.Transaction, cal *calendar.Context) {
	fmt.Fprintln(w, "DATE\tTYPE\tTITLE\tCATEGORY\tACCOUNT\tAMOUNT")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			cal.FormatDate(tx.CreatedAt), tx.Type, tx.Title, dash(tx.Category), dash(tx.Account), cal.FormatAmount(tx.Amount))
	}
}

func renderSummary(w io.Writer, s *core.AccountingSummary, cal *calendar.Context) {
	fmt.Fprintln(w, "TOTAL\tAMOUNT")
	fmt.Fprintf(w, "income\t%s\n", cal.FormatAmount(s.TotalIncome))
	fmt.Fprintf(w, "expense\t%s\n", cal.FormatAmount(s.TotalExpense))
	fmt.Fprintf(w, "savings\t%s\n", cal.FormatAmount(s.TotalSavings))
	fmt.Fprintf(w, "cash flow\t%s\n", cal.FormatAmount(s.CashFlow))
	fmt.Fprintf(w, "accumulated\t%s\n", cal.FormatAmount(s.AccumulatedCash))

	if len(s.AccountBalances) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ACCOUNT\tTYPE\tSTARTING\tBALANCE")
		for _, b := range s.AccountBalances {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.AccountName, dash(b.AccountType),
				cal.FormatAmount(b.StartingBalance), cal.FormatAmount(b.Balance))
		}
	}

	if len(s.JournalEntries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "DATE\tTYPE\tCATEGORY\tDESCRIPTION\tAMOUNT")
		for _, e := range s.JournalEntries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", cal.FormatDate(e.CreatedAt), e.Type,
				dash(e.Category.Name), dash(e.Description), cal.FormatAmount(e.Amount))
		}
	}
}

func renderWeekly(w io.Writer, wk *core.WeeklyCashFlow, cal *calendar.Context) {
	fmt.Fprintln(w, "WEEK\tDATES\tCATEGORY\tITEM\tAMOUNT")
	for _, week := range wk.Weeks {
		for _, c := range wk.Categories {
			for _, it := range c.Items {
				if it.WeekID != week.ID {
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", week.Number, week.DateRange, c.Name,
					dash(it.Description), cal.FormatAmount(it.Amount))
			}
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
