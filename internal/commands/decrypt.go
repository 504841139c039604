package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cifra/internal/accounting"
	"cifra/internal/session"
)

type decryptOptions struct {
	in       string
	keyFile  string
	format   string
	year     int
	month    int
	currency string
	kind     string
	weekly   bool
}

func newDecryptCommand() *cobra.Command {
	decryptCmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a raw payload",
	}
	decryptCmd.AddCommand(newDecryptKindCommand("snapshot", "Decrypt an analytics snapshot", session.KindSnapshot))
	decryptCmd.AddCommand(newDecryptKindCommand("transactions", "Decrypt a transaction listing", session.KindTransactions))
	decryptCmd.AddCommand(newDecryptKindCommand("accounting", "Decrypt an accounting book", ""))
	return decryptCmd
}

func newDecryptKindCommand(use, short string, kind session.Kind) *cobra.Command {
	opts := &decryptOptions{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k := kind
			if k == "" {
				switch opts.kind {
				case "current":
					k = session.KindAccountingCurrent
				case "historical":
					k = session.KindAccountingHistorical
				default:
					return fmt.Errorf("invalid --kind %q: must be current or historical", opts.kind)
				}
			}
			return runDecrypt(cmd, k, opts)
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "-", "raw JSON input file, - for stdin")
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "file holding the hex key (default KEY_HEX)")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format: json or table")
	cmd.Flags().IntVar(&opts.year, "year", 0, "year of the payload (default current)")
	cmd.Flags().IntVar(&opts.month, "month", -1, "0-based month of the payload (default current)")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "currency code of the payload")
	if kind == "" {
		cmd.Flags().StringVar(&opts.kind, "kind", "current", "book kind: current or historical")
		cmd.Flags().BoolVar(&opts.weekly, "weekly", false, "also lay the journal out week by week")
	}
	return cmd
}

func runDecrypt(cmd *cobra.Command, kind session.Kind, opts *decryptOptions) error {
	switch opts.format {
	case "json", "table":
	default:
		return fmt.Errorf("invalid --format %q: must be json or table", opts.format)
	}

	body, err := readInput(cmd, opts.in)
	if err != nil {
		return err
	}

	rt, err := loadKeyedRuntime(opts.keyFile)
	if err != nil {
		return err
	}

	year, month := rt.Calendar.CurrentPeriod()
	if opts.year > 0 {
		year = opts.year
	}
	if opts.month >= 0 {
		month = opts.month
	}
	key := session.RequestKey{Kind: kind, Slot: session.Slot{Year: year, Month: month, Currency: opts.currency}}

	out, err := rt.Engine.Decrypt(cmd.Context(), key, body)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", kind, err)
	}

	view := newOutputView(out)
	if opts.weekly && out.Accounting != nil {
		weekly := accounting.WeeklyCashFlow(out.Accounting.Summary, out.Slot.Year, out.Slot.Month, rt.Calendar)
		view.Weekly = &weekly
	}

	if n := len(out.Failures()); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d value(s) could not be decrypted\n", n)
	}
	if opts.format == "table" {
		return renderTable(cmd.OutOrStdout(), view, rt.Calendar)
	}
	return renderJSON(cmd.OutOrStdout(), view)
}
