package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cifra/internal/amqp"
	"cifra/internal/session"
	"cifra/internal/storage"
	"cifra/internal/worker"
)

func newInboxCommand() *cobra.Command {
	inboxCmd := &cobra.Command{
		Use:   "inbox",
		Short: "Inspect and feed the raw payload inbox",
	}
	inboxCmd.AddCommand(newInboxListCommand())
	inboxCmd.AddCommand(newInboxPublishCommand())
	inboxCmd.AddCommand(newInboxDrainCommand())
	return inboxCmd
}

func newInboxListCommand() *cobra.Command {
	var (
		limit       int
		pendingOnly bool
		format      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored payloads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return fmt.Errorf("invalid --format %q: must be json or table", format)
			}
			rt, err := loadRuntime("")
			if err != nil {
				return err
			}
			inbox, err := rt.OpenInbox()
			if err != nil {
				return err
			}
			defer inbox.Close()

			var payloads []storage.Payload
			if pendingOnly {
				payloads, err = inbox.ListPending(cmd.Context(), limit)
			} else {
				payloads, err = inbox.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if payloads == nil {
					payloads = []storage.Payload{}
				}
				return enc.Encode(payloads)
			}
			return renderPayloads(cmd, payloads)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of payloads")
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "only payloads still waiting to be processed")
	cmd.Flags().StringVar(&format, "format", "table", "output format: json or table")
	return cmd
}

func renderPayloads(cmd *cobra.Command, payloads []storage.Payload) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tPERIOD\tRECEIVED\tSTATUS\tATTEMPTS\tLAST ERROR")
	for _, p := range payloads {
		status := "pending"
		switch {
		case p.ProcessedAt != nil:
			status = "processed"
		case !p.Pending():
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%04d-%02d %s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Kind, p.Year, p.Month+1, dash(p.Currency),
			p.ReceivedAt.Format("2006-01-02 15:04"), status, p.Attempts, dash(p.LastError))
	}
	return tw.Flush()
}

func newInboxPublishCommand() *cobra.Command {
	var (
		in       string
		kind     string
		year     int
		month    int
		currency string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a raw payload to the AMQP exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := session.ParseKind(kind); err != nil {
				return err
			}
			body, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			if !json.Valid(body) {
				return fmt.Errorf("%s is not valid JSON", in)
			}

			rt, err := loadRuntime("")
			if err != nil {
				return err
			}
			if !rt.Config.AMQPEnabled() {
				return fmt.Errorf("AMQP_URL is not configured")
			}

			y, m := rt.Calendar.CurrentPeriod()
			if year > 0 {
				y = year
			}
			if month >= 0 {
				m = month
			}

			client, err := amqp.NewClient(rt.Config.AMQPURL, rt.Config.AMQPExchange, rt.Config.AMQPQueue, rt.Logger)
			if err != nil {
				return err
			}
			defer client.Close()

			msg := amqp.NewRawPayloadMessage(kind, y, m, strings.ToUpper(currency), body)
			if err := client.PublishRawPayload(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "raw JSON input file, - for stdin")
	cmd.Flags().StringVar(&kind, "kind", "", "payload kind: snapshot, transactions, accounting_current or accounting_historical")
	cmd.Flags().IntVar(&year, "year", 0, "year of the payload (default current)")
	cmd.Flags().IntVar(&month, "month", -1, "0-based month of the payload (default current)")
	cmd.Flags().StringVar(&currency, "currency", "", "currency code of the payload")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newInboxDrainCommand() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Process pending payloads once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadKeyedRuntime(keyFile)
			if err != nil {
				return err
			}
			inbox, err := rt.OpenInbox()
			if err != nil {
				return err
			}
			defer inbox.Close()

			exporter, err := rt.NewExporter(cmd.Context())
			if err != nil {
				return err
			}

			w := worker.NewInboxWorker(worker.Config{
				Inbox:     inbox,
				Engine:    rt.Engine,
				Exporter:  exporter,
				BatchSize: rt.Config.DrainBatchSize,
				Retention: rt.Config.InboxRetention,
				Metrics:   rt.Recorder(),
				Logger:    rt.Logger,
			})
			n, err := w.Drain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d payload(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFile, "key-file", "", "file holding the hex key (default KEY_HEX)")
	return cmd
}
