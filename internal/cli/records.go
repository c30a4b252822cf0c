package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/audit"
	"github.com/ppiankov/redline/internal/model"
)

var (
	recordsLimit int
	recordsJSON  bool
)

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsGetCmd, recordsListCmd, recordsSearchCmd, recordsEventsCmd, recordsReconcileCmd)
	recordsCmd.PersistentFlags().BoolVar(&recordsJSON, "json", false, "Print JSON instead of a table")
	recordsListCmd.Flags().IntVarP(&recordsLimit, "limit", "n", audit.DefaultListLimit, "Number of recent records to show")
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Look up audit records",
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <trace_id>",
	Short: "Show the current state of a trace with its review timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		rec, err := b.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		events, err := b.Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		h := audit.History{Record: rec, Events: events}
		if recordsJSON {
			out, err := audit.FormatJSON(h)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(h))
		return nil
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent record lines, newest last",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		recs, err := b.List(cmd.Context(), recordsLimit)
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), recs)
	},
}

var recordsSearchCmd = &cobra.Command{
	Use:   "search <low|medium|high>",
	Short: "List current records at a risk level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		recs, err := b.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), recs)
	},
}

var recordsEventsCmd = &cobra.Command{
	Use:   "events <trace_id>",
	Short: "List the review events of a trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		events, err := b.Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if recordsJSON {
			return printJSON(cmd.OutOrStdout(), events)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tACTION\tREVIEWER\tCOMMENT")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.CreatedAt, ev.Action, ev.Reviewer, ev.Comment)
		}
		return w.Flush()
	},
}

var recordsReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report traces whose review events lag their record revisions",
	Long: "A review appends the updated record and then its event. A crash between\n" +
		"the two leaves a reviewed record without an event. This lists such traces\n" +
		"and exits 1 when any are found. Local journals only.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		svc, _, err := openDomain(log)
		if err != nil {
			return err
		}
		defer svc.Close()

		gaps, err := svc.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		if len(gaps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "OK: review events consistent")
			return nil
		}
		for _, g := range gaps {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d review(s), %d event(s)\n", g.TraceID, g.Reviews, g.Events)
		}
		svc.Close()
		os.Exit(1)
		return nil
	},
}

func printRecords(w io.Writer, recs []model.AuditRecord) error {
	if recordsJSON {
		return printJSON(w, recs)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACE\tCREATED\tRISK\tSTATUS\tFLAGGED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.TraceID, r.CreatedAt, r.Response.RiskLevel, r.ReviewStatus, len(r.Response.FlaggedPhrases))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
