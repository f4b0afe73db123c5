package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/ghbridge/pkg/client"
)

func newJournalCmd(opts *options) *cobra.Command {
	var limit int
	var stats bool

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent materializations recorded by a running ghbridge-mcp",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient(opts.apiURL)
			out := cmd.OutOrStdout()

			if stats {
				rows, err := c.PatternStats(cmd.Context())
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(out, rows)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PATTERN\tRUNS\tFAILURES\tLAST RUN")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Pattern, r.Runs, r.Failures, r.LastRunAt.Format(time.RFC3339))
				}
				return tw.Flush()
			}

			records, err := c.Journal(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(out, records)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tPATTERN\tNODES\tWIRES\tRESULT")
			for _, r := range records {
				result := "ok"
				if !r.Succeeded {
					result = fmt.Sprintf("failed at %s %s: %s", r.FailedPhase, r.FailedRef, r.FailureReason)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.StartedAt.Format(time.RFC3339), r.Pattern, r.NodeCount, r.EdgeCount, result)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	cmd.Flags().BoolVar(&stats, "stats", false, "aggregate runs per pattern")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report host connectivity as seen by a running ghbridge-mcp",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.NewClient(opts.apiURL).Ping(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), status)
			}
			knowledgeNote := ""
			if status.KnowledgeDegraded {
				knowledgeNote = " (degraded)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "host: %s\nknowledge: %s%s\n", status.Status, status.KnowledgeSource, knowledgeNote)
			if status.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", status.Error)
			}
			return nil
		},
	}
}
