package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/ghbridge/pkg/engine"
)

func newPatternsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns [query]",
		Short: "List known patterns, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			names := e.ListPatterns(query)
			if opts.jsonOut {
				if names == nil {
					names = []string{}
				}
				return printJSON(cmd.OutOrStdout(), names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <description>",
		Short: "Show which pattern a description maps to, without touching the canvas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			description := strings.Join(args, " ")
			pattern, ok := e.Classify(description)
			scores := e.ClassifyAll(description)

			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"description": description,
					"matched":     ok,
					"pattern":     pattern,
					"scores":      scores,
				})
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "no pattern matched")
				return nil
			}
			fmt.Fprintf(out, "pattern: %s\n", pattern)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RULE\tPATTERN\tMATCHES")
			for _, s := range scores {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", s.Rule, s.Pattern, s.Matches)
			}
			return tw.Flush()
		},
	}
}

func newMaterializeCmd(opts *options) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "materialize [description]",
		Short: "Classify a description and build the matching pattern on the canvas",
		Example: `  ghbridge materialize "a circle on the xy plane"
  ghbridge materialize --pattern "Extruded Circle" --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			if pattern == "" && strings.TrimSpace(description) == "" {
				return errors.New("either a description or --pattern is required")
			}
			e, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}

			var sum engine.Summary
			if pattern != "" {
				sum, err = e.MaterializePattern(cmd.Context(), pattern)
			} else {
				sum, err = e.ClassifyAndMaterialize(cmd.Context(), description)
			}
			if sum.Pattern != "" {
				if printErr := printSummary(cmd, opts, sum); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "materialize this pattern by name instead of classifying")
	return cmd
}

func printSummary(cmd *cobra.Command, opts *options, sum engine.Summary) error {
	if opts.jsonOut {
		return printJSON(cmd.OutOrStdout(), sum)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pattern: %s (%d nodes, %d wires)\n", sum.Pattern, sum.NodeCount, sum.EdgeCount)
	fmt.Fprintf(out, "result:  %s\n", sum.ResultID)
	if sum.Failure != nil {
		fmt.Fprintf(out, "failed:  %s %s: %s\n", sum.Failure.Phase, sum.Failure.TemplateID, sum.Failure.Reason)
	}
	return nil
}

func newConnectCmd(opts *options) *cobra.Command {
	var req engine.ConnectRequest
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "connect <source-id> <target-id>",
		Short: "Wire two existing components, resolving port names",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			req.SourceID, req.TargetID = args[0], args[1]

			var res engine.ConnectResult
			if validateOnly {
				res, err = e.ValidateConnection(cmd.Context(), req)
			} else {
				res, err = e.ResolveAndConnect(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			verb := "connected"
			if !res.Connected {
				verb = "compatible"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s.%s -> %s.%s (rule %s)\n",
				verb, res.SourceID, res.SourcePort, res.TargetID, res.TargetPort, res.Rule)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.SourcePort, "source-port", "", "output port name, alias or index")
	cmd.Flags().StringVar(&req.TargetPort, "target-port", "", "input port name, alias or index")
	cmd.Flags().BoolVar(&validateOnly, "validate", false, "check compatibility without wiring")
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Analyze the canvas and suggest fixes",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			report, err := e.AnalyzeHealth(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d/100): %s\n", report.Status, report.Summary.HealthScore, report.StatusDescription)
			fmt.Fprintf(out, "components: %d  connections: %d  errors: %d  warnings: %d  remarks: %d\n",
				report.Summary.TotalComponents, report.Summary.TotalConnections,
				report.Summary.Errors, report.Summary.Warnings, report.Summary.Remarks)
			for _, s := range report.Suggestions {
				fmt.Fprintf(out, "- [%s] %s: %s\n", s.Category, s.Description, s.Suggestion)
			}
			return nil
		},
	}
}
