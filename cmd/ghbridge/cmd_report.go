package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/ghbridge/pkg/client"
)

func newReportCmd(opts *options) *cobra.Command {
	var since time.Duration
	var pattern, output string
	var failedOnly bool

	cmd := &cobra.Command{
		Use:       "report <journal|patterns>",
		Short:     "Download a CSV report over the materialization journal",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"journal", "patterns"},
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			rc, err := client.NewClient(opts.apiURL).Report(cmd.Context(), args[0], client.ReportOptions{
				From:       now.Add(-since),
				To:         now,
				Pattern:    pattern,
				FailedOnly: failedOnly,
			})
			if err != nil {
				return err
			}
			defer rc.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			_, err = io.Copy(w, rc)
			return err
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "report window ending now")
	cmd.Flags().StringVar(&pattern, "pattern", "", "only include this pattern (journal report)")
	cmd.Flags().BoolVar(&failedOnly, "failed-only", false, "only include failed runs (journal report)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
