package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/ghbridge/pkg/archive"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

func newKBCmd(opts *options) *cobra.Command {
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and publish the knowledge base",
	}
	kbCmd.AddCommand(newKBExportCmd(opts), newKBPushCmd(opts), newKBHistoryCmd(opts))
	return kbCmd
}

func newKBExportCmd(opts *options) *cobra.Command {
	var output, format, snapshot, archiveDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the effective knowledge base as YAML or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var kb *knowledge.KnowledgeBase
			var err error
			if snapshot != "" {
				kb, err = archive.New(archiveDir, 0).Load(cmd.Context(), snapshot)
			} else {
				kb, err = loadKnowledge(cmd, opts)
			}
			if err != nil {
				return err
			}

			f := knowledge.Format(strings.ToLower(format))
			if f == "" && output != "" {
				f = knowledge.FormatFromPath(output)
			}
			data, err := kb.Marshal(f)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", kb.Source(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from file extension, else json)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "export an archived snapshot by key instead of the live sources")
	cmd.Flags().StringVar(&archiveDir, "archive-dir", os.Getenv("GHBRIDGE_ARCHIVE_DIR"), "knowledge archive directory")
	return cmd
}

func newKBHistoryCmd(opts *options) *cobra.Command {
	var archiveDir string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List knowledge snapshots archived by ghbridge-mcp",
		RunE: func(cmd *cobra.Command, args []string) error {
			if archiveDir == "" {
				return errors.New("--archive-dir or GHBRIDGE_ARCHIVE_DIR is required")
			}
			entries, err := archive.New(archiveDir, 0).List(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSOURCE\tSAVED\tBYTES")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.Key, e.Source, e.SavedAt.Format(time.RFC3339), e.Size)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&archiveDir, "archive-dir", os.Getenv("GHBRIDGE_ARCHIVE_DIR"), "knowledge archive directory")
	return cmd
}

func newKBPushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "push <redis-url>",
		Short:   "Publish the effective knowledge base to a Redis key",
		Example: "  ghbridge kb push redis://localhost:6379/0?key=ghbridge:knowledge --knowledge kb.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.HasPrefix(args[0], "redis://") && !strings.HasPrefix(args[0], "rediss://") {
				return errors.New("target must be a redis:// URL")
			}
			kb, err := loadKnowledge(cmd, opts)
			if err != nil {
				return err
			}

			sources, err := knowledge.ParseSourceList(args, "")
			if err != nil {
				return err
			}
			target, ok := sources[0].(*knowledge.RedisSource)
			if !ok {
				return fmt.Errorf("%s is not a redis source", args[0])
			}
			defer target.Close()

			if err := target.Publish(cmd.Context(), kb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", kb.Source(), target.Name())
			return nil
		},
	}
}

func loadKnowledge(cmd *cobra.Command, opts *options) (*knowledge.KnowledgeBase, error) {
	log, err := opts.logger()
	if err != nil {
		return nil, err
	}
	holder, err := opts.holder(cmd.Context(), log)
	if err != nil {
		return nil, err
	}
	if report := holder.Report(); report.Degraded && len(opts.knowledge) > 0 {
		return nil, fmt.Errorf("no configured knowledge source could be loaded (%d errors)", len(report.Errors))
	}
	return holder.Current(), nil
}
