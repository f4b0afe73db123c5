package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rmax-ai/ghbridge/pkg/engine"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	knowledge   []string
	hostAddr    string
	hostTimeout time.Duration
	apiURL      string
	logLevel    string
	dryRun      bool
	jsonOut     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "ghbridge",
		Short:         "Drive a Grasshopper canvas from the command line",
		Long:          "ghbridge classifies natural-language requests into known patterns and\nmaterializes them on a running Grasshopper host.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&opts.knowledge, "knowledge", splitEnv("GHBRIDGE_KNOWLEDGE"), "knowledge sources (files or redis:// URLs)")
	flags.StringVar(&opts.hostAddr, "host", envOr("GHBRIDGE_HOST_ADDR", host.DefaultAddr), "canvas host TCP address")
	flags.DurationVar(&opts.hostTimeout, "host-timeout", 30*time.Second, "per-request host timeout")
	flags.StringVar(&opts.apiURL, "api", envOr("GHBRIDGE_API_URL", ""), "ghbridge-mcp HTTP endpoint")
	flags.StringVar(&opts.logLevel, "log-level", envOr("GHBRIDGE_LOG_LEVEL", "warn"), "log level: debug|info|warn|error")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "run against an in-memory canvas instead of the host")
	flags.BoolVar(&opts.jsonOut, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(
		newPatternsCmd(opts),
		newClassifyCmd(opts),
		newMaterializeCmd(opts),
		newConnectCmd(opts),
		newHealthCmd(opts),
		newKBCmd(opts),
		newJournalCmd(opts),
		newStatusCmd(opts),
		newReportCmd(opts),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// logger writes to stderr so command output stays clean on stdout.
func (o *options) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}

// holder loads the knowledge base from the configured sources, falling back
// to the default probe list.
func (o *options) holder(ctx context.Context, log *zap.Logger) (*knowledge.Holder, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get cwd: %w", err)
	}
	sources := knowledge.DefaultProbeList(cwd)
	if len(o.knowledge) > 0 {
		sources, err = knowledge.ParseSourceList(o.knowledge, cwd)
		if err != nil {
			return nil, err
		}
	}
	return knowledge.NewHolder(ctx, knowledge.NewLoader(log.Named("knowledge"), sources...)), nil
}

// engine builds an engine against the real host, or an in-memory canvas
// when --dry-run is set.
func (o *options) engine(ctx context.Context) (*engine.Engine, error) {
	log, err := o.logger()
	if err != nil {
		return nil, err
	}
	holder, err := o.holder(ctx, log)
	if err != nil {
		return nil, err
	}

	var bridge host.Bridge
	if o.dryRun {
		bridge = host.NewMockHost(holder.Current())
	} else {
		bridge = host.NewClient(o.hostAddr,
			host.WithTimeout(o.hostTimeout),
			host.WithLogger(log.Named("host")))
	}
	return engine.New(holder, bridge, engine.WithLogger(log.Named("engine"))), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
