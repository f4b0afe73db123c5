package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/rmax-ai/ghbridge/pkg/api"
	"github.com/rmax-ai/ghbridge/pkg/archive"
	"github.com/rmax-ai/ghbridge/pkg/engine"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
	"github.com/rmax-ai/ghbridge/pkg/mcp"
	"github.com/rmax-ai/ghbridge/pkg/store"
)

var version = "dev"

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ghbridge-mcp: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ghbridge-mcp: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("exited_with_error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown_complete")
}

// newLogger writes JSON logs to stderr. stdout carries the MCP stream.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}

func run(cfg Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("system_started",
		zap.String("version", version),
		zap.String("host", cfg.HostAddr),
		zap.String("db", cfg.DBPath),
		zap.String("http", cfg.HTTPAddr))

	sources := knowledge.DefaultProbeList(cfg.Cwd)
	if len(cfg.Knowledge) > 0 {
		parsed, err := knowledge.ParseSourceList(cfg.Knowledge, cfg.Cwd)
		if err != nil {
			return err
		}
		sources = parsed
	}
	holder := knowledge.NewHolder(ctx, knowledge.NewLoader(log.Named("knowledge"), sources...))
	report := holder.Report()
	log.Info("knowledge_loaded",
		zap.String("source", report.Source),
		zap.Bool("degraded", report.Degraded),
		zap.Int("errors", len(report.Errors)))

	if cfg.ArchiveDir != "" {
		archiveKnowledge(ctx, holder, archive.New(cfg.ArchiveDir, cfg.ArchiveKeep), log.Named("archive"))
	}

	var engineOpts []engine.Option
	engineOpts = append(engineOpts, engine.WithLogger(log.Named("engine")))

	if cfg.OverridesPath != "" {
		overrides, err := LoadOverrides(cfg.OverridesPath)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithOverrides(overrides))
		log.Info("overrides_loaded", zap.String("path", cfg.OverridesPath), zap.Int("count", len(overrides)))
	}

	var st *store.Store
	if cfg.DBPath != "" {
		var err error
		st, err = store.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Error("failed_to_close_store", zap.Error(err))
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(st))
		log.Info("store_initialized", zap.String("path", cfg.DBPath))
	}

	client := host.NewClient(cfg.HostAddr,
		host.WithTimeout(cfg.HostTimeout),
		host.WithLogger(log.Named("host")))
	eng := engine.New(holder, client, engineOpts...)

	mcpOpts := []mcp.Option{mcp.WithLogger(log.Named("mcp")), mcp.WithVersion(version)}
	// Interfaces stay nil, not typed-nil, when the journal is off.
	var journal api.JournalInterface
	if st != nil {
		mcpOpts = append(mcpOpts, mcp.WithJournal(st))
		journal = st
	}
	mcpServer := mcp.NewServer(eng, mcpOpts...)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Watch {
		watcher, err := knowledge.NewWatcher(holder, log.Named("watcher"))
		if err != nil {
			return fmt.Errorf("failed to start knowledge watcher: %w", err)
		}
		watcher.Start(gctx)
		defer watcher.Stop()
	}

	if cfg.HTTPAddr != "" {
		apiServer := api.NewServer(eng, journal, eng.Canvas(), cfg.HTTPAddr, log.Named("api"))
		g.Go(apiServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return apiServer.Stop(shutdownCtx)
		})
	}

	g.Go(func() error {
		// ServeStdio returns once the client closes stdin.
		defer stop()
		return mcpServer.Serve()
	})

	return g.Wait()
}

// archiveKnowledge saves the current snapshot and every later swap.
// Archive failures are logged and never block serving.
func archiveKnowledge(ctx context.Context, holder *knowledge.Holder, arch *archive.Archive, log *zap.Logger) {
	save := func(kb *knowledge.KnowledgeBase) {
		entry, err := arch.Save(ctx, kb)
		if err != nil {
			log.Warn("knowledge_archive_failed", zap.String("dir", arch.Dir()), zap.Error(err))
			return
		}
		log.Info("knowledge_archived", zap.String("key", entry.Key), zap.Int64("size", entry.Size))
	}
	save(holder.Current())
	holder.OnSwap(func(kb *knowledge.KnowledgeBase, _ knowledge.LoadReport) { save(kb) })
}
