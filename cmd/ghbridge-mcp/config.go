package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/ghbridge/pkg/compat"
	"github.com/rmax-ai/ghbridge/pkg/host"
)

const (
	defaultHostTimeout = 30 * time.Second
	defaultDBName      = "ghbridge.db"
	defaultLogLevel    = "info"
	dbDisabled         = "off"
	defaultArchiveKeep = 20
)

type Config struct {
	HostAddr      string
	HostTimeout   time.Duration
	Knowledge     []string // empty means the default probe list
	DBPath        string   // empty means the journal is disabled
	HTTPAddr      string   // empty means no HTTP listener
	Watch         bool
	LogLevel      zapcore.Level
	OverridesPath string
	ArchiveDir    string // empty means knowledge snapshots are not kept
	ArchiveKeep   int
	Cwd           string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	hostAddr := hostAddrFromEnv(host.DefaultAddr)
	hostTimeout := defaultHostTimeout
	if v := os.Getenv("GHBRIDGE_HOST_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GHBRIDGE_HOST_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("GHBRIDGE_HOST_TIMEOUT must be positive")
		}
		hostTimeout = parsed
	}
	knowledge := os.Getenv("GHBRIDGE_KNOWLEDGE")
	dbPath := envOrDefault("GHBRIDGE_DB_PATH", filepath.Join(cwd, defaultDBName))
	httpAddr := os.Getenv("GHBRIDGE_HTTP_ADDR")
	watch := false
	if v := os.Getenv("GHBRIDGE_WATCH"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GHBRIDGE_WATCH: %w", err)
		}
		watch = parsed
	}
	logLevel := envOrDefault("GHBRIDGE_LOG_LEVEL", defaultLogLevel)
	overrides := os.Getenv("GHBRIDGE_OVERRIDES")
	archiveDir := os.Getenv("GHBRIDGE_ARCHIVE_DIR")
	archiveKeep := defaultArchiveKeep
	if v := os.Getenv("GHBRIDGE_ARCHIVE_KEEP"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GHBRIDGE_ARCHIVE_KEEP: %w", err)
		}
		archiveKeep = parsed
	}

	flagSet := flag.NewFlagSet("ghbridge-mcp", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagHost := flagSet.String("host", hostAddr, "canvas host TCP address")
	flagTimeout := flagSet.String("host-timeout", hostTimeout.String(), "per-request host timeout")
	flagKnowledge := flagSet.String("knowledge", knowledge, "comma-separated knowledge sources (files or redis:// URLs)")
	flagDB := flagSet.String("db", dbPath, "path to SQLite journal, or 'off'")
	flagHTTP := flagSet.String("http", httpAddr, "HTTP side API listen address (empty disables)")
	flagWatch := flagSet.Bool("watch", watch, "reload knowledge files when they change")
	flagLogLevel := flagSet.String("log-level", logLevel, "log level: debug|info|warn|error")
	flagOverrides := flagSet.String("overrides", overrides, "YAML or JSON file replacing the connection override table")
	flagArchiveDir := flagSet.String("archive-dir", archiveDir, "directory keeping snapshots of each loaded knowledge base (empty disables)")
	flagArchiveKeep := flagSet.Int("archive-keep", archiveKeep, "number of knowledge snapshots to retain (0 keeps all)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stderr)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	timeout, err := time.ParseDuration(*flagTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid host timeout: %w", err)
	}
	if timeout <= 0 {
		return Config{}, errors.New("host timeout must be positive")
	}

	level, err := zapcore.ParseLevel(strings.TrimSpace(*flagLogLevel))
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}

	config := Config{
		HostAddr:      strings.TrimSpace(*flagHost),
		HostTimeout:   timeout,
		Knowledge:     splitList(*flagKnowledge),
		HTTPAddr:      strings.TrimSpace(*flagHTTP),
		Watch:         *flagWatch,
		LogLevel:      level,
		OverridesPath: resolvePath(*flagOverrides, cwd),
		ArchiveDir:    resolvePath(*flagArchiveDir, cwd),
		ArchiveKeep:   *flagArchiveKeep,
		Cwd:           cwd,
	}
	if db := strings.TrimSpace(*flagDB); !strings.EqualFold(db, dbDisabled) {
		config.DBPath = resolvePath(db, cwd)
	}

	if config.HostAddr == "" {
		return Config{}, errors.New("host address cannot be empty")
	}
	if config.ArchiveKeep < 0 {
		return Config{}, errors.New("archive keep cannot be negative")
	}

	return config, nil
}

// LoadOverrides reads a compatibility override table. YAML is a superset of
// JSON, so one decoder serves both.
func LoadOverrides(path string) ([]compat.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}
	var overrides []compat.Override
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse overrides %s: %w", path, err)
	}
	for i, o := range overrides {
		if o.Rule == "" || len(o.SourceComponents) == 0 {
			return nil, fmt.Errorf("override %d: rule and source_components are required", i)
		}
	}
	return overrides, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// hostAddrFromEnv honours GRASSHOPPER_PORT for compatibility with the host plugin.
func hostAddrFromEnv(fallback string) string {
	if value := os.Getenv("GHBRIDGE_HOST_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("GRASSHOPPER_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
