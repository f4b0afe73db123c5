package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrSourceNotFound is returned by a Source whose document does not exist.
var ErrSourceNotFound = errors.New("knowledge source not found")

// Source is one candidate location of a knowledge document.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, Format, error)
}

// FileSource reads a JSON or YAML document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string {
	return s.Path
}

func (s FileSource) Read(ctx context.Context) ([]byte, Format, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrSourceNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, FormatFromPath(s.Path), nil
}

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DefaultProbeList returns the fixed probe order used when nothing is configured:
// the working directory first, then the user config directory.
func DefaultProbeList(cwd string) []Source {
	sources := []Source{
		FileSource{Path: filepath.Join(cwd, "knowledge.json")},
		FileSource{Path: filepath.Join(cwd, "knowledge.yaml")},
		FileSource{Path: filepath.Join(cwd, "data", "knowledge.json")},
	}
	if dir, err := os.UserConfigDir(); err == nil {
		sources = append(sources,
			FileSource{Path: filepath.Join(dir, "ghbridge", "knowledge.json")},
			FileSource{Path: filepath.Join(dir, "ghbridge", "knowledge.yaml")},
		)
	}
	return sources
}

// ParseSourceList turns configured locations into sources, preserving order.
// Entries of the form redis://host:port/db?key=name become RedisSources,
// everything else is a file path resolved against cwd.
func ParseSourceList(entries []string, cwd string) ([]Source, error) {
	var sources []Source
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "redis://") || strings.HasPrefix(entry, "rediss://") {
			src, err := parseRedisEntry(entry)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
			continue
		}
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(cwd, entry)
		}
		sources = append(sources, FileSource{Path: entry})
	}
	return sources, nil
}

func parseRedisEntry(entry string) (*RedisSource, error) {
	u, err := url.Parse(entry)
	if err != nil {
		return nil, fmt.Errorf("invalid redis source %q: %w", entry, err)
	}
	key := u.Query().Get("key")
	if key == "" {
		key = DefaultRedisKey
	}
	q := u.Query()
	q.Del("key")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("invalid redis source %q: %w", entry, err)
	}
	return NewRedisSource(redis.NewClient(opts), key), nil
}
