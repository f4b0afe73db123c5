// Package archive keeps a rolling history of served knowledge bases on disk,
// so an operator can see and restore what the bridge was working with.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

// ErrNotFound is returned when a snapshot key does not exist.
var ErrNotFound = errors.New("snapshot not found")

const (
	keyTimeLayout = "20060102T150405.000000000Z"
	keyExt        = ".json"
)

// Entry describes one archived snapshot.
type Entry struct {
	Key     string    `json:"key"`
	Source  string    `json:"source"`
	SavedAt time.Time `json:"saved_at"`
	Size    int64     `json:"size"`
}

// Archive stores snapshots as JSON files under a root directory. Keys sort
// lexically in save order.
type Archive struct {
	root string
	keep int
	now  func() time.Time
}

// New creates an archive rooted at dir that retains at most keep snapshots.
// keep <= 0 disables pruning.
func New(dir string, keep int) *Archive {
	return &Archive{root: dir, keep: keep, now: time.Now}
}

// Dir returns the archive root.
func (a *Archive) Dir() string {
	return a.root
}

// Save writes kb and prunes the oldest snapshots beyond the retention limit.
func (a *Archive) Save(ctx context.Context, kb *knowledge.KnowledgeBase) (Entry, error) {
	data, err := kb.Marshal(knowledge.FormatJSON)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	savedAt := a.now().UTC()
	key := savedAt.Format(keyTimeLayout) + "-" + slug(kb.Source()) + keyExt
	if err := a.put(key, bytes.NewReader(data)); err != nil {
		return Entry{}, err
	}

	if a.keep > 0 {
		if err := a.Prune(ctx, a.keep); err != nil {
			return Entry{}, err
		}
	}
	return Entry{Key: key, Source: slug(kb.Source()), SavedAt: savedAt, Size: int64(len(data))}, nil
}

// put writes atomically via temp file + rename.
func (a *Archive) put(key string, r io.Reader) error {
	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", a.root, err)
	}

	tmp, err := os.CreateTemp(a.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	full := filepath.Join(a.root, key)
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("failed to rename snapshot to %s: %w", full, err)
	}
	return nil
}

// List returns snapshots newest first. A missing root yields an empty list.
func (a *Archive) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(a.root)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", a.root, err)
	}

	var out []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		entry, ok := parseKey(de.Name())
		if !ok {
			continue
		}
		if info, err := de.Info(); err == nil {
			entry.Size = info.Size()
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Load reads and validates one snapshot.
func (a *Archive) Load(ctx context.Context, key string) (*knowledge.KnowledgeBase, error) {
	if _, ok := parseKey(key); !ok || filepath.Base(key) != key {
		return nil, fmt.Errorf("invalid snapshot key %q", key)
	}
	data, err := os.ReadFile(filepath.Join(a.root, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return knowledge.Parse(data, knowledge.FormatJSON, "archive:"+key)
}

// Prune deletes all but the newest keep snapshots.
func (a *Archive) Prune(ctx context.Context, keep int) error {
	entries, err := a.List(ctx)
	if err != nil {
		return err
	}
	if keep < 0 || len(entries) <= keep {
		return nil
	}
	for _, e := range entries[keep:] {
		if err := os.Remove(filepath.Join(a.root, e.Key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete snapshot %s: %w", e.Key, err)
		}
	}
	return nil
}

func parseKey(name string) (Entry, bool) {
	base, ok := strings.CutSuffix(name, keyExt)
	if !ok {
		return Entry{}, false
	}
	stamp, source, ok := strings.Cut(base, "-")
	if !ok {
		return Entry{}, false
	}
	savedAt, err := time.Parse(keyTimeLayout, stamp)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Key: name, Source: source, SavedAt: savedAt}, true
}

// slug reduces a source name to characters safe in a file name.
func slug(source string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(source) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_.")
	if s == "" {
		return "unknown"
	}
	if len(s) > 64 {
		s = s[len(s)-64:]
	}
	return s
}
