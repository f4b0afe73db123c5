package knowledge

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisSource(t *testing.T) (*RedisSource, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	src := NewRedisSource(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "kb:test")
	t.Cleanup(func() { src.Close() })
	return src, mr
}

func TestRedisSource_MissingKeyIsSkipped(t *testing.T) {
	src, _ := newTestRedisSource(t)

	loader := NewLoader(nil, src)
	kb, report := loader.Load(context.Background())
	if !report.Degraded {
		t.Error("expected degraded mode when the key is absent")
	}
	if len(report.Errors) != 0 {
		t.Errorf("missing key should not count as an error, got %v", report.Errors)
	}
	if kb.Source() != BuiltinSource {
		t.Errorf("expected builtin, got %s", kb.Source())
	}
}

func TestRedisSource_PublishThenLoad(t *testing.T) {
	src, mr := newTestRedisSource(t)
	ctx := context.Background()

	original := mustParse(t, sampleDoc)
	if err := src.Publish(ctx, original); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !mr.Exists("kb:test") {
		t.Fatal("expected key to be written")
	}

	kb, report := NewLoader(nil, src).Load(ctx)
	if report.Degraded {
		t.Fatalf("unexpected degraded load: %+v", report)
	}
	if report.Source != src.Name() {
		t.Errorf("source = %s, want %s", report.Source, src.Name())
	}
	if _, ok := kb.Pattern("Simple Circle"); !ok {
		t.Error("published pattern not found after load")
	}
}

func TestRedisSource_CorruptDocumentFallsThrough(t *testing.T) {
	src, mr := newTestRedisSource(t)
	mr.Set("kb:test", "{]")

	kb, report := NewLoader(nil, src, FileSource{Path: "/nonexistent/knowledge.json"}).Load(context.Background())
	if len(report.Errors) != 1 {
		t.Fatalf("expected one load error, got %d", len(report.Errors))
	}
	if kb.Source() != BuiltinSource {
		t.Errorf("expected builtin fallback, got %s", kb.Source())
	}
}
