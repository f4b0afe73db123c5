package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/rmax-ai/ghbridge/pkg/archive"
	"github.com/rmax-ai/ghbridge/pkg/engine"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeKnowledge pins the knowledge source so results do not depend on files
// lying around the test machine.
func writeKnowledge(t *testing.T) string {
	t.Helper()
	data, err := knowledge.Builtin().Marshal(knowledge.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "knowledge.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPatternsCommand(t *testing.T) {
	kb := writeKnowledge(t)

	out, err := execute(t, "patterns", "--knowledge", kb)
	if err != nil {
		t.Fatalf("patterns failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 5 {
		t.Errorf("expected 5 patterns, got %q", out)
	}

	out, err = execute(t, "patterns", "extruded", "--json", "--knowledge", kb)
	if err != nil {
		t.Fatalf("patterns query failed: %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(names) != 1 || names[0] != "Extruded Circle" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestClassifyCommand(t *testing.T) {
	kb := writeKnowledge(t)

	out, err := execute(t, "classify", "a", "simple", "circle", "--knowledge", kb)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.Contains(out, "pattern: Circle") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, "classify", "voronoi", "--knowledge", kb)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.Contains(out, "no pattern matched") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestMaterializeCommand_DryRun(t *testing.T) {
	kb := writeKnowledge(t)

	out, err := execute(t, "materialize", "a circle", "--dry-run", "--json", "--knowledge", kb)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	var sum engine.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if sum.Pattern != "Circle" || sum.NodeCount != 3 || sum.EdgeCount != 2 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	out, err = execute(t, "materialize", "--pattern", "Extruded Circle", "--dry-run", "--knowledge", kb)
	if err != nil {
		t.Fatalf("materialize by name failed: %v", err)
	}
	if !strings.Contains(out, "pattern: Extruded Circle") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestMaterializeCommand_Errors(t *testing.T) {
	kb := writeKnowledge(t)

	if _, err := execute(t, "materialize", "--dry-run", "--knowledge", kb); err == nil {
		t.Error("expected error without description or pattern")
	}

	_, err := execute(t, "materialize", "voronoi", "cube", "--dry-run", "--knowledge", kb)
	if !errors.Is(err, engine.ErrNoPatternMatched) {
		t.Errorf("expected ErrNoPatternMatched, got %v", err)
	}
}

func TestHealthCommand_DryRun(t *testing.T) {
	out, err := execute(t, "health", "--dry-run", "--knowledge", writeKnowledge(t))
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if !strings.Contains(out, "Excellent (100/100)") || !strings.Contains(out, "Empty Canvas") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestKBExportCommand(t *testing.T) {
	kb := writeKnowledge(t)
	target := filepath.Join(t.TempDir(), "export.yaml")

	if _, err := execute(t, "kb", "export", "-o", target, "--knowledge", kb); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := knowledge.Parse(data, knowledge.FormatYAML, target)
	if err != nil {
		t.Fatalf("exported YAML does not load: %v", err)
	}
	if len(parsed.PatternNames()) != 5 {
		t.Errorf("expected 5 patterns, got %v", parsed.PatternNames())
	}
}

func TestKBExportCommand_MissingSource(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := execute(t, "kb", "export", "--knowledge", missing); err == nil {
		t.Error("expected error when the configured source is absent")
	}
}

func TestKBPushCommand(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	url := "redis://" + mr.Addr() + "/0?key=kb:shared"
	if _, err := execute(t, "kb", "push", url, "--knowledge", writeKnowledge(t)); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if !mr.Exists("kb:shared") {
		t.Fatal("knowledge base was not published")
	}

	out, err := execute(t, "patterns", "--knowledge", url)
	if err != nil {
		t.Fatalf("patterns from redis failed: %v", err)
	}
	if !strings.Contains(out, "Divided Circle") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := execute(t, "kb", "push", "/tmp/file.json"); err == nil {
		t.Error("expected error for non-redis target")
	}
}

func TestJournalCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/journal":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			w.Write([]byte(`[{"id":"r1","pattern":"Circle","node_count":3,"edge_count":2,"succeeded":true},
				{"id":"r2","pattern":"Line","succeeded":false,"failed_phase":"node","failed_step":2,"failed_ref":"line","failure_reason":"boom"}]`))
		case "/v1/journal/stats":
			w.Write([]byte(`[{"pattern":"Circle","runs":4,"failures":1}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	out, err := execute(t, "journal", "--api", ts.URL, "--limit", "5")
	if err != nil {
		t.Fatalf("journal failed: %v", err)
	}
	if !strings.Contains(out, "Circle") || !strings.Contains(out, "failed at node line: boom") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, "journal", "--api", ts.URL, "--stats")
	if err != nil {
		t.Fatalf("journal stats failed: %v", err)
	}
	if !strings.Contains(out, "Circle") || !strings.Contains(out, "4") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestStatusCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"disconnected","connected":false,"knowledge_source":"builtin","knowledge_degraded":true,"error":"dial tcp: refused"}`))
	}))
	defer ts.Close()

	out, err := execute(t, "status", "--api", ts.URL)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"host: disconnected", "builtin (degraded)", "dial tcp: refused"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestReportCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "patterns" || r.URL.Query().Get("from") == "" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte("pattern,runs\nCircle,2\n"))
	}))
	defer ts.Close()

	target := filepath.Join(t.TempDir(), "patterns.csv")
	if _, err := execute(t, "report", "patterns", "--api", ts.URL, "--since", "1h", "-o", target); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pattern,runs\nCircle,2\n" {
		t.Errorf("unexpected report %q", data)
	}
}

func TestKBHistoryAndSnapshotExport(t *testing.T) {
	dir := t.TempDir()
	arch := archive.New(dir, 0)
	entry, err := arch.Save(context.Background(), knowledge.Builtin())
	if err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "kb", "history", "--archive-dir", dir)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, entry.Key) {
		t.Errorf("history missing %s: %s", entry.Key, out)
	}

	out, err = execute(t, "kb", "export", "--snapshot", entry.Key, "--archive-dir", dir, "--format", "yaml")
	if err != nil {
		t.Fatalf("export snapshot failed: %v", err)
	}
	if _, err := knowledge.Parse([]byte(out), knowledge.FormatYAML, "test"); err != nil {
		t.Errorf("exported snapshot does not load: %v", err)
	}

	if _, err := execute(t, "kb", "history"); err == nil {
		t.Error("expected error without archive dir")
	}
}
