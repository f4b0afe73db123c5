package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleDoc = `{
  "components": [
    {"name": "XY Plane", "category": "Vector", "outputs": [{"name": "Plane", "nickname": "P", "type": "Plane"}]},
    {"name": "Circle", "category": "Curve", "inputs": [{"name": "Plane", "type": "Plane"}, {"name": "Radius", "nickname": "R", "type": "Number"}],
     "outputs": [{"name": "Circle", "nickname": "C", "type": "Circle"}]},
    {"name": "Number Slider", "category": "Params", "outputs": [{"name": "N", "type": "Number"}]}
  ],
  "patterns": [
    {"name": "Simple Circle", "nodes": [{"id": "A", "type": "XY Plane"}, {"id": "B", "type": "Circle", "x": 200}],
     "edges": [{"source": "A", "source_port": "Plane", "target": "B", "target_port": "Plane"}]},
    {"name": "Lonely Slider", "nodes": [{"id": "s", "type": "Number Slider"}]}
  ],
  "intents": [
    {"keywords": ["Circle", "ROUND"], "pattern": "simple circle"},
    {"keywords": ["slider"], "pattern": "Lonely Slider"}
  ],
  "aliases": {
    "components": {"num_slider": "Number Slider"},
    "parameters": {"Rad": "Radius"}
  }
}`

func mustParse(t *testing.T, doc string) *KnowledgeBase {
	t.Helper()
	kb, err := Parse([]byte(doc), FormatJSON, "test")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return kb
}

func TestParse_IndexesDocument(t *testing.T) {
	kb := mustParse(t, sampleDoc)

	if diff := cmp.Diff([]string{"Simple Circle", "Lonely Slider"}, kb.PatternNames()); diff != "" {
		t.Errorf("PatternNames mismatch (-want +got):\n%s", diff)
	}

	rules := kb.IntentRules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 intent rules, got %d", len(rules))
	}
	if rules[0].Pattern != "Simple Circle" {
		t.Errorf("intent target should be canonicalized, got %q", rules[0].Pattern)
	}
	if diff := cmp.Diff([]string{"circle", "round"}, rules[0].Keywords); diff != "" {
		t.Errorf("keywords should be lower-cased (-want +got):\n%s", diff)
	}

	if got := kb.Aliases().Components["numslider"]; got != "Number Slider" {
		t.Errorf("alias keys should be normalized, got %q", got)
	}
	if got := kb.Aliases().Parameters["rad"]; got != "Radius" {
		t.Errorf("parameter alias: got %q", got)
	}
	if got := kb.Aliases().Components["xyplane"]; got != "XY Plane" {
		t.Errorf("canonical names should self-register, got %q", got)
	}
}

func TestComponent_CaseInsensitiveExactOnly(t *testing.T) {
	kb := mustParse(t, sampleDoc)

	if _, ok := kb.Component("number slider"); !ok {
		t.Error("expected case-insensitive hit for 'number slider'")
	}
	if _, ok := kb.Component("numberslider"); ok {
		t.Error("Component must not do fuzzy matching")
	}
	if _, ok := kb.Pattern("SIMPLE CIRCLE"); !ok {
		t.Error("expected case-insensitive pattern lookup")
	}
}

func TestParse_RejectsStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "edge to undeclared node",
			doc: `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}],
				"edges": [{"source": "A", "source_port": "C", "target": "Z", "target_port": "P"}]}]}`,
			want: `unknown target node "Z"`,
		},
		{
			name: "duplicate node id",
			doc:  `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}, {"id": "A", "type": "Line"}]}]}`,
			want: "duplicate node id",
		},
		{
			name: "intent for unknown pattern",
			doc:  `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}]}], "intents": [{"keywords": ["x"], "pattern": "q"}]}`,
			want: "unknown pattern",
		},
		{
			name: "multi-word keyword",
			doc:  `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}]}], "intents": [{"keywords": ["ring", "Number Slider"], "pattern": "p"}]}`,
			want: `keyword "number slider" must be a single token`,
		},
		{
			name: "keyword with punctuation",
			doc:  `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}]}], "intents": [{"keywords": ["circle,"], "pattern": "p"}]}`,
			want: "must be a single token",
		},
		{
			name: "blank keyword",
			doc:  `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}]}], "intents": [{"keywords": ["  "], "pattern": "p"}]}`,
			want: "must be a single token",
		},
		{
			name: "pattern without nodes",
			doc:  `{"patterns": [{"name": "p", "nodes": []}]}`,
			want: "invalid knowledge document",
		},
		{
			name: "duplicate pattern",
			doc:  `{"patterns": [{"name": "p", "nodes": [{"id": "A", "type": "Circle"}]}, {"name": "P", "nodes": [{"id": "A", "type": "Circle"}]}]}`,
			want: "duplicate pattern",
		},
		{
			name: "malformed json",
			doc:  `{"patterns": [`,
			want: "failed to parse json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON, "test")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestBuiltin_IsValid(t *testing.T) {
	kb := Builtin()
	if kb.Source() != BuiltinSource {
		t.Errorf("expected builtin source, got %s", kb.Source())
	}
	if len(kb.PatternNames()) == 0 || len(kb.IntentRules()) == 0 {
		t.Fatal("builtin knowledge base should carry patterns and intents")
	}
	for _, p := range kb.Patterns() {
		for _, n := range p.Nodes {
			if _, ok := kb.Component(n.Type); !ok {
				t.Errorf("pattern %q uses unknown component %q", p.Name, n.Type)
			}
		}
	}
}

func TestRoundTrip_PreservesPatternOrder(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			kb := Builtin()
			data, err := kb.Marshal(format)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			again, err := Parse(data, format, "roundtrip")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if diff := cmp.Diff(kb.PatternNames(), again.PatternNames()); diff != "" {
				t.Errorf("pattern order changed (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(kb.Aliases(), again.Aliases()); diff != "" {
				t.Errorf("aliases changed (-want +got):\n%s", diff)
			}
			if len(again.IntentRules()) != len(kb.IntentRules()) {
				t.Errorf("intent count changed: %d != %d", len(again.IntentRules()), len(kb.IntentRules()))
			}
		})
	}
}

func TestLoader_ProbesInOrder(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.json")
	broken := filepath.Join(dir, "broken.json")
	good := filepath.Join(dir, "good.json")
	alsoGood := filepath.Join(dir, "also-good.yaml")

	if err := os.WriteFile(broken, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, []byte(sampleDoc), 0644); err != nil {
		t.Fatal(err)
	}
	yamlDoc, err := Builtin().Marshal(FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(alsoGood, yamlDoc, 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(nil,
		FileSource{Path: missing},
		FileSource{Path: broken},
		FileSource{Path: good},
		FileSource{Path: alsoGood},
	)
	kb, report := loader.Load(context.Background())

	if report.Source != good {
		t.Errorf("expected %s to win, got %s", good, report.Source)
	}
	if report.Degraded {
		t.Error("report should not be degraded")
	}
	if len(report.Errors) != 1 || report.Errors[0].Source != broken {
		t.Errorf("expected a single load error for the broken source, got %+v", report.Errors)
	}
	if kb.Source() != good {
		t.Errorf("kb source = %s", kb.Source())
	}
}

func TestLoader_FallsBackToBuiltin(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "knowledge.yaml")
	if err := os.WriteFile(broken, []byte("patterns: [ {name: x, nodes: []} ]"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(nil, FileSource{Path: filepath.Join(dir, "nope.json")}, FileSource{Path: broken})
	kb, report := loader.Load(context.Background())

	if !report.Degraded || report.Source != BuiltinSource {
		t.Errorf("expected degraded builtin report, got %+v", report)
	}
	if kb == nil || kb.Source() != BuiltinSource {
		t.Fatal("expected builtin knowledge base")
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected 1 load error, got %d", len(report.Errors))
	}
}

func TestParseSourceList(t *testing.T) {
	sources, err := ParseSourceList([]string{"kb.json", " ", "/etc/ghbridge/kb.yaml", "redis://localhost:6379/2?key=kb"}, "/work")
	if err != nil {
		t.Fatalf("ParseSourceList failed: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if got := sources[0].Name(); got != "/work/kb.json" {
		t.Errorf("relative path not resolved: %s", got)
	}
	if got := sources[1].Name(); got != "/etc/ghbridge/kb.yaml" {
		t.Errorf("absolute path changed: %s", got)
	}
	rs, ok := sources[2].(*RedisSource)
	if !ok {
		t.Fatalf("expected redis source, got %T", sources[2])
	}
	defer rs.Close()
	if rs.key != "kb" || rs.client.Options().DB != 2 {
		t.Errorf("unexpected redis source: key=%s db=%d", rs.key, rs.client.Options().DB)
	}
}

func TestSearchComponents(t *testing.T) {
	kb := Builtin()
	hits := kb.SearchComponents("primitive")
	names := make([]string, 0, len(hits))
	for _, c := range hits {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Circle", "Line", "Center Box"}, names); diff != "" {
		t.Errorf("search mismatch (-want +got):\n%s", diff)
	}
}
