package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// KnowledgeBase is an immutable, indexed snapshot of component specs,
// patterns, intent rules and alias tables. It is safe for concurrent readers.
type KnowledgeBase struct {
	source     string
	components []ComponentSpec
	byName     map[string]int // lower-cased component name -> index
	patterns   []Pattern
	byPattern  map[string]int // lower-cased pattern name -> index
	intents    []IntentRule
	aliases    AliasTable
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeKey lower-cases s and removes spaces and underscores.
// Alias table keys are stored in this form.
func NormalizeKey(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "").Replace(s)
}

// New validates doc and builds an indexed knowledge base from it.
// source is informational and is reported by Source().
func New(doc Document, source string) (*KnowledgeBase, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid knowledge document: %w", err)
	}

	kb := &KnowledgeBase{
		source:    source,
		byName:    make(map[string]int, len(doc.Components)),
		byPattern: make(map[string]int, len(doc.Patterns)),
		aliases: AliasTable{
			Components: make(map[string]string),
			Parameters: make(map[string]string),
		},
	}

	for _, c := range doc.Components {
		key := strings.ToLower(c.Name)
		if _, dup := kb.byName[key]; dup {
			return nil, fmt.Errorf("duplicate component %q", c.Name)
		}
		kb.byName[key] = len(kb.components)
		kb.components = append(kb.components, c)
		// canonical names resolve to themselves
		kb.aliases.Components[NormalizeKey(c.Name)] = c.Name
	}

	for _, p := range doc.Patterns {
		if err := checkPattern(p); err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if _, dup := kb.byPattern[key]; dup {
			return nil, fmt.Errorf("duplicate pattern %q", p.Name)
		}
		kb.byPattern[key] = len(kb.patterns)
		kb.patterns = append(kb.patterns, p)
	}

	for i, r := range doc.Intents {
		idx, ok := kb.byPattern[strings.ToLower(r.Pattern)]
		if !ok {
			return nil, fmt.Errorf("intent rule %d targets unknown pattern %q", i, r.Pattern)
		}
		rule := IntentRule{
			Keywords: make([]string, 0, len(r.Keywords)),
			Pattern:  kb.patterns[idx].Name,
		}
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" || strings.IndexFunc(k, IsKeywordSeparator) >= 0 {
				// descriptions are tokenized, so such a keyword could never match
				return nil, fmt.Errorf("intent rule %d: keyword %q must be a single token", i, k)
			}
			rule.Keywords = append(rule.Keywords, k)
		}
		kb.intents = append(kb.intents, rule)
	}

	for alias, canonical := range doc.Aliases.Components {
		kb.aliases.Components[NormalizeKey(alias)] = canonical
	}
	for alias, canonical := range doc.Aliases.Parameters {
		kb.aliases.Parameters[NormalizeKey(alias)] = canonical
	}

	return kb, nil
}

// checkPattern enforces that node ids are unique and that every edge
// references nodes declared in the same pattern.
func checkPattern(p Pattern) error {
	ids := make(map[string]struct{}, len(p.Nodes))
	for _, n := range p.Nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("pattern %q: duplicate node id %q", p.Name, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for i, e := range p.Edges {
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("pattern %q: edge %d references unknown source node %q", p.Name, i, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("pattern %q: edge %d references unknown target node %q", p.Name, i, e.Target)
		}
	}
	return nil
}

// Source names where this snapshot was loaded from.
func (kb *KnowledgeBase) Source() string {
	return kb.source
}

// Pattern returns the pattern with the given name (case-insensitive).
func (kb *KnowledgeBase) Pattern(name string) (Pattern, bool) {
	idx, ok := kb.byPattern[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Pattern{}, false
	}
	return kb.patterns[idx], true
}

// PatternNames lists pattern names in insertion order.
func (kb *KnowledgeBase) PatternNames() []string {
	names := make([]string, len(kb.patterns))
	for i, p := range kb.patterns {
		names[i] = p.Name
	}
	return names
}

// Patterns returns all patterns in insertion order.
func (kb *KnowledgeBase) Patterns() []Pattern {
	out := make([]Pattern, len(kb.patterns))
	copy(out, kb.patterns)
	return out
}

// IntentRules lists the intent rules in registration order.
func (kb *KnowledgeBase) IntentRules() []IntentRule {
	out := make([]IntentRule, len(kb.intents))
	copy(out, kb.intents)
	return out
}

// Component returns the spec whose name matches exactly, ignoring case.
func (kb *KnowledgeBase) Component(name string) (ComponentSpec, bool) {
	idx, ok := kb.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ComponentSpec{}, false
	}
	return kb.components[idx], true
}

// Components returns all component specs in insertion order.
func (kb *KnowledgeBase) Components() []ComponentSpec {
	out := make([]ComponentSpec, len(kb.components))
	copy(out, kb.components)
	return out
}

// SearchComponents returns components whose name, category, subcategory or
// description contains query, ignoring case.
func (kb *KnowledgeBase) SearchComponents(query string) []ComponentSpec {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []ComponentSpec
	for _, c := range kb.components {
		haystack := strings.ToLower(strings.Join([]string{c.Name, c.Category, c.Subcategory, c.Description}, " "))
		if q == "" || strings.Contains(haystack, q) {
			out = append(out, c)
		}
	}
	return out
}

// Aliases returns the normalized alias tables. Callers must not mutate them.
func (kb *KnowledgeBase) Aliases() AliasTable {
	return kb.aliases
}

// Document rebuilds the serializable form of the knowledge base.
func (kb *KnowledgeBase) Document() Document {
	doc := Document{
		Components: kb.Components(),
		Patterns:   kb.Patterns(),
		Intents:    kb.IntentRules(),
		Aliases: AliasTable{
			Components: make(map[string]string),
			Parameters: make(map[string]string, len(kb.aliases.Parameters)),
		},
	}
	for alias, canonical := range kb.aliases.Components {
		if alias == NormalizeKey(canonical) {
			if _, ok := kb.Component(canonical); ok {
				continue
			}
		}
		doc.Aliases.Components[alias] = canonical
	}
	for alias, canonical := range kb.aliases.Parameters {
		doc.Aliases.Parameters[alias] = canonical
	}
	return doc
}

// Marshal serializes the knowledge base in the given format.
func (kb *KnowledgeBase) Marshal(format Format) ([]byte, error) {
	doc := kb.Document()
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
