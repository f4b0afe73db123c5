package knowledge

import "strings"

// PortSpec describes one declared port of a component.
type PortSpec struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Nickname string `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	// Type is the declared semantic type tag (Number, Point, Curve, Plane, Any, ...).
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ComponentSpec is the canonical description of a component type.
type ComponentSpec struct {
	Name        string         `json:"name" yaml:"name" validate:"required"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty"`
	Subcategory string         `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      []PortSpec     `json:"inputs,omitempty" yaml:"inputs,omitempty" validate:"dive"`
	Outputs     []PortSpec     `json:"outputs,omitempty" yaml:"outputs,omitempty" validate:"dive"`
	Defaults    map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Input returns the input port with the given name (case-insensitive).
func (c ComponentSpec) Input(name string) (PortSpec, bool) {
	return findPort(c.Inputs, name)
}

// Output returns the output port with the given name (case-insensitive).
func (c ComponentSpec) Output(name string) (PortSpec, bool) {
	return findPort(c.Outputs, name)
}

// TemplateNode is one node of a pattern. ID is local to the pattern.
type TemplateNode struct {
	ID       string         `json:"id" yaml:"id" validate:"required"`
	Type     string         `json:"type" yaml:"type" validate:"required"`
	X        float64        `json:"x" yaml:"x"`
	Y        float64        `json:"y" yaml:"y"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// TemplateEdge wires an output port of one template node to an input port of another.
type TemplateEdge struct {
	Source     string `json:"source" yaml:"source" validate:"required"`
	SourcePort string `json:"source_port" yaml:"source_port" validate:"required"`
	Target     string `json:"target" yaml:"target" validate:"required"`
	TargetPort string `json:"target_port" yaml:"target_port" validate:"required"`
}

// Pattern is a named, reusable template of nodes and edges.
type Pattern struct {
	Name        string         `json:"name" yaml:"name" validate:"required"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []TemplateNode `json:"nodes" yaml:"nodes" validate:"min=1,dive"`
	Edges       []TemplateEdge `json:"edges,omitempty" yaml:"edges,omitempty" validate:"dive"`
}

// Node returns the template node with the given id.
func (p Pattern) Node(id string) (TemplateNode, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return TemplateNode{}, false
}

// IntentRule maps a keyword set to a pattern. Several rules may target the same pattern.
type IntentRule struct {
	Keywords []string `json:"keywords" yaml:"keywords" validate:"min=1,dive,required"`
	Pattern  string   `json:"pattern" yaml:"pattern" validate:"required"`
}

// KeywordSeparators split descriptions into tokens, together with whitespace.
// Hyphens are not separators.
const KeywordSeparators = `.,;:!?()[]{}"'/\`

// IsKeywordSeparator reports whether r ends a token.
func IsKeywordSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return strings.ContainsRune(KeywordSeparators, r)
}

// AliasTable holds normalized alias -> canonical name mappings.
type AliasTable struct {
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Document is the on-disk shape of a knowledge source.
type Document struct {
	Components []ComponentSpec `json:"components" yaml:"components" validate:"dive"`
	Patterns   []Pattern       `json:"patterns" yaml:"patterns" validate:"dive"`
	Intents    []IntentRule    `json:"intents" yaml:"intents" validate:"dive"`
	Aliases    AliasTable      `json:"aliases" yaml:"aliases"`
}

// Format identifies the serialization of a knowledge document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func findPort(ports []PortSpec, name string) (PortSpec, bool) {
	for _, p := range ports {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PortSpec{}, false
}
