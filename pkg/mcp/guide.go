package mcp

import (
	"fmt"

	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

type componentGuide struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	TypeRules       []string         `json:"type_rules"`
	ConnectionRules []connectionRule `json:"connection_rules"`
	Tips            []string         `json:"tips"`
	CommonIssues    []string         `json:"common_issues"`
	Components      []guideEntry     `json:"components"`
}

type connectionRule struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
}

type guideEntry struct {
	Name        string               `json:"name"`
	Category    string               `json:"category,omitempty"`
	Description string               `json:"description,omitempty"`
	Inputs      []knowledge.PortSpec `json:"inputs,omitempty"`
	Outputs     []knowledge.PortSpec `json:"outputs,omitempty"`
	UsedIn      []string             `json:"used_in_patterns,omitempty"`
}

var typeRules = []string{
	"Ports with the same declared type always connect",
	"Number and Integer ports connect to each other",
	"Curves feed Geometry inputs and Geometry feeds Curve inputs",
	"Points feed Vector inputs and Vectors feed Point inputs",
	"Anything else is accepted unless a component heuristic rejects it",
}

var guideTips = []string{
	"Use XY Plane for plane inputs",
	"Name the target port when a component has several inputs; otherwise the first free input is used",
	"Use search_components to find the right component name before adding it",
	"Use get_component_info to read the actual port names of a placed component",
	"Use validate_connection before wiring when unsure",
	"Use get_connections to confirm that wires were created",
}

var guideIssues = []string{
	"Connecting a Point where a Plane is expected",
	"Wiring two sliders into the same input; the second wire replaces the first",
	"Using MD Slider where a Number Slider is meant",
	"Leaving required inputs unconnected",
	"Coordinates outside the canvas range",
}

// buildGuide assembles the component guide from kb. Connection rules are the
// distinct wires used by its patterns, so they follow the loaded library.
func buildGuide(kb *knowledge.KnowledgeBase) componentGuide {
	g := componentGuide{
		Title:        "Grasshopper Component Guide",
		Description:  "How to create and connect components through ghbridge",
		TypeRules:    typeRules,
		Tips:         guideTips,
		CommonIssues: guideIssues,
	}

	usedIn := make(map[string][]string)
	seen := make(map[string]bool)
	for _, p := range kb.Patterns() {
		for _, n := range p.Nodes {
			name := n.Type
			if spec, ok := kb.Component(n.Type); ok {
				name = spec.Name
			}
			if !containsString(usedIn[name], p.Name) {
				usedIn[name] = append(usedIn[name], p.Name)
			}
		}
		for _, e := range p.Edges {
			src, _ := p.Node(e.Source)
			dst, _ := p.Node(e.Target)
			rule := connectionRule{
				From: src.Type + "." + e.SourcePort,
				To:   dst.Type + "." + e.TargetPort,
			}
			if seen[rule.From+"->"+rule.To] {
				continue
			}
			seen[rule.From+"->"+rule.To] = true
			rule.Description = fmt.Sprintf("Connect the %s output of %s to the %s input of %s (used by %s)",
				e.SourcePort, src.Type, e.TargetPort, dst.Type, p.Name)
			g.ConnectionRules = append(g.ConnectionRules, rule)
		}
	}

	for _, c := range kb.Components() {
		g.Components = append(g.Components, guideEntry{
			Name:        c.Name,
			Category:    c.Category,
			Description: c.Description,
			Inputs:      c.Inputs,
			Outputs:     c.Outputs,
			UsedIn:      usedIn[c.Name],
		})
	}
	return g
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
