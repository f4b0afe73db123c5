package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rmax-ai/ghbridge/pkg/graph"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"go.uber.org/zap"
)

// Score penalties per diagnostic level.
const (
	errorPenalty   = 10
	warningPenalty = 5
	remarkPenalty  = 1
)

// HealthSummary holds the counts behind a health score.
type HealthSummary struct {
	TotalComponents  int `json:"total_components"`
	TotalConnections int `json:"total_connections"`
	TotalWarnings    int `json:"total_warnings"`
	Errors           int `json:"errors"`
	Warnings         int `json:"warnings"`
	Remarks          int `json:"remarks"`
	HealthScore      int `json:"health_score"`
}

// Suggestion is one actionable finding of a health analysis.
type Suggestion struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
	Components  []string `json:"components,omitempty"`
}

// HealthReport is the outcome of AnalyzeHealth.
type HealthReport struct {
	Summary           HealthSummary     `json:"summary"`
	Status            string            `json:"status"`
	StatusDescription string            `json:"status_description"`
	Diagnostics       []host.Diagnostic `json:"warnings"`
	Suggestions       []Suggestion      `json:"suggestions"`
}

// AnalyzeHealth scores the canvas from its diagnostics and shape. The score
// starts at 100 and loses 10 per error, 5 per warning and 1 per remark,
// never going below zero.
func (e *Engine) AnalyzeHealth(ctx context.Context) (HealthReport, error) {
	diags, err := e.host.AllDiagnostics(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	g, err := e.RefreshCanvas(ctx)
	if err != nil {
		return HealthReport{}, err
	}

	report := HealthReport{
		Diagnostics: diags,
		Suggestions: []Suggestion{},
		Summary: HealthSummary{
			TotalComponents:  len(g.Nodes),
			TotalConnections: len(g.Edges),
			TotalWarnings:    len(diags),
		},
	}
	for _, d := range diags {
		switch strings.ToLower(d.Level) {
		case "error":
			report.Summary.Errors++
		case "warning":
			report.Summary.Warnings++
		case "remark":
			report.Summary.Remarks++
		}
	}
	report.Summary.HealthScore = HealthScore(report.Summary.Errors, report.Summary.Warnings, report.Summary.Remarks)
	report.Status, report.StatusDescription = HealthStatus(report.Summary.HealthScore)
	report.Suggestions = append(report.Suggestions, diagnosticSuggestions(diags)...)
	report.Suggestions = append(report.Suggestions, canvasSuggestions(g)...)

	e.log.Info("canvas_health_analyzed",
		zap.Int("health_score", report.Summary.HealthScore),
		zap.String("status", report.Status),
		zap.Int("suggestions", len(report.Suggestions)))
	return report, nil
}

// HealthScore applies the per-level penalties to a perfect score.
func HealthScore(errors, warnings, remarks int) int {
	score := 100 - errors*errorPenalty - warnings*warningPenalty - remarks*remarkPenalty
	if score < 0 {
		return 0
	}
	return score
}

// HealthStatus buckets a score.
func HealthStatus(score int) (string, string) {
	switch {
	case score >= 90:
		return "Excellent", "Canvas is in excellent condition with minimal issues"
	case score >= 75:
		return "Good", "Canvas is in good condition with some minor issues"
	case score >= 50:
		return "Fair", "Canvas has several issues that should be addressed"
	default:
		return "Poor", "Canvas has significant issues that need immediate attention"
	}
}

type diagnosticRule struct {
	category   string
	noun       string
	suggestion string
	match      func(host.Diagnostic) bool
}

var diagnosticRules = []diagnosticRule{
	{
		category:   "Floating Parameters",
		noun:       "floating parameters",
		suggestion: "Connect these parameters to appropriate sources or set default values",
		match:      func(d host.Diagnostic) bool { return d.Source == "floating_parameter" },
	},
	{
		category:   "Data Collection Issues",
		noun:       "parameters with data collection problems",
		suggestion: "Check the source components and ensure they are properly connected and have valid data",
		match:      func(d host.Diagnostic) bool { return d.Source == "data_collection" },
	},
	{
		category:   "Hidden Components",
		noun:       "hidden components",
		suggestion: "Consider showing these components if they are needed for the definition",
		match:      componentState("hidden"),
	},
	{
		category:   "Locked Components",
		noun:       "locked components",
		suggestion: "Unlock these components if you need to modify them",
		match:      componentState("locked"),
	},
}

func componentState(word string) func(host.Diagnostic) bool {
	return func(d host.Diagnostic) bool {
		return d.Source == "component_state" && strings.Contains(strings.ToLower(d.Text), word)
	}
}

func diagnosticSuggestions(diags []host.Diagnostic) []Suggestion {
	var out []Suggestion
	for _, rule := range diagnosticRules {
		var names []string
		for _, d := range diags {
			if !rule.match(d) {
				continue
			}
			name := d.NodeName
			if name == "" {
				name = "Unknown"
			}
			names = append(names, name)
		}
		if len(names) == 0 {
			continue
		}
		out = append(out, Suggestion{
			Category:    rule.category,
			Description: fmt.Sprintf("Found %d %s", len(names), rule.noun),
			Suggestion:  rule.suggestion,
			Components:  names,
		})
	}
	return out
}

func canvasSuggestions(g *graph.Graph) []Suggestion {
	var out []Suggestion
	nodes, edges := len(g.Nodes), len(g.Edges)

	if nodes == 0 {
		out = append(out, Suggestion{
			Category:    "Empty Canvas",
			Description: "No components found on canvas",
			Suggestion:  "Add components to start building your definition",
		})
	}
	if edges == 0 && nodes > 1 {
		out = append(out, Suggestion{
			Category:    "Unconnected Components",
			Description: fmt.Sprintf("Found %d components but no connections", nodes),
			Suggestion:  "Connect components to create a functional definition",
		})
	}
	if edges > 0 {
		if isolated := g.Isolated(); len(isolated) > 0 {
			names := make([]string, len(isolated))
			for i, n := range isolated {
				names[i] = n.Label
				if names[i] == "" {
					names[i] = n.Type
				}
			}
			out = append(out, Suggestion{
				Category:    "Isolated Components",
				Description: fmt.Sprintf("Found %d components without any wire", len(isolated)),
				Suggestion:  "Wire these components into the definition or remove them",
				Components:  names,
			})
		}
	}
	if g.HasType("Number Slider") && g.HasType("Addition") {
		out = append(out, Suggestion{
			Category:    "Math Operations",
			Description: "Found Number Slider and Addition components",
			Suggestion:  "Ensure Number Sliders are connected to Addition inputs A and B in the correct order",
		})
	}
	if g.HasType("Circle") && !g.HasType("XY Plane") {
		out = append(out, Suggestion{
			Category:    "Plane Inputs",
			Description: "Found Circle component but no XY Plane",
			Suggestion:  "Add XY Plane component to provide plane input for Circle",
		})
	}
	return out
}
