package client

import "time"

// Status mirrors GET /v1/health.
type Status struct {
	Status            string    `json:"status"`
	Connected         bool      `json:"connected"`
	KnowledgeSource   string    `json:"knowledge_source"`
	KnowledgeDegraded bool      `json:"knowledge_degraded"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Score is one intent rule hit.
type Score struct {
	Rule    int    `json:"rule"`
	Pattern string `json:"pattern"`
	Matches int    `json:"matches"`
}

// Classification mirrors GET /v1/classify.
type Classification struct {
	Description string  `json:"description"`
	Matched     bool    `json:"matched"`
	Pattern     string  `json:"pattern,omitempty"`
	Scores      []Score `json:"scores"`
}

// Materialization is one journal entry.
type Materialization struct {
	ID            string    `json:"id"`
	Pattern       string    `json:"pattern"`
	Description   string    `json:"description,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
	Succeeded     bool      `json:"succeeded"`
	FailedPhase   string    `json:"failed_phase,omitempty"`
	FailedStep    *int      `json:"failed_step,omitempty"`
	FailedRef     string    `json:"failed_ref,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// PatternStat aggregates journal entries per pattern.
type PatternStat struct {
	Pattern   string    `json:"pattern"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRunAt time.Time `json:"last_run_at"`
}

// Node is a component in the canvas snapshot.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Edge is a wire in the canvas snapshot.
type Edge struct {
	FromID   string `json:"from_id"`
	FromPort string `json:"from_port"`
	ToID     string `json:"to_id"`
	ToPort   string `json:"to_port"`
}

// Canvas mirrors GET /v1/graph.
type Canvas struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`
}
