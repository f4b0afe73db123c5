package store

import (
	"encoding/json"
	"time"
)

// Record is one journaled materialization.
type Record struct {
	ID            string          `json:"id"`
	Pattern       string          `json:"pattern"`
	Description   string          `json:"description,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	NodeCount     int             `json:"node_count"`
	EdgeCount     int             `json:"edge_count"`
	Succeeded     bool            `json:"succeeded"`
	FailedPhase   string          `json:"failed_phase,omitempty"`
	FailedStep    *int            `json:"failed_step,omitempty"` // index within the phase
	FailedRef     string          `json:"failed_ref,omitempty"`  // template node id or source->target
	FailureReason string          `json:"failure_reason,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
}

// PatternStat aggregates journal rows per pattern.
type PatternStat struct {
	Pattern   string    `json:"pattern"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRunAt time.Time `json:"last_run_at"`
}
