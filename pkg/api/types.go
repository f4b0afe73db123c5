package api

import "github.com/rmax-ai/ghbridge/pkg/intent"

// ClassifyResponse is the body of GET /v1/classify
type ClassifyResponse struct {
	Description string         `json:"description"`
	Matched     bool           `json:"matched"`
	Pattern     string         `json:"pattern,omitempty"`
	Scores      []intent.Score `json:"scores"`
}
