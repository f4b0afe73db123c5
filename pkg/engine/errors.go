package engine

import "errors"

var (
	// ErrNoPatternMatched is returned when no intent rule scores for a description.
	ErrNoPatternMatched = errors.New("no pattern matched the description")
	// ErrUnknownPattern is returned for a pattern name the knowledge base lacks.
	ErrUnknownPattern = errors.New("unknown pattern")
	// ErrInvalidArgument marks caller input rejected before any host call.
	ErrInvalidArgument = errors.New("invalid argument")
)
