package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/ghbridge/pkg/store"
)

type ReportType string

const (
	ReportTypeJournal  ReportType = "journal"
	ReportTypePatterns ReportType = "patterns"
)

type ReportParams struct {
	Start   time.Time
	End     time.Time
	Filters map[string]interface{}
}

// ReportStore defines the interface for data access required by reports.
type ReportStore interface {
	Between(ctx context.Context, from, to time.Time) ([]store.Record, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}

// filterString reads a string filter, returning "" when absent.
func (p ReportParams) filterString(key string) string {
	if v, ok := p.Filters[key].(string); ok {
		return v
	}
	return ""
}

func (p ReportParams) filterBool(key string) bool {
	v, _ := p.Filters[key].(bool)
	return v
}
