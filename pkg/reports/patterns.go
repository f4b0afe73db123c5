package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// PatternReport aggregates the journal per pattern over the report window.
type PatternReport struct {
	store ReportStore
}

// NewPatternReport creates a new PatternReport generator.
func NewPatternReport(s ReportStore) *PatternReport {
	return &PatternReport{store: s}
}

type patternAgg struct {
	runs     int
	failures int
	nodes    int
	wires    int
	total    time.Duration
	last     time.Time
}

// Generate writes rows ordered by run count, then pattern name.
func (r *PatternReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"pattern", "runs", "failures", "success_rate", "nodes_created", "wires_created", "avg_duration_ms", "last_run_at"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	records, err := r.store.Between(ctx, params.Start, params.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}

	aggs := make(map[string]*patternAgg)
	for _, rec := range records {
		a, ok := aggs[rec.Pattern]
		if !ok {
			a = &patternAgg{}
			aggs[rec.Pattern] = a
		}
		a.runs++
		if !rec.Succeeded {
			a.failures++
		}
		a.nodes += rec.NodeCount
		a.wires += rec.EdgeCount
		a.total += rec.FinishedAt.Sub(rec.StartedAt)
		if rec.StartedAt.After(a.last) {
			a.last = rec.StartedAt
		}
	}

	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if aggs[names[i]].runs != aggs[names[j]].runs {
			return aggs[names[i]].runs > aggs[names[j]].runs
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		a := aggs[name]
		rate := float64(a.runs-a.failures) / float64(a.runs)
		row := []string{
			name,
			strconv.Itoa(a.runs),
			strconv.Itoa(a.failures),
			strconv.FormatFloat(rate, 'f', 2, 64),
			strconv.Itoa(a.nodes),
			strconv.Itoa(a.wires),
			strconv.FormatInt(a.total.Milliseconds()/int64(a.runs), 10),
			a.last.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}
