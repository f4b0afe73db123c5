package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// JournalReport generates one CSV row per recorded materialization.
type JournalReport struct {
	store ReportStore
}

// NewJournalReport creates a new JournalReport generator.
func NewJournalReport(s ReportStore) *JournalReport {
	return &JournalReport{store: s}
}

// Generate honours the "pattern" (case-insensitive) and "failed_only" filters.
func (r *JournalReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"started_at", "id", "pattern", "description", "nodes", "wires", "duration_ms", "succeeded", "failed_phase", "failed_step", "failed_ref", "failure_reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	records, err := r.store.Between(ctx, params.Start, params.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}

	pattern := params.filterString("pattern")
	failedOnly := params.filterBool("failed_only")

	for _, rec := range records {
		if pattern != "" && !strings.EqualFold(rec.Pattern, pattern) {
			continue
		}
		if failedOnly && rec.Succeeded {
			continue
		}
		step := ""
		if rec.FailedStep != nil {
			step = strconv.Itoa(*rec.FailedStep)
		}
		row := []string{
			rec.StartedAt.UTC().Format(time.RFC3339),
			rec.ID,
			rec.Pattern,
			rec.Description,
			strconv.Itoa(rec.NodeCount),
			strconv.Itoa(rec.EdgeCount),
			strconv.FormatInt(rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(), 10),
			strconv.FormatBool(rec.Succeeded),
			rec.FailedPhase,
			step,
			rec.FailedRef,
			rec.FailureReason,
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
