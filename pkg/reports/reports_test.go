package reports

import (
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/rmax-ai/ghbridge/pkg/store"
)

type mockReportStore struct {
	records []store.Record
}

func (m *mockReportStore) Between(ctx context.Context, from, to time.Time) ([]store.Record, error) {
	var results []store.Record
	for _, r := range m.records {
		if !from.IsZero() && r.StartedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !r.StartedAt.Before(to) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func record(id, pattern string, started time.Time, ok bool) store.Record {
	rec := store.Record{
		ID:         id,
		Pattern:    pattern,
		StartedAt:  started,
		FinishedAt: started.Add(200 * time.Millisecond),
		NodeCount:  3,
		EdgeCount:  2,
		Succeeded:  ok,
	}
	if !ok {
		rec.EdgeCount = 1
		rec.FailedPhase = "edge"
		step := 1
		rec.FailedStep = &step
		rec.FailedRef = "radius->circle"
		rec.FailureReason = "Parameter 'R' not found"
	}
	return rec
}

func readCSV(t *testing.T, g Generator, params ReportParams) [][]string {
	t.Helper()
	reader, err := g.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	return records
}

func TestJournalReport(t *testing.T) {
	now := time.Now()
	s := &mockReportStore{records: []store.Record{
		record("r1", "Circle", now.Add(-3*time.Hour), true),
		record("r2", "Circle", now.Add(-10*time.Minute), false),
		record("r3", "Line", now.Add(-5*time.Minute), true),
	}}
	r := NewJournalReport(s)

	records := readCSV(t, r, ReportParams{Start: now.Add(-1 * time.Hour), End: now})
	if len(records) != 3 { // Header + 2 rows
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[1][1] != "r2" || records[1][7] != "false" || records[1][9] != "1" || records[1][10] != "radius->circle" || records[1][11] != "Parameter 'R' not found" {
		t.Errorf("unexpected failed row: %v", records[1])
	}
	if records[2][6] != "200" {
		t.Errorf("Expected duration 200, got %s", records[2][6])
	}

	records = readCSV(t, r, ReportParams{Filters: map[string]interface{}{"pattern": "circle", "failed_only": true}})
	if len(records) != 2 || records[1][1] != "r2" {
		t.Errorf("filters not applied: %v", records)
	}
}

func TestPatternReport(t *testing.T) {
	now := time.Now()
	s := &mockReportStore{records: []store.Record{
		record("r1", "Line", now.Add(-3*time.Minute), true),
		record("r2", "Circle", now.Add(-2*time.Minute), true),
		record("r3", "Circle", now.Add(-1*time.Minute), false),
	}}
	r := NewPatternReport(s)

	records := readCSV(t, r, ReportParams{})
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	circle := records[1]
	if circle[0] != "Circle" || circle[1] != "2" || circle[2] != "1" || circle[3] != "0.50" {
		t.Errorf("unexpected Circle row: %v", circle)
	}
	if circle[4] != "6" || circle[5] != "3" {
		t.Errorf("unexpected totals: %v", circle)
	}
	if records[2][0] != "Line" {
		t.Errorf("Expected Line second, got %s", records[2][0])
	}
}

func TestNewReportGenerator(t *testing.T) {
	s := &mockReportStore{}
	for _, typ := range []ReportType{ReportTypeJournal, ReportTypePatterns} {
		if _, err := NewReportGenerator(typ, s); err != nil {
			t.Errorf("NewReportGenerator(%s) failed: %v", typ, err)
		}
	}
	if _, err := NewReportGenerator("usage", s); err == nil {
		t.Error("Expected error for unknown report type")
	}
}
