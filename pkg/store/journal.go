package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/ghbridge/pkg/materialize"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("journal entry not found")

// RecordMaterialization appends the outcome of a materialization, failed or not.
func (s *Store) RecordMaterialization(ctx context.Context, description string, res *materialize.Result) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var phase, ref, reason sql.NullString
	var step sql.NullInt64
	if res.Failure != nil {
		phase = sql.NullString{String: res.Failure.Phase, Valid: true}
		step = sql.NullInt64{Int64: int64(res.Failure.Step), Valid: true}
		ref = sql.NullString{String: res.Failure.TemplateID, Valid: true}
		reason = sql.NullString{String: res.Failure.Reason, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO materializations (
			id, pattern, description, started_at, finished_at,
			node_count, edge_count, succeeded,
			failed_phase, failed_step, failed_ref, failure_reason, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.ID, res.Pattern, description, res.StartedAt.UTC(), res.FinishedAt.UTC(),
		res.NodeCount(), res.EdgeCount(), res.Succeeded(),
		phase, step, ref, reason, string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to insert materialization: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, pattern, description, started_at, finished_at,
	       node_count, edge_count, succeeded,
	       failed_phase, failed_step, failed_ref, failure_reason, result
	FROM materializations`

// Recent returns the newest journal entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query materializations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate materializations: %w", err)
	}
	return out, nil
}

// Between returns entries started in [from, to), oldest first. A zero bound
// is open.
func (s *Store) Between(ctx context.Context, from, to time.Time) ([]Record, error) {
	query := selectColumns + ` WHERE 1=1`
	var args []any
	if !from.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += ` AND started_at < ?`
		args = append(args, to.UTC())
	}
	query += ` ORDER BY started_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query materializations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate materializations: %w", err)
	}
	return out, nil
}

// Get returns one journal entry by result id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// PatternStats summarizes runs per pattern, most used first.
func (s *Store) PatternStats(ctx context.Context) ([]PatternStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, COUNT(*), SUM(CASE WHEN succeeded = 0 THEN 1 ELSE 0 END), MAX(started_at)
		FROM materializations
		GROUP BY pattern
		ORDER BY COUNT(*) DESC, pattern ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern stats: %w", err)
	}
	defer rows.Close()

	var out []PatternStat
	for rows.Next() {
		var st PatternStat
		var last string
		if err := rows.Scan(&st.Pattern, &st.Runs, &st.Failures, &last); err != nil {
			return nil, fmt.Errorf("failed to scan pattern stat: %w", err)
		}
		st.LastRunAt = parseTime(last)
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var desc, phase, ref, reason sql.NullString
	var step sql.NullInt64
	var result string
	err := row.Scan(
		&rec.ID, &rec.Pattern, &desc, &rec.StartedAt, &rec.FinishedAt,
		&rec.NodeCount, &rec.EdgeCount, &rec.Succeeded,
		&phase, &step, &ref, &reason, &result,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("failed to scan materialization: %w", err)
	}
	rec.Description = desc.String
	rec.FailedPhase = phase.String
	if step.Valid {
		n := int(step.Int64)
		rec.FailedStep = &n
	}
	rec.FailedRef = ref.String
	rec.FailureReason = reason.String
	rec.Result = json.RawMessage(result)
	return rec, nil
}

// parseTime reads the aggregate timestamps sqlite returns as text.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
