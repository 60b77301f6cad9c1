package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const seriesColumns = "id, title, plan_json, job_ids_json, error_message, created_at, updated_at"

// NewSeries persists a series record with the plan fixed and no child jobs.
func (s *Store) NewSeries(ctx context.Context, title string, plan []PlanStep) (*Series, error) {
	if len(plan) == 0 {
		return nil, errors.New("series plan is empty")
	}
	planJSON, err := encodeJSON(plan)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO series (id, title, plan_json, job_ids_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		title,
		planJSON,
		"[]",
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert series: %w", err)
	}

	return s.GetSeries(ctx, id)
}

// GetSeries fetches a series by identifier. A missing series returns (nil, nil).
func (s *Store) GetSeries(ctx context.Context, id string) (*Series, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return series, nil
}

// ListSeries returns all series ordered by creation time.
func (s *Store) ListSeries(ctx context.Context) ([]*Series, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+seriesColumns+` FROM series ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []*Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

// AppendSeriesJob records the job id for the next plan step. The append is
// transactional and refuses to grow job_ids beyond the plan length.
func (s *Store) AppendSeriesJob(ctx context.Context, seriesID, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, seriesID)
	series, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("append job to series %s: series not found", seriesID)
	}
	if err != nil {
		return fmt.Errorf("read series for append: %w", err)
	}

	if len(series.JobIDs) >= len(series.Plan) {
		return fmt.Errorf("series %s: plan already exhausted (%d steps)", seriesID, len(series.Plan))
	}
	series.JobIDs = append(series.JobIDs, jobID)

	jobIDsJSON, err := encodeJSON(series.JobIDs)
	if err != nil {
		return fmt.Errorf("marshal job ids: %w", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`UPDATE series SET job_ids_json = ?, updated_at = ? WHERE id = ?`,
		jobIDsJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
		seriesID,
	)
	if err != nil {
		return fmt.Errorf("append series job: %w", err)
	}
	return tx.Commit()
}

// SetSeriesError records an orchestrator bookkeeping failure (for example,
// plan outlining failed before any job was created).
func (s *Store) SetSeriesError(ctx context.Context, seriesID, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE series SET error_message = ?, updated_at = ? WHERE id = ?`,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		seriesID,
	)
	if err != nil {
		return fmt.Errorf("set series error: %w", err)
	}
	return nil
}

func scanSeries(scanner interface{ Scan(dest ...any) error }) (*Series, error) {
	var (
		id         string
		title      string
		planJSON   string
		jobIDsJSON string
		errMessage sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(&id, &title, &planJSON, &jobIDsJSON, &errMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	series := &Series{
		ID:           id,
		Title:        title,
		ErrorMessage: errMessage.String,
	}
	if err := json.Unmarshal([]byte(planJSON), &series.Plan); err != nil {
		return nil, fmt.Errorf("decode series plan: %w", err)
	}
	if err := json.Unmarshal([]byte(jobIDsJSON), &series.JobIDs); err != nil {
		return nil, fmt.Errorf("decode series job ids: %w", err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		series.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		series.UpdatedAt = updated
	}
	return series, nil
}
