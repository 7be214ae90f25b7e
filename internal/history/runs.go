package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = "id, project, mode, format, destination, status, total, exported, failed, reason, started_at, finished_at"

const jobColumns = "run_id, seq, track, output_path, status, error_message, started_at, finished_at"

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO export_runs (id, project, mode, format, destination, status, total, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Project, string(run.Mode), run.Format, run.Destination,
		string(RunRunning), run.Total, timestamp(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counts and status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, total, exported, failed int, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE export_runs
         SET status = ?, total = ?, exported = ?, failed = ?, reason = ?, finished_at = ?
         WHERE id = ?`,
		string(status), total, exported, failed, nullableString(reason), timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}
	return nil
}

// StartJob records a job entering the rendering state. Restarting a job
// replaces its previous row.
func (s *Store) StartJob(ctx context.Context, runID string, seq int, track, outputPath string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO export_jobs (run_id, seq, track, output_path, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, seq, track, outputPath, string(JobRendering), timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FinishJob stores a job's outcome.
func (s *Store) FinishJob(ctx context.Context, runID string, seq int, status JobStatus, errorMessage string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE export_jobs SET status = ?, error_message = ?, finished_at = ?
         WHERE run_id = ? AND seq = ?`,
		string(status), nullableString(errorMessage), timestamp(time.Now()), runID, seq,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish job: unknown job %s#%d", runID, seq)
	}
	return nil
}

// GetRun fetches a run by ID. It returns nil, nil when no run matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+runColumns+" FROM export_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM export_runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Jobs returns a run's jobs in sequence order.
func (s *Store) Jobs(ctx context.Context, runID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+jobColumns+" FROM export_jobs WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Clear removes every run and job and returns the number of runs deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if _, err := s.execWithRetry(ctx, "DELETE FROM export_jobs"); err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	res, err := s.execWithRetry(ctx, "DELETE FROM export_runs")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		mode        string
		status      string
		reason      sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.Project, &mode, &run.Format, &run.Destination, &status,
		&run.Total, &run.Exported, &run.Failed, &reason, &startedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Mode = Mode(mode)
	run.Status = RunStatus(status)
	run.Reason = reason.String
	if t, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

func scanJob(row scanner) (*Job, error) {
	var (
		job         Job
		status      string
		errMessage  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := row.Scan(
		&job.RunID, &job.Seq, &job.Track, &job.OutputPath, &status,
		&errMessage, &startedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.ErrorMessage = errMessage.String
	if t, err := parseTimeString(startedRaw); err == nil {
		job.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &t
		}
	}
	return &job, nil
}
