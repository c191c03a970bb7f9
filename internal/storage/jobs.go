package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultMaxAttempts applies to jobs enqueued without MaxAttempts.
const DefaultMaxAttempts = 3

const maxRetryDelay = time.Hour

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error, result`

// RetryDelay is how long a job waits after its n-th failed attempt:
// 2s, 4s, 8s and so on, capped at one hour.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 11 {
		return maxRetryDelay
	}
	return min(time.Second<<attempts, maxRetryDelay)
}

// EnqueueJob stores job as pending. A zero RunAfter makes it runnable now.
func (s *Store) EnqueueJob(ctx context.Context, job Job) error {
	if job.ID == "" || job.Type == "" {
		return errors.New("job needs an id and a type")
	}
	ts := now()
	runAfter := ts
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(timeLayout)
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, JobPending, job.MaxAttempts, runAfter, ts, ts)
	if err != nil {
		return fmt.Errorf("enqueueing job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimNextJob marks the oldest due pending job of one of types as running
// and returns it, or returns nil, nil if nothing is due.
func (s *Store) ClaimNextJob(ctx context.Context, types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	ts := now()
	args := []any{JobPending, ts}
	for _, t := range types {
		args = append(args, t)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status = ? AND run_after <= ? AND type IN (?` + strings.Repeat(", ?", len(types)-1) + `)
		ORDER BY run_after, created_at
		LIMIT 1`

	var claimed *Job
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		j, err := scanJob(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, JobRunning, ts, j.ID); err != nil {
			return fmt.Errorf("claiming job %s: %w", j.ID, err)
		}
		j.Status = JobRunning
		j.UpdatedAt, _ = parseTimestamp(ts)
		claimed = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// GetJob returns the job with id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

// CompleteJob marks a job completed with result, normally the ID of the
// record it produced.
func (s *Store) CompleteJob(ctx context.Context, id, result string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		JobCompleted, result, now(), id)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records a failed attempt. The job goes back to pending after
// RetryDelay, or to failed once it has used max_attempts.
func (s *Store) FailJob(ctx context.Context, id, errMsg string) error {
	return s.failJob(ctx, id, errMsg, false)
}

// FailJobPermanent records a failed attempt and marks the job failed
// regardless of the attempts it has left.
func (s *Store) FailJobPermanent(ctx context.Context, id, errMsg string) error {
	return s.failJob(ctx, id, errMsg, true)
}

func (s *Store) failJob(ctx context.Context, id, errMsg string, permanent bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var attempts, maxAttempts int
		err := tx.QueryRowContext(ctx, `SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading job %s: %w", id, err)
		}

		attempts++
		status, runAfter := JobPending, time.Now().UTC().Add(RetryDelay(attempts)).Format(timeLayout)
		if permanent || attempts >= maxAttempts {
			status = JobFailed
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			status, attempts, errMsg, runAfter, now(), id)
		if err != nil {
			return fmt.Errorf("failing job %s: %w", id, err)
		}
		return nil
	})
}

func scanJob(row *sql.Row) (*Job, error) {
	var (
		j                          Job
		runAfter, created, updated string
		lastError, result          sql.NullString
	)
	err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &created, &updated, &lastError, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	j.LastError, j.Result = lastError.String, result.String

	for _, f := range []struct {
		raw string
		dst *time.Time
	}{{runAfter, &j.RunAfter}, {created, &j.CreatedAt}, {updated, &j.UpdatedAt}} {
		if *f.dst, err = parseTimestamp(f.raw); err != nil {
			return nil, fmt.Errorf("job %s: bad timestamp %q: %w", j.ID, f.raw, err)
		}
	}
	return &j, nil
}

// parseTimestamp reads the stored timeLayout form. RFC3339 is accepted too,
// which is what the driver returns for columns declared DATETIME.
func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, raw, time.UTC)
	if err == nil {
		return t, nil
	}
	if t, err2 := time.Parse(time.RFC3339Nano, raw); err2 == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}
