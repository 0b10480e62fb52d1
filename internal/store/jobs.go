package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, kind, episode_id, post_id, status, attempt, max_attempts, run_at, lease_token, last_heartbeat, last_error, created_at, updated_at"

// claimCandidates bounds how many contested candidates a single claim call
// walks before giving up and letting the caller poll again.
const claimCandidates = 3

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		kind         string
		episodeID    sql.NullString
		postID       sql.NullString
		statusStr    string
		attempt      int
		maxAttempts  int
		runAtRaw     sql.NullString
		leaseToken   sql.NullString
		heartbeatRaw sql.NullString
		lastError    sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&episodeID,
		&postID,
		&statusStr,
		&attempt,
		&maxAttempts,
		&runAtRaw,
		&leaseToken,
		&heartbeatRaw,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		Kind:        JobKind(kind),
		EpisodeID:   episodeID.String,
		PostID:      postID.String,
		Status:      JobStatus(statusStr),
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		LeaseToken:  leaseToken.String,
		LastError:   lastError.String,
	}

	if runAt, err := parseTimeString(runAtRaw.String); err == nil {
		job.RunAt = runAt
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

// EnqueueJob inserts a pending job for a work unit, or returns the already
// open job when one exists for the same kind and unit. Enqueueing is
// therefore safe to repeat from the scheduler, the API, and stage chaining.
func (s *Store) EnqueueJob(ctx context.Context, kind JobKind, episodeID, postID string, runAt time.Time, maxAttempts int) (*Job, error) {
	if kind == "" {
		return nil, errors.New("job kind is empty")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	existing, err := s.FindOpenJob(ctx, kind, episodeID, postID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            kind, episode_id, post_id, status, attempt, max_attempts, run_at,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		kind,
		episodeID,
		postID,
		JobPending,
		maxAttempts,
		runAt.UTC().Format(time.RFC3339Nano),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Missing rows return nil, nil.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindOpenJob returns the pending or running job for a kind and work unit,
// or nil when none exists.
func (s *Store) FindOpenJob(ctx context.Context, kind JobKind, episodeID, postID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE kind = ? AND episode_id = ? AND post_id = ? AND status IN (?, ?)
         ORDER BY id LIMIT 1`,
		kind,
		episodeID,
		postID,
		JobPending,
		JobRunning,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open job: %w", err)
	}
	return job, nil
}

// ClaimNextJob leases the earliest due pending job of the given kinds. The
// claim bumps the attempt counter and stamps a fresh lease token plus
// heartbeat; concurrent claimers race on the status flip, so a lost race
// moves on to the next candidate. Returns nil, nil when nothing is due.
func (s *Store) ClaimNextJob(ctx context.Context, kinds ...JobKind) (*Job, error) {
	ctx = ensureContext(ctx)
	if len(kinds) == 0 {
		kinds = allJobKinds
	}
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)

	selectQuery := `SELECT id FROM jobs WHERE status = ? AND run_at <= ? AND kind IN (` +
		makePlaceholders(len(kinds)) + `) ORDER BY run_at, id LIMIT 1`
	selectArgs := make([]any, 0, len(kinds)+2)
	selectArgs = append(selectArgs, JobPending, nowStr)
	for _, kind := range kinds {
		selectArgs = append(selectArgs, kind)
	}

	for candidate := 0; candidate < claimCandidates; candidate++ {
		var id int64
		row := s.db.QueryRowContext(ctx, selectQuery, selectArgs...)
		err := row.Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select due job: %w", err)
		}

		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET
                status = ?, attempt = attempt + 1, lease_token = ?,
                last_heartbeat = ?, updated_at = ?
            WHERE id = ? AND status = ?`,
			JobRunning,
			newID(),
			nowStr,
			nowStr,
			id,
			JobPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim job rows: %w", err)
		}
		if affected == 0 {
			continue
		}
		return s.GetJob(ctx, id)
	}
	return nil, nil
}

// HeartbeatJob refreshes the lease heartbeat for an in-flight job. Returns
// ErrLeaseConflict when the job was reclaimed in the meantime.
func (s *Store) HeartbeatJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ? AND lease_token = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		job.ID,
		JobRunning,
		job.LeaseToken,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update heartbeat rows: %w", err)
	}
	if affected == 0 {
		return ErrLeaseConflict
	}
	heartbeat := now
	job.LastHeartbeat = &heartbeat
	return nil
}

// CompleteJob marks a leased job as completed. Returns ErrLeaseConflict when
// the lease no longer matches, in which case the job's outcome belongs to
// whichever worker holds the current lease.
func (s *Store) CompleteJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            status = ?, lease_token = '', last_heartbeat = NULL,
            last_error = '', updated_at = ?
        WHERE id = ? AND status = ? AND lease_token = ?`,
		JobCompleted,
		now.Format(time.RFC3339Nano),
		job.ID,
		JobRunning,
		job.LeaseToken,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete job rows: %w", err)
	}
	if affected == 0 {
		return ErrLeaseConflict
	}
	job.Status = JobCompleted
	job.LeaseToken = ""
	job.LastHeartbeat = nil
	job.LastError = ""
	return nil
}

// FailJob records a failed attempt on a leased job. Retryable failures with
// attempts remaining go back to pending with exponential backoff; the rest
// park as failed. Returns ErrLeaseConflict when the lease no longer matches.
func (s *Store) FailJob(ctx context.Context, job *Job, message string, retryable bool) error {
	if job == nil {
		return errors.New("job is nil")
	}
	now := time.Now().UTC()

	if retryable && job.Attempt < job.MaxAttempts {
		runAt := now.Add(s.backoffForAttempt(job.Attempt))
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET
                status = ?, run_at = ?, lease_token = '', last_heartbeat = NULL,
                last_error = ?, updated_at = ?
            WHERE id = ? AND status = ? AND lease_token = ?`,
			JobPending,
			runAt.Format(time.RFC3339Nano),
			message,
			now.Format(time.RFC3339Nano),
			job.ID,
			JobRunning,
			job.LeaseToken,
		)
		if err != nil {
			return fmt.Errorf("retry job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("retry job rows: %w", err)
		}
		if affected == 0 {
			return ErrLeaseConflict
		}
		job.Status = JobPending
		job.RunAt = runAt
		job.LeaseToken = ""
		job.LastHeartbeat = nil
		job.LastError = message
		return nil
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            status = ?, lease_token = '', last_heartbeat = NULL,
            last_error = ?, updated_at = ?
        WHERE id = ? AND status = ? AND lease_token = ?`,
		JobFailed,
		message,
		now.Format(time.RFC3339Nano),
		job.ID,
		JobRunning,
		job.LeaseToken,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail job rows: %w", err)
	}
	if affected == 0 {
		return ErrLeaseConflict
	}
	job.Status = JobFailed
	job.LeaseToken = ""
	job.LastHeartbeat = nil
	job.LastError = message
	return nil
}

func (s *Store) backoffForAttempt(attempt int) time.Duration {
	backoff := s.retryBackoff
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	limit := s.retryBackoffCap
	if limit < backoff {
		limit = backoff
	}
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	return backoff
}

// RetryJob moves a failed job back to pending with a fresh attempt budget.
func (s *Store) RetryJob(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            status = ?, attempt = 0, run_at = ?, lease_token = '',
            last_heartbeat = NULL, last_error = '', updated_at = ?
        WHERE id = ? AND status = ?`,
		JobPending,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
		JobFailed,
	)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry job rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d is not failed", id)
	}
	return nil
}

// ReclaimStaleJobs returns running jobs whose heartbeat expired back to
// pending with their lease cleared. A reclaimed worker's late writes then
// fail the lease check instead of clobbering the new attempt.
func (s *Store) ReclaimStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            status = ?, lease_token = '', last_heartbeat = NULL,
            last_error = 'reclaimed: heartbeat expired', updated_at = ?
        WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		JobPending,
		now.Format(time.RFC3339Nano),
		JobRunning,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListJobs returns jobs ordered by run time, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY run_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// ListJobsForEpisode returns every job touching an episode, newest first.
func (s *Store) ListJobsForEpisode(ctx context.Context, episodeID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE episode_id = ? ORDER BY id DESC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list episode jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// PruneJobs deletes completed and failed jobs last updated before the
// cutoff.
func (s *Store) PruneJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at < ?`,
		JobCompleted,
		JobFailed,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}
