package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/delayedjobs/common"
	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
	"gorm.io/gorm"
)

type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

type RepoOption func(*JobRepository)

// WithClock replaces the time source used for run_at, locked_at and the
// completion timestamps.
func WithClock(now func() time.Time) RepoOption {
	return func(r *JobRepository) { r.now = now }
}

func NewJobRepository(db *gorm.DB, opts ...RepoOption) *JobRepository {
	r := &JobRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// Timestamps are stored in UTC at microsecond precision so a value read back
// from postgres compares equal to the one written.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (r *JobRepository) clock() time.Time {
	return normalize(r.now())
}

func persistErr(op string, err error) error {
	return &common.PersistenceError{Op: op, Err: err}
}

// Create inserts a new job in the eligible-or-pending state. A zero RunAt
// means now.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	if j.RunAt.IsZero() {
		j.RunAt = r.clock()
	} else {
		j.RunAt = normalize(j.RunAt)
	}
	j.Attempts = 0
	j.Locked = false
	j.LockedAt = nil
	j.LockedBy = nil
	j.Complete = false
	j.CompletedWithFailure = false
	j.Version = 1

	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return persistErr("create job", err)
	}
	return nil
}

// Get retrieves a single job by ID. A missing row yields common.ErrJobNotFound.
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get job %d: %w", id, common.ErrJobNotFound)
		}
		return nil, persistErr("get job", err)
	}
	return &j, nil
}

func stateScope(state config.JobState) (func(*gorm.DB) *gorm.DB, error) {
	var cond string
	var args []any

	switch state {
	case config.JobStatePending:
		cond, args = "locked = ? AND complete = ?", []any{false, false}
	case config.JobStateOwned:
		cond, args = "locked = ? AND complete = ?", []any{true, false}
	case config.JobStateSucceeded:
		cond, args = "complete = ? AND completed_with_failure = ?", []any{true, false}
	case config.JobStateDead:
		cond, args = "complete = ? AND completed_with_failure = ?", []any{true, true}
	default:
		return nil, fmt.Errorf("unknown job state %q", state)
	}

	return func(db *gorm.DB) *gorm.DB {
		return db.Where(cond, args...)
	}, nil
}

// List returns jobs ordered by ID, optionally filtered by queue type and
// derived state.
func (r *JobRepository) List(ctx context.Context, opts job.ListOpts) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{})

	if opts.QueueType != "" {
		q = q.Where("queue_type = ?", opts.QueueType)
	}
	if opts.State != "" {
		scope, err := stateScope(opts.State)
		if err != nil {
			return nil, err
		}
		q = q.Scopes(scope)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var jobs []models.Job
	if err := q.Order("id ASC").Find(&jobs).Error; err != nil {
		return nil, persistErr("list jobs", err)
	}
	return jobs, nil
}

// CountByState returns the number of jobs in each derived state. Every state
// is present in the result, zero counts included.
func (r *JobRepository) CountByState(ctx context.Context) (map[config.JobState]int64, error) {
	var rows []struct {
		State string
		Count int64
	}

	err := r.db.WithContext(ctx).Raw(`
		SELECT
			CASE
				WHEN complete AND completed_with_failure THEN 'dead'
				WHEN complete THEN 'succeeded'
				WHEN locked THEN 'owned'
				ELSE 'pending'
			END AS state,
			COUNT(*) AS count
		FROM delayed_jobs
		GROUP BY 1`).Scan(&rows).Error
	if err != nil {
		return nil, persistErr("count jobs", err)
	}

	counts := make(map[config.JobState]int64, len(config.AllJobStates))
	for _, s := range config.AllJobStates {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[config.JobState(row.State)] = row.Count
	}
	return counts, nil
}

// FindReadyToRun returns up to limit eligible jobs, highest priority first
// and oldest run_at first within a priority.
func (r *JobRepository) FindReadyToRun(ctx context.Context, limit int, queueTypes ...string) ([]models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).
		Where("locked = ? AND complete = ? AND run_at <= ?", false, false, r.clock())
	if len(queueTypes) > 0 {
		q = q.Where("queue_type IN ?", queueTypes)
	}

	var jobs []models.Job
	if err := q.Order("priority DESC, run_at ASC, id ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, persistErr("find ready jobs", err)
	}
	return jobs, nil
}

// FindStale returns owned jobs locked before now minus timeout.
func (r *JobRepository) FindStale(ctx context.Context, timeout time.Duration) ([]models.Job, error) {
	cutoff := r.clock().Add(-timeout)

	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("locked = ? AND complete = ? AND locked_at < ?", true, false, cutoff).
		Order("locked_at ASC, id ASC").
		Find(&jobs).Error; err != nil {
		return nil, persistErr("find stale jobs", err)
	}
	return jobs, nil
}

// Claim locks j for workerID. It succeeds only if the row is still unlocked,
// incomplete and at the version j was read with. On success j reflects the
// owned state.
func (r *JobRepository) Claim(ctx context.Context, j *models.Job, workerID string) (bool, error) {
	now := r.clock()

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND locked = ? AND complete = ? AND version = ?", j.ID, false, false, j.Version).
		Updates(map[string]any{
			"locked":     true,
			"locked_at":  now,
			"locked_by":  workerID,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, persistErr("claim job", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	j.Locked = true
	j.LockedAt = &now
	j.LockedBy = &workerID
	j.Version++
	j.UpdatedAt = now
	return true, nil
}

// updateOwned applies values to j only while the caller still owns it.
func (r *JobRepository) updateOwned(ctx context.Context, op string, j *models.Job, values map[string]any) error {
	values["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND version = ? AND locked = ? AND complete = ?", j.ID, j.Version, true, false).
		Updates(values)
	if res.Error != nil {
		return persistErr(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", op, j.ID, common.ErrLockLost)
	}
	j.Version++
	return nil
}

// MarkCompleted records a successful run. Lock fields are kept as an audit of
// the last owner.
func (r *JobRepository) MarkCompleted(ctx context.Context, j *models.Job) error {
	now := r.clock()

	err := r.updateOwned(ctx, "complete job", j, map[string]any{
		"complete":               true,
		"completed_with_failure": false,
		"completed_at":           now,
		"updated_at":             now,
	})
	if err != nil {
		return err
	}

	j.Complete = true
	j.CompletedWithFailure = false
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// ScheduleRetry counts the failed attempt, releases the lock and pushes
// run_at out to runAt.
func (r *JobRepository) ScheduleRetry(ctx context.Context, j *models.Job, runAt time.Time, errMsg string) error {
	now := r.clock()
	runAt = normalize(runAt)
	attempts := j.Attempts + 1

	err := r.updateOwned(ctx, "schedule retry", j, map[string]any{
		"attempts":   attempts,
		"run_at":     runAt,
		"locked":     false,
		"locked_at":  nil,
		"locked_by":  nil,
		"last_error": errMsg,
		"updated_at": now,
	})
	if err != nil {
		return err
	}

	j.Attempts = attempts
	j.RunAt = runAt
	j.Locked = false
	j.LockedAt = nil
	j.LockedBy = nil
	j.LastError = &errMsg
	j.UpdatedAt = now
	return nil
}

// MarkFailed counts the final attempt and dead-letters the job.
func (r *JobRepository) MarkFailed(ctx context.Context, j *models.Job, reason string) error {
	now := r.clock()
	attempts := j.Attempts + 1

	err := r.updateOwned(ctx, "fail job", j, map[string]any{
		"attempts":               attempts,
		"complete":               true,
		"completed_with_failure": true,
		"failure_reason":         reason,
		"last_error":             reason,
		"failed_at":              now,
		"updated_at":             now,
	})
	if err != nil {
		return err
	}

	j.Attempts = attempts
	j.Complete = true
	j.CompletedWithFailure = true
	j.FailureReason = &reason
	j.LastError = &reason
	j.FailedAt = &now
	j.UpdatedAt = now
	return nil
}

// Release clears the lock on a stale job. The locked_at guard makes it a
// no-op when the owner finished or the job was re-claimed after the scan.
func (r *JobRepository) Release(ctx context.Context, j *models.Job) (bool, error) {
	if j.LockedAt == nil {
		return false, nil
	}
	now := r.clock()

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND locked = ? AND complete = ? AND locked_at = ?", j.ID, true, false, normalize(*j.LockedAt)).
		Updates(map[string]any{
			"locked":     false,
			"locked_at":  nil,
			"locked_by":  nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, persistErr("release job", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	j.Locked = false
	j.LockedAt = nil
	j.LockedBy = nil
	j.Version++
	j.UpdatedAt = now
	return true, nil
}

// Requeue makes a dead-lettered job eligible again. attempts is kept and
// max_attempts raised to attempts + extraAttempts (at least one more run).
func (r *JobRepository) Requeue(ctx context.Context, id uint, extraAttempts int) (*models.Job, error) {
	if extraAttempts < 1 {
		extraAttempts = 1
	}
	now := r.clock()

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND complete = ? AND completed_with_failure = ?", id, true, true).
		Updates(map[string]any{
			"complete":               false,
			"completed_with_failure": false,
			"completed_at":           nil,
			"failed_at":              nil,
			"failure_reason":         nil,
			"locked":                 false,
			"locked_at":              nil,
			"locked_by":              nil,
			"run_at":                 now,
			"max_attempts":           gorm.Expr("attempts + ?", extraAttempts),
			"version":                gorm.Expr("version + 1"),
			"updated_at":             now,
		})
	if res.Error != nil {
		return nil, persistErr("requeue job", res.Error)
	}

	j, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("requeue job %d: %w", id, common.ErrNotDeadLettered)
	}
	return j, nil
}
