package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joshu-sajeev/delayedjobs/common"
	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/dto"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
)

const defaultListLimit = 100

type JobService struct {
	repo JobRepoInterface
}

func NewJobService(repo JobRepoInterface) *JobService {
	return &JobService{repo: repo}
}

var _ JobServiceInterface = (*JobService)(nil)

// Enqueue persists a new job and returns its ID. maxAttempts comes from the
// queue-type defaults. A zero runAt means now.
func (s *JobService) Enqueue(ctx context.Context, queueType, payloadRef string, priority int, runAt time.Time) (uint, error) {
	j, err := s.enqueue(ctx, queueType, payloadRef, priority, config.DefaultsFor(queueType).MaxAttempts, runAt)
	if err != nil {
		return 0, err
	}
	return j.ID, nil
}

func (s *JobService) enqueue(ctx context.Context, queueType, payloadRef string, priority, maxAttempts int, runAt time.Time) (*models.Job, error) {
	if strings.TrimSpace(queueType) == "" {
		return nil, common.ErrEmptyQueueType
	}
	if maxAttempts < 1 {
		maxAttempts = config.DefaultMaxAttempts
	}

	j := &models.Job{
		QueueType:   queueType,
		PayloadRef:  payloadRef,
		Priority:    priority,
		RunAt:       runAt,
		MaxAttempts: maxAttempts,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", queueType, err)
	}
	return j, nil
}

// CreateJob enqueues a job from an HTTP request. Missing priority and max
// attempts fall back to the queue-type defaults.
func (s *JobService) CreateJob(ctx context.Context, req *dto.EnqueueDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	defaults := config.DefaultsFor(req.QueueType)
	priority := defaults.Priority
	if req.Priority != nil {
		priority = *req.Priority
	}
	maxAttempts := defaults.MaxAttempts
	if req.MaxAttempts != nil {
		maxAttempts = *req.MaxAttempts
	}
	var runAt time.Time
	if req.RunAt != nil {
		runAt = *req.RunAt
	}

	j, err := s.enqueue(ctx, req.QueueType, req.PayloadRef, priority, maxAttempts, runAt)
	if err != nil {
		return nil, apiError(err, "failed to add job to database")
	}

	resp := toResponseDTO(j)
	return &resp, nil
}

// GetJobByID retrieves a job by its ID from the repository.
// It maps repository errors to appropriate API errors
// (e.g., not found, timeout, or internal failure).
func (s *JobService) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apiError(err, "failed to get job")
	}

	resp := toResponseDTO(j)
	return &resp, nil
}

// ListJobs returns jobs matching the query, at most defaultListLimit when no
// limit is given.
func (s *JobService) ListJobs(ctx context.Context, query *dto.ListJobsQuery) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	opts := ListOpts{
		QueueType: query.QueueType,
		State:     config.JobState(query.State),
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, apiError(err, "failed to list jobs")
	}

	out := make([]dto.JobResponseDTO, 0, len(jobs))
	for i := range jobs {
		out = append(out, toResponseDTO(&jobs[i]))
	}
	return out, nil
}

// RetryJob re-queues a dead-lettered job with extraAttempts more runs.
func (s *JobService) RetryJob(ctx context.Context, id uint, extraAttempts int) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	j, err := s.repo.Requeue(ctx, id, extraAttempts)
	if err != nil {
		return nil, apiError(err, "failed to retry job")
	}

	resp := toResponseDTO(j)
	return &resp, nil
}

func (s *JobService) Stats(ctx context.Context) (map[config.JobState]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	counts, err := s.repo.CountByState(ctx)
	if err != nil {
		return nil, apiError(err, "failed to count jobs")
	}
	return counts, nil
}

// apiError maps repository and context errors to HTTP errors. fallback is
// the message for anything unexpected.
func apiError(err error, fallback string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return common.Errf(http.StatusRequestTimeout, "request was canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return common.Errf(http.StatusRequestTimeout, "request timeout")
	case errors.Is(err, common.ErrJobNotFound):
		return common.Errf(http.StatusNotFound, "job not found")
	case errors.Is(err, common.ErrNotDeadLettered):
		return common.Errf(http.StatusConflict, "job is not dead-lettered")
	case errors.Is(err, common.ErrEmptyQueueType):
		return common.Errf(http.StatusBadRequest, "queue_type is required")
	default:
		return common.Errf(http.StatusInternalServerError, "%s", fallback)
	}
}

func toResponseDTO(j *models.Job) dto.JobResponseDTO {
	resp := dto.JobResponseDTO{
		ID:                   j.ID,
		QueueType:            j.QueueType,
		PayloadRef:           j.PayloadRef,
		Priority:             j.Priority,
		RunAt:                j.RunAt,
		State:                string(j.State()),
		Attempts:             j.Attempts,
		MaxAttempts:          j.MaxAttempts,
		Locked:               j.Locked,
		LockedAt:             j.LockedAt,
		Complete:             j.Complete,
		CompletedWithFailure: j.CompletedWithFailure,
		CompletedAt:          j.CompletedAt,
		FailedAt:             j.FailedAt,
		Version:              j.Version,
		CreatedAt:            j.CreatedAt,
		UpdatedAt:            j.UpdatedAt,
	}
	if j.LockedBy != nil {
		resp.LockedBy = *j.LockedBy
	}
	if j.LastError != nil {
		resp.LastError = *j.LastError
	}
	if j.FailureReason != nil {
		resp.FailureReason = *j.FailureReason
	}
	return resp
}
