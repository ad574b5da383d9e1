package job

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/dto"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
)

// ListOpts filters job listings. Zero values mean no filter.
type ListOpts struct {
	QueueType string
	State     config.JobState
	Limit     int
	Offset    int
}

// JobRepoInterface defines the contract for job repository operations.
// Every mutation is a single conditional update and bumps the record version.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context, opts ListOpts) ([]models.Job, error)
	CountByState(ctx context.Context) (map[config.JobState]int64, error)

	// FindReadyToRun returns unlocked, incomplete jobs whose run_at has passed,
	// ordered by priority DESC, run_at ASC. It never claims anything.
	FindReadyToRun(ctx context.Context, limit int, queueTypes ...string) ([]models.Job, error)
	// FindStale returns owned jobs whose lock is older than timeout.
	FindStale(ctx context.Context, timeout time.Duration) ([]models.Job, error)

	// Claim locks job for workerID if it is still free and unchanged since it
	// was read. A false result with a nil error is a contention miss.
	Claim(ctx context.Context, job *models.Job, workerID string) (bool, error)
	MarkCompleted(ctx context.Context, job *models.Job) error
	ScheduleRetry(ctx context.Context, job *models.Job, runAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, job *models.Job, reason string) error
	// Release clears a stale lock. A false result means the job moved on.
	Release(ctx context.Context, job *models.Job) (bool, error)
	Requeue(ctx context.Context, id uint, extraAttempts int) (*models.Job, error)
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	Enqueue(ctx context.Context, queueType, payloadRef string, priority int, runAt time.Time) (uint, error)
	CreateJob(ctx context.Context, dto *dto.EnqueueDTO) (*dto.JobResponseDTO, error)
	GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, query *dto.ListJobsQuery) ([]dto.JobResponseDTO, error)
	RetryJob(ctx context.Context, id uint, extraAttempts int) (*dto.JobResponseDTO, error)
	Stats(ctx context.Context) (map[config.JobState]int64, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Retry(c *gin.Context)
	Stats(c *gin.Context)
}
