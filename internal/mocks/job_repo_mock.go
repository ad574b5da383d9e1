package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobRepoMock struct {
	mock.Mock
}

var _ job.JobRepoInterface = (*JobRepoMock)(nil)

func (m *JobRepoMock) Create(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, opts job.ListOpts) ([]models.Job, error) {
	args := m.Called(ctx, opts)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) CountByState(ctx context.Context) (map[config.JobState]int64, error) {
	args := m.Called(ctx)

	counts, _ := args.Get(0).(map[config.JobState]int64)
	return counts, args.Error(1)
}

func (m *JobRepoMock) FindReadyToRun(ctx context.Context, limit int, queueTypes ...string) ([]models.Job, error) {
	args := m.Called(ctx, limit, queueTypes)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) FindStale(ctx context.Context, timeout time.Duration) ([]models.Job, error) {
	args := m.Called(ctx, timeout)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) Claim(ctx context.Context, j *models.Job, workerID string) (bool, error) {
	args := m.Called(ctx, j, workerID)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) MarkCompleted(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepoMock) ScheduleRetry(ctx context.Context, j *models.Job, runAt time.Time, errMsg string) error {
	args := m.Called(ctx, j, runAt, errMsg)
	return args.Error(0)
}

func (m *JobRepoMock) MarkFailed(ctx context.Context, j *models.Job, reason string) error {
	args := m.Called(ctx, j, reason)
	return args.Error(0)
}

func (m *JobRepoMock) Release(ctx context.Context, j *models.Job) (bool, error) {
	args := m.Called(ctx, j)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) Requeue(ctx context.Context, id uint, extraAttempts int) (*models.Job, error) {
	args := m.Called(ctx, id, extraAttempts)

	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}
