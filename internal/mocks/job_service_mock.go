package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/dto"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

var _ job.JobServiceInterface = (*JobServiceMock)(nil)

func (m *JobServiceMock) Enqueue(ctx context.Context, queueType, payloadRef string, priority int, runAt time.Time) (uint, error) {
	args := m.Called(ctx, queueType, payloadRef, priority, runAt)

	id, _ := args.Get(0).(uint)
	return id, args.Error(1)
}

func (m *JobServiceMock) CreateJob(ctx context.Context, req *dto.EnqueueDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, query *dto.ListJobsQuery) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, query)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) RetryJob(ctx context.Context, id uint, extraAttempts int) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id, extraAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) Stats(ctx context.Context) (map[config.JobState]int64, error) {
	args := m.Called(ctx)

	counts, _ := args.Get(0).(map[config.JobState]int64)
	return counts, args.Error(1)
}
