package job_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/joshu-sajeev/delayedjobs/common"
	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/dto"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/mocks"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func assertAPIStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr common.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	assert.Equal(t, status, apiErr.Status)
}

func TestJobService_Enqueue(t *testing.T) {
	runAt := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("applies queue default max attempts", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
			return j.QueueType == config.QueueOrderEmail &&
				j.PayloadRef == "order-1" &&
				j.Priority == 7 &&
				j.MaxAttempts == 8 &&
				j.RunAt.Equal(runAt)
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Job).ID = 11
		}).Return(nil)

		id, err := job.NewJobService(repo).Enqueue(context.Background(), config.QueueOrderEmail, "order-1", 7, runAt)
		require.NoError(t, err)
		assert.Equal(t, uint(11), id)
		repo.AssertExpectations(t)
	})

	t.Run("unknown queue type uses global default", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
			return j.MaxAttempts == config.DefaultMaxAttempts
		})).Return(nil)

		_, err := job.NewJobService(repo).Enqueue(context.Background(), "thumbnail", "img-1", 0, time.Time{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("empty queue type", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)

		_, err := job.NewJobService(repo).Enqueue(context.Background(), " ", "x", 0, runAt)
		assert.ErrorIs(t, err, common.ErrEmptyQueueType)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("persistence failure", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		dbErr := &common.PersistenceError{Op: "create job", Err: errors.New("disk full")}
		repo.On("Create", mock.Anything, mock.Anything).Return(dbErr)

		_, err := job.NewJobService(repo).Enqueue(context.Background(), config.QueueOrderEmail, "order-1", 0, runAt)
		var perr *common.PersistenceError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestJobService_CreateJob(t *testing.T) {
	tests := []struct {
		name       string
		req        *dto.EnqueueDTO
		setupMock  func(*mocks.JobRepoMock)
		setupCtx   func() context.Context
		wantStatus int
		validate   func(*testing.T, *dto.JobResponseDTO)
	}{
		{
			name: "defaults from queue table",
			req:  &dto.EnqueueDTO{QueueType: config.QueueRenderCalendar, PayloadRef: "cal-1"},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
					return j.Priority == 10 && j.MaxAttempts == 5
				})).Run(func(args mock.Arguments) {
					j := args.Get(1).(*models.Job)
					j.ID = 1
					j.Version = 1
				}).Return(nil)
			},
			validate: func(t *testing.T, resp *dto.JobResponseDTO) {
				assert.Equal(t, uint(1), resp.ID)
				assert.Equal(t, 10, resp.Priority)
				assert.Equal(t, string(config.JobStatePending), resp.State)
			},
		},
		{
			name: "explicit priority and max attempts",
			req: &dto.EnqueueDTO{
				QueueType:   config.QueueRenderCalendar,
				PayloadRef:  "cal-1",
				Priority:    intPtr(-3),
				MaxAttempts: intPtr(1),
			},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
					return j.Priority == -3 && j.MaxAttempts == 1
				})).Return(nil)
			},
			validate: func(t *testing.T, resp *dto.JobResponseDTO) {
				assert.Equal(t, -3, resp.Priority)
				assert.Equal(t, 1, resp.MaxAttempts)
			},
		},
		{
			name:      "context canceled",
			req:       &dto.EnqueueDTO{QueueType: config.QueueOrderEmail, PayloadRef: "o"},
			setupMock: func(m *mocks.JobRepoMock) {},
			setupCtx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantStatus: http.StatusRequestTimeout,
		},
		{
			name: "deadline during insert",
			req:  &dto.EnqueueDTO{QueueType: config.QueueOrderEmail, PayloadRef: "o"},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.Anything).
					Return(&common.PersistenceError{Op: "create job", Err: context.DeadlineExceeded})
			},
			wantStatus: http.StatusRequestTimeout,
		},
		{
			name: "database failure",
			req:  &dto.EnqueueDTO{QueueType: config.QueueOrderEmail, PayloadRef: "o"},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.Anything).
					Return(&common.PersistenceError{Op: "create job", Err: errors.New("connection refused")})
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			tt.setupMock(repo)

			ctx := context.Background()
			if tt.setupCtx != nil {
				ctx = tt.setupCtx()
			}

			resp, err := job.NewJobService(repo).CreateJob(ctx, tt.req)
			if tt.wantStatus != 0 {
				require.Error(t, err)
				assertAPIStatus(t, err, tt.wantStatus)
				return
			}

			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, resp)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestJobService_GetJobByID(t *testing.T) {
	owner := "worker-1"
	lastErr := "timeout"

	tests := []struct {
		name       string
		setupMock  func(*mocks.JobRepoMock)
		wantStatus int
	}{
		{
			name: "found",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(&models.Job{
					ID: 1, QueueType: config.QueueOrderEmail, Locked: true, LockedBy: &owner, LastError: &lastErr,
				}, nil)
			},
		},
		{
			name: "not found",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(nil, fmt.Errorf("get job 1: %w", common.ErrJobNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "canceled",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, uint(1)).Return(nil, context.Canceled)
			},
			wantStatus: http.StatusRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			tt.setupMock(repo)

			resp, err := job.NewJobService(repo).GetJobByID(context.Background(), 1)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, string(config.JobStateOwned), resp.State)
			assert.Equal(t, "worker-1", resp.LockedBy)
			assert.Equal(t, "timeout", resp.LastError)
		})
	}
}

func TestJobService_ListJobs(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	repo.On("List", mock.Anything, job.ListOpts{
		QueueType: config.QueueOrderEmail,
		State:     config.JobStateDead,
		Limit:     100,
	}).Return([]models.Job{{ID: 1}, {ID: 2}}, nil)

	jobs, err := job.NewJobService(repo).ListJobs(context.Background(), &dto.ListJobsQuery{
		QueueType: config.QueueOrderEmail,
		State:     "dead",
	})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	repo.AssertExpectations(t)
}

func TestJobService_RetryJob(t *testing.T) {
	tests := []struct {
		name       string
		repoErr    error
		wantStatus int
	}{
		{name: "requeued"},
		{name: "not dead-lettered", repoErr: fmt.Errorf("requeue job 3: %w", common.ErrNotDeadLettered), wantStatus: http.StatusConflict},
		{name: "missing", repoErr: fmt.Errorf("get job 3: %w", common.ErrJobNotFound), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			if tt.repoErr != nil {
				repo.On("Requeue", mock.Anything, uint(3), 2).Return(nil, tt.repoErr)
			} else {
				repo.On("Requeue", mock.Anything, uint(3), 2).Return(&models.Job{ID: 3, Attempts: 5, MaxAttempts: 7}, nil)
			}

			resp, err := job.NewJobService(repo).RetryJob(context.Background(), 3, 2)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 7, resp.MaxAttempts)
			assert.Equal(t, string(config.JobStatePending), resp.State)
		})
	}
}

func TestJobService_Stats(t *testing.T) {
	counts := map[config.JobState]int64{config.JobStatePending: 4}

	repo := new(mocks.JobRepoMock)
	repo.On("CountByState", mock.Anything).Return(counts, nil).Once()
	repo.On("CountByState", mock.Anything).Return(nil, errors.New("boom")).Once()

	svc := job.NewJobService(repo)

	got, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, counts, got)

	_, err = svc.Stats(context.Background())
	assertAPIStatus(t, err, http.StatusInternalServerError)
}
