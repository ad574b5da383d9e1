package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/delayedjobs/common"
	"github.com/joshu-sajeev/delayedjobs/internal/backoff"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
)

const reportedFailure = "handler reported failure"

// Executor runs the handler for a claimed job and records the outcome.
type Executor struct {
	repo     job.JobRepoInterface
	registry *Registry
	policy   backoff.Policy
	logger   *slog.Logger
	now      func() time.Time
}

type ExecutorOption func(*Executor)

func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(repo job.JobRepoInterface, registry *Registry, policy backoff.Policy, opts ...ExecutorOption) *Executor {
	e := &Executor{
		repo:     repo,
		registry: registry,
		policy:   policy,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs j, which the caller must own. A job with no registered
// handler is left locked for the reclaimer and ErrHandlerNotRegistered is
// returned. ErrLockLost means another worker took the job over while the
// handler ran.
func (e *Executor) Execute(ctx context.Context, j *models.Job) error {
	log := e.logger.With(
		slog.Uint64("job_id", uint64(j.ID)),
		slog.String("queue_type", j.QueueType),
	)

	fn, ok := e.registry.Lookup(j.QueueType)
	if !ok {
		log.Error("no handler registered, leaving job locked")
		return fmt.Errorf("job %d: %w: %q", j.ID, common.ErrHandlerNotRegistered, j.QueueType)
	}

	start := e.now()
	succeeded, err := invoke(ctx, fn, j.PayloadRef)
	elapsed := e.now().Sub(start)

	if succeeded && err == nil {
		if err := e.repo.MarkCompleted(ctx, j); err != nil {
			return e.transitionFailed(log, "complete", err)
		}
		log.Info("job completed", slog.Duration("elapsed", elapsed))
		return nil
	}

	msg := reportedFailure
	if err != nil {
		msg = err.Error()
	}

	attempts := j.Attempts + 1
	if attempts < j.MaxAttempts {
		runAt := e.policy.NextRunAt(e.now(), attempts)
		if err := e.repo.ScheduleRetry(ctx, j, runAt, msg); err != nil {
			return e.transitionFailed(log, "schedule retry", err)
		}
		log.Warn("job failed, retry scheduled",
			slog.Int("attempts", attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Time("run_at", runAt),
			slog.String("error", msg),
		)
		return nil
	}

	if err := e.repo.MarkFailed(ctx, j, msg); err != nil {
		return e.transitionFailed(log, "dead-letter", err)
	}
	log.Error("job dead-lettered",
		slog.Int("attempts", attempts),
		slog.String("error", msg),
	)
	return nil
}

func (e *Executor) transitionFailed(log *slog.Logger, op string, err error) error {
	if errors.Is(err, common.ErrLockLost) {
		log.Warn("lock lost before outcome was recorded", slog.String("op", op))
	} else {
		log.Error("failed to record outcome", slog.String("op", op), slog.Any("error", err))
	}
	return err
}

// invoke calls fn and turns a panic into an error.
func invoke(ctx context.Context, fn HandlerFunc, payloadRef string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(ctx, payloadRef)
}
