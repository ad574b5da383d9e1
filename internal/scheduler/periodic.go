// Package scheduler enqueues recurring jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Enqueuer is the part of the job service the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueType, payloadRef string, priority int, runAt time.Time) (uint, error)
}

// PeriodicEnqueuer adds a job each time a cron schedule fires. The payload
// ref is the firing minute in RFC3339, so handlers can key work on it.
type PeriodicEnqueuer struct {
	enqueuer Enqueuer
	cron     *cron.Cron
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration
}

func NewPeriodicEnqueuer(enqueuer Enqueuer, logger *slog.Logger) *PeriodicEnqueuer {
	return &PeriodicEnqueuer{
		enqueuer: enqueuer,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger,
		now:      time.Now,
		timeout:  10 * time.Second,
	}
}

// Add registers a standard five-field cron spec for queueType.
func (p *PeriodicEnqueuer) Add(spec, queueType string, priority int) error {
	_, err := p.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		_, _ = p.Fire(ctx, queueType, priority, p.now())
	})
	if err != nil {
		return fmt.Errorf("add schedule %q for %s: %w", spec, queueType, err)
	}

	p.logger.Info("periodic job scheduled",
		slog.String("queue_type", queueType),
		slog.String("schedule", spec),
	)
	return nil
}

// Fire enqueues one run of queueType for the minute containing at.
func (p *PeriodicEnqueuer) Fire(ctx context.Context, queueType string, priority int, at time.Time) (uint, error) {
	window := WindowKey(at)

	id, err := p.enqueuer.Enqueue(ctx, queueType, window, priority, at)
	if err != nil {
		p.logger.Error("periodic enqueue failed",
			slog.String("queue_type", queueType),
			slog.String("window", window),
			slog.Any("error", err),
		)
		return 0, err
	}

	p.logger.Info("periodic job enqueued",
		slog.Uint64("job_id", uint64(id)),
		slog.String("queue_type", queueType),
		slog.String("window", window),
	)
	return id, nil
}

// WindowKey truncates t to the minute and formats it in UTC.
func WindowKey(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

func (p *PeriodicEnqueuer) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running enqueue to finish.
func (p *PeriodicEnqueuer) Stop(ctx context.Context) error {
	select {
	case <-p.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
