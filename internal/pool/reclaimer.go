package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/job"
)

// Reclaimer frees jobs whose owner stopped making progress. A reclaimed job
// keeps its attempt count.
type Reclaimer struct {
	repo     job.JobRepoInterface
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewReclaimer scans for locks older than timeout. MaybeRun scans at most
// once per interval; zero means every call.
func NewReclaimer(repo job.JobRepoInterface, timeout, interval time.Duration, logger *slog.Logger) *Reclaimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reclaimer{
		repo:     repo,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// MaybeRun calls Run when the last scan is older than the interval.
func (r *Reclaimer) MaybeRun(ctx context.Context) (int, error) {
	r.mu.Lock()
	now := r.now()
	if !r.lastRun.IsZero() && now.Sub(r.lastRun) < r.interval {
		r.mu.Unlock()
		return 0, nil
	}
	r.lastRun = now
	r.mu.Unlock()

	return r.Run(ctx)
}

// Run releases every stale lock and returns how many were freed.
func (r *Reclaimer) Run(ctx context.Context) (int, error) {
	stale, err := r.repo.FindStale(ctx, r.timeout)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range stale {
		j := &stale[i]
		owner := ""
		if j.LockedBy != nil {
			owner = *j.LockedBy
		}

		ok, err := r.repo.Release(ctx, j)
		if err != nil {
			return released, err
		}
		if !ok {
			// finished or re-claimed since the scan
			continue
		}

		released++
		r.logger.Warn("reclaimed stale job",
			slog.Uint64("job_id", uint64(j.ID)),
			slog.String("queue_type", j.QueueType),
			slog.String("previous_owner", owner),
			slog.Int("attempts", j.Attempts),
		)
	}
	return released, nil
}
