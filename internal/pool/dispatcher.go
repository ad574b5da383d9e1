// Package pool drives job dispatch: a ticker scans for ready jobs, claims
// them and hands them to a bounded set of executor goroutines.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/models"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultBatchSize   = 50
	DefaultConcurrency = 10
)

// Executor runs a job the dispatcher has claimed.
type Executor interface {
	Execute(ctx context.Context, j *models.Job) error
}

type Dispatcher struct {
	repo       job.JobRepoInterface
	exec       Executor
	workerID   string
	interval   time.Duration
	batchSize  int
	workers    int
	queueTypes []string
	reclaimer  *Reclaimer
	logger     *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Dispatcher)

func WithInterval(d time.Duration) Option {
	return func(p *Dispatcher) { p.interval = d }
}

func WithBatchSize(n int) Option {
	return func(p *Dispatcher) { p.batchSize = n }
}

// WithConcurrency caps the number of jobs executing at once.
func WithConcurrency(n int) Option {
	return func(p *Dispatcher) { p.workers = n }
}

// WithQueueTypes restricts dispatch to the given queue types. No types means all.
func WithQueueTypes(types ...string) Option {
	return func(p *Dispatcher) { p.queueTypes = types }
}

func WithReclaimer(r *Reclaimer) Option {
	return func(p *Dispatcher) { p.reclaimer = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Dispatcher) { p.logger = logger }
}

func NewDispatcher(repo job.JobRepoInterface, exec Executor, workerID string, opts ...Option) *Dispatcher {
	p := &Dispatcher{
		repo:      repo,
		exec:      exec,
		workerID:  workerID,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		workers:   DefaultConcurrency,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	p.sem = semaphore.NewWeighted(int64(p.workers))
	p.logger = p.logger.With(slog.String("worker_id", workerID))
	return p
}

// Start runs a tick immediately and then every interval until Stop or ctx
// is done. Calling Start on a running dispatcher is a no-op.
func (p *Dispatcher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("dispatcher started",
		slog.Duration("interval", p.interval),
		slog.Int("batch_size", p.batchSize),
		slog.Int("workers", p.workers),
		slog.Any("queue_types", p.queueTypes),
	)

	go p.loop(ctx, p.done)
}

func (p *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("dispatch tick failed", slog.Any("error", err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Tick reclaims stale locks when due, then claims and starts as many ready
// jobs as there are free workers. It returns the number of jobs started.
// Handlers keep running after ctx is canceled.
func (p *Dispatcher) Tick(ctx context.Context) (int, error) {
	if p.reclaimer != nil {
		if _, err := p.reclaimer.MaybeRun(ctx); err != nil {
			p.logger.Error("stale lock reclaim failed", slog.Any("error", err))
		}
	}

	candidates, err := p.repo.FindReadyToRun(ctx, p.batchSize, p.queueTypes...)
	if err != nil {
		return 0, err
	}

	execCtx := context.WithoutCancel(ctx)
	started := 0
	for i := range candidates {
		j := candidates[i]

		if !p.sem.TryAcquire(1) {
			p.logger.Debug("worker pool full", slog.Int("skipped", len(candidates)-i))
			break
		}

		ok, err := p.repo.Claim(ctx, &j, p.workerID)
		if err != nil {
			p.sem.Release(1)
			return started, err
		}
		if !ok {
			p.sem.Release(1)
			p.logger.Debug("claim lost to another worker", slog.Uint64("job_id", uint64(j.ID)))
			continue
		}

		started++
		p.wg.Add(1)
		go p.run(execCtx, &j)
	}

	return started, nil
}

func (p *Dispatcher) run(ctx context.Context, j *models.Job) {
	defer p.wg.Done()
	defer p.sem.Release(1)

	if err := p.exec.Execute(ctx, j); err != nil {
		p.logger.Debug("job execution ended with error",
			slog.Uint64("job_id", uint64(j.ID)),
			slog.Any("error", err),
		)
	}
}

// Wait blocks until every started job has finished.
func (p *Dispatcher) Wait() {
	p.wg.Wait()
}

// Stop halts ticking and waits for in-flight jobs, or for ctx to expire.
func (p *Dispatcher) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
