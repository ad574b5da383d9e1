package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/backoff"
	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/pool"
	"github.com/joshu-sajeev/delayedjobs/internal/scheduler"
	"github.com/joshu-sajeev/delayedjobs/internal/storage/postgres"
	"github.com/joshu-sajeev/delayedjobs/internal/worker"
)

func main() {
	log.Println("Starting Worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load database config: ", err)
	}
	cfg, err := config.LoadWorkerConfig(ctx)
	if err != nil {
		log.Fatal("Failed to load worker config: ", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatal("Connection failed: ", err)
	}
	if err := postgres.Migrate(db); err != nil {
		log.Fatal("Migration failed: ", err)
	}

	repo := postgres.NewJobRepository(db)
	service := job.NewJobService(repo)

	registry := worker.NewRegistry()
	if err := worker.NewHandlers(logger, 200*time.Millisecond).RegisterDefaults(registry); err != nil {
		log.Fatal("Failed to register handlers: ", err)
	}
	for _, qt := range cfg.QueueTypes {
		if _, ok := registry.Lookup(qt); !ok {
			logger.Error("configured queue type has no handler", slog.String("queue_type", qt))
		}
	}

	policy := backoff.Policy{Base: cfg.RetryBaseDelay, Max: cfg.RetryMaxDelay}
	executor := worker.NewExecutor(repo, registry, policy, worker.WithLogger(logger))
	reclaimer := pool.NewReclaimer(repo, cfg.StaleLockTimeout, cfg.ReclaimInterval, logger)

	workerID := pool.WorkerID(cfg.WorkerID)
	dispatcher := pool.NewDispatcher(repo, executor, workerID,
		pool.WithInterval(cfg.DispatchInterval),
		pool.WithBatchSize(cfg.BatchSize),
		pool.WithConcurrency(cfg.MaxWorkers),
		pool.WithQueueTypes(cfg.QueueTypes...),
		pool.WithReclaimer(reclaimer),
		pool.WithLogger(logger),
	)

	periodic := scheduler.NewPeriodicEnqueuer(service, logger)
	if cfg.AggregationSchedule != "" {
		defaults := config.DefaultsFor(config.QueueSalesAggregate)
		if err := periodic.Add(cfg.AggregationSchedule, config.QueueSalesAggregate, defaults.Priority); err != nil {
			log.Fatal("Failed to schedule aggregation: ", err)
		}
	}

	dispatcher.Start(ctx)
	periodic.Start()
	log.Printf("Worker %s active. Press Ctrl+C to stop.", workerID)

	<-ctx.Done()
	log.Println("Shutting down, waiting for running jobs...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.StaleLockTimeout)
	defer cancel()

	if err := periodic.Stop(shutdownCtx); err != nil {
		log.Println("Periodic enqueuer did not stop cleanly:", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Println("Jobs still running at shutdown, they will be reclaimed:", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Shutdown complete.")
}
