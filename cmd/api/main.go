package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/delayedjobs/internal/config"
	"github.com/joshu-sajeev/delayedjobs/internal/job"
	"github.com/joshu-sajeev/delayedjobs/internal/storage/postgres"
	"github.com/joshu-sajeev/delayedjobs/middleware"
)

func main() {
	log.Println("Starting API...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load database config: ", err)
	}
	cfg, err := config.LoadAPIConfig(ctx)
	if err != nil {
		log.Fatal("Failed to load api config: ", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatal("Connection failed: ", err)
	}
	if err := postgres.Migrate(db); err != nil {
		log.Fatal("Migration failed: ", err)
	}

	handler := job.NewJobHandler(job.NewJobService(postgres.NewJobRepository(db)))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		middleware.TimeoutMiddleware(cfg.RequestTimeout),
		middleware.ErrorHandler(),
	)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Server shutdown failed:", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Shutdown complete.")
}
