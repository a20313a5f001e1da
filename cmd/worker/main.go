package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/app"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/jobs"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository/postgres"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	engine, err := app.New(cfg, db, nil)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize usage engine")
	}
	defer engine.Close()

	redisOpts := jobs.RedisOpts(cfg.Queue)
	lockClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer lockClient.Close()

	enqueuer := jobs.NewEnqueuer(redisOpts, cfg.Queue.LockTTL)
	defer enqueuer.Close()

	handler := jobs.NewRecalculateHandler(jobs.HandlerConfig{
		Service:  engine.Usage,
		Clients:  engine.Clients,
		Enqueuer: enqueuer,
		Locker:   redislock.New(lockClient),
		LockTTL:  cfg.Queue.LockTTL,
		Observer: engine.Metrics,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.Queue.Concurrency,
		Handler:     handler,
		RecalcCron:  cfg.Queue.RecalcCron,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build worker")
	}

	ops := &http.Server{
		Addr:              ":" + cfg.Server.OpsPort,
		Handler:           opsRouter(engine, redisOpts),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Log.Info().Str("port", cfg.Server.OpsPort).Msg("Starting ops endpoint")
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("Ops endpoint stopped")
		}
	}()

	logger.Log.Info().
		Int("concurrency", cfg.Queue.Concurrency).
		Str("cron", cfg.Queue.RecalcCron).
		Msg("Starting recalculation worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Error().Err(err).Msg("Worker stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Ops endpoint forced to shutdown")
	}
	logger.Log.Info().Msg("Worker exiting")
}

func opsRouter(engine *app.App, redisOpts asynq.RedisClientOpt) *mux.Router {
	inspector := asynq.NewInspector(redisOpts)

	r := mux.NewRouter()
	r.Handle("/metrics", engine.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]any{"status": "ok"}
		code := http.StatusOK

		if err := engine.DB.PingContext(req.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if info, err := inspector.GetQueueInfo(jobs.QueueDefault); err == nil {
			status["queue"] = map[string]any{"pending": info.Pending, "active": info.Active, "failed": info.Failed}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)
	r.HandleFunc("/runs/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := engine.Runs.GetRunStats(req.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}).Methods(http.MethodGet)
	return r
}
