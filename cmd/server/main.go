package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/api"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/app"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/jobs"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository/postgres"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	engine, err := app.New(cfg, db, nil)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize usage engine")
	}
	defer engine.Close()

	enqueuer := jobs.NewEnqueuer(jobs.RedisOpts(cfg.Queue), cfg.Queue.LockTTL)
	defer enqueuer.Close()

	router := api.NewRouter(&api.Services{
		Usage:   engine.Usage,
		Queue:   enqueuer,
		Metrics: engine.Metrics,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
