package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/cache"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/metrics"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository/postgres"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/service"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/storage"
)

// App holds the wired engine shared by the server, the worker and the CLI.
type App struct {
	Config       *config.Config
	DB           *postgres.DB
	Clients      repository.ClientLister
	Runs         *pipeline.Repository
	Cache        cache.UsageCache
	Metrics      *metrics.Recorder
	Orchestrator *pipeline.Orchestrator
	Usage        *service.UsageService
}

// New wires the engine on top of an open database handle. A nil registry
// gets a fresh one.
func New(cfg *config.Config, db *postgres.DB, reg *prometheus.Registry) (*App, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("app: config and database are required")
	}

	pipelineCfg, err := pipeline.ConfigFromSettings(cfg.Usage, cfg.Storage.ReportPrefix)
	if err != nil {
		return nil, fmt.Errorf("usage settings: %w", err)
	}

	usageCache, err := cache.NewUsageCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("Usage cache unavailable, continuing without cache")
		usageCache = cache.NewNoopUsageCache()
	}

	archive, err := newArchive(cfg.Storage)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New(cfg.Metrics.Namespace, reg)

	products := postgres.NewProductRepository(db)
	transactions := postgres.NewTransactionRepository(db)
	clients := postgres.NewClientRepository(db)
	metricStore := postgres.NewMetricsRepository(db)
	runs := pipeline.NewRepository(db.DB.DB)

	deps := pipeline.Dependencies{
		Products:     products,
		Transactions: transactions,
		Policies:     clients,
		Metrics:      metricStore,
		Runs:         runs,
		Cache:        usageCache,
		Observer:     recorder,
		Clock:        func() time.Time { return time.Now().UTC() },
	}
	if archive != nil {
		deps.Archive = archive
	}
	orchestrator := pipeline.NewOrchestrator(deps, pipelineCfg)

	usageService := service.NewUsageService(service.UsageDependencies{
		Products:     products,
		Transactions: transactions,
		Policies:     clients,
		Runs:         runs,
		Orchestrator: orchestrator,
		Cache:        usageCache,
		Observer:     recorder,
	}, pipelineCfg)

	return &App{
		Config:       cfg,
		DB:           db,
		Clients:      clients,
		Runs:         runs,
		Cache:        usageCache,
		Metrics:      recorder,
		Orchestrator: orchestrator,
		Usage:        usageService,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func newArchive(cfg config.StorageConfig) (*storage.MinioClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := storage.NewMinioClient(storage.MinioConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("report storage: %w", err)
	}
	return client, nil
}
