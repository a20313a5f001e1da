package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/app"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/jobs"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository/postgres"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/pkg/logger"
)

type ctxKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (defaults to the DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func initEngine(c *cli.Context) error {
	cfg := config.Load()

	dsn := c.String("db-url")
	if dsn == "" {
		dsn = cfg.Database.DSN()
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := sqlDB.PingContext(c.Context); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := postgres.Wrap(sqlx.NewDb(sqlDB, "pgx"), int64(cfg.Database.MaxConcurrentTx))
	engine, err := app.New(cfg, db, nil)
	if err != nil {
		_ = db.Close()
		return err
	}

	c.Context = context.WithValue(c.Context, ctxKey{}, engine)
	return nil
}

func closeEngine(c *cli.Context) error {
	if engine, ok := c.Context.Value(ctxKey{}).(*app.App); ok && engine != nil {
		return engine.Close()
	}
	return nil
}

func engineFrom(c *cli.Context) *app.App {
	engine, _ := c.Context.Value(ctxKey{}).(*app.App)
	return engine
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	cliApp := &cli.App{
		Name:  "recalc",
		Usage: "Inspect and recalculate product usage and reorder points",
		Commands: []*cli.Command{
			{
				Name:  "client",
				Usage: "Recalculate every active product of one client",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "id", Usage: "Client ID", Required: true},
				},
				Before: initEngine,
				After:  closeEngine,
				Action: recalculateClient,
			},
			{
				Name:  "all",
				Usage: "Recalculate every active client",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.IntFlag{Name: "parallel", Usage: "Clients recalculated at once", Value: 2},
				},
				Before: initEngine,
				After:  closeEngine,
				Action: recalculateAll,
			},
			{
				Name:  "product",
				Usage: "Show the usage estimate of one product without persisting it",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "id", Usage: "Product ID", Required: true},
				},
				Before: initEngine,
				After:  closeEngine,
				Action: showProduct,
			},
			{
				Name:  "stats",
				Usage: "Show the usage confidence distribution of a client",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "client", Usage: "Client ID", Required: true},
				},
				Before: initEngine,
				After:  closeEngine,
				Action: showStats,
			},
			{
				Name:  "enqueue",
				Usage: "Queue a client recalculation for the worker",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Client ID"},
					&cli.BoolFlag{Name: "all", Usage: "Queue the recalculation of every active client"},
				},
				Action: enqueue,
			},
			{
				Name:      "tier",
				Usage:     "Describe a calculation tier",
				ArgsUsage: "<tier>",
				Action:    describeTier,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("recalc failed")
	}
}

func recalculateClient(c *cli.Context) error {
	report, err := engineFrom(c).Usage.RecalculateClientUsage(c.Context, c.String("id"), pipeline.TriggerCLI)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func recalculateAll(c *cli.Context) error {
	engine := engineFrom(c)
	clientIDs, err := engine.Clients.ListActiveClientIDs(c.Context)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		reports = make([]*pipeline.Report, 0, len(clientIDs))
		failed  []string
	)
	g := new(errgroup.Group)
	g.SetLimit(max(1, c.Int("parallel")))
	for _, clientID := range clientIDs {
		g.Go(func() error {
			report, err := engine.Usage.RecalculateClientUsage(c.Context, clientID, pipeline.TriggerCLI)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Log.Error().Err(err).Str("client_id", clientID).Msg("Client recalculation failed")
				failed = append(failed, clientID)
				return nil
			}
			reports = append(reports, report)
			return nil
		})
	}
	_ = g.Wait()

	if err := printJSON(reports); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d clients failed: %v", len(failed), len(clientIDs), failed)
	}
	return nil
}

func showProduct(c *cli.Context) error {
	estimate, err := engineFrom(c).Usage.CalculateUsage(c.Context, c.String("id"))
	if err != nil {
		return err
	}
	return printJSON(estimate)
}

func showStats(c *cli.Context) error {
	stats, err := engineFrom(c).Usage.GetConfidenceStats(c.Context, c.String("client"))
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func enqueue(c *cli.Context) error {
	cfg := config.Load()
	enqueuer := jobs.NewEnqueuer(jobs.RedisOpts(cfg.Queue), cfg.Queue.LockTTL)
	defer enqueuer.Close()

	if c.Bool("all") {
		info, err := enqueuer.EnqueueRecalculateAll(c.Context, pipeline.TriggerCLI)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"task_id": info.ID, "type": info.Type})
	}
	if c.String("id") == "" {
		return cli.Exit("either --id or --all is required", 2)
	}
	info, err := enqueuer.EnqueueRecalculation(c.Context, c.String("id"), pipeline.TriggerCLI)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"task_id": info.ID, "type": info.Type})
}

func describeTier(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: recalc tier <tier>", 2)
	}
	tier, ok := domain.ParseTier(c.Args().First())
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown tier %q", c.Args().First()), 2)
	}
	return printJSON(domain.TierDisplayFor(tier))
}
