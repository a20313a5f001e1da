package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/storage"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

// Dependencies are the collaborators of an Orchestrator. Runs, Archive,
// Cache and Observer are optional.
type Dependencies struct {
	Products     repository.ProductStore
	Transactions repository.TransactionReader
	Policies     repository.PolicyReader
	Metrics      repository.MetricsStore
	Runs         RunStore
	Archive      storage.ObjectStorage
	Cache        Invalidator
	Observer     Observer
	Clock        func() time.Time
}

// Orchestrator recalculates the usage of every active product of a client.
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	calc   *usage.Calculator
	worker *Worker
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(deps Dependencies, cfg Config) *Orchestrator {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if len(cfg.Scheme.Rules) == 0 {
		cfg.Scheme = usage.ClassicScheme
	}
	if cfg.Defaults == (domain.ReorderPolicy{}) {
		cfg.Defaults = domain.DefaultReorderPolicy()
	}

	calc := usage.NewCalculator(cfg.Scheme, usage.WithClock(deps.Clock))
	opts := usage.AnalyzeOptions{TargetWeeks: cfg.TargetWeeks, LeadWeeks: cfg.LeadWeeks}

	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		calc:   calc,
		worker: NewWorker(calc, deps.Products, deps.Metrics, opts),
	}
}

// Calculator returns the calculator the orchestrator runs with.
func (o *Orchestrator) Calculator() *usage.Calculator {
	return o.calc
}

// RecalculateClient runs the calculators for every active product of
// clientID and persists the results. Per-product failures are recorded in
// the report and never abort the batch. A missing client, an invalid
// policy or a failed batch read fails the run. Cancelling ctx stops handing
// out products; the partial report is returned with ctx's error.
func (o *Orchestrator) RecalculateClient(ctx context.Context, clientID, trigger string) (*Report, error) {
	started := time.Now()
	report := &Report{ClientID: clientID, Errors: []string{}, Succeeded: []string{}, Failed: []ProductFailure{}, StartedAt: o.calc.Now()}

	run := &RecalculationRun{
		ID:        uuid.New(),
		ClientID:  clientID,
		Trigger:   trigger,
		Status:    StatusPending,
		StartedAt: report.StartedAt,
	}
	report.RunID = run.ID.String()
	logger := log.With().Str("client_id", clientID).Str("run_id", report.RunID).Logger()

	if o.deps.Runs != nil {
		if err := o.deps.Runs.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to create recalculation run: %w", err)
		}
	}

	fail := func(err error) (*Report, error) {
		report.CompletedAt = o.calc.Now()
		o.finishRun(ctx, run, report, err)
		o.observeRun(StatusFailed, started)
		logger.Error().Err(err).Msg("Usage recalculation failed")
		return report, err
	}

	settings, err := o.deps.Policies.GetPolicySettings(ctx, clientID)
	if err != nil {
		return fail(fmt.Errorf("failed to read client policy: %w", err))
	}
	policy, err := domain.ResolvePolicy(settings, o.cfg.Defaults)
	if err != nil {
		return fail(err)
	}

	products, err := o.deps.Products.ListActiveByClient(ctx, clientID)
	if err != nil {
		return fail(fmt.Errorf("failed to list products: %w", err))
	}
	report.Total = len(products)
	run.TotalProducts = len(products)
	run.Status = StatusProcessing
	o.updateRun(ctx, run)

	logger.Info().Int("products", len(products)).Str("trigger", trigger).Msg("Starting usage recalculation")

	jobs, err := o.loadJobs(ctx, products)
	if err != nil {
		return fail(err)
	}

	now := o.calc.Now()
	outcomes, canceled := runParallel(ctx, o.cfg.WorkerCount, jobs, func(job productJob) outcome {
		out := o.worker.Process(ctx, job, policy, now)
		o.observeProduct(out)
		if !out.ok() {
			logger.Error().Err(out.err).Str("product_id", out.productID).Msg("Failed to recalculate product usage")
		}
		return out
	}, func(job productJob, err error) outcome {
		out := outcome{productID: job.product.ID, err: &domain.ComputationError{ProductID: job.product.ID, Stage: stagePanic, Err: err}}
		o.observeProduct(out)
		logger.Error().Err(err).Str("product_id", job.product.ID).Msg("Product recalculation panicked")
		return out
	})
	o.reduce(report, outcomes)

	// Derived fields of these products changed even if their snapshots fail.
	updated := append([]string(nil), report.Succeeded...)

	if !canceled {
		snapshotJobs := jobsFor(jobs, updated)
		snapshots, snapCanceled := runParallel(ctx, o.cfg.WorkerCount, snapshotJobs, func(job productJob) snapshotResult {
			n, err := o.worker.Snapshot(ctx, job, now)
			return snapshotResult{productID: job.product.ID, count: n, err: err}
		}, func(job productJob, err error) snapshotResult {
			return snapshotResult{productID: job.product.ID, err: &domain.ComputationError{ProductID: job.product.ID, Stage: stagePanic, Err: err}}
		})
		o.reduceSnapshots(report, snapshots, logger)
		canceled = snapCanceled
	}
	sort.Strings(report.Errors)

	o.invalidate(ctx, updated)

	report.Canceled = canceled
	report.CompletedAt = o.calc.Now()
	run.ProcessedProducts = report.Processed
	run.FailedProducts = len(report.Failed)

	if canceled {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		o.finishRun(ctx, run, report, err)
		o.observeRun(StatusFailed, started)
		logger.Warn().Int("processed", report.Processed).Msg("Usage recalculation canceled")
		return report, err
	}

	o.finishRun(ctx, run, report, nil)
	o.observeRun(StatusCompleted, started)

	logger.Info().
		Int("processed", report.Processed).
		Int("failed", len(report.Failed)).
		Int("snapshots", report.Snapshots).
		Dur("duration", time.Since(started)).
		Msg("Usage recalculation completed")

	return report, nil
}

type snapshotResult struct {
	productID string
	count     int
	err       error
}

// jobsFor keeps the jobs whose product is in ids. ids must be sorted.
func jobsFor(jobs []productJob, ids []string) []productJob {
	out := make([]productJob, 0, len(ids))
	for _, job := range jobs {
		if i := sort.SearchStrings(ids, job.product.ID); i < len(ids) && ids[i] == job.product.ID {
			out = append(out, job)
		}
	}
	return out
}

func (o *Orchestrator) loadJobs(ctx context.Context, products []domain.Product) ([]productJob, error) {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	history, err := o.deps.Transactions.ListCompletedByProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	jobs := make([]productJob, len(products))
	for i, p := range products {
		jobs[i] = productJob{product: p, txns: history[p.ID]}
	}
	return jobs, nil
}

// reduce folds tagged outcomes into the report.
func (o *Orchestrator) reduce(report *Report, outcomes []outcome) {
	for _, out := range outcomes {
		if out.ok() {
			report.Succeeded = append(report.Succeeded, out.productID)
			continue
		}
		f := failureOf(out)
		report.Failed = append(report.Failed, f)
		report.Errors = append(report.Errors, failureMessage(f))
	}
	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].ProductID < report.Failed[j].ProductID })
	report.Processed = len(report.Succeeded)
}

// reduceSnapshots counts written snapshots. A product whose snapshots
// could not be written moves from Succeeded to Failed.
func (o *Orchestrator) reduceSnapshots(report *Report, results []snapshotResult, logger zerolog.Logger) {
	failed := make(map[string]bool)
	for _, s := range results {
		if s.err == nil {
			report.Snapshots += s.count
			continue
		}
		logger.Error().Err(s.err).Str("product_id", s.productID).Msg("Failed to write monthly snapshots")
		f := failureOf(outcome{productID: s.productID, err: s.err})
		report.Failed = append(report.Failed, f)
		report.Errors = append(report.Errors, failureMessage(f))
		failed[s.productID] = true
	}
	if len(failed) == 0 {
		return
	}

	kept := report.Succeeded[:0]
	for _, id := range report.Succeeded {
		if !failed[id] {
			kept = append(kept, id)
		}
	}
	report.Succeeded = kept
	report.Processed = len(kept)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].ProductID < report.Failed[j].ProductID })
}

func (o *Orchestrator) observeProduct(out outcome) {
	if o.deps.Observer == nil {
		return
	}
	tier := domain.Tier("")
	if out.estimate != nil {
		tier = out.estimate.Tier
	}
	o.deps.Observer.ObserveProduct(tier, out.ok(), out.duration)
}

func (o *Orchestrator) invalidate(ctx context.Context, productIDs []string) {
	if o.deps.Cache == nil || len(productIDs) == 0 {
		return
	}
	if err := o.deps.Cache.Invalidate(context.WithoutCancel(ctx), productIDs...); err != nil {
		log.Warn().Err(err).Int("products", len(productIDs)).Msg("Failed to invalidate usage cache")
	}
}

func (o *Orchestrator) updateRun(ctx context.Context, run *RecalculationRun) {
	if o.deps.Runs == nil {
		return
	}
	if err := o.deps.Runs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("Failed to update recalculation run")
	}
}

// finishRun archives the report and records the final run status. It runs
// even when ctx is canceled.
func (o *Orchestrator) finishRun(ctx context.Context, run *RecalculationRun, report *Report, runErr error) {
	ctx = context.WithoutCancel(ctx)

	completed := report.CompletedAt
	run.CompletedAt = &completed
	run.Status = StatusCompleted
	if runErr != nil {
		run.Status = StatusFailed
		run.ErrorMessage = runErr.Error()
	} else if len(report.Failed) > 0 {
		run.ErrorMessage = fmt.Sprintf("%d of %d products failed", len(report.Failed), report.Total)
	}

	if key, err := o.archive(ctx, report); err != nil {
		log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to archive recalculation report")
	} else {
		run.ReportKey = key
	}

	o.updateRun(ctx, run)
}

func (o *Orchestrator) archive(ctx context.Context, report *Report) (string, error) {
	if o.deps.Archive == nil {
		return "", nil
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := path.Join(o.cfg.ReportPrefix, report.ClientID, report.StartedAt.UTC().Format("2006-01-02"), report.RunID+".json")
	if err := o.deps.Archive.UploadObject(ctx, key, payload, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

func (o *Orchestrator) observeRun(status RunStatus, started time.Time) {
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveRun(string(status), time.Since(started))
	}
}

// IsClientError reports whether err was caused by the caller's input
// rather than by the engine.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidPolicy)
}
