package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

const (
	stageCalculate = "calculate"
	stageProduct   = "save_product"
	stageMetric    = "save_metric"
	stageSnapshot  = "save_snapshots"
	stagePanic     = "panic"
)

// productJob is one product and its completed transaction history.
type productJob struct {
	product domain.Product
	txns    []domain.Transaction
}

// outcome is the tagged result of one product attempt.
type outcome struct {
	productID string
	estimate  *usage.Estimate
	err       error
	duration  time.Duration
}

func (o outcome) ok() bool { return o.err == nil }

// Worker calculates and persists one product at a time.
type Worker struct {
	calc     *usage.Calculator
	products repository.ProductStore
	metrics  repository.MetricsStore
	opts     usage.AnalyzeOptions
}

// NewWorker creates a worker writing to the given stores.
func NewWorker(calc *usage.Calculator, products repository.ProductStore, metrics repository.MetricsStore, opts usage.AnalyzeOptions) *Worker {
	return &Worker{calc: calc, products: products, metrics: metrics, opts: opts}
}

// Process runs the calculators for one product and writes the derived
// fields and the usage metric. Failures come back tagged, never panicking
// the pool.
func (w *Worker) Process(ctx context.Context, job productJob, policy domain.ReorderPolicy, now time.Time) outcome {
	start := time.Now()
	out := outcome{productID: job.product.ID}

	result := w.calc.CalculateAt(job.product.ID, job.txns, now)
	estimate, err := usage.Analyze(result, job.product, policy, now, w.opts)
	if err != nil {
		out.err = &domain.ComputationError{ProductID: job.product.ID, Stage: stageCalculate, Err: err}
		out.duration = time.Since(start)
		return out
	}

	if err := w.products.SaveDerivedUsage(ctx, estimate.Derived()); err != nil {
		out.err = &domain.ComputationError{ProductID: job.product.ID, Stage: stageProduct, Err: err}
		out.duration = time.Since(start)
		return out
	}

	if err := w.metrics.UpsertUsageMetric(ctx, estimate.Metric()); err != nil {
		out.err = &domain.ComputationError{ProductID: job.product.ID, Stage: stageMetric, Err: err}
		out.duration = time.Since(start)
		return out
	}

	out.estimate = &estimate
	out.duration = time.Since(start)
	return out
}

// Snapshot upserts the monthly snapshots for one product.
func (w *Worker) Snapshot(ctx context.Context, job productJob, now time.Time) (int, error) {
	snaps := usage.MonthlySnapshots(job.product, job.txns, now)
	if err := w.metrics.UpsertMonthlySnapshots(ctx, snaps); err != nil {
		return 0, &domain.ComputationError{ProductID: job.product.ID, Stage: stageSnapshot, Err: err}
	}
	return len(snaps), nil
}

// runParallel feeds jobs to workerCount goroutines and collects one result
// per started job. A panic in fn is turned into a result by onPanic. When
// ctx is canceled no further jobs are handed out; the second return value
// reports that.
func runParallel[T any](ctx context.Context, workerCount int, jobs []productJob, fn func(productJob) T, onPanic func(productJob, error) T) ([]T, bool) {
	if workerCount < 1 {
		workerCount = 1
	}

	jobChan := make(chan productJob)
	resultChan := make(chan T, len(jobs))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				resultChan <- callRecovered(job, fn, onPanic)
			}
		}()
	}

	canceled := false
enqueue:
	for _, job := range jobs {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		select {
		case <-ctx.Done():
			canceled = true
			break enqueue
		case jobChan <- job:
		}
	}
	close(jobChan)

	wg.Wait()
	close(resultChan)

	results := make([]T, 0, len(jobs))
	for r := range resultChan {
		results = append(results, r)
	}
	return results, canceled
}

func callRecovered[T any](job productJob, fn func(productJob) T, onPanic func(productJob, error) T) (res T) {
	defer func() {
		if r := recover(); r != nil {
			res = onPanic(job, fmt.Errorf("recovered: %v", r))
		}
	}()
	return fn(job)
}

func failureOf(o outcome) ProductFailure {
	f := ProductFailure{ProductID: o.productID, Error: o.err.Error()}
	if ce, ok := o.err.(*domain.ComputationError); ok {
		f.Stage = ce.Stage
		f.Error = ce.Err.Error()
	}
	return f
}

func failureMessage(f ProductFailure) string {
	if f.Stage == "" {
		return fmt.Sprintf("%s: %s", f.ProductID, f.Error)
	}
	return fmt.Sprintf("%s: %s: %s", f.ProductID, f.Stage, f.Error)
}
