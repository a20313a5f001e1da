package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
)

// Enqueuer submits recalculation tasks to the queue.
type Enqueuer struct {
	client *asynq.Client
	// unique keeps a client from being queued twice within the window.
	unique time.Duration
}

// RedisOpts builds the asynq connection options from the queue settings.
func RedisOpts(cfg config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewEnqueuer creates an Enqueuer. A positive unique window deduplicates
// pending tasks for the same client.
func NewEnqueuer(opts asynq.RedisConnOpt, unique time.Duration) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opts), unique: unique}
}

// EnqueueRecalculation queues a recalculation of clientID.
func (e *Enqueuer) EnqueueRecalculation(ctx context.Context, clientID, trigger string) (*asynq.TaskInfo, error) {
	task, err := NewRecalculateClientTask(clientID, trigger)
	if err != nil {
		return nil, err
	}
	var opts []asynq.Option
	if e.unique > 0 {
		opts = append(opts, asynq.Unique(e.unique))
	}
	return e.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueRecalculateAll queues the fan-out task.
func (e *Enqueuer) EnqueueRecalculateAll(ctx context.Context, trigger string) (*asynq.TaskInfo, error) {
	task, err := NewRecalculateAllTask(trigger)
	if err != nil {
		return nil, err
	}
	return e.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
