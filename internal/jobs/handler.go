package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository"
)

const (
	lockKeyPrefix  = "usage:recalc:lock"
	defaultLockTTL = 15 * time.Minute

	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// Recalculator runs a client recalculation.
type Recalculator interface {
	RecalculateClientUsage(ctx context.Context, clientID, trigger string) (*pipeline.Report, error)
}

// ClientEnqueuer queues per-client recalculations.
type ClientEnqueuer interface {
	EnqueueRecalculation(ctx context.Context, clientID, trigger string) (*asynq.TaskInfo, error)
}

// JobObserver records task outcomes.
type JobObserver interface {
	ObserveJob(task, outcome string)
}

// RecalculateHandler processes the recalculation tasks. Runs for the same
// client are serialized with a redis lock; a task that finds the lock
// held is dropped, since the running recalculation reads the same data.
type RecalculateHandler struct {
	service  Recalculator
	clients  repository.ClientLister
	enqueuer ClientEnqueuer
	locker   *redislock.Client
	lockTTL  time.Duration
	observer JobObserver
}

// HandlerConfig collects the handler dependencies. Locker, Enqueuer and
// Observer are optional.
type HandlerConfig struct {
	Service  Recalculator
	Clients  repository.ClientLister
	Enqueuer ClientEnqueuer
	Locker   *redislock.Client
	LockTTL  time.Duration
	Observer JobObserver
}

func NewRecalculateHandler(cfg HandlerConfig) *RecalculateHandler {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RecalculateHandler{
		service:  cfg.Service,
		clients:  cfg.Clients,
		enqueuer: cfg.Enqueuer,
		locker:   cfg.Locker,
		lockTTL:  ttl,
		observer: cfg.Observer,
	}
}

// HandleRecalculateClient processes TaskRecalculateClient.
func (h *RecalculateHandler) HandleRecalculateClient(ctx context.Context, task *asynq.Task) error {
	payload, err := decodePayload(task)
	if err != nil {
		h.observe(TaskRecalculateClient, outcomeFailed)
		return err
	}
	if payload.ClientID == "" {
		h.observe(TaskRecalculateClient, outcomeFailed)
		return fmt.Errorf("recalculate client: missing client id: %w", asynq.SkipRetry)
	}

	logger := log.With().Str("task", TaskRecalculateClient).Str("client_id", payload.ClientID).Logger()

	if h.locker != nil {
		lock, err := h.locker.Obtain(ctx, lockKey(payload.ClientID), h.lockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info().Msg("Recalculation already running for client, skipping")
			h.observe(TaskRecalculateClient, outcomeSkipped)
			return nil
		}
		if err != nil {
			h.observe(TaskRecalculateClient, outcomeFailed)
			return fmt.Errorf("obtain recalculation lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn().Err(err).Msg("Failed to release recalculation lock")
			}
		}()
	}

	trigger := payload.Trigger
	if trigger == "" {
		trigger = pipeline.TriggerImport
	}

	report, err := h.service.RecalculateClientUsage(ctx, payload.ClientID, trigger)
	if err != nil {
		h.observe(TaskRecalculateClient, outcomeFailed)
		if pipeline.IsClientError(err) {
			logger.Warn().Err(err).Msg("Dropping recalculation task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info().
		Int("processed", report.Processed).
		Int("failed", len(report.Failed)).
		Str("run_id", report.RunID).
		Msg("Recalculation task finished")
	h.observe(TaskRecalculateClient, outcomeSucceeded)
	return nil
}

// HandleRecalculateAll processes TaskRecalculateAll. Each active client is
// queued as its own task; without an enqueuer clients are recalculated
// inline, one after another.
func (h *RecalculateHandler) HandleRecalculateAll(ctx context.Context, task *asynq.Task) error {
	payload, err := decodePayload(task)
	if err != nil {
		h.observe(TaskRecalculateAll, outcomeFailed)
		return err
	}
	trigger := payload.Trigger
	if trigger == "" {
		trigger = pipeline.TriggerSchedule
	}

	clientIDs, err := h.clients.ListActiveClientIDs(ctx)
	if err != nil {
		h.observe(TaskRecalculateAll, outcomeFailed)
		return fmt.Errorf("list clients: %w", err)
	}

	var failed int
	for _, clientID := range clientIDs {
		if ctx.Err() != nil {
			h.observe(TaskRecalculateAll, outcomeFailed)
			return ctx.Err()
		}
		if err := h.dispatch(ctx, clientID, trigger); err != nil {
			failed++
			log.Error().Err(err).Str("client_id", clientID).Msg("Failed to dispatch client recalculation")
		}
	}

	log.Info().
		Str("task", TaskRecalculateAll).
		Int("clients", len(clientIDs)).
		Int("failed", failed).
		Msg("Scheduled recalculation dispatched")

	if failed > 0 {
		h.observe(TaskRecalculateAll, outcomeFailed)
		return fmt.Errorf("recalculate all: %d of %d clients failed", failed, len(clientIDs))
	}
	h.observe(TaskRecalculateAll, outcomeSucceeded)
	return nil
}

func (h *RecalculateHandler) dispatch(ctx context.Context, clientID, trigger string) error {
	if h.enqueuer != nil {
		_, err := h.enqueuer.EnqueueRecalculation(ctx, clientID, trigger)
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return err
	}
	task, err := NewRecalculateClientTask(clientID, trigger)
	if err != nil {
		return err
	}
	return h.HandleRecalculateClient(ctx, task)
}

func (h *RecalculateHandler) observe(task, outcome string) {
	if h.observer != nil {
		h.observer.ObserveJob(task, outcome)
	}
}

func lockKey(clientID string) string {
	return fmt.Sprintf("%s:%s", lockKeyPrefix, clientID)
}
