package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/service"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

// UsageService is the part of service.UsageService the handlers use.
type UsageService interface {
	CalculateUsage(ctx context.Context, productID string) (*usage.Estimate, error)
	CalculateUsageBatch(ctx context.Context, productIDs []string) ([]service.UsageBatchItem, error)
	CalculateReorderPoint(ctx context.Context, in service.ReorderPointInput) (*service.ReorderPointResult, error)
	CalculateSuggestedReorderQuantity(in usage.SuggestionInput) (usage.Suggestion, error)
	RecalculateClientUsage(ctx context.Context, clientID, trigger string) (*pipeline.Report, error)
	GetUsageTierDisplay(label string) (domain.TierDisplay, bool)
	GetConfidenceStats(ctx context.Context, clientID string) (domain.ConfidenceStats, error)
	ListRuns(ctx context.Context, clientID string, limit int) ([]*pipeline.RecalculationRun, error)
}

// RecalculationQueue queues client recalculations.
type RecalculationQueue interface {
	EnqueueRecalculation(ctx context.Context, clientID, trigger string) (*asynq.TaskInfo, error)
}

type UsageHandler struct {
	service UsageService
	queue   RecalculationQueue
}

// NewUsageHandler creates the usage handler. With a nil queue,
// recalculation requests run synchronously.
func NewUsageHandler(service UsageService, queue RecalculationQueue) *UsageHandler {
	return &UsageHandler{service: service, queue: queue}
}

type suggestedReorderRequest struct {
	MonthlyUsageUnits float64 `json:"monthly_usage_units" binding:"gte=0"`
	CurrentStockUnits float64 `json:"current_stock_units" binding:"gte=0"`
	PackSize          int     `json:"pack_size" binding:"required,gt=0"`
	TargetWeeks       float64 `json:"target_weeks" binding:"gte=0"`
	LeadWeeks         float64 `json:"lead_weeks" binding:"gte=0"`
}

type batchUsageRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required,min=1,max=200,dive,required"`
}

// GetProductUsage returns the usage estimate of a product
func (h *UsageHandler) GetProductUsage(c *gin.Context) {
	estimate, err := h.service.CalculateUsage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to calculate usage")
		return
	}
	c.JSON(http.StatusOK, estimate)
}

// CalculateUsageBatch returns usage estimates for a list of products.
// Per-product failures are reported inline.
func (h *UsageHandler) CalculateUsageBatch(c *gin.Context) {
	var req batchUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	items, err := h.service.CalculateUsageBatch(c.Request.Context(), req.ProductIDs)
	if err != nil {
		respondError(c, err, "failed to calculate usage")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// CalculateReorderPoint computes a reorder point from a rate and a policy
func (h *UsageHandler) CalculateReorderPoint(c *gin.Context) {
	var req service.ReorderPointInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	result, err := h.service.CalculateReorderPoint(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to calculate reorder point")
		return
	}
	c.JSON(http.StatusOK, result)
}

// CalculateSuggestedReorder sizes a reorder in whole packs
func (h *UsageHandler) CalculateSuggestedReorder(c *gin.Context) {
	var req suggestedReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	suggestion, err := h.service.CalculateSuggestedReorderQuantity(usage.SuggestionInput{
		MonthlyUsageUnits: req.MonthlyUsageUnits,
		CurrentStockUnits: req.CurrentStockUnits,
		PackSize:          req.PackSize,
		TargetWeeks:       req.TargetWeeks,
		LeadWeeks:         req.LeadWeeks,
	})
	if err != nil {
		respondError(c, err, "failed to calculate suggested reorder")
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// RecalculateClient queues a usage recalculation for a client. Passing
// sync=true, or running without a queue, recalculates inline and returns
// the report.
func (h *UsageHandler) RecalculateClient(c *gin.Context) {
	clientID := strings.TrimSpace(c.Param("id"))
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client id is required"})
		return
	}

	sync, _ := strconv.ParseBool(c.DefaultQuery("sync", "false"))
	if h.queue == nil || sync {
		report, err := h.service.RecalculateClientUsage(c.Request.Context(), clientID, pipeline.TriggerAPI)
		if err != nil {
			respondError(c, err, "failed to recalculate client usage")
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	info, err := h.queue.EnqueueRecalculation(c.Request.Context(), clientID, pipeline.TriggerAPI)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		c.JSON(http.StatusAccepted, gin.H{"message": "recalculation already queued", "client_id": clientID})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("failed to enqueue recalculation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue recalculation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   "recalculation queued",
		"client_id": clientID,
		"task_id":   info.ID,
	})
}

// GetClientStats returns the usage confidence distribution of a client
func (h *UsageHandler) GetClientStats(c *gin.Context) {
	stats, err := h.service.GetConfidenceStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to fetch usage stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetClientRuns lists recent recalculation runs of a client
func (h *UsageHandler) GetClientRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.service.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err, "failed to fetch recalculation runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// GetTierDisplay describes a calculation tier for the UI
func (h *UsageHandler) GetTierDisplay(c *gin.Context) {
	display, ok := h.service.GetUsageTierDisplay(c.Param("tier"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tier", "tier": c.Param("tier")})
		return
	}
	c.JSON(http.StatusOK, display)
}

func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidPolicy), errors.Is(err, domain.ErrInvalidPackSize), errors.Is(err, domain.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
