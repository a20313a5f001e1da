package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/service"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

type stubService struct {
	estimate   *usage.Estimate
	err        error
	reorderIn  service.ReorderPointInput
	suggestIn  usage.SuggestionInput
	recalcRuns int
	batchIn    []string
}

func (s *stubService) CalculateUsage(_ context.Context, productID string) (*usage.Estimate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.estimate, nil
}

func (s *stubService) CalculateUsageBatch(_ context.Context, productIDs []string) ([]service.UsageBatchItem, error) {
	s.batchIn = productIDs
	if s.err != nil {
		return nil, s.err
	}
	items := make([]service.UsageBatchItem, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, service.UsageBatchItem{ProductID: id, Estimate: s.estimate})
	}
	return items, nil
}

func (s *stubService) CalculateReorderPoint(_ context.Context, in service.ReorderPointInput) (*service.ReorderPointResult, error) {
	s.reorderIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &service.ReorderPointResult{ReorderPoint: usage.ReorderPoint{Units: 56}}, nil
}

func (s *stubService) CalculateSuggestedReorderQuantity(in usage.SuggestionInput) (usage.Suggestion, error) {
	s.suggestIn = in
	return usage.SuggestReorder(in)
}

func (s *stubService) RecalculateClientUsage(_ context.Context, clientID, trigger string) (*pipeline.Report, error) {
	s.recalcRuns++
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.Report{ClientID: clientID, Total: 2, Processed: 2, Errors: []string{}}, nil
}

func (s *stubService) GetUsageTierDisplay(label string) (domain.TierDisplay, bool) {
	tier, ok := domain.ParseTier(label)
	return domain.TierDisplayFor(tier), ok
}

func (s *stubService) GetConfidenceStats(_ context.Context, clientID string) (domain.ConfidenceStats, error) {
	if s.err != nil {
		return domain.ConfidenceStats{}, s.err
	}
	return domain.ConfidenceStats{TotalProducts: 4, HighConfidence: 4}, nil
}

func (s *stubService) ListRuns(_ context.Context, clientID string, limit int) ([]*pipeline.RecalculationRun, error) {
	return []*pipeline.RecalculationRun{}, nil
}

type stubQueue struct {
	clients []string
	err     error
}

func (q *stubQueue) EnqueueRecalculation(_ context.Context, clientID, trigger string) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.clients = append(q.clients, clientID)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func newTestRouter(svc UsageService, queue RecalculationQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewUsageHandler(svc, queue)
	r := gin.New()
	r.GET("/products/:id/usage", h.GetProductUsage)
	r.POST("/calculate", h.CalculateUsageBatch)
	r.POST("/reorder-point", h.CalculateReorderPoint)
	r.POST("/suggested-reorder", h.CalculateSuggestedReorder)
	r.POST("/clients/:id/recalculate", h.RecalculateClient)
	r.GET("/clients/:id/stats", h.GetClientStats)
	r.GET("/tiers/:tier", h.GetTierDisplay)
	return r
}

func perform(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetProductUsage(t *testing.T) {
	svc := &stubService{estimate: &usage.Estimate{ProductID: "p-1", Tier: domain.Tier3Month, MonthlyUsageUnits: 42}}
	w := perform(newTestRouter(svc, nil), http.MethodGet, "/products/p-1/usage", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "3_month", body["tier"])
	require.Equal(t, 42.0, body["monthly_usage_units"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("lookup: %w", domain.ErrProductNotFound), http.StatusNotFound},
		{domain.ErrInvalidPackSize, http.StatusBadRequest},
		{fmt.Errorf("%w: service level", domain.ErrInvalidPolicy), http.StatusBadRequest},
		{fmt.Errorf("suggested quantity: %w", domain.ErrOutOfRange), http.StatusBadRequest},
		{errors.New("database unavailable"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := perform(newTestRouter(&stubService{err: tc.err}, nil), http.MethodGet, "/products/p-1/usage", "")
		require.Equal(t, tc.code, w.Code, tc.err.Error())
		require.Contains(t, w.Body.String(), `"error"`)
	}
}

func TestCalculateUsageBatch(t *testing.T) {
	svc := &stubService{estimate: &usage.Estimate{Tier: domain.Tier12Month, ConfidenceScore: 0.81}}
	r := newTestRouter(svc, nil)

	w := perform(r, http.MethodPost, "/calculate", `{"product_ids": ["p-1", "p-2"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"p-1", "p-2"}, svc.batchIn)

	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, "p-2", body.Data[1]["product_id"])

	for _, payload := range []string{`{}`, `{"product_ids": []}`, `{"product_ids": [""]}`} {
		w = perform(r, http.MethodPost, "/calculate", payload)
		require.Equal(t, http.StatusBadRequest, w.Code, payload)
	}

	svc.err = fmt.Errorf("batch: %w", domain.ErrOutOfRange)
	w = perform(r, http.MethodPost, "/calculate", `{"product_ids": ["p-1"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateReorderPointValidation(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, nil)

	w := perform(r, http.MethodPost, "/reorder-point", `{"daily_rate": -1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/reorder-point", `{"daily_rate": 2, "service_level": 0.99, "pack_size": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.InDelta(t, 0.99, *svc.reorderIn.ServiceLevel, 1e-9)
	require.Contains(t, w.Body.String(), `"units":56`)
}

func TestCalculateSuggestedReorder(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, nil)

	w := perform(r, http.MethodPost, "/suggested-reorder", `{"monthly_usage_units": 100, "current_stock_units": 0, "pack_size": 10}`)
	require.Equal(t, http.StatusOK, w.Code)

	var s usage.Suggestion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.Equal(t, 24, s.SuggestedPacks)
	require.Equal(t, 240, s.SuggestedUnits)

	w = perform(r, http.MethodPost, "/suggested-reorder", `{"monthly_usage_units": 100}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecalculateClientQueued(t *testing.T) {
	svc := &stubService{}
	queue := &stubQueue{}
	r := newTestRouter(svc, queue)

	w := perform(r, http.MethodPost, "/clients/c-1/recalculate", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, []string{"c-1"}, queue.clients)
	require.Zero(t, svc.recalcRuns)
	require.Contains(t, w.Body.String(), "task-1")

	queue.err = asynq.ErrDuplicateTask
	w = perform(r, http.MethodPost, "/clients/c-1/recalculate", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), "already queued")
}

func TestRecalculateClientSync(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, &stubQueue{})

	w := perform(r, http.MethodPost, "/clients/c-1/recalculate?sync=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, svc.recalcRuns)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 2, report.Processed)
}

func TestRecalculateClientNotFound(t *testing.T) {
	svc := &stubService{err: fmt.Errorf("failed to read client policy: %w", domain.ErrClientNotFound)}
	w := perform(newTestRouter(svc, nil), http.MethodPost, "/clients/nobody/recalculate", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTierDisplay(t *testing.T) {
	r := newTestRouter(&stubService{}, nil)

	w := perform(r, http.MethodGet, "/tiers/weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	var display domain.TierDisplay
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &display))
	require.Equal(t, "Weekly Estimate", display.Label)

	w = perform(r, http.MethodGet, "/tiers/yearly", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetClientStats(t *testing.T) {
	w := perform(newTestRouter(&stubService{}, nil), http.MethodGet, "/clients/c-1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"high_confidence_count":4`)
}
