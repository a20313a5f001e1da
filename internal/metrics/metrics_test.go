package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

func TestRecorderCounters(t *testing.T) {
	r := New("test", prometheus.NewRegistry())

	r.ObserveRun("completed", 2*time.Second)
	r.ObserveProduct(domain.Tier12Month, true, time.Millisecond)
	r.ObserveProduct(domain.Tier12Month, true, time.Millisecond)
	r.ObserveProduct("", false, time.Millisecond)
	r.ObserveCache("hit")
	r.ObserveJob("usage:recalculate_client", "succeeded")

	require.Equal(t, 1.0, testutil.ToFloat64(r.RecalcRunsTotal.WithLabelValues("completed")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.ProductsTotal.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.ProductsTotal.WithLabelValues("failed")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.TierAssignmentsTotal.WithLabelValues("12_month")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookupsTotal.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.JobsTotal.WithLabelValues("usage:recalculate_client", "succeeded")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveRun("failed", time.Second)
	r.ObserveProduct(domain.TierWeekly, true, time.Second)
	r.ObserveCache("miss")
	r.ObserveJob("x", "y")
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New("test", nil)

	router := gin.New()
	router.Use(r.GinMiddleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(r.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(r.APIRequestCounter.WithLabelValues("GET", "/ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.APIErrorCounter.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "test_api_requests_total"))
}
