package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benchtrack/benchtrack/internal/event_bus"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Subscribe(t *testing.T) {
	m := New()
	bus := event_bus.NewEventBus()
	m.Subscribe(bus)

	require.NoError(t, bus.Publish(event_bus.NewEvent(context.Background(), event_bus.AllocationSavedType, event_bus.AllocationSaved{
		Source:     event_bus.SourceUpsert,
		Created:    true,
		TotalHours: decimal.RequireFromString("37.5"),
	})))
	require.NoError(t, bus.Publish(event_bus.NewEvent(context.Background(), event_bus.WeeklyRemarkSavedType, event_bus.WeeklyRemarkSaved{UserId: 1, Week: 2})))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.allocationsSaved.WithLabelValues("upsert", "true")))
	assert.Equal(t, 37.5, testutil.ToFloat64(m.hoursSaved))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.remarksSaved))
}

func TestMetrics_Middleware(t *testing.T) {
	m := New()
	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/api/allocations/{allocationId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}).Methods(http.MethodPut)
	router.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2", "3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/allocations/"+id, nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requests.WithLabelValues("/api/allocations/{allocationId}", "PUT", "409")))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "benchtrack_http_requests_total"))
}
