// Package metrics exposes request and ledger activity counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/benchtrack/benchtrack/internal/event_bus"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "benchtrack"

type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	allocationsSaved *prometheus.CounterVec
	hoursSaved       prometheus.Counter
	remarksSaved     prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		allocationsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_saved_total",
			Help:      "Committed allocation writes by source and whether a record was created.",
		}, []string{"source", "created"}),
		hoursSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_hours_saved_total",
			Help:      "Sum of total hours over committed allocation writes.",
		}),
		remarksSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weekly_remarks_saved_total",
			Help:      "Committed weekly remark writes.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.allocationsSaved,
		m.hoursSaved,
		m.remarksSaved,
	)
	return m
}

// Subscribe counts ledger writes published on bus.
func (m *Metrics) Subscribe(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped(bus, event_bus.AllocationSavedType, func(e event_bus.EventT[event_bus.AllocationSaved]) error {
		m.allocationsSaved.WithLabelValues(string(e.Data.Source), strconv.FormatBool(e.Data.Created)).Inc()
		m.hoursSaved.Add(e.Data.TotalHours.InexactFloat64())
		return nil
	})
	event_bus.SubscribeTyped(bus, event_bus.WeeklyRemarkSavedType, func(e event_bus.EventT[event_bus.WeeklyRemarkSaved]) error {
		m.remarksSaved.Inc()
		return nil
	})
}

// Middleware records every request under its mux route template, so ids in paths do not
// create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
