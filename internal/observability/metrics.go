// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Auth event outcomes besides error codes.
const OutcomeSuccess = "success"

// Metrics contains the TaskVault Prometheus metrics.
type Metrics struct {
	// AuthEventsTotal counts auth operations by event and outcome.
	// The outcome is "success" or the error code of the failure.
	AuthEventsTotal     *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	TokensPrunedTotal   prometheus.Counter
}

// NewMetrics creates and registers the TaskVault metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskvault_auth_events_total",
				Help: "Total number of auth operations by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskvault_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskvault_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TokensPrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskvault_tokens_pruned_total",
				Help: "Total number of expired session tokens deleted",
			},
		),
	}

	reg.MustRegister(m.AuthEventsTotal)
	reg.MustRegister(m.HTTPRequestsTotal)
	reg.MustRegister(m.HTTPRequestDuration)
	reg.MustRegister(m.TokensPrunedTotal)

	return m
}

// RecordAuthEvent counts one auth operation. A nil receiver is a no-op.
func (m *Metrics) RecordAuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "error"
	}
	m.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

// Middleware records request counts and latency per chi route pattern.
// Unmatched requests are labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := RoutePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RoutePattern returns the chi route pattern that served r, or "unmatched".
// Path parameters stay as placeholders, so tokens carried in the path never
// reach labels or logs. Call it after the router has handled r.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
