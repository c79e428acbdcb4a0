// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics defines the Prometheus collectors exported on /metrics.

Collectors are registered on an injected [prometheus.Registerer] so tests can
use a private registry and read values back with testutil.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fitclub"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups every collector the API updates.
type Metrics struct {
	// Logins counts login attempts by principal kind, method and outcome.
	Logins *prometheus.CounterVec

	// TokenVerifications counts access token checks by result code.
	TokenVerifications *prometheus.CounterVec

	// SessionRefreshes counts token renewals by outcome.
	SessionRefreshes *prometheus.CounterVec

	// RoleTransitions counts successful role changes.
	RoleTransitions *prometheus.CounterVec

	// HTTPRequests and HTTPDuration are fed by the instrumentation middleware.
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by principal kind, method and outcome.",
		}, []string{"kind", "method", "outcome"}),

		TokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_verifications_total",
			Help:      "Access token verifications by result.",
		}, []string{"result"}),

		SessionRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_refreshes_total",
			Help:      "Refresh token renewals by outcome.",
		}, []string{"outcome"}),

		RoleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "users",
			Name:      "role_transitions_total",
			Help:      "Committed role transitions.",
		}, []string{"event", "from", "to"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		gatherer: reg,
	}

	reg.MustRegister(
		m.Logins,
		m.TokenVerifications,
		m.SessionRefreshes,
		m.RoleTransitions,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// NewDefault creates a registry carrying the Go and process collectors plus the API collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveLogin records a login attempt. A nil receiver is a no-op.
func (m *Metrics) ObserveLogin(kind, method string, err error) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(kind, method, outcome(err)).Inc()
}

// ObserveRefresh records a session renewal. A nil receiver is a no-op.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	m.SessionRefreshes.WithLabelValues(outcome(err)).Inc()
}

// ObserveTransition records a committed role change. A nil receiver is a no-op.
func (m *Metrics) ObserveTransition(event, from, to string) {
	if m == nil {
		return
	}
	m.RoleTransitions.WithLabelValues(event, from, to).Inc()
}

// ObserveVerification records the result of an access token check. A nil receiver is a no-op.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.TokenVerifications.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
