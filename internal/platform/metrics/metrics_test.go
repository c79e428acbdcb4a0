// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/fitclub/internal/platform/metrics"
)

/*
TestMetrics_Observe verifies that helpers update the labelled counters.
*/
func TestMetrics_Observe(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveLogin("user", "password", nil)
	m.ObserveLogin("user", "password", errors.New("bad password"))
	m.ObserveLogin("user", "password", errors.New("bad password"))
	m.ObserveTransition("promotion_approved", "USER", "TRAINER")
	m.ObserveRefresh(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues("user", "password", metrics.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("user", "password", metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoleTransitions.WithLabelValues("promotion_approved", "USER", "TRAINER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRefreshes.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveLogin("admin", "password", nil)
		m.ObserveTransition("reported", "USER", "REPORTED")
		m.ObserveVerification("ok")
		m.ObserveRefresh(nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveVerification("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fitclub_auth_token_verifications_total")
}
