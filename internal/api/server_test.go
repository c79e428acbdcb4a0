// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fitclub/internal/api"
	"github.com/taibuivan/fitclub/internal/platform/config"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/events"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/middleware"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/users/account"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/memory"
	"github.com/taibuivan/fitclub/internal/users/promotion"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, health api.HealthDependencies) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		KeyID:      "k1",
		Secret:     []byte(strings.Repeat("k", sec.MinKeyBytes)),
		Issuer:     "fitclub.test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
	})
	require.NoError(t, err)

	store := memory.New()
	m := metrics.New(prometheus.NewRegistry())
	authenticate := middleware.Authenticate(tokens, m)

	authService := auth.NewService(store.Users(), store.Admins(), store.Sessions(), tokens, nil, auth.WithMetrics(m))
	promotionService := promotion.NewService(store.Promotions(), store.Users(), authService, promotion.Config{
		Publisher: events.Noop{},
		Metrics:   m,
	})

	liveness, readiness := api.NewHealthHandlers(health, discard())
	cfg := &config.Config{ServerPort: "0", Environment: "test"}

	server := api.NewServer(ctx, cfg, discard(), m, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth: auth.NewHandler(authService, auth.HandlerConfig{
			Authenticate: authenticate,
			AccessTTL:    30 * time.Minute,
			RefreshTTL:   14 * 24 * time.Hour,
		}),
		Promotion: promotion.NewHandler(promotionService, authenticate),
		Account:   account.NewHandler(account.NewService(store.Profiles(), authService), authenticate),
	})
	return server.Handler()
}

func call(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	request := httptest.NewRequest(method, target, &payload)
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

/*
TestServer_Routes verifies that both domains are mounted under /api/v1.
*/
func TestServer_Routes(t *testing.T) {
	handler := newServer(t, api.HealthDependencies{})

	signUp := call(t, handler, http.MethodPost, "/api/v1/users/sign-up", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, signUp.Code)
	assert.NotEmpty(t, signUp.Header().Get(constants.HeaderXRequestID))

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{name: "liveness", method: http.MethodGet, target: "/health", want: http.StatusOK},
		{name: "promotion_requires_auth", method: http.MethodPost, target: "/api/v1/users/promote", want: http.StatusUnauthorized},
		{name: "admin_requires_auth", method: http.MethodGet, target: "/api/v1/admins/registrations", want: http.StatusUnauthorized},
		{name: "profile_requires_auth", method: http.MethodGet, target: "/api/v1/users/profile", want: http.StatusUnauthorized},
		{name: "unknown_route", method: http.MethodGet, target: "/api/v1/nothing", want: http.StatusNotFound},
		{name: "wrong_method", method: http.MethodDelete, target: "/health", want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := call(t, handler, tt.method, tt.target, nil)
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}

/*
TestServer_NotFoundEnvelope verifies that unknown routes answer in the error envelope.
*/
func TestServer_NotFoundEnvelope(t *testing.T) {
	handler := newServer(t, api.HealthDependencies{})

	recorder := call(t, handler, http.MethodGet, "/api/v1/users/nothing-here", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)

	var body respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, recorder.Header().Get(constants.HeaderXRequestID), body.RequestID)
}

/*
TestServer_Metrics verifies that requests are counted and exposed.
*/
func TestServer_Metrics(t *testing.T) {
	handler := newServer(t, api.HealthDependencies{})

	call(t, handler, http.MethodPost, "/api/v1/users/log-in", map[string]string{"username": "ghost", "password": "whatever1"})

	recorder := call(t, handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "fitclub_auth_logins_total")
}

/*
TestHealth_Readiness covers the ready and degraded answers.
*/
func TestHealth_Readiness(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		deps       api.HealthDependencies
		wantStatus int
		wantBody   string
		wantChecks int
	}{
		{name: "nothing_configured", deps: api.HealthDependencies{}, wantStatus: http.StatusOK, wantBody: "ready", wantChecks: 0},
		{name: "all_healthy", deps: api.HealthDependencies{CheckDatabase: healthy, CheckCache: healthy}, wantStatus: http.StatusOK, wantBody: "ready", wantChecks: 2},
		{name: "cache_down", deps: api.HealthDependencies{CheckDatabase: healthy, CheckCache: failing}, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded", wantChecks: 2},
		{name: "broker_down", deps: api.HealthDependencies{CheckBroker: failing}, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded", wantChecks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, readiness := api.NewHealthHandlers(tt.deps, discard())

			recorder := httptest.NewRecorder()
			readiness(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantStatus, recorder.Code)

			var envelope respond.SuccessEnvelope[struct {
				Status string            `json:"status"`
				Checks []json.RawMessage `json:"checks"`
			}]
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
			assert.Equal(t, tt.wantBody, envelope.Data.Status)
			assert.Len(t, envelope.Data.Checks, tt.wantChecks)
		})
	}
}
