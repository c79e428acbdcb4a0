// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/middleware"
	"github.com/taibuivan/fitclub/internal/platform/sec"
)

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	token  string
	claims *sec.AuthClaims
}

func (v stubVerifier) VerifyType(token string, want sec.TokenType) (*sec.AuthClaims, error) {
	if sec.StripBearer(token) != v.token {
		return nil, apperr.ExpiredToken()
	}
	if v.claims.Type != want {
		return nil, apperr.MalformedToken()
	}
	return v.claims, nil
}

func trainerClaims() *sec.AuthClaims {
	return &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Role:             "TRAINER",
		Kind:             "user",
		Type:             sec.TokenAccess,
	}
}

var ok = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
	if claims := ctxutil.GetPrincipal(request.Context()); claims != nil {
		writer.Header().Set("X-Subject", claims.Subject)
	}
	writer.WriteHeader(http.StatusOK)
})

/*
TestAuthenticate verifies anonymous, valid and rejected tokens.
*/
func TestAuthenticate(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	handler := middleware.Authenticate(stubVerifier{token: "good", claims: trainerClaims()}, m)(ok)

	tests := []struct {
		name    string
		header  string
		status  int
		subject string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid", "Bearer good", http.StatusOK, "user-1"},
		{"expired", "Bearer stale", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.subject, rec.Header().Get("X-Subject"))
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenVerifications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenVerifications.WithLabelValues(apperr.CodeExpiredToken)))
}

/*
TestAuthenticate_RejectsRefreshToken checks that refresh tokens cannot authorize requests.
*/
func TestAuthenticate_RejectsRefreshToken(t *testing.T) {
	claims := trainerClaims()
	claims.Type = sec.TokenRefresh

	handler := middleware.Authenticate(stubVerifier{token: "refresh", claims: claims}, nil)(ok)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer refresh")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

/*
TestRequireRole checks membership semantics of the role guard.
*/
func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		claims *sec.AuthClaims
		roles  []string
		status int
	}{
		{"anonymous", nil, []string{"ADMIN"}, http.StatusUnauthorized},
		{"allowed", trainerClaims(), []string{"USER", "TRAINER"}, http.StatusOK},
		{"forbidden", trainerClaims(), []string{"ADMIN"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				r = r.WithContext(ctxutil.WithPrincipal(r.Context(), tt.claims))
			}

			rec := httptest.NewRecorder()
			middleware.RequireRole(tt.roles...)(ok).ServeHTTP(rec, r)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireKind(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ctxutil.WithPrincipal(r.Context(), trainerClaims()))

	rec := httptest.NewRecorder()
	middleware.RequireKind("admin")(ok).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	middleware.RequireKind("user")(ok).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

/*
TestRateLimiter verifies that a client is throttled after its burst.
*/
func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.NewRateLimiter(ctx, 0.001, 2).Handler(ok)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.7:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, r)
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	// Another member behind a different address still has a full bucket
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestID(t *testing.T) {
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.NotEmpty(t, ctxutil.GetRequestID(request.Context()))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "given")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, "given", rec.Header().Get("X-Request-ID"))
}

/*
TestInstrument labels requests with the chi route pattern.
*/
func TestInstrument(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	router := chi.NewRouter()
	router.Use(middleware.Instrument(m))
	router.Get("/trainers/{id}", ok)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trainers/42", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/trainers/{id}", "GET", "200")))
}

/*
TestRealIP verifies the proxy header precedence.
*/
func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"peer_address", nil, "192.0.2.1"},
		{"forwarded_chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real_ip_wins", map[string]string{"X-Real-IP": "198.51.100.4", "X-Forwarded-For": "203.0.113.9"}, "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for key, value := range tt.headers {
				r.Header.Set(key, value)
			}
			assert.Equal(t, tt.want, middleware.RealIP(r))
		})
	}
}
