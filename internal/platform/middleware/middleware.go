// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware holds the handlers wrapped around every club API route.

The global chain mounted by the API server is request id, access log, metrics,
timeout, rate limit, panic recovery and CORS. Token verification and role
checks live in authz.go and are mounted per route group.
*/
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/pkg/uuid"
)

// # Correlation

// RequestID keeps the client's X-Request-ID or mints one, and echoes it back.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			id := request.Header.Get(constants.HeaderXRequestID)
			if id == "" {
				id = uuid.New()
			}

			writer.Header().Set(constants.HeaderXRequestID, id)
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithRequestID(request.Context(), id)))
		})
	}
}

// # Access Log And Metrics

// recorder remembers the status a handler wrote. Handlers that never call
// WriteHeader answered 200.
type recorder struct {
	http.ResponseWriter
	status int
}

func record(writer http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: writer, status: http.StatusOK}
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

/*
StructuredLogger gives each request its own logger and writes one
"http_request_finished" line when it completes.

The line is INFO for 2xx and 3xx, WARN for 4xx and ERROR for 5xx.
*/
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()

			requestLogger := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", RealIP(request)),
			)
			ctx := ctxutil.WithLogger(request.Context(), requestLogger)

			rec := record(writer)
			next.ServeHTTP(rec, request.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			requestLogger.Log(ctx, level, "http_request_finished",
				slog.Int("status", rec.status),
				slog.Int64("latency_ms", time.Since(started).Milliseconds()),
				slog.String("user_agent", request.UserAgent()),
			)
		})
	}
}

// Instrument feeds the HTTP counters in [metrics.Metrics], labelled by chi
// route pattern so /trainers/{id} stays one series.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()
			rec := record(writer)

			next.ServeHTTP(rec, request)

			route := routePattern(request)
			m.HTTPRequests.WithLabelValues(route, request.Method, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(route, request.Method).Observe(time.Since(started).Seconds())
		})
	}
}

// routePattern is only complete after chi has finished routing.
func routePattern(request *http.Request) string {
	if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
		if pattern := routeContext.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// # Rate Limiting

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per client IP.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter starts a limiter whose idle-visitor sweep stops with ctx.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	limiter := &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
	go limiter.sweep(ctx)
	return limiter
}

// RateLimit is [NewRateLimiter] with the API defaults.
func RateLimit(ctx context.Context) func(http.Handler) http.Handler {
	return NewRateLimiter(ctx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst).Handler
}

// Handler answers 429 RATE_LIMITED with Retry-After once the bucket is empty.
func (limiter *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if wait, allowed := limiter.take(RealIP(request)); !allowed {
			seconds := max(int(math.Ceil(wait.Seconds())), 1)
			writer.Header().Set("Retry-After", strconv.Itoa(seconds))
			respond.Error(writer, request, apperr.RateLimited(seconds))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// take spends a token for ip, or reports how long until one is available.
func (limiter *RateLimiter) take(ip string) (time.Duration, bool) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := time.Now()
	v, ok := limiter.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(limiter.rps, limiter.burst)}
		limiter.visitors[ip] = v
	}
	v.lastSeen = now

	if v.limiter.AllowN(now, 1) {
		return 0, true
	}

	reservation := v.limiter.ReserveN(now, 1)
	wait := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return wait, false
}

func (limiter *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.mu.Lock()
			for ip, v := range limiter.visitors {
				if now.Sub(v.lastSeen) > constants.RateLimitClientTTL {
					delete(limiter.visitors, ip)
				}
			}
			limiter.mu.Unlock()
		}
	}
}

// # Recovery

// PanicRecovery turns a handler panic into a logged INTERNAL_ERROR response.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				log := ctxutil.GetLogger(request.Context())
				if log == slog.Default() {
					log = logger
				}
				log.ErrorContext(request.Context(), "panic_recovered",
					slog.Any("error", recovered),
					slog.String("stack", string(debug.Stack())),
				)

				respond.Error(writer, request, apperr.Internal(nil))
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # CORS

// AppConfig is the part of the configuration CORS depends on.
type AppConfig interface {
	IsDevelopment() bool
}

/*
CORS admits allowedOrigins, or every origin in development.

Credentials are allowed and both token headers are exposed, because browser
clients receive the tokens as headers and cookies.
*/
func CORS(cfg AppConfig, allowedOrigins []string) func(http.Handler) http.Handler {
	tokenHeaders := []string{constants.HeaderAuthorization, constants.HeaderRefreshToken, constants.HeaderXRequestID}

	options := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   append([]string{"Accept", "Content-Type", "Content-Length"}, tokenHeaders...),
		ExposedHeaders:   tokenHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}

	if cfg.IsDevelopment() {
		options.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}

	return cors.Handler(options)
}

// RealIP prefers X-Real-IP, then the first X-Forwarded-For hop, then the peer address.
func RealIP(request *http.Request) string {
	if ip := strings.TrimSpace(request.Header.Get(constants.HeaderXRealIP)); ip != "" {
		return ip
	}

	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}
