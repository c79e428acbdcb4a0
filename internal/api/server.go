// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api mounts the member and administrator routes under /api/v1 and
runs the HTTP server until its context is cancelled.

Authentication is not global. Each domain handler applies it to its own
protected groups, which keeps /users/renew reachable with an expired access
token.
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/config"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/middleware"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/users/account"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/promotion"
)

// Server owns the router and the [http.Server] listening on it.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Handlers holds every route set the server mounts.
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc

	// Auth serves sign-up, login, renewal and logout for both principal kinds.
	Auth *auth.Handler

	// Promotion serves trainer candidacy, moderation and likes.
	Promotion *promotion.Handler

	Account *account.Handler
}

/*
NewServer builds the router.

Global middleware runs in this order: request id, access log, metrics,
timeout, per-IP rate limit, panic recovery, CORS. ctx stops the rate
limiter's cleanup loop.
*/
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics, h Handlers) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(middleware.Instrument(m))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(ctx))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg, cfg.CORSAllowedOrigins))
	r.Use(chimw.CleanPath)

	r.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.NotFound("Route"))
	})
	r.MethodNotAllowed(func(writer http.ResponseWriter, request *http.Request) {
		respond.JSON(writer, http.StatusMethodNotAllowed, respond.ErrorEnvelope{
			Error:     "Method not allowed on " + request.URL.Path,
			Code:      "METHOD_NOT_ALLOWED",
			RequestID: ctxutil.GetRequestID(request.Context()),
		})
	})

	// Probes and scraping stay outside /api/v1 and never need a token.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/users", func(users chi.Router) {
			h.Auth.UserRoutes(users)
			h.Promotion.UserRoutes(users)
			h.Account.UserRoutes(users)
		})

		v1.Route("/admins", func(admins chi.Router) {
			h.Auth.AdminRoutes(admins)
			h.Promotion.AdminRoutes(admins)
			h.Account.AdminRoutes(admins)
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
		},
	}
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

/*
Run serves until ctx is cancelled, then drains in-flight requests for at most
drain before returning.

A listener failure cancels the drain goroutine and is returned as is.
*/
func (s *Server) Run(ctx context.Context, drain time.Duration) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		s.log.Info("server_shutting_down", slog.Duration("timeout", drain))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
