// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/taibuivan/fitclub/internal/api"
	"github.com/taibuivan/fitclub/internal/platform/config"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/events"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/middleware"
	"github.com/taibuivan/fitclub/internal/platform/migration"
	pgstore "github.com/taibuivan/fitclub/internal/platform/postgres"
	redisstore "github.com/taibuivan/fitclub/internal/platform/redis"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/users/account"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/memory"
	"github.com/taibuivan/fitclub/internal/users/promotion"
	"github.com/taibuivan/fitclub/internal/users/social"
)

// startupTimeout bounds connecting to every dependency, so misconfiguration
// fails fast instead of hanging.
const startupTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			context, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(context, inMemory)
		},
	}

	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "Keep all state in process memory instead of PostgreSQL")

	return cmd
}

// repositories is the storage the services are built on.
type repositories struct {
	users      auth.UserRepository
	admins     auth.AdminRepository
	sessions   auth.SessionStore
	promotions promotion.Store
	profiles   account.Repository
}

// # Startup Sequence
//
//  1. Logger and configuration.
//  2. PostgreSQL and migrations, or the in-memory store.
//  3. Redis, when configured.
//  4. Token service, metrics and the event publisher.
//  5. Domain services and handlers.
//  6. HTTP server with graceful shutdown.
func serve(ctx context.Context, inMemory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Debug)
	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("in_memory", inMemory),
	)

	startupCtx, startupCancel := context.WithTimeout(ctx, startupTimeout)
	defer startupCancel()

	health := api.HealthDependencies{}
	var repos repositories

	// # Storage
	if inMemory {
		store := memory.New()
		repos = repositories{
			users:      store.Users(),
			admins:     store.Admins(),
			sessions:   store.Sessions(),
			promotions: store.Promotions(),
			profiles:   store.Profiles(),
		}
	} else {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required unless --in-memory is set")
		}

		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.Options{
			MaxConns:         cfg.DatabaseMaxConns,
			MinConns:         cfg.DatabaseMinConns,
			StatementTimeout: cfg.DatabaseStatementTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer func() {
			log.Info("postgres_pool_closing")
			pool.Close()
		}()

		if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		health.CheckDatabase = func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }
		repos = postgresRepositories(pool)
	}

	// # Cache
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, redisstore.Options{PoolSize: cfg.RedisPoolSize}, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			log.Info("redis_client_closing")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		health.CheckCache = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
		if cfg.SessionStore == config.SessionStoreRedis {
			repos.sessions = auth.NewRedisSessionStore(rdb, cfg.RefreshTokenTTL)
		}
	}

	// # Security & Observability
	tokens, err := newTokenService(cfg)
	if err != nil {
		return fmt.Errorf("initialize token service: %w", err)
	}

	m := metrics.NewDefault()

	publisher, pingBroker, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer closePublisher()
	health.CheckBroker = pingBroker

	// # Domain Wiring
	authService := auth.NewService(
		repos.users, repos.admins, repos.sessions, tokens,
		auth.NewAdminEnroller(cfg.AdminEnrollmentSecret),
		auth.WithMetrics(m),
	)

	promotionService := promotion.NewService(repos.promotions, repos.users, authService, promotion.Config{
		Publisher: publisher,
		Topic:     cfg.AMQPRoleQueue,
		Metrics:   m,
	})

	authenticate := middleware.Authenticate(tokens, m)

	handlerConfig := auth.HandlerConfig{
		Authenticate:  authenticate,
		SecureCookies: cfg.IsProduction(),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}

	if cfg.SocialLoginEnabled() {
		provider, err := social.NewProvider(startupCtx, social.Config{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			return fmt.Errorf("initialize social login: %w", err)
		}
		handlerConfig.Social = provider
	}

	liveness, readiness := api.NewHealthHandlers(health, log)

	server := api.NewServer(ctx, cfg, log, m, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, handlerConfig),
		Promotion: promotion.NewHandler(promotionService, authenticate),
		Account:   account.NewHandler(account.NewService(repos.profiles, authService), authenticate),
	})

	if err := server.Run(ctx, constants.ShutdownTimeout); err != nil {
		log.Error("server_stopped_with_error", slog.Any("error", err))
		return err
	}

	log.Info("server_stopped_cleanly")
	return nil
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		users:      auth.NewUserRepository(pool),
		admins:     auth.NewAdminRepository(pool),
		sessions:   auth.NewSessionStore(pool),
		promotions: promotion.NewPostgresStore(pool),
		profiles:   account.NewPostgresRepository(pool),
	}
}

func newTokenService(cfg *config.Config) (*sec.TokenService, error) {
	secret, err := cfg.SigningSecret()
	if err != nil {
		return nil, err
	}

	previous, err := cfg.VerificationSecrets()
	if err != nil {
		return nil, err
	}

	return sec.NewTokenService(sec.TokenConfig{
		KeyID:        cfg.JWTKeyID,
		Secret:       secret,
		PreviousKeys: previous,
		Issuer:       cfg.JWTIssuer,
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
	})
}

// newPublisher dials the broker when one is configured and falls back to dropping events.
func newPublisher(cfg *config.Config, log *slog.Logger) (events.Publisher, func(context.Context) error, func(), error) {
	if cfg.AMQPURL == "" {
		return events.Noop{}, nil, func() {}, nil
	}

	publisher, err := events.DialAMQP(cfg.AMQPURL, log)
	if err != nil {
		return nil, nil, nil, err
	}

	return publisher, publisher.Ping, func() {
		if err := publisher.Close(); err != nil {
			log.Error("amqp_close_failed", slog.Any("error", err))
		}
	}, nil
}
