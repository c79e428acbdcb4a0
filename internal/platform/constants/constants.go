// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package constants holds the wire names and timings the API layers agree on:
// token headers and cookies, server deadlines, rate limits and Redis key prefixes.
package constants

import "time"

const (
	AppName    = "fitclub"
	AppVersion = "0.4.0"
)

// # Server Timing

const (
	DefaultReadTimeout       = 5 * time.Second
	DefaultReadHeaderTimeout = 2 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second

	// GlobalRequestTimeout bounds a whole request, including its SQL statements.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is the drain window for in-flight requests on SIGTERM.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

// Limits apply per client IP. Idle clients are forgotten after RateLimitClientTTL.
const (
	DefaultRateLimitRPS      = 50.0
	DefaultRateLimitBurst    = 100
	RateLimitCleanupInterval = time.Minute
	RateLimitClientTTL       = 3 * time.Minute
)

// # Tokens

// Both tokens travel as "Bearer <jwt>" in a header and in a cookie of the same name.
const (
	HeaderAuthorization = "Authorization"
	HeaderRefreshToken  = "RefreshToken"
	BearerPrefix        = "Bearer "

	AccessTokenCookieName  = HeaderAuthorization
	RefreshTokenCookieName = HeaderRefreshToken
	TokenCookiePath        = "/"

	// OAuthStateCookieName holds the CSRF state during the social login redirect.
	OAuthStateCookieName = "oauth_state"
	OAuthStateTTL        = 5 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// FieldStatus is the key of the liveness body.
const FieldStatus = "status"

// # Redis Keys

// A refresh session is stored twice: by principal for logout, by token for rotation.
const (
	RedisPrefixSessionPrincipal = "auth:session:principal:"
	RedisPrefixSessionToken     = "auth:session:token:"
)
