// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ctxutil stores and reads the per-request values middleware attaches.

Three values travel with a request: the correlation id, the request-scoped
logger and the verified access token claims. [WithPrincipal] also tags the
logger with the caller, so every log line written after authentication names
who made the request.
*/
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/fitclub/internal/platform/ctxkey"
	"github.com/taibuivan/fitclub/internal/platform/sec"
)

// Log attributes attached once the caller is known.
const (
	LogPrincipalID   = "principal_id"
	LogPrincipalKind = "principal_kind"
)

// # Request Tracing

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID returns the correlation id, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger returns the request logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// # Caller Identity

// WithPrincipal attaches the verified claims and tags the request logger with the caller.
func WithPrincipal(ctx context.Context, claims *sec.AuthClaims) context.Context {
	ctx = context.WithValue(ctx, ctxkey.KeyPrincipal, claims)
	if claims == nil {
		return ctx
	}

	logger := GetLogger(ctx).With(
		slog.String(LogPrincipalID, claims.Subject),
		slog.String(LogPrincipalKind, claims.Kind),
	)
	return WithLogger(ctx, logger)
}

// GetPrincipal returns the caller's claims, or nil for anonymous requests.
func GetPrincipal(ctx context.Context) *sec.AuthClaims {
	claims, _ := ctx.Value(ctxkey.KeyPrincipal).(*sec.AuthClaims)
	return claims
}

// IsKind reports whether the caller is authenticated as kind ("user" or "admin").
func IsKind(ctx context.Context, kind string) bool {
	claims := GetPrincipal(ctx)
	return claims != nil && claims.Kind == kind
}
