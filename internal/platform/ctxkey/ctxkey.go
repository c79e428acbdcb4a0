// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey defines the context keys shared by middleware and [ctxutil].
package ctxkey

// key is unexported so no other package can forge a colliding key.
type key int

const (
	// KeyRequestID holds the X-Request-ID correlation value.
	KeyRequestID key = iota

	// KeyLogger holds the request-scoped *slog.Logger.
	KeyLogger

	// KeyPrincipal holds the verified *sec.AuthClaims of the caller.
	KeyPrincipal
)
