// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"slices"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/fitclub/internal/platform/request"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/platform/sec"
)

// TokenVerifier checks a bearer token of the wanted type. [*sec.TokenService] implements it.
type TokenVerifier interface {
	VerifyType(tokenString string, want sec.TokenType) (*sec.AuthClaims, error)
}

// VerificationObserver receives the result code of every verification. Optional.
type VerificationObserver interface {
	ObserveVerification(result string)
}

/*
Authenticate verifies the access token sent as header or cookie.

A request without a token continues anonymously, so public routes can sit
in the same group. A token that fails verification answers 401 with its
specific code (EXPIRED_TOKEN, MALFORMED_TOKEN, UNKNOWN_SIGNING_KEY), which
tells clients when to call /renew. A refresh token is never accepted here.
*/
func Authenticate(verifier TokenVerifier, observer VerificationObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token := requestutil.AccessToken(request)
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			claims, err := verifier.VerifyType(token, sec.TokenAccess)
			if observer != nil {
				observer.ObserveVerification(verificationResult(err))
			}
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			next.ServeHTTP(writer, request.WithContext(ctxutil.WithPrincipal(request.Context(), claims)))
		})
	}
}

// guard answers 401 for anonymous callers and 403 when allow rejects the claims.
// Mount it after [Authenticate].
func guard(allow func(*sec.AuthClaims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetPrincipal(request.Context())
			switch {
			case claims == nil:
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			case !allow(claims):
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
			default:
				next.ServeHTTP(writer, request)
			}
		})
	}
}

// RequireKind admits only one principal kind, "user" or "admin".
// A member token can never open an administrator route and vice versa.
func RequireKind(kind string) func(http.Handler) http.Handler {
	return guard(func(claims *sec.AuthClaims) bool { return claims.Kind == kind })
}

// RequireRole admits members whose token carries one of roles.
// Roles are exclusive states, not a ladder: TRAINER does not imply USER.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return guard(func(claims *sec.AuthClaims) bool { return slices.Contains(roles, claims.Role) })
}

func verificationResult(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr := apperr.As(err); appErr != nil {
		return appErr.Code
	}
	return apperr.CodeInternal
}
