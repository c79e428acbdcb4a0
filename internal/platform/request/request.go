// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package requestutil reads what handlers need from an incoming request: the
JSON body, a validated {id} path parameter, the two bearer tokens and the
authenticated caller.
*/
package requestutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/platform/validate"
)

// MaxBodyBytes caps a JSON payload. The largest legitimate body is a
// trainer introduction.
const MaxBodyBytes = 64 << 10

// ParamID is the path parameter naming a member, admin or promotion request.
const ParamID = "id"

// DecodeJSON decodes at most [MaxBodyBytes] of the body into target.
// Any failure, an empty body included, is [validate.ErrInvalidJSON].
func DecodeJSON(request *http.Request, target any) error {
	if err := json.NewDecoder(io.LimitReader(request.Body, MaxBodyBytes)).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

// Param returns a chi URL parameter.
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

// PathID returns the {id} parameter once it parses as a UUID.
func PathID(request *http.Request) (string, error) {
	id := Param(request, ParamID)
	if err := (&validate.Validator{}).UUID(ParamID, id).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// # Token Transport

/*
AccessToken returns the access token sent with the request.

The Authorization header wins over the cookie of the same name. Cookie values
are URL-decoded; the "Bearer " prefix is left for the verifier to strip.
*/
func AccessToken(request *http.Request) string {
	return token(request, constants.HeaderAuthorization, constants.AccessTokenCookieName)
}

// RefreshToken reads the RefreshToken header, then the cookie.
func RefreshToken(request *http.Request) string {
	return token(request, constants.HeaderRefreshToken, constants.RefreshTokenCookieName)
}

func token(request *http.Request, header, cookieName string) string {
	raw := request.Header.Get(header)
	if raw == "" {
		cookie, err := request.Cookie(cookieName)
		if err != nil {
			return ""
		}
		raw = cookie.Value
	}

	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// # Caller

// Principal returns the verified claims, or nil for anonymous requests.
func Principal(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetPrincipal(request.Context())
}

// RequiredPrincipal is [Principal] that fails with apperr.Unauthorized for anonymous callers.
func RequiredPrincipal(request *http.Request) (*sec.AuthClaims, error) {
	claims := Principal(request)
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return claims, nil
}

// RequiredSubject returns the caller's member or admin id.
func RequiredSubject(request *http.Request) (string, error) {
	claims, err := RequiredPrincipal(request)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
