// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/middleware"
	requestutil "github.com/taibuivan/fitclub/internal/platform/request"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/platform/validate"
)

// # Definitions & Constructors

// SocialProvider runs the social login redirect and reports the verified identity.
type SocialProvider interface {
	AuthCodeURL(state string) string
	Identify(context context.Context, code string) (SocialIdentity, error)
}

// HandlerConfig carries transport settings of the session endpoints.
type HandlerConfig struct {
	// Authenticate verifies the access token and stores the claims in the context.
	Authenticate func(http.Handler) http.Handler

	// Social is optional; without it the social routes are not registered.
	Social SocialProvider

	SecureCookies bool
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Handler implements the session and account HTTP endpoints.
//
// # Scope
//
// Only transport concerns live here: decoding bodies, moving tokens between
// headers, cookies and the [Service], and mapping results to status codes.
type Handler struct {
	authService *Service
	config      HandlerConfig
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, config HandlerConfig) *Handler {
	return &Handler{authService: service, config: config}
}

// UserRoutes registers the member endpoints on router.
//
// # Endpoints
//   - POST   /sign-up         : Creates a member account.
//   - POST   /log-in          : Authenticates and returns a token pair.
//   - POST   /refresh         : Renews the token pair.
//   - PUT    /find-id         : Looks up a username by email.
//   - PUT    /find-pw         : Issues a temporary password.
//   - GET    /social/login    : Redirects to the social provider.
//   - GET    /social/callback : Completes a social login.
//   - DELETE /log-out         : Drops the refresh session.
//   - DELETE /me              : Deletes the account.
func (handler *Handler) UserRoutes(router chi.Router) {
	router.Post("/sign-up", handler.signUp)
	router.Post("/log-in", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Put("/find-id", handler.findUsername(KindUser))
	router.Put("/find-pw", handler.resetPassword(KindUser))

	if handler.config.Social != nil {
		router.Get("/social/login", handler.socialRedirect)
		router.Get("/social/callback", handler.socialCallback)
	}

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(handler.config.Authenticate, middleware.RequireKind(string(KindUser)))
		r.Delete("/log-out", handler.logout)
		r.Delete("/me", handler.deleteAccount)
	})
}

// AdminRoutes registers the administrator session endpoints on router.
func (handler *Handler) AdminRoutes(router chi.Router) {
	router.Post("/sign-up", handler.adminSignUp)
	router.Post("/log-in", handler.adminLogin)
	router.Post("/refresh", handler.refresh)
	router.Put("/find-id", handler.findUsername(KindAdmin))
	router.Put("/find-pw", handler.resetPassword(KindAdmin))

	router.Group(func(r chi.Router) {
		r.Use(handler.config.Authenticate, middleware.RequireKind(string(KindAdmin)))
		r.Delete("/log-out", handler.logout)
	})
}

// # Request Payloads

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type adminSignUpRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Passphrase string `json:"passphrase"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

type findUsernameRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// # Response Payloads

type accountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Nickname string `json:"nickname,omitempty"`
}

type tokenResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	Role         string `json:"role"`
}

type usernameResponse struct {
	Username string `json:"username"`
}

type temporaryPasswordResponse struct {
	Message           string `json:"message"`
	TemporaryPassword string `json:"temporary_password"`
}

// # Handlers

/*
signUp handles the creation of a new member account.

POST /api/v1/users/sign-up

Response:
  - 201: accountResponse
  - 400: Validation failure
  - 409: Username or email already exists
*/
func (handler *Handler) signUp(writer http.ResponseWriter, request *http.Request) {
	var input signUpRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.SignUp(request.Context(), SignUpInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Nickname: input.Nickname,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, accountResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
		Nickname: user.Nickname,
	})
}

/*
adminSignUp registers an administrator.

POST /api/v1/admins/sign-up

Response:
  - 201: accountResponse
  - 403: Wrong enrollment passphrase
*/
func (handler *Handler) adminSignUp(writer http.ResponseWriter, request *http.Request) {
	var input adminSignUpRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	admin, err := handler.authService.AdminSignUp(request.Context(), AdminSignUpInput{
		Username:   input.Username,
		Email:      input.Email,
		Password:   input.Password,
		Passphrase: input.Passphrase,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, accountResponse{
		ID:       admin.ID,
		Username: admin.Username,
		Email:    admin.Email,
		Role:     string(admin.CurrentRole()),
	})
}

/*
login authenticates a member and sets both token cookies.

POST /api/v1/users/log-in

Response:
  - 200: tokenResponse, plus Authorization and RefreshToken headers and cookies
  - 401: INVALID_CREDENTIALS
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	handler.passwordLogin(writer, request, handler.authService.Login)
}

func (handler *Handler) adminLogin(writer http.ResponseWriter, request *http.Request) {
	handler.passwordLogin(writer, request, handler.authService.AdminLogin)
}

func (handler *Handler) passwordLogin(
	writer http.ResponseWriter,
	request *http.Request,
	login func(context.Context, string, string) (*LoginResult, error),
) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := login(request.Context(), input.Username, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, result, MessageLoggedIn)
}

/*
refresh renews the token pair from the refresh token.

POST /api/v1/users/refresh

The access token is optional and may be expired. Both are read from the
headers first, then from the cookies.

Response:
  - 200: tokenResponse
  - 401: EXPIRED_TOKEN, MALFORMED_TOKEN, UNKNOWN_SIGNING_KEY or INVALID_SESSION
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := requestutil.RefreshToken(request)
	if refreshToken == "" {
		respond.Error(writer, request, apperr.MalformedToken())
		return
	}

	result, err := handler.authService.Refresh(request.Context(), requestutil.AccessToken(request), refreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, result, MessageRefreshed)
}

// logout drops the caller's refresh session and clears the token cookies.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), PrincipalRef{Kind: Kind(claims.Kind), ID: claims.Subject}); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearTokenCookies(writer)
	respond.Text(writer, MessageLoggedOut)
}

/*
deleteAccount removes the caller's account after a password check.

DELETE /api/v1/users/me
*/
func (handler *Handler) deleteAccount(writer http.ResponseWriter, request *http.Request) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input deleteAccountRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.DeleteAccount(request.Context(), subject, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearTokenCookies(writer)
	respond.Text(writer, MessageAccountDeleted)
}

func (handler *Handler) findUsername(kind Kind) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		var input findUsernameRequest
		if err := requestutil.DecodeJSON(request, &input); err != nil {
			respond.Error(writer, request, err)
			return
		}

		username, err := handler.authService.FindUsername(request.Context(), kind, input.Email)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, usernameResponse{Username: username})
	}
}

func (handler *Handler) resetPassword(kind Kind) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		var input resetPasswordRequest
		if err := requestutil.DecodeJSON(request, &input); err != nil {
			respond.Error(writer, request, err)
			return
		}

		temporary, err := handler.authService.ResetPassword(request.Context(), kind, input.Username, input.Email)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, temporaryPasswordResponse{Message: MessagePasswordReset, TemporaryPassword: temporary})
	}
}

// # Social Login

// socialRedirect stores a CSRF state in a short-lived cookie and redirects to the provider.
func (handler *Handler) socialRedirect(writer http.ResponseWriter, request *http.Request) {
	state, err := sec.GenerateSecureToken(stateBytes)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.OAuthStateCookieName,
		Value:    state,
		Path:     constants.TokenCookiePath,
		MaxAge:   int(constants.OAuthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   handler.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(writer, request, handler.config.Social.AuthCodeURL(state), http.StatusFound)
}

/*
socialCallback completes a social login.

GET /api/v1/users/social/callback?state=...&code=...

Response:
  - 200: tokenResponse
  - 401: State mismatch or rejected code
*/
func (handler *Handler) socialCallback(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.OAuthStateCookieName)
	state := request.URL.Query().Get("state")
	if err != nil || state == "" || !sec.ConstantTimeEqual(cookie.Value, state) {
		respond.Error(writer, request, apperr.Unauthorized("Social login state does not match"))
		return
	}

	// The state is single-use.
	http.SetCookie(writer, expiredCookie(constants.OAuthStateCookieName, handler.config.SecureCookies))

	identity, err := handler.config.Social.Identify(request.Context(), request.URL.Query().Get("code"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.SocialLogin(request.Context(), identity)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, result, MessageLoggedIn)
}

// # Token Transport

// writeSession surfaces the token pair as headers, cookies and body.
func (handler *Handler) writeSession(writer http.ResponseWriter, result *LoginResult, message string) {
	access := url.QueryEscape(result.Tokens.AccessToken)
	refresh := url.QueryEscape(result.Tokens.RefreshToken)

	writer.Header().Set(constants.HeaderAuthorization, access)
	writer.Header().Set(constants.HeaderRefreshToken, refresh)

	http.SetCookie(writer, handler.tokenCookie(constants.AccessTokenCookieName, access, handler.config.AccessTTL))
	http.SetCookie(writer, handler.tokenCookie(constants.RefreshTokenCookieName, refresh, handler.config.RefreshTTL))

	respond.OK(writer, tokenResponse{
		Message:      message,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		Username:     result.Principal.Name(),
		Role:         string(result.Principal.CurrentRole()),
	})
}

func (handler *Handler) tokenCookie(name, value string, timeToLive time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     constants.TokenCookiePath,
		MaxAge:   int(timeToLive.Seconds()),
		HttpOnly: true,
		Secure:   handler.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (handler *Handler) clearTokenCookies(writer http.ResponseWriter) {
	http.SetCookie(writer, expiredCookie(constants.AccessTokenCookieName, handler.config.SecureCookies))
	http.SetCookie(writer, expiredCookie(constants.RefreshTokenCookieName, handler.config.SecureCookies))
}

func expiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     constants.TokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
