// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr is the error vocabulary of the identity core.

An [AppError] pairs a machine-readable code with the HTTP status and the
client-safe message the API answers with. Each kind has a sentinel
([ErrNotFound], [ErrDuplicateRequest], [ErrNotTrainer], ...) and
[AppError.Is] compares codes, so

	errors.Is(err, apperr.ErrNotFound)

holds for "User not found" and "Promotion request not found" alike, through
any number of fmt.Errorf("...: %w") wraps.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error the API can render. Cause stays server side.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"error"`
	HTTPStatus int          `json:"-"`
	Cause      error        `json:"-"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError names one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any [*AppError] with the same Code.
func (e *AppError) Is(target error) bool {
	var other *AppError
	return errors.As(target, &other) && other.Code == e.Code
}

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// # Codes

const (
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"

	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeDuplicateRequest   = "DUPLICATE_REQUEST"
	CodeNotTrainer         = "NOT_TRAINER"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeEmptyPage          = "EMPTY_PAGE"

	CodeExpiredToken      = "EXPIRED_TOKEN"
	CodeMalformedToken    = "MALFORMED_TOKEN"
	CodeUnknownSigningKey = "UNKNOWN_SIGNING_KEY"
	CodeInvalidSession    = "INVALID_SESSION"
)

// # Sentinels
//
// Compare with errors.Is and never mutate them. The constructors below return
// fresh values with a specific message.

var (
	ErrNotFound           = NotFound("Resource")
	ErrConflict           = Conflict("Resource already exists")
	ErrForbidden          = Forbidden("Insufficient permissions")
	ErrInvalidCredentials = InvalidCredentials()
	ErrDuplicateRequest   = DuplicateRequest("A request is already pending")
	ErrNotTrainer         = NotTrainer()
	ErrIllegalTransition  = IllegalTransition("Role transition is not allowed")
	ErrExpiredToken       = ExpiredToken()
	ErrMalformedToken     = MalformedToken()
	ErrUnknownSigningKey  = UnknownSigningKey()
	ErrInvalidSession     = InvalidSession()
	ErrEmptyPage          = EmptyPage()
)

// # Request Errors

// NotFound answers 404 "<resource> not found", e.g. NotFound("Promotion request").
func NotFound(resource string) *AppError {
	return newError(http.StatusNotFound, CodeNotFound, resource+" not found")
}

func Unauthorized(msg string) *AppError {
	return newError(http.StatusUnauthorized, CodeUnauthorized, msg)
}

func Forbidden(msg string) *AppError {
	return newError(http.StatusForbidden, CodeForbidden, msg)
}

// Conflict covers unique violations: a taken username or email, a repeated like.
func Conflict(msg string) *AppError {
	return newError(http.StatusConflict, CodeConflict, msg)
}

func ValidationError(msg string, details ...FieldError) *AppError {
	err := newError(http.StatusBadRequest, CodeValidation, msg)
	err.Details = details
	return err
}

func RateLimited(retryAfterSeconds int) *AppError {
	return newError(http.StatusTooManyRequests, CodeRateLimited,
		fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds))
}

// EmptyPage answers 404 for a page with no items. Callers paging to the end stop on it.
func EmptyPage() *AppError {
	return newError(http.StatusNotFound, CodeEmptyPage, "Page does not exist")
}

// # Membership Errors

// InvalidCredentials hides whether the username or the password was wrong.
func InvalidCredentials() *AppError {
	return newError(http.StatusUnauthorized, CodeInvalidCredentials, "Username or password does not match")
}

// DuplicateRequest rejects a second pending promotion request.
func DuplicateRequest(msg string) *AppError {
	return newError(http.StatusConflict, CodeDuplicateRequest, msg)
}

// NotTrainer rejects trainer-only operations on members of any other role.
func NotTrainer() *AppError {
	return newError(http.StatusBadRequest, CodeNotTrainer, "User is not a trainer")
}

// IllegalTransition rejects a role change the role state machine forbids.
func IllegalTransition(msg string) *AppError {
	return newError(http.StatusConflict, CodeIllegalTransition, msg)
}

// # Token Errors
//
// All answer 401. The code tells the client whether to renew or log in again.

func ExpiredToken() *AppError {
	return newError(http.StatusUnauthorized, CodeExpiredToken, "Token has expired")
}

func MalformedToken() *AppError {
	return newError(http.StatusUnauthorized, CodeMalformedToken, "Token is malformed or its signature is invalid")
}

func UnknownSigningKey() *AppError {
	return newError(http.StatusUnauthorized, CodeUnknownSigningKey, "Token was signed with an unknown key")
}

// InvalidSession means the refresh token has no live session: logged out,
// already rotated, or the account was removed.
func InvalidSession() *AppError {
	return newError(http.StatusUnauthorized, CodeInvalidSession, "Refresh session is invalid or has been revoked")
}

// # Server Errors

// Internal hides cause from the client; respond logs it.
func Internal(cause error) *AppError {
	err := newError(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred")
	err.Cause = cause
	return err
}

// # Helpers

func IsAppError(err error) bool {
	return As(err) != nil
}

// As returns the first [*AppError] in err's chain, or nil.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
