// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package respond writes every HTTP body the club API produces.

Successes are wrapped in {"data": ...}, lists add a "meta" page block and
failures become {"error", "code", "details", "request_id"}. Status codes are
chosen here from the [apperr.AppError] a service returned, so handlers never
pick one themselves.
*/
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// # Envelopes

type SuccessEnvelope[T any] struct {
	Data T `json:"data"`
}

type PaginatedEnvelope[T any] struct {
	Data []T            `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// ErrorEnvelope carries the request id so a member can quote it to support.
type ErrorEnvelope struct {
	Error     string              `json:"error"`
	Code      string              `json:"code"`
	Details   []apperr.FieldError `json:"details,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// Message is the body of operations whose only result is a status line,
// such as "Trainer registration permitted".
type Message struct {
	Message string `json:"message"`
}

// # Writers

func JSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

func OK[T any](writer http.ResponseWriter, data T) {
	JSON(writer, http.StatusOK, SuccessEnvelope[T]{Data: data})
}

func Created[T any](writer http.ResponseWriter, data T) {
	JSON(writer, http.StatusCreated, SuccessEnvelope[T]{Data: data})
}

// Unavailable answers 503 with data still in the success envelope.
// Readiness uses it to report which dependency failed.
func Unavailable[T any](writer http.ResponseWriter, data T) {
	JSON(writer, http.StatusServiceUnavailable, SuccessEnvelope[T]{Data: data})
}

// Text writes a 200 [Message].
func Text(writer http.ResponseWriter, message string) {
	OK(writer, Message{Message: message})
}

// Paginated writes one page, rendering an empty page as [] rather than null.
func Paginated[T any](writer http.ResponseWriter, data []T, metadata pagination.Meta) {
	if data == nil {
		data = []T{}
	}
	JSON(writer, http.StatusOK, PaginatedEnvelope[T]{Data: data, Meta: metadata})
}

// Page converts each item of page with view and writes the result.
func Page[S, T any](writer http.ResponseWriter, page pagination.Page[S], view func(S) T) {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, view(item))
	}
	Paginated(writer, items, page.Meta)
}

// # Errors

/*
Error writes err as an [ErrorEnvelope].

Errors that are not an [apperr.AppError] are reported as INTERNAL_ERROR and
their text never reaches the client. Every 5xx is logged with its cause.
*/
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	ctx := request.Context()
	logger := ctxutil.GetLogger(ctx)
	requestID := ctxutil.GetRequestID(ctx)

	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		appError = apperr.Internal(err)
	}

	if appError.HTTPStatus >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "api_server_error",
			slog.String("code", appError.Code),
			slog.String("method", request.Method),
			slog.String("path", request.URL.Path),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, appError.HTTPStatus, ErrorEnvelope{
		Error:     appError.Message,
		Code:      appError.Code,
		Details:   appError.Details,
		RequestID: requestID,
	})
}
