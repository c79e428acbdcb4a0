// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/respond"
)

// Each dependency gets this long to answer a readiness ping.
const readinessTimeout = 2 * time.Second

// HealthDependencies lists the backends /ready pings.
// A nil check means the backend is not configured, e.g. an in-memory run.
type HealthDependencies struct {
	CheckDatabase func(context.Context) error
	CheckCache    func(context.Context) error
	CheckBroker   func(context.Context) error
}

type namedCheck struct {
	name  string
	check func(context.Context) error
}

func (deps HealthDependencies) configured() []namedCheck {
	all := []namedCheck{
		{"postgres", deps.CheckDatabase},
		{"redis", deps.CheckCache},
		{"amqp", deps.CheckBroker},
	}

	checks := all[:0]
	for _, c := range all {
		if c.check != nil {
			checks = append(checks, c)
		}
	}
	return checks
}

type checkResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

// NewHealthHandlers returns the /health and /ready handlers.
//
// /health only proves the process is serving. /ready answers 503 "degraded"
// when any configured backend fails its ping, listing each result.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	checks := deps.configured()

	liveness = func(writer http.ResponseWriter, _ *http.Request) {
		respond.OK(writer, map[string]string{constants.FieldStatus: "ok"})
	}

	readiness = func(writer http.ResponseWriter, request *http.Request) {
		results := make([]checkResult, 0, len(checks))
		ready := true

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
			err := c.check(ctx)
			cancel()

			result := checkResult{Name: c.name, IsOK: err == nil}
			if err != nil {
				ready = false
				result.Error = err.Error()
				logger.Error("readiness_check_failed", slog.String("dependency", c.name), slog.Any("error", err))
			}
			results = append(results, result)
		}

		if !ready {
			respond.Unavailable(writer, readinessResponse{Status: "degraded", Checks: results})
			return
		}
		respond.OK(writer, readinessResponse{Status: "ready", Checks: results})
	}

	return liveness, readiness
}
