// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workgraph

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
)

// retryAfterSeconds is sent with 503 responses for load timeouts.
const retryAfterSeconds = "5"

// Handlers contains the HTTP handlers for the workgraph API.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// HandleHealth handles GET /v1/workgraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	cfg := h.svc.Resolver().Config()
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		Strategy: string(cfg.Strategy),
		Policy:   string(cfg.Policy),
	})
}

// HandleWorkable handles GET /v1/workgraph/workable.
//
// Description:
//
//	Resolves the set of actions that can be worked on now, most recently
//	updated first.
//
// Query Parameters:
//
//	limit - Optional cap, 0..10000. 0 means uncapped. Absent means the
//	        configured default.
//	strategy - Optional "staged" or "pushdown".
//
// Response:
//
//	200 OK: WorkableResponse
//	400 Bad Request: Invalid query parameters or unavailable strategy
//	503 Service Unavailable: Load timeout, retry later
//	500 Internal Server Error: Store failure
func (h *Handlers) HandleWorkable(c *gin.Context) {
	logger := h.requestLogger(c, "HandleWorkable")

	var q WorkableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	strategy, ok := h.strategy(c, q.Strategy)
	if !ok {
		return
	}
	limit := h.svc.DefaultLimit()
	if q.Limit != nil {
		limit = *q.Limit
	}

	start := time.Now()
	actions, err := h.svc.Workable(c.Request.Context(), strategy, limit)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, WorkableResponse{
		Actions:    actions,
		Count:      len(actions),
		Strategy:   string(strategy),
		Limit:      limit,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// HandleNext handles GET /v1/workgraph/next.
//
// Response:
//
//	200 OK: NextResponse with Action set, or AllDone when nothing is workable
//	400 Bad Request: Invalid strategy
//	503 Service Unavailable: Load timeout, retry later
//	500 Internal Server Error: Store failure
func (h *Handlers) HandleNext(c *gin.Context) {
	logger := h.requestLogger(c, "HandleNext")

	var q NextQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	strategy, ok := h.strategy(c, q.Strategy)
	if !ok {
		return
	}

	next, err := h.svc.Next(c.Request.Context(), strategy)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	if next == nil {
		c.JSON(http.StatusOK, NextResponse{AllDone: true})
		return
	}
	c.JSON(http.StatusOK, NextResponse{Action: next})
}

// strategy resolves the strategy parameter, falling back to the resolver's
// configured strategy. Writes a 400 and returns false on bad input.
func (h *Handlers) strategy(c *gin.Context, raw string) (resolver.Strategy, bool) {
	if raw == "" {
		return h.svc.Resolver().Config().Strategy, true
	}
	s, err := resolver.ParseStrategy(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_STRATEGY",
		})
		return "", false
	}
	return s, true
}

func (h *Handlers) writeError(c *gin.Context, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "RESOLVE_FAILED"

	switch {
	case resolver.IsRetryable(err):
		statusCode = http.StatusServiceUnavailable
		errCode = "LOAD_TIMEOUT"
		c.Header("Retry-After", retryAfterSeconds)
	case errors.Is(err, resolver.ErrNoQuerier):
		statusCode = http.StatusBadRequest
		errCode = "STRATEGY_UNAVAILABLE"
	case errors.Is(err, resolver.ErrUnknownStrategy):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_STRATEGY"
	}

	logger.Error("Resolution failed", "error", err, "status", statusCode)
	c.JSON(statusCode, ErrorResponse{
		Error: err.Error(),
		Code:  errCode,
	})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With("request_id", requestID(c), "handler", handler)
}
