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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/workgraph/services/workgraph/telemetry"
)

// tracingService names the server spans otelgin creates.
const tracingService = "workgraph-service"

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// RateLimit is requests per second across all clients. Zero disables.
	RateLimit float64

	// Burst is the limiter bucket size.
	Burst int

	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
}

// RegisterRoutes registers all workgraph routes with the router.
//
// Description:
//
//	Registers the /v1/workgraph/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	GET /v1/workgraph/health - Service health and resolver settings
//	GET /v1/workgraph/workable - Workable actions
//	GET /v1/workgraph/next - The action to work on next
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	wg := rg.Group("/workgraph")
	{
		wg.GET("/health", handlers.HandleHealth)
		wg.GET("/workable", handlers.HandleWorkable)
		wg.GET("/next", handlers.HandleNext)
	}
}

// NewRouter builds the complete engine: recovery, tracing, request ids,
// rate limiting, the /v1 API and optionally /metrics.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(tracingService),
		RequestIDMiddleware(),
	)
	if opts.Metrics {
		router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	}

	v1 := router.Group("/v1")
	v1.Use(RateLimitMiddleware(opts.RateLimit, opts.Burst))
	RegisterRoutes(v1, handlers)
	return router
}
