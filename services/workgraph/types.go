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
	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// MaxLimit caps the limit query parameter.
const MaxLimit = 10000

// WorkableQuery holds the query parameters of GET /v1/workgraph/workable.
type WorkableQuery struct {
	// Limit caps the result size. Absent means the configured default;
	// zero means uncapped.
	Limit *int `form:"limit" binding:"omitempty,gte=0,lte=10000"`

	// Strategy overrides the configured resolution strategy.
	Strategy string `form:"strategy" binding:"omitempty,oneof=staged pushdown single single-query"`
}

// NextQuery holds the query parameters of GET /v1/workgraph/next.
type NextQuery struct {
	Strategy string `form:"strategy" binding:"omitempty,oneof=staged pushdown single single-query"`
}

// WorkableResponse is returned by GET /v1/workgraph/workable.
type WorkableResponse struct {
	// Actions are ordered most recently updated first.
	Actions []action.Action `json:"actions"`

	// Count is len(Actions).
	Count int `json:"count"`

	// Strategy is the strategy that produced the result.
	Strategy string `json:"strategy"`

	// Limit is the applied cap. Zero means uncapped.
	Limit int `json:"limit"`

	// DurationMs is the resolution time in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// NextResponse is returned by GET /v1/workgraph/next.
//
// Exactly one of Action and AllDone is set.
type NextResponse struct {
	Action  *action.Action `json:"action,omitempty"`
	AllDone bool           `json:"all_done"`
}

// HealthResponse is returned by GET /v1/workgraph/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Strategy string `json:"strategy"`
	Policy   string `json:"policy"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`
}
