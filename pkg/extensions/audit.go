// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types, formatted "resource.verb".
const (
	EventActionCreate = "action.create"
	EventActionDone   = "action.done"
	EventActionReopen = "action.reopen"
	EventEdgeLink     = "edge.link"
	EventEdgeUnlink   = "edge.unlink"
	EventFixtureSeed  = "fixture.seed"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEvent records one write to the action store.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    EventActionDone,
//	    Actor:        "cli",
//	    ResourceType: "action",
//	    ResourceID:   "write-docs",
//	    Outcome:      OutcomeSuccess,
//	}
type AuditEvent struct {
	// EventType categorizes the event. See the Event* constants.
	EventType string

	// Timestamp is when the event occurred. Zero means now.
	Timestamp time.Time

	// Actor identifies who performed the write: "cli", "fixture", a user.
	Actor string

	// ResourceType is "action", "edge" or "fixture".
	ResourceType string

	// ResourceID is the action id, the edge rendering or the fixture path.
	ResourceID string

	// Outcome is OutcomeSuccess or OutcomeFailure.
	Outcome string

	// Error is the failure message when Outcome is OutcomeFailure.
	Error string

	// Metadata holds additional event-specific data.
	Metadata map[string]any
}

// AuditLogger records store writes.
//
// Implementations must be safe for concurrent use and should return
// quickly; the write has already happened when Log is called.
type AuditLogger interface {
	// Log records an event.
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists any buffered events. Call before exit.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Flush is a no-op.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// SlogAuditLogger writes each event as one structured log record with the
// message "audit".
//
// Thread Safety: Safe for concurrent use.
type SlogAuditLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAuditLogger writes events to logger at level. A nil logger uses
// slog.Default().
func NewSlogAuditLogger(logger *slog.Logger, level slog.Level) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger, level: level}
}

// Log writes the event.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Time("event_time", event.Timestamp),
		slog.String("actor", event.Actor),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata))
		for k, v := range event.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}
	l.logger.LogAttrs(ctx, l.level, "audit", attrs...)
	return nil
}

// Flush is a no-op; slog handlers write synchronously.
func (l *SlogAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
