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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAuditLogger struct {
	events []AuditEvent
}

func (r *recordingAuditLogger) Log(_ context.Context, e AuditEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAuditLogger) Flush(context.Context) error {
	return nil
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NotNil(t, opts.AuditLogger)
	assert.IsType(t, &NopAuditLogger{}, opts.AuditLogger)
}

func TestServiceOptions_WithAudit(t *testing.T) {
	rec := &recordingAuditLogger{}
	base := DefaultOptions()
	opts := base.WithAudit(rec)

	assert.Same(t, rec, opts.AuditLogger)
	assert.IsType(t, &NopAuditLogger{}, base.AuditLogger, "original must be unchanged")
}

func TestServiceOptions_Normalize(t *testing.T) {
	opts := ServiceOptions{}.Normalize()
	assert.IsType(t, &NopAuditLogger{}, opts.AuditLogger)

	rec := &recordingAuditLogger{}
	assert.Same(t, rec, ServiceOptions{AuditLogger: rec}.Normalize().AuditLogger)
}

func TestNopAuditLogger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &NopAuditLogger{}
	assert.NoError(t, l.Log(ctx, AuditEvent{}))
	assert.NoError(t, l.Flush(ctx))
}

func TestSlogAuditLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	l := NewSlogAuditLogger(logger, slog.LevelInfo)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Log(context.Background(), AuditEvent{
		EventType:    EventActionDone,
		Timestamp:    at,
		Actor:        "cli",
		ResourceType: "action",
		ResourceID:   "write-docs",
		Outcome:      OutcomeFailure,
		Error:        errors.New("boom").Error(),
		Metadata:     map[string]any{"version": 3},
	}))
	require.NoError(t, l.Flush(context.Background()))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "audit", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, EventActionDone, rec["event_type"])
	assert.Equal(t, "write-docs", rec["resource_id"])
	assert.Equal(t, OutcomeFailure, rec["outcome"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "2025-06-01T12:00:00Z", rec["event_time"])
	assert.Equal(t, map[string]any{"version": float64(3)}, rec["metadata"])
}

func TestSlogAuditLogger_FillsTimestampAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	require.NoError(t, NewSlogAuditLogger(logger, slog.LevelInfo).Log(context.Background(), AuditEvent{EventType: EventEdgeLink}))
	assert.Empty(t, buf.String(), "info record below handler level")

	require.NoError(t, NewSlogAuditLogger(logger, slog.LevelWarn).Log(context.Background(), AuditEvent{EventType: EventEdgeLink}))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotEmpty(t, rec["event_time"])
	assert.NotContains(t, rec, "metadata")
	assert.NotContains(t, rec, "error")
}
