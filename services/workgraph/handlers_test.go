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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/fixture"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badger"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badgerstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func seededStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	s, err := badgerstore.Open(badger.InMemoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	g, err := fixture.LoadFile("fixture/testdata/release.yaml")
	require.NoError(t, err)
	_, err = g.Seed(context.Background(), s)
	require.NoError(t, err)
	return s
}

func setupTestRouter(t *testing.T, reader action.Reader, querier action.AggregateQuerier, cfg resolver.Config, opts RouterOptions) *gin.Engine {
	t.Helper()
	r, err := resolver.New(reader, querier, cfg, nil)
	require.NoError(t, err)
	svc, err := NewService(r, 50, nil)
	require.NoError(t, err)
	return NewRouter(NewHandlers(svc, nil), opts)
}

func get(router *gin.Engine, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func workableIDs(t *testing.T, w *httptest.ResponseRecorder) []action.ID {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp WorkableResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, len(resp.Actions), resp.Count)
	out := make([]action.ID, len(resp.Actions))
	for i, a := range resp.Actions {
		out[i] = a.ID
	}
	return out
}

// gateReader blocks every LoadIncomplete until release is closed or the
// context ends.
type gateReader struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *gateReader) LoadIncomplete(ctx context.Context) ([]action.Action, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gateReader) LoadEdges(context.Context, action.EdgeKind, []action.ID) ([]action.Edge, error) {
	return nil, nil
}

func (g *gateReader) LoadDoneStatus(context.Context, []action.ID) ([]action.DoneStatus, error) {
	return nil, nil
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, 10, nil)
	assert.ErrorIs(t, err, ErrNilResolver)

	r, err := resolver.New(&gateReader{}, nil, resolver.DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = NewService(r, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestHandlers_HandleHealth(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})

	w := get(router, "/v1/workgraph/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, "staged", resp.Strategy)
	assert.Equal(t, "consolidated", resp.Policy)
}

func TestHandlers_HandleWorkable(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})

	t.Run("default limit", func(t *testing.T) {
		assert.Equal(t, []action.ID{"write-docs", "fix-bugs"}, workableIDs(t, get(router, "/v1/workgraph/workable")))
	})

	t.Run("pushdown agrees", func(t *testing.T) {
		assert.Equal(t, []action.ID{"write-docs", "fix-bugs"},
			workableIDs(t, get(router, "/v1/workgraph/workable?strategy=pushdown")))
	})

	t.Run("limit caps", func(t *testing.T) {
		w := get(router, "/v1/workgraph/workable?limit=1")
		assert.Equal(t, []action.ID{"write-docs"}, workableIDs(t, w))
	})

	t.Run("zero is uncapped", func(t *testing.T) {
		assert.Len(t, workableIDs(t, get(router, "/v1/workgraph/workable?limit=0")), 2)
	})
}

func TestHandlers_HandleWorkable_InvalidQuery(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})

	for _, q := range []string{"limit=-1", "limit=abc", "limit=10001", "strategy=magic"} {
		t.Run(q, func(t *testing.T) {
			w := get(router, "/v1/workgraph/workable?"+q)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.Code)
		})
	}
}

func TestHandlers_HandleWorkable_PushdownUnavailable(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, nil, resolver.DefaultConfig(), RouterOptions{})

	w := get(router, "/v1/workgraph/workable?strategy=pushdown")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "STRATEGY_UNAVAILABLE", resp.Code)
}

func TestHandlers_HandleWorkable_TimeoutIsRetryable(t *testing.T) {
	gate := &gateReader{release: make(chan struct{})}
	defer close(gate.release)

	cfg := resolver.DefaultConfig()
	cfg.LoadTimeout = 20 * time.Millisecond
	router := setupTestRouter(t, gate, nil, cfg, RouterOptions{})

	w := get(router, "/v1/workgraph/workable")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LOAD_TIMEOUT", resp.Code)
}

func TestHandlers_HandleNext(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})

	w := get(router, "/v1/workgraph/next")
	require.Equal(t, http.StatusOK, w.Code)
	var resp NextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Action)
	assert.Equal(t, action.ID("write-docs"), resp.Action.ID)
	assert.False(t, resp.AllDone)
}

func TestHandlers_HandleNext_AllDone(t *testing.T) {
	s, err := badgerstore.Open(badger.InMemoryConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.PutAction(ctx, action.Action{ID: "only", Title: "only", Done: true}))
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})

	w := get(router, "/v1/workgraph/next")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"all_done":true}`, w.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})

	w := get(router, "/v1/workgraph/health", "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = get(router, "/v1/workgraph/health")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRateLimitMiddleware(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{RateLimit: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, get(router, "/v1/workgraph/health").Code)
	assert.Equal(t, http.StatusOK, get(router, "/v1/workgraph/health").Code)

	w := get(router, "/v1/workgraph/health")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestNewRouter_Metrics(t *testing.T) {
	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{Metrics: true})

	// Resolve once so the resolver series exist.
	require.Equal(t, http.StatusOK, get(router, "/v1/workgraph/workable").Code)

	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "workgraph_resolver_resolutions_total")

	assert.Equal(t, http.StatusNotFound,
		get(setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{}), "/metrics").Code)
}

func TestService_CoalescesConcurrentRequests(t *testing.T) {
	gate := &gateReader{release: make(chan struct{})}
	r, err := resolver.New(gate, nil, resolver.DefaultConfig(), nil)
	require.NoError(t, err)
	svc, err := NewService(r, 10, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Workable(context.Background(), resolver.StrategyStaged, 10)
		}(i)
	}

	require.Eventually(t, func() bool { return gate.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), gate.calls.Load())
}

func TestService_CallerCancellation(t *testing.T) {
	gate := &gateReader{release: make(chan struct{})}
	defer close(gate.release)

	r, err := resolver.New(gate, nil, resolver.DefaultConfig(), nil)
	require.NoError(t, err)
	svc, err := NewService(r, 10, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Next(ctx, resolver.StrategyStaged)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRouter_TracesRequests(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := seededStore(t)
	router := setupTestRouter(t, s, s, resolver.DefaultConfig(), RouterOptions{})
	require.Equal(t, http.StatusOK, get(router, "/v1/workgraph/workable").Code)

	var server, resolve *tracetest.SpanStub
	spans := exporter.GetSpans()
	for i := range spans {
		switch {
		case spans[i].SpanKind == trace.SpanKindServer:
			server = &spans[i]
		case spans[i].Name == "resolver.Workable":
			resolve = &spans[i]
		}
	}
	require.NotNil(t, server, "server span")
	require.NotNil(t, resolve, "resolver span")
	assert.Equal(t, server.SpanContext.TraceID(), resolve.SpanContext.TraceID())
}
