// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/graph"
)

// staged runs the bulk-load sequence and evaluates in memory.
//
// Description:
//
//	Round-trips, in order:
//	  1. LoadIncomplete.
//	  2. LoadEdges for dependency and composition, issued concurrently.
//	  3. LoadDoneStatus for every referenced id, skipped when there are none.
//	The count is at most four regardless of graph size. Under the legacy
//	policy the edge reads are filtered to the incomplete id set; the
//	consolidated policy reads both kinds unfiltered.
//
// Outputs:
//
//	[]action.Action - Workable actions in load order.
//	int - Number of store round-trips issued.
//	error - Store or context error.
func (r *Resolver) staged(ctx context.Context, limit int) ([]action.Action, int, error) {
	trips := 0

	incomplete, err := r.loadIncomplete(ctx)
	trips++
	if err != nil {
		return nil, trips, err
	}
	if len(incomplete) == 0 {
		return []action.Action{}, trips, nil
	}

	var touching []action.ID
	if r.cfg.Policy == action.PolicyLegacy {
		touching = make([]action.ID, len(incomplete))
		for i, a := range incomplete {
			touching[i] = a.ID
		}
	}

	var deps, comps []action.Edge
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		deps, err = r.loadEdges(gctx, action.KindDependency, touching)
		return err
	})
	g.Go(func() error {
		var err error
		comps, err = r.loadEdges(gctx, action.KindComposition, touching)
		return err
	})
	err = g.Wait()
	trips += 2
	if err != nil {
		return nil, trips, err
	}

	idx := graph.Build(r.cfg.Policy, incomplete, deps, comps)
	recordIndexStats(ctx, string(r.cfg.Policy), idx.Stats())

	doneOf := graph.StatusMap{}
	if refs := idx.ReferencedIDs(); len(refs) > 0 {
		rows, err := r.loadDoneStatus(ctx, refs)
		trips++
		if err != nil {
			return nil, trips, err
		}
		doneOf = graph.NewStatusMap(rows)
	}

	// A deadline that fired during the last read must not yield a result.
	if err := ctx.Err(); err != nil {
		return nil, trips, err
	}
	return idx.Evaluate(doneOf, limit), trips, nil
}

func (r *Resolver) loadIncomplete(ctx context.Context) ([]action.Action, error) {
	ctx, span := tracer.Start(ctx, "resolver.LoadIncomplete")
	defer span.End()

	out, err := r.reader.LoadIncomplete(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load incomplete actions: %w", err)
	}
	span.SetAttributes(attribute.Int("workgraph.count", len(out)))
	return out, nil
}

func (r *Resolver) loadEdges(ctx context.Context, kind action.EdgeKind, touching []action.ID) ([]action.Edge, error) {
	ctx, span := tracer.Start(ctx, "resolver.LoadEdges",
		trace.WithAttributes(
			attribute.String("workgraph.kind", string(kind)),
			attribute.Bool("workgraph.filtered", touching != nil),
		),
	)
	defer span.End()

	out, err := r.reader.LoadEdges(ctx, kind, touching)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load %s edges: %w", kind, err)
	}
	span.SetAttributes(attribute.Int("workgraph.count", len(out)))
	return out, nil
}

func (r *Resolver) loadDoneStatus(ctx context.Context, ids []action.ID) ([]action.DoneStatus, error) {
	ctx, span := tracer.Start(ctx, "resolver.LoadDoneStatus",
		trace.WithAttributes(attribute.Int("workgraph.ids", len(ids))),
	)
	defer span.End()

	out, err := r.reader.LoadDoneStatus(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load done status: %w", err)
	}
	return out, nil
}
