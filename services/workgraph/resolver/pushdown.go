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

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// pushdown delegates evaluation to the store in one round-trip.
func (r *Resolver) pushdown(ctx context.Context, limit int) ([]action.Action, int, error) {
	if r.querier == nil {
		return nil, 0, ErrNoQuerier
	}

	ctx, span := tracer.Start(ctx, "resolver.QueryWorkable")
	defer span.End()

	out, err := r.querier.QueryWorkable(ctx, action.WorkableQuery{
		Policy: r.cfg.Policy,
		Limit:  limit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, 1, fmt.Errorf("query workable: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 1, err
	}
	if out == nil {
		out = []action.Action{}
	}
	span.SetAttributes(attribute.Int("workgraph.count", len(out)))
	return out, 1, nil
}
