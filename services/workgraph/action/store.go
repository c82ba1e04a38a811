// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package action

import (
	"context"
	"fmt"
	"strings"
)

// Policy selects how composition edges constrain workability.
type Policy string

const (
	// PolicyConsolidated folds composition into the dependency index: a
	// container depends on each of its children. This is the default.
	PolicyConsolidated Policy = "consolidated"

	// PolicyLegacy evaluates composition and dependency as two separate
	// constraints.
	PolicyLegacy Policy = "legacy"
)

// ParsePolicy converts configuration input into a Policy. Empty input
// selects PolicyConsolidated.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyConsolidated):
		return PolicyConsolidated, nil
	case string(PolicyLegacy):
		return PolicyLegacy, nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}

// Reader is the bulk read surface of the relation store.
//
// Description:
//
//	Each method is one store round-trip. Implementations must return typed
//	records and must not page internally in a way that observes more than
//	one statement per call where the backend offers a single-statement path.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Reader interface {
	// LoadIncomplete returns every action with Done == false, ordered by
	// UpdatedAt descending then ID ascending.
	LoadIncomplete(ctx context.Context) ([]Action, error)

	// LoadEdges returns every edge of the given kind. When touching is
	// non-nil only edges with at least one endpoint in touching are
	// returned; a nil slice means no filter.
	LoadEdges(ctx context.Context, kind EdgeKind, touching []ID) ([]Edge, error)

	// LoadDoneStatus returns the completion flag for each id that exists.
	// Unknown ids are omitted from the result, never reported as errors.
	LoadDoneStatus(ctx context.Context, ids []ID) ([]DoneStatus, error)
}

// WorkableQuery parameterises a single-statement workability query.
type WorkableQuery struct {
	Policy Policy

	// Limit caps the result. Zero or negative means uncapped.
	Limit int
}

// AggregateQuerier evaluates the workability predicate inside the store as
// one atomic statement.
//
// The result must equal what the staged strategy computes from the same
// snapshot, ordered by UpdatedAt descending then ID ascending.
type AggregateQuerier interface {
	QueryWorkable(ctx context.Context, q WorkableQuery) ([]Action, error)
}

// Writer is the producer side of the store. The workability core never
// calls it; editing flows, fixtures and the CLI do.
type Writer interface {
	// PutAction inserts or replaces an action. Zero timestamps are filled
	// with the current time and a zero Version becomes 1.
	PutAction(ctx context.Context, a Action) error

	// GetAction returns the action or ErrNotFound.
	GetAction(ctx context.Context, id ID) (Action, error)

	// SetDone toggles completion, bumping Version and UpdatedAt.
	SetDone(ctx context.Context, id ID, done bool) (Action, error)

	// PutEdge records an edge. Existing edges are left untouched.
	PutEdge(ctx context.Context, e Edge) error

	// RemoveEdge deletes an edge. Removing a missing edge is not an error.
	RemoveEdge(ctx context.Context, e Edge) error
}
