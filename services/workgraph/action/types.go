// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package action defines the records exchanged with the relation store and
// the ports the workability core reads them through.
//
// Every store adapter converts its rows into these types at the boundary, so
// nothing downstream ever sees an untyped row.
package action

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID identifies an action. It is opaque to the core.
type ID string

// NewID returns a fresh random action id.
func NewID() ID {
	return ID(uuid.NewString())
}

// Validate reports whether the id can be stored.
func (id ID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrInvalidID
	}
	if strings.ContainsRune(string(id), 0) {
		return fmt.Errorf("%w: contains NUL byte", ErrInvalidID)
	}
	return nil
}

// earliestUpdate and latestUpdate bound the UpdatedAt values whose unix
// nanosecond count is non-negative and fits in an int64.
var (
	earliestUpdate = time.Unix(0, 0)
	latestUpdate   = time.Unix(0, math.MaxInt64)
)

// ValidateForStore checks what every store requires of an action after
// defaults are filled: a valid id and an UpdatedAt between 1970 and 2262.
// Recency ordering compares unix nanoseconds, so both bounds are enforced.
func ValidateForStore(a Action) error {
	if err := a.ID.Validate(); err != nil {
		return err
	}
	if a.UpdatedAt.Before(earliestUpdate) || a.UpdatedAt.After(latestUpdate) {
		return fmt.Errorf("%w: updated_at %s out of range", ErrInvalidTime, a.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Action is a unit of work.
//
// Done is a plain flag, not a latch: an action may be reopened after
// completion, so readers must never assume it only moves forward.
type Action struct {
	ID        ID        `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Done      bool      `json:"done" yaml:"done"`
	Version   int64     `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// EdgeKind tags the relation an edge expresses.
type EdgeKind string

const (
	// KindComposition marks (P, C) where P is the container and C a child.
	KindComposition EdgeKind = "composition"

	// KindDependency marks (A, B) where B depends on A: A must be done
	// before B is workable.
	KindDependency EdgeKind = "dependency"
)

// EdgeKinds lists every valid kind.
var EdgeKinds = []EdgeKind{KindComposition, KindDependency}

// Valid reports whether k is a known kind.
func (k EdgeKind) Valid() bool {
	return k == KindComposition || k == KindDependency
}

// ParseEdgeKind converts user input into an EdgeKind.
//
// "parent", "child" and "contains" are accepted as aliases for composition;
// "depends_on", "blocks" and "dep" for dependency.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "composition", "parent", "child", "contains":
		return KindComposition, nil
	case "dependency", "depends_on", "blocks", "dep":
		return KindDependency, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidEdge, s)
	}
}

// Edge is a directed relation between two actions.
type Edge struct {
	Src  ID       `json:"src" yaml:"src"`
	Dst  ID       `json:"dst" yaml:"dst"`
	Kind EdgeKind `json:"kind" yaml:"kind"`
}

// Validate checks the edge shape. It does not check that either endpoint
// exists; dangling references are tolerated by the core.
func (e Edge) Validate() error {
	if err := e.Src.Validate(); err != nil {
		return fmt.Errorf("src: %w", err)
	}
	if err := e.Dst.Validate(); err != nil {
		return fmt.Errorf("dst: %w", err)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEdge, e.Kind)
	}
	if e.Src == e.Dst {
		return ErrSelfEdge
	}
	return nil
}

// String renders the edge for logs.
func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.Src, e.Kind, e.Dst)
}

// DoneStatus is one row of a bulk status read.
type DoneStatus struct {
	ID   ID   `json:"id"`
	Done bool `json:"done"`
}

// Consolidate rewrites composition edges into the consolidated model.
//
// A composition edge (P, C) becomes the dependency edge (C, P): the parent
// depends on each of its children. Dependency edges pass through unchanged
// and duplicates produced by the rewrite are dropped.
func Consolidate(edges []Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	seen := make(map[Edge]struct{}, len(edges))
	for _, e := range edges {
		if e.Kind == KindComposition {
			e = Edge{Src: e.Dst, Dst: e.Src, Kind: KindDependency}
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
