// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the in-memory half of workability resolution: edge
// classification, the adjacency indices built from bulk reads, and the
// predicate evaluated over them.
//
// Nothing in this package performs I/O. Store adapters that evaluate the
// predicate inside a single transaction reuse it, which keeps both
// resolution strategies on one definition of "workable".
//
// # Cost
//
// Build is O(actions + edges). ReferencedIDs is O(edges log edges) because
// the id set is sorted for stable store queries. Evaluate is
// O(candidates + edges) and stops early at the limit.
package graph

import (
	"sort"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// Index is the classified, in-memory view of one bulk load.
//
// Thread Safety: Read-only after Build; safe for concurrent readers.
type Index struct {
	// Policy is the composition policy the index was built for.
	Policy action.Policy

	// Candidates is the incomplete batch in load order. Evaluation walks
	// it front to back.
	Candidates []action.Action

	// ActionsByID maps candidate ids to their position in Candidates.
	ActionsByID map[action.ID]int

	// DependenciesOf maps an action to its prerequisites (dst -> [src]).
	// Under the consolidated policy it also holds folded composition edges.
	DependenciesOf map[action.ID][]action.ID

	// ChildrenOf maps a container to its children (src -> [dst]).
	// Populated under the legacy policy only.
	ChildrenOf map[action.ID][]action.ID

	// ParentsOf is the reverse of ChildrenOf (child -> [parents]).
	// Populated under the legacy policy only.
	ParentsOf map[action.ID][]action.ID

	dependencyEdges  int
	compositionEdges int
}

// Build classifies edges by kind and builds the adjacency indices.
//
// Description:
//
//	Edges are classified by their Kind field, not by which read returned
//	them, so callers may pass the edge batches in any grouping. Under
//	PolicyConsolidated a composition edge (P, C) is recorded as "P depends
//	on C"; under PolicyLegacy it populates ChildrenOf and ParentsOf.
//	Edges with an unknown kind are ignored.
//
// Inputs:
//
//	policy - Composition policy.
//	incomplete - The incomplete batch in evaluation order.
//	edgeBatches - Any number of edge slices.
//
// Outputs:
//
//	*Index - The populated index. Never nil.
func Build(policy action.Policy, incomplete []action.Action, edgeBatches ...[]action.Edge) *Index {
	idx := &Index{
		Policy:         policy,
		Candidates:     incomplete,
		ActionsByID:    make(map[action.ID]int, len(incomplete)),
		DependenciesOf: make(map[action.ID][]action.ID),
	}
	if policy == action.PolicyLegacy {
		idx.ChildrenOf = make(map[action.ID][]action.ID)
		idx.ParentsOf = make(map[action.ID][]action.ID)
	}

	for i, a := range incomplete {
		idx.ActionsByID[a.ID] = i
	}

	for _, batch := range edgeBatches {
		for _, e := range batch {
			idx.add(e)
		}
	}
	return idx
}

func (idx *Index) add(e action.Edge) {
	switch e.Kind {
	case action.KindDependency:
		idx.DependenciesOf[e.Dst] = append(idx.DependenciesOf[e.Dst], e.Src)
		idx.dependencyEdges++
	case action.KindComposition:
		idx.compositionEdges++
		if idx.Policy == action.PolicyLegacy {
			idx.ChildrenOf[e.Src] = append(idx.ChildrenOf[e.Src], e.Dst)
			idx.ParentsOf[e.Dst] = append(idx.ParentsOf[e.Dst], e.Src)
			return
		}
		idx.DependenciesOf[e.Src] = append(idx.DependenciesOf[e.Src], e.Dst)
	}
}

// ReferencedIDs returns every id referenced as a prerequisite or, under the
// legacy policy, as a child. The result is deduplicated and sorted.
func (idx *Index) ReferencedIDs() []action.ID {
	seen := make(map[action.ID]struct{})
	collect := func(m map[action.ID][]action.ID) {
		for _, ids := range m {
			for _, id := range ids {
				seen[id] = struct{}{}
			}
		}
	}
	collect(idx.DependenciesOf)
	collect(idx.ChildrenOf)

	out := make([]action.ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats summarises the index for logs and span attributes.
type Stats struct {
	Candidates       int
	DependencyEdges  int
	CompositionEdges int
}

// Stats returns counts gathered during Build.
func (idx *Index) Stats() Stats {
	return Stats{
		Candidates:       len(idx.Candidates),
		DependencyEdges:  idx.dependencyEdges,
		CompositionEdges: idx.compositionEdges,
	}
}
