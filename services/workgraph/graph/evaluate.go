// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// StatusMap is the id -> done lookup produced by one bulk status read.
//
// An id absent from the map is treated as not blocking. Only an explicit
// false entry blocks.
type StatusMap map[action.ID]bool

// NewStatusMap indexes a bulk status read.
func NewStatusMap(rows []action.DoneStatus) StatusMap {
	m := make(StatusMap, len(rows))
	for _, r := range rows {
		m[r.ID] = r.Done
	}
	return m
}

// blocks reports whether id is known to be incomplete.
func (m StatusMap) blocks(id action.ID) bool {
	done, ok := m[id]
	return ok && !done
}

// Blocked reports whether the action with the given id has an incomplete
// prerequisite or, under the legacy policy, an incomplete child.
func (idx *Index) Blocked(id action.ID, doneOf StatusMap) bool {
	for _, p := range idx.DependenciesOf[id] {
		if doneOf.blocks(p) {
			return true
		}
	}
	if idx.Policy == action.PolicyLegacy {
		for _, c := range idx.ChildrenOf[id] {
			if doneOf.blocks(c) {
				return true
			}
		}
	}
	return false
}

// Evaluate returns the workable candidates in candidate order.
//
// Description:
//
//	Walks Candidates once and keeps every incomplete action that is not
//	Blocked. Members of a dependency cycle always have an
//	incomplete prerequisite, so they never appear; no cycle handling is
//	needed. Evaluation stops as soon as limit results are collected.
//
// Inputs:
//
//	doneOf - Status lookup for every id returned by ReferencedIDs.
//	limit - Maximum number of results. Zero or negative means uncapped.
//
// Outputs:
//
//	[]action.Action - Workable actions. Empty, never nil.
func (idx *Index) Evaluate(doneOf StatusMap, limit int) []action.Action {
	capHint := len(idx.Candidates)
	if limit > 0 && limit < capHint {
		capHint = limit
	}
	out := make([]action.Action, 0, capHint)

	for _, c := range idx.Candidates {
		if limit > 0 && len(out) >= limit {
			break
		}
		if c.Done {
			continue
		}
		if idx.Blocked(c.ID, doneOf) {
			continue
		}
		out = append(out, c)
	}
	return out
}
