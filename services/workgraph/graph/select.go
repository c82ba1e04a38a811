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
	"sort"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// SortByRecency orders actions by UpdatedAt descending, then ID ascending.
// This is the load order every store adapter produces.
func SortByRecency(actions []action.Action) {
	sort.Slice(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}

// SelectNext picks the action to present as "next".
//
// The most recently updated workable action wins. Ties keep their input
// order. Returns nil when workable is empty, which callers present as the
// "all done" state. The input slice is not modified.
func SelectNext(workable []action.Action) *action.Action {
	if len(workable) == 0 {
		return nil
	}
	ordered := make([]action.Action, len(workable))
	copy(ordered, workable)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UpdatedAt.After(ordered[j].UpdatedAt)
	})
	next := ordered[0]
	return &next
}
