// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fixture

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// syntheticEpoch anchors generated timestamps so output is reproducible.
var syntheticEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Synthetic generates a deterministic random graph of n actions.
//
// Description:
//
//	The same (n, seed) always yields the same graph. Roughly a fifth of the
//	actions are done. Each action after the first may depend on an earlier
//	one and may be a child of an earlier container, so most of the graph is
//	acyclic; every fiftieth action closes a three-node dependency cycle.
//	Timestamps are spread over n minutes in shuffled order so recency and
//	id order disagree.
func Synthetic(n int, seed uint64) *Graph {
	if n <= 0 {
		return &Graph{Actions: []action.Action{}, Edges: []action.Edge{}}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	g := &Graph{
		Actions: make([]action.Action, n),
		Edges:   make([]action.Edge, 0, n*2),
	}
	minutes := rng.Perm(n)
	for i := 0; i < n; i++ {
		g.Actions[i] = action.Action{
			ID:        syntheticID(i),
			Title:     fmt.Sprintf("synthetic action %d", i),
			Done:      rng.IntN(5) == 0,
			Version:   1,
			CreatedAt: syntheticEpoch,
			UpdatedAt: syntheticEpoch.Add(time.Duration(minutes[i]) * time.Minute),
		}
	}

	seen := make(map[action.Edge]struct{})
	add := func(e action.Edge) {
		if e.Src == e.Dst {
			return
		}
		if _, dup := seen[e]; dup {
			return
		}
		seen[e] = struct{}{}
		g.Edges = append(g.Edges, e)
	}

	for i := 1; i < n; i++ {
		if rng.IntN(10) < 6 {
			add(action.Edge{Src: syntheticID(rng.IntN(i)), Dst: syntheticID(i), Kind: action.KindDependency})
		}
		if rng.IntN(10) < 2 {
			add(action.Edge{Src: syntheticID(rng.IntN(i)), Dst: syntheticID(i), Kind: action.KindComposition})
		}
		if i%50 == 49 {
			a, b, c := syntheticID(i-2), syntheticID(i-1), syntheticID(i)
			add(action.Edge{Src: a, Dst: b, Kind: action.KindDependency})
			add(action.Edge{Src: b, Dst: c, Kind: action.KindDependency})
			add(action.Edge{Src: c, Dst: a, Kind: action.KindDependency})
		}
	}
	return g
}

func syntheticID(i int) action.ID {
	return action.ID(fmt.Sprintf("syn-%05d", i))
}
