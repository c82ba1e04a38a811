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
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func act(id string, minutes int) action.Action {
	return action.Action{
		ID:        action.ID(id),
		Title:     id,
		Version:   1,
		CreatedAt: base,
		UpdatedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func dep(src, dst string) action.Edge {
	return action.Edge{Src: action.ID(src), Dst: action.ID(dst), Kind: action.KindDependency}
}

func comp(parent, child string) action.Edge {
	return action.Edge{Src: action.ID(parent), Dst: action.ID(child), Kind: action.KindComposition}
}

func ids(actions []action.Action) []action.ID {
	out := make([]action.ID, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}

// statusOf marks every candidate incomplete and every listed id done.
func statusOf(idx *Index, done ...string) StatusMap {
	m := StatusMap{}
	for _, c := range idx.Candidates {
		m[c.ID] = false
	}
	for _, d := range done {
		m[action.ID(d)] = true
	}
	return m
}

func TestBuild_ClassifiesEdges(t *testing.T) {
	incomplete := []action.Action{act("a", 0), act("b", 0), act("p", 0)}
	edges := []action.Edge{dep("a", "b"), comp("p", "a")}

	t.Run("legacy keeps composition separate", func(t *testing.T) {
		idx := Build(action.PolicyLegacy, incomplete, edges)
		assert.Equal(t, []action.ID{"a"}, idx.DependenciesOf["b"])
		assert.Equal(t, []action.ID{"a"}, idx.ChildrenOf["p"])
		assert.Equal(t, []action.ID{"p"}, idx.ParentsOf["a"])
		assert.Empty(t, idx.DependenciesOf["p"])
		assert.Equal(t, Stats{Candidates: 3, DependencyEdges: 1, CompositionEdges: 1}, idx.Stats())
	})

	t.Run("consolidated folds composition into dependencies", func(t *testing.T) {
		idx := Build(action.PolicyConsolidated, incomplete, edges)
		assert.Equal(t, []action.ID{"a"}, idx.DependenciesOf["p"])
		assert.Nil(t, idx.ChildrenOf)
		assert.Nil(t, idx.ParentsOf)
	})

	t.Run("batches may be split arbitrarily", func(t *testing.T) {
		idx := Build(action.PolicyLegacy, incomplete, edges[:1], edges[1:], nil)
		assert.Equal(t, []action.ID{"a"}, idx.ChildrenOf["p"])
	})
}

func TestReferencedIDs_SortedAndUnique(t *testing.T) {
	idx := Build(action.PolicyLegacy, nil, []action.Edge{
		dep("z", "x"), dep("z", "y"), dep("m", "x"), comp("x", "c"),
	})
	assert.Equal(t, []action.ID{"c", "m", "z"}, idx.ReferencedIDs())
}

func TestEvaluate_NoDependencyLeafIsWorkable(t *testing.T) {
	idx := Build(action.PolicyConsolidated, []action.Action{act("leaf", 0)})
	got := idx.Evaluate(statusOf(idx), 10)
	assert.Equal(t, []action.ID{"leaf"}, ids(got))
}

func TestEvaluate_BlockedByIncompletePrerequisite(t *testing.T) {
	incomplete := []action.Action{act("a", 0), act("b", 0)}
	idx := Build(action.PolicyConsolidated, incomplete, []action.Edge{dep("a", "b")})

	got := idx.Evaluate(statusOf(idx), 0)
	assert.Equal(t, []action.ID{"a"}, ids(got))

	// Once a is done it leaves the incomplete batch and b is unblocked.
	idx = Build(action.PolicyConsolidated, incomplete[1:], []action.Edge{dep("a", "b")})
	got = idx.Evaluate(statusOf(idx, "a"), 0)
	assert.Equal(t, []action.ID{"b"}, ids(got))
}

func TestEvaluate_ContainerBlockedByIncompleteChild(t *testing.T) {
	for _, policy := range []action.Policy{action.PolicyLegacy, action.PolicyConsolidated} {
		t.Run(string(policy), func(t *testing.T) {
			incomplete := []action.Action{act("parent", 0), act("c1", 0), act("c2", 0)}
			edges := []action.Edge{comp("parent", "c1"), comp("parent", "c2")}

			idx := Build(policy, incomplete, edges)
			assert.ElementsMatch(t, []action.ID{"c1", "c2"}, ids(idx.Evaluate(statusOf(idx), 0)))

			idx = Build(policy, incomplete[:2], edges)
			assert.ElementsMatch(t, []action.ID{"c1"}, ids(idx.Evaluate(statusOf(idx, "c2"), 0)))

			idx = Build(policy, incomplete[:1], edges)
			assert.Equal(t, []action.ID{"parent"}, ids(idx.Evaluate(statusOf(idx, "c1", "c2"), 0)))
		})
	}
}

func TestEvaluate_LegacyContainerBlockedDespiteSatisfiedDeps(t *testing.T) {
	incomplete := []action.Action{act("parent", 0), act("child", 0)}
	edges := []action.Edge{comp("parent", "child"), dep("done-dep", "parent")}

	idx := Build(action.PolicyLegacy, incomplete, edges)
	got := idx.Evaluate(statusOf(idx, "done-dep"), 0)
	assert.Equal(t, []action.ID{"child"}, ids(got))
}

func TestEvaluate_CycleStarves(t *testing.T) {
	incomplete := []action.Action{act("a", 0), act("b", 0), act("c", 0), act("free", 0)}
	edges := []action.Edge{dep("b", "a"), dep("c", "b"), dep("a", "c")}
	idx := Build(action.PolicyConsolidated, incomplete, edges)

	for _, limit := range []int{0, 1, 2, 3, 4, 100} {
		got := idx.Evaluate(statusOf(idx), limit)
		assert.Equal(t, []action.ID{"free"}, ids(got), "limit %d", limit)
	}
}

func TestEvaluate_AbsentReferenceDoesNotBlock(t *testing.T) {
	idx := Build(action.PolicyLegacy, []action.Action{act("x", 0)},
		[]action.Edge{dep("ghost", "x"), comp("x", "phantom")})

	got := idx.Evaluate(StatusMap{}, 0)
	assert.Equal(t, []action.ID{"x"}, ids(got))
}

func TestEvaluate_CapRespectedAndDeterministic(t *testing.T) {
	var incomplete []action.Action
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		incomplete = append(incomplete, act(id, 0))
	}
	idx := Build(action.PolicyConsolidated, incomplete)

	first := idx.Evaluate(statusOf(idx), 3)
	second := idx.Evaluate(statusOf(idx), 3)
	require.Len(t, first, 3)
	assert.Equal(t, []action.ID{"a", "b", "c"}, ids(first))
	assert.Equal(t, ids(first), ids(second))
	assert.Len(t, idx.Evaluate(statusOf(idx), 0), 5)
	assert.Len(t, idx.Evaluate(statusOf(idx), -1), 5)
}

func TestEvaluate_SkipsDoneCandidates(t *testing.T) {
	a := act("a", 0)
	a.Done = true
	idx := Build(action.PolicyConsolidated, []action.Action{a, act("b", 0)})
	assert.Equal(t, []action.ID{"b"}, ids(idx.Evaluate(StatusMap{}, 0)))
}

func TestSortByRecency(t *testing.T) {
	actions := []action.Action{act("b", 1), act("a", 1), act("c", 5), act("d", 0)}
	SortByRecency(actions)
	assert.Equal(t, []action.ID{"c", "a", "b", "d"}, ids(actions))
}

func TestSelectNext(t *testing.T) {
	assert.Nil(t, SelectNext(nil))

	workable := []action.Action{act("old", 0), act("new", 10), act("tie", 10)}
	next := SelectNext(workable)
	require.NotNil(t, next)
	assert.Equal(t, action.ID("new"), next.ID)

	// Input order is untouched.
	assert.Equal(t, []action.ID{"old", "new", "tie"}, ids(workable))
}

func TestEvaluate_ScalesLinearly(t *testing.T) {
	const n = 20000
	incomplete := make([]action.Action, 0, n)
	edges := make([]action.Edge, 0, 2*n)
	for i := 0; i < n; i++ {
		incomplete = append(incomplete, act(idFor(i), 0))
		if i > 0 {
			edges = append(edges, dep(idFor(i-1), idFor(i)))
		}
		if i%10 == 5 && i+1 < n {
			edges = append(edges, comp(idFor(i), idFor(i+1)))
		}
	}

	start := time.Now()
	idx := Build(action.PolicyLegacy, incomplete, edges)
	got := idx.Evaluate(statusOf(idx), 0)
	elapsed := time.Since(start)

	// Only the head of the chain is free.
	assert.Equal(t, []action.ID{action.ID(idFor(0))}, ids(got))
	assert.Less(t, elapsed, 2*time.Second)
}

func idFor(i int) string {
	return "n" + strconv.Itoa(i)
}
