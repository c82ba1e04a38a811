// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storetest is the conformance suite every relation store adapter
// runs from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
)

// Store is the full adapter surface under test.
type Store interface {
	action.Reader
	action.AggregateQuerier
	action.Writer
}

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) Store

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ActionRoundTrip", func(t *testing.T) { testActionRoundTrip(t, newStore(t)) })
	t.Run("PutActionRejectsBadID", func(t *testing.T) { testPutActionRejectsBadID(t, newStore(t)) })
	t.Run("PutActionRejectsOutOfRangeTime", func(t *testing.T) { testPutActionRejectsOutOfRangeTime(t, newStore(t)) })
	t.Run("SetDone", func(t *testing.T) { testSetDone(t, newStore(t)) })
	t.Run("LoadIncompleteOrder", func(t *testing.T) { testLoadIncompleteOrder(t, newStore(t)) })
	t.Run("Edges", func(t *testing.T) { testEdges(t, newStore(t)) })
	t.Run("LoadDoneStatus", func(t *testing.T) { testLoadDoneStatus(t, newStore(t)) })
	t.Run("QueryWorkable", func(t *testing.T) { testQueryWorkable(t, newStore(t)) })
	t.Run("StrategyEquivalence", func(t *testing.T) { testStrategyEquivalence(t, newStore(t)) })
	t.Run("ToggleReversibility", func(t *testing.T) { testToggleReversibility(t, newStore(t)) })
	t.Run("CycleStarvation", func(t *testing.T) { testCycleStarvation(t, newStore(t)) })
}

// =============================================================================
// Helpers
// =============================================================================

func put(t *testing.T, s Store, id string, done bool, minutes int) {
	t.Helper()
	require.NoError(t, s.PutAction(context.Background(), action.Action{
		ID:        action.ID(id),
		Title:     "title " + id,
		Done:      done,
		CreatedAt: base,
		UpdatedAt: base.Add(time.Duration(minutes) * time.Minute),
	}))
}

func link(t *testing.T, s Store, src, dst string, kind action.EdgeKind) {
	t.Helper()
	require.NoError(t, s.PutEdge(context.Background(), action.Edge{
		Src: action.ID(src), Dst: action.ID(dst), Kind: kind,
	}))
}

func ids(actions []action.Action) []action.ID {
	out := make([]action.ID, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}

func sorted(in []action.ID) []action.ID {
	out := append([]action.ID(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func edgeStrings(edges []action.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.String()
	}
	sort.Strings(out)
	return out
}

// mixedFixture exercises every rule at once. Workable under both policies:
// after-finished, child, leaf, prereq.
func mixedFixture(t *testing.T, s Store) []action.ID {
	put(t, s, "leaf", false, 90)
	put(t, s, "blocked", false, 80)
	put(t, s, "prereq", false, 70)
	put(t, s, "container", false, 60)
	put(t, s, "child", false, 50)
	put(t, s, "cyc1", false, 40)
	put(t, s, "cyc2", false, 30)
	put(t, s, "finished", true, 20)
	put(t, s, "after-finished", false, 10)
	put(t, s, "nested", false, 5)
	link(t, s, "prereq", "blocked", action.KindDependency)
	link(t, s, "container", "child", action.KindComposition)
	link(t, s, "cyc1", "cyc2", action.KindDependency)
	link(t, s, "cyc2", "cyc1", action.KindDependency)
	link(t, s, "finished", "after-finished", action.KindDependency)
	link(t, s, "ghost", "leaf", action.KindDependency)
	link(t, s, "leaf", "phantom", action.KindComposition)
	link(t, s, "container", "nested", action.KindDependency)
	return []action.ID{"after-finished", "child", "leaf", "prereq"}
}

func newResolver(t *testing.T, s Store, strategy resolver.Strategy, policy action.Policy) *resolver.Resolver {
	t.Helper()
	r, err := resolver.New(s, s, resolver.Config{Strategy: strategy, Policy: policy}, nil)
	require.NoError(t, err)
	return r
}

var (
	policies   = []action.Policy{action.PolicyConsolidated, action.PolicyLegacy}
	strategies = []resolver.Strategy{resolver.StrategyStaged, resolver.StrategyPushdown}
)

// =============================================================================
// Writer and Reader
// =============================================================================

func testActionRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	put(t, s, "a1", false, 3)

	got, err := s.GetAction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, action.ID("a1"), got.ID)
	assert.Equal(t, "title a1", got.Title)
	assert.False(t, got.Done)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.True(t, got.UpdatedAt.Equal(base.Add(3*time.Minute)))

	_, err = s.GetAction(ctx, "missing")
	assert.ErrorIs(t, err, action.ErrNotFound)

	// Zero timestamps are filled in.
	require.NoError(t, s.PutAction(ctx, action.Action{ID: "fresh", Title: "fresh"}))
	fresh, err := s.GetAction(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, fresh.CreatedAt.IsZero())
	assert.False(t, fresh.UpdatedAt.IsZero())

	// Replacing keeps a single record and a single index entry.
	require.NoError(t, s.PutAction(ctx, action.Action{
		ID: "a1", Title: "renamed", Version: 4, CreatedAt: base, UpdatedAt: base.Add(time.Hour),
	}))
	incomplete, err := s.LoadIncomplete(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []action.ID{"a1", "fresh"}, ids(incomplete))
	got, err = s.GetAction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, int64(4), got.Version)
}

func testPutActionRejectsBadID(t *testing.T, s Store) {
	err := s.PutAction(context.Background(), action.Action{ID: "  "})
	assert.ErrorIs(t, err, action.ErrInvalidID)
}

func testPutActionRejectsOutOfRangeTime(t *testing.T, s Store) {
	ctx := context.Background()
	for _, ts := range []time.Time{
		time.Date(1969, 12, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		err := s.PutAction(ctx, action.Action{ID: "old", UpdatedAt: ts})
		assert.ErrorIs(t, err, action.ErrInvalidTime, ts.String())
	}
	_, err := s.GetAction(ctx, "old")
	assert.ErrorIs(t, err, action.ErrNotFound)

	// The epoch itself is storable and sorts after every later update.
	require.NoError(t, s.PutAction(ctx, action.Action{ID: "epoch", UpdatedAt: time.Unix(0, 0)}))
	put(t, s, "recent", false, 0)
	got, err := s.LoadIncomplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, []action.ID{"recent", "epoch"}, ids(got))
}

func testSetDone(t *testing.T, s Store) {
	ctx := context.Background()
	put(t, s, "x", false, 0)

	updated, err := s.SetDone(ctx, "x", true)
	require.NoError(t, err)
	assert.True(t, updated.Done)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.UpdatedAt.After(base))

	incomplete, err := s.LoadIncomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)

	reopened, err := s.SetDone(ctx, "x", false)
	require.NoError(t, err)
	assert.False(t, reopened.Done)
	assert.Equal(t, int64(3), reopened.Version)

	incomplete, err = s.LoadIncomplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, []action.ID{"x"}, ids(incomplete))

	_, err = s.SetDone(ctx, "nope", true)
	assert.ErrorIs(t, err, action.ErrNotFound)
}

func testLoadIncompleteOrder(t *testing.T, s Store) {
	put(t, s, "b", false, 10)
	put(t, s, "a", false, 10)
	put(t, s, "newest", false, 20)
	put(t, s, "oldest", false, 0)
	put(t, s, "closed", true, 30)

	got, err := s.LoadIncomplete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []action.ID{"newest", "a", "b", "oldest"}, ids(got))
}

func testEdges(t *testing.T, s Store) {
	ctx := context.Background()
	link(t, s, "a", "b", action.KindDependency)
	link(t, s, "a", "b", action.KindDependency)
	link(t, s, "c", "d", action.KindDependency)
	link(t, s, "p", "a", action.KindComposition)

	all, err := s.LoadEdges(ctx, action.KindDependency, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a -[dependency]-> b", "c -[dependency]-> d"}, edgeStrings(all))

	filtered, err := s.LoadEdges(ctx, action.KindDependency, []action.ID{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a -[dependency]-> b"}, edgeStrings(filtered))

	bySrc, err := s.LoadEdges(ctx, action.KindComposition, []action.ID{"p"})
	require.NoError(t, err)
	assert.Len(t, bySrc, 1)
	assert.Equal(t, action.KindComposition, bySrc[0].Kind)

	none, err := s.LoadEdges(ctx, action.KindDependency, []action.ID{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.LoadEdges(ctx, action.EdgeKind("blocks"), nil)
	assert.ErrorIs(t, err, action.ErrInvalidEdge)

	err = s.PutEdge(ctx, action.Edge{Src: "a", Dst: "a", Kind: action.KindDependency})
	assert.ErrorIs(t, err, action.ErrSelfEdge)

	require.NoError(t, s.RemoveEdge(ctx, action.Edge{Src: "a", Dst: "b", Kind: action.KindDependency}))
	require.NoError(t, s.RemoveEdge(ctx, action.Edge{Src: "a", Dst: "b", Kind: action.KindDependency}))
	all, err = s.LoadEdges(ctx, action.KindDependency, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c -[dependency]-> d"}, edgeStrings(all))
}

func testLoadDoneStatus(t *testing.T, s Store) {
	ctx := context.Background()
	put(t, s, "open", false, 0)
	put(t, s, "closed", true, 0)

	got, err := s.LoadDoneStatus(ctx, []action.ID{"open", "closed", "unknown"})
	require.NoError(t, err)
	status := make(map[action.ID]bool, len(got))
	for _, st := range got {
		status[st.ID] = st.Done
	}
	assert.Equal(t, map[action.ID]bool{"open": false, "closed": true}, status)

	empty, err := s.LoadDoneStatus(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// =============================================================================
// Workability
// =============================================================================

func testQueryWorkable(t *testing.T, s Store) {
	ctx := context.Background()
	want := mixedFixture(t, s)

	for _, policy := range policies {
		got, err := s.QueryWorkable(ctx, action.WorkableQuery{Policy: policy})
		require.NoError(t, err)
		assert.Equal(t, want, sorted(ids(got)), string(policy))
		// Recency order: leaf(90) prereq(70) child(50) after-finished(10).
		assert.Equal(t, []action.ID{"leaf", "prereq", "child", "after-finished"}, ids(got))

		capped, err := s.QueryWorkable(ctx, action.WorkableQuery{Policy: policy, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []action.ID{"leaf", "prereq"}, ids(capped))
	}
}

func testStrategyEquivalence(t *testing.T, s Store) {
	ctx := context.Background()
	want := mixedFixture(t, s)

	for _, policy := range policies {
		var results [][]action.ID
		for _, strategy := range strategies {
			got, err := newResolver(t, s, strategy, policy).Workable(ctx, 0)
			require.NoError(t, err)
			results = append(results, sorted(ids(got)))
		}
		assert.Equal(t, want, results[0], "staged %s", policy)
		assert.Equal(t, results[0], results[1], "pushdown %s", policy)
	}

	// Random-ish larger graph: every combination must still agree.
	for i := 0; i < 60; i++ {
		put(t, s, fmt.Sprintf("g%02d", i), i%5 == 0, 100+i)
		if i >= 2 {
			link(t, s, fmt.Sprintf("g%02d", i-2), fmt.Sprintf("g%02d", i), action.KindDependency)
		}
		if i%7 == 3 && i+3 < 60 {
			link(t, s, fmt.Sprintf("g%02d", i), fmt.Sprintf("g%02d", i+3), action.KindComposition)
		}
	}
	for _, policy := range policies {
		staged, err := newResolver(t, s, resolver.StrategyStaged, policy).Workable(ctx, 0)
		require.NoError(t, err)
		pushed, err := newResolver(t, s, resolver.StrategyPushdown, policy).Workable(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, ids(staged), ids(pushed), string(policy))
	}
}

func testToggleReversibility(t *testing.T, s Store) {
	ctx := context.Background()
	put(t, s, "p", false, 0)
	put(t, s, "x", false, 1)
	link(t, s, "p", "x", action.KindDependency)

	for _, policy := range policies {
		for _, strategy := range strategies {
			r := newResolver(t, s, strategy, policy)
			label := string(policy) + "/" + string(strategy)

			got, err := r.Workable(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, []action.ID{"p"}, ids(got), label)

			_, err = s.SetDone(ctx, "p", true)
			require.NoError(t, err)
			got, err = r.Workable(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, []action.ID{"x"}, ids(got), label)

			_, err = s.SetDone(ctx, "p", false)
			require.NoError(t, err)
			got, err = r.Workable(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, []action.ID{"p"}, ids(got), label)
		}
	}
}

func testCycleStarvation(t *testing.T, s Store) {
	ctx := context.Background()
	put(t, s, "a", false, 0)
	put(t, s, "b", false, 1)
	put(t, s, "c", false, 2)
	link(t, s, "a", "b", action.KindDependency)
	link(t, s, "b", "c", action.KindDependency)
	link(t, s, "c", "a", action.KindDependency)

	for _, policy := range policies {
		for _, strategy := range strategies {
			for _, limit := range []int{0, 1, 3, 10} {
				got, err := newResolver(t, s, strategy, policy).Workable(ctx, limit)
				require.NoError(t, err)
				assert.Empty(t, got)
			}
		}
	}
}
