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
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badger"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badgerstore"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/sqlstore"
)

type store interface {
	action.Reader
	action.AggregateQuerier
	action.Writer
}

func stores(t *testing.T) map[string]store {
	t.Helper()
	b, err := badgerstore.Open(badger.InMemoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	s, err := sqlstore.Open(context.Background(), sqlstore.Config{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return map[string]store{"badger": b, "sqlite": s}
}

func idList(actions []action.Action) []action.ID {
	out := make([]action.ID, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}

func TestLoadFile(t *testing.T) {
	g, err := LoadFile("testdata/release.yaml")
	require.NoError(t, err)
	require.Len(t, g.Actions, 5)
	require.Len(t, g.Edges, 4)

	assert.Equal(t, action.KindComposition, g.Edges[1].Kind, "parent alias")
	assert.Equal(t, action.KindDependency, g.Edges[3].Kind, "depends_on alias")
	assert.True(t, g.Actions[4].Done)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), g.Actions[0].UpdatedAt)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing id":     "actions:\n  - title: x\n",
		"duplicate id":   "actions:\n  - id: a\n  - id: a\n",
		"self edge":      "edges:\n  - {src: a, dst: a, kind: dependency}\n",
		"unknown kind":   "edges:\n  - {src: a, dst: b, kind: sibling}\n",
		"missing kind":   "edges:\n  - {src: a, dst: b}\n",
		"malformed yaml": "actions: {\n",
		"blank id":       "actions:\n  - id: \"  \"\n",
		"nul in id":      "actions:\n  - id: \"a\\0b\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidFixture)
		})
	}
}

func TestParse_AcceptsOrdinaryIDs(t *testing.T) {
	for _, id := range []string{"plan", "fix-bugs", "task-10", "0x00", "xx-100", "v2.0"} {
		t.Run(id, func(t *testing.T) {
			g, err := Parse([]byte("actions:\n  - id: \"" + id + "\"\n    title: t\n"))
			require.NoError(t, err)
			require.Len(t, g.Actions, 1)
			assert.Equal(t, action.ID(id), g.Actions[0].ID)
		})
	}
}

func TestParse_DefaultsTitleToID(t *testing.T) {
	g, err := Parse([]byte("actions:\n  - id: lonely\n"))
	require.NoError(t, err)
	assert.Equal(t, "lonely", g.Actions[0].Title)
	assert.True(t, g.Actions[0].UpdatedAt.IsZero())
}

func TestSeed_ReleasePlanResolves(t *testing.T) {
	g, err := LoadFile("testdata/release.yaml")
	require.NoError(t, err)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := g.Seed(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, SeedStats{Actions: 5, Edges: 4}, st)

			r, err := resolver.New(s, s, resolver.DefaultConfig(), nil)
			require.NoError(t, err)
			got, err := r.Workable(ctx, 0)
			require.NoError(t, err)
			// release waits on its children; tag waits on fix-bugs.
			assert.Equal(t, []action.ID{"write-docs", "fix-bugs"}, idList(got))

			next, err := r.Next(ctx)
			require.NoError(t, err)
			require.NotNil(t, next)
			assert.Equal(t, action.ID("write-docs"), next.ID)
		})
	}
}

func TestConsolidated_MatchesLegacyResult(t *testing.T) {
	g, err := LoadFile("testdata/release.yaml")
	require.NoError(t, err)
	ctx := context.Background()

	all := stores(t)
	legacyStore, consolidatedStore := all["badger"], all["sqlite"]
	_, err = g.Seed(ctx, legacyStore)
	require.NoError(t, err)
	_, err = g.Consolidated().Seed(ctx, consolidatedStore)
	require.NoError(t, err)

	comps, err := consolidatedStore.LoadEdges(ctx, action.KindComposition, nil)
	require.NoError(t, err)
	assert.Empty(t, comps)

	legacy, err := resolver.New(legacyStore, legacyStore, resolver.Config{Policy: action.PolicyLegacy}, nil)
	require.NoError(t, err)
	consolidated, err := resolver.New(consolidatedStore, consolidatedStore, resolver.DefaultConfig(), nil)
	require.NoError(t, err)

	a, err := legacy.Workable(ctx, 0)
	require.NoError(t, err)
	b, err := consolidated.Workable(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, idList(a), idList(b))
}

func TestSynthetic_Deterministic(t *testing.T) {
	a := Synthetic(300, 42)
	b := Synthetic(300, 42)
	c := Synthetic(300, 43)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Edges, c.Edges)
	assert.Len(t, a.Actions, 300)

	kinds := map[action.EdgeKind]int{}
	for _, e := range a.Edges {
		require.NoError(t, e.Validate())
		kinds[e.Kind]++
	}
	assert.Positive(t, kinds[action.KindDependency])
	assert.Positive(t, kinds[action.KindComposition])

	assert.Empty(t, Synthetic(0, 1).Actions)
}

// TestSynthetic_StrategiesAgree resolves a 200-action graph with every
// backend, strategy and policy and checks they all return the same set.
func TestSynthetic_StrategiesAgree(t *testing.T) {
	g := Synthetic(200, 7)
	ctx := context.Background()

	var reference []action.ID
	for name, s := range stores(t) {
		_, err := g.Seed(ctx, s)
		require.NoError(t, err, name)

		for _, policy := range []action.Policy{action.PolicyConsolidated, action.PolicyLegacy} {
			for _, strategy := range []resolver.Strategy{resolver.StrategyStaged, resolver.StrategyPushdown} {
				r, err := resolver.New(s, s, resolver.Config{Strategy: strategy, Policy: policy}, nil)
				require.NoError(t, err)

				start := time.Now()
				got, err := r.Workable(ctx, 0)
				require.NoError(t, err)
				assert.Less(t, time.Since(start), 2*time.Second)

				ids := idList(got)
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
				if reference == nil {
					reference = ids
					require.NotEmpty(t, reference)
					continue
				}
				assert.Equal(t, reference, ids, "%s/%s/%s", name, policy, strategy)
			}
		}
	}
}
