// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return newTestStore(t) })
}

func TestOpen_InMemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := newTestStore(t)
	b := newTestStore(t)

	require.NoError(t, a.PutAction(ctx, action.Action{ID: "only-in-a"}))
	_, err := b.GetAction(ctx, "only-in-a")
	assert.ErrorIs(t, err, action.ErrNotFound)
}

func TestOpen_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "workgraph.db")

	s, err := Open(ctx, Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.PutAction(ctx, action.Action{ID: "persisted", Title: "p"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetAction(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "p", got.Title)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestQueryWorkable_UncappedLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, id := range []action.ID{"a", "b", "c"} {
		require.NoError(t, s.PutAction(ctx, action.Action{ID: id}))
	}
	for _, limit := range []int{0, -5} {
		got, err := s.QueryWorkable(ctx, action.WorkableQuery{Limit: limit})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	}
}
