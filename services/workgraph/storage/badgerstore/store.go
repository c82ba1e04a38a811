// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore implements the action relation store on BadgerDB.
//
// Incomplete actions are kept in a recency-ordered secondary index that is
// maintained on every write, so LoadIncomplete is a single prefix scan.
// QueryWorkable evaluates the workability predicate inside one read-only
// transaction, giving it a consistent snapshot.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/graph"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badger"
)

// Store is a BadgerDB-backed action.Reader, action.AggregateQuerier and
// action.Writer.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ action.Reader           = (*Store)(nil)
	_ action.AggregateQuerier = (*Store)(nil)
	_ action.Writer           = (*Store)(nil)
)

// New wraps an open database. The Store does not own db unless closed via
// Close.
func New(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With(slog.String("store", "badger")),
		now:    time.Now,
	}
}

// Open opens a database with cfg and wraps it.
func Open(cfg badger.Config, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(db, logger), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Reader
// =============================================================================

// LoadIncomplete scans the incomplete index.
func (s *Store) LoadIncomplete(ctx context.Context) ([]action.Action, error) {
	var out []action.Action
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		var err error
		out, err = scanIncomplete(ctx, txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger load incomplete: %w", err)
	}
	return out, nil
}

// LoadEdges scans one edge kind, filtering in memory when touching is set.
func (s *Store) LoadEdges(ctx context.Context, kind action.EdgeKind, touching []action.ID) ([]action.Edge, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", action.ErrInvalidEdge, kind)
	}
	var out []action.Edge
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		var err error
		out, err = scanEdges(ctx, txn, kind, touching)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger load %s edges: %w", kind, err)
	}
	return out, nil
}

// LoadDoneStatus issues one point lookup per id inside a single transaction.
func (s *Store) LoadDoneStatus(ctx context.Context, ids []action.ID) ([]action.DoneStatus, error) {
	var out []action.DoneStatus
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		var err error
		out, err = lookupStatus(ctx, txn, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger load done status: %w", err)
	}
	return out, nil
}

// QueryWorkable evaluates the predicate over one transaction snapshot.
//
// Description:
//
//	Reads the incomplete index, both edge kinds and the referenced
//	statuses from the same read-only transaction, then evaluates with the
//	shared graph package. Concurrent writers cannot produce a torn result.
func (s *Store) QueryWorkable(ctx context.Context, q action.WorkableQuery) ([]action.Action, error) {
	var out []action.Action
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		incomplete, err := scanIncomplete(ctx, txn)
		if err != nil {
			return err
		}
		if len(incomplete) == 0 {
			out = []action.Action{}
			return nil
		}
		deps, err := scanEdges(ctx, txn, action.KindDependency, nil)
		if err != nil {
			return err
		}
		comps, err := scanEdges(ctx, txn, action.KindComposition, nil)
		if err != nil {
			return err
		}
		idx := graph.Build(q.Policy, incomplete, deps, comps)
		rows, err := lookupStatus(ctx, txn, idx.ReferencedIDs())
		if err != nil {
			return err
		}
		out = idx.Evaluate(graph.NewStatusMap(rows), q.Limit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger query workable: %w", err)
	}
	return out, nil
}

func scanIncomplete(ctx context.Context, txn *dgbadger.Txn) ([]action.Action, error) {
	prefix := []byte(incompletePrefix)
	it := txn.NewIterator(dgbadger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
	defer it.Close()

	out := []action.Action{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var a action.Action
		err := it.Item().Value(func(val []byte) error {
			var err error
			a, err = decodeAction(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func scanEdges(ctx context.Context, txn *dgbadger.Txn, kind action.EdgeKind, touching []action.ID) ([]action.Edge, error) {
	var filter map[action.ID]struct{}
	if touching != nil {
		filter = make(map[action.ID]struct{}, len(touching))
		for _, id := range touching {
			filter[id] = struct{}{}
		}
	}

	prefix := edgeKindPrefix(kind)
	opts := dgbadger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	out := []action.Edge{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, ok := parseEdgeKey(kind, it.Item().Key())
		if !ok {
			continue
		}
		if filter != nil {
			_, src := filter[e.Src]
			_, dst := filter[e.Dst]
			if !src && !dst {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func lookupStatus(ctx context.Context, txn *dgbadger.Txn, ids []action.ID) ([]action.DoneStatus, error) {
	out := make([]action.DoneStatus, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := getAction(txn, id)
		if errors.Is(err, action.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, action.DoneStatus{ID: id, Done: a.Done})
	}
	return out, nil
}

func getAction(txn *dgbadger.Txn, id action.ID) (action.Action, error) {
	item, err := txn.Get(actionKey(id))
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return action.Action{}, fmt.Errorf("%w: %s", action.ErrNotFound, id)
	}
	if err != nil {
		return action.Action{}, err
	}
	var a action.Action
	err = item.Value(func(val []byte) error {
		a, err = decodeAction(val)
		return err
	})
	return a, err
}

// =============================================================================
// Writer
// =============================================================================

// PutAction inserts or replaces an action and keeps the incomplete index in
// step.
func (s *Store) PutAction(ctx context.Context, a action.Action) error {
	if err := a.ID.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if err := action.ValidateForStore(a); err != nil {
		return err
	}
	return s.db.Update(ctx, func(txn *dgbadger.Txn) error {
		return putAction(txn, a)
	})
}

// GetAction returns the stored action or action.ErrNotFound.
func (s *Store) GetAction(ctx context.Context, id action.ID) (action.Action, error) {
	var a action.Action
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		var err error
		a, err = getAction(txn, id)
		return err
	})
	return a, err
}

// SetDone updates the completion flag, bumping Version and UpdatedAt.
func (s *Store) SetDone(ctx context.Context, id action.ID, done bool) (action.Action, error) {
	var updated action.Action
	err := s.db.Update(ctx, func(txn *dgbadger.Txn) error {
		a, err := getAction(txn, id)
		if err != nil {
			return err
		}
		a.Done = done
		a.Version++
		a.UpdatedAt = s.now().UTC()
		updated = a
		return putAction(txn, a)
	})
	if err != nil {
		return action.Action{}, err
	}
	s.logger.Debug("action completion changed",
		slog.String("id", string(id)),
		slog.Bool("done", done),
		slog.Int64("version", updated.Version),
	)
	return updated, nil
}

// putAction writes the record and replaces its index entry.
func putAction(txn *dgbadger.Txn, a action.Action) error {
	prev, err := getAction(txn, a.ID)
	switch {
	case err == nil:
		if !prev.Done {
			if err := txn.Delete(incompleteKey(prev)); err != nil {
				return err
			}
		}
	case errors.Is(err, action.ErrNotFound):
	default:
		return err
	}

	data, err := encodeAction(a)
	if err != nil {
		return err
	}
	if err := txn.Set(actionKey(a.ID), data); err != nil {
		return err
	}
	if !a.Done {
		return txn.Set(incompleteKey(a), data)
	}
	return nil
}

// PutEdge records e. Endpoints need not exist.
func (s *Store) PutEdge(ctx context.Context, e action.Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.db.Update(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(edgeKey(e), nil)
	})
}

// RemoveEdge deletes e if present.
func (s *Store) RemoveEdge(ctx context.Context, e action.Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.db.Update(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete(edgeKey(e))
	})
}
