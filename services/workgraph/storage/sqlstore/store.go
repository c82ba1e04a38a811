// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlstore implements the action relation store on SQLite.
//
// The driver is modernc.org/sqlite (pure Go, no cgo). Every Reader method is
// a single statement; QueryWorkable pushes the whole predicate into one CTE.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// Config describes where the database lives.
type Config struct {
	// Path is the database file. Ignored when InMemory is set.
	Path string

	// InMemory uses a private in-memory database.
	InMemory bool

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// Store is a SQLite-backed action.Reader, action.AggregateQuerier and
// action.Writer.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ action.Reader           = (*Store)(nil)
	_ action.AggregateQuerier = (*Store)(nil)
	_ action.Writer           = (*Store)(nil)
)

// Open opens (and migrates) the database described by cfg.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.InMemory {
		// Each connection to a private memory database is a new database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	logger.Debug("sqlite store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return &Store{
		db:     db,
		logger: logger.With(slog.String("store", "sqlite")),
		now:    time.Now,
	}, nil
}

func dataSourceName(cfg Config) (string, error) {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))

	if cfg.InMemory {
		q.Set("mode", "memory")
		q.Set("cache", "shared")
		return fmt.Sprintf("file:workgraph-%s?%s", uuid.NewString(), q.Encode()), nil
	}
	if cfg.Path == "" {
		return "", errors.New("path is required for persistent database")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + cfg.Path + "?" + q.Encode(), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Reader
// =============================================================================

const actionColumns = `id, title, done, version, created_at, updated_at`

// LoadIncomplete returns every incomplete action by recency.
func (s *Store) LoadIncomplete(ctx context.Context) ([]action.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		WHERE done = 0
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite load incomplete: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanActions(rows)
}

// LoadEdges returns edges of one kind, optionally restricted to edges with
// an endpoint in touching.
func (s *Store) LoadEdges(ctx context.Context, kind action.EdgeKind, touching []action.ID) ([]action.Edge, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", action.ErrInvalidEdge, kind)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if touching == nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT src, dst FROM edges WHERE kind = ? ORDER BY src, dst
		`, string(kind))
	} else {
		set, encErr := idArray(touching)
		if encErr != nil {
			return nil, encErr
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT src, dst FROM edges
			WHERE kind = ?1
			  AND (src IN (SELECT value FROM json_each(?2))
			    OR dst IN (SELECT value FROM json_each(?2)))
			ORDER BY src, dst
		`, string(kind), set)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load %s edges: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	out := []action.Edge{}
	for rows.Next() {
		e := action.Edge{Kind: kind}
		if err := rows.Scan(&e.Src, &e.Dst); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadDoneStatus returns done flags for the ids that exist.
func (s *Store) LoadDoneStatus(ctx context.Context, ids []action.ID) ([]action.DoneStatus, error) {
	if len(ids) == 0 {
		return []action.DoneStatus{}, nil
	}
	set, err := idArray(ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, done FROM actions
		WHERE id IN (SELECT value FROM json_each(?))
	`, set)
	if err != nil {
		return nil, fmt.Errorf("sqlite load done status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]action.DoneStatus, 0, len(ids))
	for rows.Next() {
		var st action.DoneStatus
		if err := rows.Scan(&st.ID, &st.Done); err != nil {
			return nil, fmt.Errorf("scan done status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// QueryWorkable runs the single-statement workability query.
func (s *Store) QueryWorkable(ctx context.Context, q action.WorkableQuery) ([]action.Action, error) {
	policy := q.Policy
	if policy == "" {
		policy = action.PolicyConsolidated
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, workableQuery, string(policy), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query workable: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]action.Action, error) {
	out := []action.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(row scanner) (action.Action, error) {
	var (
		a                action.Action
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Done, &a.Version, &created, &updated); err != nil {
		return action.Action{}, err
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	a.UpdatedAt = time.Unix(0, updated).UTC()
	return a, nil
}

func idArray(ids []action.ID) (string, error) {
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode id set: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// Writer
// =============================================================================

// PutAction upserts a.
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, title, done, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			done = excluded.done,
			version = excluded.version,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, string(a.ID), a.Title, a.Done, a.Version, a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite put action %s: %w", a.ID, err)
	}
	return nil
}

// GetAction returns the action or action.ErrNotFound.
func (s *Store) GetAction(ctx context.Context, id action.ID) (action.Action, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, string(id))
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return action.Action{}, fmt.Errorf("%w: %s", action.ErrNotFound, id)
	}
	if err != nil {
		return action.Action{}, fmt.Errorf("sqlite get action %s: %w", id, err)
	}
	return a, nil
}

// SetDone updates the completion flag, bumping version and updated_at.
func (s *Store) SetDone(ctx context.Context, id action.ID, done bool) (action.Action, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE actions
		SET done = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, done, s.now().UTC().UnixNano(), string(id))
	if err != nil {
		return action.Action{}, fmt.Errorf("sqlite set done %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return action.Action{}, fmt.Errorf("%w: %s", action.ErrNotFound, id)
	}
	s.logger.Debug("action completion changed", slog.String("id", string(id)), slog.Bool("done", done))
	return s.GetAction(ctx, id)
}

// PutEdge records e; an existing edge is left as is.
func (s *Store) PutEdge(ctx context.Context, e action.Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO edges (src, dst, kind, created_at) VALUES (?, ?, ?, ?)
	`, string(e.Src), string(e.Dst), string(e.Kind), s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite put edge %s: %w", e, err)
	}
	return nil
}

// RemoveEdge deletes e if present.
func (s *Store) RemoveEdge(ctx context.Context, e action.Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM edges WHERE src = ? AND dst = ? AND kind = ?
	`, string(e.Src), string(e.Dst), string(e.Kind))
	if err != nil {
		return fmt.Errorf("sqlite remove edge %s: %w", e, err)
	}
	return nil
}
