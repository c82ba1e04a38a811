// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixture loads action graphs from YAML and seeds them into a store.
//
// A fixture file looks like:
//
//	actions:
//	  - id: write-docs
//	    title: Write the docs
//	    updated_at: 2025-06-01T10:00:00Z
//	  - id: release
//	    title: Cut the release
//	edges:
//	  - src: write-docs
//	    dst: release
//	    kind: dependency
//
// Edge endpoints may name actions that are not in the file.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// ErrInvalidFixture wraps every parse or validation failure.
var ErrInvalidFixture = errors.New("invalid fixture")

var validate = validator.New()

// Graph is a set of actions and edges ready to seed.
type Graph struct {
	Actions []action.Action
	Edges   []action.Edge
}

type fileSpec struct {
	Actions []actionSpec `yaml:"actions" validate:"dive"`
	Edges   []edgeSpec   `yaml:"edges" validate:"dive"`
}

type actionSpec struct {
	ID        string    `yaml:"id" validate:"required"`
	Title     string    `yaml:"title"`
	Done      bool      `yaml:"done"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

type edgeSpec struct {
	Src  string `yaml:"src" validate:"required,nefield=Dst"`
	Dst  string `yaml:"dst" validate:"required"`
	Kind string `yaml:"kind" validate:"required"`
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse decodes and validates fixture YAML.
//
// Duplicate action ids and unknown edge kinds are rejected. Edge kind
// aliases accepted by action.ParseEdgeKind are allowed.
func Parse(data []byte) (*Graph, error) {
	var file fileSpec
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	g := &Graph{
		Actions: make([]action.Action, 0, len(file.Actions)),
		Edges:   make([]action.Edge, 0, len(file.Edges)),
	}
	seen := make(map[action.ID]struct{}, len(file.Actions))
	for _, a := range file.Actions {
		id := action.ID(a.ID)
		if err := id.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate action id %q", ErrInvalidFixture, id)
		}
		seen[id] = struct{}{}
		title := a.Title
		if title == "" {
			title = a.ID
		}
		g.Actions = append(g.Actions, action.Action{
			ID:        id,
			Title:     title,
			Done:      a.Done,
			CreatedAt: a.CreatedAt.UTC(),
			UpdatedAt: a.UpdatedAt.UTC(),
		})
	}
	for i, e := range file.Edges {
		kind, err := action.ParseEdgeKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d: %w", ErrInvalidFixture, i, err)
		}
		edge := action.Edge{Src: action.ID(e.Src), Dst: action.ID(e.Dst), Kind: kind}
		if err := edge.Validate(); err != nil {
			return nil, fmt.Errorf("%w: edge %d: %w", ErrInvalidFixture, i, err)
		}
		g.Edges = append(g.Edges, edge)
	}
	return g, nil
}

// SeedStats reports what Seed wrote.
type SeedStats struct {
	Actions int
	Edges   int
}

// Seed writes every action then every edge to w.
//
// Zero timestamps in the fixture are left for the store to fill. Seeding is
// not atomic; a failure leaves the records written so far in place.
func (g *Graph) Seed(ctx context.Context, w action.Writer) (SeedStats, error) {
	var st SeedStats
	for _, a := range g.Actions {
		if err := w.PutAction(ctx, a); err != nil {
			return st, fmt.Errorf("seed action %s: %w", a.ID, err)
		}
		st.Actions++
	}
	for _, e := range g.Edges {
		if err := w.PutEdge(ctx, e); err != nil {
			return st, fmt.Errorf("seed edge %s: %w", e, err)
		}
		st.Edges++
	}
	return st, nil
}

// Consolidated returns a copy of g with composition edges rewritten as
// dependencies.
func (g *Graph) Consolidated() *Graph {
	return &Graph{
		Actions: append([]action.Action(nil), g.Actions...),
		Edges:   action.Consolidate(g.Edges),
	}
}
