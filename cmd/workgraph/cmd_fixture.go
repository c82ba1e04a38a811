// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/workgraph/pkg/extensions"
	"github.com/AleutianAI/workgraph/pkg/ux"
	"github.com/AleutianAI/workgraph/services/workgraph/config"
	"github.com/AleutianAI/workgraph/services/workgraph/fixture"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
	"github.com/AleutianAI/workgraph/services/workgraph/storage"
)

func (a *app) newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if !force && fileExists(path) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			a.printer.Success("wrote " + path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (a *app) newSeedCmd() *cobra.Command {
	var consolidate, watch bool
	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load actions and edges from a YAML fixture",
		Long: `Load actions and edges from a YAML fixture.

Seeding upserts: existing actions are overwritten and existing edges kept.
With --watch the fixture is re-seeded every time it is saved, until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			g, err := fixture.LoadFile(path)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(b storage.Backend) error {
				seed := func(g *fixture.Graph) error {
					if consolidate {
						g = g.Consolidated()
					}
					st, err := g.Seed(ctx, b)
					a.audit(ctx, extensions.EventFixtureSeed, "fixture", path, err)
					if err != nil {
						return err
					}
					a.printSeedStats(path, st)
					return nil
				}
				if err := seed(g); err != nil || !watch {
					return err
				}
				a.printer.Muted("watching " + path + " (Ctrl+C to stop)")
				return fixture.Watch(ctx, path, fixture.DefaultDebounce, func(g *fixture.Graph, err error) {
					if err == nil {
						err = seed(g)
					}
					if err != nil {
						a.printer.Error(err.Error())
					}
				}, a.log())
			})
		},
	}
	cmd.Flags().BoolVar(&consolidate, "consolidate", false, "rewrite composition edges as dependencies before seeding")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-seed whenever the fixture changes")
	return cmd
}

func (a *app) newSynthCmd() *cobra.Command {
	var (
		size  int
		seed  uint64
		bench bool
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Seed a deterministic synthetic graph",
		Long: `Seed a deterministic random graph of --size actions with mixed dependency
and composition edges, a few done actions and some dependency cycles.
With --bench, resolve it with every strategy and report timings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 1 {
				return fmt.Errorf("--size must be positive, got %d", size)
			}
			g := fixture.Synthetic(size, seed)
			ctx := cmd.Context()
			return a.withStore(ctx, func(b storage.Backend) error {
				var st fixture.SeedStats
				err := a.printer.WithSpinner("seeding "+strconv.Itoa(size)+" actions", func() error {
					var err error
					st, err = g.Seed(ctx, b)
					return err
				})
				a.audit(ctx, extensions.EventFixtureSeed, "fixture", "synthetic", err)
				if err != nil {
					return err
				}
				a.printSeedStats("synthetic", st)
				if !bench {
					return nil
				}
				r, err := a.newResolver(b)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, 2)
				for _, s := range []resolver.Strategy{resolver.StrategyStaged, resolver.StrategyPushdown} {
					start := time.Now()
					got, err := r.WorkableWith(ctx, s, 0)
					if err != nil {
						return fmt.Errorf("%s: %w", s, err)
					}
					rows = append(rows, []string{string(s), strconv.Itoa(len(got)), time.Since(start).String()})
				}
				a.printer.Table([]string{"STRATEGY", "WORKABLE", "ELAPSED"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 200, "number of actions")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().BoolVar(&bench, "bench", false, "resolve with every strategy after seeding")
	return cmd
}

func (a *app) printSeedStats(source string, st fixture.SeedStats) {
	if a.printer.Mode() == ux.ModeJSON {
		a.printer.JSON(map[string]any{"source": source, "actions": st.Actions, "edges": st.Edges})
		return
	}
	a.printer.Success(fmt.Sprintf("seeded %d actions and %d edges from %s", st.Actions, st.Edges, source))
}
