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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/workgraph/pkg/ux"
	"github.com/AleutianAI/workgraph/services/workgraph"
	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
	"github.com/AleutianAI/workgraph/services/workgraph/storage"
)

func (a *app) newWorkableCmd() *cobra.Command {
	var (
		limit    int
		strategy string
	)
	cmd := &cobra.Command{
		Use:     "workable",
		Aliases: []string{"ls"},
		Short:   "List actions that can be worked on now",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Resolver.DefaultLimit
			}
			return a.withStore(cmd.Context(), func(b storage.Backend) error {
				r, err := a.newResolver(b)
				if err != nil {
					return err
				}
				s, err := a.strategy(r, strategy)
				if err != nil {
					return err
				}
				actions, err := r.WorkableWith(cmd.Context(), s, limit)
				if err != nil {
					return err
				}
				a.printWorkable(actions)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of actions, 0 for all (default from config)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "resolution strategy: staged or pushdown (default from config)")
	return cmd
}

func (a *app) newNextCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the action to work on next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(b storage.Backend) error {
				r, err := a.newResolver(b)
				if err != nil {
					return err
				}
				s, err := a.strategy(r, strategy)
				if err != nil {
					return err
				}
				next, err := r.NextWith(cmd.Context(), s)
				if err != nil {
					return err
				}
				a.printNext(next)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "resolution strategy: staged or pushdown (default from config)")
	return cmd
}

func (a *app) strategy(r *resolver.Resolver, raw string) (resolver.Strategy, error) {
	if raw == "" {
		return r.Config().Strategy, nil
	}
	return resolver.ParseStrategy(raw)
}

func (a *app) printWorkable(actions []action.Action) {
	p := a.printer
	switch p.Mode() {
	case ux.ModeJSON:
		p.JSON(actions)
	case ux.ModeRich:
		if len(actions) == 0 {
			p.Muted("Nothing is workable.")
			return
		}
		p.Title("Workable (" + strconv.Itoa(len(actions)) + ")")
		p.Table(actionHeaders, actionRows(actions))
	default:
		p.Table(actionHeaders, actionRows(actions))
	}
}

func (a *app) printNext(next *action.Action) {
	p := a.printer
	switch {
	case p.Mode() == ux.ModeJSON:
		if next == nil {
			p.JSON(workgraph.NextResponse{AllDone: true})
			return
		}
		p.JSON(workgraph.NextResponse{Action: next})
	case next == nil:
		p.Success("all done")
	case p.Mode() == ux.ModeRich:
		p.Box(string(next.ID), fmt.Sprintf("%s\n%s", next.Title,
			ux.Styles.Muted.Render("updated "+actionRow(*next)[2])))
	default:
		p.Table(actionHeaders, [][]string{actionRow(*next)})
	}
}
