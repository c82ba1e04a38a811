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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/workgraph/pkg/extensions"
	"github.com/AleutianAI/workgraph/pkg/ux"
	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/storage"
)

func (a *app) newAddCmd() *cobra.Command {
	var (
		id     string
		after  []string
		parent string
		done   bool
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an action",
		Long: `Create an action. --after names prerequisites that must be done first;
--parent names a container that cannot finish before this action.
An --id that is already taken is refused; use done/reopen to change an
existing action.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			newID := action.ID(id)
			if newID == "" {
				newID = action.NewID()
			}
			x := action.Action{ID: newID, Title: args[0], Done: done}

			edges := make([]action.Edge, 0, len(after)+1)
			for _, p := range after {
				edges = append(edges, action.Edge{Src: action.ID(p), Dst: newID, Kind: action.KindDependency})
			}
			if parent != "" {
				edges = append(edges, action.Edge{Src: action.ID(parent), Dst: newID, Kind: action.KindComposition})
			}
			for _, e := range edges {
				if err := e.Validate(); err != nil {
					return fmt.Errorf("edge %s: %w", e, err)
				}
			}

			return a.withStore(ctx, func(b storage.Backend) error {
				if _, err := b.GetAction(ctx, newID); err == nil {
					return fmt.Errorf("action %s already exists", newID)
				} else if !errors.Is(err, action.ErrNotFound) {
					return err
				}
				err := b.PutAction(ctx, x)
				a.audit(ctx, extensions.EventActionCreate, "action", string(newID), err)
				if err != nil {
					return err
				}
				for _, e := range edges {
					err := b.PutEdge(ctx, e)
					a.audit(ctx, extensions.EventEdgeLink, "edge", e.String(), err)
					if err != nil {
						return err
					}
				}
				saved, err := b.GetAction(ctx, newID)
				if err != nil {
					return err
				}
				a.printAction("added", saved)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "action id (default: random uuid)")
	cmd.Flags().StringSliceVar(&after, "after", nil, "prerequisite action ids")
	cmd.Flags().StringVar(&parent, "parent", "", "container action id")
	cmd.Flags().BoolVar(&done, "done", false, "create the action already done")
	return cmd
}

// newDoneCmd builds "done" when done is true and "reopen" otherwise.
func (a *app) newDoneCmd(done bool) *cobra.Command {
	use, short, verb, event := "done <id>...", "Mark actions done", "done", extensions.EventActionDone
	if !done {
		use, short, verb, event = "reopen <id>...", "Mark actions not done", "reopened", extensions.EventActionReopen
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(b storage.Backend) error {
				for _, raw := range args {
					x, err := b.SetDone(ctx, action.ID(raw), done)
					a.audit(ctx, event, "action", raw, err)
					if err != nil {
						return fmt.Errorf("%s: %w", raw, err)
					}
					a.printAction(verb, x)
				}
				return nil
			})
		},
	}
}

// newLinkCmd builds "link" when add is true and "unlink" otherwise.
func (a *app) newLinkCmd(add bool) *cobra.Command {
	var kind string
	use, short := "link <src> <dst>", "Add an edge between two actions"
	if !add {
		use, short = "unlink <src> <dst>", "Remove an edge between two actions"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

With --kind dependency, dst depends on src: src must be done first.
With --kind composition, src is the container and dst its child.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := action.ParseEdgeKind(kind)
			if err != nil {
				return err
			}
			e := action.Edge{Src: action.ID(args[0]), Dst: action.ID(args[1]), Kind: k}
			if err := e.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(b storage.Backend) error {
				event := extensions.EventEdgeLink
				if add {
					err = b.PutEdge(ctx, e)
				} else {
					event = extensions.EventEdgeUnlink
					err = b.RemoveEdge(ctx, e)
				}
				a.audit(ctx, event, "edge", e.String(), err)
				if err != nil {
					return err
				}
				verb := "linked"
				if !add {
					verb = "unlinked"
				}
				if a.printer.Mode() == ux.ModeJSON {
					a.printer.JSON(map[string]any{"status": verb, "edge": e})
					return nil
				}
				a.printer.Success(verb + " " + e.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(action.KindDependency), "edge kind: dependency or composition")
	return cmd
}

func (a *app) printAction(verb string, x action.Action) {
	if a.printer.Mode() == ux.ModeJSON {
		a.printer.JSON(x)
		return
	}
	a.printer.Success(fmt.Sprintf("%s %s (%s)", verb, x.ID, x.Title))
}
