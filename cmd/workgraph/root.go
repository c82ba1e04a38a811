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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/workgraph/pkg/extensions"
	"github.com/AleutianAI/workgraph/pkg/logging"
	"github.com/AleutianAI/workgraph/pkg/ux"
	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/config"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
	"github.com/AleutianAI/workgraph/services/workgraph/storage"
)

// app carries state shared by every command of one invocation.
type app struct {
	configPath string
	output     string
	logLevel   string

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
	ext     extensions.ServiceOptions
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "workgraph",
		Short: "Find the actions you can work on now",
		Long: `workgraph tracks actions linked by dependency and composition edges
and resolves which of them are workable: not done, every prerequisite done,
and under the legacy policy every child done.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.ext.AuditLogger != nil {
				_ = a.ext.AuditLogger.Flush(cmd.Context())
			}
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.workgraph/workgraph.yaml)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "output format: rich, plain or json (default: rich on a terminal, plain otherwise)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override: debug, info, warn or error")

	root.AddCommand(
		a.newInitCmd(),
		a.newWorkableCmd(),
		a.newNextCmd(),
		a.newAddCmd(),
		a.newDoneCmd(true),
		a.newDoneCmd(false),
		a.newLinkCmd(true),
		a.newLinkCmd(false),
		a.newSeedCmd(),
		a.newSynthCmd(),
		a.newServeCmd(),
	)
	return root
}

// setup loads configuration and builds the logger and printer.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	mode, ok := ux.ParseMode(a.output)
	if !ok {
		return fmt.Errorf("unknown output format %q", a.output)
	}
	a.printer = ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.Logging.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	// Commands other than serve only log problems unless asked otherwise.
	if a.logLevel == "" && cmd.Name() != "serve" && level < logging.LevelWarn {
		level = logging.LevelWarn
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "workgraph",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	a.ext = extensions.DefaultOptions().WithAudit(extensions.NewSlogAuditLogger(a.logger.Slog(), slog.LevelInfo))
	return nil
}

func (a *app) log() *slog.Logger {
	return a.logger.Slog()
}

func (a *app) openStore(ctx context.Context) (storage.Backend, error) {
	return storage.Open(ctx, a.cfg.Store, a.log())
}

func (a *app) newResolver(b storage.Backend) (*resolver.Resolver, error) {
	rc, err := a.cfg.ResolverSettings()
	if err != nil {
		return nil, err
	}
	return resolver.New(b, b, rc, a.log())
}

// withStore opens the configured store, runs fn and closes the store.
func (a *app) withStore(ctx context.Context, fn func(storage.Backend) error) error {
	b, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			a.log().Warn("close store", slog.String("error", cerr.Error()))
		}
	}()
	return fn(b)
}

// audit records one store write. Audit failures are logged, never returned.
func (a *app) audit(ctx context.Context, eventType, resourceType, resourceID string, writeErr error) {
	event := extensions.AuditEvent{
		EventType:    eventType,
		Actor:        "cli",
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Outcome:      extensions.OutcomeSuccess,
		Metadata:     map[string]any{"driver": a.cfg.Store.Driver},
	}
	if writeErr != nil {
		event.Outcome = extensions.OutcomeFailure
		event.Error = writeErr.Error()
	}
	if err := a.ext.Normalize().AuditLogger.Log(ctx, event); err != nil {
		a.log().Warn("audit log failed", slog.String("error", err.Error()))
	}
}

var actionHeaders = []string{"ID", "TITLE", "UPDATED"}

func actionRow(x action.Action) []string {
	return []string{string(x.ID), x.Title, x.UpdatedAt.UTC().Format(time.RFC3339)}
}

func actionRows(actions []action.Action) [][]string {
	rows := make([][]string, len(actions))
	for i, x := range actions {
		rows[i] = actionRow(x)
	}
	return rows
}
