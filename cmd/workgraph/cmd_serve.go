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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/workgraph/services/workgraph"
	"github.com/AleutianAI/workgraph/services/workgraph/storage"
	"github.com/AleutianAI/workgraph/services/workgraph/telemetry"
)

const shutdownTimeout = 10 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	var (
		port  int
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}
			if debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			return a.withStore(cmd.Context(), func(b storage.Backend) error {
				return a.serve(cmd.Context(), b, port)
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable gin debug mode")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled.
func (a *app) serve(ctx context.Context, b storage.Backend, port int) error {
	logger := a.log()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = a.cfg.Telemetry.ServiceName
	tcfg.ServiceVersion = workgraph.ServiceVersion
	tcfg.TraceExporter = a.cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = a.cfg.Telemetry.MetricExporter
	if a.cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = a.cfg.Telemetry.OTLPEndpoint
	}
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	r, err := a.newResolver(b)
	if err != nil {
		return err
	}
	svc, err := workgraph.NewService(r, a.cfg.Resolver.DefaultLimit, logger)
	if err != nil {
		return err
	}
	router := workgraph.NewRouter(workgraph.NewHandlers(svc, logger), workgraph.RouterOptions{
		RateLimit: a.cfg.Server.RateLimit,
		Burst:     a.cfg.Server.Burst,
		Metrics:   a.cfg.Telemetry.MetricExporter == "prometheus",
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting workgraph server",
			slog.String("address", srv.Addr),
			slog.String("driver", a.cfg.Store.Driver),
			slog.String("strategy", string(r.Config().Strategy)),
			slog.String("policy", string(r.Config().Policy)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down workgraph server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
