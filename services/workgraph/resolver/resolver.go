// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver answers "which actions can be worked on now?" against an
// injected relation store.
//
// Two strategies produce the same workable set for the same snapshot:
//
//   - staged: a constant number of bulk reads followed by in-memory
//     evaluation (see package graph).
//   - pushdown: one atomic store-side query.
//
// The resolver is stateless between calls and never writes to the store.
// The whole load sequence of one call runs under a single timeout.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/graph"
)

// DefaultLoadTimeout is the ceiling applied to one load sequence.
const DefaultLoadTimeout = 30 * time.Second

// Strategy selects how the workable set is computed.
type Strategy string

const (
	// StrategyStaged issues bulk reads and evaluates in memory.
	StrategyStaged Strategy = "staged"

	// StrategyPushdown delegates the whole predicate to the store.
	StrategyPushdown Strategy = "pushdown"
)

// ParseStrategy converts configuration input into a Strategy. Empty input
// selects StrategyStaged.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StrategyStaged):
		return StrategyStaged, nil
	case string(StrategyPushdown), "single", "single-query":
		return StrategyPushdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Config controls resolver behaviour.
type Config struct {
	// Strategy used by Workable and Next.
	Strategy Strategy

	// Policy is the composition policy, fixed for the resolver's lifetime.
	Policy action.Policy

	// LoadTimeout bounds the full load sequence. Zero means DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// DefaultConfig returns the staged strategy under the consolidated policy.
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategyStaged,
		Policy:      action.PolicyConsolidated,
		LoadTimeout: DefaultLoadTimeout,
	}
}

// Resolver computes workable sets.
//
// Thread Safety: Safe for concurrent use; holds no per-call state.
type Resolver struct {
	reader  action.Reader
	querier action.AggregateQuerier
	cfg     Config
	logger  *slog.Logger
}

// New creates a Resolver.
//
// Description:
//
//	Validates the configuration against the store's capabilities. The
//	querier may be nil when the staged strategy is configured; requesting
//	pushdown later then fails with ErrNoQuerier.
//
// Inputs:
//
//	reader - Bulk read port. Must not be nil.
//	querier - Optional single-query port.
//	cfg - Strategy, policy and timeout.
//	logger - Logger. If nil, uses slog.Default().
//
// Outputs:
//
//	*Resolver - The configured resolver.
//	error - ErrNilReader, ErrUnknownStrategy, ErrUnknownPolicy or ErrNoQuerier.
func New(reader action.Reader, querier action.AggregateQuerier, cfg Config, logger *slog.Logger) (*Resolver, error) {
	if reader == nil {
		return nil, ErrNilReader
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyStaged
	}
	if cfg.Policy == "" {
		cfg.Policy = action.PolicyConsolidated
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if err := validStrategy(cfg.Strategy); err != nil {
		return nil, err
	}
	switch cfg.Policy {
	case action.PolicyConsolidated, action.PolicyLegacy:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Policy)
	}
	if cfg.Strategy == StrategyPushdown && querier == nil {
		return nil, ErrNoQuerier
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		reader:  reader,
		querier: querier,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "resolver")),
	}, nil
}

func validStrategy(s Strategy) error {
	switch s {
	case StrategyStaged, StrategyPushdown:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Workable returns up to limit workable actions using the configured
// strategy. A limit of zero or less means uncapped.
func (r *Resolver) Workable(ctx context.Context, limit int) ([]action.Action, error) {
	return r.WorkableWith(ctx, r.cfg.Strategy, limit)
}

// WorkableWith is Workable with an explicit strategy for this call.
//
// Description:
//
//	Runs the chosen strategy under one deadline of LoadTimeout. If the
//	deadline fires first the whole call fails with ErrLoadTimeout and no
//	partial result. Store errors are wrapped and returned unchanged in
//	kind. Malformed references are never errors.
//
// Outputs:
//
//	[]action.Action - Workable actions, never nil on success.
//	error - ErrLoadTimeout (retryable), ErrNoQuerier, or a store error.
func (r *Resolver) WorkableWith(ctx context.Context, strategy Strategy, limit int) ([]action.Action, error) {
	if err := validStrategy(strategy); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "resolver.Workable",
		trace.WithAttributes(
			attribute.String("workgraph.strategy", string(strategy)),
			attribute.String("workgraph.policy", string(r.cfg.Policy)),
			attribute.Int("workgraph.limit", limit),
		),
	)
	defer span.End()

	start := time.Now()
	loadCtx, cancel := context.WithTimeout(ctx, r.cfg.LoadTimeout)
	defer cancel()

	var (
		out   []action.Action
		trips int
		err   error
	)
	switch strategy {
	case StrategyPushdown:
		out, trips, err = r.pushdown(loadCtx, limit)
	default:
		out, trips, err = r.staged(loadCtx, limit)
	}
	elapsed := time.Since(start)

	if err != nil {
		err = r.classify(ctx, loadCtx, err)
		outcome := outcomeError
		if IsRetryable(err) {
			outcome = outcomeTimeout
		}
		recordResolution(strategy, outcome, elapsed.Seconds(), trips, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("workable resolution failed",
			slog.String("strategy", string(strategy)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	outcome := outcomeOK
	if len(out) == 0 {
		outcome = outcomeEmpty
	}
	recordResolution(strategy, outcome, elapsed.Seconds(), trips, len(out))
	span.SetAttributes(
		attribute.Int("workgraph.workable", len(out)),
		attribute.Int("workgraph.round_trips", trips),
	)
	r.logger.Debug("workable resolved",
		slog.String("strategy", string(strategy)),
		slog.Int("workable", len(out)),
		slog.Int("round_trips", trips),
		slog.Duration("elapsed", elapsed),
	)
	return out, nil
}

// classify turns a deadline hit on the load context into ErrLoadTimeout
// while leaving caller cancellation and store failures as they are.
func (r *Resolver) classify(parent, loadCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("resolve workable: %w", err)
	}
	if loadCtx.Err() != nil {
		return fmt.Errorf("%w after %s: %w", ErrLoadTimeout, r.cfg.LoadTimeout, err)
	}
	return fmt.Errorf("resolve workable: %w", err)
}

// Next returns the action to present as "next", or nil when nothing is
// workable.
func (r *Resolver) Next(ctx context.Context) (*action.Action, error) {
	return r.NextWith(ctx, r.cfg.Strategy)
}

// NextWith is Next with an explicit strategy for this call.
//
// The full workable set is resolved so the choice does not depend on the
// store's load order.
func (r *Resolver) NextWith(ctx context.Context, strategy Strategy) (*action.Action, error) {
	ctx, span := tracer.Start(ctx, "resolver.Next")
	defer span.End()

	workable, err := r.WorkableWith(ctx, strategy, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	next := graph.SelectNext(workable)
	if next == nil {
		span.SetAttributes(attribute.Bool("workgraph.all_done", true))
		return nil, nil
	}
	span.SetAttributes(attribute.String("workgraph.next_id", string(next.ID)))
	return next, nil
}
