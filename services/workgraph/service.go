// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workgraph exposes the workable-action resolver over HTTP.
//
// The API is read-only. Writes go through the CLI or any other producer
// that owns an action.Writer.
package workgraph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/resolver"
)

// ServiceVersion is the workgraph service version.
const ServiceVersion = "0.1.0"

// Service answers workable and next queries on top of a Resolver.
//
// Concurrent identical requests share one resolution through a singleflight
// group, so a burst of polling clients costs one set of store reads.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	resolver     *resolver.Resolver
	defaultLimit int
	logger       *slog.Logger
	group        singleflight.Group
}

// NewService creates a service.
//
// Inputs:
//
//	r - The resolver. Must not be nil.
//	defaultLimit - Limit applied when a request does not give one.
//	logger - Logger. Nil uses slog.Default().
func NewService(r *resolver.Resolver, defaultLimit int, logger *slog.Logger) (*Service, error) {
	if r == nil {
		return nil, ErrNilResolver
	}
	if defaultLimit < 0 {
		return nil, fmt.Errorf("%w: default %d", ErrInvalidLimit, defaultLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:     r,
		defaultLimit: defaultLimit,
		logger:       logger.With(slog.String("component", "workgraph_service")),
	}, nil
}

// Resolver returns the underlying resolver.
func (s *Service) Resolver() *resolver.Resolver {
	return s.resolver
}

// DefaultLimit returns the limit used when a request omits one.
func (s *Service) DefaultLimit() int {
	return s.defaultLimit
}

// Workable resolves the workable set with strategy and limit.
//
// Description:
//
//	Coalesces concurrent calls with the same strategy and limit. The shared
//	resolution runs detached from any single caller's cancellation and is
//	bounded by the resolver's load timeout; each caller still returns as
//	soon as its own context is done.
//
// Outputs:
//
//	[]action.Action - Shared result. Callers must not modify it.
//	error - Resolver errors, or ctx.Err() when the caller gives up first.
func (s *Service) Workable(ctx context.Context, strategy resolver.Strategy, limit int) ([]action.Action, error) {
	key := fmt.Sprintf("workable:%s:%d", strategy, limit)
	v, err := s.do(ctx, key, func(shared context.Context) (any, error) {
		return s.resolver.WorkableWith(shared, strategy, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]action.Action), nil
}

// Next returns the action to work on next, or nil when nothing is workable.
func (s *Service) Next(ctx context.Context, strategy resolver.Strategy) (*action.Action, error) {
	key := fmt.Sprintf("next:%s", strategy)
	v, err := s.do(ctx, key, func(shared context.Context) (any, error) {
		return s.resolver.NextWith(shared, strategy)
	})
	if err != nil {
		return nil, err
	}
	return v.(*action.Action), nil
}

func (s *Service) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("coalesced request", slog.String("key", key))
		}
		return res.Val, res.Err
	}
}
