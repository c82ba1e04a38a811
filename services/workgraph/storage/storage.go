// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage selects a relation store adapter from configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
	"github.com/AleutianAI/workgraph/services/workgraph/config"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badger"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/badgerstore"
	"github.com/AleutianAI/workgraph/services/workgraph/storage/sqlstore"
)

// ErrUnknownDriver indicates an unsupported store driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Backend is everything an adapter offers.
type Backend interface {
	action.Reader
	action.AggregateQuerier
	action.Writer
	Close() error
}

// Open opens the backend described by cfg.
//
// Inputs:
//
//	ctx - Bounds schema migration for SQL backends.
//	cfg - Store section of the configuration.
//	logger - Logger passed to the adapter. May be nil.
//
// Outputs:
//
//	Backend - The open store. Caller must Close it.
//	error - ErrUnknownDriver or the adapter's open error.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Driver {
	case "badger", "":
		bcfg := badger.DefaultConfig(cfg.Path)
		bcfg.InMemory = cfg.InMemory
		bcfg.SyncWrites = cfg.SyncWrites
		bcfg.Logger = logger
		if cfg.InMemory {
			bcfg.GCInterval = 0
		}
		s, err := badgerstore.Open(bcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlstore.Open(ctx, sqlstore.Config{Path: cfg.Path, InMemory: cfg.InMemory}, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
