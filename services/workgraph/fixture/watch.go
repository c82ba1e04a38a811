// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for after the last change.
const DefaultDebounce = 200 * time.Millisecond

// ChangeHandler receives the reloaded graph, or the load error when the new
// contents are invalid. It runs on the watcher goroutine.
type ChangeHandler func(g *Graph, err error)

// Watch reloads the fixture at path whenever it changes.
//
// Description:
//
//	Watches the parent directory so editors that save by rename are
//	seen. Bursts of events for the file are coalesced: handler runs once
//	debounce after the last event. Blocks until ctx is done.
//
// Inputs:
//
//	ctx - Stops the watch when cancelled.
//	path - Fixture file.
//	debounce - Quiet period. Zero or less means DefaultDebounce.
//	handler - Called with each reload result.
//	logger - Logger. Nil uses slog.Default().
//
// Outputs:
//
//	error - Non-nil if the watcher cannot start. Nil after ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, handler ChangeHandler, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve fixture path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("watching fixture", slog.String("path", abs))

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			g, err := LoadFile(abs)
			handler(g, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fixture watcher error", slog.String("error", err.Error()))
		}
	}
}
