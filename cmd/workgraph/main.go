// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command workgraph answers "what can I work on now?" over an action graph.
//
// Usage:
//
//	workgraph init
//	workgraph seed plan.yaml
//	workgraph workable --limit 10
//	workgraph next
//	workgraph done write-docs
//	workgraph serve --port 8095
//
// Example requests against a running server:
//
//	curl http://localhost:8095/v1/workgraph/health
//	curl 'http://localhost:8095/v1/workgraph/workable?limit=5&strategy=pushdown'
//	curl http://localhost:8095/v1/workgraph/next
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
