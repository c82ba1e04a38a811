// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"errors"
)

var (
	// ErrLoadTimeout indicates the bulk-load sequence exceeded its ceiling.
	// No partial result is returned alongside it. Callers may retry.
	ErrLoadTimeout = errors.New("workgraph load timed out")

	// ErrNilReader indicates the resolver was built without a store reader.
	ErrNilReader = errors.New("store reader must not be nil")

	// ErrNoQuerier indicates the single-query strategy was requested but the
	// store offers no aggregate querier.
	ErrNoQuerier = errors.New("store does not support single-query resolution")

	// ErrUnknownStrategy indicates an unrecognised strategy name.
	ErrUnknownStrategy = errors.New("unknown resolution strategy")

	// ErrUnknownPolicy indicates an unrecognised composition policy.
	ErrUnknownPolicy = errors.New("unknown composition policy")
)

// IsRetryable reports whether err is transient and the same request may
// succeed if issued again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLoadTimeout) || errors.Is(err, context.DeadlineExceeded)
}
