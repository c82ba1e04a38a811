// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workgraph

import "errors"

// Sentinel errors for the workgraph HTTP service.
var (
	// ErrNilResolver indicates NewService was called without a resolver.
	ErrNilResolver = errors.New("resolver must not be nil")

	// ErrInvalidLimit indicates a negative or oversized limit.
	ErrInvalidLimit = errors.New("invalid limit")
)
