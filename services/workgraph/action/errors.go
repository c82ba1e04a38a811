// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package action

import "errors"

var (
	// ErrNotFound indicates the requested action does not exist.
	ErrNotFound = errors.New("action not found")

	// ErrInvalidID indicates an empty or unstorable action id.
	ErrInvalidID = errors.New("invalid action id")

	// ErrInvalidEdge indicates an edge with an unknown kind or bad endpoint.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidTime indicates an UpdatedAt outside the storable range.
	ErrInvalidTime = errors.New("invalid action timestamp")

	// ErrSelfEdge indicates an edge whose source and destination are equal.
	ErrSelfEdge = errors.New("edge source and destination must differ")
)
