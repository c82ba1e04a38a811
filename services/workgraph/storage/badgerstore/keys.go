// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AleutianAI/workgraph/services/workgraph/action"
)

// Key layout:
//
//	a/<id>                                 -> gob(action.Action)
//	x/incomplete/<recency>/<id>            -> gob(action.Action)
//	e/<kind>/<src>\x00<dst>                -> empty
//
// <recency> is MaxUint64 minus UpdatedAt in unix nanos, as 16 hex digits,
// so a forward scan yields UpdatedAt descending then ID ascending.
const (
	actionPrefix     = "a/"
	incompletePrefix = "x/incomplete/"
	edgePrefix       = "e/"
	edgeSep          = "\x00"
)

func actionKey(id action.ID) []byte {
	return []byte(actionPrefix + string(id))
}

func incompleteKey(a action.Action) []byte {
	return []byte(fmt.Sprintf("%s%016x/%s", incompletePrefix, recency(a.UpdatedAt), a.ID))
}

// recency expects t within the range action.ValidateForStore accepts.
func recency(t time.Time) uint64 {
	return math.MaxUint64 - uint64(t.UnixNano())
}

func edgeKindPrefix(kind action.EdgeKind) []byte {
	return []byte(edgePrefix + string(kind) + "/")
}

func edgeKey(e action.Edge) []byte {
	return []byte(edgePrefix + string(e.Kind) + "/" + string(e.Src) + edgeSep + string(e.Dst))
}

// parseEdgeKey reverses edgeKey for a key under edgeKindPrefix(kind).
func parseEdgeKey(kind action.EdgeKind, key []byte) (action.Edge, bool) {
	rest := strings.TrimPrefix(string(key), string(edgeKindPrefix(kind)))
	src, dst, ok := strings.Cut(rest, edgeSep)
	if !ok {
		return action.Edge{}, false
	}
	return action.Edge{Src: action.ID(src), Dst: action.ID(dst), Kind: kind}, true
}

func encodeAction(a action.Action) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("encode action %s: %w", a.ID, err)
	}
	return buf.Bytes(), nil
}

func decodeAction(data []byte) (action.Action, error) {
	var a action.Action
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return action.Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}
