// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlstore

// schema creates the two relations. Timestamps are unix nanoseconds so that
// ordering is exact and driver independent. Edges carry no foreign keys:
// dangling references are legal and simply never block.
const schema = `
CREATE TABLE IF NOT EXISTS actions (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	done       INTEGER NOT NULL DEFAULT 0,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_done_updated
	ON actions (done, updated_at DESC, id);

CREATE TABLE IF NOT EXISTS edges (
	src        TEXT NOT NULL,
	dst        TEXT NOT NULL,
	kind       TEXT NOT NULL CHECK (kind IN ('composition', 'dependency')),
	created_at INTEGER NOT NULL,
	PRIMARY KEY (src, dst, kind)
);

CREATE INDEX IF NOT EXISTS idx_edges_kind_dst ON edges (kind, dst);
CREATE INDEX IF NOT EXISTS idx_edges_kind_src ON edges (kind, src);
`

// workableQuery evaluates the workability predicate in one statement.
//
// Stages:
//
//	incomplete             every action with done = 0
//	blocked_by_dependency  incomplete actions with an incomplete prerequisite;
//	                       under the consolidated policy a composition edge
//	                       (P, C) also makes P depend on C
//	blocked_by_children    legacy only: incomplete containers with an
//	                       incomplete child
//
// Prerequisites and children are joined against actions, so references to
// missing rows drop out and do not block.
//
// Parameters: ?1 policy, ?2 limit (-1 for uncapped).
const workableQuery = `
WITH incomplete AS (
	SELECT id, title, done, version, created_at, updated_at
	FROM actions
	WHERE done = 0
),
blocked_by_dependency AS (
	SELECT e.dst AS id
	FROM edges e
	JOIN incomplete i ON i.id = e.dst
	JOIN actions p ON p.id = e.src
	WHERE e.kind = 'dependency' AND p.done = 0
	UNION
	SELECT e.src AS id
	FROM edges e
	JOIN incomplete i ON i.id = e.src
	JOIN actions c ON c.id = e.dst
	WHERE ?1 = 'consolidated' AND e.kind = 'composition' AND c.done = 0
),
blocked_by_children AS (
	SELECT e.src AS id
	FROM edges e
	JOIN incomplete i ON i.id = e.src
	JOIN actions c ON c.id = e.dst
	WHERE ?1 = 'legacy' AND e.kind = 'composition' AND c.done = 0
)
SELECT id, title, done, version, created_at, updated_at
FROM incomplete
WHERE id NOT IN (SELECT id FROM blocked_by_dependency)
  AND id NOT IN (SELECT id FROM blocked_by_children)
ORDER BY updated_at DESC, id ASC
LIMIT ?2
`
