// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package database

import (
	"context"
	"fmt"
)

// createTables creates the core tables if they do not exist.
//
// video_events is append-only: rows are inserted once at ingest time and
// never updated or deleted. watched_delta_seconds is the watch time the event
// contributed to its session, computed by the assigner before insert, so
// rollups are plain SUMs over time-filtered events.
//
// watch_sessions carries denormalized bookkeeping (last_event_at,
// total_watched_seconds) maintained as events attach. The closed flag guards
// conditional updates: an UPDATE scoped to closed = FALSE that matches no
// rows signals a lost write race.
func (db *DB) createTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS video_events (
			event_id VARCHAR PRIMARY KEY,
			video_id VARCHAR NOT NULL,
			viewer_id VARCHAR NOT NULL,
			event_type VARCHAR NOT NULL,
			position_seconds DOUBLE NOT NULL DEFAULT 0,
			watched_delta_seconds DOUBLE NOT NULL DEFAULT 0,
			occurred_at TIMESTAMP NOT NULL,
			session_id VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS watch_sessions (
			session_id VARCHAR PRIMARY KEY,
			video_id VARCHAR NOT NULL,
			viewer_id VARCHAR NOT NULL,
			started_at TIMESTAMP NOT NULL,
			last_event_at TIMESTAMP NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			total_watched_seconds DOUBLE NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range tables {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates query indexes. Index choice follows the read paths:
// per-video and per-viewer time-range scans for listings and rollups, and the
// (viewer, video, closed) probe the assigner runs on every ingested event.
func (db *DB) createIndexes(ctx context.Context) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_video_occurred ON video_events(video_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_viewer_occurred ON video_events(viewer_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred ON video_events(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_pair_closed ON watch_sessions(viewer_id, video_id, closed)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON watch_sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_event ON watch_sessions(closed, last_event_at)`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
