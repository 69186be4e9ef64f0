// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/models"
)

const eventColumns = `event_id, video_id, viewer_id, event_type, position_seconds,
	watched_delta_seconds, occurred_at, session_id, created_at`

// InsertVideoEvent appends a watch event. The insert is idempotent on
// event_id: a re-send of an already-recorded ID is a no-op and the method
// returns inserted=false with no error. Timestamps are normalized to UTC
// before storage.
func (db *DB) InsertVideoEvent(ctx context.Context, ev *models.VideoEvent) (inserted bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO video_events
		(event_id, video_id, viewer_id, event_type, position_seconds,
		 watched_delta_seconds, occurred_at, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return false, err
	}

	result, err := stmt.ExecContext(ctx,
		ev.ID.String(), ev.VideoID, ev.ViewerID, string(ev.EventType),
		ev.PositionSeconds, ev.WatchedDeltaSeconds,
		ev.OccurredAt.UTC(), ev.SessionID.String(), ev.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for event %s: %w", ev.ID, err)
	}
	return rows > 0, nil
}

// GetVideoEvent fetches a single event by ID. Returns ErrNotFound if the
// event does not exist.
func (db *DB) GetVideoEvent(ctx context.Context, id uuid.UUID) (*models.VideoEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + eventColumns + ` FROM video_events WHERE event_id = ?`
	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	ev, err := scanEvent(stmt.QueryRowContext(ctx, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return ev, nil
}

// QueryVideoEvents lists events matching the filter, ordered by occurred_at
// ascending with event_id as tie-breaker so repeated queries over unchanged
// data return identical sequences.
func (db *DB) QueryVideoEvents(ctx context.Context, filter models.EventFilter) ([]models.VideoEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + eventColumns + ` FROM video_events WHERE 1=1`)
	args := make([]interface{}, 0, 6)

	if filter.VideoID != "" {
		sb.WriteString(" AND video_id = ?")
		args = append(args, filter.VideoID)
	}
	if filter.ViewerID != "" {
		sb.WriteString(" AND viewer_id = ?")
		args = append(args, filter.ViewerID)
	}
	if filter.Since != nil {
		sb.WriteString(" AND occurred_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		sb.WriteString(" AND occurred_at < ?")
		args = append(args, filter.Until.UTC())
	}

	sb.WriteString(" ORDER BY occurred_at ASC, event_id ASC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer closeWithLog(rows, "event rows")

	events := make([]models.VideoEvent, 0, filter.Limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event row iteration failed: %w", err)
	}
	return events, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.VideoEvent, error) {
	var (
		ev                models.VideoEvent
		idStr, sessionStr string
		eventType         string
	)
	err := row.Scan(&idStr, &ev.VideoID, &ev.ViewerID, &eventType,
		&ev.PositionSeconds, &ev.WatchedDeltaSeconds,
		&ev.OccurredAt, &sessionStr, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}

	if ev.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid event_id %q: %w", idStr, err)
	}
	if ev.SessionID, err = uuid.Parse(sessionStr); err != nil {
		return nil, fmt.Errorf("invalid session_id %q: %w", sessionStr, err)
	}
	ev.EventType = models.EventType(eventType)
	ev.OccurredAt = ev.OccurredAt.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	return &ev, nil
}
