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
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/models"
)

const sessionColumns = `session_id, video_id, viewer_id, started_at, last_event_at,
	closed, total_watched_seconds, created_at, updated_at`

// InsertSession creates a new watch session row.
func (db *DB) InsertSession(ctx context.Context, s *models.WatchSession) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO watch_sessions
		(session_id, video_id, viewer_id, started_at, last_event_at,
		 closed, total_watched_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		s.ID.String(), s.VideoID, s.ViewerID,
		s.StartedAt.UTC(), s.LastEventAt.UTC(),
		s.Closed, s.TotalWatchedSeconds,
		s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession fetches a single session by ID. Returns ErrNotFound if the
// session does not exist.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.WatchSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM watch_sessions WHERE session_id = ?`
	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	s, err := scanSession(stmt.QueryRowContext(ctx, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

// FindOpenSession returns the open session for a (viewer, video) pair, or
// ErrNotFound if none is open. The assigner maintains at most one open
// session per pair; ordering by last_event_at guards reads during a brief
// overlap caused by an out-of-band writer.
func (db *DB) FindOpenSession(ctx context.Context, viewerID, videoID string) (*models.WatchSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM watch_sessions
		WHERE viewer_id = ? AND video_id = ? AND closed = FALSE
		ORDER BY last_event_at DESC LIMIT 1`
	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	s, err := scanSession(stmt.QueryRowContext(ctx, viewerID, videoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session for viewer=%s video=%s: %w", viewerID, videoID, err)
	}
	return s, nil
}

// AttachEvent folds an event into an open session: advances last_event_at
// (never backwards), accrues the watch delta, and optionally closes the
// session. The update is conditional on the session still being open; zero
// rows matched means a concurrent writer closed it first and ErrConflict is
// returned so the caller can re-evaluate against fresh state.
func (db *DB) AttachEvent(ctx context.Context, sessionID uuid.UUID, eventAt time.Time, deltaSeconds float64, closeSession bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE watch_sessions
		SET last_event_at = GREATEST(last_event_at, ?),
		    total_watched_seconds = total_watched_seconds + ?,
		    closed = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND closed = FALSE`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}

	result, err := stmt.ExecContext(ctx, eventAt.UTC(), deltaSeconds, closeSession, sessionID.String())
	if err != nil {
		return fmt.Errorf("failed to attach event to session %s: %w", sessionID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read attach result for session %s: %w", sessionID, err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrConflict)
	}
	return nil
}

// CloseSession marks a session closed. Closing an already-closed session
// returns ErrConflict; callers that treat re-closure as a no-op check the
// session state first or ignore the sentinel.
func (db *DB) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE watch_sessions
		SET closed = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND closed = FALSE`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}

	result, err := stmt.ExecContext(ctx, sessionID.String())
	if err != nil {
		return fmt.Errorf("failed to close session %s: %w", sessionID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read close result for session %s: %w", sessionID, err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrConflict)
	}
	return nil
}

// ListSessions lists sessions matching the filter, ordered by started_at
// descending (most recent first) with session_id as tie-breaker.
func (db *DB) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.WatchSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + sessionColumns + ` FROM watch_sessions WHERE 1=1`)
	args := make([]interface{}, 0, 5)

	if filter.VideoID != "" {
		sb.WriteString(" AND video_id = ?")
		args = append(args, filter.VideoID)
	}
	if filter.ViewerID != "" {
		sb.WriteString(" AND viewer_id = ?")
		args = append(args, filter.ViewerID)
	}
	if filter.Closed != nil {
		sb.WriteString(" AND closed = ?")
		args = append(args, *filter.Closed)
	}

	sb.WriteString(" ORDER BY started_at DESC, session_id ASC")
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
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer closeWithLog(rows, "session rows")

	sessions := make([]models.WatchSession, 0, filter.Limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session row iteration failed: %w", err)
	}
	return sessions, nil
}

// SweepStaleSessions closes every open session whose last event is older than
// the cutoff. Returns the number of sessions closed. This is bookkeeping:
// gap expiry is also evaluated lazily whenever an event arrives for the pair.
func (db *DB) SweepStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE watch_sessions
		SET closed = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE closed = FALSE AND last_event_at < ?`

	result, err := db.conn.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read sweep result: %w", err)
	}
	return rows, nil
}

func scanSession(row rowScanner) (*models.WatchSession, error) {
	var (
		s     models.WatchSession
		idStr string
	)
	err := row.Scan(&idStr, &s.VideoID, &s.ViewerID, &s.StartedAt, &s.LastEventAt,
		&s.Closed, &s.TotalWatchedSeconds, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if s.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid session_id %q: %w", idStr, err)
	}
	s.StartedAt = s.StartedAt.UTC()
	s.LastEventAt = s.LastEventAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
