// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/watchpost/watchpost/internal/models"
)

// TopVideos returns per-video rollups over the time range, ranked by total
// watch seconds descending. Ties break on event count descending, then video
// ID ascending, so equal-ranking videos always list in a stable order.
//
// Watch time sums the per-event watched deltas whose occurred_at falls inside
// the range, so each event is attributed to exactly one range regardless of
// where its session started or ended.
func (db *DB) TopVideos(ctx context.Context, rng models.StatsRange, limit int) ([]models.VideoStat, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT video_id,
		COUNT(*) AS event_count,
		COALESCE(SUM(watched_delta_seconds), 0) AS total_watch_seconds,
		COUNT(DISTINCT viewer_id) AS unique_viewers,
		MAX(occurred_at) AS last_activity_at
		FROM video_events WHERE 1=1`)
	args := make([]interface{}, 0, 3)

	if rng.Since != nil {
		sb.WriteString(" AND occurred_at >= ?")
		args = append(args, rng.Since.UTC())
	}
	if rng.Until != nil {
		sb.WriteString(" AND occurred_at < ?")
		args = append(args, rng.Until.UTC())
	}

	sb.WriteString(` GROUP BY video_id
		ORDER BY total_watch_seconds DESC, event_count DESC, video_id ASC
		LIMIT ?`)
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top videos: %w", err)
	}
	defer closeWithLog(rows, "top video rows")

	stats := make([]models.VideoStat, 0, limit)
	for rows.Next() {
		var (
			stat         models.VideoStat
			lastActivity sql.NullTime
		)
		if err := rows.Scan(&stat.VideoID, &stat.EventCount, &stat.TotalWatchSeconds,
			&stat.UniqueViewers, &lastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan video stat: %w", err)
		}
		if lastActivity.Valid {
			ts := lastActivity.Time.UTC()
			stat.LastActivityAt = &ts
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top video row iteration failed: %w", err)
	}
	return stats, nil
}

// VideoStats returns the rollup for a single video over the time range. A
// video with no events in the range yields a zero-valued stat with a nil
// LastActivityAt, never an error: absence of activity is a valid answer.
func (db *DB) VideoStats(ctx context.Context, videoID string, rng models.StatsRange) (*models.VideoStat, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT
		COUNT(*) AS event_count,
		COALESCE(SUM(watched_delta_seconds), 0) AS total_watch_seconds,
		COUNT(DISTINCT viewer_id) AS unique_viewers,
		MAX(occurred_at) AS last_activity_at
		FROM video_events WHERE video_id = ?`)
	args := []interface{}{videoID}

	if rng.Since != nil {
		sb.WriteString(" AND occurred_at >= ?")
		args = append(args, rng.Since.UTC())
	}
	if rng.Until != nil {
		sb.WriteString(" AND occurred_at < ?")
		args = append(args, rng.Until.UTC())
	}

	stat := &models.VideoStat{VideoID: videoID}
	var lastActivity sql.NullTime
	err := db.conn.QueryRowContext(ctx, sb.String(), args...).Scan(
		&stat.EventCount, &stat.TotalWatchSeconds, &stat.UniqueViewers, &lastActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats for video %s: %w", videoID, err)
	}
	if lastActivity.Valid {
		ts := lastActivity.Time.UTC()
		stat.LastActivityAt = &ts
	}
	return stat, nil
}
