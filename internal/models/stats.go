// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// VideoStat is a per-video rollup over a time range. Watch time is the sum of
// per-event watched deltas whose occurred_at falls inside the range, so an
// event is counted in exactly one range regardless of session boundaries.
//
// LastActivityAt is nil when the video has no events in the range; such a
// query yields a zero-valued stat rather than an error.
type VideoStat struct {
	VideoID           string     `json:"video_id"`
	EventCount        int64      `json:"event_count"`
	TotalWatchSeconds float64    `json:"total_watch_seconds"`
	UniqueViewers     int64      `json:"unique_viewers"`
	LastActivityAt    *time.Time `json:"last_activity_at,omitempty"`
}

// StatsRange bounds rollup queries. Nil endpoints mean unbounded on that
// side; Since is inclusive and Until exclusive.
type StatsRange struct {
	Since *time.Time
	Until *time.Time
}
