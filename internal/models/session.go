// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import (
	"time"

	"github.com/google/uuid"
)

// WatchSession groups consecutive watch events for one (viewer, video) pair.
// A session stays open while events keep arriving within the configured gap
// threshold of its last event; it closes when an ended event arrives or when
// the gap is exceeded.
//
// Denormalized fields (LastEventAt, TotalWatchedSeconds) are maintained by
// the session assigner as events attach; they are bookkeeping for queries,
// not the source of truth for rollups, which aggregate per-event deltas.
type WatchSession struct {
	ID                  uuid.UUID `json:"session_id"`
	VideoID             string    `json:"video_id"`
	ViewerID            string    `json:"viewer_id"`
	StartedAt           time.Time `json:"started_at"`
	LastEventAt         time.Time `json:"last_event_at"`
	Closed              bool      `json:"closed"`
	TotalWatchedSeconds float64   `json:"total_watched_seconds"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SessionFilter narrows session listing queries. Zero values mean "no filter";
// Closed filters on closure state when non-nil. Results are ordered by
// started_at descending (most recent sessions first).
type SessionFilter struct {
	VideoID  string
	ViewerID string
	Closed   *bool
	Limit    int
	Offset   int
}
