// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package models contains the shared data structures for Watchpost:
// watch events, watch sessions, video rollup statistics, and the API
// response envelope.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a player action within a watch event.
type EventType string

// Recognized watch event types.
const (
	EventPlay     EventType = "play"
	EventPause    EventType = "pause"
	EventSeek     EventType = "seek"
	EventProgress EventType = "progress"
	EventEnded    EventType = "ended"
)

// Valid reports whether the event type is one of the recognized kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventPlay, EventPause, EventSeek, EventProgress, EventEnded:
		return true
	}
	return false
}

// ActivePlayback reports whether this event type accrues watch time.
// Only play and progress indicate the viewer is actually watching;
// pause and seek alone never accrue time.
func (t EventType) ActivePlayback() bool {
	return t == EventPlay || t == EventProgress
}

// RawEvent is an ingested player action before session assignment. The
// session assigner turns it into a VideoEvent by resolving a session and
// computing the watch-time delta.
type RawEvent struct {
	EventID         uuid.UUID
	VideoID         string
	ViewerID        string
	EventType       EventType
	PositionSeconds float64
	OccurredAt      time.Time
}

// VideoEvent is an immutable, time-indexed fact recording a single player
// action. Events are created once on ingestion and never mutated or deleted.
//
// WatchedDeltaSeconds is the wall-clock watch time this event contributed to
// its session, computed by the session assigner at ingest time. Storing the
// delta per event lets time-range rollups attribute watch time individually
// by OccurredAt without splitting sessions that span a range boundary.
type VideoEvent struct {
	ID                  uuid.UUID `json:"event_id"`
	VideoID             string    `json:"video_id"`
	ViewerID            string    `json:"viewer_id"`
	EventType           EventType `json:"event_type"`
	PositionSeconds     float64   `json:"position_seconds"`
	WatchedDeltaSeconds float64   `json:"watched_delta_seconds"`
	OccurredAt          time.Time `json:"occurred_at"`
	SessionID           uuid.UUID `json:"session_id"`
	CreatedAt           time.Time `json:"created_at"`
}

// EventFilter narrows event store queries. Zero values mean "no filter".
// Results are always ordered by occurred_at ascending so that re-running the
// same query yields the same sequence when no new writes occurred.
type EventFilter struct {
	VideoID  string
	ViewerID string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}
