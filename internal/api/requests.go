// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/models"
)

// IngestEventRequest is the body of POST /api/v1/events. EventID is supplied
// by the player so retries stay idempotent; OccurredAt is the player-side
// timestamp, the authoritative ordering key.
//
// ViewerID may be omitted when the request carries a bearer token: the token
// identity fills it in.
type IngestEventRequest struct {
	EventID         string  `json:"event_id" validate:"required,uuid"`
	VideoID         string  `json:"video_id" validate:"required,max=128"`
	ViewerID        string  `json:"viewer_id" validate:"omitempty,max=128"`
	EventType       string  `json:"event_type" validate:"required,oneof=play pause seek progress ended"`
	PositionSeconds float64 `json:"position_seconds" validate:"gte=0"`
	OccurredAt      string  `json:"occurred_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// toRawEvent converts the validated request into the assigner's input.
func (req *IngestEventRequest) toRawEvent() (*models.RawEvent, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, fmt.Errorf("event_id is not a valid UUID: %w", err)
	}
	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("occurred_at is not a valid RFC3339 timestamp: %w", err)
	}

	return &models.RawEvent{
		EventID:         eventID,
		VideoID:         req.VideoID,
		ViewerID:        req.ViewerID,
		EventType:       models.EventType(req.EventType),
		PositionSeconds: req.PositionSeconds,
		OccurredAt:      occurredAt.UTC(),
	}, nil
}

// CreateSessionRequest is the body of POST /api/v1/sessions: explicit
// session pre-registration ahead of the first event. StartedAt defaults to
// the server clock when omitted.
type CreateSessionRequest struct {
	VideoID   string `json:"video_id" validate:"required,max=128"`
	ViewerID  string `json:"viewer_id" validate:"omitempty,max=128"`
	StartedAt string `json:"started_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// topVideosParams keys the rollup cache for GET /api/v1/stats/top.
type topVideosParams struct {
	Limit int
	Since *time.Time
	Until *time.Time
}

// videoStatsParams keys the rollup cache for GET /api/v1/stats/video/{video_id}.
type videoStatsParams struct {
	VideoID string
	Since   *time.Time
	Until   *time.Time
}
