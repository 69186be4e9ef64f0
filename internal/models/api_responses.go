// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
// It provides a consistent structure for both successful and error responses,
// with metadata for observability and caching information.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"videos": [...]},
//	  "metadata": {
//	    "timestamp": "2026-08-30T12:00:00Z",
//	    "query_time_ms": 12,
//	    "cached": false
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "EventType must be one of: play pause seek progress ended",
//	    "details": {"field": "EventType"}
//	  },
//	  "metadata": {"timestamp": "2026-08-30T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability and performance
// tracking. Cached responses report QueryTimeMS of 0 with Cached set; fresh
// queries report the actual database execution time.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError carries structured error details in a consistent format across
// all endpoints.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - CONFLICT: Duplicate or concurrent-write collision
//   - NOT_FOUND: Resource doesn't exist
//   - DATABASE_ERROR: Query execution failure
//   - AUTHENTICATION_ERROR: Invalid/missing credentials
//   - RATE_LIMIT_EXCEEDED: Too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PaginationInfo describes the window a list response covers. Offset-based:
// event and session listings are bounded, time-filtered scans, so an offset
// window is cheap and keeps clients simple.
type PaginationInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// IngestResponse is returned by the event ingestion endpoint. Duplicate is
// true when the event ID was already recorded; the original SessionID is
// returned and no state changed.
type IngestResponse struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// EventsResponse wraps an event listing with its pagination window.
type EventsResponse struct {
	Events     []VideoEvent   `json:"events"`
	Pagination PaginationInfo `json:"pagination"`
}

// SessionsResponse wraps a session listing with its pagination window.
type SessionsResponse struct {
	Sessions   []WatchSession `json:"sessions"`
	Pagination PaginationInfo `json:"pagination"`
}

// TopVideosResponse carries a ranked top-videos rollup. Videos are ordered by
// total watch seconds descending, then event count descending, then video ID
// ascending so that equal-ranking videos always list in a stable order.
type TopVideosResponse struct {
	Videos []VideoStat `json:"videos"`
}

// HealthResponse reports service health for liveness and readiness probes.
// The full health endpoint adds version, uptime, and store record counts.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Database      string    `json:"database,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds,omitempty"`
	EventCount    int64     `json:"event_count,omitempty"`
	SessionCount  int64     `json:"session_count,omitempty"`
}
