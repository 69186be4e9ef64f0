// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"
	"time"

	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/models"
)

// HealthLive handles GET /api/v1/health/live. Liveness only says the process
// is serving; it never touches the database.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.HealthResponse{
			Status:    "alive",
			Timestamp: time.Now().UTC(),
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// HealthReady handles GET /api/v1/health/ready. Readiness requires a
// responsive database.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: "error",
			Data: models.HealthResponse{
				Status:    "not ready",
				Timestamp: time.Now().UTC(),
				Database:  "unreachable",
			},
			Error: &models.APIError{
				Code:    "DATABASE_ERROR",
				Message: "Database is not reachable",
			},
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC(),
			Database:  "ok",
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// Health handles GET /api/v1/health with version, uptime, database status,
// and store record counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	overall := "ok"
	status := http.StatusOK

	var events, sessions int64
	if err := h.db.Ping(r.Context()); err != nil {
		dbStatus = "unreachable"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	} else if events, sessions, err = h.db.GetRecordCounts(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("Failed to read record counts for health report")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data: models.HealthResponse{
			Status:        overall,
			Version:       Version,
			Timestamp:     time.Now().UTC(),
			Database:      dbStatus,
			UptimeSeconds: int64(time.Since(h.started).Seconds()),
			EventCount:    events,
			SessionCount:  sessions,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
