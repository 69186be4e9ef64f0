// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/middleware"
	"github.com/watchpost/watchpost/internal/models"
)

// CreateSession handles POST /api/v1/sessions: explicit session
// pre-registration, for players that want a session ID before the first
// event fires. If the pair already has an open session within the gap
// threshold, that session is returned with a 200 instead of creating a
// second one.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body is not valid JSON", nil)
		return
	}

	// A bearer token supplies the viewer identity when the body omits it.
	if req.ViewerID == "" {
		req.ViewerID = middleware.GetViewerID(r.Context())
	}
	if req.ViewerID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"viewer_id is required (in the body or via bearer token)", nil)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Error:    apiErr,
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	var startedAt time.Time
	if req.StartedAt != "" {
		var err error
		if startedAt, err = time.Parse(time.RFC3339, req.StartedAt); err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"started_at is not a valid RFC3339 timestamp", nil)
			return
		}
	}

	sess, created, err := h.assigner.StartSession(r.Context(), req.ViewerID, req.VideoID, startedAt)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     sess,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// ListSessions handles GET /api/v1/sessions with video_id, viewer_id, closed,
// limit, and offset query parameters. Sessions are returned most recent
// first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := h.getPagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	filter := models.SessionFilter{
		VideoID:  r.URL.Query().Get("video_id"),
		ViewerID: r.URL.Query().Get("viewer_id"),
		Limit:    limit + 1,
		Offset:   offset,
	}

	if raw := r.URL.Query().Get("closed"); raw != "" {
		closed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "closed must be true or false", nil)
			return
		}
		filter.Closed = &closed
	}

	start := time.Now()
	sessions, err := h.db.ListSessions(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	hasMore := len(sessions) > limit
	if hasMore {
		sessions = sessions[:limit]
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.SessionsResponse{
			Sessions: sessions,
			Pagination: models.PaginationInfo{
				Limit:   limit,
				Offset:  offset,
				HasMore: hasMore,
			},
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// GetSession handles GET /api/v1/sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "session_id must be a valid UUID", nil)
		return
	}

	start := time.Now()
	session, err := h.db.GetSession(r.Context(), sessionID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   session,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
