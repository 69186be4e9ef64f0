// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/middleware"
	"github.com/watchpost/watchpost/internal/models"
)

// IngestEvent handles POST /api/v1/events: validates the raw event, assigns
// it to a watch session, and appends it to the store. Responds 201 for a new
// event and 200 with duplicate=true for an event ID that was already
// recorded.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req IngestEventRequest
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

	raw, err := req.toRawEvent()
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	result, err := h.assigner.Assign(r.Context(), raw)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	} else {
		metrics.EventsIngested.WithLabelValues(string(raw.EventType)).Inc()
		logging.Debug().
			Str("event_id", raw.EventID.String()).
			Str("video_id", sanitizeLogValue(raw.VideoID)).
			Str("session_id", result.Event.SessionID.String()).
			Bool("session_created", result.SessionCreated).
			Msg("Event ingested")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data: models.IngestResponse{
			EventID:   result.Event.ID.String(),
			SessionID: result.Event.SessionID.String(),
			Duplicate: result.Duplicate,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// ListEvents handles GET /api/v1/events with video_id, viewer_id, since,
// until, limit, and offset query parameters. Events are returned in
// occurred_at ascending order.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := h.getPagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	since, err := getTimeParam(r, "since")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	until, err := getTimeParam(r, "until")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	filter := models.EventFilter{
		VideoID:  r.URL.Query().Get("video_id"),
		ViewerID: r.URL.Query().Get("viewer_id"),
		Since:    since,
		Until:    until,
		// Fetch one extra row to detect whether more pages exist.
		Limit:  limit + 1,
		Offset: offset,
	}

	start := time.Now()
	events, err := h.db.QueryVideoEvents(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.EventsResponse{
			Events: events,
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

// GetEvent handles GET /api/v1/events/{event_id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "event_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "event_id must be a valid UUID", nil)
		return
	}

	start := time.Now()
	event, err := h.db.GetVideoEvent(r.Context(), eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   event,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
