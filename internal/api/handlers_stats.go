// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/cache"
	"github.com/watchpost/watchpost/internal/models"
)

// TopVideos handles GET /api/v1/stats/top: the most-watched videos over an
// optional since/until range, ranked by total watch seconds with
// deterministic tie-breaking. Responses are cached for the configured TTL;
// rollups tolerate slightly stale reads.
func (h *Handler) TopVideos(w http.ResponseWriter, r *http.Request) {
	rng, apiErr := getStatsRange(r)
	if apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Error:    apiErr,
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	limit, err := h.getLimitParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	key := cache.GenerateKey("topVideos", topVideosParams{Limit: limit, Since: rng.Since, Until: rng.Until})
	if cached, ok := h.cache.Get(key); ok {
		respondJSON(w, http.StatusOK, &models.APIResponse{
			Status:   "success",
			Data:     cached,
			Metadata: models.Metadata{Timestamp: time.Now().UTC(), Cached: true},
		})
		return
	}

	start := time.Now()
	stats, err := h.db.TopVideos(r.Context(), rng, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	response := models.TopVideosResponse{Videos: stats}
	h.cache.Set(key, response)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   response,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// VideoStats handles GET /api/v1/stats/video/{video_id}: the rollup for one
// video over an optional since/until range. A video with no recorded events
// yields a zero-valued stat with HTTP 200 — absence of data is not an error.
func (h *Handler) VideoStats(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	if videoID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "video_id is required", nil)
		return
	}

	rng, apiErr := getStatsRange(r)
	if apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Error:    apiErr,
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	key := cache.GenerateKey("videoStats", videoStatsParams{VideoID: videoID, Since: rng.Since, Until: rng.Until})
	if cached, ok := h.cache.Get(key); ok {
		respondJSON(w, http.StatusOK, &models.APIResponse{
			Status:   "success",
			Data:     cached,
			Metadata: models.Metadata{Timestamp: time.Now().UTC(), Cached: true},
		})
		return
	}

	start := time.Now()
	stat, err := h.db.VideoStats(r.Context(), videoID, rng)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.cache.Set(key, stat)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   stat,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
