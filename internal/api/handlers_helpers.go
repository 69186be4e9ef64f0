// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/database"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/session"
	"github.com/watchpost/watchpost/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent log
// injection: newlines and other control characters could otherwise forge log
// entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a hash
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondStoreError maps storage and assignment errors to API status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", "Concurrent write conflict, retry the request", err)
	case errors.Is(err, session.ErrInvalidEvent):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Query execution failed", err)
	}
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getTimeParam parses an RFC3339 query parameter. Returns nil when absent and
// an error when present but malformed: a bad time bound is a client error,
// never silently ignored.
func getTimeParam(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	utc := ts.UTC()
	return &utc, nil
}

// getLimitParam parses the limit query parameter. Absent means the configured
// default. A present value must be a positive integer: zero, negative, or
// unparseable limits are a client error, never silently replaced. Values
// above the configured maximum clamp to it.
func (h *Handler) getLimitParam(r *http.Request) (int, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return h.cfg.API.DefaultPageSize, nil
	}

	limit, err := strconv.Atoi(value)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}
	return limit, nil
}

// getPagination resolves limit/offset query parameters against the configured
// page size bounds. An invalid limit is returned as an error for the caller
// to surface as a validation failure.
func (h *Handler) getPagination(r *http.Request) (limit, offset int, err error) {
	limit, err = h.getLimitParam(r)
	if err != nil {
		return 0, 0, err
	}

	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

// getStatsRange parses the since/until bounds shared by the rollup endpoints.
func getStatsRange(r *http.Request) (models.StatsRange, *models.APIError) {
	since, err := getTimeParam(r, "since")
	if err != nil {
		return models.StatsRange{}, &models.APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	}
	until, err := getTimeParam(r, "until")
	if err != nil {
		return models.StatsRange{}, &models.APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	}
	if since != nil && until != nil && until.Before(*since) {
		return models.StatsRange{}, &models.APIError{Code: "VALIDATION_ERROR", Message: "until must not be before since"}
	}
	return models.StatsRange{Since: since, Until: until}, nil
}
