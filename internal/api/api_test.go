// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/cache"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/database"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/session"
)

// setupAPI builds the full router backed by an in-memory database.
func setupAPI(t *testing.T) (http.Handler, *cache.Cache) {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 3857},
		Database: config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2, PreserveInsertionOrder: true},
		Session:  config.SessionConfig{GapThreshold: 30 * time.Minute, RetryAttempts: 3, RetryBackoff: time.Millisecond},
		API:      config.APIConfig{DefaultPageSize: 20, MaxPageSize: 100, RateLimitReqs: 10000, RateLimitWindow: time.Minute, CacheTTL: time.Minute},
		Metrics:  config.MetricsConfig{Enabled: false},
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	queryCache := cache.New(cfg.API.CacheTTL)
	assigner := session.NewAssigner(db, &cfg.Session)
	handler := NewHandler(db, assigner, queryCache, cfg)
	return NewRouter(handler).Setup(), queryCache
}

type apiEnvelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Error    *models.APIError `json:"error"`
	Metadata models.Metadata  `json:"metadata"`
}

// doRequest performs a request against the router and decodes the envelope.
func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, *apiEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	envelope := &apiEnvelope{}
	if err := json.Unmarshal(rec.Body.Bytes(), envelope); err != nil {
		t.Fatalf("response is not a valid envelope: %v (body: %s)", err, rec.Body.String())
	}
	return rec, envelope
}

// ingestBody builds a valid ingestion request body.
func ingestBody(videoID, viewerID, eventType string, occurredAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"event_id":         uuid.New().String(),
		"video_id":         videoID,
		"viewer_id":        viewerID,
		"event_type":       eventType,
		"position_seconds": 0.0,
		"occurred_at":      occurredAt.Format(time.RFC3339),
	}
}

// ingest posts one event and returns the decoded ingest response.
func ingest(t *testing.T, handler http.Handler, body map[string]interface{}) models.IngestResponse {
	t.Helper()

	rec, envelope := doRequest(t, handler, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp models.IngestResponse
	if err := json.Unmarshal(envelope.Data, &resp); err != nil {
		t.Fatalf("failed to decode ingest response: %v", err)
	}
	return resp
}

func TestIngestEventCreated(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	body := ingestBody("vid-1", "viewer-1", "play", base)
	rec, envelope := doRequest(t, handler, http.MethodPost, "/api/v1/events", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q, want success", envelope.Status)
	}

	var resp models.IngestResponse
	if err := json.Unmarshal(envelope.Data, &resp); err != nil {
		t.Fatalf("failed to decode ingest response: %v", err)
	}
	if resp.EventID != body["event_id"] {
		t.Errorf("event_id = %s, want %s", resp.EventID, body["event_id"])
	}
	if resp.SessionID == "" || resp.Duplicate {
		t.Errorf("unexpected ingest response: %+v", resp)
	}
}

func TestIngestEventDuplicateReplay(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	body := ingestBody("vid-1", "viewer-1", "play", base)
	first := ingest(t, handler, body)

	rec, envelope := doRequest(t, handler, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", rec.Code)
	}

	var resp models.IngestResponse
	if err := json.Unmarshal(envelope.Data, &resp); err != nil {
		t.Fatalf("failed to decode replay response: %v", err)
	}
	if !resp.Duplicate {
		t.Error("replay should report duplicate")
	}
	if resp.SessionID != first.SessionID {
		t.Errorf("replay session = %s, want original %s", resp.SessionID, first.SessionID)
	}
}

func TestIngestEventValidation(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"unknown event type", func(b map[string]interface{}) { b["event_type"] = "rewind" }},
		{"missing video id", func(b map[string]interface{}) { delete(b, "video_id") }},
		{"missing viewer id", func(b map[string]interface{}) { delete(b, "viewer_id") }},
		{"malformed event id", func(b map[string]interface{}) { b["event_id"] = "not-a-uuid" }},
		{"negative position", func(b map[string]interface{}) { b["position_seconds"] = -5.0 }},
		{"malformed timestamp", func(b map[string]interface{}) { b["occurred_at"] = "yesterday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ingestBody("vid-1", "viewer-1", "play", base)
			tt.mutate(body)

			rec, envelope := doRequest(t, handler, http.MethodPost, "/api/v1/events", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
			}
		})
	}
}

func TestIngestEventRejectsMalformedJSON(t *testing.T) {
	handler, _ := setupAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListEventsPagination(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ingest(t, handler, ingestBody("vid-1", "viewer-1", "progress", base.Add(time.Duration(i)*time.Minute)))
	}

	rec, envelope := doRequest(t, handler, http.MethodGet, "/api/v1/events?video_id=vid-1&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.EventsResponse
	if err := json.Unmarshal(envelope.Data, &resp); err != nil {
		t.Fatalf("failed to decode events response: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Errorf("got %d events, want 2", len(resp.Events))
	}
	if !resp.Pagination.HasMore {
		t.Error("HasMore should be true with 5 events and limit 2")
	}
	// Ascending occurred_at order.
	if !resp.Events[0].OccurredAt.Before(resp.Events[1].OccurredAt) {
		t.Error("events not in ascending occurred_at order")
	}

	// Last page.
	rec, envelope = doRequest(t, handler, http.MethodGet, "/api/v1/events?video_id=vid-1&limit=2&offset=4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(envelope.Data, &resp); err != nil {
		t.Fatalf("failed to decode events response: %v", err)
	}
	if len(resp.Events) != 1 || resp.Pagination.HasMore {
		t.Errorf("last page: %d events, HasMore=%v, want 1 and false", len(resp.Events), resp.Pagination.HasMore)
	}
}

func TestListingsRejectBadLimit(t *testing.T) {
	handler, _ := setupAPI(t)

	for _, path := range []string{"/api/v1/events", "/api/v1/sessions"} {
		for _, limit := range []string{"0", "-1", "abc"} {
			t.Run(path+" limit "+limit, func(t *testing.T) {
				rec, envelope := doRequest(t, handler, http.MethodGet, path+"?limit="+limit, nil)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("status = %d, want 400", rec.Code)
				}
				if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
					t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
				}
			})
		}
	}
}

func TestGetEvent(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	body := ingestBody("vid-1", "viewer-1", "play", base)
	ingest(t, handler, body)

	t.Run("found", func(t *testing.T) {
		rec, envelope := doRequest(t, handler, http.MethodGet, "/api/v1/events/"+body["event_id"].(string), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var ev models.VideoEvent
		if err := json.Unmarshal(envelope.Data, &ev); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if ev.VideoID != "vid-1" {
			t.Errorf("video_id = %s, want vid-1", ev.VideoID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec, envelope := doRequest(t, handler, http.MethodGet, "/api/v1/events/"+uuid.New().String(), nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if envelope.Error == nil || envelope.Error.Code != "NOT_FOUND" {
			t.Errorf("error = %+v, want NOT_FOUND", envelope.Error)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		rec, _ := doRequest(t, handler, http.MethodGet, "/api/v1/events/not-a-uuid", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListAndGetSessions(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	first := ingest(t, handler, ingestBody("vid-1", "viewer-1", "play", base))
	ingest(t, handler, ingestBody("vid-1", "viewer-1", "ended", base.Add(time.Minute)))
	ingest(t, handler, ingestBody("vid-2", "viewer-1", "play", base.Add(2*time.Minute)))

	t.Run("list all", func(t *testing.T) {
		rec, envelope := doRequest(t, handler, http.MethodGet, "/api/v1/sessions?viewer_id=viewer-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp models.SessionsResponse
		if err := json.Unmarshal(envelope.Data, &resp); err != nil {
			t.Fatalf("failed to decode sessions: %v", err)
		}
		if len(resp.Sessions) != 2 {
			t.Errorf("got %d sessions, want 2", len(resp.Sessions))
		}
	})

	t.Run("filter closed", func(t *testing.T) {
		rec, envelope := doRequest(t, handler, http.MethodGet, "/api/v1/sessions?closed=true", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp models.SessionsResponse
		if err := json.Unmarshal(envelope.Data, &resp); err != nil {
			t.Fatalf("failed to decode sessions: %v", err)
		}
		if len(resp.Sessions) != 1 || resp.Sessions[0].VideoID != "vid-1" {
			t.Errorf("unexpected closed sessions: %+v", resp.Sessions)
		}
	})

	t.Run("get one", func(t *testing.T) {
		rec, envelope := doRequest(t, handler, http.MethodGet, "/api/v1/sessions/"+first.SessionID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var sess models.WatchSession
		if err := json.Unmarshal(envelope.Data, &sess); err != nil {
			t.Fatalf("failed to decode session: %v", err)
		}
		if sess.ID.String() != first.SessionID {
			t.Errorf("session id = %s, want %s", sess.ID, first.SessionID)
		}
		if sess.TotalWatchedSeconds != 0 {
			t.Errorf("TotalWatchedSeconds = %v, want 0 (ended accrues nothing)", sess.TotalWatchedSeconds)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec, _ := doRequest(t, handler, http.MethodGet, "/api/v1/sessions/"+uuid.New().String(), nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad closed filter", func(t *testing.T) {
		rec, _ := doRequest(t, handler, http.MethodGet, "/api/v1/sessions?closed=maybe", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestCreateSessionPreRegistration(t *testing.T) {
	handler, _ := setupAPI(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	body := map[string]interface{}{
		"video_id":   "vid-1",
		"viewer_id":  "viewer-1",
		"started_at": base.Format(time.RFC3339),
	}
	rec, envelope := doRequest(t, handler, http.MethodPost, "/api/v1/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var sess models.WatchSession
	if err := json.Unmarshal(envelope.Data, &sess); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if sess.Closed {
		t.Error("pre-registered session should be open")
	}

	// The first event lands in the pre-registered session.
	resp := ingest(t, handler, ingestBody("vid-1", "viewer-1", "play", base.Add(time.Minute)))
	if resp.SessionID != sess.ID.String() {
		t.Errorf("event session = %s, want pre-registered %s", resp.SessionID, sess.ID)
	}

	// Re-registering while open returns the same session with a 200.
	rec, envelope = doRequest(t, handler, http.MethodPost, "/api/v1/sessions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-registration status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(envelope.Data, &sess); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if sess.ID.String() != resp.SessionID {
		t.Errorf("re-registration session = %s, want %s", sess.ID, resp.SessionID)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	handler, _ := setupAPI(t)

	t.Run("missing video id", func(t *testing.T) {
		rec, envelope := doRequest(t, handler, http.MethodPost, "/api/v1/sessions",
			map[string]interface{}{"viewer_id": "viewer-1"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
		}
	})

	t.Run("missing viewer id", func(t *testing.T) {
		rec, _ := doRequest(t, handler, http.MethodPost, "/api/v1/sessions",
			map[string]interface{}{"video_id": "vid-1"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed started_at", func(t *testing.T) {
		rec, _ := doRequest(t, handler, http.MethodPost, "/api/v1/sessions",
			map[string]interface{}{"video_id": "vid-1", "viewer_id": "viewer-1", "started_at": "yesterday"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	handler, _ := setupAPI(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		rec, envelope := doRequest(t, handler, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
		if envelope.Status != "success" {
			t.Errorf("%s envelope status = %q, want success", path, envelope.Status)
		}
	}
}

func TestRequestIDHeaderOnResponses(t *testing.T) {
	handler, _ := setupAPI(t)

	rec, _ := doRequest(t, handler, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("responses should carry X-Request-ID")
	}
}
