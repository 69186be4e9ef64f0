// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/models"
)

func TestInsertAndGetSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	sess := makeSession("vid-1", "viewer-1", now)
	sess.TotalWatchedSeconds = 42.5
	if err := db.InsertSession(ctx, sess); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	got, err := db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.VideoID != "vid-1" || got.ViewerID != "viewer-1" {
		t.Errorf("got pair (%s, %s), want (vid-1, viewer-1)", got.VideoID, got.ViewerID)
	}
	if !got.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %s, want %s", got.StartedAt, now)
	}
	if got.Closed {
		t.Error("new session should be open")
	}
	if got.TotalWatchedSeconds != 42.5 {
		t.Errorf("TotalWatchedSeconds = %v, want 42.5", got.TotalWatchedSeconds)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetSession(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFindOpenSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// No session yet.
	_, err := db.FindOpenSession(ctx, "viewer-1", "vid-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound for empty store", err)
	}

	// A closed session must not be found.
	closed := makeSession("vid-1", "viewer-1", now.Add(-2*time.Hour))
	closed.Closed = true
	if err := db.InsertSession(ctx, closed); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}
	_, err = db.FindOpenSession(ctx, "viewer-1", "vid-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound when only closed sessions exist", err)
	}

	// The open session for the exact pair is found; other pairs are not.
	open := makeSession("vid-1", "viewer-1", now)
	if err := db.InsertSession(ctx, open); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}
	other := makeSession("vid-2", "viewer-1", now)
	if err := db.InsertSession(ctx, other); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	got, err := db.FindOpenSession(ctx, "viewer-1", "vid-1")
	if err != nil {
		t.Fatalf("FindOpenSession failed: %v", err)
	}
	if got.ID != open.ID {
		t.Errorf("found session %s, want %s", got.ID, open.ID)
	}
}

func TestAttachEvent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	sess := makeSession("vid-1", "viewer-1", now)
	if err := db.InsertSession(ctx, sess); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	if err := db.AttachEvent(ctx, sess.ID, now.Add(time.Minute), 60, false); err != nil {
		t.Fatalf("AttachEvent failed: %v", err)
	}

	got, err := db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !got.LastEventAt.Equal(now.Add(time.Minute)) {
		t.Errorf("LastEventAt = %s, want %s", got.LastEventAt, now.Add(time.Minute))
	}
	if got.TotalWatchedSeconds != 60 {
		t.Errorf("TotalWatchedSeconds = %v, want 60", got.TotalWatchedSeconds)
	}

	// An out-of-order event must not move last_event_at backwards, but its
	// delta still accrues.
	if err := db.AttachEvent(ctx, sess.ID, now.Add(30*time.Second), 10, false); err != nil {
		t.Fatalf("AttachEvent (out of order) failed: %v", err)
	}
	got, err = db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !got.LastEventAt.Equal(now.Add(time.Minute)) {
		t.Errorf("LastEventAt moved backwards to %s", got.LastEventAt)
	}
	if got.TotalWatchedSeconds != 70 {
		t.Errorf("TotalWatchedSeconds = %v, want 70", got.TotalWatchedSeconds)
	}
}

func TestAttachEventClosesSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	sess := makeSession("vid-1", "viewer-1", now)
	if err := db.InsertSession(ctx, sess); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	if err := db.AttachEvent(ctx, sess.ID, now.Add(time.Minute), 0, true); err != nil {
		t.Fatalf("AttachEvent (close) failed: %v", err)
	}

	got, err := db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !got.Closed {
		t.Error("session should be closed")
	}

	// Attaching to a closed session is a write conflict.
	err = db.AttachEvent(ctx, sess.ID, now.Add(2*time.Minute), 5, false)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("error = %v, want ErrConflict on closed session", err)
	}
}

func TestCloseSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	sess := makeSession("vid-1", "viewer-1", now)
	if err := db.InsertSession(ctx, sess); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	if err := db.CloseSession(ctx, sess.ID); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}

	err := db.CloseSession(ctx, sess.ID)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second close error = %v, want ErrConflict", err)
	}
}

func TestListSessions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	oldest := makeSession("vid-1", "viewer-1", base.Add(-2*time.Hour))
	oldest.Closed = true
	middle := makeSession("vid-2", "viewer-1", base.Add(-time.Hour))
	newest := makeSession("vid-1", "viewer-2", base)
	for _, s := range []*models.WatchSession{oldest, middle, newest} {
		if err := db.InsertSession(ctx, s); err != nil {
			t.Fatalf("InsertSession failed: %v", err)
		}
	}

	t.Run("most recent first", func(t *testing.T) {
		sessions, err := db.ListSessions(ctx, models.SessionFilter{})
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(sessions) != 3 {
			t.Fatalf("got %d sessions, want 3", len(sessions))
		}
		if sessions[0].ID != newest.ID || sessions[2].ID != oldest.ID {
			t.Errorf("sessions not ordered newest first: %s, %s, %s",
				sessions[0].ID, sessions[1].ID, sessions[2].ID)
		}
	})

	t.Run("filter open", func(t *testing.T) {
		open := false
		sessions, err := db.ListSessions(ctx, models.SessionFilter{Closed: &open})
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("got %d open sessions, want 2", len(sessions))
		}
	})

	t.Run("filter viewer", func(t *testing.T) {
		sessions, err := db.ListSessions(ctx, models.SessionFilter{ViewerID: "viewer-2"})
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(sessions) != 1 || sessions[0].ID != newest.ID {
			t.Errorf("unexpected sessions for viewer-2: %v", sessions)
		}
	})
}

func TestSweepStaleSessions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	stale := makeSession("vid-1", "viewer-1", now.Add(-2*time.Hour))
	fresh := makeSession("vid-2", "viewer-1", now.Add(-time.Minute))
	alreadyClosed := makeSession("vid-3", "viewer-1", now.Add(-3*time.Hour))
	alreadyClosed.Closed = true
	for _, s := range []*models.WatchSession{stale, fresh, alreadyClosed} {
		if err := db.InsertSession(ctx, s); err != nil {
			t.Fatalf("InsertSession failed: %v", err)
		}
	}

	closed, err := db.SweepStaleSessions(ctx, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("SweepStaleSessions failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("swept %d sessions, want 1", closed)
	}

	got, err := db.GetSession(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !got.Closed {
		t.Error("stale session should be closed after sweep")
	}

	got, err = db.GetSession(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Closed {
		t.Error("fresh session should remain open after sweep")
	}
}
