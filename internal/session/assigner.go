// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package session implements the session-assignment engine: the rules that
// turn a raw stream of timestamped watch events into bounded watch sessions.
//
// Session boundaries are a lazy logical predicate, not a timer. A session for
// a (viewer, video) pair stays open while events keep arriving within the gap
// threshold of its last event; the next event after a longer gap closes the
// old session and starts a new one. An ended event closes immediately. The
// background sweeper only marks long-idle sessions closed for inspection;
// correctness never depends on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/database"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// ErrInvalidEvent is returned when a raw event fails the assigner's own
// checks. HTTP-level validation catches these first; the assigner re-checks
// so it stays safe for non-HTTP callers.
var ErrInvalidEvent = errors.New("invalid event")

// Result describes the outcome of assigning one raw event.
type Result struct {
	Event *models.VideoEvent
	// Duplicate is true when the event ID was already recorded. Event then
	// carries the stored original and nothing was mutated.
	Duplicate bool
	// SessionCreated is true when this event opened a new session.
	SessionCreated bool
	// SessionClosed is true when this event closed its session (ended event,
	// or a one-event session for an ended event with no open session).
	SessionClosed bool
}

// Assigner maps incoming events to watch sessions. It owns all WatchSession
// mutation: everything else reads sessions but never writes them.
//
// Concurrency: events for the same (viewer, video) pair serialize on a
// per-pair mutex, so two concurrent events never both create a session or
// race on watch-time accrual. Events for different pairs do not contend. The
// database layer's conditional updates back this up across processes; a lost
// race surfaces as ErrConflict and is retried against fresh state.
type Assigner struct {
	db  *database.DB
	cfg *config.SessionConfig

	// pairLocks maps "viewer\x00video" to a *sync.Mutex.
	pairLocks sync.Map
}

// NewAssigner creates a session assigner backed by the given store.
func NewAssigner(db *database.DB, cfg *config.SessionConfig) *Assigner {
	return &Assigner{db: db, cfg: cfg}
}

// Assign records a raw event: resolves its watch session (attaching,
// creating, or lazily closing as the gap rule dictates), computes the
// watch-time delta, and appends the event. Exactly one session row is
// created or updated per call.
//
// Re-sending an already-recorded event ID is a no-op that returns the stored
// event with Duplicate set.
func (a *Assigner) Assign(ctx context.Context, raw *models.RawEvent) (*Result, error) {
	if err := checkRawEvent(raw); err != nil {
		return nil, err
	}

	lock := a.lockPair(raw.ViewerID, raw.VideoID)
	lock.Lock()
	defer lock.Unlock()

	// Idempotency check before any session mutation.
	existing, err := a.db.GetVideoEvent(ctx, raw.EventID)
	if err == nil {
		metrics.SessionAssignments.WithLabelValues("duplicate").Inc()
		return &Result{Event: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	var result *Result
	for attempt := 1; ; attempt++ {
		result, err = a.assignOnce(ctx, raw)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, database.ErrConflict) || attempt >= a.cfg.RetryAttempts {
			return nil, err
		}
		metrics.SessionAssignments.WithLabelValues("retry").Inc()
		logging.Debug().
			Str("event_id", raw.EventID.String()).
			Int("attempt", attempt).
			Msg("Session write conflict, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
}

// assignOnce runs one attempt of the assignment algorithm. ErrConflict means
// a concurrent writer changed the session between read and update; the caller
// retries against fresh state.
func (a *Assigner) assignOnce(ctx context.Context, raw *models.RawEvent) (*Result, error) {
	occurred := raw.OccurredAt.UTC()

	open, err := a.db.FindOpenSession(ctx, raw.ViewerID, raw.VideoID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	// Gap rule: a session whose last event is further back than the
	// threshold is logically over. Mark it closed now and start fresh.
	if open != nil && occurred.Sub(open.LastEventAt) > a.cfg.GapThreshold {
		if err := a.db.CloseSession(ctx, open.ID); err != nil && !errors.Is(err, database.ErrConflict) {
			return nil, err
		}
		metrics.SessionsClosed.WithLabelValues("gap").Inc()
		open = nil
	}

	now := time.Now().UTC()
	result := &Result{}
	var sessionID uuid.UUID
	var delta float64

	if open != nil {
		// Watch time accrues only on active playback (play/progress), never
		// on pause or seek alone. An out-of-order event (occurred_at behind
		// last_event_at) attaches but accrues nothing: total watched time is
		// monotonic while the session is open.
		if raw.EventType.ActivePlayback() {
			if d := occurred.Sub(open.LastEventAt).Seconds(); d > 0 {
				delta = d
			}
		}
		closeNow := raw.EventType == models.EventEnded
		if err := a.db.AttachEvent(ctx, open.ID, occurred, delta, closeNow); err != nil {
			return nil, err
		}
		sessionID = open.ID
		result.SessionClosed = closeNow
		if closeNow {
			metrics.SessionsClosed.WithLabelValues("ended").Inc()
		}
	} else {
		// No open session: start one at this event. An ended event with
		// nothing to close still gets recorded, as a one-event session that
		// is born closed.
		s := &models.WatchSession{
			ID:          uuid.New(),
			VideoID:     raw.VideoID,
			ViewerID:    raw.ViewerID,
			StartedAt:   occurred,
			LastEventAt: occurred,
			Closed:      raw.EventType == models.EventEnded,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := a.db.InsertSession(ctx, s); err != nil {
			return nil, err
		}
		sessionID = s.ID
		result.SessionCreated = true
		result.SessionClosed = s.Closed
		metrics.SessionsCreated.Inc()
	}

	ev := &models.VideoEvent{
		ID:                  raw.EventID,
		VideoID:             raw.VideoID,
		ViewerID:            raw.ViewerID,
		EventType:           raw.EventType,
		PositionSeconds:     raw.PositionSeconds,
		WatchedDeltaSeconds: delta,
		OccurredAt:          occurred,
		SessionID:           sessionID,
		CreatedAt:           now,
	}
	inserted, err := a.db.InsertVideoEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// The ID landed from another pair's stream between our idempotency
		// check and the insert. Surface the stored original.
		stored, err := a.db.GetVideoEvent(ctx, raw.EventID)
		if err != nil {
			return nil, err
		}
		metrics.SessionAssignments.WithLabelValues("duplicate").Inc()
		return &Result{Event: stored, Duplicate: true}, nil
	}

	result.Event = ev
	metrics.SessionAssignments.WithLabelValues("assigned").Inc()
	return result, nil
}

// StartSession pre-registers an open watch session for a (viewer, video)
// pair ahead of its first event, so players can obtain a session ID before
// playback starts. If the pair already has an open session within the gap
// threshold it is returned as-is; the pair never gains a second open session.
// The boolean reports whether this call created the session.
func (a *Assigner) StartSession(ctx context.Context, viewerID, videoID string, startedAt time.Time) (*models.WatchSession, bool, error) {
	switch {
	case videoID == "":
		return nil, false, fmt.Errorf("%w: video_id is required", ErrInvalidEvent)
	case viewerID == "":
		return nil, false, fmt.Errorf("%w: viewer_id is required", ErrInvalidEvent)
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	startedAt = startedAt.UTC()

	lock := a.lockPair(viewerID, videoID)
	lock.Lock()
	defer lock.Unlock()

	open, err := a.db.FindOpenSession(ctx, viewerID, videoID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}
	if open != nil {
		if startedAt.Sub(open.LastEventAt) <= a.cfg.GapThreshold {
			return open, false, nil
		}
		if err := a.db.CloseSession(ctx, open.ID); err != nil && !errors.Is(err, database.ErrConflict) {
			return nil, false, err
		}
		metrics.SessionsClosed.WithLabelValues("gap").Inc()
	}

	now := time.Now().UTC()
	s := &models.WatchSession{
		ID:          uuid.New(),
		VideoID:     videoID,
		ViewerID:    viewerID,
		StartedAt:   startedAt,
		LastEventAt: startedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.db.InsertSession(ctx, s); err != nil {
		return nil, false, err
	}
	metrics.SessionsCreated.Inc()
	logging.Debug().
		Str("session_id", s.ID.String()).
		Str("video_id", videoID).
		Msg("Session pre-registered")
	return s, true, nil
}

// lockPair returns the mutex serializing writes for one (viewer, video) pair.
func (a *Assigner) lockPair(viewerID, videoID string) *sync.Mutex {
	key := viewerID + "\x00" + videoID
	actual, _ := a.pairLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func checkRawEvent(raw *models.RawEvent) error {
	switch {
	case raw.EventID == uuid.Nil:
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	case raw.VideoID == "":
		return fmt.Errorf("%w: video_id is required", ErrInvalidEvent)
	case raw.ViewerID == "":
		return fmt.Errorf("%w: viewer_id is required", ErrInvalidEvent)
	case !raw.EventType.Valid():
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidEvent, raw.EventType)
	case raw.PositionSeconds < 0:
		return fmt.Errorf("%w: position_seconds must be >= 0", ErrInvalidEvent)
	case raw.OccurredAt.IsZero():
		return fmt.Errorf("%w: occurred_at is required", ErrInvalidEvent)
	}
	return nil
}
