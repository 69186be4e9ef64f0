// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package session

import (
	"context"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/database"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
)

// Sweeper periodically marks long-idle sessions closed so listings show
// accurate closure state without waiting for the pair's next event. It is
// pure bookkeeping: the assigner and the rollup queries are correct whether
// or not the sweeper ever runs.
//
// Sweeper implements suture.Service and runs under the data supervisor.
type Sweeper struct {
	db  *database.DB
	cfg *config.SessionConfig
}

// NewSweeper creates a stale-session sweeper.
func NewSweeper(db *database.DB, cfg *config.SessionConfig) *Sweeper {
	return &Sweeper{db: db, cfg: cfg}
}

// Serve runs sweep passes until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep closes every open session idle longer than the gap threshold.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.GapThreshold)

	closed, err := s.db.SweepStaleSessions(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("Stale session sweep failed")
		return
	}

	metrics.SweepRuns.Inc()
	if closed > 0 {
		metrics.SessionsClosed.WithLabelValues("sweep").Add(float64(closed))
		logging.Debug().Int64("closed", closed).Msg("Swept stale sessions")
	}
}

func (s *Sweeper) String() string { return "session-sweeper" }
