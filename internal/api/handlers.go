// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package api provides the HTTP surface of Watchpost: event ingestion,
// event/session lookups, video rollups, and health endpoints, routed with
// Chi.
package api

import (
	"time"

	"github.com/watchpost/watchpost/internal/cache"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/database"
	"github.com/watchpost/watchpost/internal/session"
)

// Version is the reported service version, overridden at build time via
// -ldflags "-X github.com/watchpost/watchpost/internal/api.Version=...".
var Version = "dev"

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	db       *database.DB
	assigner *session.Assigner
	cache    *cache.Cache
	cfg      *config.Config
	started  time.Time
}

// NewHandler creates the API handler set.
func NewHandler(db *database.DB, assigner *session.Assigner, queryCache *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		db:       db,
		assigner: assigner,
		cache:    queryCache,
		cfg:      cfg,
		started:  time.Now(),
	}
}
