// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package main is the entry point for the Watchpost server.
//
// Watchpost records watch events emitted by video players, groups them into
// watch sessions per viewer and video, and serves rollup statistics
// (most-watched videos, per-video totals) from a DuckDB time-series store.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (env > config.yaml > defaults)
//  2. Logging: zerolog, JSON or console format
//  3. Database: DuckDB store with schema bootstrap
//  4. Session Assigner: per-pair serialized session assignment
//  5. Supervision: Suture tree running the HTTP server and the session sweeper
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// drains in-flight requests within the configured shutdown timeout, then the
// database is checkpointed and closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/watchpost/watchpost/internal/api"
	"github.com/watchpost/watchpost/internal/cache"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/database"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/session"
	"github.com/watchpost/watchpost/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "watchpost: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", api.Version).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting Watchpost")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Checkpoint(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("Final checkpoint failed")
		}
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close failed")
		}
	}()

	assigner := session.NewAssigner(db, &cfg.Session)
	queryCache := cache.New(cfg.API.CacheTTL)
	handler := api.NewHandler(db, assigner, queryCache, cfg)
	router := api.NewRouter(handler)

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(slog.New(slog.NewJSONHandler(os.Stderr, nil)), treeCfg)

	tree.AddAPIService(supervisor.NewHTTPService(router.Setup(), &cfg.Server))
	if cfg.Session.SweepEnabled {
		tree.AddDataService(session.NewSweeper(db, &cfg.Session))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor terminated: %w", err)
	}

	logging.Info().Msg("Watchpost stopped")
	return nil
}
