// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package database

import (
	"errors"
	"io"

	"github.com/watchpost/watchpost/internal/logging"
)

// Sentinel errors returned by store operations. Callers match these with
// errors.Is to map storage outcomes to API error codes.
var (
	// ErrNotFound indicates the requested event or session does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a conditional write matched no rows, meaning a
	// concurrent writer changed the row first (e.g. a session was closed
	// between read and update). The operation can be retried against fresh
	// state.
	ErrConflict = errors.New("write conflict")
)

// closeWithLog closes a resource and logs any error.
// Use for cleanup operations where errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
