// Copyright 2025 Archon 72 Project
//
// Package ledger provides sentinel errors for event log operations.
// Explicit errors instead of nil, nil returns.

package ledger

import "errors"

// Sentinel errors for event log operations
var (
	// ErrEventNotFound is returned when no event exists at a sequence number
	ErrEventNotFound = errors.New("event not found")

	// ErrSequenceConflict is returned when an append would overwrite an
	// existing sequence number
	ErrSequenceConflict = errors.New("sequence number already written")
)
