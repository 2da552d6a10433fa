// Copyright 2025 Archon 72 Project
//
// Package database provides sentinel errors for repository operations.
// Explicit errors instead of nil, nil returns. Entity-specific absences are
// reported with the shared store sentinels so services match one error set
// across the Postgres and in-memory implementations.

package database

import "errors"

// ErrNotFound is returned when a requested row is not in the database
var ErrNotFound = errors.New("entity not found")
