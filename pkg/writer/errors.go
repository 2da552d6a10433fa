// Copyright 2025 Archon 72 Project
//
// Package writer sentinel errors. Explicit errors instead of nil, nil returns.

package writer

import (
	"errors"
	"fmt"
)

// ErrWriterInconsistency is the sentinel matched by errors.Is for head-hash
// mismatches. A writer inconsistency is fatal: the caller must halt.
var ErrWriterInconsistency = errors.New("writer inconsistency")

// InconsistencyError reports that the stored head event no longer reproduces
// its own content hash. The log can no longer be trusted for appends.
type InconsistencyError struct {
	Sequence     uint64
	StoredHash   string
	ComputedHash string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("writer inconsistency at sequence %d: stored hash %s does not match recomputed hash %s",
		e.Sequence, hashPrefix(e.StoredHash), hashPrefix(e.ComputedHash))
}

// Is lets errors.Is(err, ErrWriterInconsistency) match.
func (e *InconsistencyError) Is(target error) bool {
	return target == ErrWriterInconsistency
}

func hashPrefix(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
