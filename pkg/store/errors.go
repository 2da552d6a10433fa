// Copyright 2025 Archon 72 Project
//
// Package store provides sentinel errors for repository operations.
// Explicit errors instead of nil, nil returns.

package store

import "errors"

// Sentinel errors for repository operations
var (
	// ErrBreachNotFound is returned when a breach is not in the registry
	ErrBreachNotFound = errors.New("breach not found")

	// ErrEscalationNotFound is returned when a breach has no escalation
	ErrEscalationNotFound = errors.New("escalation not found")

	// ErrAcknowledgmentNotFound is returned when a breach has no acknowledgment
	ErrAcknowledgmentNotFound = errors.New("acknowledgment not found")

	// ErrEscalationExists is returned when a second escalation is attempted
	ErrEscalationExists = errors.New("escalation already recorded for breach")

	// ErrAcknowledgmentExists is returned when a second acknowledgment is attempted
	ErrAcknowledgmentExists = errors.New("acknowledgment already recorded for breach")

	// ErrConsiderationNotFound is returned when a consideration does not exist
	ErrConsiderationNotFound = errors.New("cessation consideration not found")

	// ErrNoActiveConsideration is returned when every consideration has a decision
	ErrNoActiveConsideration = errors.New("no active cessation consideration")

	// ErrDecisionNotFound is returned when a consideration has no decision
	ErrDecisionNotFound = errors.New("cessation decision not found")

	// ErrDecisionExists is returned when a second decision is attempted
	ErrDecisionExists = errors.New("decision already recorded for consideration")

	// ErrContentHashNotFound is returned when no hash is registered for content
	ErrContentHashNotFound = errors.New("content hash not found")
)
