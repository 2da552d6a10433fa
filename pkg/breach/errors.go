// Copyright 2025 Archon 72 Project
//
// Package breach sentinel errors.

package breach

import "errors"

var (
	// ErrDeclaration is wrapped around failures to declare a breach (FR30)
	ErrDeclaration = errors.New("FR30: failed to declare breach")

	// ErrQuery is wrapped around failures of breach queries
	ErrQuery = errors.New("FR30: breach query failed")

	// ErrInvalidBreachType is returned for an unknown breach type or severity
	ErrInvalidBreachType = errors.New("FR30: invalid breach type")

	// ErrUnknownSourceEvent is returned when source_event_id does not
	// reference a witnessed event in the log
	ErrUnknownSourceEvent = errors.New("FR30: source event not found in event log")
)
