// Copyright 2025 Archon 72 Project
//
// Package cessation sentinel errors.

package cessation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrConsiderationNotFound is returned when a decision targets an
	// unknown consideration (FR32)
	ErrConsiderationNotFound = errors.New("FR32: cessation consideration not found")

	// ErrInvalidDecision is returned when a decision cannot be recorded (FR32)
	ErrInvalidDecision = errors.New("FR32: invalid cessation decision")

	// ErrAlreadyTriggered is returned when a consideration is already active (FR32)
	ErrAlreadyTriggered = errors.New("FR32: cessation consideration already active")

	// ErrBelowThreshold is returned when an explicit trigger is requested
	// below the constitutional threshold (FR32)
	ErrBelowThreshold = errors.New("FR32: unacknowledged breach count below cessation threshold")

	// ErrExecution is wrapped around cessation execution failures. The
	// system may be in an inconsistent state; human intervention is required.
	ErrExecution = errors.New("cessation execution failed")

	// ErrDeliberationRecordingCompleteFailure means neither the deliberation
	// nor its failure record could be written. Integrity outranks
	// availability (CT-13): the caller must halt the process.
	ErrDeliberationRecordingCompleteFailure = errors.New(
		"FR135: complete deliberation recording failure, system must halt")
)

// InvalidDecisionError carries the consideration and the reason a decision
// was rejected.
type InvalidDecisionError struct {
	ConsiderationID uuid.UUID
	Reason          string
}

func (e *InvalidDecisionError) Error() string {
	return fmt.Sprintf("FR32: invalid cessation decision for consideration %s: %s",
		e.ConsiderationID, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidDecision) match.
func (e *InvalidDecisionError) Is(target error) bool {
	return target == ErrInvalidDecision
}
