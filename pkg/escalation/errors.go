// Copyright 2025 Archon 72 Project
//
// Package escalation sentinel errors.

package escalation

import "errors"

var (
	// ErrBreachNotFound is returned when escalation or acknowledgment
	// targets an unknown breach (FR31)
	ErrBreachNotFound = errors.New("FR31: breach not found")

	// ErrBreachAlreadyAcknowledged is returned on a second acknowledgment (FR31)
	ErrBreachAlreadyAcknowledged = errors.New("FR31: breach already acknowledged")

	// ErrBreachAlreadyEscalated is returned on a second escalation, and on
	// an acknowledgment of an escalated breach (FR31)
	ErrBreachAlreadyEscalated = errors.New("FR31: breach already escalated")

	// ErrInvalidAcknowledgment is returned when acknowledgment details fail
	// validation (FR31)
	ErrInvalidAcknowledgment = errors.New("FR31: invalid acknowledgment")

	// ErrEscalation is wrapped around event-write failures during escalation
	ErrEscalation = errors.New("FR31: failed to escalate breach")
)
