// Copyright 2025 Archon 72 Project
//
// Breach declaration payload (FR30)

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BreachType categorizes a constitutional violation. The string values are
// stable and appear in persisted canonical bytes.
type BreachType string

const (
	BreachThresholdViolation       BreachType = "THRESHOLD_VIOLATION"
	BreachWitnessCollusion         BreachType = "WITNESS_COLLUSION"
	BreachHashMismatch             BreachType = "HASH_MISMATCH"
	BreachSignatureInvalid         BreachType = "SIGNATURE_INVALID"
	BreachConstitutionalConstraint BreachType = "CONSTITUTIONAL_CONSTRAINT"
	BreachTimingViolation          BreachType = "TIMING_VIOLATION"
	BreachQuorumViolation          BreachType = "QUORUM_VIOLATION"
	BreachOverrideAbuse            BreachType = "OVERRIDE_ABUSE"
	BreachEmergenceViolation       BreachType = "EMERGENCE_VIOLATION"
)

// ValidBreachType reports whether t is one of the declared breach types.
func ValidBreachType(t BreachType) bool {
	switch t {
	case BreachThresholdViolation, BreachWitnessCollusion, BreachHashMismatch,
		BreachSignatureInvalid, BreachConstitutionalConstraint,
		BreachTimingViolation, BreachQuorumViolation, BreachOverrideAbuse,
		BreachEmergenceViolation:
		return true
	}
	return false
}

// Severity is the alert level attached to a breach.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// ValidSeverity reports whether s is one of the declared severity levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// BreachPayload is the payload of a breach.declared event. Immutable once
// created; the breach lifecycle (acknowledgment, escalation) is tracked by
// separate events referencing BreachID.
type BreachPayload struct {
	BreachID            uuid.UUID      `json:"breach_id"`
	BreachType          BreachType     `json:"breach_type"`
	ViolatedRequirement string         `json:"violated_requirement"`
	Severity            Severity       `json:"severity"`
	DetectionTimestamp  time.Time      `json:"detection_timestamp"`
	Details             map[string]any `json:"details"`
	SourceEventID       *uuid.UUID     `json:"source_event_id,omitempty"`
}

// EventType implements Payload.
func (p *BreachPayload) EventType() string { return TypeBreachDeclared }

// SignableContent implements Payload.
func (p *BreachPayload) SignableContent() ([]byte, error) {
	details := p.Details
	if details == nil {
		details = map[string]any{}
	}
	content := map[string]any{
		"breach_id":            p.BreachID.String(),
		"breach_type":          string(p.BreachType),
		"violated_requirement": p.ViolatedRequirement,
		"severity":             string(p.Severity),
		"detection_timestamp":  isoTimestamp(p.DetectionTimestamp),
		"details":              details,
	}
	if p.SourceEventID != nil {
		content["source_event_id"] = p.SourceEventID.String()
	}
	return canonicalJSON(content)
}

// Validate checks the declared enum values.
func (p *BreachPayload) Validate() error {
	if !ValidBreachType(p.BreachType) {
		return fmt.Errorf("unknown breach type %q", p.BreachType)
	}
	if !ValidSeverity(p.Severity) {
		return fmt.Errorf("unknown severity %q", p.Severity)
	}
	return nil
}
