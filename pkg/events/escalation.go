// Copyright 2025 Archon 72 Project
//
// Escalation and acknowledgment payloads (FR31)

package events

import (
	"time"

	"github.com/google/uuid"
)

// ResponseChoice is the attributed response recorded with an acknowledgment.
// The lowercase values are stable and appear in persisted canonical bytes.
type ResponseChoice string

const (
	ResponseCorrective ResponseChoice = "corrective"
	ResponseDismiss    ResponseChoice = "dismiss"
	ResponseDefer      ResponseChoice = "defer"
	ResponseAccept     ResponseChoice = "accept"
)

// ValidResponseChoice reports whether c is one of the declared choices.
func ValidResponseChoice(c ResponseChoice) bool {
	switch c {
	case ResponseCorrective, ResponseDismiss, ResponseDefer, ResponseAccept:
		return true
	}
	return false
}

// EscalationPayload is the payload of a breach.escalated event, produced when
// a breach remains unacknowledged for 7 days. At most one per breach.
type EscalationPayload struct {
	EscalationID          uuid.UUID  `json:"escalation_id"`
	BreachID              uuid.UUID  `json:"breach_id"`
	BreachType            BreachType `json:"breach_type"`
	EscalationTimestamp   time.Time  `json:"escalation_timestamp"`
	DaysSinceBreach       int        `json:"days_since_breach"`
	AgendaPlacementReason string     `json:"agenda_placement_reason"`
}

// EventType implements Payload.
func (p *EscalationPayload) EventType() string { return TypeBreachEscalated }

// SignableContent implements Payload.
func (p *EscalationPayload) SignableContent() ([]byte, error) {
	return canonicalJSON(map[string]any{
		"agenda_placement_reason": p.AgendaPlacementReason,
		"breach_id":               p.BreachID.String(),
		"breach_type":             string(p.BreachType),
		"days_since_breach":       p.DaysSinceBreach,
		"escalation_id":           p.EscalationID.String(),
		"escalation_timestamp":    isoTimestamp(p.EscalationTimestamp),
	})
}

// AcknowledgmentPayload is the payload of a breach.acknowledged event, which
// stops the 7-day escalation timer. At most one per breach, mutually exclusive
// with escalation.
type AcknowledgmentPayload struct {
	AcknowledgmentID        uuid.UUID      `json:"acknowledgment_id"`
	BreachID                uuid.UUID      `json:"breach_id"`
	AcknowledgedBy          string         `json:"acknowledged_by"`
	AcknowledgmentTimestamp time.Time      `json:"acknowledgment_timestamp"`
	ResponseChoice          ResponseChoice `json:"response_choice"`
}

// EventType implements Payload.
func (p *AcknowledgmentPayload) EventType() string { return TypeBreachAcknowledged }

// SignableContent implements Payload.
func (p *AcknowledgmentPayload) SignableContent() ([]byte, error) {
	return canonicalJSON(map[string]any{
		"acknowledged_by":          p.AcknowledgedBy,
		"acknowledgment_id":        p.AcknowledgmentID.String(),
		"acknowledgment_timestamp": isoTimestamp(p.AcknowledgmentTimestamp),
		"breach_id":                p.BreachID.String(),
		"response_choice":          string(p.ResponseChoice),
	})
}
