// Copyright 2025 Archon 72 Project
//
// Cessation consideration and decision payloads (FR32)

package events

import (
	"time"

	"github.com/google/uuid"
)

// CessationDecision is the Conclave's recorded choice on a consideration.
// The lowercase values are stable and appear in persisted canonical bytes.
type CessationDecision string

const (
	DecisionProceedToVote        CessationDecision = "proceed_to_vote"
	DecisionDismissConsideration CessationDecision = "dismiss"
	DecisionDeferReview          CessationDecision = "defer"
)

// ValidCessationDecision reports whether d is one of the declared choices.
func ValidCessationDecision(d CessationDecision) bool {
	switch d {
	case DecisionProceedToVote, DecisionDismissConsideration, DecisionDeferReview:
		return true
	}
	return false
}

// ConsiderationPayload is the payload of a cessation.consideration event,
// produced when more than 10 unacknowledged breaches accumulate inside the
// 90-day window. A consideration is active until a decision references it.
type ConsiderationPayload struct {
	ConsiderationID         uuid.UUID   `json:"consideration_id"`
	TriggerTimestamp        time.Time   `json:"trigger_timestamp"`
	BreachCount             int         `json:"breach_count"`
	WindowDays              int         `json:"window_days"`
	UnacknowledgedBreachIDs []uuid.UUID `json:"unacknowledged_breach_ids"`
	AgendaPlacementReason   string      `json:"agenda_placement_reason"`
}

// EventType implements Payload.
func (p *ConsiderationPayload) EventType() string { return TypeCessationConsideration }

// SignableContent implements Payload.
func (p *ConsiderationPayload) SignableContent() ([]byte, error) {
	ids := make([]string, len(p.UnacknowledgedBreachIDs))
	for i, id := range p.UnacknowledgedBreachIDs {
		ids[i] = id.String()
	}
	return canonicalJSON(map[string]any{
		"agenda_placement_reason":   p.AgendaPlacementReason,
		"breach_count":              p.BreachCount,
		"consideration_id":          p.ConsiderationID.String(),
		"trigger_timestamp":         isoTimestamp(p.TriggerTimestamp),
		"unacknowledged_breach_ids": ids,
		"window_days":               p.WindowDays,
	})
}

// DecisionPayload is the payload of a cessation.decision event. At most one
// decision per consideration.
type DecisionPayload struct {
	DecisionID        uuid.UUID         `json:"decision_id"`
	ConsiderationID   uuid.UUID         `json:"consideration_id"`
	Decision          CessationDecision `json:"decision"`
	DecisionTimestamp time.Time         `json:"decision_timestamp"`
	DecidedBy         string            `json:"decided_by"`
	Rationale         string            `json:"rationale"`
}

// EventType implements Payload.
func (p *DecisionPayload) EventType() string { return TypeCessationDecision }

// SignableContent implements Payload.
func (p *DecisionPayload) SignableContent() ([]byte, error) {
	return canonicalJSON(map[string]any{
		"consideration_id":   p.ConsiderationID.String(),
		"decided_by":         p.DecidedBy,
		"decision":           string(p.Decision),
		"decision_id":        p.DecisionID.String(),
		"decision_timestamp": isoTimestamp(p.DecisionTimestamp),
		"rationale":          p.Rationale,
	})
}
