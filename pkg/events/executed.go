// Copyright 2025 Archon 72 Project
//
// Cessation executed payload - the terminal event (FR40, FR43)
//
// Once a cessation.executed event is appended, no event of any type may be
// appended ever again. There is deliberately no event type and no operation
// that reverses a cessation; adding one violates the design.

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExecutedPayload is the payload of a cessation.executed event. IsTerminal is
// always true and is included in the canonical bytes so the terminal
// semantics are bound by the witness signature.
type ExecutedPayload struct {
	CessationID         uuid.UUID `json:"cessation_id"`
	ExecutionTimestamp  time.Time `json:"execution_timestamp"`
	IsTerminal          bool      `json:"is_terminal"`
	FinalSequenceNumber uint64    `json:"final_sequence_number"`
	FinalHash           string    `json:"final_hash"`
	Reason              string    `json:"reason"`
	TriggeringEventID   uuid.UUID `json:"triggering_event_id"`
}

// NewExecutedPayload builds a cessation payload with IsTerminal forced true.
func NewExecutedPayload(
	cessationID uuid.UUID,
	executionTimestamp time.Time,
	finalSequenceNumber uint64,
	finalHash string,
	reason string,
	triggeringEventID uuid.UUID,
) *ExecutedPayload {
	return &ExecutedPayload{
		CessationID:         cessationID,
		ExecutionTimestamp:  executionTimestamp,
		IsTerminal:          true,
		FinalSequenceNumber: finalSequenceNumber,
		FinalHash:           finalHash,
		Reason:              reason,
		TriggeringEventID:   triggeringEventID,
	}
}

// EventType implements Payload.
func (p *ExecutedPayload) EventType() string { return TypeCessationExecuted }

// Validate enforces the terminal invariant.
func (p *ExecutedPayload) Validate() error {
	if !p.IsTerminal {
		return fmt.Errorf("cessation payload must carry is_terminal=true; cessation is architecturally irreversible")
	}
	return nil
}

// SignableContent implements Payload. is_terminal is included so the witness
// signature binds the terminal semantics.
func (p *ExecutedPayload) SignableContent() ([]byte, error) {
	return canonicalJSON(map[string]any{
		"cessation_id":          p.CessationID.String(),
		"execution_timestamp":   isoTimestamp(p.ExecutionTimestamp),
		"final_hash":            p.FinalHash,
		"final_sequence_number": p.FinalSequenceNumber,
		"is_terminal":           p.IsTerminal,
		"reason":                p.Reason,
		"triggering_event_id":   p.TriggeringEventID.String(),
	})
}

// RecordingFailedPayload is the payload of a
// cessation.deliberation_recording_failed event. When the deliberation itself
// cannot be recorded, this failure record becomes the final event and the
// cessation event is never written.
type RecordingFailedPayload struct {
	DeliberationID     uuid.UUID `json:"deliberation_id"`
	AttemptedAt        time.Time `json:"attempted_at"`
	FailedAt           time.Time `json:"failed_at"`
	ErrorCode          string    `json:"error_code"`
	ErrorMessage       string    `json:"error_message"`
	RetryCount         int       `json:"retry_count"`
	PartialArchonCount int       `json:"partial_archon_count"`
}

// EventType implements Payload.
func (p *RecordingFailedPayload) EventType() string { return TypeDeliberationRecordingFailed }

// Validate checks the failure record's fields.
func (p *RecordingFailedPayload) Validate() error {
	if p.ErrorCode == "" {
		return fmt.Errorf("error_code cannot be empty")
	}
	if p.RetryCount < 0 {
		return fmt.Errorf("retry_count must be non-negative, got %d", p.RetryCount)
	}
	if p.PartialArchonCount < 0 || p.PartialArchonCount > RequiredArchonCount {
		return fmt.Errorf("partial_archon_count must be in [0, %d], got %d",
			RequiredArchonCount, p.PartialArchonCount)
	}
	return nil
}

// SignableContent implements Payload.
func (p *RecordingFailedPayload) SignableContent() ([]byte, error) {
	return canonicalJSON(map[string]any{
		"attempted_at":         isoTimestamp(p.AttemptedAt),
		"deliberation_id":      p.DeliberationID.String(),
		"error_code":           p.ErrorCode,
		"error_message":        p.ErrorMessage,
		"failed_at":            isoTimestamp(p.FailedAt),
		"partial_archon_count": p.PartialArchonCount,
		"retry_count":          p.RetryCount,
	})
}
