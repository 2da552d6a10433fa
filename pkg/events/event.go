// Copyright 2025 Archon 72 Project
//
// Event Model - canonical event record, canonical-byte encoding, hash chaining
//
// Every governance-relevant action in the system becomes exactly one Event in
// an append-only, hash-chained log. The content hash of each event covers the
// predecessor's content hash, which binds the log into a single chain; the
// witness signature over the content hash makes the event accountable (CT-12).

package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type tags. These are stable and appear in persisted canonical bytes;
// they must never be renamed.
const (
	TypeBreachDeclared              = "breach.declared"
	TypeBreachAcknowledged          = "breach.acknowledged"
	TypeBreachEscalated             = "breach.escalated"
	TypeCessationConsideration      = "cessation.consideration"
	TypeCessationDecision           = "cessation.decision"
	TypeCessationDeliberation       = "cessation.deliberation"
	TypeDeliberationRecordingFailed = "cessation.deliberation_recording_failed"
	TypeCessationExecuted           = "cessation.executed"
)

// Payload is the contract every event payload must satisfy: a deterministic
// canonical-byte encoding that is identical regardless of in-memory ordering.
// The Event Writer signs and chains over these bytes.
type Payload interface {
	// EventType returns the stable dot-notation tag for this payload.
	EventType() string

	// SignableContent returns canonical UTF-8 JSON bytes with keys sorted
	// lexicographically at every nesting level.
	SignableContent() ([]byte, error)
}

// Event is the atom of the accountability log. All fields are set exactly once
// by the Event Writer; there is no mutation of a recorded event.
type Event struct {
	EventID             uuid.UUID       `json:"event_id"`
	Sequence            uint64          `json:"sequence"`
	EventType           string          `json:"event_type"`
	Payload             json.RawMessage `json:"payload"`
	AgentID             string          `json:"agent_id"`
	LocalTimestamp      time.Time       `json:"local_timestamp"`
	PreviousContentHash string          `json:"previous_content_hash,omitempty"`
	ContentHash         string          `json:"content_hash"`
	WitnessID           string          `json:"witness_id"`
	WitnessSignature    string          `json:"witness_signature"`
}

// IsTerminal reports whether this event forbids any further appends.
func (e *Event) IsTerminal() bool {
	return e.EventType == TypeCessationExecuted
}

// CanonicalBytes rebuilds the canonical envelope encoding from the stored
// fields. The result must hash to ContentHash for the event to be valid.
func (e *Event) CanonicalBytes() ([]byte, error) {
	return EnvelopeCanonicalBytes(
		e.Sequence,
		e.EventType,
		e.Payload,
		e.AgentID,
		e.LocalTimestamp,
		e.PreviousContentHash,
	)
}

// RecomputeContentHash derives the content hash from stored fields alone.
// Used by the Writer's self-consistency check before every append.
func (e *Event) RecomputeContentHash() (string, error) {
	b, err := e.CanonicalBytes()
	if err != nil {
		return "", fmt.Errorf("failed to rebuild canonical bytes for sequence %d: %w", e.Sequence, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// EnvelopeCanonicalBytes encodes the hashed field set of an event. The payload
// must already be in canonical form (a Payload's SignableContent output); it is
// embedded verbatim. previousContentHash is omitted for the genesis event.
func EnvelopeCanonicalBytes(
	sequence uint64,
	eventType string,
	payload json.RawMessage,
	agentID string,
	localTimestamp time.Time,
	previousContentHash string,
) ([]byte, error) {
	envelope := map[string]any{
		"agent_id":        agentID,
		"event_type":      eventType,
		"local_timestamp": isoTimestamp(localTimestamp),
		"payload":         payload,
		"sequence":        sequence,
	}
	if previousContentHash != "" {
		envelope["previous_content_hash"] = previousContentHash
	}
	return canonicalJSON(envelope)
}

// ComputeContentHash hashes the canonical envelope with SHA-256 and returns
// the lowercase hex digest.
func ComputeContentHash(
	sequence uint64,
	eventType string,
	payload json.RawMessage,
	agentID string,
	localTimestamp time.Time,
	previousContentHash string,
) (string, error) {
	b, err := EnvelopeCanonicalBytes(sequence, eventType, payload, agentID, localTimestamp, previousContentHash)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
