// Copyright 2025 Archon 72 Project
//
// Repository contracts consumed by the governance services
//
// Each store exclusively owns its entities; services hold only IDs across
// store boundaries. An entity becomes visible in its store only after its
// originating event is durable in the event log.

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
)

// BreachRepository is the append-only breach registry.
type BreachRepository interface {
	Save(ctx context.Context, breach *events.BreachPayload) error

	// GetByID returns ErrBreachNotFound when no such breach exists.
	GetByID(ctx context.Context, breachID uuid.UUID) (*events.BreachPayload, error)

	ListAll(ctx context.Context) ([]*events.BreachPayload, error)

	FilterByType(ctx context.Context, breachType events.BreachType) ([]*events.BreachPayload, error)

	// FilterByDateRange is inclusive on both ends.
	FilterByDateRange(ctx context.Context, start, end time.Time) ([]*events.BreachPayload, error)

	FilterByTypeAndDateRange(ctx context.Context, breachType events.BreachType, start, end time.Time) ([]*events.BreachPayload, error)

	// CountUnacknowledgedSince counts breaches detected at or after cutoff
	// that carry no acknowledgment.
	CountUnacknowledgedSince(ctx context.Context, cutoff time.Time) (int, error)

	// UnacknowledgedSince returns the matching breaches ordered by
	// detection timestamp ascending.
	UnacknowledgedSince(ctx context.Context, cutoff time.Time) ([]*events.BreachPayload, error)
}

// EscalationRepository tracks the one-escalation-per-breach and
// one-acknowledgment-per-breach indices.
type EscalationRepository interface {
	// SaveEscalation returns ErrEscalationExists if the breach already has one.
	SaveEscalation(ctx context.Context, escalation *events.EscalationPayload) error

	// SaveAcknowledgment returns ErrAcknowledgmentExists if the breach
	// already has one.
	SaveAcknowledgment(ctx context.Context, ack *events.AcknowledgmentPayload) error

	// EscalationForBreach returns ErrEscalationNotFound when the breach has
	// not been escalated.
	EscalationForBreach(ctx context.Context, breachID uuid.UUID) (*events.EscalationPayload, error)

	// AcknowledgmentForBreach returns ErrAcknowledgmentNotFound when the
	// breach has not been acknowledged.
	AcknowledgmentForBreach(ctx context.Context, breachID uuid.UUID) (*events.AcknowledgmentPayload, error)
}

// CessationRepository stores considerations and their at-most-one decisions.
type CessationRepository interface {
	SaveConsideration(ctx context.Context, consideration *events.ConsiderationPayload) error

	// ConsiderationByID returns ErrConsiderationNotFound when absent.
	ConsiderationByID(ctx context.Context, considerationID uuid.UUID) (*events.ConsiderationPayload, error)

	// ActiveConsideration returns the consideration no decision references,
	// or ErrNoActiveConsideration when every consideration is decided.
	ActiveConsideration(ctx context.Context) (*events.ConsiderationPayload, error)

	// SaveDecision returns ErrDecisionExists if the consideration already
	// has a decision.
	SaveDecision(ctx context.Context, decision *events.DecisionPayload) error

	// DecisionForConsideration returns ErrDecisionNotFound when the
	// consideration is undecided.
	DecisionForConsideration(ctx context.Context, considerationID uuid.UUID) (*events.DecisionPayload, error)
}

// DissentRecord is one per-vote dissent sample.
type DissentRecord struct {
	OutputID          uuid.UUID `json:"output_id"`
	DissentPercentage float64   `json:"dissent_percentage"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// DissentRepository stores rolling dissent samples.
type DissentRepository interface {
	RecordVoteDissent(ctx context.Context, record *DissentRecord) error

	// ListSince returns records with RecordedAt at or after cutoff.
	ListSince(ctx context.Context, cutoff time.Time) ([]*DissentRecord, error)
}

// ContentHashRepository stores canonical content hashes for the no-silent-edit
// rule.
type ContentHashRepository interface {
	SaveHash(ctx context.Context, contentID uuid.UUID, hash string) error

	// StoredHash returns ErrContentHashNotFound when no hash is registered.
	StoredHash(ctx context.Context, contentID uuid.UUID) (string, error)
}

// FlagDetails records how and when the system ceased.
type FlagDetails struct {
	CeasedAt            time.Time `json:"ceased_at"`
	FinalSequenceNumber uint64    `json:"final_sequence_number"`
	Reason              string    `json:"reason"`
	CessationEventID    uuid.UUID `json:"cessation_event_id"`
}

// CessationFlagChannel is a single channel of the dual-channel cessation
// flag. The flag is a one-way latch; no channel offers a clear operation.
type CessationFlagChannel interface {
	SetCeased(ctx context.Context, details *FlagDetails) error
	IsCeased(ctx context.Context) (bool, error)

	// Details returns nil when the channel holds no flag.
	Details(ctx context.Context) (*FlagDetails, error)
}
