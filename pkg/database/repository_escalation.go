// Copyright 2025 Archon 72 Project
//
// Escalation Repository - one-escalation-per-breach and
// one-acknowledgment-per-breach indices. The UNIQUE constraints on breach_id
// are the database-level backstop for the state machine.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// EscalationRepository handles escalation and acknowledgment index operations
type EscalationRepository struct {
	client *Client
}

// NewEscalationRepository creates a new escalation repository
func NewEscalationRepository(client *Client) *EscalationRepository {
	return &EscalationRepository{client: client}
}

// SaveEscalation implements store.EscalationRepository.
func (r *EscalationRepository) SaveEscalation(ctx context.Context, escalation *events.EscalationPayload) error {
	query := `
		INSERT INTO escalations (
			escalation_id, breach_id, breach_type, escalation_timestamp,
			days_since_breach, agenda_placement_reason
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.client.ExecContext(ctx, query,
		escalation.EscalationID, escalation.BreachID, string(escalation.BreachType),
		escalation.EscalationTimestamp, escalation.DaysSinceBreach,
		escalation.AgendaPlacementReason,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", store.ErrEscalationExists, escalation.BreachID)
		}
		return fmt.Errorf("failed to save escalation: %w", err)
	}
	return nil
}

// SaveAcknowledgment implements store.EscalationRepository.
func (r *EscalationRepository) SaveAcknowledgment(ctx context.Context, ack *events.AcknowledgmentPayload) error {
	query := `
		INSERT INTO acknowledgments (
			acknowledgment_id, breach_id, acknowledged_by,
			acknowledgment_timestamp, response_choice
		) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.client.ExecContext(ctx, query,
		ack.AcknowledgmentID, ack.BreachID, ack.AcknowledgedBy,
		ack.AcknowledgmentTimestamp, string(ack.ResponseChoice),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", store.ErrAcknowledgmentExists, ack.BreachID)
		}
		return fmt.Errorf("failed to save acknowledgment: %w", err)
	}
	return nil
}

// EscalationForBreach implements store.EscalationRepository.
func (r *EscalationRepository) EscalationForBreach(ctx context.Context, breachID uuid.UUID) (*events.EscalationPayload, error) {
	query := `
		SELECT escalation_id, breach_id, breach_type, escalation_timestamp,
			days_since_breach, agenda_placement_reason
		FROM escalations
		WHERE breach_id = $1`

	var (
		e          events.EscalationPayload
		breachType string
	)
	err := r.client.QueryRowContext(ctx, query, breachID).Scan(
		&e.EscalationID, &e.BreachID, &breachType, &e.EscalationTimestamp,
		&e.DaysSinceBreach, &e.AgendaPlacementReason,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrEscalationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	e.BreachType = events.BreachType(breachType)
	e.EscalationTimestamp = e.EscalationTimestamp.UTC()
	return &e, nil
}

// AcknowledgmentForBreach implements store.EscalationRepository.
func (r *EscalationRepository) AcknowledgmentForBreach(ctx context.Context, breachID uuid.UUID) (*events.AcknowledgmentPayload, error) {
	query := `
		SELECT acknowledgment_id, breach_id, acknowledged_by,
			acknowledgment_timestamp, response_choice
		FROM acknowledgments
		WHERE breach_id = $1`

	var (
		a      events.AcknowledgmentPayload
		choice string
	)
	err := r.client.QueryRowContext(ctx, query, breachID).Scan(
		&a.AcknowledgmentID, &a.BreachID, &a.AcknowledgedBy,
		&a.AcknowledgmentTimestamp, &choice,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrAcknowledgmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acknowledgment: %w", err)
	}
	a.ResponseChoice = events.ResponseChoice(choice)
	a.AcknowledgmentTimestamp = a.AcknowledgmentTimestamp.UTC()
	return &a, nil
}
