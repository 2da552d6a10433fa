// Copyright 2025 Archon 72 Project
//
// Cessation Repository - considerations and their at-most-one decisions

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/store"
)

// CessationRepository handles cessation consideration and decision storage
type CessationRepository struct {
	client *Client
}

// NewCessationRepository creates a new cessation repository
func NewCessationRepository(client *Client) *CessationRepository {
	return &CessationRepository{client: client}
}

// SaveConsideration implements store.CessationRepository.
func (r *CessationRepository) SaveConsideration(ctx context.Context, consideration *events.ConsiderationPayload) error {
	ids := make([]string, len(consideration.UnacknowledgedBreachIDs))
	for i, id := range consideration.UnacknowledgedBreachIDs {
		ids[i] = id.String()
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal breach IDs: %w", err)
	}

	query := `
		INSERT INTO considerations (
			consideration_id, trigger_timestamp, breach_count, window_days,
			unacknowledged_breach_ids, agenda_placement_reason
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.client.ExecContext(ctx, query,
		consideration.ConsiderationID, consideration.TriggerTimestamp,
		consideration.BreachCount, consideration.WindowDays,
		idsJSON, consideration.AgendaPlacementReason,
	)
	if err != nil {
		return fmt.Errorf("failed to save consideration: %w", err)
	}
	return nil
}

// ConsiderationByID implements store.CessationRepository.
func (r *CessationRepository) ConsiderationByID(ctx context.Context, considerationID uuid.UUID) (*events.ConsiderationPayload, error) {
	query := selectConsiderations + ` WHERE consideration_id = $1`
	c, err := scanConsideration(r.client.QueryRowContext(ctx, query, considerationID))
	if err == sql.ErrNoRows {
		return nil, store.ErrConsiderationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consideration: %w", err)
	}
	return c, nil
}

// ActiveConsideration implements store.CessationRepository.
func (r *CessationRepository) ActiveConsideration(ctx context.Context) (*events.ConsiderationPayload, error) {
	query := selectConsiderations + `
		WHERE NOT EXISTS (
			SELECT 1 FROM decisions d WHERE d.consideration_id = considerations.consideration_id
		)
		ORDER BY trigger_timestamp
		LIMIT 1`
	c, err := scanConsideration(r.client.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, store.ErrNoActiveConsideration
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active consideration: %w", err)
	}
	return c, nil
}

// SaveDecision implements store.CessationRepository.
func (r *CessationRepository) SaveDecision(ctx context.Context, decision *events.DecisionPayload) error {
	query := `
		INSERT INTO decisions (
			decision_id, consideration_id, decision, decision_timestamp,
			decided_by, rationale
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.client.ExecContext(ctx, query,
		decision.DecisionID, decision.ConsiderationID, string(decision.Decision),
		decision.DecisionTimestamp, decision.DecidedBy, decision.Rationale,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", store.ErrDecisionExists, decision.ConsiderationID)
		}
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// DecisionForConsideration implements store.CessationRepository.
func (r *CessationRepository) DecisionForConsideration(ctx context.Context, considerationID uuid.UUID) (*events.DecisionPayload, error) {
	query := `
		SELECT decision_id, consideration_id, decision, decision_timestamp,
			decided_by, rationale
		FROM decisions
		WHERE consideration_id = $1`

	var (
		d        events.DecisionPayload
		decision string
	)
	err := r.client.QueryRowContext(ctx, query, considerationID).Scan(
		&d.DecisionID, &d.ConsiderationID, &decision, &d.DecisionTimestamp,
		&d.DecidedBy, &d.Rationale,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrDecisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	d.Decision = events.CessationDecision(decision)
	d.DecisionTimestamp = d.DecisionTimestamp.UTC()
	return &d, nil
}

const selectConsiderations = `
	SELECT consideration_id, trigger_timestamp, breach_count, window_days,
		unacknowledged_breach_ids, agenda_placement_reason
	FROM considerations`

func scanConsideration(row *sql.Row) (*events.ConsiderationPayload, error) {
	var (
		c       events.ConsiderationPayload
		idsJSON []byte
	)
	err := row.Scan(
		&c.ConsiderationID, &c.TriggerTimestamp, &c.BreachCount, &c.WindowDays,
		&idsJSON, &c.AgendaPlacementReason,
	)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(idsJSON, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breach IDs: %w", err)
	}
	c.UnacknowledgedBreachIDs = make([]uuid.UUID, len(ids))
	for i, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse breach ID %q: %w", s, err)
		}
		c.UnacknowledgedBreachIDs[i] = id
	}
	c.TriggerTimestamp = c.TriggerTimestamp.UTC()
	return &c, nil
}
