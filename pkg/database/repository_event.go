// Copyright 2025 Archon 72 Project
//
// Event Repository - durable append-only event log

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/archon72/accountability-engine/pkg/events"
)

// EventRepository persists the hash-chained event log in PostgreSQL. The
// sequence primary key makes each append atomic: either the row exists and
// is the new head, or nothing changed.
type EventRepository struct {
	client *Client
}

// NewEventRepository creates a new event repository
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{client: client}
}

// Append implements writer.EventStore.
func (r *EventRepository) Append(ctx context.Context, event *events.Event) error {
	query := `
		INSERT INTO events (
			sequence, event_id, event_type, payload, agent_id,
			local_timestamp, previous_content_hash, content_hash,
			witness_id, witness_signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	prev := sql.NullString{String: event.PreviousContentHash, Valid: event.PreviousContentHash != ""}
	_, err := r.client.ExecContext(ctx, query,
		int64(event.Sequence), event.EventID, event.EventType, []byte(event.Payload),
		event.AgentID, event.LocalTimestamp, prev, event.ContentHash,
		event.WitnessID, event.WitnessSignature,
	)
	if err != nil {
		return fmt.Errorf("failed to append event at sequence %d: %w", event.Sequence, err)
	}
	return nil
}

// Head implements writer.EventStore. Returns nil for an empty log.
func (r *EventRepository) Head(ctx context.Context) (*events.Event, error) {
	query := selectEvents + ` ORDER BY sequence DESC LIMIT 1`
	e, err := r.scanOne(r.client.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read head event: %w", err)
	}
	return e, nil
}

// BySequence implements writer.EventStore.
func (r *EventRepository) BySequence(ctx context.Context, sequence uint64) (*events.Event, error) {
	query := selectEvents + ` WHERE sequence = $1`
	e, err := r.scanOne(r.client.QueryRowContext(ctx, query, int64(sequence)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event at sequence %d: %w", sequence, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event %d: %w", sequence, err)
	}
	return e, nil
}

const selectEvents = `
	SELECT sequence, event_id, event_type, payload, agent_id,
		local_timestamp, previous_content_hash, content_hash,
		witness_id, witness_signature
	FROM events`

func (r *EventRepository) scanOne(row *sql.Row) (*events.Event, error) {
	var (
		e        events.Event
		sequence int64
		payload  []byte
		prev     sql.NullString
	)
	err := row.Scan(
		&sequence, &e.EventID, &e.EventType, &payload, &e.AgentID,
		&e.LocalTimestamp, &prev, &e.ContentHash,
		&e.WitnessID, &e.WitnessSignature,
	)
	if err != nil {
		return nil, err
	}
	e.Sequence = uint64(sequence)
	e.Payload = payload
	e.PreviousContentHash = prev.String
	e.LocalTimestamp = e.LocalTimestamp.UTC()
	return &e, nil
}
