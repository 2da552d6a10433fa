// Copyright 2025 Archon 72 Project
//
// Cessation Flag Repository - durable channel of the dual-channel flag
//
// Single row, insert-only. ON CONFLICT DO NOTHING makes the latch first-wins:
// no path updates or deletes the row once set.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/archon72/accountability-engine/pkg/store"
)

// CessationFlagRepository is the durable channel of the cessation flag
type CessationFlagRepository struct {
	client *Client
}

// NewCessationFlagRepository creates a new cessation flag repository
func NewCessationFlagRepository(client *Client) *CessationFlagRepository {
	return &CessationFlagRepository{client: client}
}

// SetCeased implements store.CessationFlagChannel.
func (r *CessationFlagRepository) SetCeased(ctx context.Context, details *store.FlagDetails) error {
	query := `
		INSERT INTO cessation_flag (singleton, ceased_at, final_sequence_number, reason, cessation_event_id)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO NOTHING`

	_, err := r.client.ExecContext(ctx, query,
		details.CeasedAt, int64(details.FinalSequenceNumber), details.Reason,
		details.CessationEventID)
	if err != nil {
		return fmt.Errorf("failed to set cessation flag: %w", err)
	}
	return nil
}

// IsCeased implements store.CessationFlagChannel.
func (r *CessationFlagRepository) IsCeased(ctx context.Context) (bool, error) {
	var exists bool
	err := r.client.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cessation_flag)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to read cessation flag: %w", err)
	}
	return exists, nil
}

// Details implements store.CessationFlagChannel.
func (r *CessationFlagRepository) Details(ctx context.Context) (*store.FlagDetails, error) {
	var (
		d        store.FlagDetails
		sequence int64
	)
	err := r.client.QueryRowContext(ctx, `
		SELECT ceased_at, final_sequence_number, reason, cessation_event_id
		FROM cessation_flag`).Scan(&d.CeasedAt, &sequence, &d.Reason, &d.CessationEventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cessation details: %w", err)
	}
	d.FinalSequenceNumber = uint64(sequence)
	d.CeasedAt = d.CeasedAt.UTC()
	return &d, nil
}
