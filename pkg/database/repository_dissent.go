// Copyright 2025 Archon 72 Project
//
// Dissent Repository - rolling dissent samples

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/archon72/accountability-engine/pkg/store"
)

// DissentRepository handles dissent record storage
type DissentRepository struct {
	client *Client
}

// NewDissentRepository creates a new dissent repository
func NewDissentRepository(client *Client) *DissentRepository {
	return &DissentRepository{client: client}
}

// RecordVoteDissent implements store.DissentRepository.
func (r *DissentRepository) RecordVoteDissent(ctx context.Context, record *store.DissentRecord) error {
	query := `
		INSERT INTO dissent_records (output_id, dissent_percentage, recorded_at)
		VALUES ($1, $2, $3)`

	_, err := r.client.ExecContext(ctx, query,
		record.OutputID, record.DissentPercentage, record.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record dissent: %w", err)
	}
	return nil
}

// ListSince implements store.DissentRepository.
func (r *DissentRepository) ListSince(ctx context.Context, cutoff time.Time) ([]*store.DissentRecord, error) {
	query := `
		SELECT output_id, dissent_percentage, recorded_at
		FROM dissent_records
		WHERE recorded_at >= $1
		ORDER BY recorded_at`

	rows, err := r.client.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list dissent records: %w", err)
	}
	defer rows.Close()

	var out []*store.DissentRecord
	for rows.Next() {
		var rec store.DissentRecord
		if err := rows.Scan(&rec.OutputID, &rec.DissentPercentage, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dissent record: %w", err)
		}
		rec.RecordedAt = rec.RecordedAt.UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dissent records: %w", err)
	}
	return out, nil
}
