// Copyright 2025 Archon 72 Project
//
// Breach Repository - append-only breach registry with window queries

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/store"
)

// BreachRepository handles breach registry operations
type BreachRepository struct {
	client *Client
}

// NewBreachRepository creates a new breach repository
func NewBreachRepository(client *Client) *BreachRepository {
	return &BreachRepository{client: client}
}

// Save implements store.BreachRepository.
func (r *BreachRepository) Save(ctx context.Context, breach *events.BreachPayload) error {
	details, err := json.Marshal(breach.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal breach details: %w", err)
	}

	var sourceEventID any
	if breach.SourceEventID != nil {
		sourceEventID = *breach.SourceEventID
	}

	query := `
		INSERT INTO breaches (
			breach_id, breach_type, violated_requirement, severity,
			detection_timestamp, details, source_event_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.client.ExecContext(ctx, query,
		breach.BreachID, string(breach.BreachType), breach.ViolatedRequirement,
		string(breach.Severity), breach.DetectionTimestamp, details, sourceEventID,
	)
	if err != nil {
		return fmt.Errorf("failed to save breach: %w", err)
	}
	return nil
}

// GetByID implements store.BreachRepository.
func (r *BreachRepository) GetByID(ctx context.Context, breachID uuid.UUID) (*events.BreachPayload, error) {
	query := selectBreaches + ` WHERE breach_id = $1`
	rows, err := r.client.QueryContext(ctx, query, breachID)
	if err != nil {
		return nil, fmt.Errorf("failed to get breach: %w", err)
	}
	out, err := scanBreaches(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, store.ErrBreachNotFound
	}
	return out[0], nil
}

// ListAll implements store.BreachRepository.
func (r *BreachRepository) ListAll(ctx context.Context) ([]*events.BreachPayload, error) {
	rows, err := r.client.QueryContext(ctx, selectBreaches+` ORDER BY detection_timestamp`)
	if err != nil {
		return nil, fmt.Errorf("failed to list breaches: %w", err)
	}
	return scanBreaches(rows)
}

// FilterByType implements store.BreachRepository.
func (r *BreachRepository) FilterByType(ctx context.Context, breachType events.BreachType) ([]*events.BreachPayload, error) {
	query := selectBreaches + ` WHERE breach_type = $1 ORDER BY detection_timestamp`
	rows, err := r.client.QueryContext(ctx, query, string(breachType))
	if err != nil {
		return nil, fmt.Errorf("failed to filter breaches by type: %w", err)
	}
	return scanBreaches(rows)
}

// FilterByDateRange implements store.BreachRepository. Both ends inclusive.
func (r *BreachRepository) FilterByDateRange(ctx context.Context, start, end time.Time) ([]*events.BreachPayload, error) {
	query := selectBreaches + `
		WHERE detection_timestamp >= $1 AND detection_timestamp <= $2
		ORDER BY detection_timestamp`
	rows, err := r.client.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to filter breaches by date range: %w", err)
	}
	return scanBreaches(rows)
}

// FilterByTypeAndDateRange implements store.BreachRepository.
func (r *BreachRepository) FilterByTypeAndDateRange(ctx context.Context, breachType events.BreachType, start, end time.Time) ([]*events.BreachPayload, error) {
	query := selectBreaches + `
		WHERE breach_type = $1 AND detection_timestamp >= $2 AND detection_timestamp <= $3
		ORDER BY detection_timestamp`
	rows, err := r.client.QueryContext(ctx, query, string(breachType), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to filter breaches: %w", err)
	}
	return scanBreaches(rows)
}

// CountUnacknowledgedSince implements store.BreachRepository.
func (r *BreachRepository) CountUnacknowledgedSince(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM breaches b
		WHERE b.detection_timestamp >= $1
		  AND NOT EXISTS (
			SELECT 1 FROM acknowledgments a WHERE a.breach_id = b.breach_id
		  )`
	var count int
	if err := r.client.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unacknowledged breaches: %w", err)
	}
	return count, nil
}

// UnacknowledgedSince implements store.BreachRepository.
func (r *BreachRepository) UnacknowledgedSince(ctx context.Context, cutoff time.Time) ([]*events.BreachPayload, error) {
	query := selectBreaches + `
		WHERE detection_timestamp >= $1
		  AND NOT EXISTS (
			SELECT 1 FROM acknowledgments a WHERE a.breach_id = breaches.breach_id
		  )
		ORDER BY detection_timestamp`
	rows, err := r.client.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list unacknowledged breaches: %w", err)
	}
	return scanBreaches(rows)
}

const selectBreaches = `
	SELECT breach_id, breach_type, violated_requirement, severity,
		detection_timestamp, details, source_event_id
	FROM breaches`

func scanBreaches(rows *sql.Rows) ([]*events.BreachPayload, error) {
	defer rows.Close()

	var out []*events.BreachPayload
	for rows.Next() {
		var (
			b             events.BreachPayload
			breachType    string
			severity      string
			details       []byte
			sourceEventID uuid.NullUUID
		)
		if err := rows.Scan(
			&b.BreachID, &breachType, &b.ViolatedRequirement, &severity,
			&b.DetectionTimestamp, &details, &sourceEventID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan breach: %w", err)
		}
		b.BreachType = events.BreachType(breachType)
		b.Severity = events.Severity(severity)
		b.DetectionTimestamp = b.DetectionTimestamp.UTC()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &b.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal breach details: %w", err)
			}
		}
		if sourceEventID.Valid {
			id := sourceEventID.UUID
			b.SourceEventID = &id
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breaches: %w", err)
	}
	return out, nil
}
