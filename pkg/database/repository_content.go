// Copyright 2025 Archon 72 Project
//
// Content Hash Repository - canonical hashes for the no-silent-edit rule

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/store"
)

// ContentHashRepository handles canonical content hash storage
type ContentHashRepository struct {
	client *Client
}

// NewContentHashRepository creates a new content hash repository
func NewContentHashRepository(client *Client) *ContentHashRepository {
	return &ContentHashRepository{client: client}
}

// SaveHash implements store.ContentHashRepository.
func (r *ContentHashRepository) SaveHash(ctx context.Context, contentID uuid.UUID, hash string) error {
	query := `
		INSERT INTO content_hashes (content_id, hash)
		VALUES ($1, $2)
		ON CONFLICT (content_id) DO UPDATE SET hash = EXCLUDED.hash`

	if _, err := r.client.ExecContext(ctx, query, contentID, hash); err != nil {
		return fmt.Errorf("failed to save content hash: %w", err)
	}
	return nil
}

// StoredHash implements store.ContentHashRepository.
func (r *ContentHashRepository) StoredHash(ctx context.Context, contentID uuid.UUID) (string, error) {
	var hash string
	err := r.client.QueryRowContext(ctx,
		`SELECT hash FROM content_hashes WHERE content_id = $1`, contentID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", store.ErrContentHashNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get content hash: %w", err)
	}
	return hash, nil
}
