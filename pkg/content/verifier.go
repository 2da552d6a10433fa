// Copyright 2025 Archon 72 Project
//
// Content Hash Verifier - No Silent Edits (FR13)
//
// Publication succeeds only when the SHA-256 of the content being published
// equals the stored canonical hash. A missing stored hash is a mismatch:
// unknown content is never published.

package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/store"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// FR13ViolationError reports a detected silent edit: the published content's
// hash does not match the stored canonical hash. Both prefixes are carried
// for diagnosis.
type FR13ViolationError struct {
	ContentID      uuid.UUID
	StoredPrefix   string
	ComputedPrefix string
}

func (e *FR13ViolationError) Error() string {
	stored := e.StoredPrefix
	if stored == "" {
		stored = "none"
	}
	return fmt.Sprintf("FR13: Silent edit detected - hash mismatch (content_id=%s, stored=%s..., computed=%s...)",
		e.ContentID, stored, e.ComputedPrefix)
}

// VerificationResult is the outcome of a hash comparison.
type VerificationResult struct {
	ContentID    uuid.UUID `json:"content_id"`
	Matches      bool      `json:"matches"`
	StoredHash   string    `json:"stored_hash,omitempty"`
	ComputedHash string    `json:"computed_hash"`
}

// Verifier compares published content against stored canonical hashes.
type Verifier struct {
	repo store.ContentHashRepository
}

// NewVerifier creates a content hash verifier.
func NewVerifier(repo store.ContentHashRepository) *Verifier {
	return &Verifier{repo: repo}
}

// HashContent returns the lowercase hex SHA-256 of the content bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Verify compares the content's hash against the stored hash. A missing
// stored hash is reported as a non-match, never an error: the caller decides
// whether absence blocks publication (it does).
func (v *Verifier) Verify(ctx context.Context, contentID uuid.UUID, content []byte) (*VerificationResult, error) {
	computed := HashContent(content)
	stored, err := v.repo.StoredHash(ctx, contentID)
	if err != nil {
		if errors.Is(err, store.ErrContentHashNotFound) {
			return &VerificationResult{
				ContentID:    contentID,
				Matches:      false,
				ComputedHash: computed,
			}, nil
		}
		return nil, fmt.Errorf("failed to read stored hash for %s: %w", contentID, err)
	}
	return &VerificationResult{
		ContentID:    contentID,
		Matches:      stored == computed,
		StoredHash:   stored,
		ComputedHash: computed,
	}, nil
}

// RegisterHash stores the canonical hash for a piece of content.
func (v *Verifier) RegisterHash(ctx context.Context, contentID uuid.UUID, content []byte) (string, error) {
	h := HashContent(content)
	if err := v.repo.SaveHash(ctx, contentID, h); err != nil {
		return "", fmt.Errorf("failed to store hash for %s: %w", contentID, err)
	}
	return h, nil
}

// PublishService gates publication on hash equality (FR13).
type PublishService struct {
	verifier *Verifier
	gate     writer.HaltChecker
	logger   *log.Logger
}

// PublishOption is a functional option for the publish service.
type PublishOption func(*PublishService)

// WithPublishLogger sets a custom logger.
func WithPublishLogger(logger *log.Logger) PublishOption {
	return func(s *PublishService) { s.logger = logger }
}

// NewPublishService creates a publish service.
func NewPublishService(verifier *Verifier, gate writer.HaltChecker, opts ...PublishOption) *PublishService {
	s := &PublishService{
		verifier: verifier,
		gate:     gate,
		logger:   log.New(log.Writer(), "[Publish] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishContent verifies hash equality and publishes. Any mismatch —
// including an unregistered content ID — blocks publication with an
// FR13ViolationError and changes no state.
func (s *PublishService) PublishContent(ctx context.Context, contentID uuid.UUID, content []byte) error {
	// HALT CHECK FIRST (CT-11)
	if s.gate.IsHalted(ctx) {
		return halt.NewHaltedError(s.gate.HaltReason(ctx))
	}

	result, err := s.verifier.Verify(ctx, contentID, content)
	if err != nil {
		return err
	}
	if !result.Matches {
		s.logger.Printf("silent edit blocked: content_id=%s stored=%s computed=%s",
			contentID, prefixOrNone(result.StoredHash), prefix(result.ComputedHash))
		return &FR13ViolationError{
			ContentID:      contentID,
			StoredPrefix:   prefix(result.StoredHash),
			ComputedPrefix: prefix(result.ComputedHash),
		}
	}

	s.logger.Printf("content published: content_id=%s hash=%s", contentID, prefix(result.StoredHash))
	return nil
}

// VerifyContent runs the comparison without publishing.
func (s *PublishService) VerifyContent(ctx context.Context, contentID uuid.UUID, content []byte) (*VerificationResult, error) {
	// HALT CHECK FIRST (CT-11)
	if s.gate.IsHalted(ctx) {
		return nil, halt.NewHaltedError(s.gate.HaltReason(ctx))
	}
	return s.verifier.Verify(ctx, contentID, content)
}

func prefix(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func prefixOrNone(h string) string {
	if h == "" {
		return "none"
	}
	return prefix(h)
}
