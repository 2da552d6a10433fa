// Copyright 2025 Archon 72 Project
//
// Unit tests for the no-silent-edit verifier

package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/memstore"
)

func newPublishService() (*PublishService, *Verifier, *halt.Gate) {
	verifier := NewVerifier(memstore.NewContentHashStore())
	gate := halt.NewGate(nil)
	return NewPublishService(verifier, gate), verifier, gate
}

// Scenario: matching content publishes; edited content is blocked.
func TestPublishMatchThenMismatch(t *testing.T) {
	svc, verifier, _ := newPublishService()
	ctx := context.Background()
	contentID := uuid.New()

	if _, err := verifier.RegisterHash(ctx, contentID, []byte("abc")); err != nil {
		t.Fatalf("RegisterHash failed: %v", err)
	}

	if err := svc.PublishContent(ctx, contentID, []byte("abc")); err != nil {
		t.Fatalf("publish of matching content failed: %v", err)
	}

	err := svc.PublishContent(ctx, contentID, []byte("abd"))
	if err == nil {
		t.Fatal("publish of edited content succeeded")
	}
	var violation *FR13ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected *FR13ViolationError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "Silent edit detected") {
		t.Errorf("error message = %q", err.Error())
	}
	if violation.StoredPrefix == "" || violation.ComputedPrefix == "" {
		t.Errorf("violation must carry both hash prefixes: %+v", violation)
	}
	if violation.StoredPrefix == violation.ComputedPrefix {
		t.Errorf("prefixes should differ for different content: %+v", violation)
	}
}

// A missing stored hash is a mismatch: unknown content never publishes.
func TestPublishUnregisteredContentBlocked(t *testing.T) {
	svc, _, _ := newPublishService()

	err := svc.PublishContent(context.Background(), uuid.New(), []byte("anything"))
	var violation *FR13ViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected *FR13ViolationError, got %v", err)
	}
	if violation.StoredPrefix != "" {
		t.Errorf("stored prefix = %q, want empty for unregistered content", violation.StoredPrefix)
	}
	if !strings.Contains(err.Error(), "stored=none") {
		t.Errorf("error message should mark the stored hash absent: %q", err.Error())
	}
}

func TestVerifyReportsBothHashes(t *testing.T) {
	svc, verifier, _ := newPublishService()
	ctx := context.Background()
	contentID := uuid.New()

	stored, err := verifier.RegisterHash(ctx, contentID, []byte("abc"))
	if err != nil {
		t.Fatalf("RegisterHash failed: %v", err)
	}
	wantSum := sha256.Sum256([]byte("abc"))
	if stored != hex.EncodeToString(wantSum[:]) {
		t.Errorf("registered hash = %s, want sha256 of content", stored)
	}

	result, err := svc.VerifyContent(ctx, contentID, []byte("abd"))
	if err != nil {
		t.Fatalf("VerifyContent failed: %v", err)
	}
	if result.Matches {
		t.Error("mismatch reported as match")
	}
	if result.StoredHash != stored {
		t.Errorf("stored hash = %s, want %s", result.StoredHash, stored)
	}
	editedSum := sha256.Sum256([]byte("abd"))
	if result.ComputedHash != hex.EncodeToString(editedSum[:]) {
		t.Errorf("computed hash = %s", result.ComputedHash)
	}
}

func TestPublishHaltChecked(t *testing.T) {
	svc, verifier, gate := newPublishService()
	ctx := context.Background()
	contentID := uuid.New()
	if _, err := verifier.RegisterHash(ctx, contentID, []byte("abc")); err != nil {
		t.Fatalf("RegisterHash failed: %v", err)
	}

	gate.RaiseAlarm("test halt")

	if err := svc.PublishContent(ctx, contentID, []byte("abc")); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("PublishContent: got %v, want ErrSystemHalted", err)
	}
	if _, err := svc.VerifyContent(ctx, contentID, []byte("abc")); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("VerifyContent: got %v, want ErrSystemHalted", err)
	}
}
