// Copyright 2025 Archon 72 Project
//
// Integration tests for the PostgreSQL repositories
// Uses a test database when configured; skipped otherwise

package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/archon72/accountability-engine/pkg/config"
	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/store"
)

var testClient *Client

func TestMain(m *testing.M) {
	connStr := os.Getenv("ARCHON72_TEST_DB")
	if connStr == "" {
		// Skip database tests if no test DB configured
		os.Exit(0)
	}

	cfg := &config.Config{
		DatabaseURL:         connStr,
		DatabaseMaxConns:    4,
		DatabaseMinConns:    1,
		DatabaseMaxIdleTime: 60,
		DatabaseMaxLifetime: 600,
	}
	var err error
	testClient, err = NewClient(cfg)
	if err != nil {
		panic("Failed to connect to test database: " + err.Error())
	}
	if err := testClient.Migrate(context.Background()); err != nil {
		panic("Failed to migrate test database: " + err.Error())
	}

	code := m.Run()

	testClient.Close()
	os.Exit(code)
}

func TestBreachRepositoryRoundTrip(t *testing.T) {
	if testClient == nil {
		t.Skip("Test database not configured")
	}

	repo := NewBreachRepository(testClient)
	ctx := context.Background()

	src := uuid.New()
	breach := &events.BreachPayload{
		BreachID:            uuid.New(),
		BreachType:          events.BreachHashMismatch,
		ViolatedRequirement: "FR82",
		Severity:            events.SeverityCritical,
		DetectionTimestamp:  time.Now().UTC().Truncate(time.Microsecond),
		Details:             map[string]any{"content_id": "doc-1"},
		SourceEventID:       &src,
	}

	if err := repo.Save(ctx, breach); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	defer func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM breaches WHERE breach_id = $1", breach.BreachID)
	}()

	got, err := repo.GetByID(ctx, breach.BreachID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.BreachType != events.BreachHashMismatch || got.Severity != events.SeverityCritical {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.SourceEventID == nil || *got.SourceEventID != src {
		t.Errorf("source event ID not preserved: %v", got.SourceEventID)
	}
	if !got.DetectionTimestamp.Equal(breach.DetectionTimestamp) {
		t.Errorf("timestamp mismatch: %v != %v", got.DetectionTimestamp, breach.DetectionTimestamp)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, store.ErrBreachNotFound) {
		t.Errorf("expected ErrBreachNotFound, got %v", err)
	}
}

func TestEscalationRepositoryUniqueIndices(t *testing.T) {
	if testClient == nil {
		t.Skip("Test database not configured")
	}

	ctx := context.Background()
	breachRepo := NewBreachRepository(testClient)
	repo := NewEscalationRepository(testClient)

	breach := &events.BreachPayload{
		BreachID:            uuid.New(),
		BreachType:          events.BreachTimingViolation,
		ViolatedRequirement: "FR21",
		Severity:            events.SeverityMedium,
		DetectionTimestamp:  time.Now().UTC(),
		Details:             map[string]any{},
	}
	if err := breachRepo.Save(ctx, breach); err != nil {
		t.Fatalf("Save breach failed: %v", err)
	}
	defer func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM escalations WHERE breach_id = $1", breach.BreachID)
		_, _ = testClient.ExecContext(ctx, "DELETE FROM breaches WHERE breach_id = $1", breach.BreachID)
	}()

	escalation := &events.EscalationPayload{
		EscalationID:          uuid.New(),
		BreachID:              breach.BreachID,
		BreachType:            breach.BreachType,
		EscalationTimestamp:   time.Now().UTC(),
		DaysSinceBreach:       8,
		AgendaPlacementReason: "7-day unacknowledged breach per FR31 (actual: 8 days)",
	}
	if err := repo.SaveEscalation(ctx, escalation); err != nil {
		t.Fatalf("SaveEscalation failed: %v", err)
	}

	dup := *escalation
	dup.EscalationID = uuid.New()
	if err := repo.SaveEscalation(ctx, &dup); !errors.Is(err, store.ErrEscalationExists) {
		t.Errorf("duplicate escalation: got %v, want ErrEscalationExists", err)
	}

	got, err := repo.EscalationForBreach(ctx, breach.BreachID)
	if err != nil {
		t.Fatalf("EscalationForBreach failed: %v", err)
	}
	if got.EscalationID != escalation.EscalationID {
		t.Errorf("escalation ID mismatch")
	}
}

func TestCessationFlagRepositoryLatch(t *testing.T) {
	if testClient == nil {
		t.Skip("Test database not configured")
	}

	repo := NewCessationFlagRepository(testClient)
	ctx := context.Background()

	defer func() {
		_, _ = testClient.ExecContext(ctx, "DELETE FROM cessation_flag")
	}()

	first := &store.FlagDetails{
		CeasedAt:            time.Now().UTC().Truncate(time.Microsecond),
		FinalSequenceNumber: 101,
		Reason:              "first",
		CessationEventID:    uuid.New(),
	}
	if err := repo.SetCeased(ctx, first); err != nil {
		t.Fatalf("SetCeased failed: %v", err)
	}
	second := &store.FlagDetails{
		CeasedAt:            time.Now().UTC(),
		FinalSequenceNumber: 202,
		Reason:              "second",
		CessationEventID:    uuid.New(),
	}
	if err := repo.SetCeased(ctx, second); err != nil {
		t.Fatalf("second SetCeased failed: %v", err)
	}

	ceased, err := repo.IsCeased(ctx)
	if err != nil || !ceased {
		t.Fatalf("IsCeased = %v, %v; want true", ceased, err)
	}
	details, err := repo.Details(ctx)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if details.Reason != "first" || details.FinalSequenceNumber != 101 {
		t.Errorf("latch not first-wins: %+v", details)
	}
}
