// Copyright 2025 Archon 72 Project
//
// Unit tests for the cessation consideration service

package cessation

import (
	"context"
	"errors"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/breach"
	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/kvdb"
	"github.com/archon72/accountability-engine/pkg/ledger"
	"github.com/archon72/accountability-engine/pkg/memstore"
	"github.com/archon72/accountability-engine/pkg/witness"
	"github.com/archon72/accountability-engine/pkg/writer"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type considerationHarness struct {
	clock    *testClock
	gate     *halt.Gate
	log      *ledger.EventLog
	breaches *breach.Service
	acks     *memstore.EscalationStore
	service  *ConsiderationService
}

func newConsiderationHarness(t *testing.T) *considerationHarness {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := ledger.NewEventLog(kvdb.NewKVAdapter(dbm.NewMemDB()))
	wit, err := witness.NewEd25519Witness("witness-1", nil)
	if err != nil {
		t.Fatalf("failed to create witness: %v", err)
	}
	gate := halt.NewGate(nil)
	w, err := writer.New(log, wit, gate)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	acks := memstore.NewEscalationStore()
	breachStore := memstore.NewBreachStore(acks)

	return &considerationHarness{
		clock:    clock,
		gate:     gate,
		log:      log,
		breaches: breach.NewService(breachStore, w, gate, breach.WithClock(clock.now)),
		acks:     acks,
		service: NewConsiderationService(breachStore, memstore.NewCessationStore(), w, gate,
			WithConsiderationClock(clock.now)),
	}
}

func (h *considerationHarness) seedBreaches(t *testing.T, n int) []*events.BreachPayload {
	t.Helper()
	out := make([]*events.BreachPayload, n)
	for i := 0; i < n; i++ {
		b, err := h.breaches.DeclareBreach(context.Background(), events.BreachConstitutionalConstraint,
			"FR80", events.SeverityHigh, nil, nil)
		if err != nil {
			t.Fatalf("seed breach %d failed: %v", i, err)
		}
		out[i] = b
		h.clock.advance(time.Minute)
	}
	return out
}

// Scenario: 10 unacknowledged breaches do not trigger; an 11th does.
func TestThresholdTriggerBoundary(t *testing.T) {
	h := newConsiderationHarness(t)
	ctx := context.Background()

	h.seedBreaches(t, 10)
	consideration, err := h.service.CheckAndTriggerCessation(ctx)
	if err != nil {
		t.Fatalf("CheckAndTriggerCessation failed: %v", err)
	}
	if consideration != nil {
		t.Fatalf("triggered at exactly 10 breaches; the inequality is strict")
	}

	seeded := h.seedBreaches(t, 1)
	consideration, err = h.service.CheckAndTriggerCessation(ctx)
	if err != nil {
		t.Fatalf("CheckAndTriggerCessation failed: %v", err)
	}
	if consideration == nil {
		t.Fatal("did not trigger at 11 breaches")
	}
	if consideration.BreachCount != 11 {
		t.Errorf("breach_count = %d, want 11", consideration.BreachCount)
	}
	if len(consideration.UnacknowledgedBreachIDs) != 11 {
		t.Errorf("listed %d breach IDs, want 11", len(consideration.UnacknowledgedBreachIDs))
	}
	if consideration.WindowDays != 90 {
		t.Errorf("window_days = %d, want 90", consideration.WindowDays)
	}
	if consideration.AgendaPlacementReason != "FR32: >10 unacknowledged breaches in 90 days" {
		t.Errorf("agenda reason = %q", consideration.AgendaPlacementReason)
	}

	found := false
	for _, id := range consideration.UnacknowledgedBreachIDs {
		if id == seeded[0].BreachID {
			found = true
		}
	}
	if !found {
		t.Error("11th breach missing from consideration")
	}

	// Exactly one cessation.consideration event was appended.
	head, _ := h.log.Head(ctx)
	if head.EventType != events.TypeCessationConsideration {
		t.Errorf("head event type = %s, want cessation.consideration", head.EventType)
	}

	// Idempotent while active.
	again, err := h.service.CheckAndTriggerCessation(ctx)
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if again != nil {
		t.Error("second check triggered a duplicate consideration")
	}
}

func TestAcknowledgedBreachesDoNotCount(t *testing.T) {
	h := newConsiderationHarness(t)
	ctx := context.Background()

	seeded := h.seedBreaches(t, 11)
	if err := h.acks.SaveAcknowledgment(ctx, &events.AcknowledgmentPayload{
		AcknowledgmentID:        uuid.New(),
		BreachID:                seeded[0].BreachID,
		AcknowledgedBy:          "keeper:alice",
		AcknowledgmentTimestamp: h.clock.t,
		ResponseChoice:          events.ResponseCorrective,
	}); err != nil {
		t.Fatalf("SaveAcknowledgment failed: %v", err)
	}

	consideration, err := h.service.CheckAndTriggerCessation(ctx)
	if err != nil {
		t.Fatalf("CheckAndTriggerCessation failed: %v", err)
	}
	if consideration != nil {
		t.Error("triggered with only 10 unacknowledged breaches")
	}
}

// Scenario: decision recorded, then idempotent.
func TestRecordDecisionOncePerConsideration(t *testing.T) {
	h := newConsiderationHarness(t)
	ctx := context.Background()

	h.seedBreaches(t, 11)
	consideration, err := h.service.CheckAndTriggerCessation(ctx)
	if err != nil || consideration == nil {
		t.Fatalf("trigger failed: %v", err)
	}

	active, err := h.service.IsConsiderationActive(ctx)
	if err != nil || !active {
		t.Fatalf("IsConsiderationActive = %v, %v; want true", active, err)
	}

	decision, err := h.service.RecordDecision(ctx, consideration.ConsiderationID,
		events.DecisionDismissConsideration, "Conclave Session 42", "Remediated")
	if err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}
	if decision.DecidedBy != "Conclave Session 42" {
		t.Errorf("decided_by = %q", decision.DecidedBy)
	}

	head, _ := h.log.Head(ctx)
	if head.EventType != events.TypeCessationDecision {
		t.Errorf("head event type = %s, want cessation.decision", head.EventType)
	}

	// A second decision is rejected.
	_, err = h.service.RecordDecision(ctx, consideration.ConsiderationID,
		events.DecisionProceedToVote, "Conclave Session 43", "Changed our minds")
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("second decision: got %v, want ErrInvalidDecision", err)
	}
	var invalidErr *InvalidDecisionError
	if !errors.As(err, &invalidErr) || invalidErr.Reason != "already recorded" {
		t.Errorf("second decision error = %v, want reason 'already recorded'", err)
	}

	// After the dismissal no consideration is active.
	active, err = h.service.IsConsiderationActive(ctx)
	if err != nil || active {
		t.Errorf("IsConsiderationActive after decision = %v, %v; want false", active, err)
	}
}

func TestRecordDecisionValidation(t *testing.T) {
	h := newConsiderationHarness(t)
	ctx := context.Background()

	h.seedBreaches(t, 11)
	consideration, err := h.service.CheckAndTriggerCessation(ctx)
	if err != nil || consideration == nil {
		t.Fatalf("trigger failed: %v", err)
	}

	if _, err := h.service.RecordDecision(ctx, consideration.ConsiderationID,
		events.DecisionDeferReview, "  ", "rationale"); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("blank decided_by: got %v, want ErrInvalidDecision", err)
	}
	if _, err := h.service.RecordDecision(ctx, consideration.ConsiderationID,
		events.DecisionDeferReview, "Conclave Session 42", ""); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("empty rationale: got %v, want ErrInvalidDecision", err)
	}
	if _, err := h.service.RecordDecision(ctx, uuid.New(),
		events.DecisionDeferReview, "Conclave Session 42", "rationale"); !errors.Is(err, ErrConsiderationNotFound) {
		t.Errorf("unknown consideration: got %v, want ErrConsiderationNotFound", err)
	}
}

func TestBreachAlertStatusBuckets(t *testing.T) {
	h := newConsiderationHarness(t)
	ctx := context.Background()

	alert, err := h.service.GetBreachAlertStatus(ctx)
	if err != nil {
		t.Fatalf("GetBreachAlertStatus failed: %v", err)
	}
	if alert != "" {
		t.Errorf("alert with 0 breaches = %q, want empty", alert)
	}

	h.seedBreaches(t, 8)
	alert, err = h.service.GetBreachAlertStatus(ctx)
	if err != nil {
		t.Fatalf("GetBreachAlertStatus failed: %v", err)
	}
	if alert != AlertWarning {
		t.Errorf("alert with 8 breaches = %q, want WARNING", alert)
	}

	h.seedBreaches(t, 3) // 11 total
	alert, err = h.service.GetBreachAlertStatus(ctx)
	if err != nil {
		t.Fatalf("GetBreachAlertStatus failed: %v", err)
	}
	if alert != AlertCritical {
		t.Errorf("alert with 11 breaches = %q, want CRITICAL", alert)
	}
}

func TestBreachCountStatusTrajectory(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := now.AddDate(0, 0, -60)  // before the midpoint
	recent := now.AddDate(0, 0, -10) // after the midpoint

	mk := func(ts time.Time, n int) []*events.BreachPayload {
		out := make([]*events.BreachPayload, n)
		for i := range out {
			out[i] = &events.BreachPayload{BreachID: uuid.New(), DetectionTimestamp: ts}
		}
		return out
	}

	// 5 recent vs 1 older: increasing (5 > 1+2).
	status := StatusFromBreaches(append(mk(recent, 5), mk(older, 1)...), now)
	if status.Trajectory != TrajectoryIncreasing {
		t.Errorf("trajectory = %s, want increasing", status.Trajectory)
	}

	// 1 recent vs 5 older: decreasing.
	status = StatusFromBreaches(append(mk(recent, 1), mk(older, 5)...), now)
	if status.Trajectory != TrajectoryDecreasing {
		t.Errorf("trajectory = %s, want decreasing", status.Trajectory)
	}

	// 4 recent vs 2 older: inside the +-2 tolerance, stable.
	status = StatusFromBreaches(append(mk(recent, 4), mk(older, 2)...), now)
	if status.Trajectory != TrajectoryStable {
		t.Errorf("trajectory = %s, want stable", status.Trajectory)
	}

	if status.CurrentCount != 6 || len(status.BreachIDs) != 6 {
		t.Errorf("count = %d ids = %d, want 6 and 6", status.CurrentCount, len(status.BreachIDs))
	}
	if status.UrgencyLevel() != "NORMAL" {
		t.Errorf("urgency = %s, want NORMAL", status.UrgencyLevel())
	}
	if status.BreachesUntilThreshold() != 5 {
		t.Errorf("breaches until threshold = %d, want 5", status.BreachesUntilThreshold())
	}
}

// Configured thresholds override the constitutional defaults.
func TestConfiguredThresholds(t *testing.T) {
	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := ledger.NewEventLog(kvdb.NewKVAdapter(dbm.NewMemDB()))
	wit, err := witness.NewEd25519Witness("witness-1", nil)
	if err != nil {
		t.Fatalf("failed to create witness: %v", err)
	}
	gate := halt.NewGate(nil)
	w, err := writer.New(log, wit, gate)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	acks := memstore.NewEscalationStore()
	breachStore := memstore.NewBreachStore(acks)
	breaches := breach.NewService(breachStore, w, gate, breach.WithClock(clock.now))
	svc := NewConsiderationService(breachStore, memstore.NewCessationStore(), w, gate,
		WithConsiderationClock(clock.now), WithThresholds(2, 1, 30))
	ctx := context.Background()

	seed := func(n int) {
		for i := 0; i < n; i++ {
			if _, err := breaches.DeclareBreach(ctx, events.BreachConstitutionalConstraint,
				"FR80", events.SeverityHigh, nil, nil); err != nil {
				t.Fatalf("seed breach failed: %v", err)
			}
			clock.advance(time.Minute)
		}
	}

	seed(1)
	alert, err := svc.GetBreachAlertStatus(ctx)
	if err != nil {
		t.Fatalf("GetBreachAlertStatus failed: %v", err)
	}
	if alert != AlertWarning {
		t.Errorf("alert at configured warning threshold = %q, want WARNING", alert)
	}

	seed(1) // 2 total: at the threshold, still no trigger (strict >)
	consideration, err := svc.CheckAndTriggerCessation(ctx)
	if err != nil {
		t.Fatalf("CheckAndTriggerCessation failed: %v", err)
	}
	if consideration != nil {
		t.Fatal("triggered at the configured threshold; the inequality is strict")
	}

	seed(1) // 3 total: above the configured threshold of 2
	consideration, err = svc.CheckAndTriggerCessation(ctx)
	if err != nil {
		t.Fatalf("CheckAndTriggerCessation failed: %v", err)
	}
	if consideration == nil {
		t.Fatal("did not trigger above the configured threshold")
	}
	if consideration.WindowDays != 30 {
		t.Errorf("window_days = %d, want configured 30", consideration.WindowDays)
	}
	if consideration.AgendaPlacementReason != "FR32: >2 unacknowledged breaches in 30 days" {
		t.Errorf("agenda reason = %q", consideration.AgendaPlacementReason)
	}
}

func TestConsiderationHaltChecked(t *testing.T) {
	h := newConsiderationHarness(t)
	h.gate.RaiseAlarm("test halt")
	ctx := context.Background()

	if _, err := h.service.CheckAndTriggerCessation(ctx); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("CheckAndTriggerCessation: got %v, want ErrSystemHalted", err)
	}
	if _, err := h.service.RecordDecision(ctx, uuid.New(), events.DecisionDeferReview,
		"Conclave", "rationale"); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("RecordDecision: got %v, want ErrSystemHalted", err)
	}
	if _, err := h.service.GetBreachCountStatus(ctx); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("GetBreachCountStatus: got %v, want ErrSystemHalted", err)
	}
}
